package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clipflow/clipflow-api/internal/identify"
	"github.com/clipflow/clipflow-api/internal/models"
	appErrors "github.com/clipflow/clipflow-api/pkg/errors"
)

type mockVideoStore struct {
	videos map[string]*models.VideoRecord
	saves  int
}

func (m *mockVideoStore) FindByID(ctx context.Context, id string) (*models.VideoRecord, error) {
	if video, ok := m.videos[id]; ok {
		copy := *video
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockVideoStore) SaveIdentification(ctx context.Context, video *models.VideoRecord) error {
	copy := *video
	m.videos[video.ID] = &copy
	m.saves++
	return nil
}

type mockRoster struct {
	students []models.Student
}

func (m *mockRoster) ActiveRoster(ctx context.Context, teamID string) ([]models.Student, error) {
	var roster []models.Student
	for _, s := range m.students {
		if s.TeamID == teamID && s.Active {
			roster = append(roster, s)
		}
	}
	return roster, nil
}

func (m *mockRoster) FindByID(ctx context.Context, id string) (*models.Student, error) {
	for _, s := range m.students {
		if s.ID == id {
			copy := s
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

type mockAudit struct {
	logs []*models.AuditLog
}

func (m *mockAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

type cannedCompleter struct {
	response string
	err      error
}

func (c *cannedCompleter) Configured() bool { return true }

func (c *cannedCompleter) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.response, c.err
}

func strPtr(s string) *string { return &s }

func newIdentificationFixture(t *testing.T, completer identify.Completer) (*IdentificationService, *mockVideoStore, *mockAudit) {
	t.Helper()
	videos := &mockVideoStore{videos: map[string]*models.VideoRecord{
		"v1": {
			ID:         "v1",
			TeamID:     "team-1",
			Title:      "Morning run",
			Status:     models.VideoStatusTranscribed,
			Transcript: strPtr("Great turns from Bob Myers on the second gate."),
		},
	}}
	roster := &mockRoster{students: []models.Student{
		{ID: "s1", TeamID: "team-1", Name: "Bob Myers", Nickname: "Bobbie", Active: true},
		{ID: "s2", TeamID: "team-1", Name: "Jane Smith", Active: true},
		{ID: "s3", TeamID: "team-2", Name: "Outside Kid", Active: true},
	}}
	engine := identify.NewEngine(completer, identify.DefaultPolicies(), zap.NewNop())
	audit := &mockAudit{}
	svc := NewIdentificationService(videos, roster, engine, audit, nil, nil, zap.NewNop())
	return svc, videos, audit
}

func TestIdentifyVideoFallbackMatch(t *testing.T) {
	svc, videos, _ := newIdentificationFixture(t, nil)

	video, err := svc.IdentifyVideo(context.Background(), "v1", false)
	require.NoError(t, err)
	assert.Equal(t, "Bob Myers", video.IdentifiedStudent)
	assert.Equal(t, float64(90), video.Confidence)
	assert.False(t, video.ManuallySelected)
	assert.True(t, video.IdentificationAttempted)
	assert.False(t, video.DuplicateStudent)
	assert.Equal(t, 1, videos.saves)
}

func TestIdentifyVideoIdempotent(t *testing.T) {
	svc, videos, _ := newIdentificationFixture(t, nil)
	videos.videos["v1"].IdentificationAttempted = true
	videos.videos["v1"].IdentifiedStudent = "Jane Smith"

	video, err := svc.IdentifyVideo(context.Background(), "v1", false)
	require.NoError(t, err)
	assert.Equal(t, "Jane Smith", video.IdentifiedStudent)
	assert.Zero(t, videos.saves)
}

func TestIdentifyVideoForceReruns(t *testing.T) {
	svc, videos, _ := newIdentificationFixture(t, nil)
	videos.videos["v1"].IdentificationAttempted = true
	videos.videos["v1"].IdentifiedStudent = "Jane Smith"

	video, err := svc.IdentifyVideo(context.Background(), "v1", true)
	require.NoError(t, err)
	assert.Equal(t, "Bob Myers", video.IdentifiedStudent)
	assert.Equal(t, 1, videos.saves)
}

func TestIdentifyVideoBelowThreshold(t *testing.T) {
	completer := &cannedCompleter{response: `{"identifiedStudent":"Bob Myers","confidence":50,"reasoning":"maybe"}`}
	svc, videos, _ := newIdentificationFixture(t, completer)

	video, err := svc.IdentifyVideo(context.Background(), "v1", false)
	require.NoError(t, err)
	assert.Empty(t, video.IdentifiedStudent)
	assert.Zero(t, video.Confidence)
	assert.Equal(t, "Bob Myers", video.LLMIdentifiedStudent)
	assert.True(t, video.IdentificationAttempted)
	assert.Equal(t, 1, videos.saves)
}

func TestIdentifyVideoEmptyRoster(t *testing.T) {
	svc, videos, _ := newIdentificationFixture(t, nil)
	videos.videos["v1"].TeamID = "team-empty"

	_, err := svc.IdentifyVideo(context.Background(), "v1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEmptyRoster.Code, appErrors.FromError(err).Code)
	assert.Zero(t, videos.saves)
}

func TestIdentifyVideoWithoutTranscript(t *testing.T) {
	svc, videos, _ := newIdentificationFixture(t, nil)
	videos.videos["v1"].Transcript = nil
	videos.videos["v1"].Status = models.VideoStatusTranscribing

	_, err := svc.IdentifyVideo(context.Background(), "v1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Zero(t, videos.saves)
	assert.False(t, videos.videos["v1"].IdentificationAttempted)
}

func TestAssignStudentOverride(t *testing.T) {
	completer := &cannedCompleter{response: `{"identifiedStudent":"Bob Myers","confidence":95,"reasoning":"clear"}`}
	svc, _, audit := newIdentificationFixture(t, completer)

	_, err := svc.IdentifyVideo(context.Background(), "v1", false)
	require.NoError(t, err)

	video, err := svc.AssignStudent(context.Background(), "v1", "s2", "coach-1", models.LoginRequest{IP: "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "Jane Smith", video.IdentifiedStudent)
	assert.Equal(t, float64(identify.ManualConfidence), video.Confidence)
	assert.True(t, video.ManuallySelected)
	assert.Equal(t, "Bob Myers", video.LLMIdentifiedStudent, "automatic guess must survive manual override")
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionManualAssign, audit.logs[0].Action)
}

func TestAssignStudentAgreesWithGuess(t *testing.T) {
	completer := &cannedCompleter{response: `{"identifiedStudent":"Bob Myers","confidence":95,"reasoning":"clear"}`}
	svc, _, _ := newIdentificationFixture(t, completer)

	_, err := svc.IdentifyVideo(context.Background(), "v1", false)
	require.NoError(t, err)

	video, err := svc.AssignStudent(context.Background(), "v1", "s1", "coach-1", models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Bob Myers", video.IdentifiedStudent)
	assert.False(t, video.ManuallySelected)
}

func TestAssignStudentWrongTeam(t *testing.T) {
	svc, _, _ := newIdentificationFixture(t, nil)

	_, err := svc.AssignStudent(context.Background(), "v1", "s3", "coach-1", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssignStudentFlagsDuplicateName(t *testing.T) {
	svc, videos, _ := newIdentificationFixture(t, nil)
	roster := svc.students.(*mockRoster)
	roster.students = append(roster.students, models.Student{ID: "s4", TeamID: "team-1", Name: "Jane Smith", Email: "other@x.io", Active: true})

	video, err := svc.AssignStudent(context.Background(), "v1", "s2", "coach-1", models.LoginRequest{})
	require.NoError(t, err)
	assert.True(t, video.DuplicateStudent)
	assert.Equal(t, video.DuplicateStudent, videos.videos["v1"].DuplicateStudent)
}

func TestUnassignKeepsAttemptedFlag(t *testing.T) {
	svc, _, _ := newIdentificationFixture(t, nil)

	_, err := svc.IdentifyVideo(context.Background(), "v1", false)
	require.NoError(t, err)

	video, err := svc.Unassign(context.Background(), "v1", "coach-1", models.LoginRequest{})
	require.NoError(t, err)
	assert.Empty(t, video.IdentifiedStudent)
	assert.Zero(t, video.Confidence)
	assert.True(t, video.IdentificationAttempted)
	assert.True(t, video.ManuallySelected)
}
