package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clipflow/clipflow-api/internal/identify"
	"github.com/clipflow/clipflow-api/internal/middleware"
	"github.com/clipflow/clipflow-api/internal/models"
	"github.com/clipflow/clipflow-api/internal/service"
	"github.com/clipflow/clipflow-api/pkg/response"
)

type fakeVideoStore struct {
	videos map[string]*models.VideoRecord
}

func (f *fakeVideoStore) FindByID(ctx context.Context, id string) (*models.VideoRecord, error) {
	if v, ok := f.videos[id]; ok {
		copy := *v
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeVideoStore) SaveIdentification(ctx context.Context, video *models.VideoRecord) error {
	copy := *video
	f.videos[video.ID] = &copy
	return nil
}

type fakeRosterStore struct {
	students []models.Student
}

func (f *fakeRosterStore) ActiveRoster(ctx context.Context, teamID string) ([]models.Student, error) {
	var out []models.Student
	for _, s := range f.students {
		if s.TeamID == teamID && s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRosterStore) FindByID(ctx context.Context, id string) (*models.Student, error) {
	for _, s := range f.students {
		if s.ID == id {
			copy := s
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

type fakeAuditStore struct{}

func (f *fakeAuditStore) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return nil
}

func transcriptOf(s string) *string { return &s }

func newIdentificationRouter(t *testing.T) (*gin.Engine, *fakeVideoStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	videos := &fakeVideoStore{videos: map[string]*models.VideoRecord{
		"v1": {
			ID:         "v1",
			TeamID:     "team-1",
			Title:      "Slalom run",
			Status:     models.VideoStatusTranscribed,
			Transcript: transcriptOf("Watch Bob Myers carve that line."),
		},
	}}
	roster := &fakeRosterStore{students: []models.Student{
		{ID: "s1", TeamID: "team-1", Name: "Bob Myers", Active: true},
		{ID: "s2", TeamID: "team-1", Name: "Jane Smith", Active: true},
	}}
	engine := identify.NewEngine(nil, identify.DefaultPolicies(), zap.NewNop())
	svc := service.NewIdentificationService(videos, roster, engine, &fakeAuditStore{}, nil, nil, zap.NewNop())
	h := NewIdentificationHandler(svc)

	router := gin.New()
	authed := router.Group("/", func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "coach-1", Role: models.RoleCoach})
	})
	authed.POST("/videos/:id/identify", h.Identify)
	authed.POST("/videos/:id/assign", h.Assign)
	authed.DELETE("/videos/:id/assign", h.Unassign)
	return router, videos
}

func decodeVideo(t *testing.T, body []byte) models.VideoRecord {
	t.Helper()
	var envelope struct {
		Data models.VideoRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	return envelope.Data
}

func TestIdentifyEndpoint(t *testing.T) {
	router, videos := newIdentificationRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/videos/v1/identify", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	video := decodeVideo(t, w.Body.Bytes())
	assert.Equal(t, "Bob Myers", video.IdentifiedStudent)
	assert.True(t, video.IdentificationAttempted)
	assert.True(t, videos.videos["v1"].IdentificationAttempted)
}

func TestIdentifyEndpointIdempotent(t *testing.T) {
	router, videos := newIdentificationRouter(t)
	videos.videos["v1"].IdentificationAttempted = true
	videos.videos["v1"].IdentifiedStudent = "Jane Smith"

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/videos/v1/identify", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	video := decodeVideo(t, w.Body.Bytes())
	assert.Equal(t, "Jane Smith", video.IdentifiedStudent)
}

func TestIdentifyEndpointNotFound(t *testing.T) {
	router, _ := newIdentificationRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/videos/missing/identify", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "NOT_FOUND", envelope.Error.Code)
}

func TestAssignEndpoint(t *testing.T) {
	router, videos := newIdentificationRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/videos/v1/assign", strings.NewReader(`{"student_id":"s2"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	video := decodeVideo(t, w.Body.Bytes())
	assert.Equal(t, "Jane Smith", video.IdentifiedStudent)
	assert.Equal(t, float64(100), video.Confidence)
	assert.True(t, videos.videos["v1"].ManuallySelected)
}

func TestAssignEndpointRequiresStudentID(t *testing.T) {
	router, _ := newIdentificationRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/videos/v1/assign", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnassignEndpoint(t *testing.T) {
	router, videos := newIdentificationRouter(t)
	videos.videos["v1"].IdentifiedStudent = "Bob Myers"
	videos.videos["v1"].IdentificationAttempted = true

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/videos/v1/assign", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	video := decodeVideo(t, w.Body.Bytes())
	assert.Empty(t, video.IdentifiedStudent)
	assert.True(t, video.IdentificationAttempted)
}
