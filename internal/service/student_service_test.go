package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clipflow/clipflow-api/internal/models"
	appErrors "github.com/clipflow/clipflow-api/pkg/errors"
)

type mockStudentRepo struct {
	students map[string]*models.Student
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{students: make(map[string]*models.Student)}
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, s := range m.students {
		if filter.TeamID != "" && s.TeamID != filter.TeamID {
			continue
		}
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) ActiveRoster(ctx context.Context, teamID string) ([]models.Student, error) {
	var out []models.Student
	for _, s := range m.students {
		if s.TeamID == teamID && s.Active {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		copy := *s
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByEmail(ctx context.Context, teamID, email, excludeID string) (bool, error) {
	for _, s := range m.students {
		if s.TeamID == teamID && s.Email == email && s.Active && s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	copy := *student
	m.students[student.ID] = &copy
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	copy := *student
	m.students[student.ID] = &copy
	return nil
}

func (m *mockStudentRepo) Deactivate(ctx context.Context, id string) error {
	if s, ok := m.students[id]; ok {
		s.Active = false
		return nil
	}
	return sql.ErrNoRows
}

const testTeamID = "a3bb189e-8bf9-4a8b-b6f0-6d184a6e1a11"

func TestStudentServiceCreateNormalizes(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewStudentService(repo, nil, validator.New(), zap.NewNop())

	student, nameShared, err := svc.Create(context.Background(), CreateStudentRequest{
		TeamID:   testTeamID,
		Name:     "  Bob   Myers ",
		Email:    " Bob@Example.COM ",
		Nickname: "  Bobbie ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bob Myers", student.Name)
	assert.Equal(t, "bob@example.com", student.Email)
	assert.Equal(t, "Bobbie", student.Nickname)
	assert.True(t, student.Active)
	assert.False(t, nameShared)
}

func TestStudentServiceCreateRejectsDuplicateEmail(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewStudentService(repo, nil, validator.New(), zap.NewNop())

	_, _, err := svc.Create(context.Background(), CreateStudentRequest{TeamID: testTeamID, Name: "Bob Myers", Email: "bob@example.com"})
	require.NoError(t, err)

	_, _, err = svc.Create(context.Background(), CreateStudentRequest{TeamID: testTeamID, Name: "Robert Myers", Email: "BOB@example.com"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateFlagsSharedName(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewStudentService(repo, nil, validator.New(), zap.NewNop())

	_, _, err := svc.Create(context.Background(), CreateStudentRequest{TeamID: testTeamID, Name: "Jane Smith", Email: "jane1@example.com"})
	require.NoError(t, err)

	_, nameShared, err := svc.Create(context.Background(), CreateStudentRequest{TeamID: testTeamID, Name: "jane smith", Email: "jane2@example.com"})
	require.NoError(t, err)
	assert.True(t, nameShared, "same name with different casing should be flagged")
}

func TestStudentServiceUpdateKeepsOwnEmail(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewStudentService(repo, nil, validator.New(), zap.NewNop())

	student, _, err := svc.Create(context.Background(), CreateStudentRequest{TeamID: testTeamID, Name: "Bob Myers", Email: "bob@example.com"})
	require.NoError(t, err)

	updated, _, err := svc.Update(context.Background(), student.ID, UpdateStudentRequest{Name: "Bob Myers", Email: "bob@example.com", Nickname: "Bobbie"})
	require.NoError(t, err)
	assert.Equal(t, "Bobbie", updated.Nickname)
}

func TestStudentServiceDeactivate(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewStudentService(repo, nil, validator.New(), zap.NewNop())

	student, _, err := svc.Create(context.Background(), CreateStudentRequest{TeamID: testTeamID, Name: "Bob Myers", Email: "bob@example.com"})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), student.ID))
	assert.False(t, repo.students[student.ID].Active)

	// Deactivated entries free up their email for new roster entries.
	_, _, err = svc.Create(context.Background(), CreateStudentRequest{TeamID: testTeamID, Name: "Bob Myers Jr", Email: "bob@example.com"})
	require.NoError(t, err)
}

func TestStudentServiceCreateValidation(t *testing.T) {
	svc := NewStudentService(newMockStudentRepo(), nil, validator.New(), zap.NewNop())

	_, _, err := svc.Create(context.Background(), CreateStudentRequest{TeamID: testTeamID, Name: "No Email"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, _, err = svc.Create(context.Background(), CreateStudentRequest{TeamID: "not-a-uuid", Name: "Bob", Email: "bob@example.com"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRosterImportCSV(t *testing.T) {
	repo := newMockStudentRepo()
	students := NewStudentService(repo, nil, validator.New(), zap.NewNop())
	svc := NewRosterService(students, zap.NewNop())

	input := strings.Join([]string{
		"name,email,parent_email,nickname",
		"Bob Myers,bob@example.com,parent@example.com,Bobbie",
		"Jane Smith,jane@example.com,,",
		"Jane Smith,jane2@example.com,,",
		"Missing Email,,,",
	}, "\n")

	summary, err := svc.ImportCSV(context.Background(), testTeamID, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Created)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, []string{"Jane Smith"}, summary.DuplicateNames)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "row 5")
}

func TestRosterImportCSVRequiresColumns(t *testing.T) {
	svc := NewRosterService(NewStudentService(newMockStudentRepo(), nil, validator.New(), zap.NewNop()), zap.NewNop())

	_, err := svc.ImportCSV(context.Background(), testTeamID, strings.NewReader("full_name,contact\nBob,bob@example.com"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRosterExportCSV(t *testing.T) {
	repo := newMockStudentRepo()
	students := NewStudentService(repo, nil, validator.New(), zap.NewNop())
	svc := NewRosterService(students, zap.NewNop())

	_, _, err := students.Create(context.Background(), CreateStudentRequest{TeamID: testTeamID, Name: "Bob Myers", Email: "bob@example.com", Nickname: "Bobbie"})
	require.NoError(t, err)

	payload, err := svc.ExportCSV(context.Background(), testTeamID)
	require.NoError(t, err)
	output := string(payload)
	assert.Contains(t, output, "name,email,parent_email,nickname")
	assert.Contains(t, output, "Bob Myers,bob@example.com,,Bobbie")
}
