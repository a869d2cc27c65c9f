package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipflow/clipflow-api/internal/models"
)

func newVideoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func videoRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "team_id", "title", "storage_path", "status", "transcript", "identified_student",
		"llm_identified_student", "confidence", "manually_selected", "identification_attempted",
		"duplicate_student", "uploaded_by", "created_at", "updated_at",
	})
}

func TestVideoRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newVideoMock(t)
	defer cleanup()
	repo := NewVideoRepository(db)

	transcript := "here comes Bobbie"
	rows := videoRows().AddRow(
		"v1", "team-1", "Morning run", "clips/v1.mp4", "transcribed", transcript, "Bob Myers",
		"Bob Myers", 85.0, false, true, false, "coach-1", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM videos WHERE id = $1")).
		WithArgs("v1").
		WillReturnRows(rows)

	video, err := repo.FindByID(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, "Bob Myers", video.IdentifiedStudent)
	assert.True(t, video.IdentificationAttempted)
	require.NotNil(t, video.Transcript)
	assert.Equal(t, transcript, *video.Transcript)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVideoRepositorySaveIdentification(t *testing.T) {
	db, mock, cleanup := newVideoMock(t)
	defer cleanup()
	repo := NewVideoRepository(db)

	mock.ExpectExec("UPDATE videos SET identified_student").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	video := &models.VideoRecord{
		ID:                      "v1",
		IdentifiedStudent:       "Bob Myers",
		LLMIdentifiedStudent:    "Bob Myers",
		Confidence:              85,
		IdentificationAttempted: true,
	}
	err := repo.SaveIdentification(context.Background(), video)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVideoRepositoryCountUnattributed(t *testing.T) {
	db, mock, cleanup := newVideoMock(t)
	defer cleanup()
	repo := NewVideoRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM videos WHERE team_id = $1 AND identification_attempted = true AND identified_student = ''")).
		WithArgs("team-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	total, err := repo.CountUnattributed(context.Background(), "team-1")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVideoRepositorySetTranscript(t *testing.T) {
	db, mock, cleanup := newVideoMock(t)
	defer cleanup()
	repo := NewVideoRepository(db)

	mock.ExpectExec("UPDATE videos SET transcript").
		WithArgs("v1", "a transcript", models.VideoStatusTranscribed, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetTranscript(context.Background(), "v1", "a transcript", models.VideoStatusTranscribed)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
