package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clipflow/clipflow-api/internal/models"
	"github.com/clipflow/clipflow-api/pkg/config"
	appErrors "github.com/clipflow/clipflow-api/pkg/errors"
	"github.com/clipflow/clipflow-api/pkg/storage"
)

type mockVideoRepo struct {
	videos map[string]*models.VideoRecord
}

func newMockVideoRepo() *mockVideoRepo {
	return &mockVideoRepo{videos: make(map[string]*models.VideoRecord)}
}

func (m *mockVideoRepo) List(ctx context.Context, filter models.VideoFilter) ([]models.VideoRecord, int, error) {
	var out []models.VideoRecord
	for _, v := range m.videos {
		if filter.TeamID != "" && v.TeamID != filter.TeamID {
			continue
		}
		out = append(out, *v)
	}
	return out, len(out), nil
}

func (m *mockVideoRepo) FindByID(ctx context.Context, id string) (*models.VideoRecord, error) {
	if v, ok := m.videos[id]; ok {
		copy := *v
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockVideoRepo) Create(ctx context.Context, video *models.VideoRecord) error {
	copy := *video
	m.videos[video.ID] = &copy
	return nil
}

func (m *mockVideoRepo) Update(ctx context.Context, video *models.VideoRecord) error {
	copy := *video
	m.videos[video.ID] = &copy
	return nil
}

func (m *mockVideoRepo) Delete(ctx context.Context, id string) error {
	delete(m.videos, id)
	return nil
}

type recordingTranscriber struct {
	requests []string
}

func (r *recordingTranscriber) RequestTranscription(ctx context.Context, video *models.VideoRecord) error {
	r.requests = append(r.requests, video.ID)
	return nil
}

func newVideoFixture(t *testing.T) (*VideoService, *mockVideoRepo, *recordingTranscriber) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	repo := newMockVideoRepo()
	transcriber := &recordingTranscriber{}
	cfg := config.UploadsConfig{
		MaxFileSizeBytes: 1024,
		AllowedMIMEs:     []string{"video/mp4", "video/quicktime"},
	}
	svc := NewVideoService(repo, store, signer, transcriber, cfg, validator.New(), zap.NewNop())
	return svc, repo, transcriber
}

func TestVideoUpload(t *testing.T) {
	svc, repo, transcriber := newVideoFixture(t)

	video, err := svc.Upload(context.Background(), UploadVideoRequest{
		TeamID:      testTeamID,
		Title:       "  Morning run ",
		Filename:    "run.MP4",
		ContentType: "video/mp4",
		Size:        128,
		Reader:      strings.NewReader(strings.Repeat("x", 128)),
	}, "coach-1")
	require.NoError(t, err)
	assert.Equal(t, "Morning run", video.Title)
	assert.Equal(t, models.VideoStatusUploaded, video.Status)
	assert.Equal(t, "coach-1", video.UploadedBy)
	assert.True(t, strings.HasSuffix(video.StoragePath, ".mp4"))
	assert.Contains(t, repo.videos, video.ID)
	assert.Equal(t, []string{video.ID}, transcriber.requests)
}

func TestVideoUploadRejectsOversized(t *testing.T) {
	svc, _, _ := newVideoFixture(t)

	_, err := svc.Upload(context.Background(), UploadVideoRequest{
		TeamID:      testTeamID,
		Title:       "Too big",
		Filename:    "run.mp4",
		ContentType: "video/mp4",
		Size:        4096,
		Reader:      strings.NewReader("x"),
	}, "coach-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPayloadTooLarge.Code, appErrors.FromError(err).Code)
}

func TestVideoUploadRejectsUnsupportedMIME(t *testing.T) {
	svc, _, _ := newVideoFixture(t)

	_, err := svc.Upload(context.Background(), UploadVideoRequest{
		TeamID:      testTeamID,
		Title:       "Not a video",
		Filename:    "doc.pdf",
		ContentType: "application/pdf",
		Size:        10,
		Reader:      strings.NewReader("x"),
	}, "coach-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnsupportedMedia.Code, appErrors.FromError(err).Code)
}

func TestVideoStreamRoundTrip(t *testing.T) {
	svc, _, _ := newVideoFixture(t)

	video, err := svc.Upload(context.Background(), UploadVideoRequest{
		TeamID:      testTeamID,
		Title:       "Morning run",
		Filename:    "run.mp4",
		ContentType: "video/mp4",
		Size:        16,
		Reader:      strings.NewReader("0123456789abcdef"),
	}, "coach-1")
	require.NoError(t, err)

	grant, err := svc.StreamGrant(context.Background(), video.ID)
	require.NoError(t, err)
	require.NotEmpty(t, grant.Token)

	resolved, file, err := svc.ResolveStream(context.Background(), grant.Token)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	assert.Equal(t, video.ID, resolved.ID)

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", string(content))
}

func TestVideoResolveStreamRejectsGarbageToken(t *testing.T) {
	svc, _, _ := newVideoFixture(t)

	_, _, err := svc.ResolveStream(context.Background(), "not.a.valid.token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestVideoDeleteRemovesFile(t *testing.T) {
	svc, repo, _ := newVideoFixture(t)

	video, err := svc.Upload(context.Background(), UploadVideoRequest{
		TeamID:      testTeamID,
		Title:       "Morning run",
		Filename:    "run.mp4",
		ContentType: "video/mp4",
		Size:        4,
		Reader:      strings.NewReader("data"),
	}, "coach-1")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), video.ID))
	assert.NotContains(t, repo.videos, video.ID)

	_, err = svc.Get(context.Background(), video.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
