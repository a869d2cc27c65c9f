package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clipflow/clipflow-api/internal/models"
	"github.com/clipflow/clipflow-api/internal/transcription"
	"github.com/clipflow/clipflow-api/pkg/jobs"
)

type mockTranscriptStore struct {
	videos map[string]*models.VideoRecord
}

func (m *mockTranscriptStore) FindByID(ctx context.Context, id string) (*models.VideoRecord, error) {
	if v, ok := m.videos[id]; ok {
		copy := *v
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTranscriptStore) SetTranscript(ctx context.Context, id, transcript string, status models.VideoStatus) error {
	if v, ok := m.videos[id]; ok {
		v.Transcript = &transcript
		v.Status = status
		return nil
	}
	return sql.ErrNoRows
}

func (m *mockTranscriptStore) SetStatus(ctx context.Context, id string, status models.VideoStatus) error {
	if v, ok := m.videos[id]; ok {
		v.Status = status
		return nil
	}
	return sql.ErrNoRows
}

type fakeProvider struct {
	configured bool
	submitted  []string
	jobs       map[string]transcription.Job
}

func (f *fakeProvider) Configured() bool { return f.configured }

func (f *fakeProvider) Submit(ctx context.Context, mediaURL string) (string, error) {
	f.submitted = append(f.submitted, mediaURL)
	return "job-1", nil
}

func (f *fakeProvider) Fetch(ctx context.Context, jobID string) (transcription.Job, error) {
	return f.jobs[jobID], nil
}

func TestRequestTranscriptionWithoutProvider(t *testing.T) {
	store := &mockTranscriptStore{videos: map[string]*models.VideoRecord{
		"v1": {ID: "v1", Status: models.VideoStatusUploaded, StoragePath: "team/v1.mp4"},
	}}
	svc := NewTranscriptionService(store, nil, nil, nil, zap.NewNop())

	err := svc.RequestTranscription(context.Background(), store.videos["v1"])
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusTranscribing, store.videos["v1"].Status)
}

func TestIngestTranscriptEnqueuesIdentification(t *testing.T) {
	store := &mockTranscriptStore{videos: map[string]*models.VideoRecord{
		"v1": {ID: "v1", Status: models.VideoStatusTranscribing},
	}}

	received := make(chan jobs.Job, 1)
	queue := jobs.NewQueue("identify", func(ctx context.Context, job jobs.Job) error {
		received <- job
		return nil
	}, jobs.QueueConfig{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	svc := NewTranscriptionService(store, nil, nil, queue, zap.NewNop())
	require.NoError(t, svc.IngestTranscript(context.Background(), "v1", "  Nice turns, Bob.  "))

	assert.Equal(t, models.VideoStatusTranscribed, store.videos["v1"].Status)
	require.NotNil(t, store.videos["v1"].Transcript)
	assert.Equal(t, "Nice turns, Bob.", *store.videos["v1"].Transcript)

	select {
	case job := <-received:
		assert.Equal(t, JobTypeIdentify, job.Type)
		assert.Equal(t, "v1", job.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("identification job was never enqueued")
	}
}

func TestIngestTranscriptSkipsIdentificationWithoutRoster(t *testing.T) {
	store := &mockTranscriptStore{videos: map[string]*models.VideoRecord{
		"v1": {ID: "v1", TeamID: "team-empty", Status: models.VideoStatusTranscribing},
	}}
	roster := &mockRoster{}

	received := make(chan jobs.Job, 1)
	queue := jobs.NewQueue("identify", func(ctx context.Context, job jobs.Job) error {
		received <- job
		return nil
	}, jobs.QueueConfig{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	svc := NewTranscriptionService(store, roster, nil, queue, zap.NewNop())
	require.NoError(t, svc.IngestTranscript(context.Background(), "v1", "Nobody to match."))

	// Transcript still lands; only the doomed identification job is skipped.
	assert.Equal(t, models.VideoStatusTranscribed, store.videos["v1"].Status)
	select {
	case job := <-received:
		t.Fatalf("unexpected identification job %v for an empty roster", job)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestIngestTranscriptUnknownVideo(t *testing.T) {
	store := &mockTranscriptStore{videos: map[string]*models.VideoRecord{}}
	svc := NewTranscriptionService(store, nil, nil, nil, zap.NewNop())

	err := svc.IngestTranscript(context.Background(), "missing", "text")
	require.Error(t, err)
}

func TestPollIngestsCompletedJobs(t *testing.T) {
	store := &mockTranscriptStore{videos: map[string]*models.VideoRecord{
		"v1": {ID: "v1", Status: models.VideoStatusUploaded, StoragePath: "team/v1.mp4"},
	}}
	provider := &fakeProvider{
		configured: true,
		jobs: map[string]transcription.Job{
			"job-1": {ID: "job-1", Status: transcription.StatusCompleted, Transcript: "Bob crushed it"},
		},
	}
	svc := NewTranscriptionService(store, nil, provider, nil, zap.NewNop())

	require.NoError(t, svc.RequestTranscription(context.Background(), store.videos["v1"]))
	assert.Equal(t, []string{"team/v1.mp4"}, provider.submitted)

	svc.Poll(context.Background())
	assert.Equal(t, models.VideoStatusTranscribed, store.videos["v1"].Status)
	require.NotNil(t, store.videos["v1"].Transcript)
	assert.Equal(t, "Bob crushed it", *store.videos["v1"].Transcript)

	// Completed jobs drop out of the pending set.
	svc.Poll(context.Background())
	svc.mu.Lock()
	assert.Empty(t, svc.pending)
	svc.mu.Unlock()
}

func TestPollMarksFailedJobs(t *testing.T) {
	store := &mockTranscriptStore{videos: map[string]*models.VideoRecord{
		"v1": {ID: "v1", Status: models.VideoStatusUploaded, StoragePath: "team/v1.mp4"},
	}}
	provider := &fakeProvider{
		configured: true,
		jobs: map[string]transcription.Job{
			"job-1": {ID: "job-1", Status: transcription.StatusError, Error: "audio unreadable"},
		},
	}
	svc := NewTranscriptionService(store, nil, provider, nil, zap.NewNop())

	require.NoError(t, svc.RequestTranscription(context.Background(), store.videos["v1"]))
	svc.Poll(context.Background())
	assert.Equal(t, models.VideoStatusFailed, store.videos["v1"].Status)
}
