package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipflow/clipflow-api/internal/models"
	"github.com/clipflow/clipflow-api/internal/transcription"
	appErrors "github.com/clipflow/clipflow-api/pkg/errors"
	"github.com/clipflow/clipflow-api/pkg/jobs"
)

// JobTypeIdentify is enqueued once a transcript lands so the identification
// pipeline runs off the request path.
const JobTypeIdentify = "video.identify"

type transcriptWriter interface {
	FindByID(ctx context.Context, id string) (*models.VideoRecord, error)
	SetTranscript(ctx context.Context, id, transcript string, status models.VideoStatus) error
	SetStatus(ctx context.Context, id string, status models.VideoStatus) error
}

type rosterChecker interface {
	ActiveRoster(ctx context.Context, teamID string) ([]models.Student, error)
}

type transcriptionProvider interface {
	Configured() bool
	Submit(ctx context.Context, mediaURL string) (string, error)
	Fetch(ctx context.Context, jobID string) (transcription.Job, error)
}

// TranscriptionService moves clips through the speech-to-text pipeline.
// Transcripts arrive either from the provider's polling loop or through the
// webhook endpoint; both paths converge on IngestTranscript.
type TranscriptionService struct {
	videos   transcriptWriter
	roster   rosterChecker
	provider transcriptionProvider
	queue    *jobs.Queue
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]string // provider job ID -> video ID
}

// NewTranscriptionService creates an instance of TranscriptionService.
func NewTranscriptionService(videos transcriptWriter, roster rosterChecker, provider transcriptionProvider, queue *jobs.Queue, logger *zap.Logger) *TranscriptionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranscriptionService{
		videos:   videos,
		roster:   roster,
		provider: provider,
		queue:    queue,
		logger:   logger,
		pending:  make(map[string]string),
	}
}

// RequestTranscription submits the clip to the provider. Without a
// configured provider the clip stays in the transcribing state until a
// webhook delivers the transcript.
func (s *TranscriptionService) RequestTranscription(ctx context.Context, video *models.VideoRecord) error {
	if err := s.videos.SetStatus(ctx, video.ID, models.VideoStatusTranscribing); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark video transcribing")
	}

	if s.provider == nil || !s.provider.Configured() {
		s.logger.Debug("transcription provider disabled, awaiting webhook", zap.String("video_id", video.ID))
		return nil
	}

	jobID, err := s.provider.Submit(ctx, video.StoragePath)
	if err != nil {
		s.logger.Warn("transcription submit failed, awaiting webhook", zap.String("video_id", video.ID), zap.Error(err))
		return nil
	}

	s.mu.Lock()
	s.pending[jobID] = video.ID
	s.mu.Unlock()
	s.logger.Info("transcription submitted", zap.String("video_id", video.ID), zap.String("job_id", jobID))
	return nil
}

// IngestTranscript stores a transcript and enqueues identification. An empty
// transcript still advances the pipeline; identification will record an
// attempted, unmatched result. Teams with no active roster skip the enqueue
// entirely: the engine rejects empty rosters, so the job would only burn
// retries.
func (s *TranscriptionService) IngestTranscript(ctx context.Context, videoID, transcript string) error {
	video, err := s.videos.FindByID(ctx, videoID)
	if err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "video not found")
	}

	transcript = strings.TrimSpace(transcript)
	if err := s.videos.SetTranscript(ctx, videoID, transcript, models.VideoStatusTranscribed); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store transcript")
	}

	if s.queue == nil {
		return nil
	}
	if s.roster != nil {
		roster, err := s.roster.ActiveRoster(ctx, video.TeamID)
		if err == nil && len(roster) == 0 {
			s.logger.Warn("skipping identification, roster has no active students",
				zap.String("video_id", videoID), zap.String("team_id", video.TeamID))
			return nil
		}
	}
	if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: JobTypeIdentify, Payload: videoID}); err != nil {
		s.logger.Warn("failed to enqueue identification", zap.String("video_id", videoID), zap.Error(err))
	}
	return nil
}

// MarkFailed records a provider-side transcription failure.
func (s *TranscriptionService) MarkFailed(ctx context.Context, videoID, reason string) error {
	if err := s.videos.SetStatus(ctx, videoID, models.VideoStatusFailed); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark video failed")
	}
	s.logger.Warn("transcription failed", zap.String("video_id", videoID), zap.String("reason", reason))
	return nil
}

// Poll checks every outstanding provider job once. Completed jobs are
// ingested, failed jobs marked, the rest stay pending.
func (s *TranscriptionService) Poll(ctx context.Context) {
	s.mu.Lock()
	snapshot := make(map[string]string, len(s.pending))
	for jobID, videoID := range s.pending {
		snapshot[jobID] = videoID
	}
	s.mu.Unlock()

	for jobID, videoID := range snapshot {
		job, err := s.provider.Fetch(ctx, jobID)
		if err != nil {
			s.logger.Warn("transcription poll failed", zap.String("job_id", jobID), zap.Error(err))
			continue
		}
		switch job.Status {
		case transcription.StatusCompleted:
			if err := s.IngestTranscript(ctx, videoID, job.Transcript); err != nil {
				s.logger.Warn("failed to ingest polled transcript", zap.String("video_id", videoID), zap.Error(err))
				continue
			}
			s.forget(jobID)
		case transcription.StatusError:
			if err := s.MarkFailed(ctx, videoID, job.Error); err != nil {
				s.logger.Warn("failed to mark transcription failure", zap.String("video_id", videoID), zap.Error(err))
				continue
			}
			s.forget(jobID)
		}
	}
}

// Run polls the provider on the given interval until the context ends.
func (s *TranscriptionService) Run(ctx context.Context, interval time.Duration) {
	if s.provider == nil || !s.provider.Configured() {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

func (s *TranscriptionService) forget(jobID string) {
	s.mu.Lock()
	delete(s.pending, jobID)
	s.mu.Unlock()
}
