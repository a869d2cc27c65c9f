package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipflow/clipflow-api/internal/models"
	"github.com/clipflow/clipflow-api/pkg/config"
	appErrors "github.com/clipflow/clipflow-api/pkg/errors"
	"github.com/clipflow/clipflow-api/pkg/storage"
)

type videoRepository interface {
	List(ctx context.Context, filter models.VideoFilter) ([]models.VideoRecord, int, error)
	FindByID(ctx context.Context, id string) (*models.VideoRecord, error)
	Create(ctx context.Context, video *models.VideoRecord) error
	Update(ctx context.Context, video *models.VideoRecord) error
	Delete(ctx context.Context, id string) error
}

type transcriptionRequester interface {
	RequestTranscription(ctx context.Context, video *models.VideoRecord) error
}

// UploadVideoRequest carries a multipart upload into the service layer.
type UploadVideoRequest struct {
	TeamID      string `validate:"required,uuid4"`
	Title       string `validate:"required"`
	Filename    string `validate:"required"`
	ContentType string
	Size        int64
	Reader      io.Reader `validate:"required"`
}

// UpdateVideoRequest payload for editing video metadata.
type UpdateVideoRequest struct {
	Title string `json:"title" validate:"required"`
}

// StreamGrant is a short-lived playback authorization.
type StreamGrant struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VideoService handles clip upload, playback, and lifecycle.
type VideoService struct {
	repo        videoRepository
	store       *storage.LocalStorage
	signer      *storage.SignedURLSigner
	transcriber transcriptionRequester
	cfg         config.UploadsConfig
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewVideoService creates an instance of VideoService.
func NewVideoService(repo videoRepository, store *storage.LocalStorage, signer *storage.SignedURLSigner, transcriber transcriptionRequester, cfg config.UploadsConfig, validate *validator.Validate, logger *zap.Logger) *VideoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &VideoService{
		repo:        repo,
		store:       store,
		signer:      signer,
		transcriber: transcriber,
		cfg:         cfg,
		validator:   validate,
		logger:      logger,
	}
}

// List returns paginated video records and pagination metadata.
func (s *VideoService) List(ctx context.Context, filter models.VideoFilter) ([]models.VideoRecord, *models.Pagination, error) {
	videos, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list videos")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return videos, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a video record by ID.
func (s *VideoService) Get(ctx context.Context, id string) (*models.VideoRecord, error) {
	video, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "video not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load video")
	}
	return video, nil
}

// Upload stores the clip on disk, records it, and kicks off transcription.
func (s *VideoService) Upload(ctx context.Context, req UploadVideoRequest, uploaderID string) (*models.VideoRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upload payload")
	}
	if req.Size > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds the %d byte upload limit", s.cfg.MaxFileSizeBytes))
	}
	if !s.mimeAllowed(req.ContentType) {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, "only video uploads are accepted")
	}

	videoID := uuid.NewString()
	relPath := path.Join(req.TeamID, videoID+fileExtension(req.Filename))

	// LimitReader backstops clients that lie about Content-Length.
	limited := io.LimitReader(req.Reader, s.cfg.MaxFileSizeBytes+1)
	if _, err := s.store.SaveStream(relPath, limited); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store video file")
	}

	video := &models.VideoRecord{
		ID:          videoID,
		TeamID:      req.TeamID,
		Title:       strings.TrimSpace(req.Title),
		StoragePath: relPath,
		Status:      models.VideoStatusUploaded,
		UploadedBy:  uploaderID,
	}
	if err := s.repo.Create(ctx, video); err != nil {
		if cleanupErr := s.store.Delete(relPath); cleanupErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("path", relPath), zap.Error(cleanupErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record video")
	}

	if s.transcriber != nil {
		if err := s.transcriber.RequestTranscription(ctx, video); err != nil {
			s.logger.Warn("failed to request transcription", zap.String("video_id", video.ID), zap.Error(err))
		}
	}

	return video, nil
}

// Update modifies video metadata.
func (s *VideoService) Update(ctx context.Context, id string, req UpdateVideoRequest) (*models.VideoRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}
	video, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	video.Title = strings.TrimSpace(req.Title)
	if err := s.repo.Update(ctx, video); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update video")
	}
	return video, nil
}

// Delete removes the record and the stored file.
func (s *VideoService) Delete(ctx context.Context, id string) error {
	video, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete video")
	}
	if err := s.store.Delete(video.StoragePath); err != nil {
		s.logger.Warn("failed to remove video file", zap.String("path", video.StoragePath), zap.Error(err))
	}
	return nil
}

// StreamGrant issues a signed, expiring playback token for the clip.
func (s *VideoService) StreamGrant(ctx context.Context, id string) (*StreamGrant, error) {
	video, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(video.ID, video.StoragePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign playback token")
	}
	return &StreamGrant{Token: token, ExpiresAt: expiresAt}, nil
}

// ResolveStream validates a playback token and opens the underlying file.
// The caller owns the returned handle.
func (s *VideoService) ResolveStream(ctx context.Context, token string) (*models.VideoRecord, *os.File, error) {
	videoID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid playback token")
	}
	video, err := s.Get(ctx, videoID)
	if err != nil {
		return nil, nil, err
	}
	if video.StoragePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "playback token does not match this video")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "video file missing")
	}
	return video, file, nil
}

func (s *VideoService) mimeAllowed(contentType string) bool {
	if len(s.cfg.AllowedMIMEs) == 0 {
		return strings.HasPrefix(contentType, "video/")
	}
	normalized := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(normalized, ";"); i >= 0 {
		normalized = strings.TrimSpace(normalized[:i])
	}
	for _, allowed := range s.cfg.AllowedMIMEs {
		if normalized == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func fileExtension(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		return ".mp4"
	}
	return ext
}
