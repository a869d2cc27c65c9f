package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/clipflow/clipflow-api/internal/identify"
	"github.com/clipflow/clipflow-api/internal/models"
	appErrors "github.com/clipflow/clipflow-api/pkg/errors"
)

type identificationVideoRepository interface {
	FindByID(ctx context.Context, id string) (*models.VideoRecord, error)
	SaveIdentification(ctx context.Context, video *models.VideoRecord) error
}

type rosterLoader interface {
	ActiveRoster(ctx context.Context, teamID string) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// IdentificationService drives transcript-to-student attribution: automatic
// runs through the engine, manual assignments from coaches, and the
// bookkeeping both share.
type IdentificationService struct {
	videos   identificationVideoRepository
	students rosterLoader
	engine   *identify.Engine
	audit    auditWriter
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewIdentificationService creates an instance of IdentificationService.
func NewIdentificationService(videos identificationVideoRepository, students rosterLoader, engine *identify.Engine, audit auditWriter, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *IdentificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentificationService{
		videos:   videos,
		students: students,
		engine:   engine,
		audit:    audit,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
	}
}

// IdentifyVideo runs automatic identification for a clip. The attempted flag
// makes the operation idempotent: once a clip has been through the engine it
// will not run again unless force is set. Force reruns overwrite the prior
// automatic result but never invent history; the stored result always
// reflects the latest run.
func (s *IdentificationService) IdentifyVideo(ctx context.Context, videoID string, force bool) (*models.VideoRecord, error) {
	video, err := s.videos.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "video not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load video")
	}

	if video.IdentificationAttempted && !force {
		return video, nil
	}

	// A nil transcript means the clip has not been through transcription;
	// an empty string is a finished transcription with nothing in it and
	// still consumes the attempt.
	if video.Transcript == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "video has no transcript yet")
	}

	roster, err := s.students.ActiveRoster(ctx, video.TeamID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	transcript := *video.Transcript

	start := time.Now()
	result, err := s.engine.Identify(ctx, transcript, roster)
	if err != nil {
		return nil, err
	}
	if result.Pathway == models.PathwayLLM && s.metrics != nil {
		s.metrics.ObserveLLMRequest(time.Since(start))
	}

	accepted := s.engine.Accept(result)

	video.IdentifiedStudent = accepted.IdentifiedStudent
	video.LLMIdentifiedStudent = result.IdentifiedStudent
	video.Confidence = accepted.Confidence
	video.ManuallySelected = false
	video.IdentificationAttempted = true
	video.DuplicateStudent = identify.DetectDuplicate(accepted.IdentifiedStudent, roster)

	if err := s.videos.SaveIdentification(ctx, video); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save identification")
	}

	s.recordAttempt(string(result.Pathway), accepted.IdentifiedStudent != "")
	s.logger.Info("identification completed",
		zap.String("video_id", video.ID),
		zap.String("pathway", string(result.Pathway)),
		zap.String("identified_student", accepted.IdentifiedStudent),
		zap.Float64("confidence", accepted.Confidence),
		zap.Bool("duplicate", video.DuplicateStudent))

	s.invalidateDashboards(ctx, video.TeamID)
	return video, nil
}

// AssignStudent manually attributes a clip to a roster student. The manual
// pathway always records full confidence, and the stored automatic guess is
// left untouched so the override remains auditable. ManuallySelected is set
// only when the coach's choice disagrees with the automatic guess.
func (s *IdentificationService) AssignStudent(ctx context.Context, videoID, studentID, actorID string, meta models.LoginRequest) (*models.VideoRecord, error) {
	video, err := s.videos.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "video not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load video")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.TeamID != video.TeamID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is not on this video's team")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is no longer on the active roster")
	}

	roster, err := s.students.ActiveRoster(ctx, video.TeamID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	previous := video.IdentifiedStudent

	video.IdentifiedStudent = student.Name
	video.Confidence = identify.ManualConfidence
	video.ManuallySelected = student.Name != video.LLMIdentifiedStudent
	video.IdentificationAttempted = true
	video.DuplicateStudent = identify.DetectDuplicate(student.Name, roster)

	if err := s.videos.SaveIdentification(ctx, video); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save assignment")
	}

	s.recordAttempt(string(models.PathwayManual), true)
	s.writeAudit(ctx, actorID, video.ID, meta, previous, student.Name)
	s.invalidateDashboards(ctx, video.TeamID)
	return video, nil
}

// Unassign clears the attribution while keeping the clip marked as
// attempted, so it shows up in the unattributed review list rather than
// re-entering the automatic pipeline.
func (s *IdentificationService) Unassign(ctx context.Context, videoID, actorID string, meta models.LoginRequest) (*models.VideoRecord, error) {
	video, err := s.videos.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "video not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load video")
	}

	previous := video.IdentifiedStudent

	video.IdentifiedStudent = ""
	video.Confidence = 0
	video.ManuallySelected = video.LLMIdentifiedStudent != ""
	video.IdentificationAttempted = true
	video.DuplicateStudent = false

	if err := s.videos.SaveIdentification(ctx, video); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear assignment")
	}

	s.recordAttempt(string(models.PathwayManual), false)
	s.writeAudit(ctx, actorID, video.ID, meta, previous, "")
	s.invalidateDashboards(ctx, video.TeamID)
	return video, nil
}

func (s *IdentificationService) recordAttempt(pathway string, matched bool) {
	if s.metrics == nil {
		return
	}
	outcome := "unmatched"
	if matched {
		outcome = "matched"
	}
	s.metrics.RecordIdentification(pathway, outcome)
}

func (s *IdentificationService) writeAudit(ctx context.Context, actorID, videoID string, meta models.LoginRequest, previous, current string) {
	if s.audit == nil {
		return
	}
	oldPayload, _ := json.Marshal(map[string]interface{}{"identified_student": previous})
	newPayload, _ := json.Marshal(map[string]interface{}{"identified_student": current})
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionManualAssign,
		Resource:   "videos",
		ResourceID: &videoID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record assignment audit log", zap.Error(err))
	}
}

func (s *IdentificationService) invalidateDashboards(ctx context.Context, teamID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateDashboards(ctx, teamID); err != nil {
		s.logger.Warn("failed to invalidate team dashboards", zap.String("team_id", teamID), zap.Error(err))
	}
}
