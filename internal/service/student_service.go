package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipflow/clipflow-api/internal/identify"
	"github.com/clipflow/clipflow-api/internal/models"
	appErrors "github.com/clipflow/clipflow-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	ActiveRoster(ctx context.Context, teamID string) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByEmail(ctx context.Context, teamID, email, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
}

// CreateStudentRequest represents payload for adding a roster entry.
type CreateStudentRequest struct {
	TeamID      string `json:"team_id" validate:"required,uuid4"`
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	ParentEmail string `json:"parent_email" validate:"omitempty,email"`
	Nickname    string `json:"nickname"`
}

// UpdateStudentRequest payload for editing a roster entry.
type UpdateStudentRequest struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	ParentEmail string `json:"parent_email" validate:"omitempty,email"`
	Nickname    string `json:"nickname"`
	Active      *bool  `json:"active"`
}

// StudentService handles roster management workflows.
type StudentService struct {
	repo      studentRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService creates an instance of StudentService.
func NewStudentService(repo studentRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns paginated roster entries and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return students, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Roster returns a team's active students in insertion order.
func (s *StudentService) Roster(ctx context.Context, teamID string) ([]models.Student, error) {
	roster, err := s.repo.ActiveRoster(ctx, teamID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return roster, nil
}

// Get returns a student by ID.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create adds a roster entry. Duplicate names within a team are allowed and
// reported through the returned flag; duplicate emails are rejected.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, bool, error) {
	// Normalize before validating so boundary inputs like padded or
	// mixed-case emails pass the format checks instead of bouncing.
	req.Name = normalizeName(req.Name)
	req.Email = normalizeEmail(req.Email)
	req.ParentEmail = normalizeEmail(req.ParentEmail)
	req.Nickname = normalizeName(req.Nickname)
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create student payload")
	}

	student := &models.Student{
		ID:          uuid.NewString(),
		TeamID:      req.TeamID,
		Name:        req.Name,
		Email:       req.Email,
		ParentEmail: req.ParentEmail,
		Nickname:    req.Nickname,
		Active:      true,
	}

	exists, err := s.repo.ExistsByEmail(ctx, student.TeamID, student.Email, "")
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}
	if exists {
		return nil, false, appErrors.Clone(appErrors.ErrConflict, "a student with this email already exists on the team")
	}

	nameShared, err := s.nameShared(ctx, student.TeamID, student.Name, student.ID)
	if err != nil {
		return nil, false, err
	}

	if err := s.repo.Create(ctx, student); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	if nameShared {
		s.logger.Info("roster entry shares a name with an existing student",
			zap.String("team_id", student.TeamID), zap.String("name", student.Name))
	}
	s.invalidateDashboards(ctx, student.TeamID)
	return student, nameShared, nil
}

// Update modifies a roster entry.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, bool, error) {
	req.Name = normalizeName(req.Name)
	req.Email = normalizeEmail(req.Email)
	req.ParentEmail = normalizeEmail(req.ParentEmail)
	req.Nickname = normalizeName(req.Nickname)
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update student payload")
	}

	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}

	exists, err := s.repo.ExistsByEmail(ctx, student.TeamID, req.Email, student.ID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}
	if exists {
		return nil, false, appErrors.Clone(appErrors.ErrConflict, "a student with this email already exists on the team")
	}

	student.Name = req.Name
	student.Email = req.Email
	student.ParentEmail = req.ParentEmail
	student.Nickname = req.Nickname
	if req.Active != nil {
		student.Active = *req.Active
	}

	nameShared, err := s.nameShared(ctx, student.TeamID, student.Name, student.ID)
	if err != nil {
		return nil, false, err
	}

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	s.invalidateDashboards(ctx, student.TeamID)
	return student, nameShared, nil
}

// Deactivate removes a student from the active roster without deleting
// historical identifications.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	student, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	s.invalidateDashboards(ctx, student.TeamID)
	return nil
}

// nameShared reports whether another active roster entry already uses the
// name. The entry identified by excludeID is ignored.
func (s *StudentService) nameShared(ctx context.Context, teamID, name, excludeID string) (bool, error) {
	roster, err := s.repo.ActiveRoster(ctx, teamID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	others := make([]models.Student, 0, len(roster))
	for _, entry := range roster {
		if entry.ID == excludeID {
			continue
		}
		others = append(others, entry)
	}
	others = append(others, models.Student{Name: name, Active: true})
	return identify.DetectDuplicate(name, others), nil
}

func (s *StudentService) invalidateDashboards(ctx context.Context, teamID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateDashboards(ctx, teamID); err != nil {
		s.logger.Warn("failed to invalidate team dashboards", zap.String("team_id", teamID), zap.Error(err))
	}
}

// normalizeName trims surrounding whitespace; empty means absent.
func normalizeName(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// normalizeEmail lowercases the trimmed address.
func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
