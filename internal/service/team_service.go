package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipflow/clipflow-api/internal/models"
	appErrors "github.com/clipflow/clipflow-api/pkg/errors"
)

type teamRepository interface {
	List(ctx context.Context, filter models.TeamFilter) ([]models.Team, int, error)
	FindByID(ctx context.Context, id string) (*models.Team, error)
	Create(ctx context.Context, team *models.Team) error
	Update(ctx context.Context, team *models.Team) error
	Deactivate(ctx context.Context, id string) error
}

// CreateTeamRequest represents payload for creating a team.
type CreateTeamRequest struct {
	Name    string `json:"name" validate:"required"`
	Season  string `json:"season" validate:"required"`
	CoachID string `json:"coach_id" validate:"required,uuid4"`
}

// UpdateTeamRequest payload for updating a team.
type UpdateTeamRequest struct {
	Name   string `json:"name" validate:"required"`
	Season string `json:"season" validate:"required"`
	Active *bool  `json:"active"`
}

// TeamService handles team management workflows.
type TeamService struct {
	repo      teamRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeamService creates an instance of TeamService.
func NewTeamService(repo teamRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *TeamService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TeamService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns paginated teams and pagination metadata.
func (s *TeamService) List(ctx context.Context, filter models.TeamFilter) ([]models.Team, *models.Pagination, error) {
	teams, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teams")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return teams, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a team by ID.
func (s *TeamService) Get(ctx context.Context, id string) (*models.Team, error) {
	team, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "team not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
	}
	return team, nil
}

// Create adds a new team.
func (s *TeamService) Create(ctx context.Context, req CreateTeamRequest) (*models.Team, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create team payload")
	}

	team := &models.Team{
		ID:      uuid.NewString(),
		Name:    strings.TrimSpace(req.Name),
		Season:  strings.TrimSpace(req.Season),
		CoachID: req.CoachID,
		Active:  true,
	}

	if err := s.repo.Create(ctx, team); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create team")
	}
	return team, nil
}

// Update modifies a team's attributes.
func (s *TeamService) Update(ctx context.Context, id string, req UpdateTeamRequest) (*models.Team, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update team payload")
	}

	team, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	team.Name = strings.TrimSpace(req.Name)
	team.Season = strings.TrimSpace(req.Season)
	if req.Active != nil {
		team.Active = *req.Active
	}

	if err := s.repo.Update(ctx, team); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update team")
	}

	s.invalidateDashboards(ctx, team.ID)
	return team, nil
}

// Deactivate soft-deletes a team.
func (s *TeamService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate team")
	}
	s.invalidateDashboards(ctx, id)
	return nil
}

func (s *TeamService) invalidateDashboards(ctx context.Context, teamID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateDashboards(ctx, teamID); err != nil {
		s.logger.Warn("failed to invalidate team dashboards", zap.String("team_id", teamID), zap.Error(err))
	}
}
