package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/clipflow/clipflow-api/internal/models"
	appErrors "github.com/clipflow/clipflow-api/pkg/errors"
)

type dashboardStudentRepository interface {
	ActiveRoster(ctx context.Context, teamID string) ([]models.Student, error)
	FindActiveByEmail(ctx context.Context, email string) ([]models.Student, error)
	FindActiveByParentEmail(ctx context.Context, parentEmail string) ([]models.Student, error)
}

type dashboardVideoRepository interface {
	List(ctx context.Context, filter models.VideoFilter) ([]models.VideoRecord, int, error)
	CountUnattributed(ctx context.Context, teamID string) (int, error)
}

// StudentClipCount pairs a roster student with their attributed clip total.
type StudentClipCount struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Clips     int    `json:"clips"`
}

// CoachDashboard summarises a team for its coach.
type CoachDashboard struct {
	TeamID       string               `json:"team_id"`
	RosterSize   int                  `json:"roster_size"`
	TotalVideos  int                  `json:"total_videos"`
	Unattributed int                  `json:"unattributed"`
	StudentClips []StudentClipCount   `json:"student_clips"`
	RecentVideos []models.VideoRecord `json:"recent_videos"`
	GeneratedAt  time.Time            `json:"generated_at"`
}

// StudentFeed lists the clips attributed to one student on one team.
type StudentFeed struct {
	Student models.Student       `json:"student"`
	Videos  []models.VideoRecord `json:"videos"`
}

// StudentDashboard is the clip feed for a logged-in student, spanning every
// team they ski for.
type StudentDashboard struct {
	Feeds       []StudentFeed `json:"feeds"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// ParentDashboard groups clip feeds for each child linked to the parent's
// email address.
type ParentDashboard struct {
	Children    []StudentFeed `json:"children"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// DashboardService assembles role-specific views, cached in Redis and
// invalidated whenever rosters or identifications change.
type DashboardService struct {
	students dashboardStudentRepository
	videos   dashboardVideoRepository
	cache    *CacheService
	ttl      time.Duration
	logger   *zap.Logger
}

// NewDashboardService creates an instance of DashboardService.
func NewDashboardService(students dashboardStudentRepository, videos dashboardVideoRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DashboardService{students: students, videos: videos, cache: cache, ttl: ttl, logger: logger}
}

// Coach builds the coach view for a team. The boolean reports whether the
// view came from cache.
func (s *DashboardService) Coach(ctx context.Context, teamID string) (*CoachDashboard, bool, error) {
	cacheKey := "dashboard:coach:" + teamID
	if s.cache != nil {
		var cached CoachDashboard
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, true, nil
		}
	}

	roster, err := s.students.ActiveRoster(ctx, teamID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	recent, total, err := s.videos.List(ctx, models.VideoFilter{
		TeamID:    teamID,
		Page:      1,
		PageSize:  10,
		SortBy:    "created_at",
		SortOrder: "DESC",
	})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load videos")
	}

	unattributed, err := s.videos.CountUnattributed(ctx, teamID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unattributed videos")
	}

	clips := make([]StudentClipCount, 0, len(roster))
	for _, student := range roster {
		_, count, err := s.videos.List(ctx, models.VideoFilter{
			TeamID:            teamID,
			IdentifiedStudent: student.Name,
			Page:              1,
			PageSize:          1,
		})
		if err != nil {
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count student clips")
		}
		clips = append(clips, StudentClipCount{StudentID: student.ID, Name: student.Name, Clips: count})
	}

	dashboard := &CoachDashboard{
		TeamID:       teamID,
		RosterSize:   len(roster),
		TotalVideos:  total,
		Unattributed: unattributed,
		StudentClips: clips,
		RecentVideos: recent,
		GeneratedAt:  time.Now().UTC(),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, dashboard, s.ttl); err != nil {
			s.logger.Warn("failed to cache coach dashboard", zap.String("team_id", teamID), zap.Error(err))
		}
	}
	return dashboard, false, nil
}

// Student builds the clip feed for the given account email.
func (s *DashboardService) Student(ctx context.Context, email string) (*StudentDashboard, bool, error) {
	cacheKey := "dashboard:student:" + email
	if s.cache != nil {
		var cached StudentDashboard
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, true, nil
		}
	}

	entries, err := s.students.FindActiveByEmail(ctx, email)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster entries")
	}

	feeds, err := s.buildFeeds(ctx, entries)
	if err != nil {
		return nil, false, err
	}

	dashboard := &StudentDashboard{Feeds: feeds, GeneratedAt: time.Now().UTC()}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, dashboard, s.ttl); err != nil {
			s.logger.Warn("failed to cache student dashboard", zap.Error(err))
		}
	}
	return dashboard, false, nil
}

// Parent builds the per-child clip feeds for the given parent email.
func (s *DashboardService) Parent(ctx context.Context, parentEmail string) (*ParentDashboard, bool, error) {
	cacheKey := "dashboard:parent:" + parentEmail
	if s.cache != nil {
		var cached ParentDashboard
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, true, nil
		}
	}

	children, err := s.students.FindActiveByParentEmail(ctx, parentEmail)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load children")
	}

	feeds, err := s.buildFeeds(ctx, children)
	if err != nil {
		return nil, false, err
	}

	dashboard := &ParentDashboard{Children: feeds, GeneratedAt: time.Now().UTC()}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, dashboard, s.ttl); err != nil {
			s.logger.Warn("failed to cache parent dashboard", zap.Error(err))
		}
	}
	return dashboard, false, nil
}

func (s *DashboardService) buildFeeds(ctx context.Context, entries []models.Student) ([]StudentFeed, error) {
	feeds := make([]StudentFeed, 0, len(entries))
	for _, student := range entries {
		videos, _, err := s.videos.List(ctx, models.VideoFilter{
			TeamID:            student.TeamID,
			IdentifiedStudent: student.Name,
			Page:              1,
			PageSize:          50,
			SortBy:            "created_at",
			SortOrder:         "DESC",
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student videos")
		}
		feeds = append(feeds, StudentFeed{Student: student, Videos: videos})
	}
	return feeds, nil
}
