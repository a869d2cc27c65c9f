package service

import (
	"context"
	"encoding/json"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clipflow/clipflow-api/internal/identify"
	"github.com/clipflow/clipflow-api/internal/models"
	appErrors "github.com/clipflow/clipflow-api/pkg/errors"
)

type dashboardFixtureRepo struct {
	students []models.Student
	videos   []models.VideoRecord
}

func (f *dashboardFixtureRepo) ActiveRoster(ctx context.Context, teamID string) ([]models.Student, error) {
	var out []models.Student
	for _, s := range f.students {
		if s.TeamID == teamID && s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *dashboardFixtureRepo) FindActiveByEmail(ctx context.Context, email string) ([]models.Student, error) {
	var out []models.Student
	for _, s := range f.students {
		if s.Email == email && s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *dashboardFixtureRepo) FindActiveByParentEmail(ctx context.Context, parentEmail string) ([]models.Student, error) {
	var out []models.Student
	for _, s := range f.students {
		if s.ParentEmail == parentEmail && s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *dashboardFixtureRepo) List(ctx context.Context, filter models.VideoFilter) ([]models.VideoRecord, int, error) {
	var out []models.VideoRecord
	for _, v := range f.videos {
		if filter.TeamID != "" && v.TeamID != filter.TeamID {
			continue
		}
		if filter.IdentifiedStudent != "" && v.IdentifiedStudent != filter.IdentifiedStudent {
			continue
		}
		out = append(out, v)
	}
	return out, len(out), nil
}

func (f *dashboardFixtureRepo) CountUnattributed(ctx context.Context, teamID string) (int, error) {
	count := 0
	for _, v := range f.videos {
		if v.TeamID == teamID && v.IdentificationAttempted && v.IdentifiedStudent == "" {
			count++
		}
	}
	return count, nil
}

func newDashboardFixture() *dashboardFixtureRepo {
	return &dashboardFixtureRepo{
		students: []models.Student{
			{ID: "s1", TeamID: "team-1", Name: "Bob Myers", Email: "bob@example.com", ParentEmail: "dad@example.com", Active: true},
			{ID: "s2", TeamID: "team-1", Name: "Jane Smith", Email: "jane@example.com", Active: true},
		},
		videos: []models.VideoRecord{
			{ID: "v1", TeamID: "team-1", IdentifiedStudent: "Bob Myers", IdentificationAttempted: true},
			{ID: "v2", TeamID: "team-1", IdentifiedStudent: "Bob Myers", IdentificationAttempted: true},
			{ID: "v3", TeamID: "team-1", IdentifiedStudent: "", IdentificationAttempted: true},
		},
	}
}

func TestCoachDashboard(t *testing.T) {
	repo := newDashboardFixture()
	svc := NewDashboardService(repo, repo, nil, 0, zap.NewNop())

	dashboard, cached, err := svc.Coach(context.Background(), "team-1")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, dashboard.RosterSize)
	assert.Equal(t, 3, dashboard.TotalVideos)
	assert.Equal(t, 1, dashboard.Unattributed)

	counts := map[string]int{}
	for _, entry := range dashboard.StudentClips {
		counts[entry.Name] = entry.Clips
	}
	assert.Equal(t, 2, counts["Bob Myers"])
	assert.Equal(t, 0, counts["Jane Smith"])
}

func TestStudentDashboard(t *testing.T) {
	repo := newDashboardFixture()
	svc := NewDashboardService(repo, repo, nil, 0, zap.NewNop())

	dashboard, cached, err := svc.Student(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, dashboard.Feeds, 1)
	assert.Equal(t, "Bob Myers", dashboard.Feeds[0].Student.Name)
	assert.Len(t, dashboard.Feeds[0].Videos, 2)
}

func TestParentDashboard(t *testing.T) {
	repo := newDashboardFixture()
	svc := NewDashboardService(repo, repo, nil, 0, zap.NewNop())

	dashboard, cached, err := svc.Parent(context.Background(), "dad@example.com")
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, dashboard.Children, 1)
	assert.Equal(t, "Bob Myers", dashboard.Children[0].Student.Name)
	assert.Len(t, dashboard.Children[0].Videos, 2)
}

// globCacheRepo is an in-memory CacheRepository with redis-style glob
// deletion, close enough for invalidation tests.
type globCacheRepo struct {
	entries map[string][]byte
}

func (g *globCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := g.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (g *globCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	g.entries[key] = raw
	return nil
}

func (g *globCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	for key := range g.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(g.entries, key)
		}
	}
	return nil
}

func TestIdentificationInvalidatesMemberDashboards(t *testing.T) {
	repo := newDashboardFixture()
	cacheRepo := &globCacheRepo{entries: map[string][]byte{}}
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	dash := NewDashboardService(repo, repo, cacheSvc, time.Minute, zap.NewNop())

	first, cached, err := dash.Student(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, first.Feeds, 1)
	require.Len(t, first.Feeds[0].Videos, 2)

	_, cached, err = dash.Student(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.True(t, cached)

	// A new clip for team-1 gets attributed to Bob through the engine.
	videos := &mockVideoStore{videos: map[string]*models.VideoRecord{
		"v9": {ID: "v9", TeamID: "team-1", Status: models.VideoStatusTranscribed, Transcript: strPtr("Bob Myers nails the finish.")},
	}}
	roster := &mockRoster{students: repo.students}
	engine := identify.NewEngine(nil, identify.DefaultPolicies(), zap.NewNop())
	idSvc := NewIdentificationService(videos, roster, engine, &mockAudit{}, cacheSvc, nil, zap.NewNop())
	_, err = idSvc.IdentifyVideo(context.Background(), "v9", false)
	require.NoError(t, err)
	repo.videos = append(repo.videos, models.VideoRecord{ID: "v9", TeamID: "team-1", IdentifiedStudent: "Bob Myers", IdentificationAttempted: true})

	// The email-keyed feed must be rebuilt, not served stale until TTL.
	refreshed, cached, err := dash.Student(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, refreshed.Feeds, 1)
	assert.Len(t, refreshed.Feeds[0].Videos, 3)
}

func TestParentDashboardInvalidationOnRosterWrite(t *testing.T) {
	repo := newDashboardFixture()
	cacheRepo := &globCacheRepo{entries: map[string][]byte{}}
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	dash := NewDashboardService(repo, repo, cacheSvc, time.Minute, zap.NewNop())

	_, cached, err := dash.Parent(context.Background(), "dad@example.com")
	require.NoError(t, err)
	assert.False(t, cached)
	_, cached, err = dash.Parent(context.Background(), "dad@example.com")
	require.NoError(t, err)
	assert.True(t, cached)

	require.NoError(t, cacheSvc.InvalidateDashboards(context.Background(), "team-1"))

	_, cached, err = dash.Parent(context.Background(), "dad@example.com")
	require.NoError(t, err)
	assert.False(t, cached)
}
