// internal/aggregator/aggregator_test.go
package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"portfolio-aggregator/internal/cache"
	apperrors "portfolio-aggregator/internal/errors"
	"portfolio-aggregator/internal/model"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// MockRepositorySource is a mock of the RepositorySource interface.
type MockRepositorySource struct {
	mock.Mock
}

func (m *MockRepositorySource) ListRepositories(ctx context.Context) ([]model.RepositoryRecord, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]model.RepositoryRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepositorySource) GetUser(ctx context.Context) (model.UserProfile, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.UserProfile), args.Error(1)
}

// MockDeploymentSource is a mock of the DeploymentSource interface.
type MockDeploymentSource struct {
	mock.Mock
}

func (m *MockDeploymentSource) ListProjects(ctx context.Context) ([]model.DeploymentProjectRecord, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]model.DeploymentProjectRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func strPtr(s string) *string { return &s }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestAggregator(repoSource RepositorySource, deploySource DeploymentSource) *Aggregator {
	agg := New(repoSource, deploySource, cache.NewWithClock(func() time.Time { return testNow }), testLogger(), Options{
		Owner:          "testuser",
		MaxProjects:    50,
		RepositoryTTL:  30 * time.Minute,
		DeploymentTTL:  5 * time.Minute,
		UserProfileTTL: time.Hour,
		StatsTTL:       30 * time.Minute,
	})
	agg.now = func() time.Time { return testNow }
	return agg
}

func sampleRepos() []model.RepositoryRecord {
	return []model.RepositoryRecord{
		{
			ID:              1,
			Name:            "api-server",
			Description:     strPtr("An API server"),
			PrimaryLanguage: strPtr("Go"),
			StarCount:       2,
			UpdatedAt:       testNow.Add(-5 * 24 * time.Hour),
			HTMLURL:         "https://github.com/testuser/api-server",
		},
		{
			ID:              2,
			Name:            "widget",
			Description:     strPtr("x"),
			Topics:          []string{"react"},
			StarCount:       5,
			UpdatedAt:       testNow.Add(-10 * 24 * time.Hour),
			HTMLURL:         "https://github.com/testuser/widget",
			PrimaryLanguage: strPtr("TypeScript"),
		},
		{
			ID:        3,
			Name:      "old-fork",
			IsFork:    true,
			UpdatedAt: testNow.Add(-100 * 24 * time.Hour),
		},
	}
}

func sampleDeployments() []model.DeploymentProjectRecord {
	return []model.DeploymentProjectRecord{
		{
			ID:   "prj_1",
			Name: "api-server",
			LatestDeployment: &model.DeploymentRecord{
				URL:       "https://api-server.example.com",
				State:     model.StateReady,
				CreatedAt: testNow.Add(-time.Hour),
				Target:    model.TargetProduction,
			},
		},
	}
}

func TestEnhancedProjects(t *testing.T) {
	ctx := context.Background()

	t.Run("merges, scores and sorts both sources", func(t *testing.T) {
		repoSource := new(MockRepositorySource)
		deploySource := new(MockDeploymentSource)
		repoSource.On("ListRepositories", mock.Anything).Return(sampleRepos(), nil).Once()
		deploySource.On("ListProjects", mock.Anything).Return(sampleDeployments(), nil).Once()

		agg := newTestAggregator(repoSource, deploySource)
		projects := agg.EnhancedProjects(ctx)

		// The fork is filtered; one output per remaining repository.
		require.Len(t, projects, 2)

		byName := make(map[string]model.EnhancedProject)
		for _, p := range projects {
			byName[p.DisplayName] = p
		}

		api := byName["api-server"]
		require.NotNil(t, api.LiveDeployment)
		assert.Equal(t, "https://api-server.example.com", api.LiveDeployment.URL)
		assert.Equal(t, model.StateReady, api.LiveDeployment.Status)

		widget := byName["widget"]
		assert.Nil(t, widget.LiveDeployment)
		assert.Equal(t, 100, widget.DeploymentScore)
		assert.True(t, widget.Featured, "starred repo is featured")
		assert.Equal(t, "widget", widget.Slug)

		repoSource.AssertExpectations(t)
		deploySource.AssertExpectations(t)
	})

	t.Run("second call within TTL is identical and fetch-free", func(t *testing.T) {
		repoSource := new(MockRepositorySource)
		deploySource := new(MockDeploymentSource)
		repoSource.On("ListRepositories", mock.Anything).Return(sampleRepos(), nil).Once()
		deploySource.On("ListProjects", mock.Anything).Return(sampleDeployments(), nil).Once()

		agg := newTestAggregator(repoSource, deploySource)
		first := agg.EnhancedProjects(ctx)
		second := agg.EnhancedProjects(ctx)

		assert.Equal(t, first, second)
		repoSource.AssertNumberOfCalls(t, "ListRepositories", 1)
		deploySource.AssertNumberOfCalls(t, "ListProjects", 1)
	})

	t.Run("deployment failure degrades to nil live deployments", func(t *testing.T) {
		repoSource := new(MockRepositorySource)
		deploySource := new(MockDeploymentSource)
		repoSource.On("ListRepositories", mock.Anything).Return(sampleRepos(), nil).Once()
		deploySource.On("ListProjects", mock.Anything).Return(nil, &apperrors.TransientError{Source: "deployment", Err: errors.New("boom")}).Once()

		agg := newTestAggregator(repoSource, deploySource)
		projects := agg.EnhancedProjects(ctx)

		require.Len(t, projects, 2)
		for _, p := range projects {
			assert.Nil(t, p.LiveDeployment)
			assert.Nil(t, p.BuildStatus)
		}
	})

	t.Run("nil deployment source degrades the same way", func(t *testing.T) {
		repoSource := new(MockRepositorySource)
		repoSource.On("ListRepositories", mock.Anything).Return(sampleRepos(), nil).Once()

		agg := newTestAggregator(repoSource, nil)
		projects := agg.EnhancedProjects(ctx)

		require.Len(t, projects, 2)
		for _, p := range projects {
			assert.Nil(t, p.LiveDeployment)
		}
	})

	t.Run("repository auth failure serves the static fallback set", func(t *testing.T) {
		repoSource := new(MockRepositorySource)
		deploySource := new(MockDeploymentSource)
		repoSource.On("ListRepositories", mock.Anything).Return(nil, &apperrors.AuthError{Source: "repository", Err: errors.New("bad credential")}).Once()
		deploySource.On("ListProjects", mock.Anything).Return(sampleDeployments(), nil).Maybe()

		agg := newTestAggregator(repoSource, deploySource)
		projects := agg.EnhancedProjects(ctx)

		require.NotEmpty(t, projects, "fallback set must never be empty")
		assert.Equal(t, FallbackProjects(), projects)
	})

	t.Run("missing repository source serves fallback without any fetch", func(t *testing.T) {
		agg := newTestAggregator(nil, nil)
		projects := agg.EnhancedProjects(ctx)
		require.NotEmpty(t, projects)
	})

	t.Run("stale previous collection beats the static fallback", func(t *testing.T) {
		repoSource := new(MockRepositorySource)
		deploySource := new(MockDeploymentSource)
		repoSource.On("ListRepositories", mock.Anything).Return(sampleRepos(), nil).Once()
		deploySource.On("ListProjects", mock.Anything).Return(sampleDeployments(), nil)

		clock := testNow
		store := cache.NewWithClock(func() time.Time { return clock })
		agg := New(repoSource, deploySource, store, testLogger(), Options{
			Owner:         "testuser",
			MaxProjects:   50,
			RepositoryTTL: 30 * time.Minute,
			DeploymentTTL: 5 * time.Minute,
			StatsTTL:      30 * time.Minute,
		})
		agg.now = func() time.Time { return clock }

		first := agg.EnhancedProjects(ctx)
		require.Len(t, first, 2)

		// TTL expires; the refetch now fails.
		clock = clock.Add(time.Hour)
		repoSource.On("ListRepositories", mock.Anything).Return(nil, &apperrors.TransientError{Source: "repository", Err: errors.New("down")})

		again := agg.EnhancedProjects(ctx)
		assert.Equal(t, first, again, "stale collection is served over the static set")
	})

	t.Run("result is capped at MaxProjects", func(t *testing.T) {
		var repos []model.RepositoryRecord
		for i := int64(1); i <= 10; i++ {
			repos = append(repos, model.RepositoryRecord{
				ID:        i,
				Name:      "repo-" + string(rune('a'+i-1)),
				UpdatedAt: testNow.Add(-time.Duration(i) * 24 * time.Hour),
			})
		}
		repoSource := new(MockRepositorySource)
		repoSource.On("ListRepositories", mock.Anything).Return(repos, nil).Once()

		agg := newTestAggregator(repoSource, nil)
		agg.opts.MaxProjects = 4

		projects := agg.EnhancedProjects(ctx)
		assert.Len(t, projects, 4)
	})
}

func TestRateLimitWidensTTL(t *testing.T) {
	ctx := context.Background()

	repoSource := new(MockRepositorySource)
	deploySource := new(MockDeploymentSource)
	repoSource.On("ListRepositories", mock.Anything).Return(sampleRepos(), nil).Once()
	deploySource.On("ListProjects", mock.Anything).Return(sampleDeployments(), nil)

	clock := testNow
	store := cache.NewWithClock(func() time.Time { return clock })
	agg := New(repoSource, deploySource, store, testLogger(), Options{
		Owner:         "testuser",
		MaxProjects:   50,
		RepositoryTTL: 30 * time.Minute,
		DeploymentTTL: 5 * time.Minute,
		StatsTTL:      30 * time.Minute,
	})
	agg.now = func() time.Time { return clock }

	first := agg.EnhancedProjects(ctx)
	require.Len(t, first, 2)

	// Past the base TTL the refetch hits a rate limit; the stale collection
	// is served and the penalty recorded.
	clock = clock.Add(31 * time.Minute)
	repoSource.On("ListRepositories", mock.Anything).Return(nil, &apperrors.RateLimitError{Source: "repository", Err: errors.New("quota")}).Once()
	again := agg.EnhancedProjects(ctx)
	assert.Equal(t, first, again)

	// Within the widened TTL (30m × 4) the cached collection is fresh again,
	// so no further upstream call is made.
	clock = clock.Add(10 * time.Minute)
	third := agg.EnhancedProjects(ctx)
	assert.Equal(t, first, third)
	repoSource.AssertNumberOfCalls(t, "ListRepositories", 2)
}

func TestPortfolioStats(t *testing.T) {
	ctx := context.Background()

	repoSource := new(MockRepositorySource)
	deploySource := new(MockDeploymentSource)
	repoSource.On("ListRepositories", mock.Anything).Return(sampleRepos(), nil).Once()
	deploySource.On("ListProjects", mock.Anything).Return(sampleDeployments(), nil).Once()

	agg := newTestAggregator(repoSource, deploySource)
	stats := agg.PortfolioStats(ctx)

	assert.Equal(t, 2, stats.TotalProjects)
	assert.Equal(t, 7, stats.TotalStars)
	assert.Equal(t, 0, stats.TotalForks)
	assert.Equal(t, 1, stats.LiveProjectCount)
	assert.Equal(t, map[string]int{"Go": 1, "TypeScript": 1}, stats.LanguageBreakdown)

	// Stats are cached; no second aggregation pass.
	_ = agg.PortfolioStats(ctx)
	repoSource.AssertNumberOfCalls(t, "ListRepositories", 1)
}

func TestUserProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches and caches the profile", func(t *testing.T) {
		repoSource := new(MockRepositorySource)
		profile := model.UserProfile{Login: "testuser", PublicRepos: 12}
		repoSource.On("GetUser", mock.Anything).Return(profile, nil).Once()

		agg := newTestAggregator(repoSource, nil)
		assert.Equal(t, profile, agg.UserProfile(ctx))
		assert.Equal(t, profile, agg.UserProfile(ctx))
		repoSource.AssertNumberOfCalls(t, "GetUser", 1)
	})

	t.Run("missing source serves the fallback profile", func(t *testing.T) {
		agg := newTestAggregator(nil, nil)
		profile := agg.UserProfile(ctx)
		assert.Equal(t, "testuser", profile.Login)
	})

	t.Run("fetch failure serves the fallback profile", func(t *testing.T) {
		repoSource := new(MockRepositorySource)
		repoSource.On("GetUser", mock.Anything).Return(model.UserProfile{}, &apperrors.TransientError{Source: "repository", Err: errors.New("down")}).Once()

		agg := newTestAggregator(repoSource, nil)
		profile := agg.UserProfile(ctx)
		assert.NotEmpty(t, profile.Login)
	})
}
