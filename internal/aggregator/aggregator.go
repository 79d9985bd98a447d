// internal/aggregator/aggregator.go

// Package aggregator is the single entry point for portfolio data. It
// orchestrates the two upstream sources behind the cache, reconciles and
// scores the results, and owns the degradation policy: a deployment-source
// failure degrades live URLs away, a repository-source failure falls back to
// the last good collection or the static set. Callers never see an error.
package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"portfolio-aggregator/internal/cache"
	apperrors "portfolio-aggregator/internal/errors"
	"portfolio-aggregator/internal/model"
	"portfolio-aggregator/internal/reconcile"
	"portfolio-aggregator/internal/score"
)

// Cache keys, one per data kind.
const (
	keyProjects     = "projects"
	keyRepositories = "repositories"
	keyDeployments  = "deployments"
	keyUserProfile  = "user_profile"
	keyStats        = "computed_stats"
)

const (
	sourceRepository = "repository"
	sourceDeployment = "deployment"

	// After a rate-limit response the effective TTL for that source's keys
	// is widened so stale data keeps being served instead of re-hitting the
	// exhausted quota.
	rateLimitPenaltyWindow = 15 * time.Minute
	rateLimitTTLFactor     = 4
)

// RepositorySource supplies repository and profile snapshots.
type RepositorySource interface {
	ListRepositories(ctx context.Context) ([]model.RepositoryRecord, error)
	GetUser(ctx context.Context) (model.UserProfile, error)
}

// DeploymentSource supplies deployment project snapshots.
type DeploymentSource interface {
	ListProjects(ctx context.Context) ([]model.DeploymentProjectRecord, error)
}

// Options configures an Aggregator.
type Options struct {
	Owner            string
	FeaturedProjects []string
	MaxProjects      int

	RepositoryTTL  time.Duration
	DeploymentTTL  time.Duration
	UserProfileTTL time.Duration
	StatsTTL       time.Duration
}

// Aggregator is the façade over the aggregation engine. Either source may be
// nil, meaning its credential is not configured; that source then contributes
// fallback or degraded data without any network attempt.
type Aggregator struct {
	repoSource   RepositorySource
	deploySource DeploymentSource
	store        *cache.Store
	logger       *slog.Logger
	opts         Options

	// now is replaceable so tests can pin score computations.
	now func() time.Time

	mu               sync.Mutex
	rateLimitedUntil map[string]time.Time
}

// New creates an Aggregator. repoSource and deploySource may be nil.
func New(repoSource RepositorySource, deploySource DeploymentSource, store *cache.Store, logger *slog.Logger, opts Options) *Aggregator {
	if opts.MaxProjects <= 0 {
		opts.MaxProjects = 50
	}
	return &Aggregator{
		repoSource:       repoSource,
		deploySource:     deploySource,
		store:            store,
		logger:           logger,
		opts:             opts,
		now:              time.Now,
		rateLimitedUntil: make(map[string]time.Time),
	}
}

// EnhancedProjects returns the unified, scored, sorted project collection.
// It never fails: total repository-source failure yields the previous
// collection if one was ever built, the static fallback set otherwise.
func (a *Aggregator) EnhancedProjects(ctx context.Context) []model.EnhancedProject {
	ttl := a.effectiveTTL(sourceRepository, a.opts.RepositoryTTL)
	projects, err := cache.GetOrFetch(a.store, keyProjects, ttl, func() ([]model.EnhancedProject, error) {
		return a.aggregate(ctx)
	})
	if err == nil {
		return projects
	}

	a.recordRateLimit(sourceRepository, err)
	a.logger.Error("Aggregation failed, serving fallback", "error", err)

	if stale, ok := cache.Peek[[]model.EnhancedProject](a.store, keyProjects); ok && len(stale) > 0 {
		return stale
	}
	return FallbackProjects()
}

// PortfolioStats derives summary numbers from the same project collection,
// cached separately and computed without extra network calls.
func (a *Aggregator) PortfolioStats(ctx context.Context) model.PortfolioStats {
	stats, err := cache.GetOrFetch(a.store, keyStats, a.opts.StatsTTL, func() (model.PortfolioStats, error) {
		return computeStats(a.EnhancedProjects(ctx)), nil
	})
	if err != nil {
		// The fetch above cannot fail, but keep the path total.
		return computeStats(FallbackProjects())
	}
	return stats
}

// UserProfile returns the portfolio owner's profile, or the static fallback
// profile when the repository source is unavailable.
func (a *Aggregator) UserProfile(ctx context.Context) model.UserProfile {
	if a.repoSource == nil {
		return FallbackProfile(a.opts.Owner)
	}

	ttl := a.effectiveTTL(sourceRepository, a.opts.UserProfileTTL)
	profile, err := cache.GetOrFetch(a.store, keyUserProfile, ttl, func() (model.UserProfile, error) {
		return a.repoSource.GetUser(ctx)
	})
	if err == nil {
		return profile
	}

	a.recordRateLimit(sourceRepository, err)
	a.logger.Error("Profile fetch failed, serving fallback", "error", err)

	if stale, ok := cache.Peek[model.UserProfile](a.store, keyUserProfile); ok {
		return stale
	}
	return FallbackProfile(a.opts.Owner)
}

// aggregate performs one full pass: concurrent fetch, reconcile, score, sort,
// cap. The repository and deployment fetches are independent failure domains;
// only a repository failure propagates out.
func (a *Aggregator) aggregate(ctx context.Context) ([]model.EnhancedProject, error) {
	if a.repoSource == nil {
		return nil, &apperrors.AuthError{Source: sourceRepository, Err: errors.New("credential not configured")}
	}

	var (
		repos     []model.RepositoryRecord
		repoErr   error
		deploys   []model.DeploymentProjectRecord
		deployErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		repos, repoErr = cache.GetOrFetch(a.store, keyRepositories, a.effectiveTTL(sourceRepository, a.opts.RepositoryTTL), func() ([]model.RepositoryRecord, error) {
			return a.repoSource.ListRepositories(gctx)
		})
		return nil
	})
	g.Go(func() error {
		if a.deploySource == nil {
			deployErr = &apperrors.AuthError{Source: sourceDeployment, Err: errors.New("credential not configured")}
			return nil
		}
		deploys, deployErr = cache.GetOrFetch(a.store, keyDeployments, a.effectiveTTL(sourceDeployment, a.opts.DeploymentTTL), func() ([]model.DeploymentProjectRecord, error) {
			return a.deploySource.ListProjects(gctx)
		})
		return nil
	})
	_ = g.Wait()

	if repoErr != nil {
		return nil, repoErr
	}

	deploymentsAvailable := deployErr == nil
	if !deploymentsAvailable {
		a.recordRateLimit(sourceDeployment, deployErr)
		a.logger.Warn("Deployment source unavailable, continuing without live URLs", "error", deployErr)
		deploys = nil
	}

	repos = filterDisplayable(repos)
	pairs := reconcile.Match(a.opts.Owner, repos, deploys)
	projects := a.buildProjects(pairs, deploymentsAvailable)

	score.Sort(projects)
	if len(projects) > a.opts.MaxProjects {
		projects = projects[:a.opts.MaxProjects]
	}
	return projects, nil
}

// buildProjects shapes one EnhancedProject per reconciled pair.
func (a *Aggregator) buildProjects(pairs []reconcile.Pair, deploymentsAvailable bool) []model.EnhancedProject {
	repos := make([]model.RepositoryRecord, len(pairs))
	for i, p := range pairs {
		repos[i] = p.Repository
	}
	featured := score.FeaturedSet(repos, a.opts.FeaturedProjects)

	slugs := make([]string, len(pairs))
	for i, p := range pairs {
		slugs[i] = score.Slug(p.Repository.Name)
	}
	slugs = score.DedupeSlugs(slugs)

	now := a.now()
	projects := make([]model.EnhancedProject, 0, len(pairs))
	for i, pair := range pairs {
		repo := pair.Repository
		scores := score.Compute(repo, now)

		description := ""
		if repo.Description != nil {
			description = strings.TrimSpace(*repo.Description)
		}

		project := model.EnhancedProject{
			ID:              repo.ID,
			Slug:            slugs[i],
			DisplayName:     repo.Name,
			Description:     description,
			TechStack:       score.TechStack(repo),
			Category:        score.Category(repo),
			Featured:        featured[repo.ID],
			Repository:      &repos[i],
			DeploymentScore: scores.Deployment,
			ActivityScore:   scores.Activity,
			PopularityScore: scores.Popularity,
			LastActivityAt:  score.LastActivity(repo),
		}
		if deploymentsAvailable {
			project.LiveDeployment, project.BuildStatus = reconcile.LiveView(repo, pair.Deployment)
		}
		projects = append(projects, project)
	}
	return projects
}

// filterDisplayable drops forks and archived repositories before
// reconciliation; they never appear on the portfolio.
func filterDisplayable(repos []model.RepositoryRecord) []model.RepositoryRecord {
	out := make([]model.RepositoryRecord, 0, len(repos))
	for _, r := range repos {
		if r.IsFork || r.IsArchived {
			continue
		}
		out = append(out, r)
	}
	return out
}

func computeStats(projects []model.EnhancedProject) model.PortfolioStats {
	stats := model.PortfolioStats{
		TotalProjects:     len(projects),
		LanguageBreakdown: make(map[string]int),
	}
	for _, p := range projects {
		if p.Repository != nil {
			stats.TotalStars += p.Repository.StarCount
			stats.TotalForks += p.Repository.ForkCount
			if p.Repository.PrimaryLanguage != nil && *p.Repository.PrimaryLanguage != "" {
				stats.LanguageBreakdown[*p.Repository.PrimaryLanguage]++
			}
		}
		if p.LiveDeployment != nil {
			stats.LiveProjectCount++
		}
	}
	return stats
}

// effectiveTTL widens the base TTL while a source is inside its rate-limit
// penalty window.
func (a *Aggregator) effectiveTTL(source string, base time.Duration) time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()

	if until, ok := a.rateLimitedUntil[source]; ok && a.now().Before(until) {
		return base * rateLimitTTLFactor
	}
	return base
}

func (a *Aggregator) recordRateLimit(source string, err error) {
	if !apperrors.IsRateLimit(err) {
		return
	}
	a.mu.Lock()
	a.rateLimitedUntil[source] = a.now().Add(rateLimitPenaltyWindow)
	a.mu.Unlock()
	a.logger.Warn("Source rate limited, widening effective TTL", "source", source, "window", rateLimitPenaltyWindow.String())
}
