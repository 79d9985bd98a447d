// internal/github/client.go
package github

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	apperrors "portfolio-aggregator/internal/errors"
	"portfolio-aggregator/internal/model"
)

const (
	sourceName = "github"

	// Hard ceiling on pagination. 20 pages of 100 repos is far beyond any
	// personal account and bounds worst-case latency and upstream load.
	maxPages = 20

	perPage = 100
)

// Client is a wrapper around the go-github client for a single user's data.
type Client struct {
	gh       *github.Client
	username string
	logger   *slog.Logger

	// retryInterval seeds the backoff for the single transient retry.
	retryInterval time.Duration
}

// NewClient creates and configures a new Client instance. The provided token
// is used to create an authenticated http.Client with a bounded timeout.
func NewClient(token, username string, timeout time.Duration, logger *slog.Logger) *Client {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = timeout

	return &Client{
		gh:            github.NewClient(tc),
		username:      username,
		logger:        logger,
		retryInterval: 500 * time.Millisecond,
	}
}

// SetBaseClient swaps the underlying go-github client. Used by tests to point
// at an httptest server.
func (c *Client) SetBaseClient(gh *github.Client) {
	c.gh = gh
}

// ListRepositories fetches the user's owned repositories, translated to the
// internal record type. Pagination stops at maxPages regardless of upstream
// hints.
func (c *Client) ListRepositories(ctx context.Context) ([]model.RepositoryRecord, error) {
	var records []model.RepositoryRecord

	err := c.withRetry(ctx, func() error {
		records = records[:0]
		opts := &github.RepositoryListByUserOptions{
			Type: "owner",
			Sort: "updated",
			ListOptions: github.ListOptions{
				PerPage: perPage,
			},
		}

		for page := 0; page < maxPages; page++ {
			c.logger.Debug("Fetching repositories page", "user", c.username, "page", opts.Page)

			repos, resp, err := c.gh.Repositories.ListByUser(ctx, c.username, opts)
			if err != nil {
				return classify(err)
			}
			for _, r := range repos {
				records = append(records, toRepositoryRecord(r))
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetUser fetches the configured user's profile.
func (c *Client) GetUser(ctx context.Context) (model.UserProfile, error) {
	var profile model.UserProfile

	err := c.withRetry(ctx, func() error {
		u, _, err := c.gh.Users.Get(ctx, c.username)
		if err != nil {
			return classify(err)
		}
		profile = model.UserProfile{
			Login:       u.GetLogin(),
			Name:        u.Name,
			Bio:         u.Bio,
			AvatarURL:   u.GetAvatarURL(),
			HTMLURL:     u.GetHTMLURL(),
			Location:    u.Location,
			PublicRepos: u.GetPublicRepos(),
			Followers:   u.GetFollowers(),
		}
		return nil
	})
	if err != nil {
		return model.UserProfile{}, err
	}
	return profile, nil
}

// withRetry runs op, retrying exactly once with backoff when the failure is
// transient. Auth, rate-limit and validation failures are permanent.
func (c *Client) withRetry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !apperrors.IsTransient(err) {
			return backoff.Permanent(err)
		}
		c.logger.Warn("Transient upstream failure, retrying", "source", sourceName, "error", err)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, 1), ctx))
}

// classify maps go-github failures onto the aggregation error taxonomy.
func classify(err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &apperrors.RateLimitError{Source: sourceName, ResetAt: rateErr.Rate.Reset.Time, Err: err}
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &apperrors.RateLimitError{Source: sourceName, ResetAt: time.Now().Add(abuseErr.GetRetryAfter()), Err: err}
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		code := respErr.Response.StatusCode
		switch {
		case code == 401 || code == 403:
			return &apperrors.AuthError{Source: sourceName, Err: err}
		case code == 429:
			return &apperrors.RateLimitError{Source: sourceName, Err: err}
		case code >= 500:
			return &apperrors.TransientError{Source: sourceName, Err: err}
		default:
			return &apperrors.ValidationError{Source: sourceName, Detail: err.Error()}
		}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		// Timeouts and connection resets land here.
		return &apperrors.TransientError{Source: sourceName, Err: err}
	}
	return &apperrors.TransientError{Source: sourceName, Err: err}
}

// toRepositoryRecord translates a github.Repository to the internal record.
func toRepositoryRecord(r *github.Repository) model.RepositoryRecord {
	rec := model.RepositoryRecord{
		ID:              r.GetID(),
		Name:            r.GetName(),
		Description:     r.Description,
		StarCount:       r.GetStargazersCount(),
		ForkCount:       r.GetForksCount(),
		PrimaryLanguage: r.Language,
		Topics:          r.Topics,
		IsFork:          r.GetFork(),
		IsArchived:      r.GetArchived(),
		UpdatedAt:       r.GetUpdatedAt().Time,
		PushedAt:        r.GetPushedAt().Time,
		HTMLURL:         r.GetHTMLURL(),
	}
	if r.Homepage != nil && *r.Homepage != "" {
		rec.HomepageURL = r.Homepage
	}
	return rec
}
