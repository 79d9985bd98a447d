// internal/vercel/client.go
package vercel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "portfolio-aggregator/internal/errors"
	"portfolio-aggregator/internal/model"
)

const (
	sourceName     = "vercel"
	defaultBaseURL = "https://api.vercel.com"

	// One page of projects is the budget. Personal accounts sit far below
	// this and the reconciler assumes a bounded collection.
	projectPageLimit = 100
)

// Client is a thin authenticated client for the deployment host's REST API.
// There is no official Go SDK, so requests and response parsing are explicit;
// raw JSON never leaves this package.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger

	retryInterval time.Duration
}

// NewClient creates and configures a new Client instance.
func NewClient(token string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       defaultBaseURL,
		token:         token,
		logger:        logger,
		retryInterval: 500 * time.Millisecond,
	}
}

// SetBaseURL points the client at a different API host. Used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// ListProjects fetches the account's deployment projects with their latest
// deployment. Projects whose list payload omits deployment data get a single
// follow-up deployment lookup each, so the total request count is bounded by
// 1 + projectPageLimit.
func (c *Client) ListProjects(ctx context.Context) ([]model.DeploymentProjectRecord, error) {
	var raw rawProjectList
	path := fmt.Sprintf("/v9/projects?limit=%d", projectPageLimit)
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, err
	}

	records := make([]model.DeploymentProjectRecord, 0, len(raw.Projects))
	for _, p := range raw.Projects {
		rec, err := c.toProjectRecord(ctx, p)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// LatestDeployment fetches the most recent deployment for one project.
func (c *Client) LatestDeployment(ctx context.Context, projectID string) (*model.DeploymentRecord, error) {
	var raw rawDeploymentList
	path := fmt.Sprintf("/v6/deployments?projectId=%s&limit=1", url.QueryEscape(projectID))
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, err
	}
	if len(raw.Deployments) == 0 {
		return nil, nil
	}
	return c.toDeploymentRecord(raw.Deployments[0]), nil
}

func (c *Client) toProjectRecord(ctx context.Context, p rawProject) (model.DeploymentProjectRecord, error) {
	if p.ID == "" || p.Name == "" {
		return model.DeploymentProjectRecord{}, &apperrors.ValidationError{
			Source: sourceName,
			Detail: "project entry missing id or name",
		}
	}

	rec := model.DeploymentProjectRecord{
		ID:   p.ID,
		Name: p.Name,
	}
	if p.Link != nil && p.Link.Org != "" && p.Link.Repo != "" {
		rec.LinkedRepository = &model.LinkedRepository{
			Owner: p.Link.Org,
			Name:  p.Link.Repo,
		}
	}

	if len(p.LatestDeployments) > 0 {
		rec.LatestDeployment = c.toDeploymentRecord(p.LatestDeployments[0])
	}

	// The follow-up lookup also covers an inline entry dropped for an
	// unparseable state, not just a list payload with no deployment data.
	if rec.LatestDeployment == nil {
		dep, err := c.LatestDeployment(ctx, p.ID)
		if err != nil {
			return model.DeploymentProjectRecord{}, err
		}
		rec.LatestDeployment = dep
	}
	return rec, nil
}

// toDeploymentRecord parses one raw deployment. A deployment in a state this
// system does not model is dropped (nil) rather than failing the collection.
func (c *Client) toDeploymentRecord(d rawDeployment) *model.DeploymentRecord {
	stateStr := d.ReadyState
	if stateStr == "" {
		stateStr = d.State
	}
	state, ok := model.ParseDeploymentState(stateStr)
	if !ok {
		c.logger.Warn("Dropping deployment with unknown state", "state", stateStr, "url", d.URL)
		return nil
	}

	createdMillis := d.CreatedAt
	if createdMillis == 0 {
		createdMillis = d.Created
	}

	rec := &model.DeploymentRecord{
		URL:       normalizeURL(d.URL),
		State:     state,
		CreatedAt: time.UnixMilli(createdMillis).UTC(),
		Target:    model.TargetPreview,
	}
	if d.Ready != nil {
		t := time.UnixMilli(*d.Ready).UTC()
		rec.ReadyAt = &t
	}
	if d.Target != nil && strings.EqualFold(*d.Target, "production") {
		rec.Target = model.TargetProduction
	}
	return rec
}

// getJSON performs one authenticated GET with a single transient retry and
// decodes the body into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval

	return backoff.Retry(func() error {
		err := c.doGet(ctx, path, out)
		if err == nil {
			return nil
		}
		if !apperrors.IsTransient(err) {
			return backoff.Permanent(err)
		}
		c.logger.Warn("Transient upstream failure, retrying", "source", sourceName, "path", path, "error", err)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, 1), ctx))
}

func (c *Client) doGet(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &apperrors.ValidationError{Source: sourceName, Detail: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &apperrors.TransientError{Source: sourceName, Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &apperrors.ValidationError{Source: sourceName, Detail: "decoding response body: " + err.Error()}
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}

	// Drain a little of the body for error context, then discard.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	errBody := fmt.Errorf("status %d: %s", code, strings.TrimSpace(string(body)))

	switch {
	case code == 401 || code == 403:
		return &apperrors.AuthError{Source: sourceName, Err: errBody}
	case code == 429:
		return &apperrors.RateLimitError{Source: sourceName, ResetAt: rateLimitReset(resp), Err: errBody}
	case code >= 500:
		return &apperrors.TransientError{Source: sourceName, Err: errBody}
	default:
		return &apperrors.ValidationError{Source: sourceName, Detail: errBody.Error()}
	}
}

func rateLimitReset(resp *http.Response) time.Time {
	// The host reports the reset as a unix-seconds header.
	var unix int64
	if _, err := fmt.Sscanf(resp.Header.Get("X-RateLimit-Reset"), "%d", &unix); err == nil && unix > 0 {
		return time.Unix(unix, 0)
	}
	return time.Now().Add(time.Minute)
}

func normalizeURL(u string) string {
	if u == "" {
		return ""
	}
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return "https://" + u
}

// Raw wire shapes for the deployment host's list endpoints. Only the fields
// this system reads are declared.
type rawProjectList struct {
	Projects []rawProject `json:"projects"`
}

type rawProject struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Link              *rawLink        `json:"link"`
	LatestDeployments []rawDeployment `json:"latestDeployments"`
}

type rawLink struct {
	Type string `json:"type"`
	Org  string `json:"org"`
	Repo string `json:"repo"`
}

type rawDeploymentList struct {
	Deployments []rawDeployment `json:"deployments"`
}

type rawDeployment struct {
	URL        string  `json:"url"`
	ReadyState string  `json:"readyState"`
	State      string  `json:"state"`
	CreatedAt  int64   `json:"createdAt"`
	Created    int64   `json:"created"`
	Ready      *int64  `json:"ready"`
	Target     *string `json:"target"`
}
