// internal/model/models.go
package model

import "time"

// RepositoryRecord is a snapshot of one source-controlled project as observed
// from the repository host. Read-only from this system's perspective.
type RepositoryRecord struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     *string   `json:"description,omitempty"`
	StarCount       int       `json:"star_count"`
	ForkCount       int       `json:"fork_count"`
	PrimaryLanguage *string   `json:"primary_language,omitempty"`
	Topics          []string  `json:"topics,omitempty"`
	HomepageURL     *string   `json:"homepage_url,omitempty"`
	IsFork          bool      `json:"is_fork"`
	IsArchived      bool      `json:"is_archived"`
	UpdatedAt       time.Time `json:"updated_at"`
	PushedAt        time.Time `json:"pushed_at"`
	HTMLURL         string    `json:"html_url"`
}

// UserProfile is the authenticated user's public profile.
type UserProfile struct {
	Login       string  `json:"login"`
	Name        *string `json:"name,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	AvatarURL   string  `json:"avatar_url"`
	HTMLURL     string  `json:"html_url"`
	Location    *string `json:"location,omitempty"`
	PublicRepos int     `json:"public_repos"`
	Followers   int     `json:"followers"`
}

// DeploymentState is the build state of a single deployment. States only move
// forward through QUEUED→INITIALIZING→BUILDING and end in READY, ERROR or
// CANCELED.
type DeploymentState string

const (
	StateQueued       DeploymentState = "QUEUED"
	StateInitializing DeploymentState = "INITIALIZING"
	StateBuilding     DeploymentState = "BUILDING"
	StateReady        DeploymentState = "READY"
	StateError        DeploymentState = "ERROR"
	StateCanceled     DeploymentState = "CANCELED"
)

// IsTerminal returns true if the state is final for a given deployment id.
func (s DeploymentState) IsTerminal() bool {
	return s == StateReady || s == StateError || s == StateCanceled
}

// ParseDeploymentState validates a raw upstream state string.
func ParseDeploymentState(raw string) (DeploymentState, bool) {
	switch DeploymentState(raw) {
	case StateQueued, StateInitializing, StateBuilding, StateReady, StateError, StateCanceled:
		return DeploymentState(raw), true
	}
	return "", false
}

// DeploymentRecord is one deployment of a hosted project.
type DeploymentRecord struct {
	URL       string           `json:"url"`
	State     DeploymentState  `json:"state"`
	CreatedAt time.Time        `json:"created_at"`
	ReadyAt   *time.Time       `json:"ready_at,omitempty"`
	Target    DeploymentTarget `json:"target"`
}

// DeploymentTarget distinguishes production deployments from previews.
type DeploymentTarget string

const (
	TargetProduction DeploymentTarget = "PRODUCTION"
	TargetPreview    DeploymentTarget = "PREVIEW"
)

// LinkedRepository is the hosting platform's explicit link from a deployment
// project back to a source repository, when configured.
type LinkedRepository struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// DeploymentProjectRecord is one hosted-deployment project.
type DeploymentProjectRecord struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	LatestDeployment *DeploymentRecord `json:"latest_deployment,omitempty"`
	LinkedRepository *LinkedRepository `json:"linked_repository,omitempty"`
}

// ProjectCategory buckets a project for display grouping.
type ProjectCategory string

const (
	CategoryFullstack ProjectCategory = "fullstack"
	CategoryFrontend  ProjectCategory = "frontend"
	CategoryBackend   ProjectCategory = "backend"
	CategoryMobile    ProjectCategory = "mobile"
	CategoryData      ProjectCategory = "data"
	CategoryOther     ProjectCategory = "other"
)

// DeploymentSource identifies where a live URL comes from.
type DeploymentSource string

const (
	SourcePlatform     DeploymentSource = "platform"
	SourceCustomDomain DeploymentSource = "custom-domain"
	SourcePages        DeploymentSource = "pages"
)

// LiveDeployment is the unified view of a project's live URL and build state.
type LiveDeployment struct {
	URL    string           `json:"url"`
	Source DeploymentSource `json:"source"`
	Status DeploymentState  `json:"status"`
}

// EnhancedProject is the unified record the aggregation engine produces, one
// per distinct repository. Constructed fresh on every aggregation pass and
// never mutated in place.
type EnhancedProject struct {
	ID              int64             `json:"id"`
	Slug            string            `json:"slug"`
	DisplayName     string            `json:"display_name"`
	Description     string            `json:"description"`
	TechStack       []string          `json:"tech_stack"`
	Category        ProjectCategory   `json:"category"`
	Featured        bool              `json:"featured"`
	Repository      *RepositoryRecord `json:"repository,omitempty"`
	LiveDeployment  *LiveDeployment   `json:"live_deployment,omitempty"`
	BuildStatus     *DeploymentState  `json:"build_status,omitempty"`
	DeploymentScore int               `json:"deployment_score"`
	ActivityScore   int               `json:"activity_score"`
	PopularityScore int               `json:"popularity_score"`
	LastActivityAt  time.Time         `json:"last_activity_at"`
	SortOrder       int               `json:"sort_order"`
}

// PortfolioStats is derived purely from an EnhancedProject collection.
type PortfolioStats struct {
	TotalProjects     int            `json:"total_projects"`
	TotalStars        int            `json:"total_stars"`
	TotalForks        int            `json:"total_forks"`
	LanguageBreakdown map[string]int `json:"language_breakdown"`
	LiveProjectCount  int            `json:"live_project_count"`
}
