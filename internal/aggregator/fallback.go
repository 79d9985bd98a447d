// internal/aggregator/fallback.go
package aggregator

import (
	"time"

	"portfolio-aggregator/internal/model"
)

// The static fallback set. Served only on total repository-source failure;
// a portfolio site must never render an empty page, so this collection is
// always non-empty and self-contained.

var fallbackBuiltAt = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// FallbackProjects returns a fresh copy of the static project set so callers
// can never mutate the template.
func FallbackProjects() []model.EnhancedProject {
	projects := []model.EnhancedProject{
		{
			ID:          -1,
			Slug:        "portfolio",
			DisplayName: "portfolio",
			Description: "This site: project aggregation, scoring and live deployment tracking.",
			TechStack:   []string{"TypeScript", "Next.js", "React"},
			Category:    model.CategoryFullstack,
			Featured:    true,
			LiveDeployment: &model.LiveDeployment{
				URL:    "https://example.dev",
				Source: model.SourcePlatform,
				Status: model.StateReady,
			},
			DeploymentScore: 80,
			ActivityScore:   50,
			PopularityScore: 10,
			LastActivityAt:  fallbackBuiltAt,
		},
		{
			ID:              -2,
			Slug:            "api-playground",
			DisplayName:     "api-playground",
			Description:     "REST API experiments and integration sketches.",
			TechStack:       []string{"Go", "chi"},
			Category:        model.CategoryBackend,
			Featured:        true,
			DeploymentScore: 70,
			ActivityScore:   40,
			PopularityScore: 5,
			LastActivityAt:  fallbackBuiltAt,
		},
		{
			ID:              -3,
			Slug:            "toy-game",
			DisplayName:     "toy-game",
			Description:     "A small browser game built for fun.",
			TechStack:       []string{"JavaScript", "canvas"},
			Category:        model.CategoryFrontend,
			Featured:        false,
			DeploymentScore: 60,
			ActivityScore:   30,
			PopularityScore: 0,
			LastActivityAt:  fallbackBuiltAt,
		},
	}
	for i := range projects {
		projects[i].SortOrder = i
	}
	return projects
}

// FallbackProfile returns a minimal profile carrying at least the configured
// owner handle.
func FallbackProfile(owner string) model.UserProfile {
	if owner == "" {
		owner = "portfolio-owner"
	}
	return model.UserProfile{
		Login:   owner,
		HTMLURL: "https://github.com/" + owner,
	}
}
