// internal/reconcile/reconcile.go

// Package reconcile matches repository records against deployment projects
// and derives the unified live-deployment view. Matching is a pure in-memory
// pass over two bounded collections; O(R×D) worst case is fine at portfolio
// scale.
package reconcile

import (
	"strings"

	"portfolio-aggregator/internal/model"
)

// Pair is one repository with its matched deployment project, if any.
type Pair struct {
	Repository model.RepositoryRecord
	Deployment *model.DeploymentProjectRecord
}

// Match pairs every repository with at most one deployment project. The
// output always has exactly one Pair per repository, matched or not, in the
// repositories' given order. Each deployment project is consumed by at most
// one repository.
//
// Tiers, in priority order:
//  1. the project's explicit repository link names this owner/name
//  2. case-insensitive exact name equality
//  3. case-insensitive substring containment in either direction
//
// Each tier runs as a full pass over all repositories before the next tier
// starts, so a repository's explicit link or exact name can never lose its
// project to another repository's substring match. Within a tier,
// repositories are visited in their given order and the first unconsumed
// project in the deployment collection's given order wins. Known limitation:
// with sibling names like "blog" and "blog-v2" the substring tier can pick
// the wrong one; collection order is the only tie-break, deliberately, so
// results stay deterministic.
func Match(owner string, repos []model.RepositoryRecord, projects []model.DeploymentProjectRecord) []Pair {
	assigned := make([]int, len(repos))
	for i := range assigned {
		assigned[i] = -1
	}
	consumed := make(map[int]bool, len(projects))

	for tier := 1; tier <= 3; tier++ {
		for ri, repo := range repos {
			if assigned[ri] >= 0 {
				continue
			}
			for pi, p := range projects {
				if consumed[pi] {
					continue
				}
				if matchesAtTier(tier, owner, repo, p) {
					assigned[ri] = pi
					consumed[pi] = true
					break
				}
			}
		}
	}

	pairs := make([]Pair, 0, len(repos))
	for ri, repo := range repos {
		pair := Pair{Repository: repo}
		if pi := assigned[ri]; pi >= 0 {
			pair.Deployment = &projects[pi]
		}
		pairs = append(pairs, pair)
	}
	return pairs
}

func matchesAtTier(tier int, owner string, repo model.RepositoryRecord, p model.DeploymentProjectRecord) bool {
	switch tier {
	case 1:
		return p.LinkedRepository != nil &&
			strings.EqualFold(p.LinkedRepository.Owner, owner) &&
			strings.EqualFold(p.LinkedRepository.Name, repo.Name)
	case 2:
		return strings.EqualFold(p.Name, repo.Name)
	default:
		// Substring either direction, to absorb naming drift like "widget"
		// vs "widget-site".
		repoName := strings.ToLower(repo.Name)
		projName := strings.ToLower(p.Name)
		return strings.Contains(projName, repoName) || strings.Contains(repoName, projName)
	}
}

// LiveView derives the unified live-deployment view for a matched pair. Only
// a READY deployment yields a live URL; anything else is a build-status badge
// at most. Callers must not invoke this when the deployment source was
// unavailable: a degraded pass carries no live views at all.
func LiveView(repo model.RepositoryRecord, dep *model.DeploymentProjectRecord) (*model.LiveDeployment, *model.DeploymentState) {
	if dep != nil && dep.LatestDeployment != nil {
		d := dep.LatestDeployment
		status := d.State
		if d.State != model.StateReady {
			return nil, &status
		}

		url := d.URL
		source := model.SourcePlatform
		if home := homepage(repo); home != "" && !isPlatformURL(home) {
			// A custom domain on the repo wins over the generated host URL.
			url = home
			source = model.SourceCustomDomain
		}
		return &model.LiveDeployment{URL: url, Source: source, Status: model.StateReady}, &status
	}

	// No deployment project matched; a repo homepage can still be live.
	if home := homepage(repo); home != "" {
		source := model.SourceCustomDomain
		if strings.Contains(home, "github.io") {
			source = model.SourcePages
		}
		return &model.LiveDeployment{URL: home, Source: source, Status: model.StateReady}, nil
	}

	return nil, nil
}

func homepage(repo model.RepositoryRecord) string {
	if repo.HomepageURL == nil {
		return ""
	}
	return strings.TrimSpace(*repo.HomepageURL)
}

func isPlatformURL(u string) bool {
	return strings.Contains(u, ".vercel.app")
}
