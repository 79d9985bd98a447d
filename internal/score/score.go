// internal/score/score.go

// Package score computes the derived fields of an enhanced project: the three
// 0–100 scores, the featured flag, category, slug and tech stack, plus the
// deterministic display order.
package score

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"portfolio-aggregator/internal/model"
)

const (
	recencyWindow   = 30 * 24 * time.Hour
	activityHorizon = 365 * 24 * time.Hour

	// How many of the most recently active repositories are featured even
	// without stars, forks or an explicit override.
	featuredRecentCount = 3
)

// Scores holds the three derived scores for one project.
type Scores struct {
	Deployment int
	Activity   int
	Popularity int
}

// Compute derives all three scores for a repository as of now.
func Compute(repo model.RepositoryRecord, now time.Time) Scores {
	return Scores{
		Deployment: DeploymentScore(repo, now),
		Activity:   ActivityScore(repo, now),
		Popularity: PopularityScore(repo),
	}
}

// DeploymentScore rewards completeness and recency over raw popularity.
// Baseline 60 for existing at all; +10 each for a description, topics and a
// push within the last 30 days; up to +20 from stars; capped at 100.
func DeploymentScore(repo model.RepositoryRecord, now time.Time) int {
	s := 60
	if repo.Description != nil && strings.TrimSpace(*repo.Description) != "" {
		s += 10
	}
	if len(repo.Topics) > 0 {
		s += 10
	}
	if now.Sub(lastActivity(repo)) < recencyWindow {
		s += 10
	}
	s += min(repo.StarCount*5, 20)
	return min(s, 100)
}

// PopularityScore is monotonic in stars and forks, stars weighted double
// since they reflect external interest more directly.
func PopularityScore(repo model.RepositoryRecord) int {
	return min(repo.StarCount*4+repo.ForkCount*2, 100)
}

// ActivityScore decays linearly from 100 at "touched just now" to 0 at the
// twelve-month horizon.
func ActivityScore(repo model.RepositoryRecord, now time.Time) int {
	age := now.Sub(lastActivity(repo))
	if age <= 0 {
		return 100
	}
	if age >= activityHorizon {
		return 0
	}
	return int(100 * (activityHorizon - age) / activityHorizon)
}

// LastActivity is the later of the repository's update and push timestamps.
func LastActivity(repo model.RepositoryRecord) time.Time {
	return lastActivity(repo)
}

func lastActivity(repo model.RepositoryRecord) time.Time {
	if repo.PushedAt.After(repo.UpdatedAt) {
		return repo.PushedAt
	}
	return repo.UpdatedAt
}

// FeaturedSet decides which repositories are featured: explicit override,
// any stars or forks, or membership in the top few by recency.
func FeaturedSet(repos []model.RepositoryRecord, overrides []string) map[int64]bool {
	overrideNames := make(map[string]bool, len(overrides))
	for _, n := range overrides {
		overrideNames[strings.ToLower(n)] = true
	}

	featured := make(map[int64]bool)
	for _, r := range repos {
		if overrideNames[strings.ToLower(r.Name)] || r.StarCount > 0 || r.ForkCount > 0 {
			featured[r.ID] = true
		}
	}

	byRecency := make([]model.RepositoryRecord, len(repos))
	copy(byRecency, repos)
	sort.SliceStable(byRecency, func(i, j int) bool {
		return lastActivity(byRecency[i]).After(lastActivity(byRecency[j]))
	})
	for i := 0; i < len(byRecency) && i < featuredRecentCount; i++ {
		featured[byRecency[i].ID] = true
	}

	return featured
}

// Slug turns a repository name into a URL-safe identifier: lowercased, runs
// of non-alphanumerics collapsed to single hyphens. A name with no
// alphanumerics at all slugs to "project" so the identifier is never empty.
func Slug(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	s := strings.TrimRight(b.String(), "-")
	if s == "" {
		return "project"
	}
	return s
}

// DedupeSlugs makes every slug unique within a result set by suffixing
// duplicates with -2, -3, …, in encounter order.
func DedupeSlugs(slugs []string) []string {
	seen := make(map[string]int, len(slugs))
	out := make([]string, len(slugs))
	for i, s := range slugs {
		seen[s]++
		if seen[s] == 1 {
			out[i] = s
			continue
		}
		for {
			candidate := s + "-" + strconv.Itoa(seen[s])
			if seen[candidate] == 0 {
				seen[candidate]++
				out[i] = candidate
				break
			}
			seen[s]++
		}
	}
	return out
}

// TechStack is the primary language followed by topics, deduplicated while
// preserving order.
func TechStack(repo model.RepositoryRecord) []string {
	var stack []string
	seen := make(map[string]bool)
	add := func(s string) {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		stack = append(stack, s)
	}
	if repo.PrimaryLanguage != nil {
		add(*repo.PrimaryLanguage)
	}
	for _, t := range repo.Topics {
		add(t)
	}
	if stack == nil {
		stack = []string{}
	}
	return stack
}

var (
	mobileLanguages = map[string]bool{"swift": true, "kotlin": true, "dart": true, "objective-c": true}
	dataLanguages   = map[string]bool{"jupyter notebook": true, "r": true, "julia": true}
	frontLanguages  = map[string]bool{"javascript": true, "typescript": true, "vue": true, "html": true, "css": true, "svelte": true}
	backLanguages   = map[string]bool{"go": true, "rust": true, "java": true, "c#": true, "php": true, "ruby": true, "elixir": true, "python": true}

	topicCategories = map[string]model.ProjectCategory{
		"fullstack":        model.CategoryFullstack,
		"nextjs":           model.CategoryFullstack,
		"next-js":          model.CategoryFullstack,
		"mobile":           model.CategoryMobile,
		"android":          model.CategoryMobile,
		"ios":              model.CategoryMobile,
		"flutter":          model.CategoryMobile,
		"react-native":     model.CategoryMobile,
		"data-science":     model.CategoryData,
		"machine-learning": model.CategoryData,
		"ml":               model.CategoryData,
		"analytics":        model.CategoryData,
		"frontend":         model.CategoryFrontend,
		"ui":               model.CategoryFrontend,
		"react":            model.CategoryFrontend,
		"vue":              model.CategoryFrontend,
		"backend":          model.CategoryBackend,
		"api":              model.CategoryBackend,
		"server":           model.CategoryBackend,
		"cli":              model.CategoryBackend,
	}
)

// Category buckets a repository from its topics first, language second.
func Category(repo model.RepositoryRecord) model.ProjectCategory {
	for _, t := range repo.Topics {
		if c, ok := topicCategories[strings.ToLower(t)]; ok {
			return c
		}
	}
	if repo.PrimaryLanguage != nil {
		lang := strings.ToLower(*repo.PrimaryLanguage)
		switch {
		case mobileLanguages[lang]:
			return model.CategoryMobile
		case dataLanguages[lang]:
			return model.CategoryData
		case frontLanguages[lang]:
			return model.CategoryFrontend
		case backLanguages[lang]:
			return model.CategoryBackend
		}
	}
	return model.CategoryOther
}

// Sort establishes the display order: featured first, then deployment score
// descending, name ascending as the final tie-break so the order is stable
// for pagination and tests. SortOrder on each element is rewritten to match.
func Sort(projects []model.EnhancedProject) {
	sort.SliceStable(projects, func(i, j int) bool {
		a, b := projects[i], projects[j]
		if a.Featured != b.Featured {
			return a.Featured
		}
		if a.DeploymentScore != b.DeploymentScore {
			return a.DeploymentScore > b.DeploymentScore
		}
		return a.DisplayName < b.DisplayName
	})
	for i := range projects {
		projects[i].SortOrder = i
	}
}
