package store

import (
	"slices"
	"strings"

	"github.com/applytrak/applytrak/internal/types"
)

// Filtered returns the applications matching s.Filter, most recently applied first.
func Filtered(s State) []types.Application {
	query := strings.ToLower(strings.TrimSpace(s.Filter.Search))

	out := make([]types.Application, 0, len(s.Applications))
	for _, app := range s.Applications {
		if s.Filter.Status != "" && app.Status != s.Filter.Status {
			continue
		}
		if query != "" && !matches(app, query) {
			continue
		}
		out = append(out, app)
	}

	slices.SortStableFunc(out, func(a, b types.Application) int {
		return strings.Compare(b.DateApplied, a.DateApplied)
	})
	return out
}

func matches(app types.Application, query string) bool {
	for _, field := range []string{app.Company, app.Position, app.Location, app.Notes} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// StatusCounts tallies applications per status.
func StatusCounts(apps []types.Application) map[types.Status]int {
	counts := make(map[types.Status]int, len(types.Statuses))
	for _, s := range types.Statuses {
		counts[s] = 0
	}
	for _, app := range apps {
		counts[app.Status]++
	}
	return counts
}
