// Package usecase contains the business logic of an agenda run: dispatching
// fetches, aggregating their results and building the rendering context.
package usecase

import (
	"sort"

	"github.com/naka-gawa/triage-agenda/internal/domain"
)

// Aggregate folds fetch results into named buckets. List results are appended
// in the order they are given, count results are summed. Every list bucket is
// sorted with SortIssues afterwards.
func Aggregate(results []FetchResult) map[string]*domain.Bucket {
	buckets := make(map[string]*domain.Bucket)

	for _, r := range results {
		b, ok := buckets[r.Bucket]
		if !ok {
			b = &domain.Bucket{Mode: r.Mode}
			buckets[r.Bucket] = b
		}
		switch r.Mode {
		case domain.ModeList:
			b.Issues = append(b.Issues, r.Issues...)
		case domain.ModeCount:
			b.Count += len(r.Issues)
		}
	}

	for _, b := range buckets {
		if b.Mode == domain.ModeList {
			SortIssues(b.Issues)
		}
	}
	return buckets
}

// SortIssues orders issues in place by drag (present first, lowest first).
// Among issues without a drag, those with a narrative come first.
//
// This is two stable passes and the order matters: the drag pass runs last,
// so narrative only breaks ties between issues without a drag.
func SortIssues(issues []domain.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Narrative != nil && issues[j].Narrative == nil
	})
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i].Drag, issues[j].Drag
		switch {
		case a != nil && b != nil:
			return *a < *b
		case a != nil:
			return true
		default:
			return false
		}
	})
}
