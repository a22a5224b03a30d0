package usecase

import (
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/naka-gawa/triage-agenda/internal/domain"
)

// Summarize computes per-bucket statistics for the list buckets, sorted by
// bucket name for consistent output. Ages are measured from now to each
// issue's last update.
func Summarize(buckets map[string]*domain.Bucket, now time.Time) []*domain.BucketStats {
	summary := make([]*domain.BucketStats, 0, len(buckets))
	for name, b := range buckets {
		if b.Mode != domain.ModeList {
			continue
		}
		s := &domain.BucketStats{Name: name, Items: len(b.Issues)}
		ages := make(stats.Float64Data, 0, len(b.Issues))
		for _, issue := range b.Issues {
			if issue.Narrative != nil {
				s.Narratives++
			}
			if issue.Drag != nil {
				s.Dragged++
			}
			if !issue.UpdatedAt.IsZero() {
				ages = append(ages, now.Sub(issue.UpdatedAt).Hours()/24)
			}
		}
		// Both return an error only for empty input, which leaves the zero value.
		if median, err := stats.Median(ages); err == nil {
			s.MedianAgeDays = median
		}
		if p90, err := stats.Percentile(ages, 90); err == nil {
			s.P90AgeDays = p90
		}
		summary = append(summary, s)
	}
	sort.Slice(summary, func(i, j int) bool {
		return summary[i].Name < summary[j].Name
	})
	return summary
}
