package domain

// BucketStats holds summary figures for a single list bucket.
type BucketStats struct {
	Name          string  `json:"name"`
	Items         int     `json:"items"`
	Narratives    int     `json:"narratives"`
	Dragged       int     `json:"dragged"`
	MedianAgeDays float64 `json:"median_age_days"`
	P90AgeDays    float64 `json:"p90_age_days"`
}
