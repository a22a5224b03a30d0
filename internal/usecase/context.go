package usecase

import (
	"time"

	"github.com/naka-gawa/triage-agenda/internal/domain"
)

const (
	// CurrentDateKey holds the run date as YYYY-MM-DD (UTC).
	CurrentDateKey = "CURRENT_DATE"
	// MeetingsKey holds the upcoming meetings.
	MeetingsKey = "meetings"

	currentDateLayout = "2006-01-02"
)

// BuildContext flattens the buckets into the map handed to the renderer and
// adds the current date and the meetings. Meetings is never nil in the result.
func BuildContext(buckets map[string]*domain.Bucket, now time.Time, meetings []domain.Meeting) map[string]any {
	data := make(map[string]any, len(buckets)+2)
	for name, b := range buckets {
		data[name] = b.Value()
	}
	if meetings == nil {
		meetings = []domain.Meeting{}
	}
	data[CurrentDateKey] = now.UTC().Format(currentDateLayout)
	data[MeetingsKey] = meetings
	return data
}
