package gateway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/naka-gawa/triage-agenda/internal/domain"
)

// ErrCalendarNotConfigured is returned when no API key or calendar id is set.
var ErrCalendarNotConfigured = fmt.Errorf("calendar: %w", domain.ErrMeetingsNotConfigured)

// GoogleCalendar lists meetings from a public Google calendar.
type GoogleCalendar struct {
	apiKey     string
	calendarID string
	opts       []option.ClientOption
	logger     *zap.Logger
}

// NewGoogleCalendar creates a calendar client. Extra options are passed to
// the Calendar service, e.g. option.WithEndpoint.
func NewGoogleCalendar(apiKey, calendarID string, logger *zap.Logger, opts ...option.ClientOption) *GoogleCalendar {
	return &GoogleCalendar{
		apiKey:     apiKey,
		calendarID: calendarID,
		opts:       opts,
		logger:     logger,
	}
}

// GetMeetings returns the events between start and end in start order.
func (c *GoogleCalendar) GetMeetings(ctx context.Context, start, end time.Time) ([]domain.Meeting, error) {
	if c.apiKey == "" || c.calendarID == "" {
		return nil, ErrCalendarNotConfigured
	}
	opts := append([]option.ClientOption{option.WithAPIKey(c.apiKey)}, c.opts...)
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	meetings := []domain.Meeting{}
	call := svc.Events.List(c.calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")
	err = call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			meetings = append(meetings, domain.Meeting{
				Summary:  item.Summary,
				HTMLLink: item.HtmlLink,
				Start:    eventTime(item.Start),
				End:      eventTime(item.End),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch calendar events: %w", err)
	}
	c.logger.Debug("fetched meetings", zap.Int("count", len(meetings)))
	return meetings, nil
}

// eventTime reads a timed event's dateTime, or the date of an all-day event.
func eventTime(t *calendar.EventDateTime) time.Time {
	if t == nil {
		return time.Time{}
	}
	if t.DateTime != "" {
		if dt, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return dt
		}
	}
	d, err := time.Parse("2006-01-02", t.Date)
	if err != nil {
		return time.Time{}
	}
	return d
}
