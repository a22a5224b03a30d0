package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/triage-agenda/internal/domain"
)

const defaultMeetingsWindow = 7 * 24 * time.Hour

// Renderer turns a rendering context into the final agenda text.
// name selects the template.
type Renderer interface {
	Render(name string, data map[string]any) (string, error)
}

// Result is everything an agenda run produces before rendering.
type Result struct {
	Buckets map[string]*domain.Bucket
	Data    map[string]any
}

// Agenda is the use case for producing an agenda from a report.
// It orchestrates the fetches, the meetings lookup and the rendering.
type Agenda struct {
	dispatcher     *Dispatcher
	meetings       domain.MeetingsProvider
	renderer       Renderer
	logger         *zap.Logger
	now            func() time.Time
	meetingsWindow time.Duration
}

// Option configures an Agenda.
type Option func(*Agenda)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Agenda) { a.now = now }
}

// WithMeetingsWindow sets how far ahead meetings are looked up.
func WithMeetingsWindow(d time.Duration) Option {
	return func(a *Agenda) { a.meetingsWindow = d }
}

// NewAgenda creates a new Agenda instance.
func NewAgenda(dispatcher *Dispatcher, meetings domain.MeetingsProvider, renderer Renderer, logger *zap.Logger, opts ...Option) *Agenda {
	a := &Agenda{
		dispatcher:     dispatcher,
		meetings:       meetings,
		renderer:       renderer,
		logger:         logger,
		now:            time.Now,
		meetingsWindow: defaultMeetingsWindow,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Build fetches and aggregates a report without rendering it.
// A fetch failure fails the build; a meetings failure only empties the meetings.
func (a *Agenda) Build(ctx context.Context, report *domain.Report) (*Result, error) {
	a.logger.Debug("building agenda", zap.String("report", report.Name))
	now := a.now()

	var (
		results  []FetchResult
		meetings []domain.Meeting
		eg       errgroup.Group
	)
	eg.Go(func() error {
		var err error
		results, err = a.dispatcher.Dispatch(ctx, report)
		return err
	})
	eg.Go(func() error {
		meetings = a.fetchMeetings(ctx, now)
		return nil
	})
	if err := eg.Wait(); err != nil {
		a.logger.Debug("agenda fetch failed", zap.String("report", report.Name), zap.Error(err))
		return nil, err
	}

	buckets := Aggregate(results)
	a.logger.Debug("aggregated agenda", zap.String("report", report.Name), zap.Int("buckets", len(buckets)))
	return &Result{
		Buckets: buckets,
		Data:    BuildContext(buckets, now, meetings),
	}, nil
}

// Run builds the report and renders it with the template of the same name.
// Rendering errors are returned unchanged.
func (a *Agenda) Run(ctx context.Context, report *domain.Report) (string, error) {
	res, err := a.Build(ctx, report)
	if err != nil {
		return "", err
	}
	return a.renderer.Render(report.Name, res.Data)
}

func (a *Agenda) fetchMeetings(ctx context.Context, now time.Time) []domain.Meeting {
	if a.meetings == nil {
		return []domain.Meeting{}
	}
	meetings, err := a.meetings.GetMeetings(ctx, now, now.Add(a.meetingsWindow))
	if err != nil {
		if errors.Is(err, domain.ErrMeetingsNotConfigured) {
			a.logger.Debug("meetings skipped", zap.Error(err))
		} else {
			a.logger.Warn("meetings couldn't be retrieved", zap.Error(err))
		}
		return []domain.Meeting{}
	}
	return meetings
}
