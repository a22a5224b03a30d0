package usecase

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/triage-agenda/internal/domain"
)

// FetchResult is the outcome of one (repository, query) pair.
type FetchResult struct {
	Bucket string
	Mode   domain.Mode
	Issues []domain.Issue
}

// Dispatcher runs every (repository, query) pair of a report as its own task,
// with the number of fetches in flight bounded by a shared Gate.
type Dispatcher struct {
	gate   Gate
	logger *zap.Logger
}

// NewDispatcher creates a new Dispatcher instance.
func NewDispatcher(gate Gate, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		gate:   gate,
		logger: logger,
	}
}

// Dispatch fetches every pair of the report and returns the results in
// completion order. If any task fails the whole dispatch fails and no results
// are returned; tasks already running are still waited for.
func (d *Dispatcher) Dispatch(ctx context.Context, report *domain.Report) ([]FetchResult, error) {
	var (
		mu      sync.Mutex
		results []FetchResult
		eg      errgroup.Group
		tasks   int
	)

	// No errgroup.WithContext here: one failing fetch must not cancel its siblings.
	for _, group := range report.Groups {
		for _, repo := range group.Repos {
			for _, nq := range group.Queries {
				tasks++
				eg.Go(func() error {
					issues, err := d.run(ctx, repo, nq)
					if err != nil {
						return err
					}
					mu.Lock()
					results = append(results, FetchResult{Bucket: nq.Bucket, Mode: nq.Mode, Issues: issues})
					mu.Unlock()
					return nil
				})
			}
		}
	}
	d.logger.Debug("dispatched fetch tasks", zap.String("report", report.Name), zap.Int("tasks", tasks))

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if results == nil {
		results = []FetchResult{}
	}
	return results, nil
}

func (d *Dispatcher) run(ctx context.Context, repo domain.Repository, nq domain.NamedQuery) (issues []domain.Issue, err error) {
	if err := d.gate.Acquire(ctx); err != nil {
		return nil, &TaskError{Bucket: nq.Bucket, Repo: repo, Err: err}
	}
	defer d.gate.Release()
	defer func() {
		if r := recover(); r != nil {
			issues, err = nil, &TaskError{Bucket: nq.Bucket, Repo: repo, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	issues, err = nq.Query.Fetch(ctx, repo)
	if err != nil {
		d.logger.Debug("fetch failed", zap.String("bucket", nq.Bucket), zap.String("repo", repo.FullName()), zap.Error(err))
		return nil, &FetchError{Bucket: nq.Bucket, Repo: repo, Err: err}
	}
	d.logger.Debug("fetched", zap.String("bucket", nq.Bucket), zap.String("repo", repo.FullName()), zap.Int("issues", len(issues)))
	return issues, nil
}
