package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/naka-gawa/triage-agenda/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockQuery is a mock implementation of the domain.Query interface.
type mockQuery struct {
	mock.Mock
}

func (m *mockQuery) Fetch(ctx context.Context, repo domain.Repository) ([]domain.Issue, error) {
	args := m.Called(ctx, repo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Issue), args.Error(1)
}

// funcQuery adapts a function to domain.Query.
type funcQuery func(ctx context.Context, repo domain.Repository) ([]domain.Issue, error)

func (f funcQuery) Fetch(ctx context.Context, repo domain.Repository) ([]domain.Issue, error) {
	return f(ctx, repo)
}

// countingGate records the highest number of simultaneous holders.
type countingGate struct {
	Gate
	mu      sync.Mutex
	current int
	max     int
}

func (g *countingGate) Acquire(ctx context.Context) error {
	if err := g.Gate.Acquire(ctx); err != nil {
		return err
	}
	g.mu.Lock()
	g.current++
	if g.current > g.max {
		g.max = g.current
	}
	g.mu.Unlock()
	return nil
}

func (g *countingGate) Release() {
	g.mu.Lock()
	g.current--
	g.mu.Unlock()
	g.Gate.Release()
}

var (
	rustRepo = domain.Repository{Owner: "rust-lang", Name: "rust"}
	rfcsRepo = domain.Repository{Owner: "rust-lang", Name: "rfcs"}
)

func TestDispatcher_EmptyReport(t *testing.T) {
	d := NewDispatcher(NewGate(DefaultConcurrency), zap.NewNop())

	results, err := d.Dispatch(context.Background(), &domain.Report{Name: "lang_design_doc"})

	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestDispatcher_FetchesEveryPair(t *testing.T) {
	nominated := new(mockQuery)
	nominated.On("Fetch", mock.Anything, rustRepo).Return([]domain.Issue{issue(1)}, nil).Once()
	nominated.On("Fetch", mock.Anything, rfcsRepo).Return([]domain.Issue{issue(2)}, nil).Once()
	pCritical := new(mockQuery)
	pCritical.On("Fetch", mock.Anything, rustRepo).Return([]domain.Issue{issue(3), issue(4)}, nil).Once()
	pCritical.On("Fetch", mock.Anything, rfcsRepo).Return([]domain.Issue{}, nil).Once()

	report := &domain.Report{
		Name: "lang_agenda",
		Groups: []domain.QueryGroup{{
			Repos: []domain.Repository{rustRepo, rfcsRepo},
			Queries: []domain.NamedQuery{
				{Bucket: "nominated", Mode: domain.ModeList, Query: nominated},
				{Bucket: "p_critical", Mode: domain.ModeCount, Query: pCritical},
			},
		}},
	}

	d := NewDispatcher(NewGate(DefaultConcurrency), zap.NewNop())
	results, err := d.Dispatch(context.Background(), report)

	require.NoError(t, err)
	require.Len(t, results, 4)
	buckets := Aggregate(results)
	assert.ElementsMatch(t, []int{1, 2}, numbers(buckets["nominated"].Issues))
	assert.Equal(t, 2, buckets["p_critical"].Count)
	nominated.AssertExpectations(t)
	pCritical.AssertExpectations(t)
}

func TestDispatcher_RepeatedRepoIsFetchedPerGroup(t *testing.T) {
	q := new(mockQuery)
	q.On("Fetch", mock.Anything, rustRepo).Return([]domain.Issue{issue(1)}, nil).Twice()

	group := domain.QueryGroup{
		Repos:   []domain.Repository{rustRepo},
		Queries: []domain.NamedQuery{{Bucket: "in_fcp", Mode: domain.ModeList, Query: q}},
	}
	report := &domain.Report{Name: "prioritization_agenda", Groups: []domain.QueryGroup{group, group}}

	d := NewDispatcher(NewGate(DefaultConcurrency), zap.NewNop())
	results, err := d.Dispatch(context.Background(), report)

	require.NoError(t, err)
	assert.Len(t, results, 2)
	q.AssertNumberOfCalls(t, "Fetch", 2)
}

func TestDispatcher_OneFailureFailsTheRun(t *testing.T) {
	errBoom := errors.New("github api error")
	var succeeded atomic.Int32
	q := funcQuery(func(ctx context.Context, repo domain.Repository) ([]domain.Issue, error) {
		if repo.Name == "repo-3" {
			return nil, errBoom
		}
		succeeded.Add(1)
		return []domain.Issue{issue(1)}, nil
	})

	repos := make([]domain.Repository, 0, 8)
	for i := 0; i < 8; i++ {
		repos = append(repos, domain.Repository{Owner: "rust-lang", Name: fmt.Sprintf("repo-%d", i)})
	}
	report := &domain.Report{
		Name: "lang_agenda",
		Groups: []domain.QueryGroup{{
			Repos:   repos,
			Queries: []domain.NamedQuery{{Bucket: "nominated", Mode: domain.ModeList, Query: q}},
		}},
	}

	d := NewDispatcher(NewGate(DefaultConcurrency), zap.NewNop())
	results, err := d.Dispatch(context.Background(), report)

	require.Error(t, err)
	assert.Nil(t, results)
	assert.ErrorIs(t, err, errBoom)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "nominated", fetchErr.Bucket)
	assert.Equal(t, "repo-3", fetchErr.Repo.Name)
	// Siblings are not cancelled and all run to completion before the join returns.
	assert.Equal(t, int32(7), succeeded.Load())
}

func TestDispatcher_RespectsConcurrencyCeiling(t *testing.T) {
	gate := &countingGate{Gate: NewGate(DefaultConcurrency)}
	var inFlight, maxInFlight atomic.Int32
	q := funcQuery(func(ctx context.Context, repo domain.Repository) ([]domain.Issue, error) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return []domain.Issue{issue(1)}, nil
	})

	repos := make([]domain.Repository, 0, 6)
	for i := 0; i < 6; i++ {
		repos = append(repos, domain.Repository{Owner: "rust-lang", Name: fmt.Sprintf("repo-%d", i)})
	}
	report := &domain.Report{
		Name: "lang_agenda",
		Groups: []domain.QueryGroup{{
			Repos: repos,
			Queries: []domain.NamedQuery{
				{Bucket: "nominated", Mode: domain.ModeList, Query: q},
				{Bucket: "in_fcp", Mode: domain.ModeList, Query: q},
				{Bucket: "p_high", Mode: domain.ModeCount, Query: q},
			},
		}},
	}

	d := NewDispatcher(gate, zap.NewNop())
	results, err := d.Dispatch(context.Background(), report)

	require.NoError(t, err)
	assert.Len(t, results, 18)
	// 18 tasks against a ceiling of 5: the gate must fill up, never overflow.
	assert.Equal(t, DefaultConcurrency, gate.max)
	assert.Equal(t, int32(DefaultConcurrency), maxInFlight.Load())
	assert.Equal(t, 0, gate.current)
}

func TestDispatcher_ResultsInCompletionOrder(t *testing.T) {
	slow := funcQuery(func(ctx context.Context, repo domain.Repository) ([]domain.Issue, error) {
		time.Sleep(30 * time.Millisecond)
		return []domain.Issue{issue(1)}, nil
	})
	fast := funcQuery(func(ctx context.Context, repo domain.Repository) ([]domain.Issue, error) {
		return []domain.Issue{issue(2)}, nil
	})
	report := &domain.Report{
		Name: "lang_agenda",
		Groups: []domain.QueryGroup{{
			Repos: []domain.Repository{rustRepo},
			Queries: []domain.NamedQuery{
				{Bucket: "nominated", Mode: domain.ModeList, Query: slow},
				{Bucket: "nominated", Mode: domain.ModeList, Query: fast},
			},
		}},
	}

	d := NewDispatcher(NewGate(DefaultConcurrency), zap.NewNop())
	results, err := d.Dispatch(context.Background(), report)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Issues[0].Number)
	assert.Equal(t, 1, results[1].Issues[0].Number)
}

func TestDispatcher_TaskErrors(t *testing.T) {
	testCases := []struct {
		name     string
		ctx      func() context.Context
		holdGate bool
		query    domain.Query
	}{
		{
			name: "panicking query",
			ctx:  context.Background,
			query: funcQuery(func(ctx context.Context, repo domain.Repository) ([]domain.Issue, error) {
				panic("unexpected response shape")
			}),
		},
		{
			name:     "gate refuses admission",
			holdGate: true,
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			query: funcQuery(func(ctx context.Context, repo domain.Repository) ([]domain.Issue, error) {
				return []domain.Issue{issue(1)}, nil
			}),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gate := NewGate(1)
			if tc.holdGate {
				require.NoError(t, gate.Acquire(context.Background()))
				defer gate.Release()
			}
			report := &domain.Report{
				Name: "lang_agenda",
				Groups: []domain.QueryGroup{{
					Repos:   []domain.Repository{rustRepo},
					Queries: []domain.NamedQuery{{Bucket: "nominated", Mode: domain.ModeList, Query: tc.query}},
				}},
			}

			d := NewDispatcher(gate, zap.NewNop())
			results, err := d.Dispatch(tc.ctx(), report)

			assert.Nil(t, results)
			var taskErr *TaskError
			require.ErrorAs(t, err, &taskErr)
			assert.Equal(t, rustRepo, taskErr.Repo)
		})
	}
}

func TestNewGate_DefaultsInvalidLimit(t *testing.T) {
	gate := NewGate(0)
	ctx := context.Background()
	for i := 0; i < DefaultConcurrency; i++ {
		require.NoError(t, gate.Acquire(ctx))
	}
	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.Error(t, gate.Acquire(short))
	for i := 0; i < DefaultConcurrency; i++ {
		gate.Release()
	}
}

func sortedBuckets(results []FetchResult) []string {
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Bucket)
	}
	sort.Strings(names)
	return names
}

func TestDispatcher_SpansGroups(t *testing.T) {
	ok := funcQuery(func(ctx context.Context, repo domain.Repository) ([]domain.Issue, error) {
		return []domain.Issue{issue(1)}, nil
	})
	report := &domain.Report{
		Name: "council_triage_agenda",
		Groups: []domain.QueryGroup{
			{
				Repos:   []domain.Repository{rustRepo},
				Queries: []domain.NamedQuery{{Bucket: "p_high_issues", Mode: domain.ModeList, Query: ok}},
			},
			{
				Repos:   []domain.Repository{rustRepo, rfcsRepo},
				Queries: []domain.NamedQuery{{Bucket: "nominated_issues", Mode: domain.ModeList, Query: ok}},
			},
			{},
		},
	}

	d := NewDispatcher(NewGate(2), zap.NewNop())
	results, err := d.Dispatch(context.Background(), report)

	require.NoError(t, err)
	assert.Equal(t, []string{"nominated_issues", "nominated_issues", "p_high_issues"}, sortedBuckets(results))
}
