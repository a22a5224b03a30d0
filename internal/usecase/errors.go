package usecase

import (
	"fmt"

	"github.com/naka-gawa/triage-agenda/internal/domain"
)

// FetchError reports a query that failed for one repository.
type FetchError struct {
	Bucket string
	Repo   domain.Repository
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %q for %s: %v", e.Bucket, e.Repo.FullName(), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// TaskError reports a fetch task that could not run to completion,
// either because it was never admitted or because it panicked.
type TaskError struct {
	Bucket string
	Repo   domain.Repository
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %q for %s did not complete: %v", e.Bucket, e.Repo.FullName(), e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }
