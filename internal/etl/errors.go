package etl

import "fmt"

// JobConflictError is returned synchronously when a run is triggered while
// another job is still running. Triggers are rejected, never queued.
type JobConflictError struct {
	RunningJobID string
}

func (e *JobConflictError) Error() string {
	return fmt.Sprintf("etl: job %s is already running", e.RunningJobID)
}

// LoadError wraps a chunk load failure that survived retries and the
// per-record fallback.
type LoadError struct {
	Chunk int
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("etl: load chunk %d: %v", e.Chunk, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
