package model

import "time"

// JobStatus is the lifecycle state of an ETL job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	// JobCompletedWithErrors means the run finished and loaded what it
	// could, but at least one source or record failed along the way.
	JobCompletedWithErrors JobStatus = "completed_with_errors"
	// JobFailed is reserved for conditions that prevented the load phase
	// from starting at all, such as an unreachable store.
	JobFailed JobStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobCompletedWithErrors, JobFailed:
		return true
	}
	return false
}

// ETLJob records one pipeline run. Jobs are created when a run starts,
// mutated only by the orchestrator, finalized exactly once, and retained
// for audit. Nothing deletes them automatically.
type ETLJob struct {
	ID        string     `json:"id"`
	Status    JobStatus  `json:"status"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// Sources the run covered, in registry order.
	Sources []string `json:"sources"`

	RecordsExtracted int `json:"records_extracted"`
	RecordsValid     int `json:"records_valid"`
	RecordsInvalid   int `json:"records_invalid"`
	RecordsMerged    int `json:"records_merged"`
	RecordsLoaded    int `json:"records_loaded"`
	RecordsSkipped   int `json:"records_skipped"`

	Errors []string `json:"errors,omitempty"`
}

// Duration returns the job's wall-clock duration, or the elapsed time so
// far if the job has not finished.
func (j *ETLJob) Duration(now time.Time) time.Duration {
	if j.EndTime != nil {
		return j.EndTime.Sub(j.StartTime)
	}
	return now.Sub(j.StartTime)
}

// JobStats aggregates the job history for status queries.
type JobStats struct {
	TotalJobs             int           `json:"total_jobs"`
	SuccessfulJobs        int           `json:"successful_jobs"`
	FailedJobs            int           `json:"failed_jobs"`
	TotalRecordsProcessed int           `json:"total_records_processed"`
	AverageProcessingTime time.Duration `json:"average_processing_time"`
	LastRunTime           time.Time     `json:"last_run_time"`
}
