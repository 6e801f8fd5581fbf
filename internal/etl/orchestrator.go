// Package etl drives the pipeline: parallel extraction per source,
// canonicalize/validate/merge transform, and chunked transactional load
// with partial-failure tolerance.
package etl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/stroysmeta/normcat-cli/internal/canonical"
	"github.com/stroysmeta/normcat-cli/internal/model"
	"github.com/stroysmeta/normcat-cli/internal/resilience"
	"github.com/stroysmeta/normcat-cli/internal/source"
	"github.com/stroysmeta/normcat-cli/internal/store"
	"github.com/stroysmeta/normcat-cli/internal/validate"
)

// Config tunes the pipeline.
type Config struct {
	// ChunkSize is the number of items per load transaction.
	ChunkSize int `mapstructure:"chunk_size" yaml:"chunk_size"`

	// MaxConcurrentSources bounds parallel extraction.
	MaxConcurrentSources int `mapstructure:"max_concurrent" yaml:"max_concurrent"`

	// MaxJobErrors caps the error list stored on a job record.
	MaxJobErrors int `mapstructure:"max_job_errors" yaml:"max_job_errors"`

	// Retry governs chunk load retries.
	Retry resilience.RetryConfig `mapstructure:"-" yaml:"-"`
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 500
	}
	if c.MaxConcurrentSources <= 0 {
		c.MaxConcurrentSources = 3
	}
	if c.MaxJobErrors <= 0 {
		c.MaxJobErrors = 25
	}
	return c
}

// Orchestrator owns pipeline execution. It is a singleton with mutual
// exclusion: at most one job runs at a time, enforced by the running flag
// rather than by locking the store.
type Orchestrator struct {
	store     store.Store
	registry  *source.Registry
	canon     *canonical.Canonicalizer
	validator *validate.Validator
	cfg       Config

	mu        sync.Mutex
	running   bool
	runningID string
}

// New creates an orchestrator.
func New(st store.Store, reg *source.Registry, canon *canonical.Canonicalizer, validator *validate.Validator, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:     st,
		registry:  reg,
		canon:     canon,
		validator: validator,
		cfg:       cfg.withDefaults(),
	}
}

// RunFull executes the pipeline over every registered collector and blocks
// until it finishes.
func (o *Orchestrator) RunFull(ctx context.Context) (*model.ETLJob, error) {
	return o.Run(ctx, nil)
}

// RunForSource executes the pipeline for a single named collector.
func (o *Orchestrator) RunForSource(ctx context.Context, name string) (*model.ETLJob, error) {
	return o.Run(ctx, []string{name})
}

// Run executes the pipeline for the named collectors (all when empty) and
// blocks until the job reaches a terminal state. A concurrent trigger is
// rejected with JobConflictError.
func (o *Orchestrator) Run(ctx context.Context, names []string) (*model.ETLJob, error) {
	job, collectors, err := o.begin(ctx, names)
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, job, collectors), nil
}

// Launch starts the pipeline in the background and returns the created job
// immediately. Conflict detection is still synchronous. The run itself is
// detached from the trigger's context: an HTTP client disconnecting must
// not abort a half-loaded job.
func (o *Orchestrator) Launch(ctx context.Context, names []string) (*model.ETLJob, error) {
	job, collectors, err := o.begin(ctx, names)
	if err != nil {
		return nil, err
	}

	created := *job
	go o.execute(context.WithoutCancel(ctx), job, collectors)
	return &created, nil
}

// begin acquires the running flag and persists the new job record. The
// flag is released by execute, or here when job creation fails.
func (o *Orchestrator) begin(ctx context.Context, names []string) (*model.ETLJob, []source.Collector, error) {
	collectors, err := o.registry.Select(names)
	if err != nil {
		return nil, nil, err
	}
	if len(collectors) == 0 {
		return nil, nil, eris.New("etl: no collectors registered")
	}

	o.mu.Lock()
	if o.running {
		id := o.runningID
		o.mu.Unlock()
		return nil, nil, &JobConflictError{RunningJobID: id}
	}
	o.running = true
	o.mu.Unlock()

	sources := make([]string, len(collectors))
	for i, c := range collectors {
		sources[i] = c.Name()
	}

	job := &model.ETLJob{
		ID:        uuid.New().String(),
		Status:    model.JobPending,
		StartTime: time.Now().UTC(),
		Sources:   sources,
	}
	if err := o.store.CreateJob(ctx, job); err != nil {
		o.release()
		return nil, nil, eris.Wrap(err, "etl: create job")
	}

	o.mu.Lock()
	o.runningID = job.ID
	o.mu.Unlock()

	return job, collectors, nil
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.running = false
	o.runningID = ""
	o.mu.Unlock()
}

// execute runs the three phases and finalizes the job exactly once.
func (o *Orchestrator) execute(ctx context.Context, job *model.ETLJob, collectors []source.Collector) *model.ETLJob {
	defer o.release()

	log := zap.L().With(zap.String("component", "etl"), zap.String("job_id", job.ID))
	log.Info("pipeline starting", zap.Strings("sources", job.Sources))

	job.Status = model.JobRunning
	o.persist(ctx, job, log)

	raw := o.extract(ctx, job, collectors)
	items := o.transform(job, raw)

	if err := o.store.Ping(ctx); err != nil {
		// The store went away before load could start. Nothing was
		// written, so this is the one condition reserved for failed.
		o.addError(job, fmt.Sprintf("store unreachable: %v", err))
		o.finalize(ctx, job, model.JobFailed, log)
		return job
	}

	loadFailed := o.load(ctx, job, items)

	status := model.JobCompleted
	if len(job.Errors) > 0 || loadFailed > 0 {
		status = model.JobCompletedWithErrors
	}
	o.finalize(ctx, job, status, log)
	return job
}

func (o *Orchestrator) finalize(ctx context.Context, job *model.ETLJob, status model.JobStatus, log *zap.Logger) {
	now := time.Now().UTC()
	job.Status = status
	job.EndTime = &now
	o.persist(ctx, job, log)

	log.Info("pipeline finished",
		zap.String("status", string(status)),
		zap.Int("extracted", job.RecordsExtracted),
		zap.Int("valid", job.RecordsValid),
		zap.Int("invalid", job.RecordsInvalid),
		zap.Int("merged", job.RecordsMerged),
		zap.Int("loaded", job.RecordsLoaded),
		zap.Int("skipped", job.RecordsSkipped),
		zap.Int("errors", len(job.Errors)),
		zap.Duration("elapsed", job.Duration(now)),
	)
}

// persist best-effort updates the job record; a failed audit write must
// not abort the pipeline.
func (o *Orchestrator) persist(ctx context.Context, job *model.ETLJob, log *zap.Logger) {
	if err := o.store.UpdateJob(ctx, job); err != nil {
		log.Error("failed to persist job state", zap.Error(err))
	}
}

// addError appends to the job's error list, capped so a pathological run
// cannot bloat the audit record.
func (o *Orchestrator) addError(job *model.ETLJob, msg string) {
	if len(job.Errors) == o.cfg.MaxJobErrors {
		job.Errors = append(job.Errors, "further errors suppressed")
		return
	}
	if len(job.Errors) > o.cfg.MaxJobErrors {
		return
	}
	job.Errors = append(job.Errors, msg)
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(ctx context.Context, id string) (*model.ETLJob, error) {
	return o.store.GetJob(ctx, id)
}

// ListJobs returns the job history, newest first.
func (o *Orchestrator) ListJobs(ctx context.Context, filter store.JobFilter) ([]model.ETLJob, error) {
	return o.store.ListJobs(ctx, filter)
}

// Stats aggregates the job history.
func (o *Orchestrator) Stats(ctx context.Context) (*model.JobStats, error) {
	jobs, err := o.store.ListJobs(ctx, store.JobFilter{Limit: 1000})
	if err != nil {
		return nil, eris.Wrap(err, "etl: list jobs for stats")
	}

	stats := &model.JobStats{TotalJobs: len(jobs)}
	var totalDuration time.Duration
	finished := 0

	for i := range jobs {
		j := &jobs[i]
		switch j.Status {
		case model.JobCompleted, model.JobCompletedWithErrors:
			stats.SuccessfulJobs++
		case model.JobFailed:
			stats.FailedJobs++
		}
		stats.TotalRecordsProcessed += j.RecordsLoaded + j.RecordsSkipped
		if j.EndTime != nil {
			totalDuration += j.Duration(*j.EndTime)
			finished++
		}
		if j.StartTime.After(stats.LastRunTime) {
			stats.LastRunTime = j.StartTime
		}
	}
	if finished > 0 {
		stats.AverageProcessingTime = totalDuration / time.Duration(finished)
	}
	return stats, nil
}
