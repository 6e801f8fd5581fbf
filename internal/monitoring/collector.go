// Package monitoring gathers point-in-time health snapshots over the job
// history and catalog contents.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/stroysmeta/normcat-cli/internal/model"
	"github.com/stroysmeta/normcat-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// ETL job metrics (within lookback window).
	JobsTotal     int     `json:"jobs_total"`
	JobsComplete  int     `json:"jobs_complete"`
	JobsWithError int     `json:"jobs_with_errors"`
	JobsFailed    int     `json:"jobs_failed"`
	JobsRunning   int     `json:"jobs_running"`
	JobFailRate   float64 `json:"job_fail_rate"`

	RecordsLoaded  int `json:"records_loaded"`
	RecordsSkipped int `json:"records_skipped"`
	RecordsInvalid int `json:"records_invalid"`

	// Catalog contents, not windowed.
	CatalogCounts     map[model.Category]int64 `json:"catalog_counts"`
	CatalogTotal      int64                    `json:"catalog_total"`
	ActiveCoefficient int64                    `json:"active_coefficients"`

	LastRunTime time.Time `json:"last_run_time"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of system metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	jobs, err := c.store.ListJobs(ctx, store.JobFilter{Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list jobs")
	}

	for i := range jobs {
		j := &jobs[i]
		if j.StartTime.After(snap.LastRunTime) {
			snap.LastRunTime = j.StartTime
		}
		if j.StartTime.Before(cutoff) {
			continue
		}

		snap.JobsTotal++
		switch j.Status {
		case model.JobCompleted:
			snap.JobsComplete++
		case model.JobCompletedWithErrors:
			snap.JobsWithError++
		case model.JobFailed:
			snap.JobsFailed++
		case model.JobRunning:
			snap.JobsRunning++
		}
		snap.RecordsLoaded += j.RecordsLoaded
		snap.RecordsSkipped += j.RecordsSkipped
		snap.RecordsInvalid += j.RecordsInvalid
	}

	finished := snap.JobsComplete + snap.JobsWithError + snap.JobsFailed
	if finished > 0 {
		snap.JobFailRate = float64(snap.JobsFailed) / float64(finished)
	}

	counts, err := c.store.CatalogCounts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: catalog counts")
	}
	snap.CatalogCounts = counts
	for _, n := range counts {
		snap.CatalogTotal += n
	}

	coeffs, err := c.store.CoefficientCount(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: coefficient count")
	}
	snap.ActiveCoefficient = coeffs

	return snap, nil
}
