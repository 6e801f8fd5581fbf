// Package store persists the canonical catalog, coefficient reference
// data, and ETL job history. Two implementations exist: PostgreSQL for
// production and SQLite for local single-binary use.
package store

import (
	"context"

	"github.com/stroysmeta/normcat-cli/internal/model"
)

// JobFilter specifies criteria for listing ETL jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the catalog pipeline.
type Store interface {
	// Catalog items. UpsertBatch writes one chunk inside a single
	// transaction, keyed by (code, category, region, valid_from);
	// loaded counts inserted or changed rows, skipped counts rows that
	// already held identical values. UpsertOne is the per-record
	// fallback used when a chunk transaction keeps failing.
	UpsertBatch(ctx context.Context, items []*model.CanonicalItem) (loaded, skipped int, err error)
	UpsertOne(ctx context.Context, item *model.CanonicalItem) error
	FindByCode(ctx context.Context, code string) ([]model.CanonicalItem, error)
	CatalogCounts(ctx context.Context) (map[model.Category]int64, error)

	// Coefficient reference data, read-only to the pipeline and updated
	// by the periodic refresh.
	FindCoefficients(ctx context.Context, regionCode, targetPeriod string) ([]model.IndexCoefficient, error)
	FindOverheadNorm(ctx context.Context, regionCode string) (*model.OverheadProfitNorm, error)
	UpsertCoefficients(ctx context.Context, coeffs []model.IndexCoefficient) (int, error)
	UpsertOverheadNorms(ctx context.Context, norms []model.OverheadProfitNorm) (int, error)
	CoefficientCount(ctx context.Context) (int64, error)

	// ETL job audit trail.
	CreateJob(ctx context.Context, job *model.ETLJob) error
	UpdateJob(ctx context.Context, job *model.ETLJob) error
	GetJob(ctx context.Context, id string) (*model.ETLJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.ETLJob, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
