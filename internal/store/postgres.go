package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/stroysmeta/normcat-cli/internal/db"
	"github.com/stroysmeta/normcat-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"find_by_code": `SELECT code, name, unit, labor_cost, material_cost, machine_cost, total_cost,
		category, source_name, region, chapter, section, valid_from, valid_to,
		materials, labor_consumption, machine_time, provenance
		FROM catalog_items WHERE code = $1
		ORDER BY region, valid_from DESC`,
	"get_job": `SELECT id, status, start_time, end_time, sources,
		records_extracted, records_valid, records_invalid, records_merged,
		records_loaded, records_skipped, errors
		FROM etl_jobs WHERE id = $1`,
	"find_overhead_norm": `SELECT region_code, overhead_norm, profit_norm, is_active
		FROM overhead_profit_norms
		WHERE is_active AND (region_code = $1 OR region_code = '')
		ORDER BY (region_code = $1) DESC LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS catalog_items (
	code              TEXT NOT NULL,
	name              TEXT NOT NULL,
	unit              TEXT NOT NULL DEFAULT '',
	labor_cost        DOUBLE PRECISION NOT NULL DEFAULT 0,
	material_cost     DOUBLE PRECISION NOT NULL DEFAULT 0,
	machine_cost      DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_cost        DOUBLE PRECISION NOT NULL DEFAULT 0,
	category          TEXT NOT NULL,
	source_name       TEXT NOT NULL DEFAULT '',
	region            TEXT NOT NULL DEFAULT '',
	chapter           TEXT NOT NULL DEFAULT '',
	section           TEXT NOT NULL DEFAULT '',
	valid_from        TIMESTAMPTZ NOT NULL,
	valid_to          TIMESTAMPTZ,
	materials         JSONB,
	labor_consumption DOUBLE PRECISION NOT NULL DEFAULT 0,
	machine_time      DOUBLE PRECISION NOT NULL DEFAULT 0,
	provenance        JSONB NOT NULL DEFAULT '{}',
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (code, category, region, valid_from)
);

CREATE INDEX IF NOT EXISTS idx_catalog_items_code ON catalog_items(code);
CREATE INDEX IF NOT EXISTS idx_catalog_items_category ON catalog_items(category);
CREATE INDEX IF NOT EXISTS idx_catalog_items_region ON catalog_items(region);

CREATE TABLE IF NOT EXISTS index_coefficients (
	coefficient_type  TEXT NOT NULL,
	base_period       TEXT NOT NULL,
	target_period     TEXT NOT NULL,
	region_code       TEXT NOT NULL DEFAULT '',
	region_name       TEXT NOT NULL DEFAULT '',
	construction_type TEXT NOT NULL DEFAULT '',
	value             DOUBLE PRECISION NOT NULL,
	valid_from        TIMESTAMPTZ NOT NULL,
	is_active         BOOLEAN NOT NULL DEFAULT true,
	PRIMARY KEY (coefficient_type, base_period, target_period, region_code, construction_type)
);

CREATE INDEX IF NOT EXISTS idx_index_coefficients_region ON index_coefficients(region_code);

CREATE TABLE IF NOT EXISTS overhead_profit_norms (
	region_code   TEXT PRIMARY KEY,
	overhead_norm DOUBLE PRECISION NOT NULL,
	profit_norm   DOUBLE PRECISION NOT NULL,
	is_active     BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS etl_jobs (
	id                TEXT PRIMARY KEY,
	status            TEXT NOT NULL DEFAULT 'pending',
	start_time        TIMESTAMPTZ NOT NULL,
	end_time          TIMESTAMPTZ,
	sources           JSONB NOT NULL DEFAULT '[]',
	records_extracted INTEGER NOT NULL DEFAULT 0,
	records_valid     INTEGER NOT NULL DEFAULT 0,
	records_invalid   INTEGER NOT NULL DEFAULT 0,
	records_merged    INTEGER NOT NULL DEFAULT 0,
	records_loaded    INTEGER NOT NULL DEFAULT 0,
	records_skipped   INTEGER NOT NULL DEFAULT 0,
	errors            JSONB NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_etl_jobs_status ON etl_jobs(status);
CREATE INDEX IF NOT EXISTS idx_etl_jobs_start_time ON etl_jobs(start_time DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// catalogColumns is the column order shared by batch upsert and scans.
var catalogColumns = []string{
	"code", "name", "unit",
	"labor_cost", "material_cost", "machine_cost", "total_cost",
	"category", "source_name", "region", "chapter", "section",
	"valid_from", "valid_to",
	"materials", "labor_consumption", "machine_time", "provenance",
	"updated_at",
}

func catalogRow(item *model.CanonicalItem, now time.Time) ([]any, error) {
	materialsJSON, err := json.Marshal(item.Materials)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: marshal materials for %s", item.Code)
	}
	provenanceJSON, err := json.Marshal(item.Provenance)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: marshal provenance for %s", item.Code)
	}
	return []any{
		item.Code, item.Name, item.Unit,
		item.LaborCost, item.MaterialCost, item.MachineCost, item.TotalCost,
		string(item.Category), item.SourceName, item.Region, item.Chapter, item.Section,
		item.ValidFrom, item.ValidTo,
		materialsJSON, item.LaborConsumption, item.MachineTime, provenanceJSON,
		now,
	}, nil
}

// UpsertBatch writes one chunk of items in a single transaction. Rows whose
// stored values already match are left untouched and counted as skipped,
// so re-running the pipeline against unchanged sources is a no-op.
func (s *PostgresStore) UpsertBatch(ctx context.Context, items []*model.CanonicalItem) (int, int, error) {
	if len(items) == 0 {
		return 0, 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(items))
	for _, item := range items {
		row, err := catalogRow(item, now)
		if err != nil {
			return 0, 0, err
		}
		rows = append(rows, row)
	}

	affected, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "catalog_items",
		Columns:      catalogColumns,
		ConflictKeys: []string{"code", "category", "region", "valid_from"},
		// updated_at must not defeat the unchanged-row guard.
		UpdateCols: []string{
			"name", "unit",
			"labor_cost", "material_cost", "machine_cost", "total_cost",
			"source_name", "chapter", "section", "valid_to",
			"materials", "labor_consumption", "machine_time", "provenance",
		},
		SkipUnchanged: true,
	}, rows)
	if err != nil {
		return 0, 0, eris.Wrap(err, "postgres: upsert catalog batch")
	}

	loaded := int(affected)
	skipped := len(items) - loaded
	if skipped < 0 {
		skipped = 0
	}
	return loaded, skipped, nil
}

// UpsertOne writes a single item, the fallback path when a chunk keeps
// failing and records must be isolated.
func (s *PostgresStore) UpsertOne(ctx context.Context, item *model.CanonicalItem) error {
	now := time.Now().UTC()
	row, err := catalogRow(item, now)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO catalog_items
		(code, name, unit, labor_cost, material_cost, machine_cost, total_cost,
		 category, source_name, region, chapter, section, valid_from, valid_to,
		 materials, labor_consumption, machine_time, provenance, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (code, category, region, valid_from) DO UPDATE SET
			name = EXCLUDED.name, unit = EXCLUDED.unit,
			labor_cost = EXCLUDED.labor_cost, material_cost = EXCLUDED.material_cost,
			machine_cost = EXCLUDED.machine_cost, total_cost = EXCLUDED.total_cost,
			source_name = EXCLUDED.source_name, chapter = EXCLUDED.chapter,
			section = EXCLUDED.section, valid_to = EXCLUDED.valid_to,
			materials = EXCLUDED.materials, labor_consumption = EXCLUDED.labor_consumption,
			machine_time = EXCLUDED.machine_time, provenance = EXCLUDED.provenance,
			updated_at = EXCLUDED.updated_at`,
		row...,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert item %s", item.Code)
	}
	return nil
}

func scanCatalogItem(row pgx.CollectableRow) (model.CanonicalItem, error) {
	var item model.CanonicalItem
	var materialsJSON, provenanceJSON []byte

	err := row.Scan(
		&item.Code, &item.Name, &item.Unit,
		&item.LaborCost, &item.MaterialCost, &item.MachineCost, &item.TotalCost,
		&item.Category, &item.SourceName, &item.Region, &item.Chapter, &item.Section,
		&item.ValidFrom, &item.ValidTo,
		&materialsJSON, &item.LaborConsumption, &item.MachineTime, &provenanceJSON,
	)
	if err != nil {
		return item, err
	}

	if len(materialsJSON) > 0 {
		if err := json.Unmarshal(materialsJSON, &item.Materials); err != nil {
			return item, eris.Wrapf(err, "postgres: unmarshal materials for %s", item.Code)
		}
	}
	if len(provenanceJSON) > 0 {
		if err := json.Unmarshal(provenanceJSON, &item.Provenance); err != nil {
			return item, eris.Wrapf(err, "postgres: unmarshal provenance for %s", item.Code)
		}
	}
	return item, nil
}

// FindByCode returns every catalog record carrying the code, ordered by
// region and newest validity first. The pricing engine picks its preferred
// record from this set.
func (s *PostgresStore) FindByCode(ctx context.Context, code string) ([]model.CanonicalItem, error) {
	rows, err := s.pool.Query(ctx, `SELECT code, name, unit, labor_cost, material_cost, machine_cost, total_cost,
		category, source_name, region, chapter, section, valid_from, valid_to,
		materials, labor_consumption, machine_time, provenance
		FROM catalog_items WHERE code = $1
		ORDER BY region, valid_from DESC`, code)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find by code %s", code)
	}
	defer rows.Close()

	items, err := pgx.CollectRows(rows, scanCatalogItem)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: scan items for code %s", code)
	}
	return items, nil
}

// CatalogCounts returns the number of stored items per category.
func (s *PostgresStore) CatalogCounts(ctx context.Context) (map[model.Category]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT category, count(*) FROM catalog_items GROUP BY category`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: catalog counts")
	}
	defer rows.Close()

	counts := make(map[model.Category]int64)
	for rows.Next() {
		var cat string
		var n int64
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan catalog count")
		}
		counts[model.Category(cat)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: catalog counts rows")
	}
	return counts, nil
}

// FindCoefficients returns active coefficients applicable to the region
// and target period: region-specific rows plus national fallbacks. An
// empty targetPeriod matches any period.
func (s *PostgresStore) FindCoefficients(ctx context.Context, regionCode, targetPeriod string) ([]model.IndexCoefficient, error) {
	rows, err := s.pool.Query(ctx, `SELECT coefficient_type, base_period, target_period,
		region_code, region_name, construction_type, value, valid_from, is_active
		FROM index_coefficients
		WHERE is_active AND (region_code = $1 OR region_code = '')
		  AND ($2 = '' OR target_period = $2)
		ORDER BY coefficient_type, region_code DESC`, regionCode, targetPeriod)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find coefficients for region %s", regionCode)
	}
	defer rows.Close()

	coeffs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.IndexCoefficient, error) {
		var c model.IndexCoefficient
		err := row.Scan(&c.Type, &c.BasePeriod, &c.TargetPeriod,
			&c.RegionCode, &c.RegionName, &c.ConstructionType, &c.Value, &c.ValidFrom, &c.IsActive)
		return c, err
	})
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan coefficients")
	}
	return coeffs, nil
}

// FindOverheadNorm returns the active norm for the region, falling back to
// the national norm. Returns nil when neither exists.
func (s *PostgresStore) FindOverheadNorm(ctx context.Context, regionCode string) (*model.OverheadProfitNorm, error) {
	var n model.OverheadProfitNorm
	err := s.pool.QueryRow(ctx, `SELECT region_code, overhead_norm, profit_norm, is_active
		FROM overhead_profit_norms
		WHERE is_active AND (region_code = $1 OR region_code = '')
		ORDER BY (region_code = $1) DESC LIMIT 1`, regionCode).
		Scan(&n.RegionCode, &n.OverheadNorm, &n.ProfitNorm, &n.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find overhead norm for region %s", regionCode)
	}
	return &n, nil
}

// UpsertCoefficients writes coefficient reference data, keyed by the
// coefficient's full uniqueness tuple.
func (s *PostgresStore) UpsertCoefficients(ctx context.Context, coeffs []model.IndexCoefficient) (int, error) {
	if len(coeffs) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(coeffs))
	for _, c := range coeffs {
		rows = append(rows, []any{
			string(c.Type), c.BasePeriod, c.TargetPeriod,
			c.RegionCode, c.RegionName, c.ConstructionType,
			c.Value, c.ValidFrom, c.IsActive,
		})
	}

	affected, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "index_coefficients",
		Columns: []string{
			"coefficient_type", "base_period", "target_period",
			"region_code", "region_name", "construction_type",
			"value", "valid_from", "is_active",
		},
		ConflictKeys: []string{"coefficient_type", "base_period", "target_period", "region_code", "construction_type"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert coefficients")
	}
	return int(affected), nil
}

// UpsertOverheadNorms writes overhead/profit reference data keyed by region.
func (s *PostgresStore) UpsertOverheadNorms(ctx context.Context, norms []model.OverheadProfitNorm) (int, error) {
	if len(norms) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(norms))
	for _, n := range norms {
		rows = append(rows, []any{n.RegionCode, n.OverheadNorm, n.ProfitNorm, n.IsActive})
	}

	affected, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "overhead_profit_norms",
		Columns:      []string{"region_code", "overhead_norm", "profit_norm", "is_active"},
		ConflictKeys: []string{"region_code"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert overhead norms")
	}
	return int(affected), nil
}

// CoefficientCount returns the number of active coefficients.
func (s *PostgresStore) CoefficientCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM index_coefficients WHERE is_active`).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: coefficient count")
	}
	return n, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *model.ETLJob) error {
	sourcesJSON, errorsJSON, err := marshalJobLists(job)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO etl_jobs
		(id, status, start_time, end_time, sources,
		 records_extracted, records_valid, records_invalid, records_merged,
		 records_loaded, records_skipped, errors)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		job.ID, string(job.Status), job.StartTime, job.EndTime, sourcesJSON,
		job.RecordsExtracted, job.RecordsValid, job.RecordsInvalid, job.RecordsMerged,
		job.RecordsLoaded, job.RecordsSkipped, errorsJSON,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert job %s", job.ID)
	}
	return nil
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job *model.ETLJob) error {
	sourcesJSON, errorsJSON, err := marshalJobLists(job)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `UPDATE etl_jobs SET
		status = $1, end_time = $2, sources = $3,
		records_extracted = $4, records_valid = $5, records_invalid = $6,
		records_merged = $7, records_loaded = $8, records_skipped = $9,
		errors = $10
		WHERE id = $11`,
		string(job.Status), job.EndTime, sourcesJSON,
		job.RecordsExtracted, job.RecordsValid, job.RecordsInvalid,
		job.RecordsMerged, job.RecordsLoaded, job.RecordsSkipped,
		errorsJSON, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %s", job.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", job.ID)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.ETLJob, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, status, start_time, end_time, sources,
		records_extracted, records_valid, records_invalid, records_merged,
		records_loaded, records_skipped, errors
		FROM etl_jobs WHERE id = $1`, id)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("job not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", id)
	}
	return job, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.ETLJob, error) {
	query := `SELECT id, status, start_time, end_time, sources,
		records_extracted, records_valid, records_invalid, records_merged,
		records_loaded, records_skipped, errors
		FROM etl_jobs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY start_time DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.ETLJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs rows")
	}
	return jobs, nil
}

func marshalJobLists(job *model.ETLJob) ([]byte, []byte, error) {
	sources := job.Sources
	if sources == nil {
		sources = []string{}
	}
	jobErrors := job.Errors
	if jobErrors == nil {
		jobErrors = []string{}
	}

	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "postgres: marshal sources for job %s", job.ID)
	}
	errorsJSON, err := json.Marshal(jobErrors)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "postgres: marshal errors for job %s", job.ID)
	}
	return sourcesJSON, errorsJSON, nil
}

func scanJob(row pgx.Row) (*model.ETLJob, error) {
	var job model.ETLJob
	var sourcesJSON, errorsJSON []byte

	err := row.Scan(&job.ID, &job.Status, &job.StartTime, &job.EndTime, &sourcesJSON,
		&job.RecordsExtracted, &job.RecordsValid, &job.RecordsInvalid, &job.RecordsMerged,
		&job.RecordsLoaded, &job.RecordsSkipped, &errorsJSON)
	if err != nil {
		return nil, err
	}

	if len(sourcesJSON) > 0 {
		if err := json.Unmarshal(sourcesJSON, &job.Sources); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal sources for job %s", job.ID)
		}
	}
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &job.Errors); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal errors for job %s", job.ID)
		}
	}
	return &job, nil
}
