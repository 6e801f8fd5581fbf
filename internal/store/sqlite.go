package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/stroysmeta/normcat-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs the
// single-binary local mode; Postgres is the production store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS catalog_items (
	code              TEXT NOT NULL,
	name              TEXT NOT NULL,
	unit              TEXT NOT NULL DEFAULT '',
	labor_cost        REAL NOT NULL DEFAULT 0,
	material_cost     REAL NOT NULL DEFAULT 0,
	machine_cost      REAL NOT NULL DEFAULT 0,
	total_cost        REAL NOT NULL DEFAULT 0,
	category          TEXT NOT NULL,
	source_name       TEXT NOT NULL DEFAULT '',
	region            TEXT NOT NULL DEFAULT '',
	chapter           TEXT NOT NULL DEFAULT '',
	section           TEXT NOT NULL DEFAULT '',
	valid_from        DATETIME NOT NULL,
	valid_to          DATETIME,
	materials         TEXT,
	labor_consumption REAL NOT NULL DEFAULT 0,
	machine_time      REAL NOT NULL DEFAULT 0,
	provenance        TEXT NOT NULL DEFAULT '{}',
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (code, category, region, valid_from)
);

CREATE INDEX IF NOT EXISTS idx_catalog_items_code ON catalog_items(code);
CREATE INDEX IF NOT EXISTS idx_catalog_items_category ON catalog_items(category);

CREATE TABLE IF NOT EXISTS index_coefficients (
	coefficient_type  TEXT NOT NULL,
	base_period       TEXT NOT NULL,
	target_period     TEXT NOT NULL,
	region_code       TEXT NOT NULL DEFAULT '',
	region_name       TEXT NOT NULL DEFAULT '',
	construction_type TEXT NOT NULL DEFAULT '',
	value             REAL NOT NULL,
	valid_from        DATETIME NOT NULL,
	is_active         INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (coefficient_type, base_period, target_period, region_code, construction_type)
);

CREATE TABLE IF NOT EXISTS overhead_profit_norms (
	region_code   TEXT PRIMARY KEY,
	overhead_norm REAL NOT NULL,
	profit_norm   REAL NOT NULL,
	is_active     INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS etl_jobs (
	id                TEXT PRIMARY KEY,
	status            TEXT NOT NULL DEFAULT 'pending',
	start_time        DATETIME NOT NULL,
	end_time          DATETIME,
	sources           TEXT NOT NULL DEFAULT '[]',
	records_extracted INTEGER NOT NULL DEFAULT 0,
	records_valid     INTEGER NOT NULL DEFAULT 0,
	records_invalid   INTEGER NOT NULL DEFAULT 0,
	records_merged    INTEGER NOT NULL DEFAULT 0,
	records_loaded    INTEGER NOT NULL DEFAULT 0,
	records_skipped   INTEGER NOT NULL DEFAULT 0,
	errors            TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_etl_jobs_status ON etl_jobs(status);
CREATE INDEX IF NOT EXISTS idx_etl_jobs_start_time ON etl_jobs(start_time);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteUpsertItem = `INSERT INTO catalog_items
	(code, name, unit, labor_cost, material_cost, machine_cost, total_cost,
	 category, source_name, region, chapter, section, valid_from, valid_to,
	 materials, labor_consumption, machine_time, provenance, updated_at)
	VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	ON CONFLICT (code, category, region, valid_from) DO UPDATE SET
		name = excluded.name, unit = excluded.unit,
		labor_cost = excluded.labor_cost, material_cost = excluded.material_cost,
		machine_cost = excluded.machine_cost, total_cost = excluded.total_cost,
		source_name = excluded.source_name, chapter = excluded.chapter,
		section = excluded.section, valid_to = excluded.valid_to,
		materials = excluded.materials, labor_consumption = excluded.labor_consumption,
		machine_time = excluded.machine_time, provenance = excluded.provenance,
		updated_at = excluded.updated_at
	WHERE name IS NOT excluded.name OR unit IS NOT excluded.unit
		OR labor_cost IS NOT excluded.labor_cost OR material_cost IS NOT excluded.material_cost
		OR machine_cost IS NOT excluded.machine_cost OR total_cost IS NOT excluded.total_cost
		OR source_name IS NOT excluded.source_name OR chapter IS NOT excluded.chapter
		OR section IS NOT excluded.section OR valid_to IS NOT excluded.valid_to
		OR materials IS NOT excluded.materials OR labor_consumption IS NOT excluded.labor_consumption
		OR machine_time IS NOT excluded.machine_time OR provenance IS NOT excluded.provenance`

func sqliteItemArgs(item *model.CanonicalItem, now time.Time) ([]any, error) {
	materialsJSON, err := json.Marshal(item.Materials)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: marshal materials for %s", item.Code)
	}
	provenanceJSON, err := json.Marshal(item.Provenance)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: marshal provenance for %s", item.Code)
	}
	return []any{
		item.Code, item.Name, item.Unit,
		item.LaborCost, item.MaterialCost, item.MachineCost, item.TotalCost,
		string(item.Category), item.SourceName, item.Region, item.Chapter, item.Section,
		item.ValidFrom, item.ValidTo,
		string(materialsJSON), item.LaborConsumption, item.MachineTime, string(provenanceJSON),
		now,
	}, nil
}

// UpsertBatch writes one chunk of items in a single transaction. Rows whose
// stored values already match are left untouched and counted as skipped.
func (s *SQLiteStore) UpsertBatch(ctx context.Context, items []*model.CanonicalItem) (int, int, error) {
	if len(items) == 0 {
		return 0, 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: begin upsert tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertItem)
	if err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	loaded, skipped := 0, 0
	for _, item := range items {
		args, err := sqliteItemArgs(item, now)
		if err != nil {
			return 0, 0, err
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, 0, eris.Wrapf(err, "sqlite: upsert item %s", item.Code)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, 0, eris.Wrap(err, "sqlite: rows affected")
		}
		if n > 0 {
			loaded++
		} else {
			skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: commit upsert tx")
	}
	return loaded, skipped, nil
}

// UpsertOne writes a single item outside any batch transaction.
func (s *SQLiteStore) UpsertOne(ctx context.Context, item *model.CanonicalItem) error {
	args, err := sqliteItemArgs(item, time.Now().UTC())
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, sqliteUpsertItem, args...); err != nil {
		return eris.Wrapf(err, "sqlite: upsert item %s", item.Code)
	}
	return nil
}

func (s *SQLiteStore) FindByCode(ctx context.Context, code string) ([]model.CanonicalItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, name, unit, labor_cost, material_cost, machine_cost, total_cost,
		category, source_name, region, chapter, section, valid_from, valid_to,
		materials, labor_consumption, machine_time, provenance
		FROM catalog_items WHERE code = ?
		ORDER BY region, valid_from DESC`, code)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find by code %s", code)
	}
	defer rows.Close()

	var items []model.CanonicalItem
	for rows.Next() {
		var item model.CanonicalItem
		var materialsJSON, provenanceJSON sql.NullString
		var validTo sql.NullTime

		err := rows.Scan(
			&item.Code, &item.Name, &item.Unit,
			&item.LaborCost, &item.MaterialCost, &item.MachineCost, &item.TotalCost,
			&item.Category, &item.SourceName, &item.Region, &item.Chapter, &item.Section,
			&item.ValidFrom, &validTo,
			&materialsJSON, &item.LaborConsumption, &item.MachineTime, &provenanceJSON,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan item for code %s", code)
		}

		if validTo.Valid {
			t := validTo.Time
			item.ValidTo = &t
		}
		if materialsJSON.Valid && materialsJSON.String != "" {
			if err := json.Unmarshal([]byte(materialsJSON.String), &item.Materials); err != nil {
				return nil, eris.Wrapf(err, "sqlite: unmarshal materials for %s", item.Code)
			}
		}
		if provenanceJSON.Valid && provenanceJSON.String != "" {
			if err := json.Unmarshal([]byte(provenanceJSON.String), &item.Provenance); err != nil {
				return nil, eris.Wrapf(err, "sqlite: unmarshal provenance for %s", item.Code)
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "sqlite: find by code %s rows", code)
	}
	return items, nil
}

func (s *SQLiteStore) CatalogCounts(ctx context.Context) (map[model.Category]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, count(*) FROM catalog_items GROUP BY category`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: catalog counts")
	}
	defer rows.Close()

	counts := make(map[model.Category]int64)
	for rows.Next() {
		var cat string
		var n int64
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan catalog count")
		}
		counts[model.Category(cat)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: catalog counts rows")
	}
	return counts, nil
}

func (s *SQLiteStore) FindCoefficients(ctx context.Context, regionCode, targetPeriod string) ([]model.IndexCoefficient, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT coefficient_type, base_period, target_period,
		region_code, region_name, construction_type, value, valid_from, is_active
		FROM index_coefficients
		WHERE is_active AND (region_code = ? OR region_code = '')
		  AND (? = '' OR target_period = ?)
		ORDER BY coefficient_type, region_code DESC`, regionCode, targetPeriod, targetPeriod)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find coefficients for region %s", regionCode)
	}
	defer rows.Close()

	var coeffs []model.IndexCoefficient
	for rows.Next() {
		var c model.IndexCoefficient
		if err := rows.Scan(&c.Type, &c.BasePeriod, &c.TargetPeriod,
			&c.RegionCode, &c.RegionName, &c.ConstructionType, &c.Value, &c.ValidFrom, &c.IsActive); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan coefficient")
		}
		coeffs = append(coeffs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: find coefficients rows")
	}
	return coeffs, nil
}

func (s *SQLiteStore) FindOverheadNorm(ctx context.Context, regionCode string) (*model.OverheadProfitNorm, error) {
	var n model.OverheadProfitNorm
	err := s.db.QueryRowContext(ctx, `SELECT region_code, overhead_norm, profit_norm, is_active
		FROM overhead_profit_norms
		WHERE is_active AND (region_code = ? OR region_code = '')
		ORDER BY (region_code = ?) DESC LIMIT 1`, regionCode, regionCode).
		Scan(&n.RegionCode, &n.OverheadNorm, &n.ProfitNorm, &n.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find overhead norm for region %s", regionCode)
	}
	return &n, nil
}

func (s *SQLiteStore) UpsertCoefficients(ctx context.Context, coeffs []model.IndexCoefficient) (int, error) {
	if len(coeffs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin coefficients tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO index_coefficients
		(coefficient_type, base_period, target_period, region_code, region_name,
		 construction_type, value, valid_from, is_active)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT (coefficient_type, base_period, target_period, region_code, construction_type)
		DO UPDATE SET region_name = excluded.region_name, value = excluded.value,
			valid_from = excluded.valid_from, is_active = excluded.is_active`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare coefficient upsert")
	}
	defer stmt.Close()

	written := 0
	for _, c := range coeffs {
		if _, err := stmt.ExecContext(ctx,
			string(c.Type), c.BasePeriod, c.TargetPeriod, c.RegionCode, c.RegionName,
			c.ConstructionType, c.Value, c.ValidFrom, c.IsActive); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert coefficient %s/%s", c.Type, c.RegionCode)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit coefficients tx")
	}
	return written, nil
}

func (s *SQLiteStore) UpsertOverheadNorms(ctx context.Context, norms []model.OverheadProfitNorm) (int, error) {
	if len(norms) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin norms tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO overhead_profit_norms
		(region_code, overhead_norm, profit_norm, is_active)
		VALUES (?,?,?,?)
		ON CONFLICT (region_code) DO UPDATE SET
			overhead_norm = excluded.overhead_norm,
			profit_norm = excluded.profit_norm,
			is_active = excluded.is_active`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare norm upsert")
	}
	defer stmt.Close()

	written := 0
	for _, n := range norms {
		if _, err := stmt.ExecContext(ctx, n.RegionCode, n.OverheadNorm, n.ProfitNorm, n.IsActive); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert norm %s", n.RegionCode)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit norms tx")
	}
	return written, nil
}

func (s *SQLiteStore) CoefficientCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM index_coefficients WHERE is_active`).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: coefficient count")
	}
	return n, nil
}

func (s *SQLiteStore) CreateJob(ctx context.Context, job *model.ETLJob) error {
	sourcesJSON, errorsJSON, err := marshalJobLists(job)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO etl_jobs
		(id, status, start_time, end_time, sources,
		 records_extracted, records_valid, records_invalid, records_merged,
		 records_loaded, records_skipped, errors)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		job.ID, string(job.Status), job.StartTime, job.EndTime, string(sourcesJSON),
		job.RecordsExtracted, job.RecordsValid, job.RecordsInvalid, job.RecordsMerged,
		job.RecordsLoaded, job.RecordsSkipped, string(errorsJSON),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert job %s", job.ID)
	}
	return nil
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, job *model.ETLJob) error {
	sourcesJSON, errorsJSON, err := marshalJobLists(job)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE etl_jobs SET
		status = ?, end_time = ?, sources = ?,
		records_extracted = ?, records_valid = ?, records_invalid = ?,
		records_merged = ?, records_loaded = ?, records_skipped = ?,
		errors = ?
		WHERE id = ?`,
		string(job.Status), job.EndTime, string(sourcesJSON),
		job.RecordsExtracted, job.RecordsValid, job.RecordsInvalid,
		job.RecordsMerged, job.RecordsLoaded, job.RecordsSkipped,
		string(errorsJSON), job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s", job.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("job not found: %s", job.ID)
	}
	return nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.ETLJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, status, start_time, end_time, sources,
		records_extracted, records_valid, records_invalid, records_merged,
		records_loaded, records_skipped, errors
		FROM etl_jobs WHERE id = ?`, id)

	job, err := scanSQLiteJob(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Errorf("job not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get job %s", id)
	}
	return job, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.ETLJob, error) {
	query := `SELECT id, status, start_time, end_time, sources,
		records_extracted, records_valid, records_invalid, records_merged,
		records_loaded, records_skipped, errors
		FROM etl_jobs WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY start_time DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.ETLJob
	for rows.Next() {
		job, err := scanSQLiteJob(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs rows")
	}
	return jobs, nil
}

func scanSQLiteJob(scan func(dest ...any) error) (*model.ETLJob, error) {
	var job model.ETLJob
	var endTime sql.NullTime
	var sourcesJSON, errorsJSON string

	err := scan(&job.ID, &job.Status, &job.StartTime, &endTime, &sourcesJSON,
		&job.RecordsExtracted, &job.RecordsValid, &job.RecordsInvalid, &job.RecordsMerged,
		&job.RecordsLoaded, &job.RecordsSkipped, &errorsJSON)
	if err != nil {
		return nil, err
	}

	if endTime.Valid {
		t := endTime.Time
		job.EndTime = &t
	}
	if sourcesJSON != "" {
		if err := json.Unmarshal([]byte(sourcesJSON), &job.Sources); err != nil {
			return nil, eris.Wrapf(err, "unmarshal sources for job %s", job.ID)
		}
	}
	if errorsJSON != "" {
		if err := json.Unmarshal([]byte(errorsJSON), &job.Errors); err != nil {
			return nil, eris.Wrapf(err, "unmarshal errors for job %s", job.ID)
		}
	}
	return &job, nil
}
