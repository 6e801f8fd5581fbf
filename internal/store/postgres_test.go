package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stroysmeta/normcat-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

// anyArgs returns n pgxmock.AnyArg matchers for expectations that do not
// care about argument values.
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

var catalogScanColumns = []string{
	"code", "name", "unit", "labor_cost", "material_cost", "machine_cost", "total_cost",
	"category", "source_name", "region", "chapter", "section", "valid_from", "valid_to",
	"materials", "labor_consumption", "machine_time", "provenance",
}

func TestPostgresStore_FindByCode(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	validFrom := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(catalogScanColumns).
		AddRow(
			"01-01-001", "Разработка грунта", "100 м³", 600.0, 300.0, 100.0, 1000.0,
			model.CategoryFER, "ФЕР-2026", "", "01", "01-01", validFrom, (*time.Time)(nil),
			[]byte(`[]`), 0.0, 0.0, []byte(`{"derived_costs":false}`),
		).
		AddRow(
			"01-01-001", "Разработка грунта", "100 м³", 2.5, 0.0, 0.8, 650.0,
			model.CategoryGESN, "ГЭСН-2026", "", "01", "01-01", validFrom, (*time.Time)(nil),
			[]byte(`[{"code":"М-101","name":"Щебень","unit":"м³","consumption":1.02}]`),
			2.5, 0.8, []byte(`{"derived_costs":true}`),
		)

	mock.ExpectQuery(`FROM catalog_items WHERE code = \$1`).
		WithArgs("01-01-001").
		WillReturnRows(rows)

	items, err := s.FindByCode(context.Background(), "01-01-001")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, model.CategoryFER, items[0].Category)
	assert.Equal(t, 600.0, items[0].LaborCost)
	assert.False(t, items[0].Provenance.DerivedCosts)
	assert.Nil(t, items[0].ValidTo)

	assert.Equal(t, model.CategoryGESN, items[1].Category)
	assert.True(t, items[1].Provenance.DerivedCosts)
	require.Len(t, items[1].Materials, 1)
	assert.Equal(t, "М-101", items[1].Materials[0].Code)
	assert.Equal(t, 1.02, items[1].Materials[0].Consumption)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindByCode_NoRows(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM catalog_items WHERE code = \$1`).
		WithArgs("99-99-999").
		WillReturnRows(pgxmock.NewRows(catalogScanColumns))

	items, err := s.FindByCode(context.Background(), "99-99-999")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindByCode_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM catalog_items WHERE code = \$1`).
		WithArgs("01-01-001").
		WillReturnError(assert.AnError)

	_, err := s.FindByCode(context.Background(), "01-01-001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "find by code 01-01-001")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertBatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_catalog_items"}, catalogColumns).WillReturnResult(2)
	// One of the two rows is unchanged, so only one counts as loaded.
	mock.ExpectExec(`INSERT INTO "catalog_items".*IS DISTINCT FROM`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	validFrom := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []*model.CanonicalItem{
		{Code: "01-01-001", Name: "Разработка грунта", Category: model.CategoryFER, ValidFrom: validFrom},
		{Code: "01-01-002", Name: "Устройство основания", Category: model.CategoryFER, ValidFrom: validFrom},
	}

	loaded, skipped, err := s.UpsertBatch(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)
	assert.Equal(t, 1, skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertBatch_Empty(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	loaded, skipped, err := s.UpsertBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, loaded)
	assert.Zero(t, skipped)
}

func TestPostgresStore_UpsertOne(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(code, category, region, valid_from\) DO UPDATE SET`).
		WithArgs(anyArgs(19)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	item := &model.CanonicalItem{
		Code:      "01-01-001",
		Name:      "Разработка грунта",
		Category:  model.CategoryFER,
		ValidFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.UpsertOne(context.Background(), item))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindCoefficients(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	validFrom := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{
		"coefficient_type", "base_period", "target_period",
		"region_code", "region_name", "construction_type", "value", "valid_from", "is_active",
	}).
		AddRow(model.CoefficientLabor, "2001", "2026-Q1", "77", "Москва", "", 1.25, validFrom, true).
		AddRow(model.CoefficientLabor, "2001", "2026-Q1", "", "", "", 1.10, validFrom, true)

	mock.ExpectQuery(`FROM index_coefficients`).
		WithArgs("77", "2026-Q1").
		WillReturnRows(rows)

	coeffs, err := s.FindCoefficients(context.Background(), "77", "2026-Q1")
	require.NoError(t, err)
	require.Len(t, coeffs, 2)
	// Region-specific row precedes the national fallback.
	assert.Equal(t, "77", coeffs[0].RegionCode)
	assert.Equal(t, 1.25, coeffs[0].Value)
	assert.Equal(t, "", coeffs[1].RegionCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindOverheadNorm(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"region_code", "overhead_norm", "profit_norm", "is_active"}).
		AddRow("77", 95.0, 65.0, true)

	mock.ExpectQuery(`FROM overhead_profit_norms`).
		WithArgs("77").
		WillReturnRows(rows)

	norm, err := s.FindOverheadNorm(context.Background(), "77")
	require.NoError(t, err)
	require.NotNil(t, norm)
	assert.Equal(t, 95.0, norm.OverheadNorm)
	assert.Equal(t, 65.0, norm.ProfitNorm)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindOverheadNorm_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM overhead_profit_norms`).
		WithArgs("99").
		WillReturnError(pgx.ErrNoRows)

	norm, err := s.FindOverheadNorm(context.Background(), "99")
	require.NoError(t, err)
	assert.Nil(t, norm)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertCoefficients(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_index_coefficients"}, []string{
		"coefficient_type", "base_period", "target_period",
		"region_code", "region_name", "construction_type",
		"value", "valid_from", "is_active",
	}).WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "index_coefficients"`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := s.UpsertCoefficients(context.Background(), []model.IndexCoefficient{
		{
			Type: model.CoefficientLabor, BasePeriod: "2001", TargetPeriod: "2026-Q1",
			RegionCode: "77", Value: 1.25,
			ValidFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), IsActive: true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CatalogCounts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"category", "count"}).
		AddRow("fer", int64(1200)).
		AddRow("gesn", int64(300))

	mock.ExpectQuery(`SELECT category, count\(\*\) FROM catalog_items GROUP BY category`).
		WillReturnRows(rows)

	counts, err := s.CatalogCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1200), counts[model.CategoryFER])
	assert.Equal(t, int64(300), counts[model.CategoryGESN])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CoefficientCount(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM index_coefficients WHERE is_active`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(15)))

	n, err := s.CoefficientCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(15), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job := &model.ETLJob{
		ID:        "job-1",
		Status:    model.JobRunning,
		StartTime: start,
		Sources:   []string{"fer", "gesn"},
	}

	mock.ExpectExec(`INSERT INTO etl_jobs`).
		WithArgs("job-1", "running", start, pgxmock.AnyArg(),
			[]byte(`["fer","gesn"]`), 0, 0, 0, 0, 0, 0, []byte(`[]`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.CreateJob(context.Background(), job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateJob_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE etl_jobs SET`).
		WithArgs(anyArgs(11)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	job := &model.ETLJob{ID: "missing", Status: model.JobCompleted, StartTime: time.Now()}
	err := s.UpdateJob(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job not found: missing")
	assert.NoError(t, mock.ExpectationsWereMet())
}

var jobScanColumns = []string{
	"id", "status", "start_time", "end_time", "sources",
	"records_extracted", "records_valid", "records_invalid", "records_merged",
	"records_loaded", "records_skipped", "errors",
}

func TestPostgresStore_GetJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(5 * time.Minute)
	rows := pgxmock.NewRows(jobScanColumns).
		AddRow("job-1", model.JobCompletedWithErrors, start, &end, []byte(`["fer"]`),
			100, 95, 5, 90, 80, 10, []byte(`["fetch ter: timeout"]`))

	mock.ExpectQuery(`FROM etl_jobs WHERE id = \$1`).
		WithArgs("job-1").
		WillReturnRows(rows)

	job, err := s.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobCompletedWithErrors, job.Status)
	assert.Equal(t, []string{"fer"}, job.Sources)
	assert.Equal(t, 80, job.RecordsLoaded)
	require.NotNil(t, job.EndTime)
	assert.Equal(t, end, *job.EndTime)
	assert.Equal(t, []string{"fetch ter: timeout"}, job.Errors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetJob_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM etl_jobs WHERE id = \$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetJob(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job not found: nope")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListJobs_StatusFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(jobScanColumns).
		AddRow("job-2", model.JobCompleted, start, (*time.Time)(nil), []byte(`[]`),
			0, 0, 0, 0, 0, 0, []byte(`[]`))

	mock.ExpectQuery(`AND status = \$1 ORDER BY start_time DESC LIMIT \$2`).
		WithArgs("completed", 5).
		WillReturnRows(rows)

	jobs, err := s.ListJobs(context.Background(), JobFilter{Status: model.JobCompleted, Limit: 5})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "job-2", jobs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListJobs_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`ORDER BY start_time DESC LIMIT \$1`).
		WithArgs(100).
		WillReturnRows(pgxmock.NewRows(jobScanColumns))

	jobs, err := s.ListJobs(context.Background(), JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
