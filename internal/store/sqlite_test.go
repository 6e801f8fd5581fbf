package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stroysmeta/normcat-cli/internal/model"
)

// newTestSQLite opens a store on a throwaway database file and migrates it.
func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sqliteItem(code, region string, total float64) *model.CanonicalItem {
	return &model.CanonicalItem{
		Code:         code,
		Name:         "Разработка грунта экскаватором",
		Unit:         "100 м³",
		LaborCost:    total * 0.6,
		MaterialCost: total * 0.3,
		MachineCost:  total * 0.1,
		TotalCost:    total,
		Category:     model.CategoryFER,
		SourceName:   "ФЕР-2026",
		Region:       region,
		ValidFrom:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteUpsertBatchIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	items := []*model.CanonicalItem{
		sqliteItem("01-01-001", "", 1000),
		sqliteItem("01-01-002", "", 500),
	}

	loaded, skipped, err := s.UpsertBatch(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)
	assert.Equal(t, 0, skipped)

	// Identical rerun touches nothing.
	loaded, skipped, err = s.UpsertBatch(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded)
	assert.Equal(t, 2, skipped)

	// Changing one value reloads only that row.
	items[0].TotalCost = 1100
	loaded, skipped, err = s.UpsertBatch(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)
	assert.Equal(t, 1, skipped)

	got, err := s.FindByCode(ctx, "01-01-001")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1100.0, got[0].TotalCost)
}

func TestSQLiteFindByCodeOrderingAndRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	older := sqliteItem("01-01-001", "77", 700)
	older.Category = model.CategoryTER
	older.ValidFrom = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	newer := sqliteItem("01-01-001", "77", 720)
	newer.Category = model.CategoryTER
	validTo := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	newer.ValidTo = &validTo

	federal := sqliteItem("01-01-001", "", 1000)
	federal.Provenance = model.Provenance{
		Warnings: []string{"unknown unit \"вагон\", kept as-is"},
	}
	federal.Materials = []model.MaterialSpec{
		{Code: "М-101", Name: "Щебень", Unit: "м³", Consumption: 1.02},
	}

	_, _, err := s.UpsertBatch(ctx, []*model.CanonicalItem{older, newer, federal})
	require.NoError(t, err)

	got, err := s.FindByCode(ctx, "01-01-001")
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Federal record first (empty region sorts lowest), then the regional
	// records newest-first.
	assert.Equal(t, "", got[0].Region)
	assert.Equal(t, "77", got[1].Region)
	assert.Equal(t, 720.0, got[1].TotalCost)
	assert.Equal(t, 700.0, got[2].TotalCost)

	require.Len(t, got[0].Provenance.Warnings, 1)
	require.Len(t, got[0].Materials, 1)
	assert.Equal(t, "М-101", got[0].Materials[0].Code)

	require.NotNil(t, got[1].ValidTo)
	assert.WithinDuration(t, validTo, *got[1].ValidTo, time.Second)
	assert.Nil(t, got[2].ValidTo)
}

func TestSQLiteUpsertOne(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	item := sqliteItem("05-02-010", "", 250)
	require.NoError(t, s.UpsertOne(ctx, item))

	// Same values again is a no-op, not an error.
	require.NoError(t, s.UpsertOne(ctx, item))

	item.Name = "Устройство бетонного основания"
	require.NoError(t, s.UpsertOne(ctx, item))

	got, err := s.FindByCode(ctx, "05-02-010")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Устройство бетонного основания", got[0].Name)
}

func TestSQLiteCatalogCounts(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	gesn := sqliteItem("02-01-001", "", 650)
	gesn.Category = model.CategoryGESN

	_, _, err := s.UpsertBatch(ctx, []*model.CanonicalItem{
		sqliteItem("01-01-001", "", 1000),
		sqliteItem("01-01-002", "", 500),
		gesn,
	})
	require.NoError(t, err)

	counts, err := s.CatalogCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[model.CategoryFER])
	assert.Equal(t, int64(1), counts[model.CategoryGESN])
}

func seedCoefficients(t *testing.T, s *SQLiteStore) {
	t.Helper()
	validFrom := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n, err := s.UpsertCoefficients(context.Background(), []model.IndexCoefficient{
		{Type: model.CoefficientLabor, BasePeriod: "2001", TargetPeriod: "2026-Q1", RegionCode: "77", Value: 1.25, ValidFrom: validFrom, IsActive: true},
		{Type: model.CoefficientLabor, BasePeriod: "2001", TargetPeriod: "2026-Q1", Value: 1.10, ValidFrom: validFrom, IsActive: true},
		{Type: model.CoefficientMaterial, BasePeriod: "2001", TargetPeriod: "2026-Q1", RegionCode: "77", Value: 1.18, ValidFrom: validFrom, IsActive: true},
		{Type: model.CoefficientMachine, BasePeriod: "2001", TargetPeriod: "2025-Q4", RegionCode: "77", Value: 1.05, ValidFrom: validFrom, IsActive: true},
	})
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

func TestSQLiteFindCoefficients(t *testing.T) {
	s := newTestSQLite(t)
	seedCoefficients(t, s)

	coeffs, err := s.FindCoefficients(context.Background(), "77", "2026-Q1")
	require.NoError(t, err)
	require.Len(t, coeffs, 3)

	// Within each type the region-specific row precedes the national one.
	assert.Equal(t, model.CoefficientLabor, coeffs[0].Type)
	assert.Equal(t, "77", coeffs[0].RegionCode)
	assert.Equal(t, 1.25, coeffs[0].Value)
	assert.Equal(t, model.CoefficientLabor, coeffs[1].Type)
	assert.Equal(t, "", coeffs[1].RegionCode)
	assert.Equal(t, model.CoefficientMaterial, coeffs[2].Type)

	// Empty target period matches everything, including the 2025-Q4 row.
	all, err := s.FindCoefficients(context.Background(), "77", "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	// A region with no rows of its own still sees the national fallback.
	national, err := s.FindCoefficients(context.Background(), "23", "2026-Q1")
	require.NoError(t, err)
	require.Len(t, national, 1)
	assert.Equal(t, 1.10, national[0].Value)
}

func TestSQLiteCoefficientUpsertOverwrites(t *testing.T) {
	s := newTestSQLite(t)
	seedCoefficients(t, s)
	ctx := context.Background()

	validFrom := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.UpsertCoefficients(ctx, []model.IndexCoefficient{
		{Type: model.CoefficientLabor, BasePeriod: "2001", TargetPeriod: "2026-Q1", RegionCode: "77", Value: 1.30, ValidFrom: validFrom, IsActive: true},
	})
	require.NoError(t, err)

	coeffs, err := s.FindCoefficients(ctx, "77", "2026-Q1")
	require.NoError(t, err)
	require.NotEmpty(t, coeffs)
	assert.Equal(t, 1.30, coeffs[0].Value)

	n, err := s.CoefficientCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestSQLiteFindOverheadNorm(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.UpsertOverheadNorms(ctx, []model.OverheadProfitNorm{
		{RegionCode: "77", OverheadNorm: 95, ProfitNorm: 65, IsActive: true},
		{OverheadNorm: 90, ProfitNorm: 60, IsActive: true},
	})
	require.NoError(t, err)

	norm, err := s.FindOverheadNorm(ctx, "77")
	require.NoError(t, err)
	require.NotNil(t, norm)
	assert.Equal(t, 95.0, norm.OverheadNorm)

	// Unknown region falls back to the national norm.
	norm, err = s.FindOverheadNorm(ctx, "23")
	require.NoError(t, err)
	require.NotNil(t, norm)
	assert.Equal(t, "", norm.RegionCode)
	assert.Equal(t, 90.0, norm.OverheadNorm)
}

func TestSQLiteFindOverheadNormMissing(t *testing.T) {
	s := newTestSQLite(t)

	norm, err := s.FindOverheadNorm(context.Background(), "77")
	require.NoError(t, err)
	assert.Nil(t, norm)
}

func TestSQLiteJobLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job := &model.ETLJob{
		ID:        "job-1",
		Status:    model.JobRunning,
		StartTime: start,
		Sources:   []string{"fer", "gesn"},
	}
	require.NoError(t, s.CreateJob(ctx, job))

	got, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobRunning, got.Status)
	assert.Equal(t, []string{"fer", "gesn"}, got.Sources)
	assert.Nil(t, got.EndTime)

	end := start.Add(3 * time.Minute)
	job.Status = model.JobCompletedWithErrors
	job.EndTime = &end
	job.RecordsExtracted = 100
	job.RecordsLoaded = 90
	job.RecordsInvalid = 10
	job.Errors = []string{"fetch ter: timeout"}
	require.NoError(t, s.UpdateJob(ctx, job))

	got, err = s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobCompletedWithErrors, got.Status)
	assert.Equal(t, 90, got.RecordsLoaded)
	assert.Equal(t, []string{"fetch ter: timeout"}, got.Errors)
	require.NotNil(t, got.EndTime)
	assert.WithinDuration(t, end, *got.EndTime, time.Second)
}

func TestSQLiteUpdateJobNotFound(t *testing.T) {
	s := newTestSQLite(t)

	job := &model.ETLJob{ID: "missing", Status: model.JobCompleted, StartTime: time.Now().UTC()}
	err := s.UpdateJob(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job not found: missing")
}

func TestSQLiteGetJobNotFound(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.GetJob(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job not found: nope")
}

func TestSQLiteListJobs(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, status := range []model.JobStatus{model.JobCompleted, model.JobFailed, model.JobCompleted} {
		job := &model.ETLJob{
			ID:        "job-" + string(rune('a'+i)),
			Status:    status,
			StartTime: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, s.CreateJob(ctx, job))
	}

	jobs, err := s.ListJobs(ctx, JobFilter{})
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	// Newest first.
	assert.Equal(t, "job-c", jobs[0].ID)
	assert.Equal(t, "job-a", jobs[2].ID)

	completed, err := s.ListJobs(ctx, JobFilter{Status: model.JobCompleted})
	require.NoError(t, err)
	assert.Len(t, completed, 2)

	limited, err := s.ListJobs(ctx, JobFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "job-c", limited[0].ID)

	offset, err := s.ListJobs(ctx, JobFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, offset, 1)
	assert.Equal(t, "job-b", offset[0].ID)
}
