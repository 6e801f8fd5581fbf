package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stroysmeta/normcat-cli/internal/canonical"
	"github.com/stroysmeta/normcat-cli/internal/etl"
	"github.com/stroysmeta/normcat-cli/internal/model"
	"github.com/stroysmeta/normcat-cli/internal/monitoring"
	"github.com/stroysmeta/normcat-cli/internal/pricing"
	"github.com/stroysmeta/normcat-cli/internal/source"
	"github.com/stroysmeta/normcat-cli/internal/store"
	"github.com/stroysmeta/normcat-cli/internal/validate"
)

// apiStore is an in-memory Store for router tests.
type apiStore struct {
	mu      sync.Mutex
	pingErr error
	items   []model.CanonicalItem
	coeffs  []model.IndexCoefficient
	norm    *model.OverheadProfitNorm
	jobs    map[string]*model.ETLJob
}

func newAPIStore() *apiStore {
	return &apiStore{jobs: make(map[string]*model.ETLJob)}
}

func (s *apiStore) UpsertBatch(ctx context.Context, items []*model.CanonicalItem) (int, int, error) {
	return len(items), 0, nil
}
func (s *apiStore) UpsertOne(ctx context.Context, item *model.CanonicalItem) error { return nil }

func (s *apiStore) FindByCode(ctx context.Context, code string) ([]model.CanonicalItem, error) {
	var out []model.CanonicalItem
	for _, item := range s.items {
		if item.Code == code {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *apiStore) CatalogCounts(ctx context.Context) (map[model.Category]int64, error) {
	return map[model.Category]int64{}, nil
}

func (s *apiStore) FindCoefficients(ctx context.Context, regionCode, targetPeriod string) ([]model.IndexCoefficient, error) {
	return s.coeffs, nil
}

func (s *apiStore) FindOverheadNorm(ctx context.Context, regionCode string) (*model.OverheadProfitNorm, error) {
	return s.norm, nil
}

func (s *apiStore) UpsertCoefficients(ctx context.Context, coeffs []model.IndexCoefficient) (int, error) {
	return len(coeffs), nil
}

func (s *apiStore) UpsertOverheadNorms(ctx context.Context, norms []model.OverheadProfitNorm) (int, error) {
	return len(norms), nil
}

func (s *apiStore) CoefficientCount(ctx context.Context) (int64, error) {
	return int64(len(s.coeffs)), nil
}

func (s *apiStore) CreateJob(ctx context.Context, job *model.ETLJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *apiStore) UpdateJob(ctx context.Context, job *model.ETLJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *apiStore) GetJob(ctx context.Context, id string) (*model.ETLJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, eris.Errorf("job not found: %s", id)
	}
	cp := *job
	return &cp, nil
}

func (s *apiStore) ListJobs(ctx context.Context, filter store.JobFilter) ([]model.ETLJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ETLJob
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		out = append(out, *job)
	}
	return out, nil
}

func (s *apiStore) Migrate(ctx context.Context) error { return nil }
func (s *apiStore) Ping(ctx context.Context) error    { return s.pingErr }
func (s *apiStore) Close() error                      { return nil }

// idleCollector yields no records; block, when set, holds Fetch open so
// conflict behavior can be exercised.
type idleCollector struct {
	block chan struct{}
}

func (c *idleCollector) Name() string             { return "fer" }
func (c *idleCollector) Category() model.Category { return model.CategoryFER }

func (c *idleCollector) Discover(ctx context.Context) ([]source.Descriptor, error) {
	return []source.Descriptor{{Name: "fer", Category: model.CategoryFER}}, nil
}

func (c *idleCollector) Fetch(ctx context.Context, d source.Descriptor) ([]model.RawItem, error) {
	if c.block != nil {
		<-c.block
	}
	return nil, nil
}

func newTestRouter(st *apiStore, collector source.Collector) (chi.Router, *etl.Orchestrator) {
	reg := source.NewRegistry()
	reg.Register(collector)

	orch := etl.New(st, reg,
		canonical.NewCanonicalizer(canonical.DefaultConversionRates()),
		validate.New(validate.Config{}),
		etl.Config{})
	engine := pricing.NewEngine(st, pricing.Config{})
	metrics := monitoring.NewCollector(st)

	return newRouter(st, orch, engine, metrics), orch
}

func TestRouterHealth(t *testing.T) {
	st := newAPIStore()
	router, _ := newTestRouter(st, &idleCollector{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ok"`)
}

func TestRouterHealthStoreDown(t *testing.T) {
	st := newAPIStore()
	st.pingErr = eris.New("connection refused")
	router, _ := newTestRouter(st, &idleCollector{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRouterPrice(t *testing.T) {
	st := newAPIStore()
	validFrom := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	st.items = []model.CanonicalItem{{
		Code: "01-01-001", Name: "Разработка грунта", Unit: "100 м³",
		LaborCost: 600, MaterialCost: 300, MachineCost: 100, TotalCost: 1000,
		Category: model.CategoryFER, ValidFrom: validFrom,
	}}
	st.coeffs = []model.IndexCoefficient{
		{Type: model.CoefficientLabor, RegionCode: "77", TargetPeriod: "2026-Q1", Value: 1.25, IsActive: true},
		{Type: model.CoefficientMaterial, TargetPeriod: "2026-Q1", Value: 1.10, IsActive: true},
	}
	st.norm = &model.OverheadProfitNorm{RegionCode: "77", OverheadNorm: 10, ProfitNorm: 5, IsActive: true}
	router, _ := newTestRouter(st, &idleCollector{})

	req := httptest.NewRequest(http.MethodGet, "/api/price?code=01-01-001&region=77&period=2026-Q1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var breakdown model.PriceBreakdown
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &breakdown))
	assert.InDelta(t, 750, breakdown.LaborCost, 0.001)
	assert.InDelta(t, 330, breakdown.MaterialCost, 0.001)
	assert.InDelta(t, 100, breakdown.MachineCost, 0.001)
	assert.InDelta(t, 1292.5, breakdown.TotalWithCoefficients, 0.001)
}

func TestRouterPriceWithoutCoefficients(t *testing.T) {
	st := newAPIStore()
	st.items = []model.CanonicalItem{{
		Code: "01-01-001", Name: "Разработка грунта", Unit: "100 м³",
		LaborCost: 600, MaterialCost: 300, MachineCost: 100, TotalCost: 1000,
		Category: model.CategoryFER, ValidFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}}
	st.coeffs = []model.IndexCoefficient{
		{Type: model.CoefficientLabor, RegionCode: "77", TargetPeriod: "2026-Q1", Value: 1.25, IsActive: true},
	}
	router, _ := newTestRouter(st, &idleCollector{})

	req := httptest.NewRequest(http.MethodGet, "/api/price?code=01-01-001&region=77&quantity=2&apply_coefficients=false", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var breakdown model.PriceBreakdown
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &breakdown))
	assert.InDelta(t, 2000, breakdown.TotalWithCoefficients, 0.001)
	assert.Empty(t, breakdown.CoefficientsApplied)
}

func TestRouterPriceMissingCode(t *testing.T) {
	st := newAPIStore()
	router, _ := newTestRouter(st, &idleCollector{})

	req := httptest.NewRequest(http.MethodGet, "/api/price", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "code is required")
}

func TestRouterPriceBadQuantity(t *testing.T) {
	st := newAPIStore()
	router, _ := newTestRouter(st, &idleCollector{})

	req := httptest.NewRequest(http.MethodGet, "/api/price?code=01-01-001&quantity=abc", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouterPriceNotFound(t *testing.T) {
	st := newAPIStore()
	router, _ := newTestRouter(st, &idleCollector{})

	req := httptest.NewRequest(http.MethodGet, "/api/price?code=99-99-999", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "99-99-999")
}

func TestRouterETLRunAccepted(t *testing.T) {
	st := newAPIStore()
	router, _ := newTestRouter(st, &idleCollector{})

	req := httptest.NewRequest(http.MethodPost, "/api/etl/run", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	var job model.ETLJob
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &job))
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, []string{"fer"}, job.Sources)
}

func TestRouterETLRunConflict(t *testing.T) {
	st := newAPIStore()
	block := make(chan struct{})
	router, orch := newTestRouter(st, &idleCollector{block: block})
	defer close(block)

	first, err := orch.Launch(context.Background(), nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/etl/run", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusConflict, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, first.ID, body["running_job_id"])
}

func TestRouterGetJob(t *testing.T) {
	st := newAPIStore()
	st.jobs["job-1"] = &model.ETLJob{ID: "job-1", Status: model.JobCompleted, StartTime: time.Now().UTC()}
	router, _ := newTestRouter(st, &idleCollector{})

	req := httptest.NewRequest(http.MethodGet, "/api/etl/jobs/job-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"job-1"`)
}

func TestRouterGetJobNotFound(t *testing.T) {
	st := newAPIStore()
	router, _ := newTestRouter(st, &idleCollector{})

	req := httptest.NewRequest(http.MethodGet, "/api/etl/jobs/nope", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouterListJobsBadLimit(t *testing.T) {
	st := newAPIStore()
	router, _ := newTestRouter(st, &idleCollector{})

	req := httptest.NewRequest(http.MethodGet, "/api/etl/jobs?limit=zero", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouterCoefficients(t *testing.T) {
	st := newAPIStore()
	st.coeffs = []model.IndexCoefficient{
		{Type: model.CoefficientLabor, RegionCode: "77", Value: 1.25, IsActive: true},
	}
	st.norm = &model.OverheadProfitNorm{RegionCode: "77", OverheadNorm: 95, ProfitNorm: 65, IsActive: true}
	router, _ := newTestRouter(st, &idleCollector{})

	req := httptest.NewRequest(http.MethodGet, "/api/coefficients/77", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Region       string                     `json:"region"`
		Coefficients []model.IndexCoefficient   `json:"coefficients"`
		OverheadNorm *model.OverheadProfitNorm  `json:"overhead_norm"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "77", body.Region)
	require.Len(t, body.Coefficients, 1)
	require.NotNil(t, body.OverheadNorm)
	assert.Equal(t, 95.0, body.OverheadNorm.OverheadNorm)
}

func TestRouterMetricsBadLookback(t *testing.T) {
	st := newAPIStore()
	router, _ := newTestRouter(st, &idleCollector{})

	req := httptest.NewRequest(http.MethodGet, "/api/metrics?lookback_hours=-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
