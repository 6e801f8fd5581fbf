// Package pricing computes region- and period-adjusted prices from base
// catalog rates, index coefficients, and overhead/profit norms.
package pricing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/stroysmeta/normcat-cli/internal/model"
	"github.com/stroysmeta/normcat-cli/internal/store"
)

// NotFoundError means no catalog record carries the requested code.
type NotFoundError struct {
	Code string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("pricing: code %q not found in any category", e.Code)
}

// Request describes one price calculation.
type Request struct {
	Code         string  `json:"code"`
	Quantity     float64 `json:"quantity"`
	RegionCode   string  `json:"region_code,omitempty"`
	TargetPeriod string  `json:"target_period,omitempty"`

	// SkipCoefficients returns basePrice x quantity with no adjustment.
	SkipCoefficients bool `json:"skip_coefficients,omitempty"`
}

// Config tunes the engine.
type Config struct {
	// CacheTTL bounds how long coefficient reference data is served from
	// memory. Default 5 minutes.
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// Engine performs read-only price calculations. It holds no per-call
// mutable state and is safe for unlimited concurrent use.
type Engine struct {
	store  store.Store
	coeffs *refCache[[]model.IndexCoefficient]
	norms  *refCache[*model.OverheadProfitNorm]
}

// NewEngine creates a pricing engine backed by the given store.
func NewEngine(st store.Store, cfg Config) *Engine {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Engine{
		store:  st,
		coeffs: newRefCache[[]model.IndexCoefficient](ttl),
		norms:  newRefCache[*model.OverheadProfitNorm](ttl),
	}
}

// InvalidateCache drops cached reference data. Called after a refresh so
// new coefficients take effect immediately.
func (e *Engine) InvalidateCache() {
	e.coeffs.reset()
	e.norms.reset()
}

// CalculatePrice computes the adjusted price breakdown for a catalog code.
// Price-type records are preferred over derived norm records; a record for
// the requested region is preferred over a federal one. Missing
// coefficients leave their component unadjusted, and the breakdown reports
// exactly which coefficients were applied.
func (e *Engine) CalculatePrice(ctx context.Context, req Request) (*model.PriceBreakdown, error) {
	if req.Code == "" {
		return nil, eris.New("pricing: code is required")
	}
	if req.Quantity <= 0 {
		return nil, eris.Errorf("pricing: quantity must be positive, got %v", req.Quantity)
	}

	items, err := e.store.FindByCode(ctx, req.Code)
	if err != nil {
		return nil, eris.Wrapf(err, "pricing: look up code %s", req.Code)
	}
	if len(items) == 0 {
		return nil, &NotFoundError{Code: req.Code}
	}

	base := pickBase(items, req.RegionCode)

	breakdown := &model.PriceBreakdown{
		Code:                req.Code,
		Name:                base.Name,
		Unit:                base.Unit,
		Quantity:            req.Quantity,
		BasePrice:           base.TotalCost,
		LaborCost:           base.LaborCost,
		MaterialCost:        base.MaterialCost,
		MachineCost:         base.MachineCost,
		CoefficientsApplied: map[model.CoefficientType]float64{},
		DerivedCosts:        base.Provenance.DerivedCosts,
	}

	if req.SkipCoefficients {
		breakdown.TotalWithCoefficients = base.TotalCost * req.Quantity
		return breakdown, nil
	}

	applied, err := e.applicableCoefficients(ctx, req.RegionCode, req.TargetPeriod)
	if err != nil {
		return nil, err
	}

	for typ, value := range applied {
		switch typ {
		case model.CoefficientLabor:
			breakdown.LaborCost *= value
		case model.CoefficientMaterial:
			breakdown.MaterialCost *= value
		case model.CoefficientMachine:
			breakdown.MachineCost *= value
		}
		breakdown.CoefficientsApplied[typ] = value
	}

	norm, err := e.overheadNorm(ctx, req.RegionCode)
	if err != nil {
		return nil, err
	}
	if norm != nil {
		// Overhead and profit are computed on the adjusted labor base
		// only, never on material or machine costs.
		laborBase := breakdown.LaborCost * req.Quantity
		breakdown.Overhead = laborBase * norm.OverheadNorm / 100
		breakdown.Profit = laborBase * norm.ProfitNorm / 100
	}

	componentTotal := breakdown.LaborCost + breakdown.MaterialCost + breakdown.MachineCost
	breakdown.TotalWithCoefficients = componentTotal*req.Quantity + breakdown.Overhead + breakdown.Profit

	zap.L().Debug("price calculated",
		zap.String("code", req.Code),
		zap.String("region", req.RegionCode),
		zap.Float64("total", breakdown.TotalWithCoefficients),
		zap.Int("coefficients", len(breakdown.CoefficientsApplied)),
	)
	return breakdown, nil
}

// pickBase chooses the record to price from: highest category precedence
// first (so authoritative prices beat derived norms), then a region match,
// then the newest validity window.
func pickBase(items []model.CanonicalItem, regionCode string) *model.CanonicalItem {
	sorted := make([]*model.CanonicalItem, len(items))
	for i := range items {
		sorted[i] = &items[i]
	}
	sort.SliceStable(sorted, func(a, b int) bool {
		ia, ib := sorted[a], sorted[b]
		if pa, pb := ia.Category.Priority(), ib.Category.Priority(); pa != pb {
			return pa > pb
		}
		if ma, mb := ia.Region == regionCode, ib.Region == regionCode; ma != mb {
			return ma
		}
		return ia.ValidFrom.After(ib.ValidFrom)
	})
	return sorted[0]
}

// applicableCoefficients resolves at most one coefficient per component,
// preferring region-specific entries over national fallbacks.
func (e *Engine) applicableCoefficients(ctx context.Context, regionCode, targetPeriod string) (map[model.CoefficientType]float64, error) {
	key := regionCode + "|" + targetPeriod
	now := time.Now()

	coeffs, ok := e.coeffs.get(key, now)
	if !ok {
		var err error
		coeffs, err = e.store.FindCoefficients(ctx, regionCode, targetPeriod)
		if err != nil {
			return nil, eris.Wrapf(err, "pricing: load coefficients for region %s", regionCode)
		}
		e.coeffs.put(key, coeffs, now)
	}

	applied := make(map[model.CoefficientType]float64, 3)
	for _, c := range coeffs {
		if _, seen := applied[c.Type]; seen {
			continue
		}
		if c.RegionCode != "" && c.RegionCode != regionCode {
			continue
		}
		// Region-specific rows sort before national ones, so the first
		// match per type is the most specific.
		applied[c.Type] = c.Value
	}
	return applied, nil
}

func (e *Engine) overheadNorm(ctx context.Context, regionCode string) (*model.OverheadProfitNorm, error) {
	now := time.Now()
	if norm, ok := e.norms.get(regionCode, now); ok {
		return norm, nil
	}

	norm, err := e.store.FindOverheadNorm(ctx, regionCode)
	if err != nil {
		return nil, eris.Wrapf(err, "pricing: load overhead norm for region %s", regionCode)
	}
	e.norms.put(regionCode, norm, now)
	return norm, nil
}
