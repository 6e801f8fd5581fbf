package model

import "time"

// CoefficientType names the cost component an index coefficient applies to.
type CoefficientType string

const (
	CoefficientLabor    CoefficientType = "labor"
	CoefficientMaterial CoefficientType = "material"
	CoefficientMachine  CoefficientType = "machine"
)

// IndexCoefficient is a multiplier converting a base-period cost component
// to a target period and region. Uniqueness:
// (coefficientType, basePeriod, targetPeriod, regionCode, constructionType).
type IndexCoefficient struct {
	Type         CoefficientType `json:"coefficient_type" yaml:"type"`
	BasePeriod   string          `json:"base_period" yaml:"base_period"`
	TargetPeriod string          `json:"target_period" yaml:"target_period"`

	// RegionCode is empty for national coefficients.
	RegionCode string `json:"region_code,omitempty" yaml:"region_code"`
	RegionName string `json:"region_name,omitempty" yaml:"region_name"`

	// ConstructionType is empty when the coefficient applies to all
	// construction types.
	ConstructionType string `json:"construction_type,omitempty" yaml:"construction_type"`

	Value     float64   `json:"value" yaml:"value"`
	ValidFrom time.Time `json:"valid_from" yaml:"valid_from"`
	IsActive  bool      `json:"is_active" yaml:"is_active"`
}

// OverheadProfitNorm holds the overhead and profit percentages applied to
// the labor cost base when pricing work in a region. RegionCode empty
// means the national default norm.
type OverheadProfitNorm struct {
	RegionCode   string  `json:"region_code,omitempty" yaml:"region_code"`
	OverheadNorm float64 `json:"overhead_norm" yaml:"overhead_norm"` // percent of labor base
	ProfitNorm   float64 `json:"profit_norm" yaml:"profit_norm"`     // percent of labor base
	IsActive     bool    `json:"is_active" yaml:"is_active"`
}

// PriceBreakdown is the result of a price calculation: per-unit adjusted
// cost components, the coefficients that were actually applied, and the
// final total including overhead and profit.
type PriceBreakdown struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Unit     string  `json:"unit"`
	Quantity float64 `json:"quantity"`

	// BasePrice is the unadjusted per-unit total from the catalog.
	BasePrice float64 `json:"base_price"`

	// Per-unit cost components after coefficient adjustment.
	LaborCost    float64 `json:"labor_cost"`
	MaterialCost float64 `json:"material_cost"`
	MachineCost  float64 `json:"machine_cost"`

	// CoefficientsApplied names exactly the coefficients that were found
	// and multiplied in. A component missing from this map was left
	// unadjusted.
	CoefficientsApplied map[CoefficientType]float64 `json:"coefficients_applied"`

	// Overhead and profit computed on the adjusted labor base for the
	// full quantity.
	Overhead float64 `json:"overhead"`
	Profit   float64 `json:"profit"`

	TotalWithCoefficients float64 `json:"total_with_coefficients"`

	// DerivedCosts mirrors the catalog item's provenance flag so callers
	// can tell an estimated GESN-based price from an authoritative one.
	DerivedCosts bool `json:"derived_costs,omitempty"`
}
