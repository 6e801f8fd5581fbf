// Package validate checks canonical catalog items against structural and
// category-specific rules before they are allowed into the store.
package validate

import (
	"fmt"
	"regexp"

	"github.com/stroysmeta/normcat-cli/internal/model"
)

// Config tunes validation limits. Zero values fall back to defaults.
type Config struct {
	MaxCodeLength int     `mapstructure:"max_code_length" yaml:"max_code_length"`
	MaxNameLength int     `mapstructure:"max_name_length" yaml:"max_name_length"`
	CostTolerance float64 `mapstructure:"cost_tolerance" yaml:"cost_tolerance"`
}

// DefaultConfig returns the limits catalog publishers actually agreed on.
func DefaultConfig() Config {
	return Config{
		MaxCodeLength: 50,
		MaxNameLength: 500,
		CostTolerance: 0.01,
	}
}

// rateCodePattern matches the chapter-section-item numbering used by
// rate and norm collections, e.g. 01-01-001 or 77-02-015-04.
var rateCodePattern = regexp.MustCompile(`^\d{1,2}-\d{1,3}-\d{1,3}(-\d+)?$`)

// Validator applies the base rules plus per-category overlays.
type Validator struct {
	cfg Config
}

// New builds a Validator, filling unset config fields with defaults.
func New(cfg Config) *Validator {
	def := DefaultConfig()
	if cfg.MaxCodeLength == 0 {
		cfg.MaxCodeLength = def.MaxCodeLength
	}
	if cfg.MaxNameLength == 0 {
		cfg.MaxNameLength = def.MaxNameLength
	}
	if cfg.CostTolerance == 0 {
		cfg.CostTolerance = def.CostTolerance
	}
	return &Validator{cfg: cfg}
}

// Validate checks one item. Errors make the item invalid; warnings travel
// with the item but do not block loading.
func (v *Validator) Validate(item *model.CanonicalItem) model.ValidationResult {
	var res model.ValidationResult

	if item.Code == "" {
		res.Errors = append(res.Errors, "code is required")
	} else if len(item.Code) > v.cfg.MaxCodeLength {
		res.Errors = append(res.Errors, fmt.Sprintf("code exceeds %d characters", v.cfg.MaxCodeLength))
	}

	if item.Name == "" {
		res.Errors = append(res.Errors, "name is required")
	} else if len([]rune(item.Name)) > v.cfg.MaxNameLength {
		res.Warnings = append(res.Warnings, fmt.Sprintf("name exceeds %d characters", v.cfg.MaxNameLength))
	}

	if item.Unit == "" {
		res.Errors = append(res.Errors, "unit is required")
	}

	for _, c := range []struct {
		name  string
		value float64
	}{
		{"labor_cost", item.LaborCost},
		{"material_cost", item.MaterialCost},
		{"machine_cost", item.MachineCost},
		{"total_cost", item.TotalCost},
		{"labor_consumption", item.LaborConsumption},
		{"machine_time", item.MachineTime},
	} {
		if c.value < 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("%s is negative", c.name))
		}
	}

	if item.ValidFrom.IsZero() {
		res.Errors = append(res.Errors, "valid_from is required")
	}

	v.categoryRules(item, &res)

	res.IsValid = len(res.Errors) == 0
	return res
}

// categoryRules applies the overlay for the item's normative base.
func (v *Validator) categoryRules(item *model.CanonicalItem, res *model.ValidationResult) {
	if item.Category.Regional() && item.Region == "" {
		res.Errors = append(res.Errors, fmt.Sprintf("region is required for %s items", item.Category))
	}

	switch item.Category {
	case model.CategoryFER, model.CategoryTER, model.CategoryGESN:
		if item.Code != "" && !rateCodePattern.MatchString(item.Code) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("code %q does not match rate numbering", item.Code))
		}
		if !item.CostConsistent(v.cfg.CostTolerance) {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"total_cost %.2f differs from component sum %.2f",
				item.TotalCost, item.LaborCost+item.MaterialCost+item.MachineCost,
			))
		}
	case model.CategoryFSSC, model.CategoryTSSC:
		if item.MaterialCost == 0 {
			res.Warnings = append(res.Warnings, "material price is zero")
		}
	}

	if item.Category == model.CategoryGESN {
		if !item.Provenance.DerivedCosts {
			res.Errors = append(res.Errors, "norm-type item must mark its costs as derived")
		}
		for i, m := range item.Materials {
			if m.Code == "" || m.Name == "" || m.Unit == "" {
				res.Warnings = append(res.Warnings, fmt.Sprintf("material %d is incomplete", i+1))
			}
			if m.Consumption < 0 {
				res.Warnings = append(res.Warnings, fmt.Sprintf("material %d has negative consumption", i+1))
			}
		}
	}
}
