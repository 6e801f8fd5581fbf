// Package model defines the canonical data types shared across the
// normative-catalog pipeline: raw source records, canonical items,
// coefficients, ETL jobs, and validation results.
package model

import (
	"fmt"
	"time"
)

// Category identifies which normative base a record belongs to.
type Category string

const (
	// CategoryFER is federal unit cost rates for construction work.
	CategoryFER Category = "fer"
	// CategoryTER is territorial (region-specific) unit cost rates.
	CategoryTER Category = "ter"
	// CategoryGESN is state elemental norms: labor/machine consumption
	// per unit of work, without direct monetary prices.
	CategoryGESN Category = "gesn"
	// CategoryFSSC is the federal collection of material unit prices.
	CategoryFSSC Category = "fssc"
	// CategoryTSSC is the territorial collection of material unit prices.
	CategoryTSSC Category = "tssc"
)

// Priority returns the merge precedence of the category: authoritative
// federal prices beat territorial prices, which beat derived estimates.
func (c Category) Priority() int {
	switch c {
	case CategoryFER, CategoryFSSC:
		return 3
	case CategoryTER, CategoryTSSC:
		return 2
	case CategoryGESN:
		return 1
	default:
		return 0
	}
}

// Regional reports whether records of this category must carry a region code.
func (c Category) Regional() bool {
	return c == CategoryTER || c == CategoryTSSC
}

// PriceType reports whether records of this category carry authoritative
// monetary prices. GESN records only carry consumption norms; their costs
// are derived estimates.
func (c Category) PriceType() bool {
	return c != CategoryGESN
}

// ParseCategory converts a string into a Category.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryFER, CategoryTER, CategoryGESN, CategoryFSSC, CategoryTSSC:
		return Category(s), nil
	default:
		return "", fmt.Errorf("unknown category %q", s)
	}
}

// MaterialSpec describes consumption of one material per unit of work
// in a norm-type (GESN) item.
type MaterialSpec struct {
	Code             string  `json:"code"`
	Name             string  `json:"name"`
	Unit             string  `json:"unit"`
	Consumption      float64 `json:"consumption"`
	WasteCoefficient float64 `json:"waste_coefficient,omitempty"`
}

// SupersededRecord names a record that lost a merge conflict to the item
// carrying it. Kept so superseded sources are never discarded silently.
type SupersededRecord struct {
	SourceName string    `json:"source_name"`
	Category   Category  `json:"category"`
	Region     string    `json:"region,omitempty"`
	ValidFrom  time.Time `json:"valid_from"`
	TotalCost  float64   `json:"total_cost"`
}

// Provenance records how a canonical item came to hold its values.
type Provenance struct {
	// DerivedCosts is true when cost fields were estimated from
	// consumption norms rather than taken from an authoritative price
	// source. Such totals must never be mistaken for published prices.
	DerivedCosts bool `json:"derived_costs,omitempty"`

	// Warnings accumulated during canonicalization (unparsable numerics
	// coerced to zero, unknown units, and similar).
	Warnings []string `json:"warnings,omitempty"`

	// Supersedes lists records displaced by this item during merge.
	Supersedes []SupersededRecord `json:"supersedes,omitempty"`
}

// NaturalKey is the business identifier used for deduplication and for
// idempotent upsert into the catalog store.
type NaturalKey struct {
	Code      string
	Category  Category
	Region    string
	ValidFrom time.Time
}

// String renders the key in a stable, comparable form.
func (k NaturalKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%s", k.Code, k.Category, k.Region, k.ValidFrom.UTC().Format("2006-01-02"))
}

// CanonicalItem is the unified, source-agnostic record schema used for
// storage and pricing.
type CanonicalItem struct {
	Code         string   `json:"code"`
	Name         string   `json:"name"`
	Unit         string   `json:"unit"`
	LaborCost    float64  `json:"labor_cost"`
	MaterialCost float64  `json:"material_cost"`
	MachineCost  float64  `json:"machine_cost"`
	TotalCost    float64  `json:"total_cost"`
	Category     Category `json:"category"`
	SourceName   string   `json:"source_name"`

	// Region is empty for federal-only sources.
	Region  string `json:"region,omitempty"`
	Chapter string `json:"chapter,omitempty"`
	Section string `json:"section,omitempty"`

	ValidFrom time.Time  `json:"valid_from"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`

	// Norm-type fields, set only for GESN items.
	Materials        []MaterialSpec `json:"materials,omitempty"`
	LaborConsumption float64        `json:"labor_consumption,omitempty"`
	MachineTime      float64        `json:"machine_time,omitempty"`

	Provenance Provenance `json:"provenance"`
}

// Key returns the item's natural key.
func (i *CanonicalItem) Key() NaturalKey {
	return NaturalKey{
		Code:      i.Code,
		Category:  i.Category,
		Region:    i.Region,
		ValidFrom: i.ValidFrom,
	}
}

// CostConsistent reports whether totalCost matches the sum of the three
// cost components within the given tolerance.
func (i *CanonicalItem) CostConsistent(tolerance float64) bool {
	sum := i.LaborCost + i.MaterialCost + i.MachineCost
	diff := i.TotalCost - sum
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
