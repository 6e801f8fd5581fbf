package canonical

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/stroysmeta/normcat-cli/internal/model"
)

// CanonicalizationError reports a raw record that cannot become a canonical
// item at all. Recoverable problems (bad numerics, odd units) never raise
// it; they are coerced and recorded as provenance warnings instead.
type CanonicalizationError struct {
	Source string
	Code   string
	Reason string
}

func (e *CanonicalizationError) Error() string {
	return fmt.Sprintf("canonicalize %s record %q: %s", e.Source, e.Code, e.Reason)
}

// Canonicalizer converts raw source records into canonical catalog items.
// It holds the conversion rates used to price out consumption norms.
type Canonicalizer struct {
	rates ConversionRates
}

// NewCanonicalizer builds a canonicalizer with the given conversion rates.
func NewCanonicalizer(rates ConversionRates) *Canonicalizer {
	return &Canonicalizer{rates: rates}
}

// Canonicalize converts one raw record. It is an exhaustive switch over
// the raw record union; an unknown variant is a programming error.
func (c *Canonicalizer) Canonicalize(raw model.RawItem) (*model.CanonicalItem, error) {
	switch r := raw.(type) {
	case model.RawRate:
		return c.fromRate(r)
	case model.RawNorm:
		return c.fromNorm(r)
	case model.RawMaterialPrice:
		return c.fromMaterialPrice(r)
	default:
		return nil, eris.Errorf("canonical: unknown raw record type %T", raw)
	}
}

func (c *Canonicalizer) fromRate(r model.RawRate) (*model.CanonicalItem, error) {
	code := strings.TrimSpace(r.Code)
	name := strings.TrimSpace(r.Name)
	if code == "" {
		return nil, &CanonicalizationError{Source: r.SourceName, Code: code, Reason: "missing code"}
	}
	if name == "" {
		return nil, &CanonicalizationError{Source: r.SourceName, Code: code, Reason: "missing name"}
	}

	var warnings []string
	labor := coerceAmount(r.LaborCost, "labor_cost", code, &warnings)
	material := coerceAmount(r.MaterialCost, "material_cost", code, &warnings)
	machine := coerceAmount(r.MachineCost, "machine_cost", code, &warnings)
	total := coerceAmount(r.TotalCost, "total_cost", code, &warnings)
	if total == 0 {
		total = labor + material + machine
	}

	unit := normalizeUnitWarn(r.Unit, code, &warnings)

	return &model.CanonicalItem{
		Code:         code,
		Name:         name,
		Unit:         unit,
		LaborCost:    labor,
		MaterialCost: material,
		MachineCost:  machine,
		TotalCost:    total,
		Category:     r.Cat,
		SourceName:   r.SourceName,
		Region:       strings.TrimSpace(r.Region),
		Chapter:      strings.TrimSpace(r.Chapter),
		Section:      strings.TrimSpace(r.Section),
		ValidFrom:    r.ValidFrom,
		Provenance:   model.Provenance{Warnings: warnings},
	}, nil
}

func (c *Canonicalizer) fromNorm(r model.RawNorm) (*model.CanonicalItem, error) {
	code := strings.TrimSpace(r.Code)
	name := strings.TrimSpace(r.Name)
	if code == "" {
		return nil, &CanonicalizationError{Source: r.SourceName, Code: code, Reason: "missing code"}
	}
	if name == "" {
		return nil, &CanonicalizationError{Source: r.SourceName, Code: code, Reason: "missing name"}
	}

	var warnings []string
	laborHours := coerceAmount(r.LaborConsumption, "labor_consumption", code, &warnings)
	machineHours := coerceAmount(r.MachineTime, "machine_time", code, &warnings)

	laborCost, machineCost := c.rates.deriveNormCosts(laborHours, machineHours)

	materials := make([]model.MaterialSpec, 0, len(r.Materials))
	for _, m := range r.Materials {
		consumption := coerceAmount(m.Consumption, "material_consumption", code, &warnings)
		waste := coerceAmount(m.WasteCoefficient, "waste_coefficient", code, &warnings)
		unit := normalizeUnitWarn(m.Unit, code, &warnings)
		materials = append(materials, model.MaterialSpec{
			Code:             strings.TrimSpace(m.Code),
			Name:             strings.TrimSpace(m.Name),
			Unit:             unit,
			Consumption:      consumption,
			WasteCoefficient: waste,
		})
	}

	unit := normalizeUnitWarn(r.Unit, code, &warnings)

	return &model.CanonicalItem{
		Code:             code,
		Name:             name,
		Unit:             unit,
		LaborCost:        laborCost,
		MachineCost:      machineCost,
		TotalCost:        laborCost + machineCost,
		Category:         model.CategoryGESN,
		SourceName:       r.SourceName,
		Chapter:          strings.TrimSpace(r.Chapter),
		Section:          strings.TrimSpace(r.Section),
		ValidFrom:        r.ValidFrom,
		Materials:        materials,
		LaborConsumption: laborHours,
		MachineTime:      machineHours,
		Provenance: model.Provenance{
			DerivedCosts: true,
			Warnings:     warnings,
		},
	}, nil
}

func (c *Canonicalizer) fromMaterialPrice(r model.RawMaterialPrice) (*model.CanonicalItem, error) {
	code := strings.TrimSpace(r.Code)
	name := strings.TrimSpace(r.Name)
	if code == "" {
		return nil, &CanonicalizationError{Source: r.SourceName, Code: code, Reason: "missing code"}
	}
	if name == "" {
		return nil, &CanonicalizationError{Source: r.SourceName, Code: code, Reason: "missing name"}
	}

	var warnings []string
	price := coerceAmount(r.Price, "price", code, &warnings)
	unit := normalizeUnitWarn(r.Unit, code, &warnings)

	return &model.CanonicalItem{
		Code:         code,
		Name:         name,
		Unit:         unit,
		MaterialCost: price,
		TotalCost:    price,
		Category:     r.Cat,
		SourceName:   r.SourceName,
		Region:       strings.TrimSpace(r.Region),
		Chapter:      strings.TrimSpace(r.MaterialGroup),
		ValidFrom:    r.ValidFrom,
		Provenance:   model.Provenance{Warnings: warnings},
	}, nil
}

// coerceAmount parses a numeric field, coercing garbage to zero with a
// provenance warning. A bad figure must not sink the whole record.
func coerceAmount(raw, field, code string, warnings *[]string) float64 {
	v, ok := ParseAmount(raw)
	if !ok {
		*warnings = append(*warnings, fmt.Sprintf("unparsable %s %q coerced to 0", field, strings.TrimSpace(raw)))
		zap.L().Debug("canonical: coerced unparsable numeric",
			zap.String("code", code),
			zap.String("field", field),
			zap.String("value", raw),
		)
		return 0
	}
	return v
}

func normalizeUnitWarn(raw, code string, warnings *[]string) string {
	unit, known := NormalizeUnit(raw)
	if !known && unit != "" {
		*warnings = append(*warnings, fmt.Sprintf("unknown unit %q", unit))
	}
	return unit
}
