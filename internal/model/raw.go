package model

import "time"

// RawItem is the closed union of per-source record shapes produced by
// source collectors. Exactly three variants exist: RawRate (FER/TER),
// RawNorm (GESN) and RawMaterialPrice (FSSC/TSSC). The canonicalizer is
// an exhaustive switch over this union.
//
// Numeric fields are kept as raw strings: external documents mix decimal
// commas, thousands separators and currency suffixes, and parsing them is
// the canonicalizer's job, not the collector's.
type RawItem interface {
	// ItemCategory returns the normative base the record came from.
	ItemCategory() Category

	// ItemSource returns the human-readable source name for provenance.
	ItemSource() string
}

// RawRate is a unit cost rate row from a federal (FER) or territorial
// (TER) rate collection.
type RawRate struct {
	Cat        Category // CategoryFER or CategoryTER
	SourceName string

	Code string
	Name string
	Unit string

	LaborCost    string
	MaterialCost string
	MachineCost  string
	TotalCost    string

	Region  string // empty for FER
	Chapter string
	Section string

	ValidFrom time.Time
}

func (r RawRate) ItemCategory() Category { return r.Cat }
func (r RawRate) ItemSource() string     { return r.SourceName }

// RawNormMaterial is one material consumption entry inside a RawNorm.
type RawNormMaterial struct {
	Code             string
	Name             string
	Unit             string
	Consumption      string
	WasteCoefficient string
}

// RawNorm is a state elemental norm (GESN) row: consumption figures per
// unit of work, with no direct monetary price.
type RawNorm struct {
	SourceName string

	Code string
	Name string
	Unit string

	LaborConsumption string // person-hours
	MachineTime      string // machine-hours
	Materials        []RawNormMaterial

	Chapter string
	Section string

	ValidFrom time.Time
}

func (r RawNorm) ItemCategory() Category { return CategoryGESN }
func (r RawNorm) ItemSource() string     { return r.SourceName }

// RawMaterialPrice is a material unit price row from a federal (FSSC) or
// territorial (TSSC) material price collection.
type RawMaterialPrice struct {
	Cat        Category // CategoryFSSC or CategoryTSSC
	SourceName string

	Code  string
	Name  string
	Unit  string
	Price string

	Region        string // empty for FSSC
	MaterialGroup string

	ValidFrom time.Time
}

func (r RawMaterialPrice) ItemCategory() Category { return r.Cat }
func (r RawMaterialPrice) ItemSource() string     { return r.SourceName }
