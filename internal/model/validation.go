package model

// ValidationResult is the outcome of validating a single canonical item.
// Errors block loading; warnings are surfaced but do not block.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// BatchSummary counts the outcome of validating a batch of items.
type BatchSummary struct {
	Total        int `json:"total"`
	Valid        int `json:"valid"`
	Invalid      int `json:"invalid"`
	WithWarnings int `json:"with_warnings"`
}
