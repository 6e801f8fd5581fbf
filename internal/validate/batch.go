package validate

import (
	"go.uber.org/zap"

	"github.com/stroysmeta/normcat-cli/internal/model"
)

// Invalid pairs a rejected item with the result that rejected it.
type Invalid struct {
	Item   *model.CanonicalItem
	Result model.ValidationResult
}

// ValidateBatch partitions items into valid and invalid sets. Warnings are
// folded into each valid item's provenance so they survive into storage.
func (v *Validator) ValidateBatch(items []*model.CanonicalItem) (valid []*model.CanonicalItem, invalid []Invalid, summary model.BatchSummary) {
	valid = make([]*model.CanonicalItem, 0, len(items))

	for _, item := range items {
		res := v.Validate(item)
		summary.Total++

		if !res.IsValid {
			summary.Invalid++
			invalid = append(invalid, Invalid{Item: item, Result: res})
			zap.L().Debug("validate: rejected item",
				zap.String("code", item.Code),
				zap.String("category", string(item.Category)),
				zap.Strings("errors", res.Errors),
			)
			continue
		}

		summary.Valid++
		if len(res.Warnings) > 0 {
			summary.WithWarnings++
			item.Provenance.Warnings = append(item.Provenance.Warnings, res.Warnings...)
		}
		valid = append(valid, item)
	}

	return valid, invalid, summary
}
