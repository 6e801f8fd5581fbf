package etl

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/stroysmeta/normcat-cli/internal/merge"
	"github.com/stroysmeta/normcat-cli/internal/model"
)

// transform runs canonicalize, validate, and merge over the extracted
// records. Records that cannot be canonicalized or fail validation are
// counted and excluded; merging keeps the highest-priority source per code.
func (o *Orchestrator) transform(job *model.ETLJob, raw []model.RawItem) []*model.CanonicalItem {
	log := zap.L().With(zap.String("component", "etl.transform"), zap.String("job_id", job.ID))

	canonItems := make([]*model.CanonicalItem, 0, len(raw))
	for _, r := range raw {
		item, err := o.canon.Canonicalize(r)
		if err != nil {
			job.RecordsInvalid++
			o.addError(job, err.Error())
			continue
		}
		canonItems = append(canonItems, item)
	}

	valid, invalid, summary := o.validator.ValidateBatch(canonItems)
	job.RecordsValid = summary.Valid
	job.RecordsInvalid += summary.Invalid
	for _, inv := range invalid {
		o.addError(job, fmt.Sprintf("item %s invalid: %v", inv.Item.Code, inv.Result.Errors))
	}

	merged := merge.Merge(valid)
	job.RecordsMerged = len(merged)

	log.Info("transform complete",
		zap.Int("canonical", len(canonItems)),
		zap.Int("valid", summary.Valid),
		zap.Int("invalid", job.RecordsInvalid),
		zap.Int("with_warnings", summary.WithWarnings),
		zap.Int("merged", len(merged)),
	)
	return merged
}
