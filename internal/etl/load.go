package etl

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stroysmeta/normcat-cli/internal/model"
	"github.com/stroysmeta/normcat-cli/internal/resilience"
)

// load writes items in fixed-size chunks, each inside its own store
// transaction. Committed chunks stay committed whatever happens later;
// partial success is the deliberate policy. Returns the number of records
// that could not be loaded even individually.
func (o *Orchestrator) load(ctx context.Context, job *model.ETLJob, items []*model.CanonicalItem) int {
	log := zap.L().With(zap.String("component", "etl.load"), zap.String("job_id", job.ID))

	failed := 0
	chunkSize := o.cfg.ChunkSize

	for start, chunkIdx := 0, 0; start < len(items); start, chunkIdx = start+chunkSize, chunkIdx+1 {
		// Cancellation is honored between chunks, never mid-transaction.
		if err := ctx.Err(); err != nil {
			o.addError(job, fmt.Sprintf("load cancelled after %d chunks: %v", chunkIdx, err))
			return failed + len(items) - start
		}

		end := min(start+chunkSize, len(items))
		chunk := items[start:end]

		var loaded, skipped int
		err := resilience.Do(ctx, o.retryConfig("load_chunk"), func(ctx context.Context) error {
			var upsertErr error
			loaded, skipped, upsertErr = o.store.UpsertBatch(ctx, chunk)
			return upsertErr
		})
		if err == nil {
			job.RecordsLoaded += loaded
			job.RecordsSkipped += skipped
			continue
		}

		// The chunk keeps failing as a unit. Fall back to loading its
		// records one at a time so a single bad record cannot sink the
		// rest of the chunk.
		log.Warn("chunk load failed, falling back to per-record load",
			zap.Int("chunk", chunkIdx),
			zap.Int("size", len(chunk)),
			zap.Error(err),
		)
		o.addError(job, (&LoadError{Chunk: chunkIdx, Err: err}).Error())

		for _, item := range chunk {
			if recErr := o.store.UpsertOne(ctx, item); recErr != nil {
				failed++
				o.addError(job, fmt.Sprintf("record %s: %v", item.Key(), recErr))
				continue
			}
			job.RecordsLoaded++
		}
	}

	if failed > 0 {
		log.Warn("load finished with record failures", zap.Int("failed", failed))
	}
	return failed
}

func (o *Orchestrator) retryConfig(operation string) resilience.RetryConfig {
	cfg := o.cfg.Retry
	if cfg.MaxAttempts == 0 {
		cfg = resilience.DefaultRetryConfig()
	}
	cfg.OnRetry = resilience.RetryLogger("etl", operation)
	return cfg
}
