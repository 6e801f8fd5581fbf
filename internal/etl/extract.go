package etl

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stroysmeta/normcat-cli/internal/model"
	"github.com/stroysmeta/normcat-cli/internal/source"
)

// extract fans out over the collectors with bounded concurrency. A failed
// source is recorded as a job error and its siblings continue, so the job
// can finish with a partial extraction.
func (o *Orchestrator) extract(ctx context.Context, job *model.ETLJob, collectors []source.Collector) []model.RawItem {
	log := zap.L().With(zap.String("component", "etl.extract"), zap.String("job_id", job.ID))

	var mu sync.Mutex
	var raw []model.RawItem

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrentSources)

	for _, c := range collectors {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return nil
			}

			items, skipped, err := source.CollectAll(gctx, c)
			mu.Lock()
			for _, serr := range skipped {
				o.addError(job, fmt.Sprintf("source %s: %v", c.Name(), serr))
			}
			mu.Unlock()
			if err != nil {
				log.Warn("source extraction failed",
					zap.String("source", c.Name()),
					zap.Error(err),
				)
				mu.Lock()
				o.addError(job, fmt.Sprintf("source %s: %v", c.Name(), err))
				mu.Unlock()
				// Failure is contained; never cancel sibling sources.
				return nil
			}

			log.Info("source extracted",
				zap.String("source", c.Name()),
				zap.Int("records", len(items)),
				zap.Int("documents_skipped", len(skipped)),
			)
			mu.Lock()
			raw = append(raw, items...)
			job.RecordsExtracted += len(items)
			mu.Unlock()
			return nil
		})
	}

	// Goroutines only return nil; Wait just joins them.
	_ = g.Wait()
	return raw
}
