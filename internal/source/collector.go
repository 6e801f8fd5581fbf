// Package source implements the catalog collectors: one per normative
// base (FER, TER, GESN, FSSC, TSSC), each producing raw records for the
// ETL pipeline. Failures are isolated per collector.
package source

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stroysmeta/normcat-cli/internal/model"
)

// Collector produces raw records for one catalog type. Discovery and
// fetching are split so the caller can isolate failures per document;
// parallelism across collectors is the orchestrator's business.
type Collector interface {
	// Name is the unique collector name used in configuration, job
	// reports and provenance.
	Name() string

	// Category returns the normative base this collector feeds.
	Category() model.Category

	// Discover enumerates the documents the collector pulls: one
	// descriptor per endpoint, one per region for territorial catalogs.
	Discover(ctx context.Context) ([]Descriptor, error)

	// Fetch downloads and parses one discovered document.
	Fetch(ctx context.Context, d Descriptor) ([]model.RawItem, error)
}

// Descriptor identifies one fetchable document of a catalog.
type Descriptor struct {
	Name     string         `json:"name"`
	Category model.Category `json:"category"`
	Format   Format         `json:"format"`
	Endpoint string         `json:"endpoint"`
	Region   string         `json:"region,omitempty"`
}

// CollectAll drives a collector end to end: discover, then fetch each
// document sequentially. A failed document is skipped and its error
// collected, so one bad region cannot wipe out the rest of the catalog.
// The terminal error is non-nil only when discovery fails, the context is
// cancelled, or every document failed.
func CollectAll(ctx context.Context, c Collector) ([]model.RawItem, []error, error) {
	descs, err := c.Discover(ctx)
	if err != nil {
		return nil, nil, err
	}

	var items []model.RawItem
	var skipped []error
	for _, d := range descs {
		if err := ctx.Err(); err != nil {
			return items, skipped, err
		}

		part, err := c.Fetch(ctx, d)
		if err != nil {
			if d.Region != "" {
				err = fmt.Errorf("region %s: %w", d.Region, err)
			}
			skipped = append(skipped, err)
			zap.L().Warn("document fetch failed, continuing",
				zap.String("source", c.Name()),
				zap.String("endpoint", d.Endpoint),
				zap.Error(err),
			)
			continue
		}
		items = append(items, part...)
	}

	if len(descs) > 0 && len(skipped) == len(descs) {
		return nil, nil, skipped[len(skipped)-1]
	}
	return items, skipped, nil
}

// NetworkError wraps a download failure. It is transient: the pipeline
// records it against the job and moves on to sibling sources.
type NetworkError struct {
	Source string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("source %s: network failure: %v", e.Source, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError wraps a malformed document or row. It is permanent: retrying
// the download will not fix the payload.
type ParseError struct {
	Source string
	Line   int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("source %s: parse failure at row %d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("source %s: parse failure: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// vintageOr returns the configured validity start, or the first day of the
// current month when none is set. Catalog publishers issue monthly vintages.
func vintageOr(validFrom time.Time) time.Time {
	if !validFrom.IsZero() {
		return validFrom.UTC()
	}
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
