package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/stroysmeta/normcat-cli/internal/canonical"
	"github.com/stroysmeta/normcat-cli/internal/etl"
	"github.com/stroysmeta/normcat-cli/internal/fetcher"
	"github.com/stroysmeta/normcat-cli/internal/pricing"
	"github.com/stroysmeta/normcat-cli/internal/resilience"
	"github.com/stroysmeta/normcat-cli/internal/source"
	"github.com/stroysmeta/normcat-cli/internal/store"
	"github.com/stroysmeta/normcat-cli/internal/validate"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "normcat.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// buildRegistry registers the enabled collectors with their fetchers.
func buildRegistry() (*source.Registry, error) {
	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:         cfg.Sources.UserAgent,
		Timeout:           time.Duration(cfg.Sources.TimeoutSecs) * time.Second,
		MaxRetries:        cfg.ETL.MaxRetries,
		InterRequestDelay: time.Duration(cfg.Sources.InterRequestDelayMS) * time.Millisecond,
	})
	ftpFetcher := fetcher.NewFTPFetcher(fetcher.FTPOptions{
		Timeout: time.Duration(cfg.Sources.TimeoutSecs) * time.Second,
	})

	reg := source.NewRegistry()
	for _, name := range cfg.Sources.Enabled {
		switch name {
		case "fer":
			reg.Register(source.NewFER(httpFetcher, cfg.Sources.FERURL, time.Time{}))
		case "ter":
			reg.Register(source.NewTER(httpFetcher, cfg.Sources.TERURLFormat, cfg.Sources.Regions, time.Time{}))
		case "gesn":
			reg.Register(source.NewGESN(httpFetcher, cfg.Sources.GESNURL, time.Time{}))
		case "fssc":
			reg.Register(source.NewFSSC(ftpFetcher, cfg.Sources.FSSCURL, time.Time{}))
		case "tssc":
			reg.Register(source.NewTSSC(httpFetcher, cfg.Sources.TSSCURLFormat, cfg.Sources.Regions, time.Time{}))
		default:
			return nil, eris.Errorf("unknown source %q in sources.enabled", name)
		}
	}
	return reg, nil
}

func buildOrchestrator(st store.Store) (*etl.Orchestrator, error) {
	reg, err := buildRegistry()
	if err != nil {
		return nil, err
	}

	canon := canonical.NewCanonicalizer(cfg.Rates)
	validator := validate.New(cfg.Validation)

	return etl.New(st, reg, canon, validator, etl.Config{
		ChunkSize:            cfg.ETL.ChunkSize,
		MaxConcurrentSources: cfg.ETL.MaxConcurrent,
		MaxJobErrors:         cfg.ETL.MaxJobErrors,
		Retry: resilience.RetryConfig{
			MaxAttempts:    cfg.ETL.MaxRetries,
			InitialBackoff: time.Duration(cfg.ETL.RetryBaseDelayMS) * time.Millisecond,
		},
	}), nil
}

func buildEngine(st store.Store) *pricing.Engine {
	return pricing.NewEngine(st, pricing.Config{CacheTTL: cfg.Pricing.CacheTTL()})
}
