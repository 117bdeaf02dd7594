package main

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/climateburdentract/cbi-pipeline/internal/extract"
	"github.com/climateburdentract/cbi-pipeline/internal/insights"
	"github.com/climateburdentract/cbi-pipeline/internal/pipeline"
	"github.com/climateburdentract/cbi-pipeline/internal/reconcile"
	"github.com/climateburdentract/cbi-pipeline/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "cbi.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initLocator loads extracted tract geometries for point lookups. Returns an
// empty locator when the interim tract table does not exist yet.
func initLocator() (*reconcile.TractLocator, error) {
	tracts, err := extract.ReadTracts(filepath.Join(cfg.Data.InterimDir, pipeline.TractFile))
	if err != nil {
		return nil, err
	}
	return reconcile.NewTractLocator(tracts), nil
}

func initInsights() insights.Generator {
	if cfg.Anthropic.Key == "" {
		return insights.StaticGenerator{}
	}
	return insights.NewLLMGenerator(cfg.Anthropic.Key, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
}
