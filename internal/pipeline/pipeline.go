// Package pipeline orchestrates the extract, fuse, score, and load stages of
// a Climate Burden Index run.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/climateburdentract/cbi-pipeline/internal/aggregate"
	"github.com/climateburdentract/cbi-pipeline/internal/config"
	"github.com/climateburdentract/cbi-pipeline/internal/extract"
	"github.com/climateburdentract/cbi-pipeline/internal/fuse"
	"github.com/climateburdentract/cbi-pipeline/internal/reconcile"
	"github.com/climateburdentract/cbi-pipeline/internal/scorer"
	"github.com/climateburdentract/cbi-pipeline/internal/store"
)

// Interim and processed table file names under the configured data dirs.
const (
	HeatFile      = "heat_exposure.csv"
	AirFile       = "aqs_metrics.csv"
	SVIFile       = "svi_normalized.csv"
	TractFile     = "tiger_tracts.csv"
	ESGFile       = "esg_indicators.csv"
	ESGSectorFile = "esg_by_sector.csv"
)

// Pipeline runs the full tract scoring flow. The store is optional; without
// one the run stops after writing the processed feature table.
type Pipeline struct {
	cfg   *config.Config
	store store.Store
}

// New creates a Pipeline with explicit dependencies.
func New(cfg *config.Config, st store.Store) *Pipeline {
	return &Pipeline{cfg: cfg, store: st}
}

// RunResult summarizes one pipeline run.
type RunResult struct {
	RunID         string
	TractCount    int
	SourceRows    map[string]int
	AbsentColumns []string
	Duration      time.Duration
}

// Run executes every stage: the five extractors in parallel, then fusion,
// imputation, scoring, and the store load.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	runID := uuid.New().String()
	start := time.Now()
	log := zap.L().With(zap.String("run_id", runID))
	log.Info("pipeline run starting")

	sourceRows, err := p.Extract(ctx)
	if err != nil {
		return nil, err
	}

	rows, report, err := p.FuseAndScore(ctx)
	if err != nil {
		return nil, err
	}

	if p.store != nil {
		if err := p.Load(ctx, runID, rows, sourceRows); err != nil {
			return nil, err
		}
	}

	result := &RunResult{
		RunID:         runID,
		TractCount:    len(rows),
		SourceRows:    sourceRows,
		AbsentColumns: report.Absent,
		Duration:      time.Since(start),
	}
	log.Info("pipeline run complete",
		zap.Int("tracts", result.TractCount),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// Extract runs the five source extractors concurrently and writes their
// interim tables. Absent sources yield zero rows, not errors.
func (p *Pipeline) Extract(ctx context.Context) (map[string]int, error) {
	stages := []struct {
		source string
		run    func(context.Context) (int, error)
	}{
		{"heat", p.extractTemperature},
		{"air", p.extractAir},
		{"svi", p.extractSVI},
		{"tiger", p.extractTracts},
		{"esg", p.extractESG},
	}

	counts := make([]int, len(stages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(stages))

	for i, stage := range stages {
		i, stage := i, stage
		g.Go(func() error {
			n, err := stage.run(gctx)
			counts[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]int, len(stages))
	for i, stage := range stages {
		out[stage.source] = counts[i]
	}
	return out, nil
}

func (p *Pipeline) extractTemperature(ctx context.Context) (int, error) {
	obs, err := extract.Temperature(ctx, filepath.Join(p.cfg.Data.RawDir, "temperature", "city_temperature.csv"))
	if err != nil {
		return 0, err
	}
	metrics := aggregate.Heat(obs)
	if err := aggregate.WriteHeat(filepath.Join(p.cfg.Data.InterimDir, HeatFile), metrics); err != nil {
		return 0, err
	}
	return len(metrics), nil
}

func (p *Pipeline) extractAir(ctx context.Context) (int, error) {
	obs, err := extract.AirQuality(ctx,
		filepath.Join(p.cfg.Data.RawDir, "aqs"),
		filepath.Join(p.cfg.Data.InterimDir, "scratch", "aqs"),
	)
	if err != nil {
		return 0, err
	}
	metrics := aggregate.Air(obs)
	if err := aggregate.WriteAir(filepath.Join(p.cfg.Data.InterimDir, AirFile), metrics); err != nil {
		return 0, err
	}
	return len(metrics), nil
}

func (p *Pipeline) extractSVI(ctx context.Context) (int, error) {
	rows, err := extract.SVI(ctx, filepath.Join(p.cfg.Data.RawDir, "svi"))
	if err != nil {
		return 0, err
	}
	if err := extract.WriteSVI(filepath.Join(p.cfg.Data.InterimDir, SVIFile), rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (p *Pipeline) extractTracts(ctx context.Context) (int, error) {
	tracts, err := extract.Tracts(ctx, filepath.Join(p.cfg.Data.RawDir, "tiger"))
	if err != nil {
		return 0, err
	}
	if err := extract.WriteTracts(filepath.Join(p.cfg.Data.InterimDir, TractFile), tracts); err != nil {
		return 0, err
	}
	return len(tracts), nil
}

func (p *Pipeline) extractESG(ctx context.Context) (int, error) {
	records, err := extract.ESG(ctx,
		filepath.Join(p.cfg.Data.RawDir, "esg"),
		filepath.Join(p.cfg.Data.InterimDir, "scratch", "esg"),
		p.cfg.Data.ESGAliasPath,
	)
	if err != nil {
		return 0, err
	}
	if err := extract.WriteESG(filepath.Join(p.cfg.Data.InterimDir, ESGFile), records); err != nil {
		return 0, err
	}

	// Sector-level stats have no tract mapping and stay a standalone
	// artifact next to the interim tables.
	stats := aggregate.ESGBySector(records)
	if err := aggregate.WriteESGBySector(filepath.Join(p.cfg.Data.InterimDir, ESGSectorFile), stats); err != nil {
		return 0, err
	}
	return len(records), nil
}

// FuseAndScore reads the interim tables, reconciles keys, fuses the feature
// table, imputes, scores, and writes the processed table.
func (p *Pipeline) FuseAndScore(ctx context.Context) ([]fuse.FeatureRow, *fuse.ImputeReport, error) {
	interim := p.cfg.Data.InterimDir

	svi, err := extract.ReadSVI(filepath.Join(interim, SVIFile))
	if err != nil {
		return nil, nil, err
	}
	heatMetrics, err := aggregate.ReadHeat(filepath.Join(interim, HeatFile))
	if err != nil {
		return nil, nil, err
	}
	airMetrics, err := aggregate.ReadAir(filepath.Join(interim, AirFile))
	if err != nil {
		return nil, nil, err
	}
	tracts, err := extract.ReadTracts(filepath.Join(interim, TractFile))
	if err != nil {
		return nil, nil, err
	}

	cw, err := reconcile.LoadCrosswalk(p.cfg.Data.CrosswalkPath)
	if err != nil {
		return nil, nil, err
	}
	locator := reconcile.NewTractLocator(tracts)

	heat := reconcile.HeatByTract(heatMetrics, cw, locator)
	air := reconcile.AirByTract(airMetrics, cw)

	rows, err := fuse.Fuse(svi, heat, air)
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: fuse")
	}

	report := fuse.Impute(rows)
	scorer.Score(rows)

	if err := fuse.WriteFeatures(p.cfg.Data.FeaturesPath(), rows); err != nil {
		return nil, nil, err
	}

	if ctx.Err() != nil {
		return nil, nil, eris.Wrap(ctx.Err(), "pipeline: cancelled")
	}
	return rows, &report, nil
}

// LoadProcessed re-reads the processed feature table from disk and loads it.
// Used when the fuse and load stages run in separate processes.
func (p *Pipeline) LoadProcessed(ctx context.Context, runID string, sourceRows map[string]int) error {
	rows, err := fuse.ReadFeatures(p.cfg.Data.FeaturesPath())
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return eris.New("pipeline: processed feature table is absent or empty")
	}
	return p.Load(ctx, runID, rows, sourceRows)
}

// Load replaces the serving store's scored table and records the run's
// data-quality audit.
func (p *Pipeline) Load(ctx context.Context, runID string, rows []fuse.FeatureRow, sourceRows map[string]int) error {
	if err := p.store.ReplaceScores(ctx, runID, rows); err != nil {
		return err
	}

	now := time.Now().UTC()
	recs := make([]store.QualityRecord, 0, len(sourceRows)+1)
	for source, n := range sourceRows {
		rec := store.QualityRecord{RunID: runID, Source: source, RowCount: n, CreatedAt: now}
		if n == 0 {
			rec.Note = "source absent"
		}
		recs = append(recs, rec)
	}
	recs = append(recs, store.QualityRecord{
		RunID: runID, Source: "fused", RowCount: len(rows), CreatedAt: now,
	})

	if err := p.store.RecordQuality(ctx, recs); err != nil {
		return err
	}
	zap.L().Info("scores loaded", zap.Int("tracts", len(rows)))
	return nil
}
