package fuse

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/climateburdentract/cbi-pipeline/internal/extract"
	"github.com/climateburdentract/cbi-pipeline/internal/reconcile"
)

// ErrEmptyBase means the social-vulnerability base table is absent or empty.
// Fusion cannot produce any output without it.
var ErrEmptyBase = eris.New("fuse: empty social vulnerability base table")

// Fuse builds the tract feature table: the SVI table is the base (one row
// per tract, first occurrence wins on duplicate GEOIDs), then heat and air
// features are left-merged onto it in that order. A nil heat or air slice
// means the source did not resolve to tracts and is skipped with a warning.
// Imputation is the caller's next step; rows here may still carry nils.
func Fuse(svi []extract.SVIRow, heat []reconcile.TractHeat, air []reconcile.TractAir) ([]FeatureRow, error) {
	log := zap.L().With(zap.String("stage", "fuse"))

	if len(svi) == 0 {
		return nil, ErrEmptyBase
	}

	index := make(map[string]int, len(svi))
	rows := make([]FeatureRow, 0, len(svi))
	var dupes int

	for _, s := range svi {
		if _, ok := index[s.GEOID]; ok {
			dupes++
			continue
		}
		r := NewFeatureRow(s.GEOID)
		copy(r.SVI, s.Values)
		r.SVIComposite = s.Composite
		index[s.GEOID] = len(rows)
		rows = append(rows, r)
	}
	if dupes > 0 {
		log.Warn("duplicate base tracts dropped", zap.Int("rows", dupes))
	}

	if len(heat) == 0 {
		log.Warn("heat features unavailable, fusing without them")
	}
	var heatMatched int
	for _, h := range heat {
		i, ok := index[h.GEOID]
		if !ok {
			continue
		}
		rows[i].HeatAnnualMean = h.AnnualMean
		rows[i].HeatDaysAbove90F = h.DaysAbove90
		rows[i].HeatExtremePercentile95 = h.P95
		heatMatched++
	}

	if len(air) == 0 {
		log.Warn("air quality features unavailable, fusing without them")
	}
	var airMatched int
	for _, a := range air {
		i, ok := index[a.GEOID]
		if !ok {
			continue
		}
		rows[i].PM25Mean = a.PM25Mean
		rows[i].PM25P95 = a.PM25P95
		rows[i].OzoneMean = a.OzoneMean
		rows[i].OzoneHighDays = a.OzoneHighDays
		airMatched++
	}

	log.Info("features fused",
		zap.Int("tracts", len(rows)),
		zap.Int("heat_matched", heatMatched),
		zap.Int("air_matched", airMatched),
	)
	return rows, nil
}
