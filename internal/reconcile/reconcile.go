package reconcile

import (
	"go.uber.org/zap"

	"github.com/climateburdentract/cbi-pipeline/internal/aggregate"
)

// TractHeat is heat exposure resolved to a tract.
type TractHeat struct {
	GEOID       string
	AnnualMean  *float64
	DaysAbove90 *float64
	P95         *float64
}

// TractAir is air quality resolved to a tract, pivoted by pollutant.
type TractAir struct {
	GEOID         string
	PM25Mean      *float64
	PM25P95       *float64
	OzoneMean     *float64
	OzoneHighDays *float64
}

// HeatByTract resolves proxy-keyed heat metrics to tracts. The crosswalk is
// consulted first; unmapped locations fall back to the spatial locator using
// the coordinates embedded in the proxy key. When several locations resolve
// to the same tract the first keeps it. Returns nil when nothing resolves,
// which excludes the source from fusion.
func HeatByTract(metrics []aggregate.HeatMetrics, cw *Crosswalk, loc *TractLocator) []TractHeat {
	log := zap.L().With(zap.String("source", "heat"))

	seen := make(map[string]bool)
	var out []TractHeat
	var unresolved, collisions int

	for _, m := range metrics {
		g := cw.Resolve(m.LocationID)
		if g == "" && loc != nil {
			g, _ = loc.Locate(m.Longitude, m.Latitude)
		}
		if g == "" {
			unresolved++
			continue
		}
		if seen[g] {
			collisions++
			continue
		}
		seen[g] = true

		t := TractHeat{GEOID: g, AnnualMean: m.AnnualMean, P95: m.P95}
		days := float64(m.DaysAbove90)
		t.DaysAbove90 = &days
		out = append(out, t)
	}

	if unresolved > 0 || collisions > 0 {
		log.Warn("locations not carried into fusion",
			zap.Int("unresolved", unresolved),
			zap.Int("tract_collisions", collisions),
		)
	}
	if len(out) == 0 && len(metrics) > 0 {
		log.Warn("no heat location resolved to a tract, source excluded from fusion")
		return nil
	}
	log.Info("heat metrics reconciled", zap.Int("tracts", len(out)))
	return out
}

// AirByTract resolves site-keyed pollutant metrics to tracts via the
// crosswalk and pivots them to one row per tract. Site keys carry no
// coordinates, so there is no spatial fallback. Returns nil when nothing
// resolves.
func AirByTract(metrics []aggregate.PollutantMetrics, cw *Crosswalk) []TractAir {
	log := zap.L().With(zap.String("source", "air"))

	byTract := make(map[string]*TractAir)
	var order []string
	var unresolved int

	for _, m := range metrics {
		g := cw.Resolve(m.SiteKey)
		if g == "" {
			unresolved++
			continue
		}

		t, ok := byTract[g]
		if !ok {
			t = &TractAir{GEOID: g}
			byTract[g] = t
			order = append(order, g)
		}

		switch m.Pollutant {
		case aggregate.PollutantPM25:
			if t.PM25Mean == nil {
				t.PM25Mean = m.Mean
				t.PM25P95 = m.P95
			}
		case aggregate.PollutantOzone:
			if t.OzoneMean == nil {
				t.OzoneMean = m.Mean
				high := float64(m.HighDays)
				t.OzoneHighDays = &high
			}
		}
	}

	if unresolved > 0 {
		log.Warn("sites without crosswalk mappings dropped", zap.Int("unresolved", unresolved))
	}
	if len(order) == 0 && len(metrics) > 0 {
		log.Warn("no monitoring site resolved to a tract, source excluded from fusion")
		return nil
	}

	out := make([]TractAir, 0, len(order))
	for _, g := range order {
		out = append(out, *byTract[g])
	}
	log.Info("air metrics reconciled", zap.Int("tracts", len(out)))
	return out
}
