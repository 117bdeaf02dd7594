package aggregate

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/climateburdentract/cbi-pipeline/internal/extract"
	"github.com/climateburdentract/cbi-pipeline/internal/table"
)

// Pollutant classes recognised by parameter-name substring match.
const (
	PollutantPM25  = "pm25"
	PollutantOzone = "ozone"
)

var pm25Substrings = []string{"pm2.5", "pm 2.5", "fine"}
var ozoneSubstrings = []string{"ozone", "o3"}

// PollutantMetrics summarizes one monitoring site's readings for one
// pollutant class. P95 is set for PM2.5 only; HighDays counts ozone readings
// above 70 ppb and is zero for PM2.5.
type PollutantMetrics struct {
	SiteKey     string
	Pollutant   string
	Mean        *float64
	P95         *float64
	HighDays    int
	RecordCount int
}

// classifyParameter maps an AQS parameter name onto a pollutant class, or ""
// when the parameter is neither PM2.5 nor ozone.
func classifyParameter(name string) string {
	n := strings.ToLower(name)
	for _, s := range pm25Substrings {
		if strings.Contains(n, s) {
			return PollutantPM25
		}
	}
	for _, s := range ozoneSubstrings {
		if strings.Contains(n, s) {
			return PollutantOzone
		}
	}
	return ""
}

// Air groups air-quality observations by (site, pollutant class) and computes
// per-class statistics. Observations whose parameter matches neither class
// are dropped.
func Air(obs []extract.AirQualityObs) []PollutantMetrics {
	type groupKey struct {
		site      string
		pollutant string
	}
	groups := make(map[groupKey][]extract.AirQualityObs)
	for _, o := range obs {
		class := classifyParameter(o.Parameter)
		if class == "" {
			continue
		}
		k := groupKey{site: o.SiteKey, pollutant: class}
		groups[k] = append(groups[k], o)
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].site != keys[j].site {
			return keys[i].site < keys[j].site
		}
		return keys[i].pollutant < keys[j].pollutant
	})

	out := make([]PollutantMetrics, 0, len(keys))
	for _, k := range keys {
		group := groups[k]

		vals := make([]float64, 0, len(group))
		for _, o := range group {
			if o.Measurement != nil {
				vals = append(vals, *o.Measurement)
			}
		}

		m := PollutantMetrics{
			SiteKey:     k.site,
			Pollutant:   k.pollutant,
			Mean:        mean(vals),
			RecordCount: len(group),
		}
		switch k.pollutant {
		case PollutantPM25:
			m.P95 = quantile(vals, 0.95)
		case PollutantOzone:
			// Measurements are taken to be in ppb.
			m.HighDays = countAbove(vals, 70.0)
		}
		out = append(out, m)
	}

	zap.L().Info("air quality metrics aggregated",
		zap.Int("observations", len(obs)),
		zap.Int("site_pollutants", len(out)),
	)
	return out
}

var airHeader = []string{"site_key", "pollutant", "mean", "p95", "high_days", "record_count"}

// WriteAir writes pollutant metrics to the interim table at path.
func WriteAir(path string, metrics []PollutantMetrics) error {
	rows := make([][]string, 0, len(metrics))
	for _, m := range metrics {
		high, count := m.HighDays, m.RecordCount
		rows = append(rows, []string{
			m.SiteKey, m.Pollutant,
			table.FormatFloat(m.Mean), table.FormatFloat(m.P95),
			table.FormatInt(&high), table.FormatInt(&count),
		})
	}
	return table.Write(path, airHeader, rows)
}

// ReadAir reads an interim pollutant metrics table. A missing file yields
// (nil, nil).
func ReadAir(path string) ([]PollutantMetrics, error) {
	if !table.Exists(path) {
		return nil, nil
	}
	header, rows, err := table.Read(path)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	cell := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	out := make([]PollutantMetrics, 0, len(rows))
	for _, row := range rows {
		m := PollutantMetrics{
			SiteKey:   cell(row, "site_key"),
			Pollutant: cell(row, "pollutant"),
			Mean:      table.ParseFloat(cell(row, "mean")),
			P95:       table.ParseFloat(cell(row, "p95")),
		}
		if v := table.ParseInt(cell(row, "high_days")); v != nil {
			m.HighDays = *v
		}
		if v := table.ParseInt(cell(row, "record_count")); v != nil {
			m.RecordCount = *v
		}
		out = append(out, m)
	}
	return out, nil
}
