package aggregate

import (
	"sort"

	"go.uber.org/zap"

	"github.com/climateburdentract/cbi-pipeline/internal/extract"
	"github.com/climateburdentract/cbi-pipeline/internal/table"
)

// HeatMetrics summarizes temperature observations for one proxy location.
// Statistics are nil when every observation for the location failed to parse.
type HeatMetrics struct {
	LocationID  string
	City        string
	Latitude    float64
	Longitude   float64
	AnnualMean  *float64
	P95         *float64
	DaysAbove90 int
	RecordCount int
}

// Heat groups temperature observations by proxy location key and computes
// mean, 95th percentile, and days above 90F.
func Heat(obs []extract.TemperatureObs) []HeatMetrics {
	byLoc := make(map[string][]extract.TemperatureObs)
	for _, o := range obs {
		byLoc[o.LocationID] = append(byLoc[o.LocationID], o)
	}

	keys := make([]string, 0, len(byLoc))
	for k := range byLoc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]HeatMetrics, 0, len(keys))
	for _, k := range keys {
		group := byLoc[k]

		temps := make([]float64, 0, len(group))
		for _, o := range group {
			if o.TempF != nil {
				temps = append(temps, *o.TempF)
			}
		}

		out = append(out, HeatMetrics{
			LocationID:  k,
			City:        group[0].City,
			Latitude:    group[0].Latitude,
			Longitude:   group[0].Longitude,
			AnnualMean:  mean(temps),
			P95:         quantile(temps, 0.95),
			DaysAbove90: countAbove(temps, 90.0),
			RecordCount: len(group),
		})
	}

	zap.L().Info("heat metrics aggregated",
		zap.Int("observations", len(obs)),
		zap.Int("locations", len(out)),
	)
	return out
}

var heatHeader = []string{"location_id", "city", "latitude", "longitude", "annual_mean_f", "p95_f", "days_above_90f", "record_count"}

// WriteHeat writes heat metrics to the interim table at path.
func WriteHeat(path string, metrics []HeatMetrics) error {
	rows := make([][]string, 0, len(metrics))
	for _, m := range metrics {
		lat, lon := m.Latitude, m.Longitude
		days, count := m.DaysAbove90, m.RecordCount
		rows = append(rows, []string{
			m.LocationID, m.City,
			table.FormatFloat(&lat), table.FormatFloat(&lon),
			table.FormatFloat(m.AnnualMean), table.FormatFloat(m.P95),
			table.FormatInt(&days), table.FormatInt(&count),
		})
	}
	return table.Write(path, heatHeader, rows)
}

// ReadHeat reads an interim heat metrics table. A missing file yields
// (nil, nil).
func ReadHeat(path string) ([]HeatMetrics, error) {
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

	out := make([]HeatMetrics, 0, len(rows))
	for _, row := range rows {
		m := HeatMetrics{
			LocationID: cell(row, "location_id"),
			City:       cell(row, "city"),
			AnnualMean: table.ParseFloat(cell(row, "annual_mean_f")),
			P95:        table.ParseFloat(cell(row, "p95_f")),
		}
		if v := table.ParseInt(cell(row, "days_above_90f")); v != nil {
			m.DaysAbove90 = *v
		}
		if v := table.ParseInt(cell(row, "record_count")); v != nil {
			m.RecordCount = *v
		}
		if v := table.ParseFloat(cell(row, "latitude")); v != nil {
			m.Latitude = *v
		}
		if v := table.ParseFloat(cell(row, "longitude")); v != nil {
			m.Longitude = *v
		}
		out = append(out, m)
	}
	return out, nil
}
