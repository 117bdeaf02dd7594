package aggregate

import (
	"sort"

	"go.uber.org/zap"

	"github.com/climateburdentract/cbi-pipeline/internal/extract"
	"github.com/climateburdentract/cbi-pipeline/internal/table"
)

// SectorStats holds per-sector distribution statistics for one ESG score
// component. Sector-level data has no tract mapping yet, so these stats are
// written as a standalone artifact and never join the fused feature table.
type SectorStats struct {
	Sector    string
	Component string
	Mean      *float64
	Median    *float64
	StdDev    *float64
	Count     int
}

// ESGBySector groups company ESG records by sector and computes
// mean/median/stddev per score component. Records without a sector fall
// under "unknown".
func ESGBySector(records []extract.ESGRecord) []SectorStats {
	bySector := make(map[string][]extract.ESGRecord)
	for _, r := range records {
		sector := r.Sector
		if sector == "" {
			sector = "unknown"
		}
		bySector[sector] = append(bySector[sector], r)
	}

	sectors := make([]string, 0, len(bySector))
	for s := range bySector {
		sectors = append(sectors, s)
	}
	sort.Strings(sectors)

	var out []SectorStats
	for _, sector := range sectors {
		group := bySector[sector]
		for i, component := range extract.ESGComponents {
			vals := make([]float64, 0, len(group))
			for _, r := range group {
				if v := r.Scores[i]; v != nil {
					vals = append(vals, *v)
				}
			}
			out = append(out, SectorStats{
				Sector:    sector,
				Component: component,
				Mean:      mean(vals),
				Median:    median(vals),
				StdDev:    stddev(vals),
				Count:     len(vals),
			})
		}
	}

	zap.L().Info("esg sector stats aggregated",
		zap.Int("companies", len(records)),
		zap.Int("sectors", len(sectors)),
	)
	return out
}

var esgSectorHeader = []string{"sector", "component", "mean", "median", "stddev", "count"}

// WriteESGBySector writes sector statistics to path.
func WriteESGBySector(path string, stats []SectorStats) error {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		count := s.Count
		rows = append(rows, []string{
			s.Sector, s.Component,
			table.FormatFloat(s.Mean), table.FormatFloat(s.Median), table.FormatFloat(s.StdDev),
			table.FormatInt(&count),
		})
	}
	return table.Write(path, esgSectorHeader, rows)
}
