package fuse

import (
	"github.com/climateburdentract/cbi-pipeline/internal/table"
)

var scoreColumns = []string{
	"climate_burden_score",
	"vulnerability_score",
	"climate_burden_index",
	"climate_burden_index_normalized",
}

func featuresHeader() []string {
	cols := Columns()
	h := make([]string, 0, len(cols)+len(scoreColumns)+1)
	h = append(h, "geoid")
	for _, c := range cols {
		h = append(h, c.Name)
	}
	return append(h, scoreColumns...)
}

// WriteFeatures writes the fused (and possibly scored) feature table to path.
func WriteFeatures(path string, rows []FeatureRow) error {
	cols := Columns()
	out := make([][]string, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		row := make([]string, 0, len(cols)+len(scoreColumns)+1)
		row = append(row, r.GEOID)
		for _, c := range cols {
			row = append(row, table.FormatFloat(c.Get(r)))
		}
		row = append(row,
			table.FormatFloat(r.ClimateBurdenScore),
			table.FormatFloat(r.VulnerabilityScore),
			table.FormatFloat(r.ClimateBurdenIndex),
			table.FormatFloat(r.ClimateBurdenIndexNormalized),
		)
		out = append(out, row)
	}
	return table.Write(path, featuresHeader(), out)
}

// ReadFeatures reads a feature table written by WriteFeatures. A missing
// file yields (nil, nil).
func ReadFeatures(path string) ([]FeatureRow, error) {
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

	cols := Columns()
	out := make([]FeatureRow, 0, len(rows))
	for _, row := range rows {
		r := NewFeatureRow(cell(row, "geoid"))
		for _, c := range cols {
			c.Set(&r, table.ParseFloat(cell(row, c.Name)))
		}
		r.ClimateBurdenScore = table.ParseFloat(cell(row, "climate_burden_score"))
		r.VulnerabilityScore = table.ParseFloat(cell(row, "vulnerability_score"))
		r.ClimateBurdenIndex = table.ParseFloat(cell(row, "climate_burden_index"))
		r.ClimateBurdenIndexNormalized = table.ParseFloat(cell(row, "climate_burden_index_normalized"))
		out = append(out, r)
	}
	return out, nil
}
