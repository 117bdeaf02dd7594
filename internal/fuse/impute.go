package fuse

import (
	"math"
	"sort"

	"go.uber.org/zap"
)

// ImputeReport describes what imputation did per column.
type ImputeReport struct {
	// Filled maps column name to the number of nils replaced by the column
	// median.
	Filled map[string]int
	// Absent lists columns with no values at all. Those stay nil; no source
	// contributed them, so there is no median to fill with.
	Absent []string
}

// Impute fills each feature column's nil values with that column's own
// median, computed over this run's rows. After Impute, a column is either
// fully populated or wholly absent.
func Impute(rows []FeatureRow) ImputeReport {
	report := ImputeReport{Filled: make(map[string]int)}

	for _, col := range Columns() {
		vals := make([]float64, 0, len(rows))
		for i := range rows {
			if v := col.Get(&rows[i]); v != nil {
				vals = append(vals, *v)
			}
		}

		if len(vals) == 0 {
			report.Absent = append(report.Absent, col.Name)
			continue
		}
		if len(vals) == len(rows) {
			continue
		}

		med := medianOf(vals)
		for i := range rows {
			if col.Get(&rows[i]) == nil {
				v := med
				col.Set(&rows[i], &v)
				report.Filled[col.Name]++
			}
		}
	}

	if len(report.Filled) > 0 || len(report.Absent) > 0 {
		zap.L().Info("missing features imputed",
			zap.Int("columns_filled", len(report.Filled)),
			zap.Strings("columns_absent", report.Absent),
		)
	}
	return report
}

func medianOf(xs []float64) float64 {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	pos := 0.5 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}
