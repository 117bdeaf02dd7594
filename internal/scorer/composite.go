// Package scorer derives the composite burden and vulnerability scores over
// a fused feature table. All arithmetic is deterministic single-pass over
// the full population.
package scorer

import (
	"go.uber.org/zap"

	"github.com/climateburdentract/cbi-pipeline/internal/fuse"
)

// defaultScore is used when a factor has no contributing columns at all.
const defaultScore = 0.5

// Score fills the four composite columns in place:
//
//	climate_burden_score          mean of the min-max normalized climate
//	                              columns (heat, pm25, ozone); 0.5 when no
//	                              climate column is populated
//	vulnerability_score           svi_composite, else mean of the SVI
//	                              columns, else 0.5
//	climate_burden_index          burden x vulnerability, bounded 0-1
//	climate_burden_index_normalized  min-max rescale of the index to 0-100
//	                              across all rows; constant population -> 50
//
// Climate columns carry physical units (degrees F, ppb, day counts), so each
// is min-max normalized across the population before averaging to keep the
// burden score in [0, 1].
func Score(rows []fuse.FeatureRow) {
	if len(rows) == 0 {
		return
	}

	cols := fuse.Columns()
	climateNorm := normalizeClimateColumns(rows, cols)

	for i := range rows {
		r := &rows[i]

		burden := meanOrDefault(climateNorm[i])
		r.ClimateBurdenScore = &burden

		vuln := vulnerability(r, cols)
		r.VulnerabilityScore = &vuln

		index := burden * vuln
		r.ClimateBurdenIndex = &index
	}

	normalizeIndex(rows)

	zap.L().Info("composite scores computed", zap.Int("tracts", len(rows)))
}

// normalizeClimateColumns returns, per row, the min-max normalized values of
// every populated climate column. A column whose population min equals its
// max contributes 0 for every row.
func normalizeClimateColumns(rows []fuse.FeatureRow, cols []fuse.Column) [][]float64 {
	out := make([][]float64, len(rows))

	for _, col := range cols {
		if !fuse.ClimateDomain(col.Domain) {
			continue
		}

		min, max, any := columnRange(rows, col)
		if !any {
			continue
		}

		for i := range rows {
			v := col.Get(&rows[i])
			if v == nil {
				continue
			}
			norm := 0.0
			if max > min {
				norm = (*v - min) / (max - min)
			}
			out[i] = append(out[i], norm)
		}
	}
	return out
}

func columnRange(rows []fuse.FeatureRow, col fuse.Column) (min, max float64, any bool) {
	for i := range rows {
		v := col.Get(&rows[i])
		if v == nil {
			continue
		}
		if !any || *v < min {
			min = *v
		}
		if !any || *v > max {
			max = *v
		}
		any = true
	}
	return min, max, any
}

func vulnerability(r *fuse.FeatureRow, cols []fuse.Column) float64 {
	if r.SVIComposite != nil {
		return *r.SVIComposite
	}

	var sum float64
	var n int
	for _, col := range cols {
		if col.Domain != fuse.DomainSVI {
			continue
		}
		if v := col.Get(r); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return defaultScore
	}
	return sum / float64(n)
}

func meanOrDefault(xs []float64) float64 {
	if len(xs) == 0 {
		return defaultScore
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// normalizeIndex rescales climate_burden_index to 0-100. A degenerate
// population where every index is equal maps every row to 50.
func normalizeIndex(rows []fuse.FeatureRow) {
	min, max := *rows[0].ClimateBurdenIndex, *rows[0].ClimateBurdenIndex
	for i := range rows {
		v := *rows[i].ClimateBurdenIndex
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	for i := range rows {
		var norm float64
		if max > min {
			norm = (*rows[i].ClimateBurdenIndex - min) / (max - min) * 100
		} else {
			norm = 50
		}
		rows[i].ClimateBurdenIndexNormalized = &norm
	}
}
