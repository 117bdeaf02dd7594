// Package aggregate collapses per-source observations into summary metrics
// keyed by each source's native location identifier. Statistics over an empty
// sample are nil, never zero.
package aggregate

import (
	"math"
	"sort"
)

func mean(xs []float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	m := sum / float64(len(xs))
	return &m
}

func median(xs []float64) *float64 {
	return quantile(xs, 0.5)
}

// quantile computes the q-th quantile with linear interpolation between
// order statistics.
func quantile(xs []float64, q float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return &sorted[lo]
	}
	frac := pos - float64(lo)
	v := sorted[lo] + frac*(sorted[hi]-sorted[lo])
	return &v
}

// stddev is the population standard deviation.
func stddev(xs []float64) *float64 {
	m := mean(xs)
	if m == nil {
		return nil
	}
	var ss float64
	for _, x := range xs {
		d := x - *m
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(len(xs)))
	return &sd
}

func countAbove(xs []float64, threshold float64) int {
	var n int
	for _, x := range xs {
		if x > threshold {
			n++
		}
	}
	return n
}
