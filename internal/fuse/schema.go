// Package fuse joins the reconciled per-source tables into one feature row
// per tract and fills remaining gaps by per-column median imputation.
package fuse

import "github.com/climateburdentract/cbi-pipeline/internal/extract"

// Feature column domains. Heat, PM2.5, and ozone columns together form the
// climate burden inputs; SVI columns form the vulnerability inputs.
const (
	DomainSVI   = "svi"
	DomainHeat  = "heat"
	DomainPM25  = "pm25"
	DomainOzone = "ozone"
)

// FeatureRow is one tract's fused features. Every feature column is declared
// up front as an optional field; a nil value means the owning source
// contributed nothing for the tract (or nothing at all). The four score
// fields are filled by the scorer, never by fusion.
type FeatureRow struct {
	GEOID string

	// Social vulnerability, aligned with extract.SVIVariables.
	SVI          []*float64
	SVIComposite *float64

	HeatAnnualMean          *float64
	HeatDaysAbove90F        *float64
	HeatExtremePercentile95 *float64

	PM25Mean      *float64
	PM25P95       *float64
	OzoneMean     *float64
	OzoneHighDays *float64

	ClimateBurdenScore           *float64
	VulnerabilityScore           *float64
	ClimateBurdenIndex           *float64
	ClimateBurdenIndexNormalized *float64
}

// NewFeatureRow returns a row with the SVI slice sized to the variable list.
func NewFeatureRow(geoid string) FeatureRow {
	return FeatureRow{GEOID: geoid, SVI: make([]*float64, len(extract.SVIVariables))}
}

// Column is one feature column's registry entry. Get and Set give generic
// access so imputation, scoring, and table IO can iterate the schema without
// reflection.
type Column struct {
	Name   string
	Domain string
	Get    func(*FeatureRow) *float64
	Set    func(*FeatureRow, *float64)
}

// Columns returns the full feature column registry in stable table order.
func Columns() []Column {
	cols := make([]Column, 0, len(extract.SVIVariables)+8)

	for i, v := range extract.SVIVariables {
		i := i
		cols = append(cols, Column{
			Name:   "svi_" + v,
			Domain: DomainSVI,
			Get:    func(r *FeatureRow) *float64 { return r.SVI[i] },
			Set:    func(r *FeatureRow, v *float64) { r.SVI[i] = v },
		})
	}
	cols = append(cols,
		Column{
			Name:   "svi_composite",
			Domain: DomainSVI,
			Get:    func(r *FeatureRow) *float64 { return r.SVIComposite },
			Set:    func(r *FeatureRow, v *float64) { r.SVIComposite = v },
		},
		Column{
			Name:   "heat_annual_mean",
			Domain: DomainHeat,
			Get:    func(r *FeatureRow) *float64 { return r.HeatAnnualMean },
			Set:    func(r *FeatureRow, v *float64) { r.HeatAnnualMean = v },
		},
		Column{
			Name:   "heat_days_above_90f",
			Domain: DomainHeat,
			Get:    func(r *FeatureRow) *float64 { return r.HeatDaysAbove90F },
			Set:    func(r *FeatureRow, v *float64) { r.HeatDaysAbove90F = v },
		},
		Column{
			Name:   "heat_extreme_percentile_95",
			Domain: DomainHeat,
			Get:    func(r *FeatureRow) *float64 { return r.HeatExtremePercentile95 },
			Set:    func(r *FeatureRow, v *float64) { r.HeatExtremePercentile95 = v },
		},
		Column{
			Name:   "pm25_mean",
			Domain: DomainPM25,
			Get:    func(r *FeatureRow) *float64 { return r.PM25Mean },
			Set:    func(r *FeatureRow, v *float64) { r.PM25Mean = v },
		},
		Column{
			Name:   "pm25_95",
			Domain: DomainPM25,
			Get:    func(r *FeatureRow) *float64 { return r.PM25P95 },
			Set:    func(r *FeatureRow, v *float64) { r.PM25P95 = v },
		},
		Column{
			Name:   "ozone_mean",
			Domain: DomainOzone,
			Get:    func(r *FeatureRow) *float64 { return r.OzoneMean },
			Set:    func(r *FeatureRow, v *float64) { r.OzoneMean = v },
		},
		Column{
			Name:   "ozone_high_days",
			Domain: DomainOzone,
			Get:    func(r *FeatureRow) *float64 { return r.OzoneHighDays },
			Set:    func(r *FeatureRow, v *float64) { r.OzoneHighDays = v },
		},
	)
	return cols
}

// ClimateDomain reports whether a column domain contributes to the climate
// burden score.
func ClimateDomain(domain string) bool {
	return domain == DomainHeat || domain == DomainPM25 || domain == DomainOzone
}
