package extract

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/climateburdentract/cbi-pipeline/internal/fetcher"
	"github.com/climateburdentract/cbi-pipeline/internal/geoid"
	"github.com/climateburdentract/cbi-pipeline/internal/table"
)

// SVIVariables lists the 15 CDC SVI percentile variables plus the 4 theme
// percentiles, in canonical column order. All are normalized to 0-1.
var SVIVariables = []string{
	// Socioeconomic status
	"epl_pov", "epl_unemp", "epl_pci", "epl_nohsdp",
	// Household composition & disability
	"epl_age65", "epl_age17", "epl_disabl", "epl_sngpnt",
	// Minority status & language
	"epl_minrty", "epl_limeng",
	// Housing type & transportation
	"epl_munit", "epl_mobile", "epl_crowd", "epl_noveh", "epl_groupq",
	// Theme percentiles
	"ep_socioec", "ep_hshpd", "ep_minrty", "ep_houshtran",
}

// SVIRow is one tract's normalized vulnerability variables. Values aligns
// with SVIVariables; a nil entry means the variable was absent or outside the
// valid 0-100 percentile range in the source.
type SVIRow struct {
	GEOID     string
	Values    []*float64
	Composite *float64
}

// SVI reads every SVI CSV under csvDir, concatenates them without
// deduplication, and normalizes each percentile variable from 0-100 to 0-1.
// Values outside [0, 100] (sentinel codes like -999) become nil. The row
// composite is the mean of the present normalized variables.
func SVI(ctx context.Context, csvDir string) ([]SVIRow, error) {
	log := zap.L().With(zap.String("source", "svi"))

	csvs, err := filepath.Glob(filepath.Join(csvDir, "*.csv"))
	if err != nil {
		return nil, eris.Wrap(err, "extract: glob svi csvs")
	}
	if len(csvs) == 0 {
		log.Warn("no SVI CSV files found, treating source as absent", zap.String("dir", csvDir))
		return nil, nil
	}

	var out []SVIRow
	for _, path := range csvs {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "extract: svi cancelled")
		}

		f, err := os.Open(path)
		if err != nil {
			log.Warn("cannot open SVI CSV, skipping", zap.String("file", path), zap.Error(err))
			continue
		}
		rows, err := fetcher.ReadCSV(f, fetcher.CSVOptions{TrimSpace: true, LazyQuotes: true})
		_ = f.Close()
		if err != nil {
			log.Warn("unparseable SVI CSV, skipping", zap.String("file", path), zap.Error(err))
			continue
		}
		if len(rows) < 2 {
			continue
		}

		colIdx := mapColumns(rows[0])
		for _, row := range rows[1:] {
			g, err := geoid.Normalize(firstCol(row, colIdx, "geoid", "fips"))
			if err != nil {
				continue
			}
			out = append(out, normalizeSVIRow(g, row, colIdx))
		}
		log.Info("SVI file loaded", zap.String("file", filepath.Base(path)), zap.Int("rows", len(rows)-1))
	}

	log.Info("SVI rows extracted", zap.Int("rows", len(out)))
	return out, nil
}

func normalizeSVIRow(g string, row []string, colIdx map[string]int) SVIRow {
	values := make([]*float64, len(SVIVariables))
	var sum float64
	var n int

	for i, v := range SVIVariables {
		raw := parseFloatPtr(getCol(row, colIdx, v))
		if raw == nil || *raw < 0 || *raw > 100 {
			continue
		}
		norm := *raw / 100.0
		values[i] = &norm
		sum += norm
		n++
	}

	r := SVIRow{GEOID: g, Values: values}
	if n > 0 {
		comp := sum / float64(n)
		r.Composite = &comp
	}
	return r
}

// sviHeader is the interim table header: geoid, one column per variable with
// the svi_ prefix, then the composite.
func sviHeader() []string {
	h := make([]string, 0, len(SVIVariables)+2)
	h = append(h, "geoid")
	for _, v := range SVIVariables {
		h = append(h, "svi_"+v)
	}
	return append(h, "svi_composite")
}

// WriteSVI writes the normalized SVI table to path.
func WriteSVI(path string, rows []SVIRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		row := make([]string, 0, len(SVIVariables)+2)
		row = append(row, r.GEOID)
		for _, v := range r.Values {
			row = append(row, table.FormatFloat(v))
		}
		row = append(row, table.FormatFloat(r.Composite))
		out = append(out, row)
	}
	return table.Write(path, sviHeader(), out)
}

// ReadSVI reads a normalized SVI table written by WriteSVI. A missing file
// yields (nil, nil): the absent-source contract.
func ReadSVI(path string) ([]SVIRow, error) {
	if !table.Exists(path) {
		return nil, nil
	}
	header, rows, err := table.Read(path)
	if err != nil {
		return nil, err
	}
	colIdx := mapColumns(header)

	out := make([]SVIRow, 0, len(rows))
	for _, row := range rows {
		r := SVIRow{
			GEOID:     getCol(row, colIdx, "geoid"),
			Values:    make([]*float64, len(SVIVariables)),
			Composite: table.ParseFloat(getCol(row, colIdx, "svi_composite")),
		}
		for i, v := range SVIVariables {
			r.Values[i] = table.ParseFloat(getCol(row, colIdx, "svi_"+v))
		}
		out = append(out, r)
	}
	return out, nil
}
