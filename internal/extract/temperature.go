// Package extract normalizes the five raw climate, vulnerability, geography,
// and ESG sources into canonical per-source tables. Every extractor treats a
// missing raw location as a soft "no data" result and only logs for
// structurally corrupt input, so a partial raw snapshot never fails a run.
package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/climateburdentract/cbi-pipeline/internal/fetcher"
)

// TemperatureObs is one raw temperature reading with its proxy location key.
type TemperatureObs struct {
	LocationID string
	City       string
	Latitude   float64
	Longitude  float64
	Date       string
	TempF      *float64
}

// unknownLocation is the literal fallback for records lacking city/lat/lon.
const unknownLocation = "unknown"

var cityFolder = cases.Fold()

// Temperature reads the city temperature CSV and returns canonical
// observations in Fahrenheit. The location key concatenates the city name
// with latitude and longitude rounded to 2 decimals; it is a heuristic proxy
// for a tract and must be reconciled before fusion.
//
// Celsius input is detected by column name (temperature / avg_temp), not by
// value inspection; a temp_f column is taken as already Fahrenheit.
func Temperature(ctx context.Context, csvPath string) ([]TemperatureObs, error) {
	log := zap.L().With(zap.String("source", "temperature"))

	f, err := os.Open(csvPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("temperature CSV not found, treating source as absent", zap.String("path", csvPath))
			return nil, nil
		}
		return nil, eris.Wrapf(err, "extract: open temperature csv %s", csvPath)
	}
	defer f.Close() //nolint:errcheck

	rows, err := fetcher.ReadCSV(f, fetcher.CSVOptions{TrimSpace: true, LazyQuotes: true})
	if err != nil {
		log.Error("temperature CSV unreadable, treating source as absent", zap.Error(err))
		return nil, nil
	}
	if len(rows) < 2 {
		log.Warn("temperature CSV has no data rows")
		return nil, nil
	}

	colIdx := mapColumns(rows[0])

	var tempCol string
	celsius := true
	switch {
	case hasCol(colIdx, "temp_f"):
		tempCol, celsius = "temp_f", false
	case hasCol(colIdx, "temperature"):
		tempCol = "temperature"
	case hasCol(colIdx, "avg_temp"):
		tempCol = "avg_temp"
	default:
		log.Error("no temperature column found, treating source as absent")
		return nil, nil
	}

	obs := make([]TemperatureObs, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "extract: temperature cancelled")
		}

		city := normalizeCity(getCol(row, colIdx, "city"))
		if city == "" {
			city = unknownLocation
		}
		lat := parseFloat64Or(getCol(row, colIdx, "latitude"), 0.0)
		lon := parseFloat64Or(getCol(row, colIdx, "longitude"), 0.0)

		tempF := parseFloatPtr(getCol(row, colIdx, tempCol))
		if tempF != nil && celsius {
			f := *tempF*9/5 + 32
			tempF = &f
		}

		obs = append(obs, TemperatureObs{
			LocationID: fmt.Sprintf("%s_%.2f_%.2f", city, lat, lon),
			City:       city,
			Latitude:   lat,
			Longitude:  lon,
			Date:       getCol(row, colIdx, "date"),
			TempF:      tempF,
		})
	}

	log.Info("temperature observations extracted", zap.Int("rows", len(obs)), zap.Bool("celsius_input", celsius))
	return obs, nil
}

// normalizeCity canonicalizes a city name for key building: NFC unicode
// normalization plus case folding, so "São Paulo" and "SÃO PAULO" share a key.
func normalizeCity(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return cityFolder.String(norm.NFC.String(s))
}
