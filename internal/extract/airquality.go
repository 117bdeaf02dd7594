package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/climateburdentract/cbi-pipeline/internal/fetcher"
)

// AirQualityObs is one pollutant reading keyed by a monitoring-site code.
type AirQualityObs struct {
	SiteKey     string
	Parameter   string
	Measurement *float64
	Date        string
}

// AirQuality reads every AQS ZIP archive under zipDir and returns canonical
// pollutant observations. Each archive contributes only its first CSV member;
// archives typically bundle one daily-summary table, and merging across
// members is deliberately not attempted. Corrupt archives are skipped so
// siblings still load.
//
// The site key is zero-padded state(2)+county(3)+site(4) when those columns
// exist, else a raw site identifier, else "unknown".
func AirQuality(ctx context.Context, zipDir, scratchDir string) ([]AirQualityObs, error) {
	log := zap.L().With(zap.String("source", "air_quality"))

	zips, err := filepath.Glob(filepath.Join(zipDir, "*.zip"))
	if err != nil {
		return nil, eris.Wrap(err, "extract: glob aqs zips")
	}
	if len(zips) == 0 {
		log.Warn("no AQS archives found, treating source as absent", zap.String("dir", zipDir))
		return nil, nil
	}

	var obs []AirQualityObs
	for _, zipPath := range zips {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "extract: air quality cancelled")
		}

		rows, ok := firstCSVFromZip(zipPath, scratchDir, log)
		if !ok {
			continue
		}
		obs = append(obs, parseAQSRows(rows)...)
	}

	log.Info("air quality observations extracted",
		zap.Int("archives", len(zips)),
		zap.Int("rows", len(obs)),
	)
	return obs, nil
}

// firstCSVFromZip extracts an archive and parses its first CSV member.
// Any failure is a per-file soft error: logged, archive skipped.
func firstCSVFromZip(zipPath, scratchDir string, log *zap.Logger) ([][]string, bool) {
	dest := filepath.Join(scratchDir, strings.TrimSuffix(filepath.Base(zipPath), ".zip"))
	files, err := fetcher.ExtractZIP(zipPath, dest)
	if err != nil {
		log.Warn("skipping corrupt archive", zap.String("archive", zipPath), zap.Error(err))
		return nil, false
	}

	csvPath := fetcher.FirstMatch(files, ".csv")
	if csvPath == "" {
		log.Warn("archive contains no CSV, skipping", zap.String("archive", zipPath))
		return nil, false
	}

	f, err := os.Open(csvPath)
	if err != nil {
		log.Warn("cannot open extracted CSV, skipping", zap.String("file", csvPath), zap.Error(err))
		return nil, false
	}
	defer f.Close() //nolint:errcheck

	rows, err := fetcher.ReadCSV(f, fetcher.CSVOptions{TrimSpace: true, LazyQuotes: true})
	if err != nil {
		log.Warn("unparseable CSV, skipping", zap.String("file", csvPath), zap.Error(err))
		return nil, false
	}
	if len(rows) < 2 {
		return nil, false
	}
	return rows, true
}

func parseAQSRows(rows [][]string) []AirQualityObs {
	colIdx := mapColumns(rows[0])

	haveSiteCodes := hasCol(colIdx, "state_code") && hasCol(colIdx, "county_code") && hasCol(colIdx, "site_num")

	obs := make([]AirQualityObs, 0, len(rows)-1)
	for _, row := range rows[1:] {
		var key string
		switch {
		case haveSiteCodes:
			key = zeroPad(getCol(row, colIdx, "state_code"), 2) +
				zeroPad(getCol(row, colIdx, "county_code"), 3) +
				zeroPad(getCol(row, colIdx, "site_num"), 4)
		default:
			key = firstCol(row, colIdx, "site_id")
			if key == "" {
				key = unknownLocation
			}
		}

		param := strings.ToLower(firstCol(row, colIdx, "parameter_name", "pollutant"))
		if param == "" {
			param = "unknown"
		}

		obs = append(obs, AirQualityObs{
			SiteKey:     key,
			Parameter:   param,
			Measurement: parseFloatPtr(firstCol(row, colIdx, "sample_measurement", "concentration")),
			Date:        firstCol(row, colIdx, "date_local", "datetime", "date"),
		})
	}
	return obs
}
