// Package reconcile maps each source's native location key onto the
// canonical 11-digit tract GEOID. Tract-keyed sources pass through GEOID
// normalization; proxy-keyed sources resolve through an explicit crosswalk
// table or a point-in-polygon lookup against extracted tract boundaries.
package reconcile

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/climateburdentract/cbi-pipeline/internal/fetcher"
	"github.com/climateburdentract/cbi-pipeline/internal/geoid"
)

// Crosswalk maps source location identifiers to tract GEOIDs.
type Crosswalk struct {
	byLocation map[string]string
}

// LoadCrosswalk reads a two-column CSV (location_id, geoid) from path. A
// missing file yields an empty crosswalk, not an error: proxy-keyed sources
// then fall back to spatial resolution or are excluded.
func LoadCrosswalk(path string) (*Crosswalk, error) {
	cw := &Crosswalk{byLocation: make(map[string]string)}
	if path == "" {
		return cw, nil
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		zap.L().Warn("no crosswalk file, proxy keys resolve spatially or not at all", zap.String("path", path))
		return cw, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: open crosswalk %s", path)
	}
	defer func() { _ = f.Close() }()

	rows, err := fetcher.ReadCSV(f, fetcher.CSVOptions{TrimSpace: true})
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: parse crosswalk %s", path)
	}

	var bad int
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		g, err := geoid.Normalize(row[1])
		if err != nil {
			bad++
			continue
		}
		cw.byLocation[row[0]] = g
	}
	if bad > 0 {
		zap.L().Warn("crosswalk rows with invalid GEOIDs dropped", zap.Int("rows", bad))
	}
	zap.L().Info("crosswalk loaded", zap.Int("mappings", len(cw.byLocation)))
	return cw, nil
}

// Resolve returns the GEOID mapped to locationID, or "" when unmapped.
func (c *Crosswalk) Resolve(locationID string) string {
	return c.byLocation[locationID]
}

// Len reports the number of mappings.
func (c *Crosswalk) Len() int {
	return len(c.byLocation)
}
