package extract

import (
	"context"
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/climateburdentract/cbi-pipeline/internal/geoid"
	"github.com/climateburdentract/cbi-pipeline/internal/table"
)

// TractGeometry is one census tract boundary with its identifying attributes.
type TractGeometry struct {
	GEOID    string
	StateFP  string
	CountyFP string
	TractCE  string
	Name     string
	ALand    *float64
	AWater   *float64
	Geom     *geom.MultiPolygon
}

// Tracts reads every TIGER tract shapefile under shpDir and returns one
// geometry per tract. Duplicate GEOIDs keep the first record seen. Records
// with no resolvable GEOID or no usable polygon are skipped with a warning
// count.
func Tracts(ctx context.Context, shpDir string) ([]TractGeometry, error) {
	log := zap.L().With(zap.String("source", "tiger"))

	shps, err := filepath.Glob(filepath.Join(shpDir, "*.shp"))
	if err != nil {
		return nil, eris.Wrap(err, "extract: glob tract shapefiles")
	}
	if len(shps) == 0 {
		log.Warn("no tract shapefiles found, treating source as absent", zap.String("dir", shpDir))
		return nil, nil
	}

	seen := make(map[string]bool)
	var out []TractGeometry
	var skipped, dupes int

	for _, path := range shps {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "extract: tiger cancelled")
		}

		tracts, n, err := readTractShapefile(path)
		if err != nil {
			log.Warn("unreadable shapefile, skipping", zap.String("file", path), zap.Error(err))
			continue
		}
		skipped += n

		for _, t := range tracts {
			if seen[t.GEOID] {
				dupes++
				continue
			}
			seen[t.GEOID] = true
			out = append(out, t)
		}
		log.Info("shapefile loaded", zap.String("file", filepath.Base(path)), zap.Int("tracts", len(tracts)))
	}

	if skipped > 0 || dupes > 0 {
		log.Warn("tract records dropped", zap.Int("skipped", skipped), zap.Int("duplicates", dupes))
	}
	log.Info("tract geometries extracted", zap.Int("tracts", len(out)))
	return out, nil
}

func readTractShapefile(path string) ([]TractGeometry, int, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "extract: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	attr := func(name string) string {
		idx, ok := fieldIdx[name]
		if !ok {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	var out []TractGeometry
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		t := TractGeometry{
			StateFP:  attr("statefp"),
			CountyFP: attr("countyfp"),
			TractCE:  attr("tractce"),
			Name:     attr("namelsad"),
			ALand:    parseFloatPtr(attr("aland")),
			AWater:   parseFloatPtr(attr("awater")),
		}
		if t.Name == "" {
			t.Name = attr("name")
		}

		g, err := geoid.Normalize(attr("geoid"))
		if err != nil {
			g, err = geoid.FromParts(t.StateFP, t.CountyFP, t.TractCE)
		}
		if err != nil {
			skipped++
			continue
		}
		t.GEOID = g

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		t.Geom = shapeToMultiPolygon(poly)
		if t.Geom == nil {
			skipped++
			continue
		}

		out = append(out, t)
	}

	return out, skipped, nil
}

var tractHeader = []string{"geoid", "statefp", "countyfp", "tractce", "name", "aland", "awater", "geom_ewkb"}

// WriteTracts writes tract geometries to path, geometry as hex EWKB.
func WriteTracts(path string, tracts []TractGeometry) error {
	rows := make([][]string, 0, len(tracts))
	for _, t := range tracts {
		data, err := ewkb.Marshal(t.Geom, ewkb.NDR)
		if err != nil {
			return eris.Wrapf(err, "extract: encode tract %s", t.GEOID)
		}
		rows = append(rows, []string{
			t.GEOID, t.StateFP, t.CountyFP, t.TractCE, t.Name,
			table.FormatFloat(t.ALand), table.FormatFloat(t.AWater),
			hex.EncodeToString(data),
		})
	}
	return table.Write(path, tractHeader, rows)
}

// ReadTracts reads a tract table written by WriteTracts. A missing file
// yields (nil, nil).
func ReadTracts(path string) ([]TractGeometry, error) {
	if !table.Exists(path) {
		return nil, nil
	}
	header, rows, err := table.Read(path)
	if err != nil {
		return nil, err
	}
	colIdx := mapColumns(header)

	out := make([]TractGeometry, 0, len(rows))
	for _, row := range rows {
		t := TractGeometry{
			GEOID:    getCol(row, colIdx, "geoid"),
			StateFP:  getCol(row, colIdx, "statefp"),
			CountyFP: getCol(row, colIdx, "countyfp"),
			TractCE:  getCol(row, colIdx, "tractce"),
			Name:     getCol(row, colIdx, "name"),
			ALand:    table.ParseFloat(getCol(row, colIdx, "aland")),
			AWater:   table.ParseFloat(getCol(row, colIdx, "awater")),
		}

		data, err := hex.DecodeString(getCol(row, colIdx, "geom_ewkb"))
		if err != nil {
			return nil, eris.Wrapf(err, "extract: decode tract %s geometry", t.GEOID)
		}
		g, err := ewkb.Unmarshal(data)
		if err != nil {
			return nil, eris.Wrapf(err, "extract: unmarshal tract %s geometry", t.GEOID)
		}
		mp, ok := g.(*geom.MultiPolygon)
		if !ok {
			return nil, eris.Errorf("extract: tract %s geometry is %T, want MultiPolygon", t.GEOID, g)
		}
		t.Geom = mp

		out = append(out, t)
	}
	return out, nil
}
