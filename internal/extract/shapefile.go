package extract

import (
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// shapeToMultiPolygon converts a shapefile Polygon record to a
// geom.MultiPolygon with SRID 4326. TIGER publishes tract boundaries in
// NAD83, which is close enough to WGS84 at tract scale that no reprojection
// is applied. Returns nil for nil, empty, or malformed shapes.
func shapeToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	// Shapefile ring convention: shell rings wind clockwise, hole rings wind
	// counter-clockwise and follow the shell they cut out.
	var cur *geom.Polygon
	flush := func() {
		if cur == nil || cur.NumLinearRings() == 0 {
			return
		}
		if err := mp.Push(cur); err != nil {
			zap.L().Debug("skipping malformed tract part", zap.Error(err))
		}
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		if cur == nil || ringClockwise(flat) {
			flush()
			cur = geom.NewPolygon(geom.XY)
		}
		if err := cur.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("skipping malformed tract ring", zap.Int32("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// ringClockwise reports whether a flat XY ring winds clockwise, by the sign
// of its shoelace area.
func ringClockwise(flat []float64) bool {
	var sum float64
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += (flat[2*j] - flat[2*i]) * (flat[2*j+1] + flat[2*i+1])
	}
	return sum > 0
}
