package reconcile

import (
	"github.com/twpayne/go-geom"

	"github.com/climateburdentract/cbi-pipeline/internal/extract"
)

// TractLocator resolves a longitude/latitude point to the GEOID of the tract
// polygon containing it. A bounding-box prefilter narrows the candidate set
// before the exact even-odd ring test.
type TractLocator struct {
	tracts []locatorEntry
}

type locatorEntry struct {
	geoid  string
	bounds *geom.Bounds
	geom   *geom.MultiPolygon
}

// NewTractLocator builds a locator over extracted tract geometries. Tracts
// without a geometry are ignored.
func NewTractLocator(tracts []extract.TractGeometry) *TractLocator {
	l := &TractLocator{tracts: make([]locatorEntry, 0, len(tracts))}
	for _, t := range tracts {
		if t.Geom == nil {
			continue
		}
		l.tracts = append(l.tracts, locatorEntry{
			geoid:  t.GEOID,
			bounds: t.Geom.Bounds(),
			geom:   t.Geom,
		})
	}
	return l
}

// Len reports the number of indexed tract polygons.
func (l *TractLocator) Len() int {
	return len(l.tracts)
}

// Locate returns the GEOID of the first tract whose polygon contains the
// point, or ("", false) when no tract matches.
func (l *TractLocator) Locate(lon, lat float64) (string, bool) {
	for _, e := range l.tracts {
		if !e.bounds.OverlapsPoint(geom.XY, geom.Coord{lon, lat}) {
			continue
		}
		if multiPolygonContains(e.geom, lon, lat) {
			return e.geoid, true
		}
	}
	return "", false
}

// multiPolygonContains applies the even-odd rule across every ring of every
// member polygon. A point inside a hole ring counts as outside.
func multiPolygonContains(mp *geom.MultiPolygon, lon, lat float64) bool {
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		crossings := 0
		for r := 0; r < p.NumLinearRings(); r++ {
			crossings += ringCrossings(p.LinearRing(r), lon, lat)
		}
		if crossings%2 == 1 {
			return true
		}
	}
	return false
}

// ringCrossings counts crossings of a rightward ray from the point with the
// ring's edges.
func ringCrossings(ring *geom.LinearRing, lon, lat float64) int {
	coords := ring.FlatCoords()
	stride := ring.Stride()
	n := len(coords) / stride

	crossings := 0
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		x1, y1 := coords[i*stride], coords[i*stride+1]
		x2, y2 := coords[j*stride], coords[j*stride+1]

		if (y1 > lat) == (y2 > lat) {
			continue
		}
		xCross := x1 + (lat-y1)/(y2-y1)*(x2-x1)
		if xCross > lon {
			crossings++
		}
	}
	return crossings
}
