package extract

import (
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeToMultiPolygon(t *testing.T) {
	t.Run("single ring square", func(t *testing.T) {
		p := &shp.Polygon{
			NumParts:  1,
			NumPoints: 5,
			Parts:     []int32{0},
			Points: []shp.Point{
				{X: -112.1, Y: 33.4}, {X: -112.1, Y: 33.5},
				{X: -112.0, Y: 33.5}, {X: -112.0, Y: 33.4},
				{X: -112.1, Y: 33.4},
			},
		}

		mp := shapeToMultiPolygon(p)
		require.NotNil(t, mp)
		assert.Equal(t, 4326, mp.SRID())
		assert.Equal(t, 1, mp.NumPolygons())
		assert.Equal(t, 5, mp.Polygon(0).LinearRing(0).NumCoords())
	})

	t.Run("two clockwise parts become two polygons", func(t *testing.T) {
		p := &shp.Polygon{
			NumParts:  2,
			NumPoints: 8,
			Parts:     []int32{0, 4},
			Points: []shp.Point{
				{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0},
				{X: 5, Y: 5}, {X: 6, Y: 6}, {X: 6, Y: 5}, {X: 5, Y: 5},
			},
		}

		mp := shapeToMultiPolygon(p)
		require.NotNil(t, mp)
		assert.Equal(t, 2, mp.NumPolygons())
	})

	t.Run("counter-clockwise part joins the shell as a hole", func(t *testing.T) {
		p := &shp.Polygon{
			NumParts:  2,
			NumPoints: 10,
			Parts:     []int32{0, 5},
			Points: []shp.Point{
				{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10},
				{X: 10, Y: 0}, {X: 0, Y: 0},
				{X: 4, Y: 4}, {X: 6, Y: 4}, {X: 6, Y: 6},
				{X: 4, Y: 6}, {X: 4, Y: 4},
			},
		}

		mp := shapeToMultiPolygon(p)
		require.NotNil(t, mp)
		require.Equal(t, 1, mp.NumPolygons())
		assert.Equal(t, 2, mp.Polygon(0).NumLinearRings())
	})

	t.Run("ring winding", func(t *testing.T) {
		shell := []float64{0, 0, 0, 10, 10, 10, 10, 0, 0, 0}
		hole := []float64{4, 4, 6, 4, 6, 6, 4, 6, 4, 4}
		assert.True(t, ringClockwise(shell))
		assert.False(t, ringClockwise(hole))
	})

	t.Run("nil and empty shapes yield nil", func(t *testing.T) {
		assert.Nil(t, shapeToMultiPolygon(nil))
		assert.Nil(t, shapeToMultiPolygon(&shp.Polygon{}))
	})
}
