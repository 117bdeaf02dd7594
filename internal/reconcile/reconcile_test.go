package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climateburdentract/cbi-pipeline/internal/aggregate"
	"github.com/climateburdentract/cbi-pipeline/internal/extract"
)

func f(v float64) *float64 { return &v }

func testCrosswalk(m map[string]string) *Crosswalk {
	return &Crosswalk{byLocation: m}
}

func TestHeatByTract(t *testing.T) {
	t.Run("crosswalk mapping wins over spatial lookup", func(t *testing.T) {
		cw := testCrosswalk(map[string]string{"phoenix_33.45_-112.07": "04013300200"})
		loc := NewTractLocator([]extract.TractGeometry{
			squareTract(t, "04013999999", -113, 33, -112, 34, nil),
		})

		out := HeatByTract([]aggregate.HeatMetrics{{
			LocationID: "phoenix_33.45_-112.07",
			Latitude:   33.45, Longitude: -112.07,
			AnnualMean: f(95), DaysAbove90: 12,
		}}, cw, loc)

		require.Len(t, out, 1)
		assert.Equal(t, "04013300200", out[0].GEOID)
		require.NotNil(t, out[0].DaysAbove90)
		assert.InDelta(t, 12.0, *out[0].DaysAbove90, 1e-9)
	})

	t.Run("unmapped location falls back to point in polygon", func(t *testing.T) {
		loc := NewTractLocator([]extract.TractGeometry{
			squareTract(t, "04013300100", -112.2, 33.3, -112.0, 33.5, nil),
		})

		out := HeatByTract([]aggregate.HeatMetrics{{
			LocationID: "phoenix_33.45_-112.07",
			Latitude:   33.45, Longitude: -112.07,
			AnnualMean: f(95),
		}}, testCrosswalk(nil), loc)

		require.Len(t, out, 1)
		assert.Equal(t, "04013300100", out[0].GEOID)
	})

	t.Run("first location keeps a contested tract", func(t *testing.T) {
		cw := testCrosswalk(map[string]string{
			"a": "04013300200",
			"b": "04013300200",
		})

		out := HeatByTract([]aggregate.HeatMetrics{
			{LocationID: "a", AnnualMean: f(90)},
			{LocationID: "b", AnnualMean: f(80)},
		}, cw, nil)

		require.Len(t, out, 1)
		require.NotNil(t, out[0].AnnualMean)
		assert.InDelta(t, 90.0, *out[0].AnnualMean, 1e-9)
	})

	t.Run("nothing resolved excludes the source", func(t *testing.T) {
		out := HeatByTract([]aggregate.HeatMetrics{
			{LocationID: "nowhere", Latitude: 0, Longitude: 0},
		}, testCrosswalk(nil), nil)
		assert.Nil(t, out)
	})
}

func TestAirByTract(t *testing.T) {
	t.Run("pollutants pivot onto one row per tract", func(t *testing.T) {
		cw := testCrosswalk(map[string]string{"040133002": "04013300200"})

		out := AirByTract([]aggregate.PollutantMetrics{
			{SiteKey: "040133002", Pollutant: aggregate.PollutantOzone, Mean: f(62), HighDays: 3},
			{SiteKey: "040133002", Pollutant: aggregate.PollutantPM25, Mean: f(11.5), P95: f(20)},
		}, cw)

		require.Len(t, out, 1)
		r := out[0]
		assert.Equal(t, "04013300200", r.GEOID)
		require.NotNil(t, r.OzoneMean)
		assert.InDelta(t, 62.0, *r.OzoneMean, 1e-9)
		require.NotNil(t, r.OzoneHighDays)
		assert.InDelta(t, 3.0, *r.OzoneHighDays, 1e-9)
		require.NotNil(t, r.PM25Mean)
		assert.InDelta(t, 11.5, *r.PM25Mean, 1e-9)
		require.NotNil(t, r.PM25P95)
		assert.InDelta(t, 20.0, *r.PM25P95, 1e-9)
	})

	t.Run("first site keeps a contested pollutant slot", func(t *testing.T) {
		cw := testCrosswalk(map[string]string{
			"siteA": "04013300200",
			"siteB": "04013300200",
		})

		out := AirByTract([]aggregate.PollutantMetrics{
			{SiteKey: "siteA", Pollutant: aggregate.PollutantPM25, Mean: f(10)},
			{SiteKey: "siteB", Pollutant: aggregate.PollutantPM25, Mean: f(99)},
		}, cw)

		require.Len(t, out, 1)
		require.NotNil(t, out[0].PM25Mean)
		assert.InDelta(t, 10.0, *out[0].PM25Mean, 1e-9)
	})

	t.Run("no crosswalk excludes the source", func(t *testing.T) {
		out := AirByTract([]aggregate.PollutantMetrics{
			{SiteKey: "040133002", Pollutant: aggregate.PollutantOzone, Mean: f(62)},
		}, testCrosswalk(nil))
		assert.Nil(t, out)
	})
}
