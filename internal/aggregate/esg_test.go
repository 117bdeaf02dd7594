package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climateburdentract/cbi-pipeline/internal/extract"
)

func esgRec(sector string, total, env, soc, gov *float64) extract.ESGRecord {
	return extract.ESGRecord{
		Company: "co",
		Sector:  sector,
		Scores:  []*float64{total, env, soc, gov},
	}
}

func TestESGBySector(t *testing.T) {
	t.Run("groups by sector with component stats", func(t *testing.T) {
		records := []extract.ESGRecord{
			esgRec("Energy", f(40), f(30), f(50), f(40)),
			esgRec("Energy", f(60), f(70), f(50), nil),
			esgRec("Utilities", f(20), f(20), f(20), f(20)),
		}

		stats := ESGBySector(records)
		require.Len(t, stats, 2*len(extract.ESGComponents))

		// Sectors sorted, components in canonical order within each.
		assert.Equal(t, "Energy", stats[0].Sector)
		assert.Equal(t, "total_score", stats[0].Component)
		require.NotNil(t, stats[0].Mean)
		assert.InDelta(t, 50.0, *stats[0].Mean, 1e-9)
		assert.InDelta(t, 50.0, *stats[0].Median, 1e-9)
		assert.InDelta(t, 10.0, *stats[0].StdDev, 1e-9)
		assert.Equal(t, 2, stats[0].Count)

		// Governance has one nil in Energy.
		gov := stats[3]
		assert.Equal(t, "governance_score", gov.Component)
		assert.Equal(t, 1, gov.Count)
		require.NotNil(t, gov.Mean)
		assert.InDelta(t, 40.0, *gov.Mean, 1e-9)

		assert.Equal(t, "Utilities", stats[4].Sector)
	})

	t.Run("empty sector falls under unknown", func(t *testing.T) {
		stats := ESGBySector([]extract.ESGRecord{esgRec("", f(10), nil, nil, nil)})
		require.NotEmpty(t, stats)
		assert.Equal(t, "unknown", stats[0].Sector)
	})

	t.Run("no records yields no stats", func(t *testing.T) {
		assert.Empty(t, ESGBySector(nil))
	})
}
