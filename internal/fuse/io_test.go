package fuse

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeaturesRoundTrip(t *testing.T) {
	r := NewFeatureRow("04013300200")
	r.SVI[0] = f(0.8)
	r.SVIComposite = f(0.6)
	r.HeatAnnualMean = f(95.5)
	r.OzoneHighDays = f(3)
	r.ClimateBurdenScore = f(0.7)
	r.ClimateBurdenIndexNormalized = f(82.5)

	path := filepath.Join(t.TempDir(), "processed", "features.csv")
	require.NoError(t, WriteFeatures(path, []FeatureRow{r}))

	got, err := ReadFeatures(path)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "04013300200", got[0].GEOID)
	require.NotNil(t, got[0].SVI[0])
	assert.InDelta(t, 0.8, *got[0].SVI[0], 1e-9)
	assert.Nil(t, got[0].SVI[1])
	require.NotNil(t, got[0].HeatAnnualMean)
	assert.InDelta(t, 95.5, *got[0].HeatAnnualMean, 1e-9)
	assert.Nil(t, got[0].PM25Mean)
	require.NotNil(t, got[0].ClimateBurdenIndexNormalized)
	assert.InDelta(t, 82.5, *got[0].ClimateBurdenIndexNormalized, 1e-9)
	assert.Nil(t, got[0].VulnerabilityScore)
}

func TestReadFeaturesMissingFile(t *testing.T) {
	rows, err := ReadFeatures(filepath.Join(t.TempDir(), "nope.csv"))
	require.NoError(t, err)
	assert.Nil(t, rows)
}
