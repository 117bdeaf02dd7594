package extract

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSVI(t *testing.T) {
	ctx := context.Background()

	t.Run("percentiles normalized to unit range with composite", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "svi_2022.csv",
			"FIPS,EPL_POV,EPL_UNEMP\n"+
				"04013300200,80,40\n")

		rows, err := SVI(ctx, dir)
		require.NoError(t, err)
		require.Len(t, rows, 1)

		r := rows[0]
		assert.Equal(t, "04013300200", r.GEOID)
		require.NotNil(t, r.Values[0])
		assert.InDelta(t, 0.8, *r.Values[0], 1e-9)
		require.NotNil(t, r.Values[1])
		assert.InDelta(t, 0.4, *r.Values[1], 1e-9)
		assert.Nil(t, r.Values[2])
		require.NotNil(t, r.Composite)
		assert.InDelta(t, 0.6, *r.Composite, 1e-9)
	})

	t.Run("sentinel values become nil", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "svi.csv",
			"geoid,epl_pov,epl_unemp\n"+
				"04013300200,-999,50\n")

		rows, err := SVI(ctx, dir)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Nil(t, rows[0].Values[0])
		require.NotNil(t, rows[0].Composite)
		assert.InDelta(t, 0.5, *rows[0].Composite, 1e-9)
	})

	t.Run("rows with invalid geoid are dropped", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "svi.csv",
			"fips,epl_pov\n"+
				"not-a-geoid,50\n"+
				"04013300200,50\n")

		rows, err := SVI(ctx, dir)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "04013300200", rows[0].GEOID)
	})

	t.Run("all variables absent leaves composite nil", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "svi.csv", "fips,unrelated\n04013300200,1\n")

		rows, err := SVI(ctx, dir)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Nil(t, rows[0].Composite)
	})

	t.Run("empty directory is a soft miss", func(t *testing.T) {
		rows, err := SVI(ctx, t.TempDir())
		require.NoError(t, err)
		assert.Nil(t, rows)
	})
}

func TestSVIRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "svi.csv", "fips,epl_pov,ep_socioec\n04013300200,80,60\n")

	rows, err := SVI(context.Background(), dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "out", "svi_normalized.csv")
	require.NoError(t, WriteSVI(path, rows))

	got, err := ReadSVI(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rows[0].GEOID, got[0].GEOID)
	require.NotNil(t, got[0].Values[0])
	assert.InDelta(t, 0.8, *got[0].Values[0], 1e-9)
	require.NotNil(t, got[0].Composite)
	assert.InDelta(t, *rows[0].Composite, *got[0].Composite, 1e-9)

	missing, err := ReadSVI(filepath.Join(dir, "absent.csv"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}
