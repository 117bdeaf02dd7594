package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTemperature(t *testing.T) {
	ctx := context.Background()

	t.Run("celsius column converted to fahrenheit", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "city_temperature.csv",
			"city,latitude,longitude,date,temperature\n"+
				"Phoenix,33.45,-112.07,2023-07-01,40\n")

		obs, err := Temperature(ctx, path)
		require.NoError(t, err)
		require.Len(t, obs, 1)
		require.NotNil(t, obs[0].TempF)
		assert.InDelta(t, 104.0, *obs[0].TempF, 1e-9)
	})

	t.Run("temp_f column passes through", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "city_temperature.csv",
			"city,latitude,longitude,date,temp_f\n"+
				"Phoenix,33.45,-112.07,2023-07-01,104\n")

		obs, err := Temperature(ctx, path)
		require.NoError(t, err)
		require.Len(t, obs, 1)
		require.NotNil(t, obs[0].TempF)
		assert.InDelta(t, 104.0, *obs[0].TempF, 1e-9)
	})

	t.Run("location key folds case and rounds coordinates", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "city_temperature.csv",
			"city,latitude,longitude,date,temp_f\n"+
				"PHOENIX,33.448,-112.074,2023-07-01,100\n"+
				"phoenix,33.451,-112.072,2023-07-02,101\n")

		obs, err := Temperature(ctx, path)
		require.NoError(t, err)
		require.Len(t, obs, 2)
		assert.Equal(t, "phoenix_33.45_-112.07", obs[0].LocationID)
		assert.Equal(t, obs[0].LocationID, obs[1].LocationID)
	})

	t.Run("missing city falls back to unknown", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "city_temperature.csv",
			"city,latitude,longitude,date,temp_f\n"+
				",0,0,2023-07-01,90\n")

		obs, err := Temperature(ctx, path)
		require.NoError(t, err)
		require.Len(t, obs, 1)
		assert.Equal(t, "unknown", obs[0].City)
	})

	t.Run("unparseable temperature stays nil", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "city_temperature.csv",
			"city,latitude,longitude,date,temp_f\n"+
				"Phoenix,33.45,-112.07,2023-07-01,n/a\n")

		obs, err := Temperature(ctx, path)
		require.NoError(t, err)
		require.Len(t, obs, 1)
		assert.Nil(t, obs[0].TempF)
	})

	t.Run("absent file is a soft miss", func(t *testing.T) {
		obs, err := Temperature(ctx, filepath.Join(t.TempDir(), "nope.csv"))
		require.NoError(t, err)
		assert.Nil(t, obs)
	})

	t.Run("unrecognized header treated as absent", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "city_temperature.csv",
			"city,latitude,longitude,date,kelvin\nPhoenix,33.45,-112.07,2023-07-01,313\n")

		obs, err := Temperature(ctx, path)
		require.NoError(t, err)
		assert.Nil(t, obs)
	})
}
