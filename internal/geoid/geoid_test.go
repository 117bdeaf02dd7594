package geoid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"already canonical", "48201223100", "48201223100", false},
		{"short numeric zero-padded", "1073001100", "01073001100", false},
		{"very short", "42", "00000000042", false},
		{"float round-trip", "1073001100.0", "01073001100", false},
		{"float with zeros", "48201223100.00", "48201223100", false},
		{"whitespace", "  48201223100 ", "48201223100", false},
		{"non-numeric", "4820122310A", "", true},
		{"fractional", "48201.5", "", true},
		{"too long", "482012231001", "", true},
		{"empty", "", "", true},
		{"only dot", ".", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, Length)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, in := range []string{"42", "1073001100", "48201223100", "1073001100.0"} {
		once, err := Normalize(in)
		require.NoError(t, err)
		twice, err := Normalize(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("48201223100"))
	assert.False(t, Valid("1073001100"))   // 10 digits
	assert.False(t, Valid("4820122310A"))  // non-numeric
	assert.False(t, Valid("482012231001")) // 12 digits
	assert.False(t, Valid(""))
}

func TestFromParts(t *testing.T) {
	g, err := FromParts("1", "73", "1100")
	require.NoError(t, err)
	assert.Equal(t, "01073001100", g)

	g, err = FromParts("48", "201", "223100")
	require.NoError(t, err)
	assert.Equal(t, "48201223100", g)

	_, err = FromParts("", "201", "223100")
	assert.Error(t, err)

	_, err = FromParts("TX", "201", "223100")
	assert.Error(t, err)
}

func TestComponents(t *testing.T) {
	assert.Equal(t, "48", State("48201223100"))
	assert.Equal(t, "48201", County("48201223100"))
	assert.Equal(t, "", State("4"))
}
