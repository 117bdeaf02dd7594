// Package geoid normalizes census tract identifiers (GEOIDs). A tract GEOID
// is an 11-digit zero-padded decimal string: 2-digit state FIPS, 3-digit
// county FIPS, 6-digit tract code. It is the single join key of the fusion.
package geoid

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Length is the fixed width of a tract GEOID.
const Length = 11

// Normalize repairs a tract key to canonical 11-digit form. Numeric input
// shorter than 11 digits is left-zero-padded; a trailing ".0" from a float
// round-trip is stripped. Non-numeric or over-long input is rejected.
// Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)

	// Spreadsheet exports frequently carry GEOIDs through a float column.
	if i := strings.IndexByte(s, '.'); i >= 0 {
		frac := s[i+1:]
		if strings.Trim(frac, "0") != "" {
			return "", eris.Errorf("geoid: non-integral tract key %q", raw)
		}
		s = s[:i]
	}

	if s == "" {
		return "", eris.New("geoid: empty tract key")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", eris.Errorf("geoid: non-numeric tract key %q", raw)
		}
	}
	if len(s) > Length {
		return "", eris.Errorf("geoid: tract key %q longer than %d digits", raw, Length)
	}

	return strings.Repeat("0", Length-len(s)) + s, nil
}

// Valid reports whether s is already a canonical 11-digit GEOID.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FromParts builds a GEOID from state, county, and tract FIPS components,
// zero-padding each to its fixed width.
func FromParts(state, county, tract string) (string, error) {
	s, err := padNumeric(state, 2)
	if err != nil {
		return "", eris.Wrap(err, "geoid: state fips")
	}
	c, err := padNumeric(county, 3)
	if err != nil {
		return "", eris.Wrap(err, "geoid: county fips")
	}
	t, err := padNumeric(tract, 6)
	if err != nil {
		return "", eris.Wrap(err, "geoid: tract code")
	}
	return s + c + t, nil
}

// State returns the 2-digit state FIPS component of a canonical GEOID.
func State(g string) string {
	if len(g) < 2 {
		return ""
	}
	return g[:2]
}

// County returns the 5-digit state+county component of a canonical GEOID.
func County(g string) string {
	if len(g) < 5 {
		return ""
	}
	return g[:5]
}

func padNumeric(s string, width int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", eris.New("empty component")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", eris.Errorf("non-numeric component %q", s)
		}
	}
	if len(s) > width {
		return "", eris.Errorf("component %q longer than %d digits", s, width)
	}
	return strings.Repeat("0", width-len(s)) + s, nil
}
