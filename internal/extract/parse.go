package extract

import (
	"strconv"
	"strings"
)

// parseFloatPtr parses a numeric cell. A failed conversion yields nil, never
// zero, so that downstream statistics treat it as missing.
func parseFloatPtr(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseFloat64Or parses a numeric cell, returning def when parsing fails.
func parseFloat64Or(s string, def float64) float64 {
	v := parseFloatPtr(s)
	if v == nil {
		return def
	}
	return *v
}

// trimQuotes removes surrounding double quotes from a CSV field.
func trimQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

// normalizeHeader lowercases a column name and collapses spaces, dots, and
// dashes to underscores so "Parameter Name", "parameter_name", and
// "PARAMETER-NAME" all map to the same key.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(trimQuotes(s)))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, ".", "_")
	return s
}

// mapColumns builds a normalized column name -> index map.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		m[normalizeHeader(col)] = i
	}
	return m
}

// getCol gets a column value by normalized name; missing columns yield "".
func getCol(record []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[normalizeHeader(name)]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

// firstCol returns the value of the first named column present and non-empty.
func firstCol(record []string, colIdx map[string]int, names ...string) string {
	for _, name := range names {
		if v := trimQuotes(getCol(record, colIdx, name)); v != "" {
			return v
		}
	}
	return ""
}

// hasCol reports whether a normalized column name exists in the header.
func hasCol(colIdx map[string]int, name string) bool {
	_, ok := colIdx[normalizeHeader(name)]
	return ok
}

// zeroPad left-pads a numeric string to the given width. Non-numeric input
// is returned trimmed but unpadded.
func zeroPad(s string, width int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	// Strip a float round-trip suffix before padding ("1.0" -> "1").
	if i := strings.IndexByte(s, '.'); i >= 0 && strings.Trim(s[i+1:], "0") == "" {
		s = s[:i]
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return s
		}
	}
	for len(s) < width {
		s = "0" + s
	}
	return s
}
