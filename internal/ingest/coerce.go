package ingest

import (
	"strconv"
	"strings"
)

// ParseNumber coerces a raw cell to a float64, tolerating currency
// symbols, thousands separators, percent signs and surrounding spaces.
// Anything unparseable coerces to 0.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '$', '€', '£', ',', '%', ' ':
			continue
		}
		b.WriteRune(r)
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return f
}

// ParseCount coerces a raw cell to a non-negative int64 counter.
func ParseCount(s string) int64 {
	f := ParseNumber(s)
	if f < 0 {
		return 0
	}
	return int64(f)
}

// ParseBool coerces a raw cell to a boolean. Sentinel strings such as
// NEVER_SUBSCRIBED coerce to false rather than erroring.
func ParseBool(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRUE", "YES", "Y", "1", "SUBSCRIBED":
		return true
	}
	return false
}

// field returns the first non-empty value among header aliases; provider
// exports have renamed columns across schema versions.
func field(row Row, aliases ...string) string {
	for _, a := range aliases {
		if v, ok := row[a]; ok && v != "" {
			return v
		}
	}
	return ""
}
