package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Provider exports mix ISO dates, US and EU slash dates, and free-text
// timestamps. Every strategy below is tried in order; a value that fails
// all of them is reported as unparseable and the owning row is dropped
// by the transformer, never defaulted to "now" or the epoch.

var isoLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

var freeTextLayouts = []string{
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	"January 2, 2006",
	"Mon Jan 2 2006 15:04:05",
	"Mon Jan 02 2006 15:04:05",
	"Mon, 02 Jan 2006 15:04:05",
	"2 Jan 2006 15:04:05",
	"2 Jan 2006",
}

// tzSuffix matches a trailing timezone abbreviation ("... 14:05 EST") or
// a parenthetical zone name ("... (Eastern Standard Time)").
var tzSuffix = regexp.MustCompile(`(\s+[A-Z]{2,5}|\s*\([^)]*\))\s*$`)

// ParseDate resolves a raw date string. ok is false when every strategy
// fails or the result lands outside the plausible 1900-2100 range.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return checkPlausible(t)
		}
	}

	if t, ok := parseSlashDate(s); ok {
		return checkPlausible(t)
	}

	// Free-text timestamps, trying again after each trailing zone token
	// is stripped. Suffixes can stack ("... GMT (Eastern Standard Time)").
	candidates := []string{s}
	cur := s
	for i := 0; i < 3; i++ {
		next := strings.TrimSpace(tzSuffix.ReplaceAllString(cur, ""))
		if next == cur {
			break
		}
		cur = next
		candidates = append(candidates, cur)
	}
	for _, candidate := range candidates {
		for _, layout := range freeTextLayouts {
			if t, err := time.Parse(layout, candidate); err == nil {
				return checkPlausible(t)
			}
		}
	}

	// Last resort: RFC3339 with and without a trailing Z.
	if t, err := time.Parse(time.RFC3339, s+"Z"); err == nil {
		return checkPlausible(t)
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSuffix(s, "Z")); err == nil {
		return checkPlausible(t)
	}

	return time.Time{}, false
}

// parseSlashDate handles M/D/Y and D/M/Y with 2- or 4-digit years.
// Ambiguous values resolve as M/D/Y; a first component over 12 flips to
// D/M/Y. Two-digit years split at the 70 pivot: >70 -> 19xx, else 20xx.
func parseSlashDate(s string) (time.Time, bool) {
	datePart := s
	timePart := ""
	if idx := strings.IndexAny(s, " T"); idx > 0 {
		datePart = s[:idx]
		timePart = strings.TrimSpace(s[idx+1:])
	}

	sep := "/"
	if !strings.Contains(datePart, "/") {
		if !strings.Contains(datePart, "-") {
			return time.Time{}, false
		}
		sep = "-"
	}
	parts := strings.Split(datePart, sep)
	if len(parts) != 3 {
		return time.Time{}, false
	}

	a, err1 := strconv.Atoi(parts[0])
	b, err2 := strconv.Atoi(parts[1])
	y, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}

	if len(parts[2]) <= 2 {
		if y > 70 {
			y += 1900
		} else {
			y += 2000
		}
	}

	month, day := a, b
	if month > 12 && day <= 12 {
		month, day = day, month
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	hour, min, sec := 0, 0, 0
	if timePart != "" {
		tp := strings.Fields(timePart)
		hms := strings.Split(tp[0], ":")
		if len(hms) >= 2 {
			hour, _ = strconv.Atoi(hms[0])
			min, _ = strconv.Atoi(hms[1])
			if len(hms) >= 3 {
				sec, _ = strconv.Atoi(hms[2])
			}
			if len(tp) > 1 {
				switch strings.ToUpper(tp[1]) {
				case "PM":
					if hour < 12 {
						hour += 12
					}
				case "AM":
					if hour == 12 {
						hour = 0
					}
				}
			}
		}
	}

	t := time.Date(y, time.Month(month), day, hour, min, sec, 0, time.UTC)
	// Reject rollovers like 2/31 -> 3/2.
	if t.Day() != day || t.Month() != time.Month(month) {
		return time.Time{}, false
	}
	return t, true
}

func checkPlausible(t time.Time) (time.Time, bool) {
	y := t.Year()
	if y < 1900 || y > 2100 {
		return time.Time{}, false
	}
	return t, true
}

// PlausibleSendDate bounds campaign/flow send timestamps to a tighter
// calendar window than generic dates.
func PlausibleSendDate(t time.Time) bool {
	y := t.Year()
	return y >= 1990 && y <= 2030
}
