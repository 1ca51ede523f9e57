package engine

import (
	"regexp"
	"strconv"
	"time"

	"github.com/pkom79/email-metrics-cloud-sub006/internal/metrics"
)

// Granularity is a time-series bucket width.
type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityWeekly  Granularity = "weekly"
	GranularityMonthly Granularity = "monthly"
)

// RangeAll is the sentinel spanning the min/max record dates.
const RangeAll = "all"

// RangeCustom selects an explicit from/to window.
const RangeCustom = "custom"

var presetPattern = regexp.MustCompile(`^(\d+)d$`)

// send is the common shape queries iterate over: a sanity-checked
// timestamp plus raw counters, regardless of source collection.
type send struct {
	date time.Time
	c    metrics.Counters
}

// dateOnly truncates to local midnight.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// mondayOf returns the ISO-week start (Monday) of t's calendar date.
func mondayOf(t time.Time) time.Time {
	d := dateOnly(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// monthOf returns the first day of t's month.
func monthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// plausibleRecordDate is the defense-in-depth filter applied at query
// time against any record that slipped past the transformer.
func plausibleRecordDate(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	y := t.Year()
	return y >= 1990 && y <= 2030
}

// sends gathers the records a scope covers, dropping implausible dates.
// Callers must hold at least a read lock.
func (e *Engine) sendsLocked(scope Scope) []send {
	var out []send
	if scope == ScopeAll || scope == ScopeCampaigns {
		for _, r := range e.campaigns {
			if plausibleRecordDate(r.SentDate.Time) {
				out = append(out, send{date: r.SentDate.Time, c: r.Counters})
			}
		}
	}
	if scope == ScopeAll || scope == ScopeFlows {
		for _, r := range e.flows {
			if plausibleRecordDate(r.SentDate.Time) {
				out = append(out, send{date: r.SentDate.Time, c: r.Counters})
			}
		}
	}
	return out
}

// dataBounds returns the min and max send dates across both send
// collections. ok is false when no plausible records exist.
func (e *Engine) dataBoundsLocked() (min, max time.Time, ok bool) {
	for _, s := range e.sendsLocked(ScopeAll) {
		if !ok || s.date.Before(min) {
			min = s.date
		}
		if !ok || s.date.After(max) {
			max = s.date
		}
		ok = true
	}
	return min, max, ok
}

// resolveWindow turns a range spec into half-open [start, end) bounds
// at local-midnight boundaries. rangeSpec is a preset like "30d"
// (anchored at the latest record date), "all", or "custom" with
// explicit bounds. ok is false when the window cannot be resolved.
func (e *Engine) resolveWindow(rangeSpec string, customFrom, customTo time.Time) (start, end time.Time, ok bool) {
	switch rangeSpec {
	case RangeCustom:
		if customFrom.IsZero() || customTo.IsZero() || customTo.Before(customFrom) {
			return time.Time{}, time.Time{}, false
		}
		return dateOnly(customFrom), dateOnly(customTo).AddDate(0, 0, 1), true

	case RangeAll:
		min, max, found := e.dataBoundsLocked()
		if !found {
			return time.Time{}, time.Time{}, false
		}
		return dateOnly(min), dateOnly(max).AddDate(0, 0, 1), true

	default:
		m := presetPattern.FindStringSubmatch(rangeSpec)
		if m == nil {
			return time.Time{}, time.Time{}, false
		}
		days, err := strconv.Atoi(m[1])
		if err != nil || days < 1 {
			return time.Time{}, time.Time{}, false
		}
		_, max, found := e.dataBoundsLocked()
		if !found {
			return time.Time{}, time.Time{}, false
		}
		end = dateOnly(max).AddDate(0, 0, 1)
		return end.AddDate(0, 0, -days), end, true
	}
}

// GranularityForDateRange picks a default bucket width from the span of
// the resolved window: up to 60 days daily, up to a year weekly, then
// monthly. With no data yet, daily.
func (e *Engine) GranularityForDateRange(rangeSpec string, customFrom, customTo time.Time) Granularity {
	e.mu.RLock()
	start, end, ok := e.resolveWindow(rangeSpec, customFrom, customTo)
	e.mu.RUnlock()
	if !ok {
		return GranularityDaily
	}
	days := int(end.Sub(start).Hours() / 24)
	switch {
	case days <= 60:
		return GranularityDaily
	case days <= 365:
		return GranularityWeekly
	default:
		return GranularityMonthly
	}
}
