package engine

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/pkom79/email-metrics-cloud-sub006/internal/metrics"
)

// budgetCheckEvery is how many records pass between wall-clock checks
// inside the accumulation loop.
const budgetCheckEvery = 4096

func bucketStart(g Granularity, t time.Time) time.Time {
	switch g {
	case GranularityWeekly:
		return mondayOf(t)
	case GranularityMonthly:
		return monthOf(t)
	default:
		return dateOnly(t)
	}
}

func bucketNext(g Granularity, t time.Time) time.Time {
	switch g {
	case GranularityWeekly:
		return t.AddDate(0, 0, 7)
	case GranularityMonthly:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

func bucketKey(g Granularity, t time.Time) string {
	switch g {
	case GranularityMonthly:
		return monthOf(t).Format("2006-01")
	default:
		return bucketStart(g, t).Format("2006-01-02")
	}
}

// bucketCount estimates the number of buckets a window produces at a
// granularity, without iterating.
func bucketCount(g Granularity, start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	switch g {
	case GranularityWeekly:
		days := int(end.Sub(mondayOf(start)).Hours() / 24)
		return (days + 6) / 7
	case GranularityMonthly:
		s, e := monthOf(start), end
		return (e.Year()-s.Year())*12 + int(e.Month()) - int(s.Month()) + 1
	default:
		return int(end.Sub(dateOnly(start)).Hours() / 24)
	}
}

// MetricTimeSeries builds the bucketed series for one metric. The
// caller's granularity escalates to coarser widths past the configured
// tiers, the window is truncated to the most recent buckets past the
// truncation ceiling, record volume is capped, and the whole operation
// carries a soft wall-clock budget: long loops check elapsed time and
// abort with whatever partial result exists rather than blocking. The
// method never panics outward; any unresolvable input yields an empty
// series.
func (e *Engine) MetricTimeSeries(metric metrics.Metric, scope Scope, rangeSpec string, granularity Granularity, customFrom, customTo time.Time) []metrics.TimeSeriesPoint {
	entry := e.now()
	budget := e.limits.Budget()
	points := []metrics.TimeSeriesPoint{}

	if !metric.Valid() {
		return points
	}
	if scope == "" {
		scope = ScopeAll
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	start, end, ok := e.resolveWindow(rangeSpec, customFrom, customTo)
	if !ok {
		return points
	}

	days := int(end.Sub(start).Hours() / 24)
	switch granularity {
	case GranularityDaily, GranularityWeekly, GranularityMonthly:
	default:
		switch {
		case days <= 60:
			granularity = GranularityDaily
		case days <= 365:
			granularity = GranularityWeekly
		default:
			granularity = GranularityMonthly
		}
	}

	// Escalate to coarser buckets rather than building pathological
	// bucket counts.
	if granularity == GranularityDaily && bucketCount(GranularityDaily, start, end) > e.limits.DailyEscalationBuckets {
		granularity = GranularityWeekly
	}
	if granularity == GranularityWeekly && bucketCount(GranularityWeekly, start, end) > e.limits.WeeklyEscalationBuckets {
		granularity = GranularityMonthly
	}

	// Past the hard ceiling, keep only the most recent buckets' worth
	// of time instead of building more buckets.
	if n := bucketCount(granularity, start, end); n > e.limits.TruncateBuckets {
		switch granularity {
		case GranularityWeekly:
			start = end.AddDate(0, 0, -7*e.limits.TruncateBuckets)
		case GranularityMonthly:
			start = end.AddDate(0, -e.limits.TruncateBuckets, 0)
		default:
			start = end.AddDate(0, 0, -e.limits.TruncateBuckets)
		}
		log.Printf("[Engine] %s: window truncated to %d %s buckets (%d requested)", e.identity, e.limits.TruncateBuckets, granularity, n)
	}

	var recs []send
	for _, s := range e.sendsLocked(scope) {
		if !s.date.Before(start) && s.date.Before(end) {
			recs = append(recs, s)
		}
	}

	// Record-count ceiling: keep only the most recent records.
	if len(recs) > e.limits.MaxRecords {
		sort.Slice(recs, func(i, j int) bool { return recs[i].date.After(recs[j].date) })
		recs = recs[:e.limits.MaxRecords]
		log.Printf("[Engine] %s: record cap applied, processing %d most recent records", e.identity, len(recs))
	}

	// Bucket construction, structurally capped independent of the
	// escalation logic above.
	type bucket struct {
		label string
		c     metrics.Counters
	}
	var order []bucket
	idx := make(map[string]int)
	lastDay := end.AddDate(0, 0, -1)
	for cur := bucketStart(granularity, start); cur.Before(end); cur = bucketNext(granularity, cur) {
		if len(order) >= e.limits.MaxBuckets {
			break
		}
		if e.now().Sub(entry) > budget {
			log.Printf("[Engine] %s: execution budget exceeded during bucket construction", e.identity)
			return points
		}
		var label string
		switch granularity {
		case GranularityWeekly:
			weekEnd := cur.AddDate(0, 0, 6)
			if weekEnd.After(lastDay) {
				weekEnd = lastDay
			}
			label = fmt.Sprintf("%s - %s", cur.Format("Jan 2"), weekEnd.Format("Jan 2"))
		case GranularityMonthly:
			label = cur.Format("Jan 2006")
		default:
			label = cur.Format("Jan 2")
		}
		idx[bucketKey(granularity, cur)] = len(order)
		order = append(order, bucket{label: label})
	}

	for i, s := range recs {
		if i%budgetCheckEvery == 0 && e.now().Sub(entry) > budget {
			log.Printf("[Engine] %s: execution budget exceeded after %d of %d records, returning partial series", e.identity, i, len(recs))
			break
		}
		if j, ok := idx[bucketKey(granularity, s.date)]; ok {
			order[j].c.Add(s.c)
		}
	}

	for _, b := range order {
		points = append(points, metrics.TimeSeriesPoint{Value: metric.Compute(b.c), Label: b.label})
	}
	return points
}
