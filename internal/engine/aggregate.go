package engine

import (
	"time"

	"github.com/pkom79/email-metrics-cloud-sub006/internal/metrics"
)

// AggregatedMetricsForPeriod runs a single pass over campaigns and
// flows inside [start, end) and derives the weighted aggregate: counters
// are summed across the window and divided once, never averaged
// per-record. An empty window yields an all-zero result.
func (e *Engine) AggregatedMetricsForPeriod(start, end time.Time) metrics.AggregatedMetrics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return metrics.FromCounters(e.countersForWindowLocked(ScopeAll, start, end))
}

// AggregatedMetricsForRange resolves a range spec first, then
// aggregates. An unresolvable range yields the all-zero aggregate.
func (e *Engine) AggregatedMetricsForRange(rangeSpec string, customFrom, customTo time.Time) metrics.AggregatedMetrics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	start, end, ok := e.resolveWindow(rangeSpec, customFrom, customTo)
	if !ok {
		return metrics.AggregatedMetrics{}
	}
	return metrics.FromCounters(e.countersForWindowLocked(ScopeAll, start, end))
}

func (e *Engine) countersForWindowLocked(scope Scope, start, end time.Time) metrics.Counters {
	var total metrics.Counters
	for _, s := range e.sendsLocked(scope) {
		if !s.date.Before(start) && s.date.Before(end) {
			total.Add(s.c)
		}
	}
	return total
}

// PeriodOverPeriodChange diffs a metric between the resolved window and
// the immediately preceding window of identical length (contiguous, no
// gap). IsPositive accounts for metric polarity: a decrease in an
// adverse metric (unsubscribe/spam/bounce rate) is an improvement. The
// "all" range has no meaningful previous period and short-circuits to a
// neutral zero-change result.
func (e *Engine) PeriodOverPeriodChange(metric metrics.Metric, scope Scope, rangeSpec string, customFrom, customTo time.Time) metrics.PeriodChange {
	if !metric.Valid() || rangeSpec == RangeAll {
		return metrics.PeriodChange{IsPositive: true}
	}
	if scope == "" {
		scope = ScopeAll
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	start, end, ok := e.resolveWindow(rangeSpec, customFrom, customTo)
	if !ok {
		return metrics.PeriodChange{IsPositive: true}
	}
	length := end.Sub(start)
	prevStart := start.Add(-length)

	current := metric.Compute(e.countersForWindowLocked(scope, start, end))
	previous := metric.Compute(e.countersForWindowLocked(scope, prevStart, start))

	change := metrics.PeriodChange{
		CurrentValue:   current,
		PreviousValue:  previous,
		CurrentPeriod:  metrics.Period{Start: start, End: end},
		PreviousPeriod: metrics.Period{Start: prevStart, End: start},
	}

	switch {
	case previous == 0 && current > 0:
		// Signals growth without dividing by zero.
		change.ChangePercent = 100
	case previous != 0:
		change.ChangePercent = (current - previous) / previous * 100
	}

	delta := current - previous
	if metric.Adverse() {
		change.IsPositive = delta <= 0
	} else {
		change.IsPositive = delta >= 0
	}
	return change
}
