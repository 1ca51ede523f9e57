package engine

import (
	"sort"

	"github.com/pkom79/email-metrics-cloud-sub006/internal/metrics"
)

var dayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// CampaignPerformanceByDayOfWeek accumulates campaign counters into the
// seven weekday slots and derives the weighted metric per slot, plus
// each slot's share of all sends.
func (e *Engine) CampaignPerformanceByDayOfWeek(metric metrics.Metric) []metrics.DayOfWeekPerformance {
	out := make([]metrics.DayOfWeekPerformance, 7)
	if !metric.Valid() {
		for d := range out {
			out[d] = metrics.DayOfWeekPerformance{Day: d, DayName: dayNames[d]}
		}
		return out
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	var counters [7]metrics.Counters
	var campaigns [7]int
	var totalSends int64
	for _, r := range e.campaigns {
		if !plausibleRecordDate(r.SentDate.Time) {
			continue
		}
		d := r.DayOfWeek
		if d < 0 || d > 6 {
			continue
		}
		counters[d].Add(r.Counters)
		campaigns[d]++
		totalSends += r.EmailsSent
	}

	for d := range out {
		slot := metrics.DayOfWeekPerformance{
			Day:        d,
			DayName:    dayNames[d],
			Value:      metric.Compute(counters[d]),
			EmailsSent: counters[d].EmailsSent,
			Campaigns:  campaigns[d],
		}
		if totalSends > 0 {
			slot.ShareOfSends = float64(counters[d].EmailsSent) / float64(totalSends) * 100
		}
		out[d] = slot
	}
	return out
}

// CampaignPerformanceByHourOfDay accumulates campaign counters into the
// 24 hour slots, then sorts descending by metric value (ties broken by
// hour ascending) to support best-hour-to-send presentation.
func (e *Engine) CampaignPerformanceByHourOfDay(metric metrics.Metric) []metrics.HourOfDayPerformance {
	out := make([]metrics.HourOfDayPerformance, 24)
	for h := range out {
		out[h] = metrics.HourOfDayPerformance{Hour: h}
	}
	if !metric.Valid() {
		return out
	}

	e.mu.RLock()
	var counters [24]metrics.Counters
	var campaigns [24]int
	var totalSends int64
	for _, r := range e.campaigns {
		if !plausibleRecordDate(r.SentDate.Time) {
			continue
		}
		h := r.HourOfDay
		if h < 0 || h > 23 {
			continue
		}
		counters[h].Add(r.Counters)
		campaigns[h]++
		totalSends += r.EmailsSent
	}
	e.mu.RUnlock()

	for h := range out {
		slot := metrics.HourOfDayPerformance{
			Hour:       h,
			Value:      metric.Compute(counters[h]),
			EmailsSent: counters[h].EmailsSent,
			Campaigns:  campaigns[h],
		}
		if totalSends > 0 {
			slot.ShareOfSends = float64(counters[h].EmailsSent) / float64(totalSends) * 100
		}
		out[h] = slot
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Hour < out[j].Hour
	})
	return out
}
