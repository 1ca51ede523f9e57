package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkom79/email-metrics-cloud-sub006/internal/config"
	"github.com/pkom79/email-metrics-cloud-sub006/internal/metrics"
)

func testEngine() *Engine {
	return New("test-session", config.EngineConfig{}, nil)
}

func campaign(id string, sent time.Time, c metrics.Counters) metrics.CampaignRecord {
	return metrics.CampaignRecord{
		ID:        id,
		Name:      id,
		SentDate:  metrics.NewTime(sent),
		Counters:  c,
		DayOfWeek: int(sent.Weekday()),
		HourOfDay: sent.Hour(),
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestWeightedRateNotMeanOfRates(t *testing.T) {
	e := testEngine()
	e.LoadCampaigns([]metrics.CampaignRecord{
		campaign("a", day(2024, 3, 1), metrics.Counters{EmailsSent: 100, UniqueOpens: 10}),
		campaign("b", day(2024, 3, 3), metrics.Counters{EmailsSent: 200, UniqueOpens: 40}),
		campaign("c", day(2024, 3, 5), metrics.Counters{EmailsSent: 300, UniqueOpens: 60}),
	}, 0)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	points := e.MetricTimeSeries(metrics.MetricOpenRate, ScopeAll, RangeCustom, GranularityMonthly, from, to)

	require.Len(t, points, 1)
	// (10+40+60)/(100+200+300) = 18.33%, not mean(10%,20%,20%) = 16.67%.
	assert.InDelta(t, 18.3333, points[0].Value, 0.001)

	agg := e.AggregatedMetricsForPeriod(from, to.AddDate(0, 0, 1))
	assert.InDelta(t, 18.3333, agg.OpenRate, 0.001)
}

func TestZeroDenominatorBucketReportsZero(t *testing.T) {
	e := testEngine()
	e.LoadCampaigns([]metrics.CampaignRecord{
		campaign("a", day(2024, 3, 1), metrics.Counters{EmailsSent: 0, Revenue: 50}),
	}, 0)

	points := e.MetricTimeSeries(metrics.MetricOpenRate, ScopeAll, RangeAll, GranularityDaily, time.Time{}, time.Time{})
	require.Len(t, points, 1)
	assert.Equal(t, 0.0, points[0].Value)
}

func TestLoadReplacesCollection(t *testing.T) {
	e := testEngine()
	e.LoadCampaigns([]metrics.CampaignRecord{
		campaign("old-1", day(2024, 1, 1), metrics.Counters{EmailsSent: 100, Revenue: 999}),
		campaign("old-2", day(2024, 1, 2), metrics.Counters{EmailsSent: 100, Revenue: 999}),
	}, 0)
	e.LoadCampaigns([]metrics.CampaignRecord{
		campaign("new-1", day(2024, 2, 1), metrics.Counters{EmailsSent: 50, Revenue: 10}),
	}, 0)

	c, _, _ := e.Counts()
	assert.Equal(t, 1, c)
	agg := e.AggregatedMetricsForRange(RangeAll, time.Time{}, time.Time{})
	assert.InDelta(t, 10.0, agg.TotalRevenue, 0.001)
}

func TestGranularityEscalation_DailyToWeekly(t *testing.T) {
	e := testEngine()
	e.LoadCampaigns([]metrics.CampaignRecord{
		campaign("a", day(2023, 1, 15), metrics.Counters{EmailsSent: 100, UniqueOpens: 20}),
		campaign("b", day(2024, 2, 1), metrics.Counters{EmailsSent: 100, UniqueOpens: 20}),
	}, 0)

	// A 400-day daily request escalates to weekly buckets.
	from := time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 399)
	points := e.MetricTimeSeries(metrics.MetricOpenRate, ScopeAll, RangeCustom, GranularityDaily, from, to)

	require.NotEmpty(t, points)
	assert.Less(t, len(points), 70)
	assert.Greater(t, len(points), 50)
	// Weekly labels carry a span, daily labels do not.
	assert.Contains(t, points[0].Label, " - ")
}

func TestGranularityEscalation_WeeklyToMonthly(t *testing.T) {
	e := testEngine()
	e.LoadCampaigns([]metrics.CampaignRecord{
		campaign("a", day(2022, 1, 15), metrics.Counters{EmailsSent: 100}),
		campaign("b", day(2024, 3, 1), metrics.Counters{EmailsSent: 100}),
	}, 0)

	// An 800-day weekly request escalates to monthly buckets.
	from := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 799)
	points := e.MetricTimeSeries(metrics.MetricEmailsSent, ScopeAll, RangeCustom, GranularityWeekly, from, to)

	require.NotEmpty(t, points)
	assert.LessOrEqual(t, len(points), 28)
	for _, p := range points {
		assert.NotContains(t, p.Label, " - ")
		assert.True(t, strings.Contains(p.Label, "202"), "monthly label should carry a year: %q", p.Label)
	}
}

func TestBucketCountNeverExceedsCap(t *testing.T) {
	e := testEngine()
	e.LoadCampaigns([]metrics.CampaignRecord{
		campaign("a", day(1995, 1, 1), metrics.Counters{EmailsSent: 10}),
		campaign("b", day(2025, 1, 1), metrics.Counters{EmailsSent: 10}),
	}, 0)

	for _, g := range []Granularity{GranularityDaily, GranularityWeekly, GranularityMonthly} {
		points := e.MetricTimeSeries(metrics.MetricEmailsSent, ScopeAll, RangeAll, g, time.Time{}, time.Time{})
		assert.LessOrEqual(t, len(points), 250, "granularity %s", g)
	}
}

func TestWindowTruncationKeepsMostRecent(t *testing.T) {
	e := testEngine()
	e.LoadCampaigns([]metrics.CampaignRecord{
		campaign("old", day(1995, 1, 1), metrics.Counters{EmailsSent: 7}),
		campaign("new", day(2025, 1, 1), metrics.Counters{EmailsSent: 13}),
	}, 0)

	// 30 years of monthly buckets exceeds the truncation ceiling; only
	// the most recent buckets survive, so the old record falls out.
	points := e.MetricTimeSeries(metrics.MetricEmailsSent, ScopeAll, RangeAll, GranularityMonthly, time.Time{}, time.Time{})
	var total float64
	for _, p := range points {
		total += p.Value
	}
	assert.Equal(t, 13.0, total)
}

func TestRecordCapKeepsMostRecent(t *testing.T) {
	e := New("cap-test", config.EngineConfig{MaxRecords: 10}, nil)
	var recs []metrics.CampaignRecord
	base := day(2024, 3, 1)
	for i := 0; i < 25; i++ {
		recs = append(recs, campaign("c", base.Add(time.Duration(i)*time.Hour), metrics.Counters{EmailsSent: 1}))
	}
	e.LoadCampaigns(recs, 0)

	points := e.MetricTimeSeries(metrics.MetricEmailsSent, ScopeAll, RangeAll, GranularityDaily, time.Time{}, time.Time{})
	var total float64
	for _, p := range points {
		total += p.Value
	}
	assert.Equal(t, 10.0, total)
}

func TestWeeklyBucketsMondayAnchoredWithCappedLabel(t *testing.T) {
	e := testEngine()
	// 2024-03-06 is a Wednesday; its ISO week starts Monday 2024-03-04.
	e.LoadCampaigns([]metrics.CampaignRecord{
		campaign("a", day(2024, 3, 6), metrics.Counters{EmailsSent: 10}),
	}, 0)

	from := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	points := e.MetricTimeSeries(metrics.MetricEmailsSent, ScopeAll, RangeCustom, GranularityWeekly, from, to)

	require.Len(t, points, 1)
	// The label's week-end is capped at the window end, not Sunday.
	assert.Equal(t, "Mar 4 - Mar 7", points[0].Label)
	assert.Equal(t, 10.0, points[0].Value)
}

func TestPeriodOverPeriod_Polarity(t *testing.T) {
	e := testEngine()
	// Previous week: 2 unsubscribes per 100 sends; current week: 1.
	e.LoadCampaigns([]metrics.CampaignRecord{
		campaign("prev", day(2024, 3, 3), metrics.Counters{EmailsSent: 100, Unsubscribes: 2, Revenue: 200}),
		campaign("cur", day(2024, 3, 10), metrics.Counters{EmailsSent: 100, Unsubscribes: 1, Revenue: 100}),
	}, 0)

	unsub := e.PeriodOverPeriodChange(metrics.MetricUnsubscribeRate, ScopeAll, "7d", time.Time{}, time.Time{})
	assert.InDelta(t, 1.0, unsub.CurrentValue, 0.001)
	assert.InDelta(t, 2.0, unsub.PreviousValue, 0.001)
	assert.InDelta(t, -50.0, unsub.ChangePercent, 0.001)
	assert.True(t, unsub.IsPositive, "a drop in unsubscribe rate is an improvement")

	rev := e.PeriodOverPeriodChange(metrics.MetricRevenue, ScopeAll, "7d", time.Time{}, time.Time{})
	assert.InDelta(t, 100.0, rev.CurrentValue, 0.001)
	assert.InDelta(t, 200.0, rev.PreviousValue, 0.001)
	assert.False(t, rev.IsPositive, "a revenue drop is not an improvement")
}

func TestPeriodOverPeriod_GrowthFromZero(t *testing.T) {
	e := testEngine()
	e.LoadCampaigns([]metrics.CampaignRecord{
		campaign("cur", day(2024, 3, 10), metrics.Counters{EmailsSent: 100, Revenue: 500}),
	}, 0)

	change := e.PeriodOverPeriodChange(metrics.MetricRevenue, ScopeAll, "7d", time.Time{}, time.Time{})
	assert.InDelta(t, 100.0, change.ChangePercent, 0.001)
	assert.True(t, change.IsPositive)
}

func TestPeriodOverPeriod_AllRangeIsNeutral(t *testing.T) {
	e := testEngine()
	e.LoadCampaigns([]metrics.CampaignRecord{
		campaign("a", day(2024, 3, 10), metrics.Counters{EmailsSent: 100, Revenue: 500}),
	}, 0)

	change := e.PeriodOverPeriodChange(metrics.MetricRevenue, ScopeAll, RangeAll, time.Time{}, time.Time{})
	assert.Zero(t, change.CurrentValue)
	assert.Zero(t, change.ChangePercent)
	assert.True(t, change.IsPositive)
}

func TestPeriodsAreContiguous(t *testing.T) {
	e := testEngine()
	e.LoadCampaigns([]metrics.CampaignRecord{
		campaign("a", day(2024, 3, 10), metrics.Counters{EmailsSent: 1}),
	}, 0)

	change := e.PeriodOverPeriodChange(metrics.MetricEmailsSent, ScopeAll, "30d", time.Time{}, time.Time{})
	assert.True(t, change.PreviousPeriod.End.Equal(change.CurrentPeriod.Start))
	assert.Equal(t, change.CurrentPeriod.End.Sub(change.CurrentPeriod.Start), change.PreviousPeriod.End.Sub(change.PreviousPeriod.Start))
}

func TestGranularityForDateRange(t *testing.T) {
	e := testEngine()

	// No data yet: "all" defaults to daily.
	assert.Equal(t, GranularityDaily, e.GranularityForDateRange(RangeAll, time.Time{}, time.Time{}))

	assert.Equal(t, GranularityDaily, e.GranularityForDateRange("30d", time.Time{}, time.Time{}))

	e.LoadCampaigns([]metrics.CampaignRecord{
		campaign("a", day(2024, 1, 1), metrics.Counters{EmailsSent: 1}),
	}, 0)
	assert.Equal(t, GranularityDaily, e.GranularityForDateRange("60d", time.Time{}, time.Time{}))
	assert.Equal(t, GranularityWeekly, e.GranularityForDateRange("90d", time.Time{}, time.Time{}))
	assert.Equal(t, GranularityMonthly, e.GranularityForDateRange("730d", time.Time{}, time.Time{}))
}

func TestQuerySafeDefaults(t *testing.T) {
	e := testEngine()

	// No data, bad metric, bad range: every query returns a safe zero
	// value rather than failing.
	assert.Empty(t, e.MetricTimeSeries(metrics.Metric("nope"), ScopeAll, "30d", GranularityDaily, time.Time{}, time.Time{}))
	assert.Empty(t, e.MetricTimeSeries(metrics.MetricRevenue, ScopeAll, "bogus", GranularityDaily, time.Time{}, time.Time{}))
	assert.Equal(t, metrics.AggregatedMetrics{}, e.AggregatedMetricsForRange("30d", time.Time{}, time.Time{}))
	assert.Empty(t, e.FlowNames())
	assert.Empty(t, e.FlowStepMetrics("anything"))
}

func TestImplausibleRecordFilteredAtQueryTime(t *testing.T) {
	e := testEngine()
	// Defense-in-depth: a record with an implausible year that slipped
	// into the collection is ignored by queries.
	e.LoadCampaigns([]metrics.CampaignRecord{
		campaign("bad", day(1970, 1, 1), metrics.Counters{EmailsSent: 100, Revenue: 100}),
		campaign("good", day(2024, 3, 1), metrics.Counters{EmailsSent: 100, Revenue: 50}),
	}, 0)

	agg := e.AggregatedMetricsForRange(RangeAll, time.Time{}, time.Time{})
	assert.InDelta(t, 50.0, agg.TotalRevenue, 0.001)
}

func TestDayOfWeekBreakdown(t *testing.T) {
	e := testEngine()
	// 2024-03-04 is a Monday, 2024-03-05 a Tuesday.
	e.LoadCampaigns([]metrics.CampaignRecord{
		campaign("mon-1", day(2024, 3, 4), metrics.Counters{EmailsSent: 100, UniqueOpens: 30}),
		campaign("mon-2", day(2024, 3, 11), metrics.Counters{EmailsSent: 300, UniqueOpens: 30}),
		campaign("tue", day(2024, 3, 5), metrics.Counters{EmailsSent: 100, UniqueOpens: 50}),
	}, 0)

	slots := e.CampaignPerformanceByDayOfWeek(metrics.MetricOpenRate)
	require.Len(t, slots, 7)

	mon := slots[int(time.Monday)]
	assert.Equal(t, "Monday", mon.DayName)
	assert.Equal(t, 2, mon.Campaigns)
	// Weighted: (30+30)/(100+300) = 15%, not mean(30%, 10%) = 20%.
	assert.InDelta(t, 15.0, mon.Value, 0.001)
	assert.InDelta(t, 80.0, mon.ShareOfSends, 0.001)

	tue := slots[int(time.Tuesday)]
	assert.InDelta(t, 50.0, tue.Value, 0.001)
	assert.InDelta(t, 20.0, tue.ShareOfSends, 0.001)

	assert.Zero(t, slots[int(time.Sunday)].Value)
}

func TestHourOfDayBreakdown_SortedBestFirst(t *testing.T) {
	e := testEngine()
	at := func(hour int) time.Time {
		return time.Date(2024, 3, 4, hour, 0, 0, 0, time.UTC)
	}
	e.LoadCampaigns([]metrics.CampaignRecord{
		campaign("nine", at(9), metrics.Counters{EmailsSent: 100, UniqueOpens: 40}),
		campaign("fourteen", at(14), metrics.Counters{EmailsSent: 100, UniqueOpens: 60}),
		campaign("twenty", at(20), metrics.Counters{EmailsSent: 100, UniqueOpens: 10}),
	}, 0)

	slots := e.CampaignPerformanceByHourOfDay(metrics.MetricOpenRate)
	require.Len(t, slots, 24)

	assert.Equal(t, 14, slots[0].Hour)
	assert.InDelta(t, 60.0, slots[0].Value, 0.001)
	assert.Equal(t, 9, slots[1].Hour)
	assert.Equal(t, 20, slots[2].Hour)
	// Zero-value hours tie; ties break by hour ascending.
	assert.Equal(t, 0, slots[3].Hour)
	for _, s := range slots[:3] {
		assert.InDelta(t, 33.3333, s.ShareOfSends, 0.001)
	}
}

func TestFlowStepMetrics(t *testing.T) {
	e := testEngine()
	flow := func(pos int, sent time.Time, c metrics.Counters) metrics.FlowEmailRecord {
		return metrics.FlowEmailRecord{
			ID:               "f",
			FlowName:         "Welcome",
			Status:           "live",
			SentDate:         metrics.NewTime(sent),
			Counters:         c,
			SequencePosition: pos,
		}
	}
	e.LoadFlows([]metrics.FlowEmailRecord{
		flow(1, day(2024, 3, 1), metrics.Counters{EmailsSent: 100, UniqueOpens: 50}),
		flow(1, day(2024, 3, 8), metrics.Counters{EmailsSent: 300, UniqueOpens: 50}),
		flow(2, day(2024, 3, 2), metrics.Counters{EmailsSent: 80, UniqueOpens: 20}),
	}, 0)

	steps := e.FlowStepMetrics("Welcome")
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].Position)
	assert.Equal(t, 2, steps[0].Messages)
	assert.InDelta(t, 25.0, steps[0].Metrics.OpenRate, 0.001) // (50+50)/(100+300)
	assert.Equal(t, 2, steps[1].Position)
	assert.InDelta(t, 25.0, steps[1].Metrics.OpenRate, 0.001)
}

// stepClock advances a fixed amount on every reading, so elapsed-time
// checks fire after a known number of observations.
type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func TestBudgetExpiryDuringBucketConstruction(t *testing.T) {
	e := New("budget-test", config.EngineConfig{BudgetSeconds: 2}, nil)
	e.LoadCampaigns([]metrics.CampaignRecord{
		campaign("a", day(2024, 3, 1), metrics.Counters{EmailsSent: 10}),
	}, 0)
	// Each clock reading advances one second; the 2s budget expires on
	// the third bucket's check, long before the window is built out.
	e.now = (&stepClock{t: day(2024, 3, 1), step: time.Second}).Now

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	points := e.MetricTimeSeries(metrics.MetricEmailsSent, ScopeAll, RangeCustom, GranularityDaily, from, to)

	assert.Empty(t, points)
}

func TestBudgetExpiryDuringAccumulationReturnsPartialSeries(t *testing.T) {
	e := New("budget-test", config.EngineConfig{BudgetSeconds: 2}, nil)
	recs := make([]metrics.CampaignRecord, 5000)
	base := day(2024, 3, 1)
	for i := range recs {
		recs[i] = campaign("c", base.Add(time.Duration(i)*time.Millisecond), metrics.Counters{EmailsSent: 1})
	}
	e.LoadCampaigns(recs, 0)
	// One bucket builds within budget; the accumulation loop's second
	// elapsed check (one batch of records in) crosses it and stops.
	e.now = (&stepClock{t: base, step: time.Second}).Now

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	points := e.MetricTimeSeries(metrics.MetricEmailsSent, ScopeAll, RangeCustom, GranularityDaily, from, from)

	require.Len(t, points, 1)
	assert.Equal(t, float64(budgetCheckEvery), points[0].Value)
	assert.Less(t, points[0].Value, 5000.0)
}

func TestWeeklyBucketCount(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	// A Monday-aligned span of exactly N weeks is N buckets, not N+1.
	assert.Equal(t, 7, bucketCount(GranularityWeekly, monday, monday.AddDate(0, 0, 49)))
	assert.Equal(t, 8, bucketCount(GranularityWeekly, monday, monday.AddDate(0, 0, 50)))
	assert.Equal(t, 1, bucketCount(GranularityWeekly, monday, monday.AddDate(0, 0, 7)))
	// A mid-week start still counts its partial leading week.
	wed := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, bucketCount(GranularityWeekly, wed, wed.AddDate(0, 0, 2)))
	assert.Equal(t, 2, bucketCount(GranularityWeekly, wed, wed.AddDate(0, 0, 6)))
}

func TestWeeklyEscalationBoundaryExact(t *testing.T) {
	e := testEngine()
	// A Monday-aligned window of exactly 104 weeks stays weekly; one
	// more day escalates to monthly.
	monday := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	points := e.MetricTimeSeries(metrics.MetricEmailsSent, ScopeAll, RangeCustom, GranularityWeekly, monday, monday.AddDate(0, 0, 727))
	require.Len(t, points, 104)
	assert.Contains(t, points[0].Label, " - ")

	points = e.MetricTimeSeries(metrics.MetricEmailsSent, ScopeAll, RangeCustom, GranularityWeekly, monday, monday.AddDate(0, 0, 728))
	require.NotEmpty(t, points)
	assert.NotContains(t, points[0].Label, " - ")
}

func TestScopeSelectsCollections(t *testing.T) {
	e := testEngine()
	e.LoadCampaigns([]metrics.CampaignRecord{
		campaign("c", day(2024, 3, 1), metrics.Counters{Revenue: 100}),
	}, 0)
	e.LoadFlows([]metrics.FlowEmailRecord{
		{ID: "f", FlowName: "W", SentDate: metrics.NewTime(day(2024, 3, 2)), Counters: metrics.Counters{Revenue: 40}},
	}, 0)

	sum := func(points []metrics.TimeSeriesPoint) float64 {
		var t float64
		for _, p := range points {
			t += p.Value
		}
		return t
	}
	assert.Equal(t, 140.0, sum(e.MetricTimeSeries(metrics.MetricRevenue, ScopeAll, RangeAll, GranularityDaily, time.Time{}, time.Time{})))
	assert.Equal(t, 100.0, sum(e.MetricTimeSeries(metrics.MetricRevenue, ScopeCampaigns, RangeAll, GranularityDaily, time.Time{}, time.Time{})))
	assert.Equal(t, 40.0, sum(e.MetricTimeSeries(metrics.MetricRevenue, ScopeFlows, RangeAll, GranularityDaily, time.Time{}, time.Time{})))
}
