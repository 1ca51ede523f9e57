package metrics

// Metric is the closed set of dashboard metrics. Every metric maps to a
// typed numerator/denominator pair over Counters, so there is no
// string-keyed field lookup anywhere in the aggregation path.
type Metric string

const (
	MetricRevenue         Metric = "revenue"
	MetricAvgOrderValue   Metric = "avgOrderValue"
	MetricRevenuePerEmail Metric = "revenuePerEmail"
	MetricOpenRate        Metric = "openRate"
	MetricClickRate       Metric = "clickRate"
	MetricClickToOpenRate Metric = "clickToOpenRate"
	MetricConversionRate  Metric = "conversionRate"
	MetricUnsubscribeRate Metric = "unsubscribeRate"
	MetricSpamRate        Metric = "spamRate"
	MetricBounceRate      Metric = "bounceRate"
	MetricEmailsSent      Metric = "emailsSent"
	MetricTotalOrders     Metric = "totalOrders"
)

type metricDef struct {
	numerator   func(Counters) float64
	denominator func(Counters) float64 // nil: plain sum, no division
	percent     bool
	adverse     bool // a decrease is an improvement
}

var metricDefs = map[Metric]metricDef{
	MetricRevenue: {
		numerator: func(c Counters) float64 { return c.Revenue },
	},
	MetricEmailsSent: {
		numerator: func(c Counters) float64 { return float64(c.EmailsSent) },
	},
	MetricTotalOrders: {
		numerator: func(c Counters) float64 { return float64(c.TotalOrders) },
	},
	MetricAvgOrderValue: {
		numerator:   func(c Counters) float64 { return c.Revenue },
		denominator: func(c Counters) float64 { return float64(c.TotalOrders) },
	},
	MetricRevenuePerEmail: {
		numerator:   func(c Counters) float64 { return c.Revenue },
		denominator: func(c Counters) float64 { return float64(c.EmailsSent) },
	},
	MetricOpenRate: {
		numerator:   func(c Counters) float64 { return float64(c.UniqueOpens) },
		denominator: func(c Counters) float64 { return float64(c.EmailsSent) },
		percent:     true,
	},
	MetricClickRate: {
		numerator:   func(c Counters) float64 { return float64(c.UniqueClicks) },
		denominator: func(c Counters) float64 { return float64(c.EmailsSent) },
		percent:     true,
	},
	MetricClickToOpenRate: {
		numerator:   func(c Counters) float64 { return float64(c.UniqueClicks) },
		denominator: func(c Counters) float64 { return float64(c.UniqueOpens) },
		percent:     true,
	},
	MetricConversionRate: {
		numerator:   func(c Counters) float64 { return float64(c.TotalOrders) },
		denominator: func(c Counters) float64 { return float64(c.EmailsSent) },
		percent:     true,
	},
	MetricUnsubscribeRate: {
		numerator:   func(c Counters) float64 { return float64(c.Unsubscribes) },
		denominator: func(c Counters) float64 { return float64(c.EmailsSent) },
		percent:     true,
		adverse:     true,
	},
	MetricSpamRate: {
		numerator:   func(c Counters) float64 { return float64(c.SpamComplaints) },
		denominator: func(c Counters) float64 { return float64(c.EmailsSent) },
		percent:     true,
		adverse:     true,
	},
	MetricBounceRate: {
		numerator:   func(c Counters) float64 { return float64(c.Bounces) },
		denominator: func(c Counters) float64 { return float64(c.EmailsSent) },
		percent:     true,
		adverse:     true,
	},
}

// MetricFromString resolves an API metric name. Unknown names return
// ok=false; callers fall back to a zeroed result instead of failing.
func MetricFromString(s string) (Metric, bool) {
	m := Metric(s)
	_, ok := metricDefs[m]
	return m, ok
}

// Valid reports whether the metric belongs to the closed set.
func (m Metric) Valid() bool {
	_, ok := metricDefs[m]
	return ok
}

// Adverse reports whether a decrease in this metric is an improvement
// (unsubscribe, spam and bounce rates).
func (m Metric) Adverse() bool {
	return metricDefs[m].adverse
}

// Compute derives the metric value from summed counters. A zero
// denominator yields exactly 0, never NaN or Inf.
func (m Metric) Compute(c Counters) float64 {
	def, ok := metricDefs[m]
	if !ok {
		return 0
	}
	num := def.numerator(c)
	if def.denominator == nil {
		return num
	}
	den := def.denominator(c)
	if den == 0 {
		return 0
	}
	v := num / den
	if def.percent {
		v *= 100
	}
	return v
}

// AllMetrics returns the closed metric set in a stable order.
func AllMetrics() []Metric {
	return []Metric{
		MetricRevenue, MetricAvgOrderValue, MetricRevenuePerEmail,
		MetricOpenRate, MetricClickRate, MetricClickToOpenRate,
		MetricConversionRate, MetricUnsubscribeRate, MetricSpamRate,
		MetricBounceRate, MetricEmailsSent, MetricTotalOrders,
	}
}
