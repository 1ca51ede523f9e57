package metrics

import "time"

// Counters holds the raw per-send counters shared by campaign and flow
// records. Rates are never stored alongside them; they are derived by
// summing counters over an aggregation window and dividing once.
type Counters struct {
	EmailsSent     int64   `json:"emails_sent"`
	UniqueOpens    int64   `json:"unique_opens"`
	UniqueClicks   int64   `json:"unique_clicks"`
	TotalOrders    int64   `json:"total_orders"`
	Revenue        float64 `json:"revenue"`
	Unsubscribes   int64   `json:"unsubscribes"`
	SpamComplaints int64   `json:"spam_complaints"`
	Bounces        int64   `json:"bounces"`
}

// Add accumulates another set of counters into c.
func (c *Counters) Add(o Counters) {
	c.EmailsSent += o.EmailsSent
	c.UniqueOpens += o.UniqueOpens
	c.UniqueClicks += o.UniqueClicks
	c.TotalOrders += o.TotalOrders
	c.Revenue += o.Revenue
	c.Unsubscribes += o.Unsubscribes
	c.SpamComplaints += o.SpamComplaints
	c.Bounces += o.Bounces
}

// CampaignRecord is one normalized campaign send. Records are immutable
// once produced by the transformer; a new upload replaces the whole
// collection rather than patching individual records.
type CampaignRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Subject  string `json:"subject,omitempty"`
	SentDate Time   `json:"sent_date"`
	Counters
	DayOfWeek int `json:"day_of_week"` // 0=Sunday .. 6=Saturday
	HourOfDay int `json:"hour_of_day"` // 0-23
}

// FlowEmailRecord is one normalized automated-flow send.
type FlowEmailRecord struct {
	ID       string `json:"id"`
	FlowName string `json:"flow_name"`
	Name     string `json:"name"`
	Status   string `json:"status"` // e.g. "live", "draft"
	SentDate Time   `json:"sent_date"`
	Counters
	SequencePosition int `json:"sequence_position"` // 1-based step index within the flow
	DayOfWeek        int `json:"day_of_week"`
	HourOfDay        int `json:"hour_of_day"`
}

// SubscriberRecord is one normalized subscriber profile.
type SubscriberRecord struct {
	ID                    string  `json:"id"`
	Email                 string  `json:"email,omitempty"`
	ProfileCreated        Time    `json:"profile_created"`
	FirstActive           *Time   `json:"first_active,omitempty"`
	LastActive            *Time   `json:"last_active,omitempty"`
	LastOpen              *Time   `json:"last_open,omitempty"`
	LastClick             *Time   `json:"last_click,omitempty"`
	EmailConsent          bool    `json:"email_consent"`
	EmailConsentTimestamp *Time   `json:"email_consent_timestamp,omitempty"`
	CanReceiveEmail       bool    `json:"can_receive_email"`
	IsBuyer               bool    `json:"is_buyer"`
	TotalClv              float64 `json:"total_clv"`
	LifetimeInDays        int     `json:"lifetime_in_days"`
}

// AggregatedMetrics is the single-pass aggregate over a window. Rate
// fields are weighted: summed counters divided once, percent-scaled.
type AggregatedMetrics struct {
	TotalRevenue      float64 `json:"total_revenue"`
	AverageOrderValue float64 `json:"average_order_value"`
	RevenuePerEmail   float64 `json:"revenue_per_email"`
	OpenRate          float64 `json:"open_rate"`
	ClickRate         float64 `json:"click_rate"`
	ClickToOpenRate   float64 `json:"click_to_open_rate"`
	ConversionRate    float64 `json:"conversion_rate"`
	UnsubscribeRate   float64 `json:"unsubscribe_rate"`
	SpamRate          float64 `json:"spam_rate"`
	BounceRate        float64 `json:"bounce_rate"`
	TotalEmailsSent   int64   `json:"total_emails_sent"`
	TotalOrders       int64   `json:"total_orders"`
}

// FromCounters derives the full aggregate from summed counters.
func FromCounters(c Counters) AggregatedMetrics {
	agg := AggregatedMetrics{
		TotalRevenue:    c.Revenue,
		TotalEmailsSent: c.EmailsSent,
		TotalOrders:     c.TotalOrders,
	}
	if c.TotalOrders > 0 {
		agg.AverageOrderValue = c.Revenue / float64(c.TotalOrders)
	}
	if c.EmailsSent > 0 {
		agg.RevenuePerEmail = c.Revenue / float64(c.EmailsSent)
		agg.OpenRate = float64(c.UniqueOpens) / float64(c.EmailsSent) * 100
		agg.ClickRate = float64(c.UniqueClicks) / float64(c.EmailsSent) * 100
		agg.ConversionRate = float64(c.TotalOrders) / float64(c.EmailsSent) * 100
		agg.UnsubscribeRate = float64(c.Unsubscribes) / float64(c.EmailsSent) * 100
		agg.SpamRate = float64(c.SpamComplaints) / float64(c.EmailsSent) * 100
		agg.BounceRate = float64(c.Bounces) / float64(c.EmailsSent) * 100
	}
	if c.UniqueOpens > 0 {
		agg.ClickToOpenRate = float64(c.UniqueClicks) / float64(c.UniqueOpens) * 100
	}
	return agg
}

// TimeSeriesPoint is one bucket of a metric time series.
type TimeSeriesPoint struct {
	Value float64 `json:"value"`
	Label string  `json:"label"`
}

// DayOfWeekPerformance is one slot of the day-of-week breakdown.
type DayOfWeekPerformance struct {
	Day          int     `json:"day"` // 0=Sunday .. 6=Saturday
	DayName      string  `json:"day_name"`
	Value        float64 `json:"value"`
	EmailsSent   int64   `json:"emails_sent"`
	Campaigns    int     `json:"campaigns"`
	ShareOfSends float64 `json:"share_of_sends"` // percent of all sends in this slot
}

// HourOfDayPerformance is one slot of the hour-of-day breakdown.
type HourOfDayPerformance struct {
	Hour         int     `json:"hour"` // 0-23
	Value        float64 `json:"value"`
	EmailsSent   int64   `json:"emails_sent"`
	Campaigns    int     `json:"campaigns"`
	ShareOfSends float64 `json:"share_of_sends"`
}

// PeriodChange is the result of a period-over-period comparison.
type PeriodChange struct {
	CurrentValue   float64 `json:"current_value"`
	PreviousValue  float64 `json:"previous_value"`
	ChangePercent  float64 `json:"change_percent"`
	IsPositive     bool    `json:"is_positive"`
	CurrentPeriod  Period  `json:"current_period"`
	PreviousPeriod Period  `json:"previous_period"`
}

// Period is a closed date window.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
