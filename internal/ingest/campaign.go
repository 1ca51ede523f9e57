package ingest

import (
	"fmt"
	"log"

	"github.com/pkom79/email-metrics-cloud-sub006/internal/metrics"
)

// TransformCampaigns maps raw campaign-report rows into normalized
// records. A row whose send date fails every parse strategy, or lands
// outside the plausible send window, is dropped; the second return value
// is the number of rows dropped that way.
func TransformCampaigns(rows []Row) ([]metrics.CampaignRecord, int) {
	records := make([]metrics.CampaignRecord, 0, len(rows))
	skipped := 0

	for i, row := range rows {
		rawDate := field(row, "Send Time", "Sent At", "Send Date", "Date")
		sentDate, ok := ParseDate(rawDate)
		if !ok || !PlausibleSendDate(sentDate) {
			skipped++
			continue
		}

		id := field(row, "Campaign ID", "ID")
		if id == "" {
			id = fmt.Sprintf("campaign-%d", i+1)
		}

		records = append(records, metrics.CampaignRecord{
			ID:        id,
			Name:      field(row, "Campaign Name", "Name"),
			Subject:   field(row, "Subject", "Subject Line"),
			SentDate:  metrics.NewTime(sentDate),
			Counters:  countersFromRow(row),
			DayOfWeek: int(sentDate.Weekday()),
			HourOfDay: sentDate.Hour(),
		})
	}

	if skipped > 0 {
		log.Printf("[Ingest] campaigns: dropped %d of %d rows with unparseable send dates", skipped, len(rows))
	}
	return records, skipped
}

// countersFromRow extracts the raw counter columns shared by campaign
// and flow reports.
func countersFromRow(row Row) metrics.Counters {
	return metrics.Counters{
		EmailsSent:     ParseCount(field(row, "Total Recipients", "Recipients", "Emails Sent", "Sent", "Delivered")),
		UniqueOpens:    ParseCount(field(row, "Unique Opens", "Opens")),
		UniqueClicks:   ParseCount(field(row, "Unique Clicks", "Clicks")),
		TotalOrders:    ParseCount(field(row, "Unique Placed Order", "Placed Order", "Total Orders", "Orders")),
		Revenue:        ParseNumber(field(row, "Placed Order Value", "Revenue", "Total Revenue", "Order Value")),
		Unsubscribes:   ParseCount(field(row, "Unsubscribes", "Unsubscribed")),
		SpamComplaints: ParseCount(field(row, "Spam Complaints", "Spam", "Complaints")),
		Bounces:        ParseCount(field(row, "Bounces", "Bounced", "Total Bounces")),
	}
}
