package ingest

import (
	"fmt"
	"log"
	"time"

	"github.com/pkom79/email-metrics-cloud-sub006/internal/metrics"
)

// TransformSubscribers maps raw subscriber-profile rows into normalized
// records. ProfileCreated is the primary date: a row where it cannot be
// parsed is dropped. Secondary dates are optional; sentinel values like
// NEVER_SUBSCRIBED in the consent-timestamp column resolve to absent,
// never to an error.
func TransformSubscribers(rows []Row) ([]metrics.SubscriberRecord, int) {
	records := make([]metrics.SubscriberRecord, 0, len(rows))
	skipped := 0
	now := time.Now()

	for i, row := range rows {
		rawCreated := field(row, "Profile Created On", "Created", "Date Added", "Created At")
		created, ok := ParseDate(rawCreated)
		if !ok {
			skipped++
			continue
		}

		id := field(row, "Klaviyo ID", "Profile ID", "ID")
		if id == "" {
			id = fmt.Sprintf("subscriber-%d", i+1)
		}

		consent := ParseBool(field(row, "Email Marketing Consent", "Accepts Marketing", "Consent"))
		canReceive := consent
		if v := field(row, "Can Receive Email Marketing", "Can Receive Email"); v != "" {
			canReceive = ParseBool(v)
		}

		clv := ParseNumber(field(row, "Historic Customer Lifetime Value", "Total CLV", "Total Customer Lifetime Value", "CLV"))

		rec := metrics.SubscriberRecord{
			ID:              id,
			Email:           field(row, "Email", "Email Address"),
			ProfileCreated:  metrics.NewTime(created),
			FirstActive:     optionalDate(row, "First Active"),
			LastActive:      optionalDate(row, "Last Active"),
			LastOpen:        optionalDate(row, "Last Open", "Last Opened"),
			LastClick:       optionalDate(row, "Last Click", "Last Clicked"),
			EmailConsent:    consent,
			CanReceiveEmail: canReceive,
			IsBuyer:         clv > 0 || ParseBool(field(row, "Is Buyer", "Buyer")),
			TotalClv:        clv,
		}

		// The consent timestamp column carries NEVER_SUBSCRIBED for
		// profiles that never opted in; those resolve to absent.
		rec.EmailConsentTimestamp = optionalDate(row, "Email Marketing Consent Timestamp", "Consent Timestamp")

		lifetimeEnd := now
		if rec.LastActive != nil && rec.LastActive.After(created) {
			lifetimeEnd = rec.LastActive.Time
		}
		if days := int(lifetimeEnd.Sub(created).Hours() / 24); days > 0 {
			rec.LifetimeInDays = days
		}

		records = append(records, rec)
	}

	if skipped > 0 {
		log.Printf("[Ingest] subscribers: dropped %d of %d rows with unparseable created dates", skipped, len(rows))
	}
	return records, skipped
}

func optionalDate(row Row, aliases ...string) *metrics.Time {
	raw := field(row, aliases...)
	if raw == "" {
		return nil
	}
	t, ok := ParseDate(raw)
	if !ok {
		return nil
	}
	mt := metrics.NewTime(t)
	return &mt
}
