package ingest

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/pkom79/email-metrics-cloud-sub006/internal/metrics"
)

// TransformFlows maps raw flow-report rows into normalized records.
// Sequence positions are inferred from the order in which distinct
// messages first appear within each named flow: the provider exports
// flow steps in sequence order, so the first message of a flow is step
// 1, the next distinct message step 2, and so on.
func TransformFlows(rows []Row) ([]metrics.FlowEmailRecord, int) {
	records := make([]metrics.FlowEmailRecord, 0, len(rows))
	skipped := 0

	// flow name -> message name -> assigned 1-based position
	positions := make(map[string]map[string]int)

	for i, row := range rows {
		rawDate := field(row, "Day", "Send Time", "Sent At", "Date")
		sentDate, ok := ParseDate(rawDate)
		if !ok || !PlausibleSendDate(sentDate) {
			skipped++
			continue
		}

		flowName := field(row, "Flow Name", "Flow")
		if flowName == "" {
			flowName = "Unnamed Flow"
		}
		messageName := field(row, "Flow Message Name", "Message Name", "Email Name", "Message")
		if messageName == "" {
			messageName = fmt.Sprintf("message-%d", i+1)
		}

		msgs, ok := positions[flowName]
		if !ok {
			msgs = make(map[string]int)
			positions[flowName] = msgs
		}
		pos, ok := msgs[messageName]
		if !ok {
			pos = len(msgs) + 1
			msgs[messageName] = pos
		}

		id := field(row, "Flow Message ID", "Message ID", "ID")
		if id == "" {
			id = fmt.Sprintf("flow-%d", i+1)
		}

		status := strings.ToLower(field(row, "Flow Message Status", "Status", "Flow Status"))
		if status == "" {
			status = "live"
		}

		records = append(records, metrics.FlowEmailRecord{
			ID:               id,
			FlowName:         flowName,
			Name:             messageName,
			Status:           status,
			SentDate:         metrics.NewTime(sentDate),
			Counters:         countersFromRow(row),
			SequencePosition: pos,
			DayOfWeek:        int(sentDate.Weekday()),
			HourOfDay:        sentDate.Hour(),
		})
	}

	if skipped > 0 {
		log.Printf("[Ingest] flows: dropped %d of %d rows with unparseable send dates", skipped, len(rows))
	}
	return records, skipped
}

// UniqueFlowNames returns the distinct flow names in first-seen order.
func UniqueFlowNames(records []metrics.FlowEmailRecord) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range records {
		if !seen[r.FlowName] {
			seen[r.FlowName] = true
			names = append(names, r.FlowName)
		}
	}
	return names
}

// FlowSequenceInfo returns the ordered distinct sequence positions
// observed for a flow, used to build per-step series.
func FlowSequenceInfo(records []metrics.FlowEmailRecord, flowName string) []int {
	seen := make(map[int]bool)
	var steps []int
	for _, r := range records {
		if r.FlowName != flowName || seen[r.SequencePosition] {
			continue
		}
		seen[r.SequencePosition] = true
		steps = append(steps, r.SequencePosition)
	}
	sort.Ints(steps)
	return steps
}
