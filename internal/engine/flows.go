package engine

import (
	"github.com/pkom79/email-metrics-cloud-sub006/internal/ingest"
	"github.com/pkom79/email-metrics-cloud-sub006/internal/metrics"
)

// FlowNames returns the distinct flow names in first-seen order.
func (e *Engine) FlowNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return ingest.UniqueFlowNames(e.flows)
}

// FlowSequenceInfo returns the ordered distinct sequence positions
// observed for a flow.
func (e *Engine) FlowSequenceInfo(flowName string) []int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return ingest.FlowSequenceInfo(e.flows, flowName)
}

// FlowStep is the aggregate for one sequence position of a flow.
type FlowStep struct {
	Position int                       `json:"position"`
	Messages int                       `json:"messages"`
	Metrics  metrics.AggregatedMetrics `json:"metrics"`
}

// FlowStepMetrics builds a per-step aggregate series for one flow,
// ordered by sequence position. Weighted-ratio discipline applies per
// step exactly as it does per time bucket.
func (e *Engine) FlowStepMetrics(flowName string) []FlowStep {
	e.mu.RLock()
	defer e.mu.RUnlock()

	steps := ingest.FlowSequenceInfo(e.flows, flowName)
	if len(steps) == 0 {
		return []FlowStep{}
	}

	counters := make(map[int]*metrics.Counters, len(steps))
	messages := make(map[int]int, len(steps))
	for _, r := range e.flows {
		if r.FlowName != flowName || !plausibleRecordDate(r.SentDate.Time) {
			continue
		}
		c, ok := counters[r.SequencePosition]
		if !ok {
			c = &metrics.Counters{}
			counters[r.SequencePosition] = c
		}
		c.Add(r.Counters)
		messages[r.SequencePosition]++
	}

	out := make([]FlowStep, 0, len(steps))
	for _, pos := range steps {
		c := metrics.Counters{}
		if got := counters[pos]; got != nil {
			c = *got
		}
		out = append(out, FlowStep{
			Position: pos,
			Messages: messages[pos],
			Metrics:  metrics.FromCounters(c),
		})
	}
	return out
}
