package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkom79/email-metrics-cloud-sub006/internal/engine"
	"github.com/pkom79/email-metrics-cloud-sub006/internal/ingest"
	"github.com/pkom79/email-metrics-cloud-sub006/internal/metrics"
)

// maxUploadBytes bounds multipart parsing for report uploads.
const maxUploadBytes = 100 << 20 // 100MB

// sessionHeader carries the session identity; a missing header gets a
// fresh identity minted and echoed back.
const sessionHeader = "X-Session-ID"

// Handlers holds the HTTP handlers for the query surface.
type Handlers struct {
	sessions *Sessions
}

// NewHandlers creates the handler set over a session registry.
func NewHandlers(sessions *Sessions) *Handlers {
	return &Handlers{sessions: sessions}
}

func (h *Handlers) engineFor(w http.ResponseWriter, r *http.Request) *engine.Engine {
	identity := r.Header.Get(sessionHeader)
	if identity == "" {
		identity = uuid.NewString()
	}
	w.Header().Set(sessionHeader, identity)
	return h.sessions.Get(r.Context(), identity)
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Upload ingests one report file (campaigns, flows or subscribers) and
// replaces that kind's collection. Per-row parse failures are returned
// in the summary alongside whatever rows did parse.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	kind := engine.Kind(chi.URLParam(r, "kind"))
	switch kind {
	case engine.KindCampaigns, engine.KindFlows, engine.KindSubscribers:
	default:
		respondError(w, http.StatusNotFound, fmt.Sprintf("unknown upload kind %q", kind))
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file field: "+err.Error())
		return
	}
	defer file.Close()

	eng := h.engineFor(w, r)
	eng.SetProgress(kind, 0)

	// Parsing owns 0-90 of the progress bar; transform and load finish it.
	res := ingest.ReadRows(file, header.Size, func(f float64) {
		eng.SetProgress(kind, int(f*90))
	})
	if res.Err != nil {
		eng.SetError(kind, res.Err.Error())
		respondError(w, http.StatusBadRequest, res.Err.Error())
		return
	}

	var records, skipped int
	switch kind {
	case engine.KindCampaigns:
		recs, sk := ingest.TransformCampaigns(res.Rows)
		eng.LoadCampaigns(recs, sk)
		records, skipped = len(recs), sk
	case engine.KindFlows:
		recs, sk := ingest.TransformFlows(res.Rows)
		eng.LoadFlows(recs, sk)
		records, skipped = len(recs), sk
	case engine.KindSubscribers:
		recs, sk := ingest.TransformSubscribers(res.Rows)
		eng.LoadSubscribers(recs, sk)
		records, skipped = len(recs), sk
	}

	log.Printf("[API] %s upload: %d rows, %d records, %d skipped, %d row errors",
		kind, len(res.Rows), records, skipped, len(res.Errors))
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"kind":       kind,
		"rows":       len(res.Rows),
		"records":    records,
		"skipped":    skipped,
		"row_errors": res.Errors,
	})
}

func queryWindow(r *http.Request) (rangeSpec string, from, to time.Time) {
	rangeSpec = r.URL.Query().Get("range")
	if rangeSpec == "" {
		rangeSpec = "30d"
	}
	if f := r.URL.Query().Get("from"); f != "" {
		if t, err := time.Parse("2006-01-02", f); err == nil {
			from = t
		}
	}
	if t0 := r.URL.Query().Get("to"); t0 != "" {
		if t, err := time.Parse("2006-01-02", t0); err == nil {
			to = t
		}
	}
	return rangeSpec, from, to
}

func queryScope(r *http.Request) engine.Scope {
	switch engine.Scope(r.URL.Query().Get("scope")) {
	case engine.ScopeCampaigns:
		return engine.ScopeCampaigns
	case engine.ScopeFlows:
		return engine.ScopeFlows
	default:
		return engine.ScopeAll
	}
}

// TimeSeries serves the bucketed series for one metric.
func (h *Handlers) TimeSeries(w http.ResponseWriter, r *http.Request) {
	metric, ok := metrics.MetricFromString(r.URL.Query().Get("metric"))
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown metric")
		return
	}
	rangeSpec, from, to := queryWindow(r)
	granularity := engine.Granularity(r.URL.Query().Get("granularity"))

	eng := h.engineFor(w, r)
	points := eng.MetricTimeSeries(metric, queryScope(r), rangeSpec, granularity, from, to)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"metric": metric,
		"range":  rangeSpec,
		"points": points,
	})
}

// Summary serves the aggregate for a window plus period-over-period
// deltas for every metric.
func (h *Handlers) Summary(w http.ResponseWriter, r *http.Request) {
	rangeSpec, from, to := queryWindow(r)
	eng := h.engineFor(w, r)

	changes := make(map[metrics.Metric]metrics.PeriodChange)
	for _, m := range metrics.AllMetrics() {
		changes[m] = eng.PeriodOverPeriodChange(m, engine.ScopeAll, rangeSpec, from, to)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"range":     rangeSpec,
		"aggregate": eng.AggregatedMetricsForRange(rangeSpec, from, to),
		"changes":   changes,
	})
}

// Change serves the period-over-period delta for one metric.
func (h *Handlers) Change(w http.ResponseWriter, r *http.Request) {
	metric, ok := metrics.MetricFromString(r.URL.Query().Get("metric"))
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown metric")
		return
	}
	rangeSpec, from, to := queryWindow(r)
	eng := h.engineFor(w, r)
	respondJSON(w, http.StatusOK, eng.PeriodOverPeriodChange(metric, queryScope(r), rangeSpec, from, to))
}

// DayOfWeek serves the weekday breakdown for one metric.
func (h *Handlers) DayOfWeek(w http.ResponseWriter, r *http.Request) {
	metric, ok := metrics.MetricFromString(r.URL.Query().Get("metric"))
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown metric")
		return
	}
	eng := h.engineFor(w, r)
	respondJSON(w, http.StatusOK, eng.CampaignPerformanceByDayOfWeek(metric))
}

// HourOfDay serves the hourly breakdown for one metric, best hour first.
func (h *Handlers) HourOfDay(w http.ResponseWriter, r *http.Request) {
	metric, ok := metrics.MetricFromString(r.URL.Query().Get("metric"))
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown metric")
		return
	}
	eng := h.engineFor(w, r)
	respondJSON(w, http.StatusOK, eng.CampaignPerformanceByHourOfDay(metric))
}

// Flows lists the distinct flow names.
func (h *Handlers) Flows(w http.ResponseWriter, r *http.Request) {
	eng := h.engineFor(w, r)
	names := eng.FlowNames()
	if names == nil {
		names = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"flows": names})
}

// FlowSequence serves per-step aggregates for one flow.
func (h *Handlers) FlowSequence(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	eng := h.engineFor(w, r)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"flow":      name,
		"positions": eng.FlowSequenceInfo(name),
		"steps":     eng.FlowStepMetrics(name),
	})
}

// State serves the per-kind load states driving upload feedback.
func (h *Handlers) State(w http.ResponseWriter, r *http.Request) {
	eng := h.engineFor(w, r)
	campaigns, flows, subscribers := eng.Counts()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"states": eng.States(),
		"counts": map[string]int{
			"campaigns":   campaigns,
			"flows":       flows,
			"subscribers": subscribers,
		},
	})
}

// Reset clears all collections for the session.
func (h *Handlers) Reset(w http.ResponseWriter, r *http.Request) {
	eng := h.engineFor(w, r)
	eng.Reset()
	respondJSON(w, http.StatusOK, map[string]interface{}{"reset": true})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] encoding response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
