package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"tesoreria/internal/core"
	"tesoreria/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.uptime).String(),
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			checks["store"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	} else {
		checks["store"] = "not_checked"
	}

	// A lagging store still serves from memory, so it does not fail readiness
	ledgerCheck := "ok"
	if s.svc.Reconciler().Dirty() {
		ledgerCheck = "store_lagging"
	}
	checks["ledger"] = map[string]any{
		"status":    ledgerCheck,
		"movements": s.svc.Ledger().Len(),
	}

	checks["cache"] = map[string]any{
		"export_entries": s.exportCache.Size(),
		"status":         "ok",
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	response := map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(response)
}

// handleMetrics provides application metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.tracer.GetMetrics()
	cacheStats := s.exportCache.Stats()

	dirty := 0
	if s.svc.Reconciler().Dirty() {
		dirty = 1
	}

	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
		fmt.Fprintf(w, "%s %v\n\n", name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_request_duration_avg_microseconds", "gauge", "Average request duration", traceMetrics.AverageResponseTime)
	metric("movements_added_total", "counter", "Movements recorded through quick add", atomic.LoadInt64(&s.metrics.movementsAdded))
	metric("closings_saved_total", "counter", "Cash closings saved", atomic.LoadInt64(&s.metrics.closingsSaved))
	metric("ledger_movements", "gauge", "Movements currently in the ledger", s.svc.Ledger().Len())
	metric("ledger_store_lagging", "gauge", "1 while the store misses ledger changes", dirty)
	metric("export_cache_hits_total", "counter", "Export cache hits", cacheStats.Hits)
	metric("export_cache_misses_total", "counter", "Export cache misses", cacheStats.Misses)
	metric("export_cache_entries", "gauge", "Current export cache entries", cacheStats.Size)
	metric("rate_limit_hits_total", "counter", "Total rate limit hits", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.metrics.uptime).Seconds()))
}

type movementsResponse struct {
	Movements []core.Movement `json:"movements"`
	Count     int             `json:"count"`
}

type balanceResponse struct {
	Totals       core.Totals `json:"totals"`
	Movements    int         `json:"movements"`
	StoreLagging bool        `json:"store_lagging"`
}

// handleListMovements lists the ledger, or one date of it with ?date=.
func (s *Server) handleListMovements(w http.ResponseWriter, r *http.Request) {
	date, err := ParseOptionalDate(r.URL.Query().Get("date"))
	if err != nil {
		FromError(err).Write(w)
		return
	}

	var ms []core.Movement
	if date != nil {
		ms = s.svc.Ledger().OnDate(*date)
	} else {
		ms = s.svc.Movements()
	}
	if ms == nil {
		ms = []core.Movement{}
	}
	NewResponse().Data(movementsResponse{Movements: ms, Count: len(ms)}).Write(w)
}

// handleCreateMovement records one movement outside of a closing.
func (s *Server) handleCreateMovement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := ParseBody(r)
	if err != nil {
		FromError(err).Write(w)
		return
	}

	kind, err := core.ParseKind(body.Get("kind"))
	if err != nil {
		FromError(fmt.Errorf("%w: %w", core.ErrValidationRejected, err)).Write(w)
		return
	}
	date, err := ParseDateOr(body.Get("date"), core.Today())
	if err != nil {
		FromError(err).Write(w)
		return
	}

	m, err := s.svc.QuickAdd(ctx, kind, date, body.Get("description"), body.Get("amount"))
	if err != nil {
		if StatusFor(err) >= http.StatusInternalServerError {
			s.access.LogError(ctx, "Failed to add movement", err, log.ComponentLedger, log.OpCreate, nil)
		}
		FromError(err).Write(w)
		return
	}

	atomic.AddInt64(&s.metrics.movementsAdded, 1)
	s.access.LogMovementAdded(ctx, m.ID, m.Date.String(), string(m.Kind), m.Amount.String())

	NewResponse().
		Status(http.StatusCreated).
		Data(m).
		Success("Movement added.").
		Write(w)
}

// handleDeleteMovement removes a movement by id.
func (s *Server) handleDeleteMovement(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.svc.Remove(r.Context(), id); err != nil {
		FromError(err).Write(w)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Movement removed",
		log.FieldMovementID, id,
		log.FieldOperation, log.OpDelete)

	NewResponse().
		Data(s.balance()).
		Success("Movement removed.").
		Write(w)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	NewResponse().Data(s.balance()).Write(w)
}

func (s *Server) balance() balanceResponse {
	return balanceResponse{
		Totals:       s.svc.Totals(),
		Movements:    s.svc.Ledger().Len(),
		StoreLagging: s.svc.Reconciler().Dirty(),
	}
}
