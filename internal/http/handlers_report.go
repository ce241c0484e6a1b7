package http

import (
	"fmt"
	"net/http"
	"strings"

	"tesoreria/internal/core"
	"tesoreria/internal/export"
	"tesoreria/internal/log"
	"tesoreria/internal/report"
)

const msgRangeClamped = "The end date was before the start date and was moved to it."

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	NewResponse().Data(s.svc.View().Report()).Write(w)
}

// handleSetRange sets both bounds of the report filter. Omitted or blank
// bounds are removed.
func (s *Server) handleSetRange(w http.ResponseWriter, r *http.Request) {
	body, err := ParseBody(r)
	if err != nil {
		FromError(err).Write(w)
		return
	}
	start, err := ParseOptionalDate(body.Get("start"))
	if err != nil {
		FromError(err).Write(w)
		return
	}
	end, err := ParseOptionalDate(body.Get("end"))
	if err != nil {
		FromError(err).Write(w)
		return
	}

	rep, clamped := s.svc.View().SetRange(start, end)
	resp := NewResponse().Data(rep)
	if clamped {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Report range clamped",
			"start", start.String(),
			"end", end.String(),
			"error", core.ErrRangeInverted)
		resp.Warning(msgRangeClamped)
	}
	resp.Write(w)
}

// handleClearRange disables the filter and keeps its bounds.
func (s *Server) handleClearRange(w http.ResponseWriter, r *http.Request) {
	NewResponse().Data(s.svc.View().Clear()).Write(w)
}

func (s *Server) handleResetRange(w http.ResponseWriter, r *http.Request) {
	NewResponse().Data(s.svc.View().Reset()).Write(w)
}

// handleExport serves the current report view as a download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("format")
	if strings.TrimSpace(name) == "" {
		name = string(export.FormatMarkdown)
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		FromError(err).Write(w)
		return
	}

	key := s.exportKey(format)
	e, hit := s.exportCache.Get(key)
	if !hit {
		e, err = s.svc.Export(format)
		if err != nil {
			if StatusFor(err) >= http.StatusInternalServerError {
				s.access.LogError(r.Context(), "Failed to render export", err, log.ComponentExport, log.OpExport, nil)
			}
			FromError(err).Write(w)
			return
		}
		s.exportCache.Set(key, e)
	}

	cacheStatus := "MISS"
	if hit {
		cacheStatus = "HIT"
	}
	w.Header().Set("Content-Type", e.Format.ContentType())
	w.Header().Set("Content-Disposition", contentDisposition(e.Name))
	w.Header().Set("X-Cache", cacheStatus)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(e.Data)
}

// exportKey identifies a rendering: the ledger version covers every
// mutation and the filter covers the view.
func (s *Server) exportKey(f export.Format) string {
	return fmt.Sprintf("%d|%s|%s", s.svc.Ledger().Version(), filterKey(s.svc.View().Filter()), f)
}

func filterKey(f report.Filter) string {
	bound := func(d *core.Date) string {
		if d == nil {
			return "-"
		}
		return d.String()
	}
	return fmt.Sprintf("%t:%s:%s", f.Enabled, bound(f.Start), bound(f.End))
}
