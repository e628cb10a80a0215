package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/labelexport/internal/core"
	"github.com/JonMunkholm/labelexport/internal/logging"
	"github.com/JonMunkholm/labelexport/internal/metrics"
	"github.com/JonMunkholm/labelexport/internal/web/templates"
)

// unsafeFilenameChars matches anything not allowed in a download filename.
var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

const healthTimeout = 2 * time.Second

// Route labels for export metrics.
const (
	routeExport  = "export"
	routeConvert = "convert"
)

// handleExport streams a labeler's stored labels as CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	labelerID := r.URL.Query().Get("labeler_id")

	records, err := s.service.LabelerRecords(r.Context(), labelerID)
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, core.ErrNoLabels) {
			outcome = metrics.OutcomeEmpty
		}
		s.metrics.ObserveExport(routeExport, outcome, 0, 0, time.Since(start))
		s.respondError(w, r, err)
		return
	}

	exportID := uuid.NewString()
	logger := logging.WithFields(r.Context(), "export_id", exportID, "labeler_id", labelerID)

	filename := fmt.Sprintf("labeler_%s.csv", unsafeFilenameChars.ReplaceAllString(labelerID, "_"))
	setCSVHeaders(w, filename, exportID)

	if err := core.WriteCSV(w, records); err != nil {
		// Headers are already sent; all that is left is to log it.
		logger.Error("write csv", "error", err)
		s.metrics.ObserveExport(routeExport, metrics.OutcomeError, 0, 0, time.Since(start))
		return
	}
	s.metrics.ObserveExport(routeExport, metrics.OutcomeOK, len(records), 0, time.Since(start))
	logger.Info("exported labels", "count", len(records))
}

// handleConvert converts a line-delimited JSON body to CSV.
// Malformed lines are skipped and counted in X-Skipped-Lines.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	exportID := uuid.NewString()
	logger := logging.WithFields(r.Context(), "export_id", exportID)

	body := http.MaxBytesReader(w, r.Body, s.cfg.Export.MaxBodySize)
	res, err := s.service.ParseLabels(r.Context(), body, logger)

	w.Header().Set("X-Export-ID", exportID)
	w.Header().Set("X-Skipped-Lines", strconv.Itoa(res.Skipped))

	if errors.Is(err, core.ErrNoLabels) {
		logger.Warn("no labels to export", "lines", res.Lines, "skipped", res.Skipped)
		s.metrics.ObserveExport(routeConvert, metrics.OutcomeEmpty, 0, res.Skipped, time.Since(start))
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.metrics.ObserveExport(routeConvert, metrics.OutcomeError, 0, res.Skipped, time.Since(start))
		s.respondError(w, r, err)
		return
	}

	setCSVHeaders(w, "labels.csv", exportID)
	if err := core.WriteCSV(w, res.Records); err != nil {
		logger.Error("write csv", "error", err)
		s.metrics.ObserveExport(routeConvert, metrics.OutcomeError, 0, res.Skipped, time.Since(start))
		return
	}
	s.metrics.ObserveExport(routeConvert, metrics.OutcomeOK, len(res.Records), res.Skipped, time.Since(start))
	logger.Info("converted labels", "count", len(res.Records), "skipped", res.Skipped, "bytes", res.Bytes)
}

// handlePreview renders a labeler's flattened rows as an HTML page.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	labelerID := chi.URLParam(r, "labelerID")

	rows, err := s.service.PreviewLabeler(r.Context(), labelerID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.PreviewPage(labelerID, rows).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render preview", "error", err)
	}
}

// handleHealth reports liveness and database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.health.Ping(ctx); err != nil {
		logging.FromContext(r.Context()).Warn("health check failed", "error", err)
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status":   "unavailable",
			"database": core.MapError(err).Message,
		})
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}

func setCSVHeaders(w http.ResponseWriter, filename, exportID string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("X-Export-ID", exportID)
}
