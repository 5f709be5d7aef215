package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/bobmcallan/navsync/internal/interfaces"
	"github.com/bobmcallan/navsync/internal/models"
	"github.com/bobmcallan/navsync/internal/services/navsync"
)

// stageMessages are the client-facing summaries for a failed run.
var stageMessages = map[string]string{
	navsync.StageLock:         "Could not acquire the NAV update lock",
	navsync.StageFetch:        "NAV feed unavailable",
	navsync.StageParse:        "NAV feed could not be parsed",
	navsync.StageLoadHoldings: "Failed to load holdings",
	navsync.StageHoldings:     "Failed to update holdings",
}

// handleNavUpdate handles GET/POST /api/nav/update and /manualUpdateNAV.
// The run is detached from the request context: a client that hangs up
// does not abort the batch.
func (s *Server) handleNavUpdate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	ctx := context.WithoutCancel(r.Context())
	result, err := s.app.NavService.Run(ctx, models.TriggerManual)
	if err == nil {
		WriteJSON(w, http.StatusOK, result)
		return
	}

	runID := ""
	if result != nil {
		runID = result.RunID
	}

	if errors.Is(err, navsync.ErrRunInProgress) {
		WriteJSON(w, http.StatusConflict, ErrorResponse{
			Error: err.Error(),
			RunID: runID,
		})
		return
	}

	stage := navsync.StageOf(err)
	msg, ok := stageMessages[stage]
	if !ok {
		msg = "NAV update failed"
	}
	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:  msg,
		Stage:  stage,
		Detail: err.Error(),
		RunID:  runID,
	})
}

// handleNavHistory handles GET /api/nav/history?from=&to=&scheme=A,B
func (s *Server) handleNavHistory(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	qs := r.URL.Query()
	q := models.HistoryQuery{
		From:        qs.Get("from"),
		To:          qs.Get("to"),
		SchemeCodes: splitList(qs["scheme"]),
	}

	entries, err := s.app.NavService.GetHistory(r.Context(), q)
	if err != nil {
		s.writeReadError(w, err, "Failed to load NAV history")
		return
	}
	if entries == nil {
		entries = []models.NavHistoryEntry{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"changes": navsync.DailyChanges(entries),
	})
}

// handleNavChanges handles GET /api/nav/changes?from=&to=
func (s *Server) handleNavChanges(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	qs := r.URL.Query()
	changes, err := s.app.NavService.PortfolioChanges(r.Context(), qs.Get("from"), qs.Get("to"))
	if err != nil {
		s.writeReadError(w, err, "Failed to compute NAV changes")
		return
	}
	if changes == nil {
		changes = []models.DailyChange{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"changes": changes,
	})
}

// handleNavLookup handles GET /api/nav/lookup?codes=A,B and POST {"codes": [...]}.
func (s *Server) handleNavLookup(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	var codes []string
	if r.Method == http.MethodPost {
		var body struct {
			Codes []string `json:"codes"`
		}
		if !DecodeJSON(w, r, &body) {
			return
		}
		codes = splitList(body.Codes)
	} else {
		codes = splitList(r.URL.Query()["codes"])
	}
	if len(codes) == 0 {
		WriteError(w, http.StatusBadRequest, "codes is required")
		return
	}

	lookup, err := s.app.NavService.LookupSchemes(r.Context(), codes)
	if err != nil {
		stage := navsync.StageOf(err)
		msg, ok := stageMessages[stage]
		if !ok {
			msg = "Scheme lookup failed"
		}
		s.logger.Warn().Err(err).Str("stage", stage).Msg("Scheme lookup failed")
		WriteJSON(w, http.StatusBadGateway, ErrorResponse{Error: msg, Stage: stage, Detail: err.Error()})
		return
	}

	WriteJSON(w, http.StatusOK, lookup)
}

// handleNavSnapshot handles GET /api/nav/snapshots/{code}
func (s *Server) handleNavSnapshot(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	code := PathParam(r, "/api/nav/snapshots/", "")
	if code == "" {
		WriteError(w, http.StatusBadRequest, "scheme code is required")
		return
	}

	snap, err := s.app.NavService.GetSnapshot(r.Context(), code)
	if err != nil {
		s.writeReadError(w, err, "Failed to load NAV snapshot")
		return
	}

	WriteJSON(w, http.StatusOK, snap)
}

// writeReadError maps read-path errors onto status codes.
func (s *Server) writeReadError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, navsync.ErrInvalidQuery):
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid query", Detail: err.Error()})
	case errors.Is(err, interfaces.ErrNotFound):
		WriteError(w, http.StatusNotFound, "Not found")
	default:
		s.logger.Error().Err(err).Msg(fallback)
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: fallback, Detail: err.Error()})
	}
}
