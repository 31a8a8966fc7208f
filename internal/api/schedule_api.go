package api

import (
	"io"
	"net/http"

	"tischbuch/internal/apperr"
	"tischbuch/internal/metrics"
	"tischbuch/internal/model"
)

// GET /api/v1/rules
func (s *HTTPServer) handleListRules(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("rules_list")

	rules, err := s.svc.Schedule.Rules(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

// POST /api/v1/rules
func (s *HTTPServer) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("rules_create")

	var rule model.SlotRule
	if err := decodeJSON(r, &rule); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	created, err := s.svc.Schedule.CreateRule(r.Context(), rule)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// POST /api/v1/rules/{id}/archive
func (s *HTTPServer) handleArchiveRule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("rules_archive")

	if err := s.svc.Schedule.ArchiveRule(r.Context(), r.PathValue("id")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(model.StateArchived)})
}

// GET /api/v1/exceptions?date=YYYY-MM-DD
func (s *HTTPServer) handleListExceptions(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("exceptions_list")

	list, err := s.svc.Schedule.ExceptionsOn(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exceptions": list})
}

// POST /api/v1/exceptions
func (s *HTTPServer) handleCreateException(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("exceptions_create")

	var exc model.SlotException
	if err := decodeJSON(r, &exc); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	created, err := s.svc.Schedule.CreateException(r.Context(), exc)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// POST /api/v1/exceptions/{id}/archive
func (s *HTTPServer) handleArchiveException(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("exceptions_archive")

	if err := s.svc.Schedule.ArchiveException(r.Context(), r.PathValue("id")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(model.StateArchived)})
}

// handleImportEvent stores an upstream event document as sent.
// POST /api/v1/events
func (s *HTTPServer) handleImportEvent(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("events_import")

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.writeAppError(w, r, apperr.Validation("body", "read body: %v", err))
		return
	}
	ev, err := s.svc.Calendar.Import(r.Context(), raw)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// DELETE /api/v1/events/{id}
func (s *HTTPServer) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("events_delete")

	if err := s.svc.Calendar.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
