package api

import (
	"net/http"

	"tischbuch/internal/metrics"
)

// handleSlots returns the effective slots of a date for staff.
// GET /api/v1/slots?date=YYYY-MM-DD
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slots")

	res, err := s.svc.Slots.Compute(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleWidgetSlots is the guest variant, limited to the booking window.
// GET /api/v1/widget/slots?date=YYYY-MM-DD
func (s *HTTPServer) handleWidgetSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("widget_slots")

	res, err := s.svc.Widget.Compute(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  res.Date,
		"open":  res.Open,
		"slots": res.Slots,
	})
}
