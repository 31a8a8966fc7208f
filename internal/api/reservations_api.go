package api

import (
	"net/http"

	"tischbuch/internal/apperr"
	"tischbuch/internal/metrics"
	"tischbuch/internal/model"
)

// StatusNotification reports a status change made by the booking system
// that owns the reservation.
type StatusNotification struct {
	Old         model.ReservationStatus `json:"old"`
	New         model.ReservationStatus `json:"new"`
	Reservation model.Reservation       `json:"reservation"`
}

// handleGuard applies the reservation guards to a draft without storing it.
// POST /api/v1/reservations/guard
func (s *HTTPServer) handleGuard(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservation_guard")

	var draft model.Reservation
	if err := decodeJSON(r, &draft); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	res, err := s.svc.Guards.Validate(r.Context(), draft)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/v1/reservations
func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservation_create")

	var draft model.Reservation
	if err := decodeJSON(r, &draft); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	res, err := s.svc.Bookings.Create(r.Context(), draft)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// GET /api/v1/reservations/{id}
func (s *HTTPServer) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservation_get")

	res, err := s.svc.Bookings.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleChangeStatus moves a stored reservation to a new status.
// POST /api/v1/reservations/{id}/status {"status": "STORNIERT"}
func (s *HTTPServer) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservation_status")

	var req struct {
		Status model.ReservationStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	change, err := s.svc.Bookings.ChangeStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

// handleStatusNotification runs the waitlist trigger for a status change
// that happened outside this service.
// POST /api/v1/reservations/status
func (s *HTTPServer) handleStatusNotification(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservation_status_notification")

	var req StatusNotification
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if !req.Old.Valid() || !req.New.Valid() {
		s.writeAppError(w, r, apperr.Validation("status", "unknown status %q -> %q", req.Old, req.New))
		return
	}

	offered, err := s.svc.Waitlist.OnReservationStatusChange(r.Context(), req.Old, req.New, req.Reservation)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"offered": offered})
}
