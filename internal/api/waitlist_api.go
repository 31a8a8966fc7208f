package api

import (
	"net/http"

	"tischbuch/internal/metrics"
)

type enqueueRequest struct {
	Date      string `json:"date"`
	PartySize int    `json:"party_size"`
	Priority  int    `json:"priority"`
}

// POST /api/v1/waitlist
func (s *HTTPServer) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("waitlist_enqueue")

	var req enqueueRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	entry, err := s.svc.Waitlist.Enqueue(r.Context(), req.Date, req.PartySize, req.Priority)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// GET /api/v1/waitlist/{id}
func (s *HTTPServer) handleGetWaitlistEntry(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("waitlist_get")

	entry, err := s.svc.Waitlist.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleExpireOffers runs one expiry sweep on demand.
// POST /api/v1/waitlist/expire
func (s *HTTPServer) handleExpireOffers(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("waitlist_expire")

	n, err := s.svc.Waitlist.ExpireStaleOffers(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"expired": n})
}

// GET /api/v1/waitlist/{id}/offer
func (s *HTTPServer) handleCheckOffer(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("waitlist_offer")

	entry, check, err := s.svc.Waitlist.Check(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entry":  entry,
		"valid":  check.Valid,
		"reason": check.Reason,
	})
}

// POST /api/v1/waitlist/{id}/close {"reason": "..."}
func (s *HTTPServer) handleCloseEntry(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("waitlist_close")

	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.writeAppError(w, r, err)
			return
		}
	}
	if err := s.svc.Waitlist.Close(r.Context(), r.PathValue("id"), req.Reason); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// POST /api/v1/waitlist/{id}/redeem
func (s *HTTPServer) handleRedeemEntry(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("waitlist_redeem")

	if err := s.svc.Waitlist.Redeem(r.Context(), r.PathValue("id")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "redeemed"})
}
