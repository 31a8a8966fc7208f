// Package api exposes the availability engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tischbuch/internal/apperr"
	"tischbuch/internal/booking"
	"tischbuch/internal/calendar"
	"tischbuch/internal/report"
	"tischbuch/internal/schedule"
	"tischbuch/internal/slots"
	"tischbuch/internal/waitlist"

	"github.com/rs/zerolog"
)

// Services bundles the domain services behind the API.
type Services struct {
	Slots    *slots.Calculator
	Widget   *slots.Public
	Guards   *booking.Guards
	Bookings *booking.Service
	Waitlist *waitlist.Service
	Schedule *schedule.Service
	Calendar *calendar.Service
	Reports  *report.Service
}

// ReadinessCheck is probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options configures the HTTP server.
type Options struct {
	Addr         string
	AdminAPIKey  string // empty disables the staff key check
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	WidgetRate   float64
	WidgetBurst  int
	Checks       []ReadinessCheck
}

type HTTPServer struct {
	svc     Services
	checks  []ReadinessCheck
	apiKey  string
	limiter *ipRateLimiter
	logger  zerolog.Logger
	server  *http.Server
}

func NewHTTPServer(svc Services, opts Options, logger *zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		svc:     svc,
		checks:  opts.Checks,
		apiKey:  opts.AdminAPIKey,
		limiter: newIPRateLimiter(opts.WidgetRate, opts.WidgetBurst),
		logger:  logger.With().Str("component", "api").Logger(),
	}
	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.routes(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

// Handler returns the root handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("GET /api/v1/widget/slots", s.limiter.limit(http.HandlerFunc(s.handleWidgetSlots)))

	// Staff routes.
	mux.Handle("GET /api/v1/slots", s.admin(s.handleSlots))

	mux.Handle("POST /api/v1/reservations/guard", s.admin(s.handleGuard))
	mux.Handle("POST /api/v1/reservations/status", s.admin(s.handleStatusNotification))
	mux.Handle("POST /api/v1/reservations", s.admin(s.handleCreateReservation))
	mux.Handle("GET /api/v1/reservations/{id}", s.admin(s.handleGetReservation))
	mux.Handle("POST /api/v1/reservations/{id}/status", s.admin(s.handleChangeStatus))

	mux.Handle("POST /api/v1/waitlist", s.admin(s.handleEnqueue))
	mux.Handle("POST /api/v1/waitlist/expire", s.admin(s.handleExpireOffers))
	mux.Handle("GET /api/v1/waitlist/{id}", s.admin(s.handleGetWaitlistEntry))
	mux.Handle("GET /api/v1/waitlist/{id}/offer", s.admin(s.handleCheckOffer))
	mux.Handle("POST /api/v1/waitlist/{id}/close", s.admin(s.handleCloseEntry))
	mux.Handle("POST /api/v1/waitlist/{id}/redeem", s.admin(s.handleRedeemEntry))

	mux.Handle("POST /api/v1/events", s.admin(s.handleImportEvent))
	mux.Handle("DELETE /api/v1/events/{id}", s.admin(s.handleDeleteEvent))

	mux.Handle("GET /api/v1/rules", s.admin(s.handleListRules))
	mux.Handle("POST /api/v1/rules", s.admin(s.handleCreateRule))
	mux.Handle("POST /api/v1/rules/{id}/archive", s.admin(s.handleArchiveRule))
	mux.Handle("GET /api/v1/exceptions", s.admin(s.handleListExceptions))
	mux.Handle("POST /api/v1/exceptions", s.admin(s.handleCreateException))
	mux.Handle("POST /api/v1/exceptions/{id}/archive", s.admin(s.handleArchiveException))

	mux.Handle("GET /api/v1/reports/hourly", s.admin(s.handleHourlyReport))

	return mux
}

// Start serves until the server is shut down.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			s.logger.Warn().Err(err).Str("check", c.Name).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, c.Name+" not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func decodeJSON(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return apperr.Validation("body", "invalid JSON body: %v", err)
	}
	return nil
}

// writeAppError maps domain errors to status codes. Unexpected errors are
// logged and answered without details.
func (s *HTTPServer) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
