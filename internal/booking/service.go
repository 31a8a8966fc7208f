package booking

import (
	"context"
	"fmt"
	"time"

	"tischbuch/internal/apperr"
	"tischbuch/internal/events"
	"tischbuch/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReservationStore persists reservations.
type ReservationStore interface {
	CreateReservation(ctx context.Context, r *model.Reservation, now time.Time) error
	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id string, from, to model.ReservationStatus, now time.Time) (bool, error)
}

// StatusListener reacts to reservation status changes.
type StatusListener interface {
	OnReservationStatusChange(ctx context.Context, from, to model.ReservationStatus, r model.Reservation) (*model.WaitlistEntry, error)
}

// Service creates reservations through the guards and moves them through
// their status lifecycle.
type Service struct {
	guards    *Guards
	store     ReservationStore
	listener  StatusListener
	fsm       *FSM
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(guards *Guards, store ReservationStore, listener StatusListener, publisher events.Publisher, logger *zerolog.Logger) *Service {
	return &Service{
		guards:    guards,
		store:     store,
		listener:  listener,
		fsm:       NewFSM(),
		publisher: publisher,
		logger:    logger.With().Str("component", "booking").Logger(),
		now:       time.Now,
	}
}

// Create validates a draft and stores it under a fresh id. Any id on the
// draft is ignored, so Create never touches an existing reservation.
// Nothing is written when a guard rejects the draft.
func (s *Service) Create(ctx context.Context, draft model.Reservation) (*model.Reservation, error) {
	if draft.PartySize <= 0 {
		return nil, apperr.Validation("party_size", "must be positive")
	}
	if draft.Status == "" {
		draft.Status = model.StatusNew
	}
	if draft.Status != model.StatusNew && draft.Status != model.StatusConfirmed {
		return nil, apperr.Validation("status", "new reservations must be %s or %s", model.StatusNew, model.StatusConfirmed)
	}

	r, err := s.guards.Validate(ctx, draft)
	if err != nil {
		return nil, err
	}
	r.ID = uuid.NewString()
	if err := s.store.CreateReservation(ctx, &r, s.now()); err != nil {
		return nil, err
	}

	s.logger.Info().Str("reservation_id", r.ID).Str("date", r.Date).Str("time", r.Time).Int("party_size", r.PartySize).Msg("reservation created")
	return &r, nil
}

// StatusChange is the outcome of ChangeStatus.
type StatusChange struct {
	Reservation model.Reservation       `json:"reservation"`
	From        model.ReservationStatus `json:"from"`
	Offered     *model.WaitlistEntry    `json:"offered,omitempty"`
}

// ChangeStatus moves a reservation to a new status and notifies the
// waitlist. A status that changed concurrently yields a ConflictError.
func (s *Service) ChangeStatus(ctx context.Context, id string, to model.ReservationStatus) (*StatusChange, error) {
	if !to.Valid() {
		return nil, apperr.Validation("status", "unknown status %q", to)
	}

	r, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	from := r.Status
	if !s.fsm.CanTransition(from, to) {
		return nil, apperr.Conflict("reservation %s cannot move from %s to %s", id, from, to)
	}

	ok, err := s.store.UpdateReservationStatus(ctx, id, from, to, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Conflict("reservation %s changed concurrently", id)
	}
	r.Status = to

	if err := events.PublishPayload(s.publisher, events.TypeReservationStatusChanged, map[string]string{
		"reservation_id": id, "from": string(from), "to": string(to),
	}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish status change")
	}

	change := &StatusChange{Reservation: *r, From: from}
	if s.listener != nil {
		offered, err := s.listener.OnReservationStatusChange(ctx, from, to, *r)
		if err != nil {
			// The status change itself is committed; a missed offer is
			// logged rather than reported as a failed transition.
			s.logger.Error().Err(err).Str("reservation_id", id).Msg("waitlist trigger failed")
			return change, nil
		}
		change.Offered = offered
	}
	return change, nil
}

// Get returns a stored reservation.
func (s *Service) Get(ctx context.Context, id string) (*model.Reservation, error) {
	r, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return r, nil
}
