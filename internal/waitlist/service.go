package waitlist

import (
	"context"
	"time"

	"tischbuch/internal/apperr"
	"tischbuch/internal/events"
	"tischbuch/internal/metrics"
	"tischbuch/internal/model"
	"tischbuch/internal/timeofday"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store persists waitlist entries. Offer, close, redeem and expire are
// conditional updates that report whether the row was still in the
// expected state.
type Store interface {
	CreateWaitlistEntry(ctx context.Context, e *model.WaitlistEntry) error
	GetWaitlistEntry(ctx context.Context, id string) (*model.WaitlistEntry, error)
	OpenWaitlistEntries(ctx context.Context, date string) ([]model.WaitlistEntry, error)
	OfferWaitlistEntry(ctx context.Context, id, reservationID, offeredTime string, expiresAt, now time.Time) (bool, error)
	ExpireWaitlistOffers(ctx context.Context, reason string, now time.Time) (int64, error)
	CloseWaitlistEntry(ctx context.Context, id, reason string, now time.Time) (bool, error)
	RedeemWaitlistEntry(ctx context.Context, id string, now time.Time) (bool, error)
}

// Settings configures offer matching and lifetime.
type Settings struct {
	OfferTTL       time.Duration
	PartySizeSlack int
}

// Offered is the payload of a waitlist.offered event.
type Offered struct {
	EntryID       string    `json:"entry_id"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	PartySize     int       `json:"party_size"`
	ReservationID string    `json:"reservation_id"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Expired is the payload of a waitlist.expired event.
type Expired struct {
	Count int64     `json:"count"`
	At    time.Time `json:"at"`
}

type Service struct {
	store     Store
	settings  Settings
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(store Store, settings Settings, publisher events.Publisher, logger *zerolog.Logger) *Service {
	return &Service{
		store:     store,
		settings:  settings,
		publisher: publisher,
		logger:    logger.With().Str("component", "waitlist").Logger(),
		now:       time.Now,
	}
}

// Enqueue adds a party to the waitlist of a date.
func (s *Service) Enqueue(ctx context.Context, date string, partySize, priority int) (*model.WaitlistEntry, error) {
	d, err := timeofday.ParseDate(date, nil)
	if err != nil {
		return nil, apperr.Validation("date", "%v", err)
	}
	if partySize <= 0 {
		return nil, apperr.Validation("party_size", "must be positive")
	}

	now := s.now()
	entry := &model.WaitlistEntry{
		ID:        uuid.NewString(),
		Date:      d.Format(timeofday.DateLayout),
		PartySize: partySize,
		Priority:  priority,
		Status:    model.WaitlistOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateWaitlistEntry(ctx, entry); err != nil {
		return nil, err
	}
	s.logger.Info().Str("entry_id", entry.ID).Str("date", entry.Date).Int("party_size", partySize).Msg("waitlist entry created")
	return entry, nil
}

// Get returns an entry.
func (s *Service) Get(ctx context.Context, id string) (*model.WaitlistEntry, error) {
	return s.store.GetWaitlistEntry(ctx, id)
}

// OnReservationStatusChange offers the freed table of a cancelled
// reservation to the best matching OPEN entry. It returns the offered
// entry, or nil when the change does not trigger or nobody matches.
//
// Offers are conditional updates: a candidate taken by a concurrent
// cancellation in the meantime is skipped in favour of the next one.
func (s *Service) OnReservationStatusChange(ctx context.Context, from, to model.ReservationStatus, r model.Reservation) (*model.WaitlistEntry, error) {
	if !Triggers(from, to) {
		return nil, nil
	}

	open, err := s.store.OpenWaitlistEntries(ctx, r.Date)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := now.Add(s.settings.OfferTTL)
	for _, c := range Candidates(open, r.Date, r.PartySize, s.settings.PartySizeSlack) {
		ok, err := s.store.OfferWaitlistEntry(ctx, c.ID, r.ID, r.Time, expiresAt, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.logger.Debug().Str("entry_id", c.ID).Msg("candidate no longer open, trying next")
			continue
		}

		entry := c
		entry.Status = model.WaitlistOffered
		entry.OfferExpiresAt = &expiresAt
		entry.OfferedReservationID = r.ID
		entry.OfferedTime = r.Time
		entry.UpdatedAt = now

		metrics.IncWaitlistOffer()
		s.logger.Info().Str("entry_id", entry.ID).Str("reservation_id", r.ID).Time("expires_at", expiresAt).Msg("waitlist offer made")
		if err := events.PublishPayload(s.publisher, events.TypeWaitlistOffered, Offered{
			EntryID: entry.ID, Date: entry.Date, Time: r.Time, PartySize: entry.PartySize,
			ReservationID: r.ID, ExpiresAt: expiresAt,
		}); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish waitlist offer")
		}
		return &entry, nil
	}
	return nil, nil
}

// ExpireStaleOffers closes every offer whose expiry lies in the past.
// Running it repeatedly is safe; a run with nothing to do returns 0.
func (s *Service) ExpireStaleOffers(ctx context.Context) (int64, error) {
	now := s.now()
	n, err := s.store.ExpireWaitlistOffers(ctx, ReasonOfferExpired, now)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	metrics.AddWaitlistExpired(n)
	s.logger.Info().Int64("count", n).Msg("expired stale waitlist offers")
	if err := events.PublishPayload(s.publisher, events.TypeWaitlistExpired, Expired{Count: n, At: now}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish waitlist expiry")
	}
	return n, nil
}

// Check returns the entry together with the validity of its offer.
func (s *Service) Check(ctx context.Context, id string) (*model.WaitlistEntry, OfferCheck, error) {
	entry, err := s.store.GetWaitlistEntry(ctx, id)
	if err != nil {
		return nil, OfferCheck{}, err
	}
	return entry, CheckOffer(*entry, s.now()), nil
}

// Close administratively moves an entry to DONE.
func (s *Service) Close(ctx context.Context, id, reason string) error {
	entry, err := s.store.GetWaitlistEntry(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(entry.Status, model.WaitlistDone) {
		return apperr.Conflict("waitlist entry %s is already %s", id, entry.Status)
	}
	if reason == "" {
		reason = "closed"
	}

	ok, err := s.store.CloseWaitlistEntry(ctx, id, reason, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Conflict("waitlist entry %s changed concurrently", id)
	}
	s.logger.Info().Str("entry_id", id).Str("reason", reason).Msg("waitlist entry closed")
	return nil
}

// Redeem marks a valid offer as taken up by staff.
func (s *Service) Redeem(ctx context.Context, id string) error {
	entry, err := s.store.GetWaitlistEntry(ctx, id)
	if err != nil {
		return err
	}
	now := s.now()
	if check := CheckOffer(*entry, now); !check.Valid {
		return apperr.Conflict("waitlist entry %s cannot be redeemed: %s", id, check.Reason)
	}

	ok, err := s.store.RedeemWaitlistEntry(ctx, id, now)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Conflict("waitlist entry %s changed concurrently", id)
	}
	s.logger.Info().Str("entry_id", id).Msg("waitlist offer redeemed")
	return nil
}
