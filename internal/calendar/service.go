package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tischbuch/internal/model"

	"github.com/rs/zerolog"
)

// Source returns the events taking place on a date.
type Source interface {
	EventsOn(ctx context.Context, date string) ([]model.Event, error)
}

// Store persists raw event documents indexed by date.
type Store interface {
	SaveEventDocument(ctx context.Context, id string, dates []string, payload []byte, now time.Time) error
	DeleteEventDocument(ctx context.Context, id string) error
	EventDocumentsOn(ctx context.Context, date string) ([][]byte, error)
}

// Invalidator drops cached slot results that may include stale event
// cutoffs.
type Invalidator interface {
	InvalidateAll(ctx context.Context) error
}

// Service keeps upstream event documents and serves them normalised.
type Service struct {
	store  Store
	cache  Invalidator
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(store Store, logger *zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "calendar").Logger(),
		now:    time.Now,
	}
}

// WithInvalidator makes imports and deletions drop cached slot results.
func (s *Service) WithInvalidator(cache Invalidator) *Service {
	s.cache = cache
	return s
}

// Import validates and stores a raw event document. The document is kept
// verbatim; normalisation happens again on read.
func (s *Service) Import(ctx context.Context, raw []byte) (model.Event, error) {
	doc, err := ParseDocument(raw)
	if err != nil {
		return model.Event{}, err
	}
	n, err := Normalize(doc)
	if err != nil {
		return model.Event{}, err
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return model.Event{}, fmt.Errorf("encode event %s: %w", n.Event.ID, err)
	}
	if err := s.store.SaveEventDocument(ctx, n.Event.ID, n.Dates, payload, s.now()); err != nil {
		return model.Event{}, err
	}

	s.logger.Info().Str("event_id", n.Event.ID).Strs("dates", n.Dates).Bool("blocking", n.Event.Blocking()).Msg("event imported")
	s.invalidate(ctx)
	return n.Event, nil
}

// Delete removes an event.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteEventDocument(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate slot cache")
	}
}

// EventsOn returns the normalised events on date. Documents that no longer
// normalise are skipped and logged.
func (s *Service) EventsOn(ctx context.Context, date string) ([]model.Event, error) {
	docs, err := s.store.EventDocumentsOn(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", date, err)
	}

	events := make([]model.Event, 0, len(docs))
	for _, raw := range docs {
		doc, err := ParseDocument(raw)
		if err != nil {
			s.logger.Warn().Err(err).Str("date", date).Msg("skipping unreadable event document")
			continue
		}
		n, err := Normalize(doc)
		if err != nil {
			s.logger.Warn().Err(err).Str("date", date).Msg("skipping malformed event document")
			continue
		}
		if ev, ok := n.On(date); ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

// BlockingOn filters events down to those excluding ordinary reservations.
func BlockingOn(events []model.Event) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if ev.Blocking() {
			out = append(out, ev)
		}
	}
	return out
}
