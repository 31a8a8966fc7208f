// Package schedule maintains the slot rules and date exceptions staff use
// to shape bookable start times.
package schedule

import (
	"context"
	"sort"
	"strings"
	"time"

	"tischbuch/internal/apperr"
	"tischbuch/internal/events"
	"tischbuch/internal/model"
	"tischbuch/internal/timeofday"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store persists rules and exceptions.
type Store interface {
	CreateRule(ctx context.Context, r *model.SlotRule) error
	GetRule(ctx context.Context, id string) (*model.SlotRule, error)
	ActiveRules(ctx context.Context) ([]model.SlotRule, error)
	SetRuleState(ctx context.Context, id string, state model.RecordState, now time.Time) error
	CreateException(ctx context.Context, e *model.SlotException) error
	GetException(ctx context.Context, id string) (*model.SlotException, error)
	ActiveExceptionsOn(ctx context.Context, date string) ([]model.SlotException, error)
	SetExceptionState(ctx context.Context, id string, state model.RecordState, now time.Time) error
}

// Invalidator drops cached slot results.
type Invalidator interface {
	InvalidateAll(ctx context.Context) error
}

// Changed is the payload of a slots.schedule_changed event.
type Changed struct {
	Kind   string `json:"kind"` // rule or exception
	ID     string `json:"id"`
	Action string `json:"action"` // created or archived
	Date   string `json:"date,omitempty"`
}

type Service struct {
	store     Store
	cache     Invalidator
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(store Store, cache Invalidator, publisher events.Publisher, logger *zerolog.Logger) *Service {
	return &Service{
		store:     store,
		cache:     cache,
		publisher: publisher,
		logger:    logger.With().Str("component", "schedule").Logger(),
		now:       time.Now,
	}
}

// CreateRule validates and stores a new active rule.
func (s *Service) CreateRule(ctx context.Context, r model.SlotRule) (*model.SlotRule, error) {
	if err := validateRule(&r); err != nil {
		return nil, err
	}

	now := s.now()
	r.ID = uuid.NewString()
	r.State = model.StateActive
	r.CreatedAt = now
	r.UpdatedAt = now
	if r.BlockedWindows == nil {
		r.BlockedWindows = []model.Window{}
	}

	if err := s.store.CreateRule(ctx, &r); err != nil {
		return nil, err
	}
	s.changed(ctx, Changed{Kind: "rule", ID: r.ID, Action: "created"})
	return &r, nil
}

// Rules lists the active rules ordered by priority, highest first.
func (s *Service) Rules(ctx context.Context) ([]model.SlotRule, error) {
	rules, err := s.store.ActiveRules(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })
	if rules == nil {
		rules = []model.SlotRule{}
	}
	return rules, nil
}

// ArchiveRule retires a rule. Archiving twice is a conflict.
func (s *Service) ArchiveRule(ctx context.Context, id string) error {
	r, err := s.store.GetRule(ctx, id)
	if err != nil {
		return err
	}
	if r.State == model.StateArchived {
		return apperr.Conflict("slot rule %s is already archived", id)
	}
	if err := s.store.SetRuleState(ctx, id, model.StateArchived, s.now()); err != nil {
		return err
	}
	s.changed(ctx, Changed{Kind: "rule", ID: id, Action: "archived"})
	return nil
}

// CreateException validates and stores an active exception. A second
// active exception for the same date is rejected with a ConflictError.
func (s *Service) CreateException(ctx context.Context, e model.SlotException) (*model.SlotException, error) {
	if err := validateException(&e); err != nil {
		return nil, err
	}

	now := s.now()
	e.ID = uuid.NewString()
	e.State = model.StateActive
	e.CreatedAt = now
	e.UpdatedAt = now

	if err := s.store.CreateException(ctx, &e); err != nil {
		return nil, err
	}
	s.changed(ctx, Changed{Kind: "exception", ID: e.ID, Action: "created", Date: e.Date})
	return &e, nil
}

// ExceptionsOn lists the active exceptions of a date.
func (s *Service) ExceptionsOn(ctx context.Context, date string) ([]model.SlotException, error) {
	d, err := timeofday.ParseDate(date, nil)
	if err != nil {
		return nil, apperr.Validation("date", "%v", err)
	}
	list, err := s.store.ActiveExceptionsOn(ctx, d.Format(timeofday.DateLayout))
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.SlotException{}
	}
	return list, nil
}

// ArchiveException retires an exception.
func (s *Service) ArchiveException(ctx context.Context, id string) error {
	e, err := s.store.GetException(ctx, id)
	if err != nil {
		return err
	}
	if e.State == model.StateArchived {
		return apperr.Conflict("slot exception %s is already archived", id)
	}
	if err := s.store.SetExceptionState(ctx, id, model.StateArchived, s.now()); err != nil {
		return err
	}
	s.changed(ctx, Changed{Kind: "exception", ID: id, Action: "archived", Date: e.Date})
	return nil
}

func (s *Service) changed(ctx context.Context, c Changed) {
	if s.cache != nil {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to invalidate slot cache")
		}
	}
	if err := events.PublishPayload(s.publisher, events.TypeSlotScheduleChanged, c); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish schedule change")
	}
	s.logger.Info().Str("kind", c.Kind).Str("id", c.ID).Str("action", c.Action).Msg("schedule changed")
}

func validateRule(r *model.SlotRule) error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return apperr.Validation("name", "is required")
	}
	if len(r.AppliesDays) == 0 {
		return apperr.Validation("applies_days", "at least one weekday is required")
	}
	for _, d := range r.AppliesDays {
		if d < 0 || d > 6 {
			return apperr.Validation("applies_days", "weekday %d out of range 0..6", d)
		}
	}
	for field, v := range map[string]string{"valid_from": r.ValidFrom, "valid_to": r.ValidTo} {
		if v == "" {
			continue
		}
		if _, err := timeofday.ParseDate(v, nil); err != nil {
			return apperr.Validation(field, "%v", err)
		}
	}
	if r.ValidFrom != "" && r.ValidTo != "" && r.ValidTo < r.ValidFrom {
		return apperr.Validation("valid_to", "before valid_from")
	}
	if g := r.Generate; g != nil {
		start, err := timeofday.ParseMinutes(g.Start)
		if err != nil {
			return apperr.Validation("generate_between.start", "%v", err)
		}
		end, err := timeofday.ParseMinutes(g.End)
		if err != nil {
			return apperr.Validation("generate_between.end", "%v", err)
		}
		if end < start {
			return apperr.Validation("generate_between.end", "before start")
		}
		if g.IntervalMinutes <= 0 {
			return apperr.Validation("generate_between.interval_minutes", "must be positive")
		}
	}
	return validateWindows("blocked_windows", r.BlockedWindows)
}

func validateException(e *model.SlotException) error {
	d, err := timeofday.ParseDate(e.Date, nil)
	if err != nil {
		return apperr.Validation("date", "%v", err)
	}
	e.Date = d.Format(timeofday.DateLayout)
	for _, t := range e.AllowedStartTimes {
		if !timeofday.Valid(t) {
			return apperr.Validation("allowed_start_times_override", "invalid time %q", t)
		}
	}
	return validateWindows("blocked_windows_override", e.BlockedWindows)
}

func validateWindows(field string, windows []model.Window) error {
	for i, w := range windows {
		start, err := timeofday.ParseMinutes(w.Start)
		if err != nil {
			return apperr.Validation(field, "window %d: %v", i, err)
		}
		end, err := timeofday.ParseMinutes(w.End)
		if err != nil {
			return apperr.Validation(field, "window %d: %v", i, err)
		}
		if end <= start {
			return apperr.Validation(field, "window %d: end must be after start", i)
		}
	}
	return nil
}
