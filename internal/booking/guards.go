// Package booking enforces reservation invariants before a reservation is
// written and drives reservation status changes.
package booking

import (
	"context"
	"fmt"

	"tischbuch/internal/apperr"
	"tischbuch/internal/calendar"
	"tischbuch/internal/events"
	"tischbuch/internal/metrics"
	"tischbuch/internal/model"
	"tischbuch/internal/slots"
	"tischbuch/internal/timeofday"

	"github.com/rs/zerolog"
)

// Settings configures the guards.
type Settings struct {
	// StandardDurationMinutes is forced onto every non-event reservation.
	StandardDurationMinutes int
	// RejectPastMidnight rejects drafts whose end lies after midnight.
	RejectPastMidnight bool
	// RequireOfferedSlot makes Validate reject start times the slot
	// calculator does not offer.
	RequireOfferedSlot bool
}

// SlotComputer returns the effective slots of a date.
type SlotComputer interface {
	Compute(ctx context.Context, date string) (*slots.Result, error)
}

// Guards applies reservation invariants to drafts.
type Guards struct {
	events    calendar.Source
	slots     SlotComputer
	settings  Settings
	publisher events.Publisher
	logger    zerolog.Logger
}

func NewGuards(eventSource calendar.Source, slotComputer SlotComputer, settings Settings, publisher events.Publisher, logger *zerolog.Logger) *Guards {
	return &Guards{
		events:    eventSource,
		slots:     slotComputer,
		settings:  settings,
		publisher: publisher,
		logger:    logger.With().Str("component", "guards").Logger(),
	}
}

// Apply returns draft with duration and end time normalised, or an error
// when the draft must be rejected. The caller's draft is never modified.
//
// Only drafts naming an event that takes place on their date keep their own
// duration. Everything else gets the standard duration before the event
// exclusivity check, since that check needs the final duration.
func (g *Guards) Apply(ctx context.Context, draft model.Reservation) (model.Reservation, error) {
	out := draft

	if _, err := timeofday.ParseDate(out.Date, nil); err != nil {
		return draft, g.reject(out, "invalid_input", apperr.Validation("date", "%v", err))
	}
	start, err := timeofday.ParseMinutes(out.Time)
	if err != nil {
		return draft, g.reject(out, "invalid_input", apperr.Validation("time", "%v", err))
	}

	evs, err := g.events.EventsOn(ctx, out.Date)
	if err != nil {
		return draft, fmt.Errorf("events for %s: %w", out.Date, err)
	}

	if out.IsEventBooking() {
		if out.DurationMinutes <= 0 {
			return draft, g.reject(out, "invalid_input",
				apperr.Validation("duration_minutes", "event reservations need a positive duration"))
		}
		if !hasEvent(evs, out.EventID) {
			return draft, g.reject(out, "unknown_event",
				apperr.Validation("event_id", "no event %q on %s", out.EventID, out.Date))
		}
	} else {
		out.DurationMinutes = g.settings.StandardDurationMinutes
	}

	end := start + out.DurationMinutes
	if g.settings.RejectPastMidnight && end > timeofday.MinutesPerDay {
		return draft, g.reject(out, "past_midnight",
			apperr.Validation("time", "reservation from %s for %d minutes ends after midnight", out.Time, out.DurationMinutes))
	}
	out.EndTime = timeofday.Format(end)

	if out.IsEventBooking() {
		return out, nil
	}

	for _, ev := range calendar.BlockingOn(evs) {
		evStart, evEnd, ok := eventWindow(ev)
		if !ok {
			continue
		}
		if timeofday.Overlaps(start, end, evStart, evEnd) {
			return draft, g.reject(out, "event_conflict", apperr.Conflict(
				"reservation %s-%s overlaps event %q (%s-%s)",
				out.Time, out.EndTime, ev.Title, timeofday.Format(evStart), timeofday.Format(evEnd)))
		}
	}

	return out, nil
}

func hasEvent(evs []model.Event, id string) bool {
	for _, ev := range evs {
		if ev.ID == id {
			return true
		}
	}
	return false
}

// Validate runs Apply and, when configured, checks that a non-event
// reservation starts on an offered slot.
func (g *Guards) Validate(ctx context.Context, draft model.Reservation) (model.Reservation, error) {
	out, err := g.Apply(ctx, draft)
	if err != nil {
		return draft, err
	}
	if !g.settings.RequireOfferedSlot || out.IsEventBooking() || g.slots == nil {
		return out, nil
	}

	res, err := g.slots.Compute(ctx, out.Date)
	if err != nil {
		return draft, err
	}
	if !res.Open {
		return draft, g.reject(out, "closed", apperr.Conflict("venue is closed on %s", out.Date))
	}
	if !res.Has(timeofday.Format(timeofday.MustMinutes(out.Time))) {
		return draft, g.reject(out, "slot_not_offered", apperr.Conflict("%s is not an offered slot on %s", out.Time, out.Date))
	}
	return out, nil
}

// eventWindow returns the minutes an event occupies. An event without end,
// or whose end lies before its start (past midnight), runs to end of day.
func eventWindow(ev model.Event) (int, int, bool) {
	if ev.StartTime == "" {
		return 0, 0, false
	}
	start, err := timeofday.ParseMinutes(ev.StartTime)
	if err != nil {
		return 0, 0, false
	}
	end := timeofday.EndOfDay
	if ev.EndTime != "" {
		if m, err := timeofday.ParseMinutes(ev.EndTime); err == nil && m > start {
			end = m
		}
	}
	return start, end, true
}

// Rejection is the payload of a reservation.guard_rejected event.
type Rejection struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

func (g *Guards) reject(r model.Reservation, reason string, err error) error {
	metrics.IncGuardRejection(reason)
	g.logger.Info().Str("date", r.Date).Str("time", r.Time).Str("reason", reason).Err(err).Msg("reservation draft rejected")
	if pubErr := events.PublishPayload(g.publisher, events.TypeGuardRejected, Rejection{
		Date: r.Date, Time: r.Time, Reason: reason, Error: err.Error(),
	}); pubErr != nil {
		g.logger.Warn().Err(pubErr).Msg("failed to publish guard rejection")
	}
	return err
}
