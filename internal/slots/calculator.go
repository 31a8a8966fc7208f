package slots

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tischbuch/internal/apperr"
	"tischbuch/internal/calendar"
	"tischbuch/internal/metrics"
	"tischbuch/internal/model"
	"tischbuch/internal/openinghours"
	"tischbuch/internal/timeofday"

	"github.com/rs/zerolog"
)

// fallbackIntervalMinutes is the lattice step used when no rule generates slots.
const fallbackIntervalMinutes = 30

// Result is the set of bookable start times of a date.
type Result struct {
	Date    string         `json:"date"`
	Open    bool           `json:"open"`
	Slots   []string       `json:"slots"`
	Blocked []model.Window `json:"blocked"`
	Notes   []string       `json:"notes"`
}

// Has reports whether t is one of the offered slots.
func (r *Result) Has(t string) bool {
	for _, s := range r.Slots {
		if s == t {
			return true
		}
	}
	return false
}

func closedResult(date, reason string) *Result {
	res := &Result{Date: date, Open: false, Slots: []string{}, Blocked: []model.Window{}, Notes: []string{}}
	if reason != "" {
		res.Notes = append(res.Notes, reason)
	}
	return res
}

// RuleStore returns the active slot rules.
type RuleStore interface {
	ActiveRules(ctx context.Context) ([]model.SlotRule, error)
}

// ExceptionStore returns the active exceptions of a date.
type ExceptionStore interface {
	ActiveExceptionsOn(ctx context.Context, date string) ([]model.SlotException, error)
}

// Settings tunes slot computation.
type Settings struct {
	// DefaultEventCutoffMinutes applies to blocking events without their own cutoff.
	DefaultEventCutoffMinutes int
}

// Calculator computes effective slots for staff-facing callers.
type Calculator struct {
	rules      RuleStore
	exceptions ExceptionStore
	hours      openinghours.Provider
	events     calendar.Source
	settings   Settings
	cache      *Cache
	logger     zerolog.Logger
}

func NewCalculator(
	rules RuleStore,
	exceptions ExceptionStore,
	hours openinghours.Provider,
	events calendar.Source,
	settings Settings,
	cache *Cache,
	logger *zerolog.Logger,
) *Calculator {
	return &Calculator{
		rules:      rules,
		exceptions: exceptions,
		hours:      hours,
		events:     events,
		settings:   settings,
		cache:      cache,
		logger:     logger.With().Str("component", "slots").Logger(),
	}
}

// Cache exposes the result cache so mutations elsewhere can invalidate it.
func (c *Calculator) Cache() *Cache {
	return c.cache
}

// Compute returns the bookable start times for date. Closed days and days
// without slots are regular results; only a malformed date or a failing
// collaborator produce an error.
func (c *Calculator) Compute(ctx context.Context, date string) (*Result, error) {
	d, err := timeofday.ParseDate(date, time.UTC)
	if err != nil {
		return nil, apperr.Validation("date", "%v", err)
	}
	date = d.Format(timeofday.DateLayout)

	if res, ok := c.cache.Get(ctx, date); ok {
		metrics.IncSlotComputation("cache")
		return res, nil
	}

	started := time.Now()
	res, err := c.compute(ctx, date, timeofday.Weekday(d))
	if err != nil {
		return nil, err
	}
	metrics.ObserveSlotCompute(started)
	metrics.IncSlotComputation("computed")

	if err := c.cache.Set(ctx, res); err != nil {
		c.logger.Warn().Err(err).Str("date", date).Msg("failed to cache slot result")
	}
	return res, nil
}

func (c *Calculator) compute(ctx context.Context, date string, weekday int) (*Result, error) {
	hours, err := c.hours.EffectiveHours(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("opening hours for %s: %w", date, err)
	}
	if !hours.Open {
		return closedResult(date, hours.ClosureReason), nil
	}

	res := &Result{Date: date, Open: true, Slots: []string{}, Blocked: []model.Window{}, Notes: []string{}}

	exceptions, err := c.exceptions.ActiveExceptionsOn(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("slot exceptions for %s: %w", date, err)
	}
	exc, count := ResolveException(exceptions, date)
	if count > 1 {
		c.logger.Warn().Str("date", date).Int("count", count).Msg("multiple active exceptions")
		res.Notes = append(res.Notes, fmt.Sprintf("%d active exceptions for this date, using %s", count, exc.ID))
	}

	var (
		slots   []int
		windows []model.Window
		fixed   bool
	)
	if exc != nil {
		if exc.Reason != "" {
			res.Notes = append(res.Notes, "exception: "+exc.Reason)
		}
		if exc.AllowedStartTimes != nil {
			slots = c.parseSlotList(exc.AllowedStartTimes, exc.ID)
			fixed = true
		}
		if exc.BlockedWindows != nil {
			windows = exc.BlockedWindows
		}
	}

	if !fixed {
		rules, err := c.rules.ActiveRules(ctx)
		if err != nil {
			return nil, fmt.Errorf("slot rules: %w", err)
		}
		rule := ResolveRule(rules, date, weekday)

		if rule != nil && rule.Generate != nil {
			slots, err = ruleLattice(rule.Generate)
			if err != nil {
				c.logger.Warn().Err(err).Str("rule_id", rule.ID).Msg("invalid rule lattice, using opening hours")
				slots = blockLattice(hours.ReservableBlocks())
			}
		} else {
			slots = blockLattice(hours.ReservableBlocks())
		}

		if rule != nil && (exc == nil || exc.BlockedWindows == nil) {
			windows = rule.BlockedWindows
		}
	}

	slots = subtractWindows(slots, windows)
	res.Blocked = append(res.Blocked, windows...)

	events, err := c.events.EventsOn(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("events for %s: %w", date, err)
	}
	for _, ev := range calendar.BlockingOn(events) {
		if ev.StartTime == "" {
			continue
		}
		start, err := timeofday.ParseMinutes(ev.StartTime)
		if err != nil {
			continue
		}
		cutoffMinutes := c.settings.DefaultEventCutoffMinutes
		if ev.CutoffMinutes != nil {
			cutoffMinutes = *ev.CutoffMinutes
		}
		cutoff := start - cutoffMinutes
		if cutoff < 0 {
			cutoff = 0
		}

		kept := slots[:0]
		for _, s := range slots {
			if s < cutoff {
				kept = append(kept, s)
			}
		}
		slots = kept

		title := ev.Title
		if title == "" {
			title = ev.ID
		}
		res.Notes = append(res.Notes, fmt.Sprintf("event %q at %s: no regular slots from %s",
			title, ev.StartTime, timeofday.Format(cutoff)))
		res.Blocked = append(res.Blocked, model.Window{
			Start:  timeofday.Format(cutoff),
			End:    timeofday.Format(timeofday.EndOfDay),
			Reason: title,
		})
	}

	res.Slots = finalize(slots)
	return res, nil
}

func (c *Calculator) parseSlotList(times []string, excID string) []int {
	out := make([]int, 0, len(times))
	for _, t := range times {
		m, err := timeofday.ParseMinutes(t)
		if err != nil {
			c.logger.Warn().Err(err).Str("exception_id", excID).Msg("skipping invalid allowed start time")
			continue
		}
		out = append(out, m)
	}
	return out
}

func ruleLattice(g *model.GenerateSpec) ([]int, error) {
	start, err := timeofday.ParseMinutes(g.Start)
	if err != nil {
		return nil, err
	}
	end, err := timeofday.ParseMinutes(g.End)
	if err != nil {
		return nil, err
	}
	if g.IntervalMinutes <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %d", g.IntervalMinutes)
	}
	return minuteLattice(start, end, g.IntervalMinutes), nil
}

// blockLattice builds the fallback lattice over opening blocks. A block's
// end is its closing time, so no slot starts on it.
func blockLattice(blocks []openinghours.Block) []int {
	var out []int
	for _, b := range blocks {
		start, err := timeofday.ParseMinutes(b.Start)
		if err != nil {
			continue
		}
		end, err := timeofday.ParseMinutes(b.End)
		if err != nil || end <= start {
			continue
		}
		out = append(out, minuteLattice(start, end-1, fallbackIntervalMinutes)...)
	}
	return out
}

func minuteLattice(start, end, interval int) []int {
	var out []int
	for _, s := range timeofday.Lattice(start, end, interval) {
		out = append(out, timeofday.MustMinutes(s))
	}
	return out
}

// subtractWindows drops every slot t with windowStart <= t < windowEnd.
func subtractWindows(slots []int, windows []model.Window) []int {
	if len(windows) == 0 {
		return slots
	}
	type span struct{ start, end int }
	spans := make([]span, 0, len(windows))
	for _, w := range windows {
		s, err1 := timeofday.ParseMinutes(w.Start)
		e, err2 := timeofday.ParseMinutes(w.End)
		if err1 != nil || err2 != nil {
			continue
		}
		spans = append(spans, span{s, e})
	}

	out := slots[:0]
	for _, t := range slots {
		blocked := false
		for _, sp := range spans {
			if t >= sp.start && t < sp.end {
				blocked = true
				break
			}
		}
		if !blocked {
			out = append(out, t)
		}
	}
	return out
}

func finalize(slots []int) []string {
	sort.Ints(slots)
	out := make([]string, 0, len(slots))
	for i, m := range slots {
		if i > 0 && m == slots[i-1] {
			continue
		}
		out = append(out, timeofday.Format(m))
	}
	return out
}
