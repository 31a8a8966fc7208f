// Package slots computes the bookable start times of a date from slot
// rules, date exceptions, opening hours and events.
package slots

import (
	"sort"

	"tischbuch/internal/model"
)

// ResolveRule returns the rule governing date, or nil when none applies.
// Only active rules whose weekday set contains weekday and whose validity
// window covers date are candidates. The highest priority wins; equal
// priorities are broken by the lexicographically smallest ID, so the
// result never depends on input order.
func ResolveRule(rules []model.SlotRule, date string, weekday int) *model.SlotRule {
	var best *model.SlotRule
	for i := range rules {
		r := &rules[i]
		if r.State != model.StateActive || !r.AppliesOn(weekday) || !r.ValidOn(date) {
			continue
		}
		if best == nil || r.Priority > best.Priority || (r.Priority == best.Priority && r.ID < best.ID) {
			best = r
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// ResolveException returns the active exception for date, or nil.
// The second return value is the number of active candidates found; more
// than one means storage violated the single-active-per-date constraint, in
// which case the lowest ID is returned.
func ResolveException(exceptions []model.SlotException, date string) (*model.SlotException, int) {
	var matches []model.SlotException
	for _, e := range exceptions {
		if e.State == model.StateActive && e.Date == date {
			matches = append(matches, e)
		}
	}
	if len(matches) == 0 {
		return nil, 0
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	out := matches[0]
	return &out, len(matches)
}
