package slots

import (
	"context"
	"fmt"
	"time"

	"tischbuch/internal/apperr"
	"tischbuch/internal/timeofday"
)

// PublicSettings bounds what the guest widget may book.
type PublicSettings struct {
	MinAdvance     time.Duration
	MaxAdvanceDays int
}

// Public is the guest-facing variant of Calculator. It additionally hides
// dates outside the booking window and slots that start too soon.
type Public struct {
	calc     *Calculator
	settings PublicSettings
	location func() *time.Location
	now      func() time.Time
}

func NewPublic(calc *Calculator, settings PublicSettings, location func() *time.Location) *Public {
	return &Public{calc: calc, settings: settings, location: location, now: time.Now}
}

func (p *Public) Compute(ctx context.Context, date string) (*Result, error) {
	loc := time.UTC
	if p.location != nil {
		loc = p.location()
	}

	d, err := timeofday.ParseDate(date, loc)
	if err != nil {
		return nil, apperr.Validation("date", "%v", err)
	}
	date = d.Format(timeofday.DateLayout)

	now := p.now().In(loc)
	today := now.Format(timeofday.DateLayout)
	last := now.AddDate(0, 0, p.settings.MaxAdvanceDays).Format(timeofday.DateLayout)

	switch {
	case date < today:
		return closedResult(date, "date is in the past"), nil
	case date > last:
		return closedResult(date, fmt.Sprintf("bookings open at most %d days in advance", p.settings.MaxAdvanceDays)), nil
	}

	res, err := p.calc.Compute(ctx, date)
	if err != nil {
		return nil, err
	}
	out := *res
	out.Notes = append([]string(nil), res.Notes...)

	if date != today || !out.Open {
		return &out, nil
	}

	earliest := now.Add(p.settings.MinAdvance)
	if earliest.Format(timeofday.DateLayout) != today {
		out.Slots = []string{}
		out.Notes = append(out.Notes, "no slots left today")
		return &out, nil
	}

	threshold := timeofday.MinuteOfDay(earliest)
	kept := make([]string, 0, len(out.Slots))
	for _, s := range out.Slots {
		if timeofday.MustMinutes(s) >= threshold {
			kept = append(kept, s)
		}
	}
	if len(kept) < len(out.Slots) {
		out.Notes = append(out.Notes, "slots before "+timeofday.Format(threshold)+" are no longer bookable")
	}
	out.Slots = kept
	return &out, nil
}
