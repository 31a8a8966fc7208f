// Package calendar turns upstream event documents into the canonical
// model.Event and answers which events take place on a date.
package calendar

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"tischbuch/internal/apperr"
	"tischbuch/internal/model"
	"tischbuch/internal/timeofday"
)

// maxEventSpanDays caps start/end date ranges expanded into single days.
const maxEventSpanDays = 62

// Document is an event as delivered by the events module. Field names vary
// between producers; Normalize reconciles them.
type Document map[string]any

// ParseDocument decodes a raw JSON event document.
func ParseDocument(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperr.Validation("event", "invalid document: %v", err)
	}
	if doc == nil {
		return nil, apperr.Validation("event", "document must be an object")
	}
	return doc, nil
}

// Normalized is a canonical event together with every date it occurs on.
type Normalized struct {
	Event model.Event
	Dates []string
}

// On returns the event as it occurs on date.
func (n Normalized) On(date string) (model.Event, bool) {
	for _, d := range n.Dates {
		if d == date {
			ev := n.Event
			ev.Date = date
			return ev, true
		}
	}
	return model.Event{}, false
}

// Normalize maps a raw document to the canonical event shape.
//
// Dates are taken from the first present key of event_date, date, dates,
// start_date/startDate (optionally ranged with end_date/endDate).
// blocks_normal_reservations defaults to true when absent.
func Normalize(doc Document) (Normalized, error) {
	var n Normalized

	n.Event.ID = firstString(doc, "id", "_id", "event_id")
	if n.Event.ID == "" {
		return n, apperr.Validation("id", "event id is required")
	}
	n.Event.Title = firstString(doc, "title", "name")

	dates, err := eventDates(doc)
	if err != nil {
		return n, err
	}
	if len(dates) == 0 {
		return n, apperr.Validation("date", "event %s has no date", n.Event.ID)
	}
	n.Dates = dates
	n.Event.Date = dates[0]

	if n.Event.StartTime, err = clockValue(doc, "start_time", "startTime", "time"); err != nil {
		return n, err
	}
	if n.Event.EndTime, err = clockValue(doc, "end_time", "endTime"); err != nil {
		return n, err
	}

	n.Event.BlocksNormalReservations = true
	if v, ok := firstValue(doc, "blocks_normal_reservations", "blocksNormalReservations"); ok {
		b, ok := asBool(v)
		if !ok {
			return n, apperr.Validation("blocks_normal_reservations", "expected boolean, got %v", v)
		}
		n.Event.BlocksNormalReservations = b
	}

	n.Event.ReservationType = firstString(doc, "reservation_type", "reservationType")

	if v, ok := firstValue(doc, "event_cutoff_minutes", "eventCutoffMinutes"); ok && v != nil {
		m, ok := asInt(v)
		if !ok || m < 0 {
			return n, apperr.Validation("event_cutoff_minutes", "expected non-negative integer, got %v", v)
		}
		n.Event.CutoffMinutes = &m
	}

	return n, nil
}

func eventDates(doc Document) ([]string, error) {
	for _, key := range []string{"event_date", "date"} {
		if s := firstString(doc, key); s != "" {
			d, err := normalizeDate(s, key)
			if err != nil {
				return nil, err
			}
			return []string{d}, nil
		}
	}

	if raw, ok := doc["dates"]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, apperr.Validation("dates", "expected a list of dates")
		}
		seen := make(map[string]struct{}, len(list))
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, _ := item.(string)
			d, err := normalizeDate(s, "dates")
			if err != nil {
				return nil, err
			}
			if _, dup := seen[d]; dup {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
		sort.Strings(out)
		return out, nil
	}

	start := firstString(doc, "start_date", "startDate")
	if start == "" {
		return nil, nil
	}
	from, err := normalizeDate(start, "start_date")
	if err != nil {
		return nil, err
	}
	end := firstString(doc, "end_date", "endDate")
	if end == "" {
		return []string{from}, nil
	}
	to, err := normalizeDate(end, "end_date")
	if err != nil {
		return nil, err
	}
	return expandRange(from, to)
}

func expandRange(from, to string) ([]string, error) {
	start, _ := time.Parse(timeofday.DateLayout, from)
	end, _ := time.Parse(timeofday.DateLayout, to)
	if end.Before(start) {
		return nil, apperr.Validation("end_date", "end date %s before start date %s", to, from)
	}
	if end.Sub(start) > maxEventSpanDays*24*time.Hour {
		return nil, apperr.Validation("end_date", "event spans more than %d days", maxEventSpanDays)
	}
	var out []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(timeofday.DateLayout))
	}
	return out, nil
}

// normalizeDate accepts YYYY-MM-DD and RFC 3339 timestamps and returns the
// calendar date part.
func normalizeDate(s, field string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) >= len(timeofday.DateLayout) {
		if _, err := time.Parse(timeofday.DateLayout, s[:len(timeofday.DateLayout)]); err == nil {
			return s[:len(timeofday.DateLayout)], nil
		}
	}
	return "", apperr.Validation(field, "invalid date %q, expected YYYY-MM-DD", s)
}

// clockValue accepts "HH:MM" and "HH:MM:SS"; missing values stay empty.
func clockValue(doc Document, keys ...string) (string, error) {
	s := firstString(doc, keys...)
	if s == "" {
		return "", nil
	}
	if parts := strings.Split(s, ":"); len(parts) == 3 {
		s = parts[0] + ":" + parts[1]
	}
	m, err := timeofday.ParseMinutes(s)
	if err != nil {
		return "", apperr.Validation(keys[0], "%v", err)
	}
	return timeofday.Format(m), nil
}

func firstValue(doc Document, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := doc[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func firstString(doc Document, keys ...string) string {
	for _, k := range keys {
		switch v := doc[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(b)
		return parsed, err == nil
	case nil:
		return true, true
	}
	return false, false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

// String is used in log lines.
func (n Normalized) String() string {
	return fmt.Sprintf("%s (%s) on %v", n.Event.ID, n.Event.Title, n.Dates)
}
