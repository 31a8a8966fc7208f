package model

import "time"

// RecordState is the lifecycle tag of staff-maintained records.
// Only StateActive records take part in slot resolution; archived
// records are kept for the audit trail and never hard-deleted.
type RecordState string

const (
	StateActive   RecordState = "active"
	StateInactive RecordState = "inactive"
	StateArchived RecordState = "archived"
)

// Valid reports whether s is a known state.
func (s RecordState) Valid() bool {
	switch s {
	case StateActive, StateInactive, StateArchived:
		return true
	}
	return false
}

// Window is a blocked time range [Start, End) within a day.
type Window struct {
	Start  string `json:"start" yaml:"start"`   // "12:05"
	End    string `json:"end" yaml:"end"`       // "13:55"
	Reason string `json:"reason" yaml:"reason"` // "Mittagspause"
}

// GenerateSpec describes the raw slot lattice of a rule.
type GenerateSpec struct {
	Start           string `json:"start"`
	End             string `json:"end"`
	IntervalMinutes int    `json:"interval_minutes"`
}

// SlotRule is a recurring weekly slot template.
type SlotRule struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	ValidFrom      string        `json:"valid_from,omitempty"` // YYYY-MM-DD, empty = unbounded
	ValidTo        string        `json:"valid_to,omitempty"`   // YYYY-MM-DD, empty = unbounded
	AppliesDays    []int         `json:"applies_days"`         // 0=Mon .. 6=Sun
	Generate       *GenerateSpec `json:"generate_between,omitempty"`
	BlockedWindows []Window      `json:"blocked_windows"`
	Priority       int           `json:"priority"`
	State          RecordState   `json:"state"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// AppliesOn reports whether the rule's weekday set contains weekday.
func (r *SlotRule) AppliesOn(weekday int) bool {
	for _, d := range r.AppliesDays {
		if d == weekday {
			return true
		}
	}
	return false
}

// ValidOn reports whether date (YYYY-MM-DD) lies within the validity window.
func (r *SlotRule) ValidOn(date string) bool {
	if r.ValidFrom != "" && date < r.ValidFrom {
		return false
	}
	if r.ValidTo != "" && date > r.ValidTo {
		return false
	}
	return true
}

// SlotException overrides slot generation for one calendar date.
// A nil slice means "not supplied"; an empty non-nil slice is an explicit
// empty override.
type SlotException struct {
	ID                string      `json:"id"`
	Date              string      `json:"date"`
	Reason            string      `json:"reason"`
	AllowedStartTimes []string    `json:"allowed_start_times_override,omitempty"`
	BlockedWindows    []Window    `json:"blocked_windows_override,omitempty"`
	State             RecordState `json:"state"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}
