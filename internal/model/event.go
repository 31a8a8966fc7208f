package model

// ReservationTypeEventOnly marks events that exclude ordinary bookings
// regardless of the blocking flag.
const ReservationTypeEventOnly = "event_only"

// Event is the canonical shape of a venue event as seen by the engine.
type Event struct {
	ID                       string `json:"id"`
	Title                    string `json:"title"`
	Date                     string `json:"date"`
	StartTime                string `json:"start_time,omitempty"`
	EndTime                  string `json:"end_time,omitempty"`
	BlocksNormalReservations bool   `json:"blocks_normal_reservations"`
	ReservationType          string `json:"reservation_type,omitempty"`
	CutoffMinutes            *int   `json:"event_cutoff_minutes,omitempty"`
}

// Blocking reports whether the event excludes ordinary reservations.
func (e *Event) Blocking() bool {
	return e.BlocksNormalReservations || e.ReservationType == ReservationTypeEventOnly
}
