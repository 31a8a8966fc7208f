package model

// ReservationStatus is the lifecycle status of a table reservation.
type ReservationStatus string

const (
	StatusNew       ReservationStatus = "NEU"
	StatusConfirmed ReservationStatus = "BESTAETIGT"
	StatusArrived   ReservationStatus = "ANGEKOMMEN"
	StatusCompleted ReservationStatus = "ABGESCHLOSSEN"
	StatusNoShow    ReservationStatus = "NO_SHOW"
	StatusCancelled ReservationStatus = "STORNIERT"
)

// Valid reports whether s is a known status.
func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusNew, StatusConfirmed, StatusArrived, StatusCompleted, StatusNoShow, StatusCancelled:
		return true
	}
	return false
}

// CountsAsGuest reports whether reservations in this status show up in
// the hourly guest overview.
func (s ReservationStatus) CountsAsGuest() bool {
	switch s {
	case StatusNew, StatusConfirmed, StatusArrived, StatusCompleted:
		return true
	}
	return false
}

// Reservation is the part of a table reservation the engine reads and validates.
type Reservation struct {
	ID              string            `json:"id"`
	Date            string            `json:"date"`
	Time            string            `json:"time"`
	DurationMinutes int               `json:"duration_minutes"`
	EndTime         string            `json:"end_time,omitempty"`
	EventID         string            `json:"event_id,omitempty"`
	Status          ReservationStatus `json:"status"`
	PartySize       int               `json:"party_size"`
	Archived        bool              `json:"archived,omitempty"`
}

// IsEventBooking reports whether the reservation belongs to an event.
func (r *Reservation) IsEventBooking() bool {
	return r.EventID != ""
}
