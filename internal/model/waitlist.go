package model

import "time"

// WaitlistStatus is the state of a waitlist entry.
type WaitlistStatus string

const (
	WaitlistOpen     WaitlistStatus = "OPEN"
	WaitlistOffered  WaitlistStatus = "OFFERED"
	WaitlistRedeemed WaitlistStatus = "REDEEMED"
	WaitlistDone     WaitlistStatus = "DONE"
)

// Terminal reports whether no further transition leaves s.
func (s WaitlistStatus) Terminal() bool {
	return s == WaitlistRedeemed || s == WaitlistDone
}

// WaitlistEntry is a party waiting for a table on a given date.
type WaitlistEntry struct {
	ID                   string         `json:"id"`
	Date                 string         `json:"date"`
	PartySize            int            `json:"party_size"`
	Priority             int            `json:"priority"`
	CreatedAt            time.Time      `json:"created_at"`
	Status               WaitlistStatus `json:"status"`
	OfferExpiresAt       *time.Time     `json:"offer_expires_at,omitempty"`
	OfferedReservationID string         `json:"offered_reservation_id,omitempty"`
	OfferedTime          string         `json:"offered_time,omitempty"`
	ClosedReason         string         `json:"closed_reason,omitempty"`
	UpdatedAt            time.Time      `json:"updated_at"`
}
