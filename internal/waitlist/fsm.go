// Package waitlist offers freed tables to waiting parties and expires
// offers that were not taken up in time.
package waitlist

import (
	"time"

	"tischbuch/internal/model"
)

// ReasonOfferExpired is the closed reason written by the expiry sweep.
const ReasonOfferExpired = "offer_expired"

var transitions = map[model.WaitlistStatus][]model.WaitlistStatus{
	model.WaitlistOpen:    {model.WaitlistOffered, model.WaitlistDone},
	model.WaitlistOffered: {model.WaitlistRedeemed, model.WaitlistDone},
}

// CanTransition checks if transition is allowed.
func CanTransition(from, to model.WaitlistStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Triggers reports whether a reservation status change frees a table for
// the waitlist. Only cancellations of reservations that had not started
// (NEU, BESTAETIGT) count.
func Triggers(from, to model.ReservationStatus) bool {
	if to != model.StatusCancelled {
		return false
	}
	return from == model.StatusNew || from == model.StatusConfirmed
}

// OfferCheck is the outcome of CheckOffer.
type OfferCheck struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// CheckOffer reports whether entry holds an actionable offer at now.
func CheckOffer(entry model.WaitlistEntry, now time.Time) OfferCheck {
	switch entry.Status {
	case model.WaitlistOffered:
	case model.WaitlistOpen:
		return OfferCheck{Reason: "no offer has been made yet"}
	case model.WaitlistRedeemed:
		return OfferCheck{Reason: "offer was already redeemed"}
	case model.WaitlistDone:
		if entry.ClosedReason == ReasonOfferExpired {
			return OfferCheck{Reason: "offer expired"}
		}
		return OfferCheck{Reason: "waitlist entry is closed"}
	default:
		return OfferCheck{Reason: "unknown status " + string(entry.Status)}
	}

	if entry.OfferExpiresAt == nil {
		return OfferCheck{Reason: "offer has no expiry"}
	}
	if now.After(*entry.OfferExpiresAt) {
		return OfferCheck{Reason: "offer expired at " + entry.OfferExpiresAt.Format(time.RFC3339)}
	}
	return OfferCheck{Valid: true}
}
