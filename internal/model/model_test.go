package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlotRule_ValidOn(t *testing.T) {
	unbounded := SlotRule{}
	assert.True(t, unbounded.ValidOn("2026-01-01"))

	r := SlotRule{ValidFrom: "2026-03-01", ValidTo: "2026-03-31"}
	assert.True(t, r.ValidOn("2026-03-01"), "from is inclusive")
	assert.True(t, r.ValidOn("2026-03-31"), "to is inclusive")
	assert.False(t, r.ValidOn("2026-02-28"))
	assert.False(t, r.ValidOn("2026-04-01"))

	openEnd := SlotRule{ValidFrom: "2026-03-01"}
	assert.True(t, openEnd.ValidOn("2099-12-31"))
}

func TestSlotRule_AppliesOn(t *testing.T) {
	r := SlotRule{AppliesDays: []int{0, 4, 5}}
	assert.True(t, r.AppliesOn(4))
	assert.False(t, r.AppliesOn(6))
}

func TestEvent_Blocking(t *testing.T) {
	assert.True(t, (&Event{BlocksNormalReservations: true}).Blocking())
	assert.True(t, (&Event{ReservationType: ReservationTypeEventOnly}).Blocking())
	assert.False(t, (&Event{ReservationType: "mixed"}).Blocking())
}

func TestStatuses(t *testing.T) {
	assert.True(t, StatusArrived.CountsAsGuest())
	assert.False(t, StatusNoShow.CountsAsGuest())
	assert.False(t, StatusCancelled.CountsAsGuest())
	assert.False(t, ReservationStatus("PENDING").Valid())
	assert.True(t, WaitlistDone.Terminal())
	assert.False(t, WaitlistOffered.Terminal())
	assert.False(t, RecordState("deleted").Valid())
}
