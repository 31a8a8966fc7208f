package waitlist

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"tischbuch/internal/apperr"
	"tischbuch/internal/db"
	"tischbuch/internal/events"
	"tischbuch/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T) (*Service, *db.DB, *clock, *events.EventBus) {
	t.Helper()
	logger := zerolog.Nop()
	store, err := db.NewDB(filepath.Join(t.TempDir(), "waitlist.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bus := events.NewEventBus(&logger)
	svc := NewService(store, Settings{OfferTTL: 24 * time.Hour, PartySizeSlack: 2}, bus, &logger)
	c := &clock{t: base}
	svc.now = c.now
	return svc, store, c, bus
}

func cancelled(partySize int) model.Reservation {
	return model.Reservation{ID: "res-1", Date: "2026-03-14", Time: "19:00", PartySize: partySize, Status: model.StatusCancelled}
}

func TestOnReservationStatusChange_OffersBestMatch(t *testing.T) {
	svc, _, c, bus := newTestService(t)
	ctx := context.Background()

	var offered []Offered
	bus.Subscribe(events.TypeWaitlistOffered, func(e events.Event) error {
		var o Offered
		require.NoError(t, e.Decode(&o))
		offered = append(offered, o)
		return nil
	})

	tooBig, err := svc.Enqueue(ctx, "2026-03-14", 7, 9)
	require.NoError(t, err)
	c.advance(time.Minute)
	first, err := svc.Enqueue(ctx, "2026-03-14", 6, 1)
	require.NoError(t, err)
	c.advance(time.Minute)
	_, err = svc.Enqueue(ctx, "2026-03-14", 2, 1)
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, "2026-03-15", 2, 5)
	require.NoError(t, err)

	entry, err := svc.OnReservationStatusChange(ctx, model.StatusConfirmed, model.StatusCancelled, cancelled(4))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, first.ID, entry.ID, "party of 6 fits 4+2 and was created first")
	assert.Equal(t, model.WaitlistOffered, entry.Status)
	require.NotNil(t, entry.OfferExpiresAt)
	assert.True(t, entry.OfferExpiresAt.Equal(c.now().Add(24*time.Hour)))

	stored, check, err := svc.Check(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, check.Valid)
	assert.Equal(t, "res-1", stored.OfferedReservationID)
	assert.Equal(t, "19:00", stored.OfferedTime)
	assert.True(t, stored.OfferExpiresAt.Equal(c.now().Add(24*time.Hour)))

	untouched, err := svc.Get(ctx, tooBig.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WaitlistOpen, untouched.Status)

	require.Len(t, offered, 1)
	assert.Equal(t, first.ID, offered[0].EntryID)
}

func TestOnReservationStatusChange_OnlyFromNotStarted(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	e, err := svc.Enqueue(ctx, "2026-03-14", 2, 0)
	require.NoError(t, err)

	for _, from := range []model.ReservationStatus{model.StatusArrived, model.StatusCompleted, model.StatusNoShow} {
		entry, err := svc.OnReservationStatusChange(ctx, from, model.StatusCancelled, cancelled(2))
		require.NoError(t, err)
		assert.Nil(t, entry, "from %s", from)
	}
	entry, err := svc.OnReservationStatusChange(ctx, model.StatusNew, model.StatusConfirmed, cancelled(2))
	require.NoError(t, err)
	assert.Nil(t, entry)

	got, err := svc.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WaitlistOpen, got.Status)

	entry, err = svc.OnReservationStatusChange(ctx, model.StatusNew, model.StatusCancelled, cancelled(2))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, e.ID, entry.ID)
}

func TestOnReservationStatusChange_SkipsTakenCandidate(t *testing.T) {
	svc, store, c, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Enqueue(ctx, "2026-03-14", 2, 5)
	require.NoError(t, err)
	b, err := svc.Enqueue(ctx, "2026-03-14", 2, 1)
	require.NoError(t, err)

	// Simulates a concurrent cancellation that already offered entry a.
	ok, err := store.OfferWaitlistEntry(ctx, a.ID, "other", "18:00", c.now().Add(time.Hour), c.now())
	require.NoError(t, err)
	require.True(t, ok)

	entry, err := svc.OnReservationStatusChange(ctx, model.StatusConfirmed, model.StatusCancelled, cancelled(2))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, b.ID, entry.ID)

	entry, err = svc.OnReservationStatusChange(ctx, model.StatusConfirmed, model.StatusCancelled, cancelled(2))
	require.NoError(t, err)
	assert.Nil(t, entry, "nobody left")
}

func TestExpireStaleOffers_Idempotent(t *testing.T) {
	svc, _, c, bus := newTestService(t)
	ctx := context.Background()

	var expiredEvents int
	bus.Subscribe(events.TypeWaitlistExpired, func(events.Event) error {
		expiredEvents++
		return nil
	})

	e, err := svc.Enqueue(ctx, "2026-03-14", 2, 0)
	require.NoError(t, err)
	_, err = svc.OnReservationStatusChange(ctx, model.StatusConfirmed, model.StatusCancelled, cancelled(2))
	require.NoError(t, err)

	n, err := svc.ExpireStaleOffers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "offer still fresh")

	c.advance(24*time.Hour + time.Second)

	n, err = svc.ExpireStaleOffers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = svc.ExpireStaleOffers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "second run expires nothing")
	assert.Equal(t, 1, expiredEvents)

	got, check, err := svc.Check(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WaitlistDone, got.Status)
	assert.Equal(t, ReasonOfferExpired, got.ClosedReason)
	assert.False(t, check.Valid)
	assert.Equal(t, "offer expired", check.Reason)
}

func TestCloseAndRedeem(t *testing.T) {
	svc, _, c, _ := newTestService(t)
	ctx := context.Background()

	open, err := svc.Enqueue(ctx, "2026-03-14", 2, 0)
	require.NoError(t, err)
	require.NoError(t, svc.Close(ctx, open.ID, "guest left"))
	assert.True(t, apperr.IsConflict(svc.Close(ctx, open.ID, "")))

	assert.True(t, apperr.IsConflict(svc.Redeem(ctx, open.ID)))

	other, err := svc.Enqueue(ctx, "2026-03-14", 2, 0)
	require.NoError(t, err)
	assert.True(t, apperr.IsConflict(svc.Redeem(ctx, other.ID)), "nothing offered yet")

	_, err = svc.OnReservationStatusChange(ctx, model.StatusConfirmed, model.StatusCancelled, cancelled(2))
	require.NoError(t, err)
	c.advance(23 * time.Hour)
	require.NoError(t, svc.Redeem(ctx, other.ID))

	got, err := svc.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WaitlistRedeemed, got.Status)

	assert.True(t, apperr.IsNotFound(svc.Close(ctx, "missing", "")))
}

func TestEnqueue_Validation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.Enqueue(context.Background(), "morgen", 2, 0)
	assert.True(t, apperr.IsValidation(err))
	_, err = svc.Enqueue(context.Background(), "2026-03-14", 0, 0)
	assert.True(t, apperr.IsValidation(err))
}

func TestCandidates_Order(t *testing.T) {
	entries := []model.WaitlistEntry{
		{ID: "c", Date: "d", PartySize: 2, Priority: 1, CreatedAt: base, Status: model.WaitlistOpen},
		{ID: "b", Date: "d", PartySize: 2, Priority: 1, CreatedAt: base, Status: model.WaitlistOpen},
		{ID: "a", Date: "d", PartySize: 2, Priority: 1, CreatedAt: base.Add(time.Second), Status: model.WaitlistOpen},
		{ID: "vip", Date: "d", PartySize: 4, Priority: 3, CreatedAt: base.Add(time.Hour), Status: model.WaitlistOpen},
		{ID: "big", Date: "d", PartySize: 5, Priority: 9, CreatedAt: base, Status: model.WaitlistOpen},
		{ID: "offered", Date: "d", PartySize: 2, Priority: 9, CreatedAt: base, Status: model.WaitlistOffered},
		{ID: "other-day", Date: "x", PartySize: 2, Priority: 9, CreatedAt: base, Status: model.WaitlistOpen},
	}

	got := Candidates(entries, "d", 2, 2)
	ids := make([]string, 0, len(got))
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"vip", "b", "c", "a"}, ids)
}

func TestCheckOffer(t *testing.T) {
	exp := base.Add(24 * time.Hour)

	tests := []struct {
		name  string
		entry model.WaitlistEntry
		now   time.Time
		valid bool
	}{
		{"fresh", model.WaitlistEntry{Status: model.WaitlistOffered, OfferExpiresAt: &exp}, base, true},
		{"at expiry", model.WaitlistEntry{Status: model.WaitlistOffered, OfferExpiresAt: &exp}, exp, true},
		{"after expiry", model.WaitlistEntry{Status: model.WaitlistOffered, OfferExpiresAt: &exp}, exp.Add(time.Second), false},
		{"open", model.WaitlistEntry{Status: model.WaitlistOpen}, base, false},
		{"redeemed", model.WaitlistEntry{Status: model.WaitlistRedeemed}, base, false},
		{"done", model.WaitlistEntry{Status: model.WaitlistDone}, base, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := CheckOffer(tt.entry, tt.now)
			assert.Equal(t, tt.valid, check.Valid)
			if !tt.valid {
				assert.NotEmpty(t, check.Reason)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(model.WaitlistOpen, model.WaitlistOffered))
	assert.True(t, CanTransition(model.WaitlistOpen, model.WaitlistDone))
	assert.True(t, CanTransition(model.WaitlistOffered, model.WaitlistRedeemed))
	assert.False(t, CanTransition(model.WaitlistOpen, model.WaitlistRedeemed))
	assert.False(t, CanTransition(model.WaitlistDone, model.WaitlistOpen))
}

type countingExpirer struct{ calls atomic.Int32 }

func (c *countingExpirer) ExpireStaleOffers(context.Context) (int64, error) {
	c.calls.Add(1)
	return 0, nil
}

func TestSweeper_RunsUntilCancelled(t *testing.T) {
	logger := zerolog.Nop()
	exp := &countingExpirer{}
	sw := NewSweeper(exp, 5*time.Millisecond, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return exp.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
