package booking

import (
	"context"
	"testing"
	"time"

	"tischbuch/internal/apperr"
	"tischbuch/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	items map[string]model.Reservation
}

func newMemStore() *memStore {
	return &memStore{items: map[string]model.Reservation{}}
}

func (m *memStore) CreateReservation(_ context.Context, r *model.Reservation, _ time.Time) error {
	if _, ok := m.items[r.ID]; ok {
		return apperr.Conflict("reservation %s already exists", r.ID)
	}
	m.items[r.ID] = *r
	return nil
}

func (m *memStore) GetReservation(_ context.Context, id string) (*model.Reservation, error) {
	r, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("reservation", id)
	}
	return &r, nil
}

func (m *memStore) UpdateReservationStatus(_ context.Context, id string, from, to model.ReservationStatus, _ time.Time) (bool, error) {
	r, ok := m.items[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	m.items[id] = r
	return true, nil
}

type mockListener struct{ mock.Mock }

func (m *mockListener) OnReservationStatusChange(ctx context.Context, from, to model.ReservationStatus, r model.Reservation) (*model.WaitlistEntry, error) {
	args := m.Called(ctx, from, to, r)
	entry, _ := args.Get(0).(*model.WaitlistEntry)
	return entry, args.Error(1)
}

func newService(store ReservationStore, listener StatusListener, evs fakeEvents) *Service {
	logger := zerolog.Nop()
	return NewService(newGuards(evs, Settings{}, nil, nil), store, listener, nil, &logger)
}

func TestService_Create(t *testing.T) {
	store := newMemStore()
	svc := newService(store, nil, fakeEvents{gala})
	ctx := context.Background()

	r, err := svc.Create(ctx, model.Reservation{Date: "2026-03-14", Time: "12:00", DurationMinutes: 45, PartySize: 4})
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, model.StatusNew, r.Status)
	assert.Equal(t, 115, r.DurationMinutes)
	assert.Contains(t, store.items, r.ID)

	_, err = svc.Create(ctx, model.Reservation{Date: "2026-03-14", Time: "19:00", PartySize: 2})
	assert.True(t, apperr.IsConflict(err))
	assert.Len(t, store.items, 1, "rejected drafts are not written")

	_, err = svc.Create(ctx, model.Reservation{Date: "2026-03-14", Time: "12:00"})
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.Create(ctx, model.Reservation{Date: "2026-03-14", Time: "12:00", PartySize: 2, Status: model.StatusArrived})
	assert.True(t, apperr.IsValidation(err))
}

func TestService_CreateNeverOverwrites(t *testing.T) {
	store := newMemStore()
	svc := newService(store, nil, nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, model.Reservation{Date: "2026-03-14", Time: "12:00", PartySize: 4})
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, first.ID, model.StatusCancelled)
	require.NoError(t, err)

	second, err := svc.Create(ctx, model.Reservation{ID: first.ID, Date: "2026-03-20", Time: "12:00", PartySize: 9})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	stored, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, stored.Status)
	assert.Equal(t, "2026-03-14", stored.Date)
	assert.Equal(t, 4, stored.PartySize)
	assert.Len(t, store.items, 2)
}

func TestService_ChangeStatusTriggersWaitlist(t *testing.T) {
	store := newMemStore()
	store.items["r1"] = model.Reservation{ID: "r1", Date: "2026-03-14", Time: "19:00", Status: model.StatusConfirmed, PartySize: 4}

	offered := &model.WaitlistEntry{ID: "w1", Status: model.WaitlistOffered}
	listener := &mockListener{}
	listener.On("OnReservationStatusChange", mock.Anything, model.StatusConfirmed, model.StatusCancelled,
		mock.MatchedBy(func(r model.Reservation) bool { return r.ID == "r1" && r.Status == model.StatusCancelled })).
		Return(offered, nil)

	svc := newService(store, listener, nil)
	change, err := svc.ChangeStatus(context.Background(), "r1", model.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, change.From)
	assert.Equal(t, model.StatusCancelled, change.Reservation.Status)
	assert.Equal(t, offered, change.Offered)
	listener.AssertExpectations(t)
}

func TestService_ChangeStatusErrors(t *testing.T) {
	store := newMemStore()
	store.items["done"] = model.Reservation{ID: "done", Status: model.StatusCompleted}
	svc := newService(store, nil, nil)
	ctx := context.Background()

	_, err := svc.ChangeStatus(ctx, "done", model.StatusCancelled)
	assert.True(t, apperr.IsConflict(err))

	_, err = svc.ChangeStatus(ctx, "missing", model.StatusCancelled)
	assert.True(t, apperr.IsNotFound(err))

	_, err = svc.ChangeStatus(ctx, "done", "WHATEVER")
	assert.True(t, apperr.IsValidation(err))
}
