package calendar

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"tischbuch/internal/apperr"
	"tischbuch/internal/db"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) Document {
	t.Helper()
	doc, err := ParseDocument([]byte(raw))
	require.NoError(t, err)
	return doc
}

func TestNormalize_DateShapes(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		dates []string
	}{
		{"event_date", `{"id":"e","event_date":"2026-03-14"}`, []string{"2026-03-14"}},
		{"date", `{"id":"e","date":"2026-03-14"}`, []string{"2026-03-14"}},
		{"dates list", `{"id":"e","dates":["2026-03-15","2026-03-14","2026-03-15"]}`, []string{"2026-03-14", "2026-03-15"}},
		{"start_date", `{"id":"e","start_date":"2026-03-14T18:00:00+01:00"}`, []string{"2026-03-14"}},
		{"startDate range", `{"id":"e","startDate":"2026-03-14","endDate":"2026-03-16"}`, []string{"2026-03-14", "2026-03-15", "2026-03-16"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Normalize(mustParse(t, tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.dates, n.Dates)
		})
	}
}

func TestNormalize_Fields(t *testing.T) {
	n, err := Normalize(mustParse(t, `{
		"_id": "gala",
		"name": "Gala-Dinner",
		"date": "2026-03-14",
		"startTime": "19:30:00",
		"endTime": "22:00",
		"eventCutoffMinutes": 90
	}`))
	require.NoError(t, err)

	ev := n.Event
	assert.Equal(t, "gala", ev.ID)
	assert.Equal(t, "Gala-Dinner", ev.Title)
	assert.Equal(t, "19:30", ev.StartTime)
	assert.Equal(t, "22:00", ev.EndTime)
	assert.True(t, ev.BlocksNormalReservations, "defaults to blocking")
	require.NotNil(t, ev.CutoffMinutes)
	assert.Equal(t, 90, *ev.CutoffMinutes)

	n, err = Normalize(mustParse(t, `{"id":"quiz","date":"2026-03-14","blocks_normal_reservations":false,"reservation_type":"event_only"}`))
	require.NoError(t, err)
	assert.False(t, n.Event.BlocksNormalReservations)
	assert.True(t, n.Event.Blocking(), "event_only is exclusive regardless of the flag")
}

func TestNormalize_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing id", `{"date":"2026-03-14"}`},
		{"missing date", `{"id":"e"}`},
		{"bad date", `{"id":"e","date":"14.03.2026"}`},
		{"bad time", `{"id":"e","date":"2026-03-14","start_time":"7pm"}`},
		{"reversed range", `{"id":"e","start_date":"2026-03-14","end_date":"2026-03-10"}`},
		{"bad flag", `{"id":"e","date":"2026-03-14","blocks_normal_reservations":"maybe"}`},
		{"negative cutoff", `{"id":"e","date":"2026-03-14","event_cutoff_minutes":-5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(mustParse(t, tt.raw))
			assert.True(t, apperr.IsValidation(err), "got %v", err)
		})
	}

	_, err := ParseDocument([]byte(`[1,2]`))
	assert.True(t, apperr.IsValidation(err))
}

func TestService_ImportAndEventsOn(t *testing.T) {
	logger := zerolog.Nop()
	store, err := db.NewDB(filepath.Join(t.TempDir(), "cal.db"), &logger)
	require.NoError(t, err)
	defer store.Close()

	svc := NewService(store, &logger)
	ctx := context.Background()

	_, err = svc.Import(ctx, []byte(`{"id":"gala","title":"Gala","dates":["2026-03-14","2026-03-21"],"start_time":"19:30","end_time":"22:00"}`))
	require.NoError(t, err)
	_, err = svc.Import(ctx, []byte(`{"id":"brunch","title":"Brunch","date":"2026-03-14","start_time":"10:00","blocks_normal_reservations":false}`))
	require.NoError(t, err)

	events, err := svc.EventsOn(ctx, "2026-03-21")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "gala", events[0].ID)
	assert.Equal(t, "2026-03-21", events[0].Date)

	events, err = svc.EventsOn(ctx, "2026-03-14")
	require.NoError(t, err)
	assert.Len(t, events, 2)
	blocking := BlockingOn(events)
	require.Len(t, blocking, 1)
	assert.Equal(t, "gala", blocking[0].ID)

	require.NoError(t, svc.Delete(ctx, "gala"))
	events, err = svc.EventsOn(ctx, "2026-03-21")
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = svc.Import(ctx, []byte(`{"title":"no id"}`))
	assert.True(t, apperr.IsValidation(err))
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) InvalidateAll(context.Context) error {
	c.calls++
	return nil
}

func TestService_InvalidatesSlotCache(t *testing.T) {
	logger := zerolog.Nop()
	store, err := db.NewDB(filepath.Join(t.TempDir(), "cal.db"), &logger)
	require.NoError(t, err)
	defer store.Close()

	inv := &countingInvalidator{}
	svc := NewService(store, &logger).WithInvalidator(inv)
	ctx := context.Background()

	_, err = svc.Import(ctx, []byte(`{"id":"gala","title":"Gala","date":"2026-03-14","start_time":"19:30"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, inv.calls)

	_, err = svc.Import(ctx, []byte(`{"title":"no id"}`))
	require.Error(t, err)
	assert.Equal(t, 1, inv.calls)

	require.NoError(t, svc.Delete(ctx, "gala"))
	assert.Equal(t, 2, inv.calls)
}

type brokenStore struct{ Store }

func (brokenStore) EventDocumentsOn(context.Context, string) ([][]byte, error) {
	return nil, errors.New("disk on fire")
}

func TestService_EventsOnStoreError(t *testing.T) {
	logger := zerolog.Nop()
	svc := NewService(brokenStore{}, &logger)
	_, err := svc.EventsOn(context.Background(), "2026-03-14")
	assert.Error(t, err)
}
