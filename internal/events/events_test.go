package events

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishToSubscribers(t *testing.T) {
	logger := zerolog.Nop()
	bus := NewEventBus(&logger)

	var got []string
	bus.Subscribe(TypeWaitlistOffered, func(e Event) error {
		return errors.New("first handler fails")
	})
	bus.Subscribe(TypeWaitlistOffered, func(e Event) error {
		var payload struct {
			EntryID string `json:"entry_id"`
		}
		require.NoError(t, e.Decode(&payload))
		got = append(got, payload.EntryID)
		return nil
	})
	bus.Subscribe(TypeWaitlistExpired, func(e Event) error {
		t.Fatal("unexpected event type")
		return nil
	})

	require.NoError(t, PublishPayload(bus, TypeWaitlistOffered, map[string]string{"entry_id": "w1"}))
	assert.Equal(t, []string{"w1"}, got)
}

func TestNew(t *testing.T) {
	ev, err := New(TypeGuardRejected, map[string]int{"n": 1})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.CreatedAt.IsZero())
	assert.JSONEq(t, `{"n":1}`, string(ev.Payload))

	_, err = New(TypeGuardRejected, make(chan int))
	assert.Error(t, err)

	assert.NoError(t, PublishPayload(nil, TypeGuardRejected, nil))
}
