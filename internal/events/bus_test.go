package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSetsTopic(t *testing.T) {
	bus := NewBus()

	var got Event
	require.NoError(t, bus.Subscribe(TopicLogin, func(evt Event) {
		got = evt
	}))

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	bus.Publish(TopicLogin, Event{SessionID: "sess-1", At: at})

	assert.Equal(t, TopicLogin, got.Topic)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, at, got.At)
}

func TestBus_TopicsAreIsolated(t *testing.T) {
	bus := NewBus()

	logins := 0
	require.NoError(t, bus.Subscribe(TopicLogin, func(Event) { logins++ }))

	bus.Publish(TopicLogout, Event{})
	bus.Publish(TopicLogin, Event{})

	assert.Equal(t, 1, logins)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	handler := func(Event) { calls++ }
	require.NoError(t, bus.Subscribe(TopicLogout, handler))
	bus.Publish(TopicLogout, Event{})
	require.NoError(t, bus.Unsubscribe(TopicLogout, handler))
	bus.Publish(TopicLogout, Event{})

	assert.Equal(t, 1, calls)
}
