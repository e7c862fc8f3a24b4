// Package events provides the process-wide auth event bus. Any collaborator
// may subscribe to lifecycle topics without holding a reference to the store.
package events

import (
	"time"

	evbus "github.com/asaskevich/EventBus"

	domainauth "github.com/brightline/portal-sessions/internal/domain/auth"
)

// Topics raised by the session store.
const (
	TopicLogin           = "auth.login"
	TopicLogout          = "auth.logout"
	TopicSessionExpired  = "auth.session_expired"
	TopicSessionExtended = "auth.session_extended"
	TopicTokenRefreshed  = "auth.token_refreshed"
	TopicStateChange     = "auth.state_change"
)

// Event is the payload delivered to subscribers.
type Event struct {
	Topic     string
	User      *domainauth.User
	SessionID string
	At        time.Time
}

// Bus wraps an EventBus instance. Handlers run synchronously on the
// publishing goroutine.
type Bus struct {
	bus evbus.Bus
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{bus: evbus.New()}
}

// Publish delivers the event to all subscribers of the topic.
func (b *Bus) Publish(topic string, evt Event) {
	evt.Topic = topic
	b.bus.Publish(topic, evt)
}

// Subscribe registers fn for the topic.
func (b *Bus) Subscribe(topic string, fn func(Event)) error {
	return b.bus.Subscribe(topic, fn)
}

// Unsubscribe removes fn from the topic. The same function value passed to
// Subscribe must be used.
func (b *Bus) Unsubscribe(topic string, fn func(Event)) error {
	return b.bus.Unsubscribe(topic, fn)
}
