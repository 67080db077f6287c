package syncer

import (
	"sync"

	"github.com/gofrs/uuid"
	"github.com/sirupsen/logrus"
)

// Events emitted by the Coordinator and the background worker.
const (
	EventOnline        = "online"
	EventOffline       = "offline"
	EventSyncStarted   = "sync-started"
	EventStorySynced   = "story-synced"
	EventSyncCompleted = "sync-completed"
	EventSyncFailed    = "sync-failed"
)

type (
	// A Listener receives events with their payload.
	Listener func(event string, data any)

	// A Bus broadcasts events to its registered listeners in registration
	// order. Delivery is synchronous and best-effort: a panicking listener
	// is logged and never prevents delivery to subsequent listeners.
	Bus struct {
		mu        sync.Mutex
		listeners []registration
		logger    logrus.FieldLogger
	}

	registration struct {
		token string
		fn    Listener
	}
)

// NewBus returns a new Bus.
func NewBus(logger logrus.FieldLogger) *Bus {
	return &Bus{logger: logger}
}

// Register adds the listener and returns a token used to deregister it.
func (b *Bus) Register(fn Listener) string {
	token := uuid.Must(uuid.NewV4()).String()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, registration{token: token, fn: fn})
	return token
}

// Deregister removes the listener for the given token.
// Deregistering an unknown token is a no-op.
func (b *Bus) Deregister(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, reg := range b.listeners {
		if reg.token == token {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

// Notify delivers the event to every registered listener.
func (b *Bus) Notify(event string, data any) {
	b.mu.Lock()
	listeners := make([]registration, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, reg := range listeners {
		b.dispatch(reg, event, data)
	}
}

func (b *Bus) dispatch(reg registration, event string, data any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithField("event", event).Errorf("listener %s panicked: %v", reg.token, r)
		}
	}()
	reg.fn(event, data)
}
