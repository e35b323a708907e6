package host

import (
	"log/slog"
	"sync"

	"github.com/gemdesk/gemdesk/internal/login"
)

// subscriberBuffer sizes each subscriber channel. Four terminal event types
// exist and at most one fires per login attempt, so a small buffer only ever
// fills when a subscriber has stopped reading.
const subscriberBuffer = 8

// Broker fans login events out to SSE subscribers. Publish never blocks: a
// subscriber that cannot keep up loses events rather than stalling the login
// monitor goroutine.
type Broker struct {
	mu   sync.Mutex
	subs map[chan login.Event]struct{}
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[chan login.Event]struct{})}
}

// Subscribe registers a new subscriber channel.
func (b *Broker) Subscribe() chan login.Event {
	ch := make(chan login.Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes ch. Safe to call twice.
func (b *Broker) Unsubscribe(ch chan login.Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// Publish delivers ev to every subscriber that has room.
func (b *Broker) Publish(ev login.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// EventSink builds the login.Sink that feeds the broker, metrics, and log.
// Delivered at most once per attempt by the controller's contract.
func EventSink(broker *Broker, metrics *Metrics, log *slog.Logger) login.Sink {
	return func(ev login.Event) {
		if metrics != nil {
			metrics.ObserveLogin(string(ev.Type))
			if ev.Type == login.EventSuccess {
				metrics.SetAuthenticated(true)
			}
		}
		if ev.Type == login.EventError {
			log.Warn("login failed", "message", ev.Message)
		}
		broker.Publish(ev)
	}
}
