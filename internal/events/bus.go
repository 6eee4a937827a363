// Package events provides a small in-process publish/subscribe bus with a
// persistent trail. Handlers run asynchronously; publishing never blocks the
// request path on a slow subscriber.
package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ateliemoda/backend-atelie/internal/repo"
)

// Recorder persists published events. *repo.Store satisfies it.
type Recorder interface {
	InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (repo.DomainEventRow, error)
}

// Handler consumes one published event.
type Handler func(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte)

// Bus fans published events out to subscribers after recording them.
type Bus struct {
	Recorder Recorder
	Log      zerolog.Logger

	mu   sync.RWMutex
	subs map[string][]Handler
	wg   sync.WaitGroup
}

// NewBus builds a bus. Recorder may be nil, in which case events are
// dispatched without a persistent trail (used by tests).
func NewBus(recorder Recorder, log zerolog.Logger) *Bus {
	return &Bus{Recorder: recorder, Log: log, subs: map[string][]Handler{}}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], h)
}

// Publish records the event and dispatches it to subscribers. The payload is
// marshalled once; a marshalling failure drops the event with a log line
// rather than failing the caller's business operation.
func (b *Bus) Publish(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		b.Log.Error().Err(err).Str("topic", topic).Msg("event payload marshal failed")
		return
	}
	if b.Recorder != nil {
		if _, err := b.Recorder.InsertDomainEvent(ctx, topic, aggregateID, body); err != nil {
			b.Log.Error().Err(err).Str("topic", topic).Msg("event record failed")
		}
	}

	b.mu.RLock()
	handlers := b.subs[topic]
	b.mu.RUnlock()
	if len(handlers) == 0 {
		return
	}

	// Handlers outlive the request; detach from its cancellation but keep
	// the tenant and trace values.
	detached := context.WithoutCancel(ctx)
	for _, h := range handlers {
		h := h
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			h(detached, topic, aggregateID, body)
		}()
	}
}

// Wait blocks until all in-flight handlers finish. Called on shutdown.
func (b *Bus) Wait() {
	b.wg.Wait()
}
