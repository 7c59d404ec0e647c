// Package event provides the best-effort notification bus the game services
// publish to. The bus is an explicit object constructed once and handed to
// every component that publishes; there is no process-wide singleton emitter.
package event

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reserved and domain event types.
const (
	// TypePing is reserved for transport keep-alives. Consumers must ignore
	// it rather than treat it as domain data.
	TypePing = "ping"

	TypeCombatStarted   = "combat.started"
	TypeCombatEnded     = "combat.ended"
	TypeEffectApplied   = "effect.applied"
	TypeEffectExpired   = "effect.expired"
	TypeResourceChanged = "resource.changed"
)

// Event describes a state change published after the corresponding write.
// Delivery is best-effort: there is no replay and no ordering guarantee
// beyond "emitted after the write".
type Event struct {
	Type       string    `json:"type"`
	GameID     string    `json:"gameId"`
	EntityID   string    `json:"entityId,omitempty"`
	EntityType string    `json:"entityType,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Data       any       `json:"data,omitempty"`
}

// Subscriber receives published events.
//
// Notify must not block; slow consumers should buffer or drop.
type Subscriber interface {
	Notify(Event)
}

// Bus fans events out to registered subscribers.
// All methods are safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]Subscriber
	logger *zap.Logger
}

// NewBus creates an empty Bus.
//
// Precondition: logger must be non-nil.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[string]Subscriber),
		logger: logger,
	}
}

// Subscribe registers sub and returns its subscription id.
//
// Postcondition: sub receives every subsequent Publish until Unsubscribe.
func (b *Bus) Subscribe(sub Subscriber) string {
	id := uuid.NewString()
	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()
	return id
}

// Unsubscribe removes the subscription with the given id; unknown ids are a no-op.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// SubscriberCount returns the number of registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers e to every registered subscriber. Timestamp is stamped if
// unset. A panicking subscriber is logged and skipped; it never fails the
// publishing operation.
//
// Postcondition: every subscriber registered at call time had Notify invoked
// (or its panic logged).
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, e)
	}

	b.logger.Debug("event published",
		zap.String("type", e.Type),
		zap.String("game_id", e.GameID),
		zap.String("entity_id", e.EntityID),
		zap.Int("subscribers", len(subs)),
	)
}

func (b *Bus) deliver(s Subscriber, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("subscriber panicked during notify",
				zap.String("type", e.Type),
				zap.Any("panic", r),
			)
		}
	}()
	s.Notify(e)
}

// ChanSubscriber adapts a buffered channel into a Subscriber. When the buffer
// is full the event is dropped, which is the best-effort contract: consumers
// that fall behind miss events and there is no replay.
type ChanSubscriber struct {
	C chan Event
}

// NewChanSubscriber creates a ChanSubscriber with the given buffer size.
//
// Precondition: buffer must be >= 1.
func NewChanSubscriber(buffer int) *ChanSubscriber {
	return &ChanSubscriber{C: make(chan Event, buffer)}
}

// Notify enqueues e without blocking, dropping it if the buffer is full.
func (s *ChanSubscriber) Notify(e Event) {
	select {
	case s.C <- e:
	default:
	}
}
