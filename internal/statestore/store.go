// Package statestore maintains the latest known state of every entity.
//
// The bridge publishes retained state messages under climatesync/state/#;
// a single wildcard subscription feeds the in-memory cache. Reads are
// synchronous and never block on the broker, and interested parties can
// register per-entity change callbacks with a cancel handle.
package statestore

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/climate-sync-core/internal/infrastructure/mqtt"
)

// Availability sentinel values per the entity state convention.
// An entity reporting either value has no usable reading.
const (
	StateUnknown     = "unknown"
	StateUnavailable = "unavailable"
)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Subscriber is the narrow MQTT capability the store needs.
// *mqtt.Client satisfies this interface.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// State is the latest known value of an entity.
type State struct {
	EntityID  string
	Value     string
	UpdatedAt time.Time
}

// Available reports whether the state carries a usable reading.
func (s State) Available() bool {
	return s.Value != "" && s.Value != StateUnknown && s.Value != StateUnavailable
}

// statePayload is the wire format of a state message.
type statePayload struct {
	State string `json:"state"`
}

// watcher is a registered change callback.
type watcher struct {
	id int
	fn func(entityID, value string)
}

// Store is the entity state cache.
//
// Thread Safety: all methods are safe for concurrent use.
type Store struct {
	subscriber Subscriber
	qos        byte
	logger     Logger

	states   map[string]State
	watchers map[string][]watcher
	nextID   int
	started  bool
	mu       sync.RWMutex
}

// New creates a state store fed by the given subscriber.
func New(subscriber Subscriber, qos byte) *Store {
	return &Store{
		subscriber: subscriber,
		qos:        qos,
		logger:     noopLogger{},
		states:     make(map[string]State),
		watchers:   make(map[string][]watcher),
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Start subscribes to the wildcard state topic and begins caching.
//
// Retained messages mean the cache warms up with the current state of
// every entity shortly after subscribing.
func (s *Store) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	topic := mqtt.Topics{}.AllEntityStates()
	if err := s.subscriber.Subscribe(topic, s.qos, s.handleStateMessage); err != nil {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		return err
	}
	return nil
}

// Close unsubscribes from the state topic. The cache remains readable.
func (s *Store) Close() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	return s.subscriber.Unsubscribe(mqtt.Topics{}.AllEntityStates())
}

// Get returns the latest known state of an entity.
// The second return value is false when no state has been seen.
func (s *Store) Get(entityID string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[entityID]
	return state, ok
}

// Subscribe registers a change callback for the given entities.
//
// The callback fires on every state message for a watched entity,
// including repeats of the same value. The returned cancel function
// removes the registration and is safe to call more than once.
func (s *Store) Subscribe(entityIDs []string, fn func(entityID, value string)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	for _, entityID := range entityIDs {
		s.watchers[entityID] = append(s.watchers[entityID], watcher{id: id, fn: fn})
	}
	s.mu.Unlock()

	ids := make([]string, len(entityIDs))
	copy(ids, entityIDs)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for _, entityID := range ids {
				list := s.watchers[entityID]
				for i := range list {
					if list[i].id == id {
						s.watchers[entityID] = append(list[:i], list[i+1:]...)
						break
					}
				}
				if len(s.watchers[entityID]) == 0 {
					delete(s.watchers, entityID)
				}
			}
		})
	}
}

// WatcherCount returns the number of entities with registered callbacks.
func (s *Store) WatcherCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.watchers)
}

// handleStateMessage processes one state message from the broker.
//
// Topic format: climatesync/state/{entity_id}. Payload is JSON
// {"state":"..."}; a bare string payload is accepted as a fallback.
func (s *Store) handleStateMessage(topic string, payload []byte) error {
	entityID := strings.TrimPrefix(topic, mqtt.TopicPrefix+"/state/")
	if entityID == "" || entityID == topic {
		s.logger.Warn("state message on unexpected topic", "topic", topic)
		return nil
	}

	// A JSON envelope wins even when its state is empty; an empty state
	// means the bridge has no reading, not that the payload is malformed.
	// The bare-string fallback is only for payloads that are not JSON.
	value := strings.TrimSpace(string(payload))
	var parsed statePayload
	if err := json.Unmarshal(payload, &parsed); err == nil {
		value = parsed.State
	}

	s.mu.Lock()
	s.states[entityID] = State{
		EntityID:  entityID,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	list := s.watchers[entityID]
	callbacks := make([]func(string, string), 0, len(list))
	for _, w := range list {
		callbacks = append(callbacks, w.fn)
	}
	s.mu.Unlock()

	s.logger.Debug("state updated", "entity_id", entityID, "value", value)

	// Invoke callbacks outside the lock so they can call back into the store.
	for _, fn := range callbacks {
		fn(entityID, value)
	}

	return nil
}
