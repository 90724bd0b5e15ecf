package events

import (
	"sort"
	"sync"
)

// Topic names a channel on the bus.
type Topic string

const (
	TopicAuthChanged       Topic = "auth:changed"
	TopicCreditsUpdated    Topic = "credits:updated"
	TopicBaseCreditsSynced Topic = "credits:sync:base"
)

// Event is anything that can be published on a Bus.
type Event interface {
	Topic() Topic
}

// AuthChanged is published when the stored auth profile is written or cleared.
type AuthChanged struct {
	Name     string
	SignedIn bool
	Credits  *int64
}

// Topic implements Event.
func (AuthChanged) Topic() Topic { return TopicAuthChanged }

// CreditsUpdated carries the user-visible available balance after a ledger mutation.
type CreditsUpdated struct {
	Available int64
}

// Topic implements Event.
func (CreditsUpdated) Topic() Topic { return TopicCreditsUpdated }

// BaseCreditsSynced carries an authoritative balance reported by another component.
type BaseCreditsSynced struct {
	Credits int64
	Reason  string
}

// Topic implements Event.
func (BaseCreditsSynced) Topic() Topic { return TopicBaseCreditsSynced }

// Handler receives events for a subscribed topic.
type Handler func(Event)

// Publisher is the write side of a Bus.
type Publisher interface {
	Publish(event Event)
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a synchronous publish/subscribe hub. Handlers run on the publishing
// goroutine in subscription order.
type Bus struct {
	mutex       sync.RWMutex
	nextID      uint64
	subscribers map[Topic][]subscription
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[Topic][]subscription)}
}

// Subscribe registers handler for topic and returns a func that removes it.
// The returned func is safe to call more than once.
func (bus *Bus) Subscribe(topic Topic, handler Handler) func() {
	if handler == nil {
		return func() {}
	}
	bus.mutex.Lock()
	bus.nextID++
	id := bus.nextID
	bus.subscribers[topic] = append(bus.subscribers[topic], subscription{id: id, handler: handler})
	bus.mutex.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			bus.unsubscribe(topic, id)
		})
	}
}

// Publish delivers event to every handler subscribed to its topic.
func (bus *Bus) Publish(event Event) {
	if event == nil {
		return
	}
	bus.mutex.RLock()
	current := bus.subscribers[event.Topic()]
	handlers := make([]subscription, len(current))
	copy(handlers, current)
	bus.mutex.RUnlock()

	sort.Slice(handlers, func(left, right int) bool { return handlers[left].id < handlers[right].id })
	for _, entry := range handlers {
		entry.handler(event)
	}
}

// SubscriberCount reports how many handlers listen on topic.
func (bus *Bus) SubscriberCount(topic Topic) int {
	bus.mutex.RLock()
	defer bus.mutex.RUnlock()
	return len(bus.subscribers[topic])
}

func (bus *Bus) unsubscribe(topic Topic, id uint64) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	current := bus.subscribers[topic]
	for index, entry := range current {
		if entry.id == id {
			bus.subscribers[topic] = append(current[:index:index], current[index+1:]...)
			break
		}
	}
	if len(bus.subscribers[topic]) == 0 {
		delete(bus.subscribers, topic)
	}
}

// On subscribes a handler typed to a concrete event. Events of other types
// published on the same topic are ignored.
func On[E Event](bus *Bus, handler func(E)) func() {
	var zero E
	return bus.Subscribe(zero.Topic(), func(event Event) {
		typed, ok := event.(E)
		if !ok {
			return
		}
		handler(typed)
	})
}
