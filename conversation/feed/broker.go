package feed

import (
	"context"
	"errors"
	"sync"

	"campus-found/backend/conversation/models"
	"campus-found/backend/pkg/logger"
)

// ErrSlowConsumer ends a subscription whose buffer filled up
var ErrSlowConsumer = errors.New("feed: subscriber too slow, dropped")

// EventKind mirrors document change types
type EventKind string

const (
	EventAdded    EventKind = "added"
	EventModified EventKind = "modified"
	EventRemoved  EventKind = "removed"
)

// Event is one change notification. Exactly one of Message or Conversation is set.
type Event struct {
	Topic        string               `json:"topic"`
	Kind         EventKind            `json:"kind"`
	Message      *models.Message      `json:"message,omitempty"`
	Conversation *models.Conversation `json:"conversation,omitempty"`
}

// ConversationTopic carries message and summary changes of one conversation
func ConversationTopic(conversationID string) string {
	return "conversation:" + conversationID
}

// ParticipantTopic carries changes to any conversation the participant is in
func ParticipantTopic(participant string) string {
	return "participant:" + participant
}

// Publisher accepts change events
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Relay forwards locally published events to other instances
type Relay interface {
	Forward(ctx context.Context, ev Event) error
}

// Subscription receives the events of a single topic until closed or dropped
type Subscription struct {
	id     uint64
	topic  string
	ch     chan Event
	done   chan struct{}
	broker *Broker

	once sync.Once
	mu   sync.Mutex
	err  error
}

// Events delivers the subscription's events. It is never closed; select on Done.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Done is closed once the subscription ends
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err reports why the subscription ended, nil for a normal Close
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.broker.remove(s, nil)
}

func (s *Subscription) end(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

// Broker fans events out to in-process subscribers by topic. Delivery never
// blocks the publisher; a subscriber whose buffer is full is dropped.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[uint64]*Subscription
	nextID uint64
	buffer int
	relay  Relay
	log    *logger.Logger
}

// NewBroker creates a broker with the given per-subscriber buffer
func NewBroker(buffer int, log *logger.Logger) *Broker {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broker{
		topics: make(map[string]map[uint64]*Subscription),
		buffer: buffer,
		log:    log,
	}
}

// SetRelay installs the cross-instance relay
func (b *Broker) SetRelay(r Relay) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.relay = r
}

// Subscribe registers interest in a topic
func (b *Broker) Subscribe(topic string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id:     b.nextID,
		topic:  topic,
		ch:     make(chan Event, b.buffer),
		done:   make(chan struct{}),
		broker: b,
	}

	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[uint64]*Subscription)
		b.topics[topic] = subs
	}
	subs[sub.id] = sub
	return sub
}

// Publish delivers ev locally and forwards it through the relay, if any
func (b *Broker) Publish(ctx context.Context, ev Event) {
	b.Inject(ev)

	b.mu.RLock()
	relay := b.relay
	b.mu.RUnlock()

	if relay != nil {
		if err := relay.Forward(ctx, ev); err != nil {
			b.log.Warn("Failed to relay feed event", "topic", ev.Topic, "error", err.Error())
		}
	}
}

// Inject delivers ev to local subscribers only
func (b *Broker) Inject(ev Event) {
	var slow []*Subscription

	b.mu.RLock()
	for _, sub := range b.topics[ev.Topic] {
		select {
		case <-sub.done:
		case sub.ch <- ev:
		default:
			slow = append(slow, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range slow {
		b.log.Warn("Dropping slow feed subscriber", "topic", sub.topic)
		b.remove(sub, ErrSlowConsumer)
	}
}

// Subscribers returns the number of live subscriptions on topic
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *Broker) remove(sub *Subscription, reason error) {
	b.mu.Lock()
	if subs, ok := b.topics[sub.topic]; ok {
		delete(subs, sub.id)
		if len(subs) == 0 {
			delete(b.topics, sub.topic)
		}
	}
	b.mu.Unlock()

	sub.end(reason)
}
