package feed

import (
	"context"
	"sync"

	"campus-found/backend/conversation/models"
)

// Stream turns a subscription plus an initial load into a sequence of full,
// ordered, id-deduplicated snapshots. Only the newest undelivered snapshot
// is kept, so a slow reader skips intermediate states.
//
// Every event replaces the item it carries. Events are published after the
// store write in store order, so the last one applied matches the store.
type Stream[T any] struct {
	sub     *Subscription
	out     chan []T
	stop    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup

	state   map[string]T
	key     func(T) string
	extract func(Event) (T, bool)
	order   func([]T)

	mu  sync.Mutex
	err error
}

// MessageStream emits a conversation's ledger ordered by time ascending
type MessageStream = Stream[models.Message]

// ConversationStream emits a participant's conversations, most recent first
type ConversationStream = Stream[models.Conversation]

// Loader reads the current state a stream starts from
type Loader[T any] func(ctx context.Context) ([]T, error)

// WatchMessages streams the ledger of one conversation
func WatchMessages(ctx context.Context, b *Broker, conversationID string, load Loader[models.Message]) (*MessageStream, error) {
	return watch(ctx, b, ConversationTopic(conversationID), load,
		func(m models.Message) string { return m.ID },
		func(ev Event) (models.Message, bool) {
			if ev.Message == nil || ev.Message.ConversationID != conversationID {
				return models.Message{}, false
			}
			return *ev.Message, true
		},
		models.SortMessages,
	)
}

// WatchConversations streams every conversation containing participant
func WatchConversations(ctx context.Context, b *Broker, participant string, load Loader[models.Conversation]) (*ConversationStream, error) {
	return watch(ctx, b, ParticipantTopic(participant), load,
		func(c models.Conversation) string { return c.ID },
		func(ev Event) (models.Conversation, bool) {
			if ev.Conversation == nil || !ev.Conversation.HasParticipant(participant) {
				return models.Conversation{}, false
			}
			return *ev.Conversation, true
		},
		models.SortConversations,
	)
}

// watch subscribes before loading so that no change between the load and
// the subscription is missed; replayed changes are absorbed by the id key.
func watch[T any](
	ctx context.Context,
	b *Broker,
	topic string,
	load Loader[T],
	key func(T) string,
	extract func(Event) (T, bool),
	order func([]T),
) (*Stream[T], error) {
	sub := b.Subscribe(topic)

	initial, err := load(ctx)
	if err != nil {
		sub.Close()
		return nil, err
	}

	s := &Stream[T]{
		sub:     sub,
		out:     make(chan []T, 1),
		stop:    make(chan struct{}),
		state:   make(map[string]T, len(initial)),
		key:     key,
		extract: extract,
		order:   order,
	}
	for _, item := range initial {
		s.state[key(item)] = item
	}

	s.wg.Add(1)
	go s.run(ctx)

	return s, nil
}

// Updates delivers snapshots. The channel is closed when the stream ends.
func (s *Stream[T]) Updates() <-chan []T { return s.out }

// Err reports why the stream ended on its own, such as ErrSlowConsumer or
// the context's error. It is nil while running and after Close.
func (s *Stream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close cancels the stream. Once Close returns no snapshot will be delivered.
func (s *Stream[T]) Close() {
	s.stopped.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *Stream[T]) run(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.out)
	defer s.sub.Close()

	s.emit()

	for {
		select {
		case <-s.stop:
			s.discardPending()
			return
		case <-ctx.Done():
			s.discardPending()
			s.fail(ctx.Err())
			return
		case <-s.sub.Done():
			s.discardPending()
			s.fail(s.sub.Err())
			return
		case ev := <-s.sub.Events():
			if s.apply(ev) {
				s.emit()
			}
		}
	}
}

func (s *Stream[T]) apply(ev Event) bool {
	item, ok := s.extract(ev)
	if !ok {
		return false
	}
	k := s.key(item)

	if ev.Kind == EventRemoved {
		if _, exists := s.state[k]; !exists {
			return false
		}
		delete(s.state, k)
		return true
	}

	s.state[k] = item
	return true
}

func (s *Stream[T]) emit() {
	snapshot := make([]T, 0, len(s.state))
	for _, item := range s.state {
		snapshot = append(snapshot, item)
	}
	s.order(snapshot)

	s.discardPending()
	s.out <- snapshot
}

func (s *Stream[T]) discardPending() {
	select {
	case <-s.out:
	default:
	}
}

func (s *Stream[T]) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
