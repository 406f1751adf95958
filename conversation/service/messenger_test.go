package service

import (
	"context"
	"testing"
	"time"

	"campus-found/backend/conversation/feed"
	"campus-found/backend/conversation/models"
	"campus-found/backend/conversation/repository"
	"campus-found/backend/pkg/errors"
	"campus-found/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnAndBoScenario(t *testing.T) {
	store := repository.NewMemoryStore()
	m, _ := newTestMessenger(store, true)
	ctx := context.Background()

	opened, err := m.StartOrContinue(ctx, "ann", "bo")
	require.NoError(t, err)
	require.True(t, opened.Created)
	x := opened.Conversation.ID

	msg, err := m.Send(ctx, "ann", x, "hi bo", "bo")
	require.NoError(t, err)
	assert.Equal(t, "hi bo", msg.Text)
	assert.Equal(t, "ann", msg.Sender)

	conv, err := store.GetConversation(ctx, x)
	require.NoError(t, err)
	assert.Equal(t, "hi bo", conv.LastMessage)
	assert.Equal(t, "ann", conv.LastMessageSender)

	again, err := m.StartOrContinue(ctx, "bo", "ann")
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, x, again.Conversation.ID)
	assert.Equal(t, 1, store.CountByPair(models.CanonicalPair("ann", "bo")))
}

func TestMessengerFailsClosedWithoutIdentity(t *testing.T) {
	m, _ := newTestMessenger(repository.NewMemoryStore(), true)
	ctx := context.Background()

	_, err := m.StartOrContinue(ctx, "", "bo")
	assert.ErrorIs(t, err, errors.ErrNoIdentity)
	_, err = m.Send(ctx, "", "X", "hi", "")
	assert.ErrorIs(t, err, errors.ErrNoIdentity)
	_, err = m.ListConversations(ctx, "")
	assert.ErrorIs(t, err, errors.ErrNoIdentity)
	_, err = m.History(ctx, "", "X")
	assert.ErrorIs(t, err, errors.ErrNoIdentity)
	_, err = m.WatchConversations(ctx, "")
	assert.ErrorIs(t, err, errors.ErrNoIdentity)
}

func TestSendCheckOrder(t *testing.T) {
	store := repository.NewMemoryStore()
	m, _ := newTestMessenger(store, true)
	ctx := context.Background()

	h, err := m.StartOrContinue(ctx, "ann", "bo")
	require.NoError(t, err)
	id := h.Conversation.ID

	// blank text wins over an unknown conversation
	_, err = m.Send(ctx, "ann", "missing", "   ", "")
	assert.ErrorIs(t, err, errors.ErrEmptyMessage)

	_, err = m.Send(ctx, "ann", "missing", "hi", "")
	assert.ErrorIs(t, err, errors.ErrConversationNotFound)

	// membership is checked before the counterpart
	_, err = m.Send(ctx, "cy", id, "hi", "ann")
	assert.ErrorIs(t, err, errors.ErrUnauthorizedSender)

	_, err = m.Send(ctx, "ann", id, "hi", "cy")
	assert.ErrorIs(t, err, errors.ErrInvalidParticipant)

	history, err := m.History(ctx, "ann", id)
	require.NoError(t, err)
	assert.Empty(t, history, "rejected sends write nothing")
}

func TestListConversationsMostRecentFirst(t *testing.T) {
	store := repository.NewMemoryStore()
	m, _ := newTestMessenger(store, true)
	ctx := context.Background()

	withBo, err := m.StartOrContinue(ctx, "ann", "bo")
	require.NoError(t, err)
	withCy, err := m.StartOrContinue(ctx, "cy", "ann")
	require.NoError(t, err)

	_, err = m.Send(ctx, "bo", withBo.Conversation.ID, "newest", "")
	require.NoError(t, err)

	list, err := m.ListConversations(ctx, "ann")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, withBo.Conversation.ID, list[0].ID)
	assert.Equal(t, withCy.Conversation.ID, list[1].ID)

	list, err = m.ListConversations(ctx, "bo")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestReadsRequireParticipation(t *testing.T) {
	m, _ := newTestMessenger(repository.NewMemoryStore(), true)
	ctx := context.Background()

	h, err := m.StartOrContinue(ctx, "ann", "bo")
	require.NoError(t, err)

	_, err = m.History(ctx, "cy", h.Conversation.ID)
	assert.ErrorIs(t, err, errors.ErrNotParticipant)
	_, err = m.WatchMessages(ctx, "cy", h.Conversation.ID)
	assert.ErrorIs(t, err, errors.ErrNotParticipant)
	_, err = m.RecomputeSummary(ctx, "cy", h.Conversation.ID)
	assert.ErrorIs(t, err, errors.ErrNotParticipant)
}

func nextSnapshot[T any](t *testing.T, ch <-chan []T) []T {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "stream closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return nil
}

func TestWatchMessagesSeesSends(t *testing.T) {
	m, _ := newTestMessenger(repository.NewMemoryStore(), true)
	ctx := context.Background()

	h, err := m.StartOrContinue(ctx, "ann", "bo")
	require.NoError(t, err)
	_, err = m.Send(ctx, "ann", h.Conversation.ID, "before", "")
	require.NoError(t, err)

	stream, err := m.WatchMessages(ctx, "bo", h.Conversation.ID)
	require.NoError(t, err)
	defer stream.Close()

	snap := nextSnapshot(t, stream.Updates())
	require.Len(t, snap, 1)
	assert.Equal(t, "before", snap[0].Text)

	_, err = m.Send(ctx, "bo", h.Conversation.ID, "after", "ann")
	require.NoError(t, err)

	snap = nextSnapshot(t, stream.Updates())
	require.Len(t, snap, 2)
	assert.Equal(t, "after", snap[1].Text)
}

func TestWatchConversationsSeesNewThreadsAndSummaries(t *testing.T) {
	m, _ := newTestMessenger(repository.NewMemoryStore(), true)
	ctx := context.Background()

	stream, err := m.WatchConversations(ctx, "ann")
	require.NoError(t, err)
	defer stream.Close()
	assert.Empty(t, nextSnapshot(t, stream.Updates()))

	h, err := m.StartOrContinue(ctx, "bo", "ann")
	require.NoError(t, err)

	snap := nextSnapshot(t, stream.Updates())
	require.Len(t, snap, 1)
	assert.Equal(t, h.Conversation.ID, snap[0].ID)

	_, err = m.Send(ctx, "bo", h.Conversation.ID, "is this your umbrella?", "")
	require.NoError(t, err)

	snap = nextSnapshot(t, stream.Updates())
	for snap[0].LastMessage == "" {
		snap = nextSnapshot(t, stream.Updates())
	}
	assert.Equal(t, "is this your umbrella?", snap[0].LastMessage)
}

func TestConversationFeedFollowsStoreAcrossClockSkew(t *testing.T) {
	tests := []struct {
		name       string
		resolverAt time.Time
		senderAt   time.Time
	}{
		{"sender clock behind", t0, t0.Add(-2 * time.Second)},
		{"same microsecond", t0.Add(500 * time.Nanosecond), t0.Add(500 * time.Nanosecond)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repository.NewMemoryStore()
			broker := feed.NewBroker(16, logger.Discard())
			notifying := repository.NewNotifying(store, broker, logger.Discard())

			opts := func(at time.Time) Options {
				return Options{StrictPairs: true, StoreTimeout: 5 * time.Second, Now: func() time.Time { return at }}
			}
			resolver := NewMessenger(notifying, broker, opts(tt.resolverAt), logger.Discard())
			sender := NewMessenger(notifying, broker, opts(tt.senderAt), logger.Discard())
			ctx := context.Background()

			stream, err := resolver.WatchConversations(ctx, "ann")
			require.NoError(t, err)
			defer stream.Close()
			nextSnapshot(t, stream.Updates())

			h, err := resolver.StartOrContinue(ctx, "bo", "ann")
			require.NoError(t, err)
			assert.Equal(t, 0, h.Conversation.LastMessageTime.Nanosecond()%1000)

			_, err = sender.Send(ctx, "bo", h.Conversation.ID, "is this your umbrella?", "ann")
			require.NoError(t, err)

			stored, err := store.GetConversation(ctx, h.Conversation.ID)
			require.NoError(t, err)
			require.Equal(t, "is this your umbrella?", stored.LastMessage)

			snap := nextSnapshot(t, stream.Updates())
			for len(snap) == 0 || snap[0].LastMessage == "" {
				snap = nextSnapshot(t, stream.Updates())
			}
			assert.Equal(t, stored.LastMessage, snap[0].LastMessage)
			assert.Equal(t, "bo", snap[0].LastMessageSender)
		})
	}
}
