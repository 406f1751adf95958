package service

import (
	"context"
	"time"

	"campus-found/backend/conversation/feed"
	"campus-found/backend/conversation/models"
	"campus-found/backend/conversation/repository"
	"campus-found/backend/pkg/errors"
	"campus-found/backend/pkg/logger"
)

// Messenger is the entry point for UI and API callers. The caller's
// participant identifier is passed explicitly on every call; an empty one
// fails closed.
type Messenger struct {
	directory *Directory
	ledger    *Ledger
	store     repository.Store
	broker    *feed.Broker
	timeout   time.Duration
	log       *logger.Logger
}

// NewMessenger wires the directory, ledger and live feed together
func NewMessenger(store repository.Store, broker *feed.Broker, opts Options, log *logger.Logger) *Messenger {
	return &Messenger{
		directory: NewDirectory(store, opts, log),
		ledger:    NewLedger(store, opts, log),
		store:     store,
		broker:    broker,
		timeout:   opts.StoreTimeout,
		log:       log,
	}
}

// StartOrContinue resolves the conversation between caller and other
func (m *Messenger) StartOrContinue(ctx context.Context, caller, other string) (*ConversationHandle, error) {
	if caller == "" {
		return nil, errors.ErrNoIdentity
	}
	return m.directory.Resolve(ctx, caller, other)
}

// Send appends text from caller. When other is given it must be the
// conversation's counterpart, which lets a client detect a stale screen.
func (m *Messenger) Send(ctx context.Context, caller, conversationID, text, other string) (*models.Message, error) {
	if caller == "" {
		return nil, errors.ErrNoIdentity
	}
	return m.ledger.AppendTo(ctx, conversationID, caller, text, other)
}

// ListConversations returns the caller's conversations, most recent first
func (m *Messenger) ListConversations(ctx context.Context, caller string) ([]models.Conversation, error) {
	if caller == "" {
		return nil, errors.ErrNoIdentity
	}

	ctx, cancel := bounded(ctx, m.timeout)
	defer cancel()

	conversations, err := m.store.ListConversations(ctx, caller)
	if err != nil {
		return nil, errors.ErrPersistenceUnavailable.Wrap(err)
	}
	models.SortConversations(conversations)
	return conversations, nil
}

// Conversation loads one conversation the caller takes part in
func (m *Messenger) Conversation(ctx context.Context, caller, conversationID string) (*models.Conversation, error) {
	if caller == "" {
		return nil, errors.ErrNoIdentity
	}

	ctx, span := tracer.Start(ctx, "Messenger.Conversation")
	defer span.End()

	ctx, cancel := bounded(ctx, m.timeout)
	defer cancel()

	conv, err := m.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, m.ledger.readError(span, err)
	}
	if !conv.HasParticipant(caller) {
		return nil, errors.ErrNotParticipant
	}
	return conv, nil
}

// History returns the ledger of a conversation the caller takes part in
func (m *Messenger) History(ctx context.Context, caller, conversationID string) ([]models.Message, error) {
	if _, err := m.Conversation(ctx, caller, conversationID); err != nil {
		return nil, err
	}
	return m.ledger.History(ctx, conversationID)
}

// RecomputeSummary repairs the summary of a conversation the caller takes part in
func (m *Messenger) RecomputeSummary(ctx context.Context, caller, conversationID string) (*models.Conversation, error) {
	if _, err := m.Conversation(ctx, caller, conversationID); err != nil {
		return nil, err
	}
	return m.ledger.RecomputeSummary(ctx, conversationID)
}

// WatchMessages subscribes the caller to a conversation's ledger
func (m *Messenger) WatchMessages(ctx context.Context, caller, conversationID string) (*feed.MessageStream, error) {
	if _, err := m.Conversation(ctx, caller, conversationID); err != nil {
		return nil, err
	}

	stream, err := feed.WatchMessages(ctx, m.broker, conversationID, func(ctx context.Context) ([]models.Message, error) {
		return m.ledger.History(ctx, conversationID)
	})
	if err != nil {
		return nil, err
	}
	m.log.Debug("Message feed opened", "conversation_id", conversationID, "participant", caller)
	return stream, nil
}

// WatchConversations subscribes the caller to their conversation list
func (m *Messenger) WatchConversations(ctx context.Context, caller string) (*feed.ConversationStream, error) {
	if caller == "" {
		return nil, errors.ErrNoIdentity
	}

	return feed.WatchConversations(ctx, m.broker, caller, func(ctx context.Context) ([]models.Conversation, error) {
		return m.ListConversations(ctx, caller)
	})
}
