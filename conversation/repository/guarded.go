package repository

import (
	"context"
	"errors"

	"campus-found/backend/conversation/models"
	"campus-found/backend/pkg/resilience"
)

// Guarded runs every store call through a circuit breaker so that a failing
// database is reported quickly instead of stacking up timeouts. Misses and
// uniqueness conflicts are answers, not failures.
type Guarded struct {
	store   Store
	breaker *resilience.CircuitBreaker
}

// IsStoreFailure reports whether err should count against the breaker
func IsStoreFailure(err error) bool {
	return err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrDuplicatePair)
}

// NewGuarded wraps store with breaker
func NewGuarded(store Store, breaker *resilience.CircuitBreaker) *Guarded {
	return &Guarded{store: store, breaker: breaker}
}

func guard[T any](g *Guarded, fn func() (T, error)) (T, error) {
	var out T
	err := g.breaker.Execute(func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}

func (g *Guarded) FindByPair(ctx context.Context, pair models.Pair) (*models.Conversation, error) {
	return guard(g, func() (*models.Conversation, error) { return g.store.FindByPair(ctx, pair) })
}

func (g *Guarded) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	return guard(g, func() (*models.Conversation, error) { return g.store.GetConversation(ctx, id) })
}

func (g *Guarded) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	return g.breaker.Execute(func() error { return g.store.CreateConversation(ctx, conv) })
}

func (g *Guarded) CreateIfAbsent(ctx context.Context, conv *models.Conversation) (bool, error) {
	return guard(g, func() (bool, error) { return g.store.CreateIfAbsent(ctx, conv) })
}

func (g *Guarded) UpdateSummary(ctx context.Context, conversationID string, summary models.Summary) error {
	return g.breaker.Execute(func() error { return g.store.UpdateSummary(ctx, conversationID, summary) })
}

func (g *Guarded) AppendMessage(ctx context.Context, msg *models.Message) error {
	return g.breaker.Execute(func() error { return g.store.AppendMessage(ctx, msg) })
}

func (g *Guarded) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	return guard(g, func() ([]models.Message, error) { return g.store.ListMessages(ctx, conversationID) })
}

func (g *Guarded) LatestMessage(ctx context.Context, conversationID string) (*models.Message, error) {
	return guard(g, func() (*models.Message, error) { return g.store.LatestMessage(ctx, conversationID) })
}

func (g *Guarded) ListConversations(ctx context.Context, participant string) ([]models.Conversation, error) {
	return guard(g, func() ([]models.Conversation, error) { return g.store.ListConversations(ctx, participant) })
}
