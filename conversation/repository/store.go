package repository

import (
	"context"
	"errors"

	"campus-found/backend/conversation/models"
)

var (
	// ErrNotFound is returned when a lookup matches nothing
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicatePair is returned by CreateConversation when the backing
	// store enforces pair uniqueness and another writer got there first
	ErrDuplicatePair = errors.New("repository: conversation for pair already exists")
)

// Store is the persistence collaborator of the messaging core
type Store interface {
	// FindByPair returns the conversation whose participants equal pair
	// exactly. If duplicates exist the earliest created one wins.
	FindByPair(ctx context.Context, pair models.Pair) (*models.Conversation, error)
	// GetConversation loads one conversation by id
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	// CreateConversation inserts conv, assigning its id
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	// CreateIfAbsent inserts conv unless a conversation for the same pair
	// exists, in one conditional write. conv is filled with the stored row
	// either way; created reports which happened.
	CreateIfAbsent(ctx context.Context, conv *models.Conversation) (created bool, err error)
	// UpdateSummary overwrites the summary fields. Last write wins.
	UpdateSummary(ctx context.Context, conversationID string, summary models.Summary) error
	// AppendMessage inserts msg under its conversation, assigning its id
	AppendMessage(ctx context.Context, msg *models.Message) error
	// ListMessages returns a conversation's ledger ordered by time, then id
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	// LatestMessage returns the ledger tail
	LatestMessage(ctx context.Context, conversationID string) (*models.Message, error)
	// ListConversations returns every conversation containing participant,
	// most recent activity first
	ListConversations(ctx context.Context, participant string) ([]models.Conversation, error)
}
