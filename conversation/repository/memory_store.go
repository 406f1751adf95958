package repository

import (
	"context"
	"sync"

	"campus-found/backend/conversation/models"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory. Unlike the database it
// enforces no pair uniqueness on CreateConversation, so it reproduces the
// plain lookup-then-create race faithfully; CreateIfAbsent is atomic.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation
	order         []string
	messages      map[string][]models.Message
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]models.Message),
	}
}

func (s *MemoryStore) FindByPair(ctx context.Context, pair models.Pair) (*models.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if conv := s.findLocked(pair); conv != nil {
		c := *conv
		return &c, nil
	}
	return nil, ErrNotFound
}

// findLocked returns the earliest created match
func (s *MemoryStore) findLocked(pair models.Pair) *models.Conversation {
	for _, id := range s.order {
		conv := s.conversations[id]
		if conv.ParticipantA == pair.A && conv.ParticipantB == pair.B {
			return conv
		}
	}
	return nil
}

func (s *MemoryStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *conv
	return &c, nil
}

func (s *MemoryStore) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertLocked(conv)
	return nil
}

func (s *MemoryStore) CreateIfAbsent(ctx context.Context, conv *models.Conversation) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.findLocked(conv.Pair()); existing != nil {
		*conv = *existing
		return false, nil
	}
	s.insertLocked(conv)
	return true, nil
}

func (s *MemoryStore) insertLocked(conv *models.Conversation) {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	c := *conv
	s.conversations[c.ID] = &c
	s.order = append(s.order, c.ID)
}

func (s *MemoryStore) UpdateSummary(ctx context.Context, conversationID string, summary models.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	conv.ApplySummary(summary)
	return nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[msg.ConversationID]; !ok {
		return ErrNotFound
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], *msg)
	return nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := append([]models.Message(nil), s.messages[conversationID]...)
	s.mu.RUnlock()

	models.SortMessages(out)
	return out, nil
}

func (s *MemoryStore) LatestMessage(ctx context.Context, conversationID string) (*models.Message, error) {
	messages, err := s.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, ErrNotFound
	}
	last := messages[len(messages)-1]
	return &last, nil
}

func (s *MemoryStore) ListConversations(ctx context.Context, participant string) ([]models.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var out []models.Conversation
	for _, id := range s.order {
		conv := s.conversations[id]
		if conv.HasParticipant(participant) {
			out = append(out, *conv)
		}
	}
	s.mu.RUnlock()

	models.SortConversations(out)
	return out, nil
}

// CountByPair reports how many conversations exist for pair
func (s *MemoryStore) CountByPair(pair models.Pair) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, conv := range s.conversations {
		if conv.ParticipantA == pair.A && conv.ParticipantB == pair.B {
			n++
		}
	}
	return n
}
