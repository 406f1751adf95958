package repository

import (
	"context"
	"errors"
	"fmt"

	"campus-found/backend/conversation/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists conversations and messages through gorm
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open database handle
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the conversations and messages tables
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Conversation{}, &models.Message{}); err != nil {
		return fmt.Errorf("migrate messaging tables: %w", err)
	}
	return nil
}

func (s *GormStore) FindByPair(ctx context.Context, pair models.Pair) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Where("pair_key = ? AND participant_a = ? AND participant_b = ?", pair.Key(), pair.A, pair.B).
		Order("created_at ASC, id ASC").
		First(&conv).Error
	if err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

func (s *GormStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

func (s *GormStore) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(conv).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicatePair
		}
		return err
	}
	return nil
}

// CreateIfAbsent relies on the unique pair_key index: the insert is a no-op
// when the pair exists, after which the winning row is read back.
func (s *GormStore) CreateIfAbsent(ctx context.Context, conv *models.Conversation) (bool, error) {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pair_key"}},
			DoNothing: true,
		}).
		Create(conv)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	existing, err := s.FindByPair(ctx, conv.Pair())
	if err != nil {
		return false, err
	}
	*conv = *existing
	return false, nil
}

func (s *GormStore) UpdateSummary(ctx context.Context, conversationID string, summary models.Summary) error {
	result := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]any{
			"last_message":        summary.Text,
			"last_message_time":   summary.Time,
			"last_message_sender": summary.Sender,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	return s.db.WithContext(ctx).Create(msg).Error
}

func (s *GormStore) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("sent_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

func (s *GormStore) LatestMessage(ctx context.Context, conversationID string) (*models.Message, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("sent_at DESC, id DESC").
		First(&msg).Error
	if err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

func (s *GormStore) ListConversations(ctx context.Context, participant string) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := s.db.WithContext(ctx).
		Where("participant_a = ? OR participant_b = ?", participant, participant).
		Order("last_message_time DESC, id ASC").
		Find(&conversations).Error
	return conversations, err
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
