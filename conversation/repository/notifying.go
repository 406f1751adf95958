package repository

import (
	"context"

	"campus-found/backend/conversation/feed"
	"campus-found/backend/conversation/models"
	"campus-found/backend/pkg/logger"
)

// Notifying publishes a change event for every successful write of the
// wrapped store. Reads pass through.
type Notifying struct {
	Store
	pub feed.Publisher
	log *logger.Logger
}

// NewNotifying wraps store so that its writes reach pub
func NewNotifying(store Store, pub feed.Publisher, log *logger.Logger) *Notifying {
	return &Notifying{Store: store, pub: pub, log: log}
}

func (n *Notifying) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if err := n.Store.CreateConversation(ctx, conv); err != nil {
		return err
	}
	n.conversationChanged(ctx, feed.EventAdded, conv)
	return nil
}

func (n *Notifying) CreateIfAbsent(ctx context.Context, conv *models.Conversation) (bool, error) {
	created, err := n.Store.CreateIfAbsent(ctx, conv)
	if err != nil {
		return false, err
	}
	if created {
		n.conversationChanged(ctx, feed.EventAdded, conv)
	}
	return created, nil
}

func (n *Notifying) UpdateSummary(ctx context.Context, conversationID string, summary models.Summary) error {
	if err := n.Store.UpdateSummary(ctx, conversationID, summary); err != nil {
		return err
	}

	conv, err := n.Store.GetConversation(ctx, conversationID)
	if err != nil {
		// the write is durable; subscribers catch up on the next change
		n.log.Warn("Summary updated but could not be re-read for the feed",
			"conversation_id", conversationID,
			"error", err.Error(),
		)
		return nil
	}
	n.conversationChanged(ctx, feed.EventModified, conv)
	return nil
}

func (n *Notifying) AppendMessage(ctx context.Context, msg *models.Message) error {
	if err := n.Store.AppendMessage(ctx, msg); err != nil {
		return err
	}

	m := *msg
	n.pub.Publish(ctx, feed.Event{
		Topic:   feed.ConversationTopic(msg.ConversationID),
		Kind:    feed.EventAdded,
		Message: &m,
	})
	return nil
}

// conversationChanged notifies the conversation's own topic and the topic
// of each participant, which list views subscribe to
func (n *Notifying) conversationChanged(ctx context.Context, kind feed.EventKind, conv *models.Conversation) {
	topics := []string{feed.ConversationTopic(conv.ID)}
	for _, p := range conv.Participants() {
		topics = append(topics, feed.ParticipantTopic(p))
	}

	for _, topic := range topics {
		c := *conv
		n.pub.Publish(ctx, feed.Event{Topic: topic, Kind: kind, Conversation: &c})
	}
}
