package models

import (
	"slices"
	"strings"
	"time"
)

// Message is one immutable entry in a conversation's ledger
type Message struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	ConversationID string    `json:"conversation_id" gorm:"size:36;not null;index:idx_messages_conversation_time,priority:1"`
	Text           string    `json:"text" gorm:"type:text;not null"`
	Sender         string    `json:"sender" gorm:"not null"`
	Time           time.Time `json:"time" gorm:"column:sent_at;not null;index:idx_messages_conversation_time,priority:2"`
}

// SortMessages orders a ledger by time ascending, then id, the order
// every reader observes
func SortMessages(messages []Message) {
	slices.SortStableFunc(messages, func(a, b Message) int {
		if c := a.Time.Compare(b.Time); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
