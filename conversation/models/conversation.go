package models

import (
	"encoding/hex"
	"slices"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Pair is the canonical, order-independent identity of a conversation:
// two distinct participant identifiers with A < B.
type Pair struct {
	A string
	B string
}

// CanonicalPair sorts two participant identifiers so that
// CanonicalPair(x, y) == CanonicalPair(y, x). Identifiers are opaque and
// compared byte-wise; no trimming or case folding happens here.
func CanonicalPair(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Valid reports whether both identifiers are non-empty and distinct
func (p Pair) Valid() bool {
	return p.A != "" && p.B != "" && p.A != p.B
}

// Key is a fixed-length digest of the pair used as the unique lookup key.
// The separator keeps ("ab","c") and ("a","bc") apart.
func (p Pair) Key() string {
	sum := blake2b.Sum256([]byte(p.A + "\x00" + p.B))
	return hex.EncodeToString(sum[:])
}

// Slice returns the participants in canonical order
func (p Pair) Slice() []string {
	return []string{p.A, p.B}
}

// Contains reports whether id is one of the two participants
func (p Pair) Contains(id string) bool {
	return id != "" && (id == p.A || id == p.B)
}

// Other returns the counterpart of id. ok is false when id is not in the pair.
func (p Pair) Other(id string) (string, bool) {
	switch id {
	case p.A:
		return p.B, true
	case p.B:
		return p.A, true
	}
	return "", false
}

// Conversation is the durable record of one two-party thread and the
// denormalized summary of its latest message
type Conversation struct {
	ID                string    `json:"id" gorm:"primaryKey;size:36"`
	ParticipantA      string    `json:"participant_a" gorm:"not null;index"`
	ParticipantB      string    `json:"participant_b" gorm:"not null;index"`
	PairKey           string    `json:"pair_key" gorm:"size:64;not null;uniqueIndex"`
	LastMessage       string    `json:"last_message" gorm:"type:text"`
	LastMessageTime   time.Time `json:"last_message_time" gorm:"index"`
	LastMessageSender string    `json:"last_message_sender"`
	CreatedAt         time.Time `json:"created_at"`
}

// NewConversation builds a fresh record for pair with the initial summary:
// empty text, time now, sender the initiator
func NewConversation(pair Pair, initiator string, now time.Time) *Conversation {
	return &Conversation{
		ParticipantA:      pair.A,
		ParticipantB:      pair.B,
		PairKey:           pair.Key(),
		LastMessage:       "",
		LastMessageTime:   now,
		LastMessageSender: initiator,
		CreatedAt:         now,
	}
}

// Pair returns the conversation's canonical participants
func (c *Conversation) Pair() Pair {
	return Pair{A: c.ParticipantA, B: c.ParticipantB}
}

// Participants returns both identifiers in canonical order
func (c *Conversation) Participants() []string {
	return c.Pair().Slice()
}

// HasParticipant reports whether id is one of the conversation's participants
func (c *Conversation) HasParticipant(id string) bool {
	return c.Pair().Contains(id)
}

// Summary returns the conversation's current last-message summary
func (c *Conversation) Summary() Summary {
	return Summary{
		Text:   c.LastMessage,
		Time:   c.LastMessageTime,
		Sender: c.LastMessageSender,
	}
}

// ApplySummary overwrites the summary fields. Last write wins.
func (c *Conversation) ApplySummary(s Summary) {
	c.LastMessage = s.Text
	c.LastMessageTime = s.Time
	c.LastMessageSender = s.Sender
}

// Summary is the denormalized last-message projection
type Summary struct {
	Text   string    `json:"last_message"`
	Time   time.Time `json:"last_message_time"`
	Sender string    `json:"last_message_sender"`
}

// Equal compares summaries by instant rather than by time.Time representation
func (s Summary) Equal(o Summary) bool {
	return s.Text == o.Text && s.Sender == o.Sender && s.Time.Equal(o.Time)
}

// SummaryOf projects a message into a summary
func SummaryOf(m *Message) Summary {
	return Summary{Text: m.Text, Time: m.Time, Sender: m.Sender}
}

// SortConversations orders by most recent activity first, then id
func SortConversations(conversations []Conversation) {
	slices.SortStableFunc(conversations, func(a, b Conversation) int {
		if c := b.LastMessageTime.Compare(a.LastMessageTime); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
