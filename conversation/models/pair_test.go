package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalPairIsSymmetric(t *testing.T) {
	cases := [][2]string{
		{"ann@bc.edu", "bo@bc.edu"},
		{"Bo", "ann"},
		{"x", "x"},
		{"ab", "c"},
	}

	for _, c := range cases {
		p, q := CanonicalPair(c[0], c[1]), CanonicalPair(c[1], c[0])
		assert.Equal(t, p, q)
		assert.Equal(t, p.Key(), q.Key())
		assert.LessOrEqual(t, p.A, p.B)
	}
}

func TestCanonicalPairOrdersBytewise(t *testing.T) {
	p := CanonicalPair("bo@bc.edu", "ann@bc.edu")
	assert.Equal(t, []string{"ann@bc.edu", "bo@bc.edu"}, p.Slice())

	// no case folding: uppercase sorts first
	p = CanonicalPair("ann", "Bo")
	assert.Equal(t, "Bo", p.A)
}

func TestPairKeySeparatesBoundaries(t *testing.T) {
	assert.NotEqual(t, CanonicalPair("ab", "c").Key(), CanonicalPair("a", "bc").Key())
	assert.Len(t, CanonicalPair("a", "b").Key(), 64)
}

func TestPairValidity(t *testing.T) {
	assert.True(t, CanonicalPair("a", "b").Valid())
	assert.False(t, CanonicalPair("a", "a").Valid())
	assert.False(t, CanonicalPair("", "b").Valid())
}

func TestPairOther(t *testing.T) {
	p := CanonicalPair("ann", "bo")

	other, ok := p.Other("ann")
	assert.True(t, ok)
	assert.Equal(t, "bo", other)

	_, ok = p.Other("cy")
	assert.False(t, ok)
	assert.False(t, p.Contains(""))
}

func TestNewConversationInitialSummary(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	c := NewConversation(CanonicalPair("bo", "ann"), "bo", now)

	assert.Equal(t, []string{"ann", "bo"}, c.Participants())
	assert.Equal(t, Summary{Text: "", Time: now, Sender: "bo"}, c.Summary())
	assert.True(t, c.HasParticipant("ann"))
	assert.False(t, c.HasParticipant("cy"))
}

func TestSortConversationsMostRecentFirst(t *testing.T) {
	base := time.Now()
	list := []Conversation{
		{ID: "old", LastMessageTime: base},
		{ID: "new", LastMessageTime: base.Add(time.Minute)},
		{ID: "tie-b", LastMessageTime: base.Add(-time.Minute)},
		{ID: "tie-a", LastMessageTime: base.Add(-time.Minute)},
	}
	SortConversations(list)

	ids := make([]string, len(list))
	for i := range list {
		ids[i] = list[i].ID
	}
	assert.Equal(t, []string{"new", "old", "tie-a", "tie-b"}, ids)
}

func TestSortMessagesAscending(t *testing.T) {
	base := time.Now()
	list := []Message{
		{ID: "2", Time: base.Add(time.Second)},
		{ID: "b", Time: base},
		{ID: "a", Time: base},
	}
	SortMessages(list)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, "2", list[2].ID)
}
