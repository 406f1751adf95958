package service

import (
	"context"
	stderrors "errors"
	"sync"

	"campus-found/backend/conversation/models"
	"campus-found/backend/pkg/errors"
)

// SessionState is the lifecycle of one chat screen
type SessionState string

const (
	SessionIdle      SessionState = "idle"
	SessionResolving SessionState = "resolving"
	SessionActive    SessionState = "active"
	SessionSending   SessionState = "sending"
	SessionFailed    SessionState = "failed"
)

var (
	// ErrSessionBusy is returned when an operation is already in flight
	ErrSessionBusy = stderrors.New("session: operation in progress")
	// ErrSessionNotActive is returned by Send before a conversation is open
	ErrSessionNotActive = stderrors.New("session: no active conversation")
)

// Session drives one caller's chat with one counterpart:
//
//	Idle -> Resolving -> Active | Failed
//	Active -> Sending -> Active | Failed
//	Failed -> Resolving (retry)
//
// Rejected input leaves an active session active; only a store failure
// fails it.
type Session struct {
	messenger *Messenger
	self      string

	mu    sync.Mutex
	state SessionState
	other string
	conv  *models.Conversation
	err   error
}

// NewSession starts idle
func NewSession(m *Messenger, self string) *Session {
	return &Session{messenger: m, self: self, state: SessionIdle}
}

// State returns the current state
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Conversation returns the open conversation, nil before resolve
func (s *Session) Conversation() *models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv
}

// Err returns the error that failed the session
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Open resolves the conversation with other
func (s *Session) Open(ctx context.Context, other string) (*ConversationHandle, error) {
	s.mu.Lock()
	if s.state != SessionIdle && s.state != SessionFailed {
		s.mu.Unlock()
		return nil, ErrSessionBusy
	}
	s.state = SessionResolving
	s.other = other
	s.mu.Unlock()

	handle, err := s.messenger.StartOrContinue(ctx, s.self, other)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state, s.err = SessionFailed, err
		return nil, err
	}
	s.state, s.err, s.conv = SessionActive, nil, handle.Conversation
	return handle, nil
}

// Retry re-resolves after a failure
func (s *Session) Retry(ctx context.Context) (*ConversationHandle, error) {
	s.mu.Lock()
	other := s.other
	s.mu.Unlock()
	return s.Open(ctx, other)
}

// Send appends text to the open conversation
func (s *Session) Send(ctx context.Context, text string) (*models.Message, error) {
	s.mu.Lock()
	switch s.state {
	case SessionActive:
	case SessionResolving, SessionSending:
		s.mu.Unlock()
		return nil, ErrSessionBusy
	default:
		s.mu.Unlock()
		return nil, ErrSessionNotActive
	}
	s.state = SessionSending
	conv := s.conv
	other := s.other
	s.mu.Unlock()

	msg, err := s.messenger.Send(ctx, s.self, conv.ID, text, other)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil && errors.Is(err, errors.ErrPersistenceUnavailable) {
		s.state, s.err = SessionFailed, err
		return nil, err
	}
	s.state = SessionActive
	return msg, err
}
