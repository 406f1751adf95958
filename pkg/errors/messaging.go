package errors

import "net/http"

// Messaging error kinds. Compare with errors.Is; the values returned by the
// service layer are usually wrapped copies carrying the store error as cause.
var (
	// ErrInvalidParticipant: empty identifier, self-messaging, or a counterpart
	// that is not part of the conversation. Rejected before any write.
	ErrInvalidParticipant = sentinel(http.StatusBadRequest, "INVALID_PARTICIPANT",
		"participants must be two distinct, non-empty identifiers")

	// ErrEmptyMessage: whitespace-only text. Rejected before any write.
	ErrEmptyMessage = sentinel(http.StatusBadRequest, "EMPTY_MESSAGE",
		"message text must not be empty")

	// ErrUnauthorizedSender: the sender is not one of the conversation's participants.
	ErrUnauthorizedSender = sentinel(http.StatusForbidden, "UNAUTHORIZED_SENDER",
		"sender is not a participant of this conversation")

	// ErrNotParticipant: a read or subscription by someone outside the conversation.
	ErrNotParticipant = sentinel(http.StatusForbidden, "NOT_A_PARTICIPANT",
		"caller is not a participant of this conversation")

	// ErrNoIdentity: the caller has no participant identifier. Every operation fails closed.
	ErrNoIdentity = sentinel(http.StatusUnauthorized, "NO_IDENTITY",
		"no signed-in participant")

	// ErrConversationNotFound: the conversation id references nothing.
	ErrConversationNotFound = sentinel(http.StatusNotFound, "CONVERSATION_NOT_FOUND",
		"conversation not found")

	// ErrPersistenceUnavailable: the store call failed. Nothing was written by
	// this operation; the caller may retry the whole operation.
	ErrPersistenceUnavailable = sentinel(http.StatusServiceUnavailable, "PERSISTENCE_UNAVAILABLE",
		"message store is unavailable")

	// ErrPartialSummaryFailure: the message is durable but the conversation
	// summary was not updated and stays stale until the next send or recompute.
	ErrPartialSummaryFailure = sentinel(http.StatusAccepted, "PARTIAL_SUMMARY_FAILURE",
		"message stored but the conversation summary could not be updated")

	// ErrRateLimited: the caller is sending faster than allowed.
	ErrRateLimited = sentinel(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
		"too many requests, please try again later")
)
