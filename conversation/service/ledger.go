package service

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"campus-found/backend/conversation/models"
	"campus-found/backend/conversation/repository"
	"campus-found/backend/pkg/errors"
	"campus-found/backend/pkg/logger"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Ledger appends messages to conversations and keeps their summaries in step
type Ledger struct {
	store   repository.Store
	seq     *Sequencer
	timeout time.Duration
	log     *logger.Logger
	metrics instruments
}

// NewLedger creates a ledger over store
func NewLedger(store repository.Store, opts Options, log *logger.Logger) *Ledger {
	return &Ledger{
		store:   store,
		seq:     NewSequencer(opts.clock()),
		timeout: opts.StoreTimeout,
		log:     log,
		metrics: newInstruments(),
	}
}

// Append records text from sender in the conversation and then points the
// conversation summary at it.
//
// Text is trimmed; blank text and outsiders are rejected before any write.
// If the message lands but the summary write fails, the message is returned
// together with ErrPartialSummaryFailure. Nothing is retried.
func (l *Ledger) Append(ctx context.Context, conversationID, sender, text string) (*models.Message, error) {
	return l.AppendTo(ctx, conversationID, sender, text, "")
}

// AppendTo is Append with an expected counterpart. A non-empty counterpart
// must be the other participant, otherwise ErrInvalidParticipant is returned
// before any write. Checks run in order: text, membership, counterpart.
func (l *Ledger) AppendTo(ctx context.Context, conversationID, sender, text, counterpart string) (*models.Message, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Append",
		trace.WithAttributes(attribute.String("messaging.conversation_id", conversationID)))
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.ErrEmptyMessage
	}

	ctx, cancel := detach(ctx, l.timeout)
	defer cancel()

	conv, err := l.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, l.readError(span, err)
	}
	if !conv.HasParticipant(sender) {
		return nil, errors.ErrUnauthorizedSender
	}
	if counterpart != "" {
		if other, _ := conv.Pair().Other(sender); other != counterpart {
			return nil, errors.ErrInvalidParticipant
		}
	}

	return l.write(ctx, span, conv, sender, text)
}

// write stores a validated message. Appends by one sender to one
// conversation are serialized so that persistence order, timestamp order
// and summary order agree.
func (l *Ledger) write(ctx context.Context, span trace.Span, conv *models.Conversation, sender, text string) (*models.Message, error) {
	unlock := l.seq.Lock(sender + "\x00" + conv.ID)
	defer unlock()

	msg := &models.Message{
		ConversationID: conv.ID,
		Text:           text,
		Sender:         sender,
		Time:           l.seq.Next(sender),
	}

	if err := l.store.AppendMessage(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append")
		l.log.Error("Failed to append message",
			"conversation_id", conv.ID,
			"error", err.Error(),
		)
		return nil, errors.ErrPersistenceUnavailable.Wrap(err)
	}
	l.metrics.messagesSent.Add(ctx, 1)
	span.SetAttributes(attribute.String("messaging.message_id", msg.ID))

	if err := l.store.UpdateSummary(ctx, conv.ID, models.SummaryOf(msg)); err != nil {
		span.RecordError(err)
		l.metrics.partialFailures.Add(ctx, 1)
		l.log.Warn("Message stored but summary update failed",
			"conversation_id", conv.ID,
			"message_id", msg.ID,
			"error", err.Error(),
		)
		return msg, errors.ErrPartialSummaryFailure.Wrap(err)
	}

	return msg, nil
}

// History returns the conversation's messages by time ascending
func (l *Ledger) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	ctx, span := tracer.Start(ctx, "Ledger.History")
	defer span.End()

	ctx, cancel := bounded(ctx, l.timeout)
	defer cancel()

	messages, err := l.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, l.readError(span, err)
	}
	return messages, nil
}

// RecomputeSummary rewrites the summary from the ledger tail, repairing a
// summary left stale by a partial failure or by last-write-wins reordering.
// A conversation with no messages keeps its initial summary.
func (l *Ledger) RecomputeSummary(ctx context.Context, conversationID string) (*models.Conversation, error) {
	ctx, span := tracer.Start(ctx, "Ledger.RecomputeSummary",
		trace.WithAttributes(attribute.String("messaging.conversation_id", conversationID)))
	defer span.End()

	ctx, cancel := detach(ctx, l.timeout)
	defer cancel()

	conv, err := l.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, l.readError(span, err)
	}

	latest, err := l.store.LatestMessage(ctx, conversationID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return conv, nil
	}
	if err != nil {
		return nil, l.readError(span, err)
	}

	summary := models.SummaryOf(latest)
	if conv.Summary().Equal(summary) {
		return conv, nil
	}
	if err := l.store.UpdateSummary(ctx, conversationID, summary); err != nil {
		return nil, l.readError(span, err)
	}
	conv.ApplySummary(summary)

	l.log.Info("Conversation summary recomputed",
		"conversation_id", conversationID,
		"message_id", latest.ID,
	)
	return conv, nil
}

func (l *Ledger) readError(span trace.Span, err error) error {
	if stderrors.Is(err, repository.ErrNotFound) {
		return errors.ErrConversationNotFound
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "store")
	return errors.ErrPersistenceUnavailable.Wrap(err)
}
