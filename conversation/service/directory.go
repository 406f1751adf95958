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

// ConversationHandle is the result of resolving a pair
type ConversationHandle struct {
	Conversation *models.Conversation `json:"conversation"`
	Created      bool                 `json:"created"`
}

// Options tunes the messaging core
type Options struct {
	// StrictPairs resolves with a single conditional write instead of
	// lookup-then-create
	StrictPairs bool
	// StoreTimeout bounds each detached store operation
	StoreTimeout time.Duration
	// Now is the clock; defaults to time.Now
	Now func() time.Time
}

func (o Options) clock() func() time.Time {
	if o.Now != nil {
		return o.Now
	}
	return time.Now
}

// Directory finds or creates the conversation for a pair of participants
type Directory struct {
	store   repository.Store
	strict  bool
	timeout time.Duration
	now     func() time.Time
	log     *logger.Logger
	metrics instruments
}

// NewDirectory creates a directory over store
func NewDirectory(store repository.Store, opts Options, log *logger.Logger) *Directory {
	return &Directory{
		store:   store,
		strict:  opts.StrictPairs,
		timeout: opts.StoreTimeout,
		now:     opts.clock(),
		log:     log,
		metrics: newInstruments(),
	}
}

// Resolve returns the unique conversation between self and other, creating
// it with an empty summary when none exists. The result is the same for
// Resolve(a, b) and Resolve(b, a).
//
// Without strict pairs two concurrent first resolves may both miss the
// lookup and both create. A store that enforces pair uniqueness rejects the
// loser, which then adopts the winner's row.
func (d *Directory) Resolve(ctx context.Context, self, other string) (*ConversationHandle, error) {
	ctx, span := tracer.Start(ctx, "Directory.Resolve")
	defer span.End()

	if strings.TrimSpace(self) == "" || strings.TrimSpace(other) == "" || self == other {
		return nil, errors.ErrInvalidParticipant
	}
	pair := models.CanonicalPair(self, other)
	span.SetAttributes(attribute.String("messaging.pair_key", pair.Key()))

	ctx, cancel := detach(ctx, d.timeout)
	defer cancel()

	existing, err := d.store.FindByPair(ctx, pair)
	if err == nil {
		return &ConversationHandle{Conversation: existing}, nil
	}
	if !stderrors.Is(err, repository.ErrNotFound) {
		return nil, d.unavailable(span, "lookup", err)
	}

	conv := models.NewConversation(pair, self, d.now().UTC().Truncate(tick))

	if d.strict {
		created, err := d.store.CreateIfAbsent(ctx, conv)
		if err != nil {
			return nil, d.unavailable(span, "create", err)
		}
		d.recordCreate(ctx, span, conv, created)
		return &ConversationHandle{Conversation: conv, Created: created}, nil
	}

	if err := d.store.CreateConversation(ctx, conv); err != nil {
		if !stderrors.Is(err, repository.ErrDuplicatePair) {
			return nil, d.unavailable(span, "create", err)
		}
		winner, ferr := d.store.FindByPair(ctx, pair)
		if ferr != nil {
			return nil, d.unavailable(span, "lookup", ferr)
		}
		return &ConversationHandle{Conversation: winner}, nil
	}

	d.recordCreate(ctx, span, conv, true)
	return &ConversationHandle{Conversation: conv, Created: true}, nil
}

func (d *Directory) recordCreate(ctx context.Context, span trace.Span, conv *models.Conversation, created bool) {
	span.SetAttributes(
		attribute.String("messaging.conversation_id", conv.ID),
		attribute.Bool("messaging.created", created),
	)
	if !created {
		return
	}
	d.metrics.conversationsCreated.Add(ctx, 1)
	d.log.Info("Conversation created", "conversation_id", conv.ID)
}

func (d *Directory) unavailable(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	d.log.Error("Conversation directory store failure", "op", op, "error", err.Error())
	return errors.ErrPersistenceUnavailable.Wrap(err)
}
