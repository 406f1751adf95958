package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "campus-found/backend/conversation/service"

var tracer = otel.Tracer(instrumentationName)

type instruments struct {
	messagesSent         metric.Int64Counter
	conversationsCreated metric.Int64Counter
	partialFailures      metric.Int64Counter
}

// newInstruments reads the global meter provider at call time so that
// services built after observability setup report through it. A failed
// registration still yields a usable no-op instrument.
func newInstruments() instruments {
	meter := otel.Meter(instrumentationName)

	sent, _ := meter.Int64Counter("messaging.messages.sent",
		metric.WithDescription("Messages durably appended"))
	created, _ := meter.Int64Counter("messaging.conversations.created",
		metric.WithDescription("Conversations created by resolve"))
	partial, _ := meter.Int64Counter("messaging.summary.partial_failures",
		metric.WithDescription("Appends whose summary update failed"))

	return instruments{
		messagesSent:         sent,
		conversationsCreated: created,
		partialFailures:      partial,
	}
}

// detach keeps a store call running after the caller goes away; resolve
// and append are not cancellable once issued. timeout still bounds them.
func detach(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// bounded applies timeout to a cancellable read
func bounded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
