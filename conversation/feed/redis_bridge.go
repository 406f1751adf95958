package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"campus-found/backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisBridge relays feed events between instances over a redis channel so
// that a subscriber connected to one instance sees writes made on another
type RedisBridge struct {
	client  *redis.Client
	channel string
	origin  string
	broker  *Broker
	log     *logger.Logger
}

// NewRedisBridge creates a bridge and installs it as b's relay
func NewRedisBridge(client *redis.Client, channel string, b *Broker, log *logger.Logger) *RedisBridge {
	r := &RedisBridge{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		broker:  b,
		log:     log,
	}
	b.SetRelay(r)
	return r
}

// Forward publishes a locally produced event for the other instances
func (r *RedisBridge) Forward(ctx context.Context, ev Event) error {
	data, err := json.Marshal(envelope{Origin: r.origin, Event: ev})
	if err != nil {
		return fmt.Errorf("encode feed event: %w", err)
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Run receives events from the other instances until ctx is done
func (r *RedisBridge) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.log.Info("Feed relay subscribed", "channel", r.channel, "origin", r.origin)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handlePayload(msg.Payload)
		}
	}
}

// handlePayload injects a remote event locally. Events this instance
// published are skipped since local subscribers already have them.
func (r *RedisBridge) handlePayload(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.log.Warn("Discarding malformed feed payload", "error", err.Error())
		return
	}
	if env.Origin == r.origin || env.Event.Topic == "" {
		return
	}
	r.broker.Inject(env.Event)
}
