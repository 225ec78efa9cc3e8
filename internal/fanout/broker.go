package fanout

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tiback/helpdesk/internal/events"
)

const redisChannelPrefix = "fanout:"

// Publisher is the interface services publish through. Publishing is
// best-effort and happens strictly after the triggering transaction
// committed; failures are logged, never surfaced.
type Publisher interface {
	Publish(ctx context.Context, channels []string, event events.Event)
}

// Broker fans events out to the local hub and, when a Redis client is
// configured, relays them between instances over Redis pub/sub.
type Broker struct {
	hub    *Hub
	rdb    *redis.Client
	origin string
	logger *zap.Logger
}

// envelope is the wire form relayed over Redis. Origin guards against
// an instance re-delivering its own publishes.
type envelope struct {
	Origin  string       `json:"origin"`
	Channel string       `json:"channel"`
	Event   events.Event `json:"event"`
}

// NewBroker builds a broker. rdb may be nil, in which case fanout is
// purely in-process.
func NewBroker(hub *Hub, rdb *redis.Client, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		hub:    hub,
		rdb:    rdb,
		origin: uuid.NewString(),
		logger: logger,
	}
}

// Hub exposes the local hub for connection handlers.
func (b *Broker) Hub() *Hub {
	return b.hub
}

// Publish delivers the event locally and relays it over Redis.
func (b *Broker) Publish(ctx context.Context, channels []string, event events.Event) {
	for _, channel := range channels {
		b.hub.Publish(channel, event)
		if b.rdb == nil {
			continue
		}
		data, err := json.Marshal(envelope{Origin: b.origin, Channel: channel, Event: event})
		if err != nil {
			b.logger.Warn("marshal fanout envelope", zap.Error(err))
			continue
		}
		if err := b.rdb.Publish(ctx, redisChannelPrefix+channel, data).Err(); err != nil {
			b.logger.Warn("relay event to redis",
				zap.String("channel", channel),
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}
}

// Run consumes the Redis relay until the context is cancelled,
// delivering events published by other instances into the local hub.
// It is a no-op without a Redis client.
func (b *Broker) Run(ctx context.Context) error {
	if b.rdb == nil {
		return nil
	}
	pubsub := b.rdb.PSubscribe(ctx, redisChannelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("decode fanout envelope", zap.Error(err))
				continue
			}
			if env.Origin == b.origin {
				continue
			}
			channel := env.Channel
			if channel == "" {
				channel = strings.TrimPrefix(msg.Channel, redisChannelPrefix)
			}
			b.hub.Publish(channel, env.Event)
		}
	}
}
