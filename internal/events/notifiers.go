package events

import (
	"context"
	"errors"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// LogNotifier writes every event to the structured log.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify logs the event.
func (n LogNotifier) Notify(_ context.Context, event Event) error {
	n.Logger.Info().
		Str("event_id", event.ID).
		Str("topic", event.Topic).
		Str("aggregate_id", event.AggregateID).
		RawJSON("payload", event.Payload).
		Msg("domain_event")
	return nil
}

// RedisStreamNotifier appends events to a Redis stream for downstream consumers
// such as receipt delivery.
type RedisStreamNotifier struct {
	R      *redis.Client
	Stream string
	MaxLen int64
}

// Notify XADDs the event.
func (n RedisStreamNotifier) Notify(ctx context.Context, event Event) error {
	if n.R == nil {
		return errors.New("events: redis client not configured")
	}
	stream := n.Stream
	if stream == "" {
		stream = "kasir:events"
	}
	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"id":           event.ID,
			"topic":        event.Topic,
			"aggregate_id": event.AggregateID,
			"payload":      string(event.Payload),
			"occurred_at":  event.OccurredAt.UnixMilli(),
		},
	}
	if n.MaxLen > 0 {
		args.MaxLen = n.MaxLen
		args.Approx = true
	}
	return n.R.XAdd(ctx, args).Err()
}
