package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"motocredito-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

const eventChannelPrefix = "credito:transiciones:"

// EventPublisher announces committed transitions.
type EventPublisher interface {
	Publish(ctx context.Context, evt models.EventoTransicion) error
}

// EventSubscriber streams transitions of one solicitud until ctx ends.
type EventSubscriber interface {
	Subscribe(ctx context.Context, solicitudID string) (<-chan models.EventoTransicion, error)
}

// RedisEventBus relays transition events over Redis pub/sub, one channel
// per solicitud.
type RedisEventBus struct {
	client *redis.Client
}

func NewRedisEventBus(client *redis.Client) *RedisEventBus {
	return &RedisEventBus{client: client}
}

func EventChannel(solicitudID string) string {
	return eventChannelPrefix + solicitudID
}

func (b *RedisEventBus) Publish(ctx context.Context, evt models.EventoTransicion) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal evento: %w", err)
	}
	if err := b.client.Publish(ctx, EventChannel(evt.SolicitudID), payload).Err(); err != nil {
		return fmt.Errorf("publish evento: %w", err)
	}
	return nil
}

// Subscribe returns once the subscription is confirmed. The channel is
// closed when ctx is done. Undecodable messages are dropped.
func (b *RedisEventBus) Subscribe(ctx context.Context, solicitudID string) (<-chan models.EventoTransicion, error) {
	ps := b.client.Subscribe(ctx, EventChannel(solicitudID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", solicitudID, err)
	}

	out := make(chan models.EventoTransicion, 16)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var evt models.EventoTransicion
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
