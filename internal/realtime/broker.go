package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// MemoryBroker delivers events straight to the local hub.
type MemoryBroker struct {
	hub *Hub
}

func NewMemoryBroker(hub *Hub) *MemoryBroker {
	return &MemoryBroker{hub: hub}
}

func (b *MemoryBroker) Publish(_ context.Context, event Event) error {
	return b.hub.Deliver(event)
}

const redisChannel = "tasko:realtime"

// RedisBroker publishes events on a Redis channel so every server instance
// can deliver them to its own hub.
type RedisBroker struct {
	client *redis.Client
	hub    *Hub
}

func NewRedisBroker(client *redis.Client, hub *Hub) *RedisBroker {
	return &RedisBroker{client: client, hub: hub}
}

func (b *RedisBroker) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, redisChannel, payload).Err()
}

// Run relays events from Redis into the local hub until ctx is cancelled.
func (b *RedisBroker) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, redisChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logrus.WithError(err).Warn("Discarding malformed realtime event")
				continue
			}
			b.hub.Broadcast(event.Topic, []byte(msg.Payload))
		}
	}
}
