// Package realtime fans out change events to connected clients over Redis
// pub/sub, so every API replica sees inserts made through any other.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Event is one change notification.
type Event struct {
	Channel string          `json:"channel"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

const EventInsert = "INSERT"

type Publisher interface {
	Publish(ctx context.Context, channel, eventType string, payload any) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan Event, func(), error)
}

type Broker struct {
	rdb    *redis.Client
	prefix string
}

func NewBroker(rdb *redis.Client, prefix string) *Broker {
	return &Broker{rdb: rdb, prefix: prefix}
}

// ReviewsChannel names the feed for one course's reviews.
func ReviewsChannel(courseSlug string) string {
	return "course_reviews:" + courseSlug
}

func (b *Broker) Publish(ctx context.Context, channel, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("realtime: encode payload: %w", err)
	}
	msg, err := json.Marshal(Event{Channel: channel, Type: eventType, Payload: data})
	if err != nil {
		return fmt.Errorf("realtime: encode event: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.prefix+channel, msg).Err(); err != nil {
		return fmt.Errorf("realtime: publish: %w", err)
	}
	return nil
}

// Subscribe returns a channel of events and a function that closes the
// subscription. The events channel is closed when ctx ends or the
// subscription is closed.
func (b *Broker) Subscribe(ctx context.Context, channel string) (<-chan Event, func(), error) {
	sub := b.rdb.Subscribe(ctx, b.prefix+channel)
	// wait for the subscription confirmation so no publish is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("realtime: subscribe: %w", err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, func() { _ = sub.Close() }, nil
}
