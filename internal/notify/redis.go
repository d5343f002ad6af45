package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/signoff/internal/observability"
	"github.com/pitabwire/signoff/model"
)

const defaultInboxSize = 100

// RedisNotifier publishes JSON notifications on a pub/sub channel and keeps a
// capped per-recipient inbox list so offline consumers can catch up.
// Inbox keys have the form "signoff:inbox:{recipientId}", newest first.
type RedisNotifier struct {
	client    redis.Cmdable
	channel   string
	inboxSize int64
}

// RedisOption configures a RedisNotifier.
type RedisOption func(*RedisNotifier)

// WithInboxSize caps each recipient inbox at n entries.
func WithInboxSize(n int) RedisOption {
	return func(r *RedisNotifier) {
		if n > 0 {
			r.inboxSize = int64(n)
		}
	}
}

// NewRedisNotifier creates a notifier publishing on channel.
func NewRedisNotifier(client redis.Cmdable, channel string, opts ...RedisOption) *RedisNotifier {
	r := &RedisNotifier{client: client, channel: channel, inboxSize: defaultInboxSize}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Notify publishes the notification and appends it to the recipient's inbox.
func (r *RedisNotifier) Notify(ctx context.Context, n model.Notification) error {
	payload, err := json.Marshal(NewMessage(n, observability.TraceCarrier(ctx)))
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	key := InboxKey(n.Recipient.ID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, r.channel, payload)
		pipe.LPush(ctx, key, payload)
		pipe.LTrim(ctx, key, 0, r.inboxSize-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish %q: %w", r.channel, err)
	}
	return nil
}

// Inbox returns up to limit of the most recent messages for a recipient.
func (r *RedisNotifier) Inbox(ctx context.Context, recipientID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = int(r.inboxSize)
	}
	raw, err := r.client.LRange(ctx, InboxKey(recipientID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %q: %w", InboxKey(recipientID), err)
	}

	msgs := make([]Message, 0, len(raw))
	for _, item := range raw {
		var m Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("unmarshal inbox entry: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// HealthCheck pings the Redis server.
func (r *RedisNotifier) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// InboxKey builds the inbox list key for a recipient.
func InboxKey(recipientID string) string {
	return "signoff:inbox:" + recipientID
}
