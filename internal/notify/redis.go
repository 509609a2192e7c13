package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/visadesk/visadesk/internal/authz"
	"github.com/visadesk/visadesk/internal/shared"
)

// UserTopic is the pub/sub channel carrying one principal's notifications.
func UserTopic(prefix, principalID string) string {
	return prefix + ":user:" + principalID
}

// AckTopic is the pub/sub channel receiving read-state acks.
func AckTopic(prefix string) string {
	return prefix + ":ack"
}

// RedisTransport carries frames over Redis pub/sub. The token is verified
// once at dial time and selects the principal's topic.
type RedisTransport struct {
	client   *redis.Client
	verifier authz.Verifier
	prefix   string
}

// NewRedisTransport constructs a RedisTransport.
func NewRedisTransport(client *redis.Client, verifier authz.Verifier, prefix string) *RedisTransport {
	return &RedisTransport{client: client, verifier: verifier, prefix: prefix}
}

// Dial implements Transport.
func (t *RedisTransport) Dial(ctx context.Context, token string) (Conn, error) {
	p, err := t.verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthRejected, err)
	}
	if !authz.Allows(p, shared.PermNotificationsView) {
		return nil, fmt.Errorf("%w: %s may not receive notifications", ErrAuthRejected, p.ID)
	}
	sub := t.client.Subscribe(ctx, UserTopic(t.prefix, p.ID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("notify: subscribe: %w", err)
	}
	return &redisConn{client: t.client, sub: sub, ackTopic: AckTopic(t.prefix)}, nil
}

type redisConn struct {
	client   *redis.Client
	sub      *redis.PubSub
	ackTopic string

	closeOnce sync.Once
	closeErr  error
}

func (c *redisConn) Recv(ctx context.Context) (Frame, error) {
	for {
		msg, err := c.sub.ReceiveMessage(ctx)
		if err != nil {
			return Frame{}, err
		}
		var f Frame
		if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
			slog.Default().Warn("notify decode frame", slog.String("channel", msg.Channel), slog.Any("error", err))
			continue
		}
		return f, nil
	}
}

func (c *redisConn) Send(ctx context.Context, f Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, c.ackTopic, payload).Err()
}

func (c *redisConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.sub.Close()
	})
	return c.closeErr
}

// Publisher fans one event out to every recipient's topic.
type Publisher struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewPublisher constructs a Publisher.
func NewPublisher(client *redis.Client, prefix string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{client: client, prefix: prefix, logger: logger}
}

// Publish sends ev once to each distinct non-empty recipient.
func (p *Publisher) Publish(ctx context.Context, recipients []string, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	frame, err := NotificationFrame(ev)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	targets := Recipients(recipients...)
	if len(targets) == 0 {
		return nil
	}
	pipe := p.client.Pipeline()
	for _, id := range targets {
		pipe.Publish(ctx, UserTopic(p.prefix, id), payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("notify: publish %s: %w", ev.ID, err)
	}
	p.logger.Debug("notify published", slog.String("event", ev.ID), slog.Int("recipients", len(targets)))
	return nil
}

// Dispatch publishes inline; it lets the Publisher stand in for the queue.
func (p *Publisher) Dispatch(ctx context.Context, recipients []string, ev Event) error {
	return p.Publish(ctx, recipients, ev)
}

// Recipients deduplicates ids, dropping empty ones and keeping first-seen order.
func Recipients(ids ...string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
