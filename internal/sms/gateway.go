package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/offline-pay/offline_pay/internal/notification"
)

// ErrEmptyInbox is returned by Latest when there are no messages.
var ErrEmptyInbox = errors.New("inbox is empty")

const inboxLimit = 100

// Sender delivers a text to a dialable address such as "+919876543210".
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// Inbox exposes the most recent inbound message.
type Inbox interface {
	Latest(ctx context.Context) (Message, error)
}

// RedisGateway simulates the carrier with one Redis list per address,
// newest message first.
type RedisGateway struct {
	client *redis.Client
	self   string
	now    func() time.Time
}

// NewRedisGateway builds a gateway sending as self.
func NewRedisGateway(client *redis.Client, self string) *RedisGateway {
	return &RedisGateway{client: client, self: self, now: time.Now}
}

func inboxKey(address string) string {
	return "sms:inbox:" + address
}

// Send pushes the message onto the recipient's inbox list.
func (g *RedisGateway) Send(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(Message{From: g.self, To: to, Body: body, SentAt: g.now().UTC()})
	if err != nil {
		return err
	}
	key := inboxKey(to)
	_, err = g.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, payload)
		pipe.LTrim(ctx, key, 0, inboxLimit-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("sms send to %s: %w", to, err)
	}
	return nil
}

// Latest reads the newest message in the gateway owner's inbox.
func (g *RedisGateway) Latest(ctx context.Context) (Message, error) {
	raw, err := g.client.LIndex(ctx, inboxKey(g.self), 0).Result()
	if errors.Is(err, redis.Nil) {
		return Message{}, ErrEmptyInbox
	}
	if err != nil {
		return Message{}, fmt.Errorf("sms inbox: %w", err)
	}
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return Message{}, fmt.Errorf("sms inbox decode: %w", err)
	}
	return msg, nil
}

// NotifierSender routes texts through a notification.Notifier, for setups
// without a carrier where the message only needs to be recorded.
type NotifierSender struct {
	notifier notification.Notifier
}

// NewNotifierSender wraps n.
func NewNotifierSender(n notification.Notifier) *NotifierSender {
	return &NotifierSender{notifier: n}
}

func (s *NotifierSender) Send(ctx context.Context, to, body string) error {
	return s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindTransferReceived,
		Destination: to,
		Body:        body,
	})
}
