// Package mq moves run requests and results over a message broker.
package mq

import (
	"context"
	"time"
)

// Producer publishes messages.
type Producer interface {
	Publish(ctx context.Context, topic string, message *Message) error
}

// Consumer delivers messages of subscribed topics to handlers between
// Start and Stop.
type Consumer interface {
	Subscribe(ctx context.Context, topic string, handler HandlerFunc, opts *SubscribeOptions) error
	Start() error
	Stop() error
}

// HandlerFunc processes one message. A non-nil error schedules a redelivery
// of the same *Message, so header changes made by the handler survive.
type HandlerFunc func(ctx context.Context, message *Message) error

// Message is a broker record plus delivery bookkeeping.
type Message struct {
	ID         string
	Key        string // partition key, ID when empty
	Body       []byte
	Headers    map[string]string
	Timestamp  time.Time
	RetryCount int
	MaxRetries int
}

func NewMessage(body []byte) *Message {
	return &Message{Body: body, Headers: map[string]string{}, Timestamp: time.Now()}
}

func (m *Message) SetHeader(key, value string) {
	if m.Headers == nil {
		m.Headers = map[string]string{}
	}
	m.Headers[key] = value
}

func (m *Message) GetHeader(key string) (string, bool) {
	v, ok := m.Headers[key]
	return v, ok
}

// SubscribeOptions tunes one subscription. Zero values take the defaults
// noted per field.
type SubscribeOptions struct {
	ConsumerGroup   string        // "bojmock-<topic>"
	Concurrency     int           // 1
	MaxRetries      int           // 3
	RetryDelay      time.Duration // 1s
	DeadLetterTopic string        // none; exhausted messages are dropped
	MessageTTL      time.Duration // none; older messages are committed unhandled
}

func (o SubscribeOptions) withDefaults(topic string) SubscribeOptions {
	if o.ConsumerGroup == "" {
		o.ConsumerGroup = "bojmock-" + topic
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
	return o
}
