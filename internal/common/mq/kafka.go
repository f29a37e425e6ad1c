package mq

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the shared writer and the per-subscription readers.
type KafkaConfig struct {
	Brokers     []string
	ClientID    string
	DialTimeout time.Duration

	RequiredAcks kafka.RequiredAcks
	BatchSize    int
	BatchTimeout time.Duration
	Compression  kafka.Compression

	MinBytes int
	MaxBytes int
	MaxWait  time.Duration
}

func (c *KafkaConfig) fill() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.RequiredAcks == 0 {
		c.RequiredAcks = kafka.RequireOne
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.BatchTimeout <= 0 {
		// results are latency sensitive; do not wait for a full batch
		c.BatchTimeout = 50 * time.Millisecond
	}
	if c.MinBytes <= 0 {
		c.MinBytes = 1
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 << 20
	}
	if c.MaxWait <= 0 {
		c.MaxWait = time.Second
	}
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var errQueueClosed = errors.New("message queue is closed")

// KafkaQueue is a Producer and Consumer on kafka-go. Offsets are committed
// only after a message is handled, dead-lettered or expired.
type KafkaQueue struct {
	cfg       KafkaConfig
	dialer    *kafka.Dialer
	writer    messageWriter
	newReader func(topic, group string) messageReader

	mu      sync.Mutex
	subs    []*subscription
	running bool
	closed  bool
}

func NewKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	cfg.fill()

	dialer := &kafka.Dialer{ClientID: cfg.ClientID, Timeout: cfg.DialTimeout, DualStack: true}
	q := &KafkaQueue{cfg: cfg, dialer: dialer}
	q.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: cfg.RequiredAcks,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		Compression:  cfg.Compression,
		Transport: &kafka.Transport{
			ClientID: cfg.ClientID,
			Dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, addr)
			},
		},
	}
	q.newReader = func(topic, group string) messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			GroupID:     group,
			Topic:       topic,
			Dialer:      dialer,
			MinBytes:    cfg.MinBytes,
			MaxBytes:    cfg.MaxBytes,
			MaxWait:     cfg.MaxWait,
			StartOffset: kafka.LastOffset,
		})
	}
	return q, nil
}

func (k *KafkaQueue) Publish(ctx context.Context, topic string, message *Message) error {
	switch {
	case topic == "":
		return errors.New("topic is required")
	case message == nil:
		return errors.New("message is nil")
	}
	return k.writer.WriteMessages(ctx, toKafkaMessage(topic, message))
}

// Subscribe registers handler for topic. Registering on a running queue
// starts the subscription immediately.
func (k *KafkaQueue) Subscribe(ctx context.Context, topic string, handler HandlerFunc, opts *SubscribeOptions) error {
	if topic == "" || handler == nil {
		return errors.New("topic and handler are required")
	}
	var o SubscribeOptions
	if opts != nil {
		o = *opts
	}
	if ctx == nil {
		ctx = context.Background()
	}
	sub := newSubscription(ctx, topic, handler, o.withDefaults(topic), k.Publish)

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return errQueueClosed
	}
	k.subs = append(k.subs, sub)
	if k.running {
		sub.start(k.newReader(topic, sub.opts.ConsumerGroup))
	}
	return nil
}

func (k *KafkaQueue) Start() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return errQueueClosed
	}
	if !k.running {
		for _, s := range k.subs {
			s.start(k.newReader(s.topic, s.opts.ConsumerGroup))
		}
		k.running = true
	}
	return nil
}

// Stop ends fetching, waits for in-flight handlers and closes the readers.
// Subscriptions stay registered for a later Start.
func (k *KafkaQueue) Stop() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	var errs []error
	for _, s := range k.subs {
		if err := s.stop(); err != nil {
			errs = append(errs, err)
		}
	}
	k.running = false
	return errors.Join(errs...)
}

// Ping dials the first broker.
func (k *KafkaQueue) Ping(ctx context.Context) error {
	conn, err := k.dialer.DialContext(ctx, "tcp", k.cfg.Brokers[0])
	if err != nil {
		return err
	}
	return conn.Close()
}

func (k *KafkaQueue) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	k.mu.Unlock()

	return errors.Join(k.Stop(), k.writer.Close())
}

var (
	_ Producer = (*KafkaQueue)(nil)
	_ Consumer = (*KafkaQueue)(nil)
)
