package mq

import (
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// Reserved headers carry Message fields that have no native Kafka slot.
const (
	headerID         = "x-message-id"
	headerTimestamp  = "x-message-ts"
	headerRetryCount = "x-message-retry"
	headerMaxRetries = "x-message-max-retries"
)

func toKafkaMessage(topic string, m *Message) kafka.Message {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	headers := make([]kafka.Header, 0, len(m.Headers)+4)
	add := func(k, v string) {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	for k, v := range m.Headers {
		add(k, v)
	}
	if m.ID != "" {
		add(headerID, m.ID)
	}
	add(headerTimestamp, m.Timestamp.Format(time.RFC3339Nano))
	if m.RetryCount > 0 {
		add(headerRetryCount, strconv.Itoa(m.RetryCount))
	}
	if m.MaxRetries > 0 {
		add(headerMaxRetries, strconv.Itoa(m.MaxRetries))
	}

	key := m.Key
	if key == "" {
		key = m.ID
	}
	return kafka.Message{Topic: topic, Key: []byte(key), Value: m.Body, Headers: headers, Time: m.Timestamp}
}

func fromKafkaMessage(km kafka.Message) *Message {
	m := &Message{
		Key:       string(km.Key),
		Body:      km.Value,
		Headers:   make(map[string]string, len(km.Headers)),
		Timestamp: km.Time,
	}
	count := func(raw []byte) int {
		n, err := strconv.Atoi(string(raw))
		if err != nil || n < 0 {
			return 0
		}
		return n
	}
	for _, h := range km.Headers {
		switch h.Key {
		case headerID:
			m.ID = string(h.Value)
		case headerTimestamp:
			if ts, err := time.Parse(time.RFC3339Nano, string(h.Value)); err == nil {
				m.Timestamp = ts
			}
		case headerRetryCount:
			m.RetryCount = count(h.Value)
		case headerMaxRetries:
			m.MaxRetries = count(h.Value)
		default:
			m.Headers[h.Key] = string(h.Value)
		}
	}
	if m.ID == "" {
		m.ID = m.Key
	}
	return m
}
