// Package bridge forwards validated Omnibus messages to external brokers.
// Each message becomes one JSON record:
//
//	{"channel":"DAQ/unit1","timestamp":1000,"payload":{"sampleRate":1000,...}}
//
// Payload keys are in internal (camelCase) casing.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bjaus/omnibus"
)

// DefaultPublishTimeout bounds a single Publish made by Forward.
const DefaultPublishTimeout = 5 * time.Second

// Sink publishes encoded records.
type Sink interface {
	Publish(ctx context.Context, channel string, record []byte) error
	Close() error
}

// Record is the JSON form of a forwarded message.
type Record struct {
	Channel   string          `json:"channel"`
	Timestamp float64         `json:"timestamp"`
	Payload   omnibus.Payload `json:"payload"`
}

// Encode returns the JSON record for m.
func Encode(m omnibus.Message[omnibus.Payload]) ([]byte, error) {
	raw, err := json.Marshal(Record{Channel: m.Channel, Timestamp: m.Timestamp, Payload: m.Payload})
	if err != nil {
		return nil, fmt.Errorf("encode record for %s: %w", m.Channel, err)
	}
	return raw, nil
}

// Forward subscribes to prefix on r and publishes every message to sink.
// Publishing happens on the receiver's delivery goroutine, bounded by
// DefaultPublishTimeout; failures are logged and the message is skipped.
// Forwarding stops when ctx is done or the returned Unsubscribe is called.
func Forward(ctx context.Context, r *omnibus.Receiver, prefix string, sink Sink, logger *slog.Logger) omnibus.Unsubscribe {
	if logger == nil {
		logger = slog.Default()
	}

	unsub := r.Subscribe(prefix, func(m omnibus.Message[omnibus.Payload]) {
		if ctx.Err() != nil {
			return
		}

		record, err := Encode(m)
		if err != nil {
			logger.Warn("bridge: encode failed", "channel", m.Channel, "error", err)
			return
		}

		pctx, cancel := context.WithTimeout(ctx, DefaultPublishTimeout)
		defer cancel()
		if err := sink.Publish(pctx, m.Channel, record); err != nil {
			logger.Warn("bridge: publish failed", "channel", m.Channel, "error", err)
		}
	})

	stop := context.AfterFunc(ctx, unsub)
	return func() {
		stop()
		unsub()
	}
}
