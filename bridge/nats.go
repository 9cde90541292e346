package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// publisher is the part of *nats.Conn the sink uses.
type publisher interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSSink publishes records on NATS subjects derived from the channel:
// "DAQ/unit1" under prefix "omnibus" becomes "omnibus.DAQ.unit1".
type NATSSink struct {
	conn   publisher
	prefix string
}

// NewNATSSink connects to url and returns a sink publishing under prefix.
func NewNATSSink(url, prefix string, opts ...nats.Option) (*NATSSink, error) {
	opts = append([]nats.Option{nats.Name("omnibus-bridge")}, opts...)
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &NATSSink{conn: conn, prefix: prefix}, nil
}

// Subject returns the subject a channel is published on.
func (s *NATSSink) Subject(channel string) string {
	subject := subjectReplacer.Replace(channel)
	if s.prefix == "" {
		return subject
	}
	return s.prefix + "." + subject
}

var subjectReplacer = strings.NewReplacer("/", ".", " ", "_", "*", "_", ">", "_")

// Publish implements Sink. NATS publishes are buffered by the connection, so
// ctx is only checked before publishing.
func (s *NATSSink) Publish(ctx context.Context, channel string, record []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject := s.Subject(channel)
	if err := s.conn.Publish(subject, record); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection, flushing buffered publishes.
func (s *NATSSink) Close() error {
	return s.conn.Drain()
}
