// Package metrics exposes Omnibus client activity as Prometheus metrics. A
// Collector is wired into a client through hook options:
//
//	col := metrics.NewCollector(omnibus.DefaultCatalogue())
//	prometheus.MustRegister(col)
//	c, err := omnibus.Dial(ctx, url, col.Options()...)
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bjaus/omnibus"
)

const namespace = "omnibus"

// Drop reasons used as the "reason" label.
const (
	ReasonMalformed      = "malformed"
	ReasonUnknownChannel = "unknown_channel"
	ReasonInvalid        = "invalid"
)

// Collector counts delivered, dropped and sent messages. It implements
// prometheus.Collector.
type Collector struct {
	catalogue *omnibus.Catalogue

	delivered *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	sent      *prometheus.CounterVec
	sendErrs  *prometheus.CounterVec
	panics    prometheus.Counter
	duration  *prometheus.HistogramVec
}

// NewCollector builds a Collector. catalogue resolves outbound channels to
// their prefix for the "prefix" label; nil uses omnibus.DefaultCatalogue.
func NewCollector(catalogue *omnibus.Catalogue) *Collector {
	if catalogue == nil {
		catalogue = omnibus.DefaultCatalogue()
	}
	return &Collector{
		catalogue: catalogue,

		delivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "messages",
				Name:      "delivered_total",
				Help:      "Validated inbound messages handed to subscribers",
			},
			[]string{"kind"},
		),

		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "messages",
				Name:      "dropped_total",
				Help:      "Inbound messages dropped before delivery",
			},
			[]string{"reason"},
		),

		sent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "messages",
				Name:      "sent_total",
				Help:      "Messages emitted on the transport",
			},
			[]string{"prefix"},
		),

		sendErrs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "messages",
				Name:      "send_errors_total",
				Help:      "Sends that returned an error",
			},
			[]string{"prefix"},
		),

		panics: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "callback",
				Name:      "panics_total",
				Help:      "Subscription callbacks that panicked",
			},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "callback",
				Name:      "duration_seconds",
				Help:      "Time spent in all subscription callbacks for one message",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.delivered.Describe(ch)
	c.dropped.Describe(ch)
	c.sent.Describe(ch)
	c.sendErrs.Describe(ch)
	c.panics.Describe(ch)
	c.duration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.delivered.Collect(ch)
	c.dropped.Collect(ch)
	c.sent.Collect(ch)
	c.sendErrs.Collect(ch)
	c.panics.Collect(ch)
	c.duration.Collect(ch)
}

// Options returns the client options that feed the collector.
func (c *Collector) Options() []omnibus.Option {
	return []omnibus.Option{
		omnibus.WithOnMalformed(func(string, error) {
			c.dropped.WithLabelValues(ReasonMalformed).Inc()
		}),
		omnibus.WithOnUnknownChannel(func(string) {
			c.dropped.WithLabelValues(ReasonUnknownChannel).Inc()
		}),
		omnibus.WithOnValidationError(func(string, error) {
			c.dropped.WithLabelValues(ReasonInvalid).Inc()
		}),
		omnibus.WithOnDeliver(func(_, kind string, subscribers int, d time.Duration) {
			if subscribers == 0 {
				return
			}
			c.delivered.WithLabelValues(kind).Inc()
			c.duration.WithLabelValues(kind).Observe(d.Seconds())
		}),
		omnibus.WithOnPanic(func(string, any) {
			c.panics.Inc()
		}),
		omnibus.WithOnSend(func(channel string, err error) {
			prefix := c.prefix(channel)
			if err != nil {
				c.sendErrs.WithLabelValues(prefix).Inc()
				return
			}
			c.sent.WithLabelValues(prefix).Inc()
		}),
	}
}

func (c *Collector) prefix(channel string) string {
	if s, ok := c.catalogue.Resolve(channel); ok {
		return s.Prefix()
	}
	return "other"
}
