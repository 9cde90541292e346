package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bjaus/omnibus"
	"github.com/bjaus/omnibus/bridge"
	"github.com/bjaus/omnibus/internal/config"
	"github.com/bjaus/omnibus/metrics"
)

// SinkFactory builds the sinks `omnibus bridge` forwards to.
type SinkFactory func(cfg config.Bridge) ([]bridge.Sink, error)

// sinkFactory is replaced in tests.
var sinkFactory SinkFactory = DefaultSinks

// DefaultSinks returns a Kafka sink when brokers are configured and a NATS
// sink when a NATS URL is configured.
func DefaultSinks(cfg config.Bridge) ([]bridge.Sink, error) {
	var sinks []bridge.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		sinks = append(sinks, bridge.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic))
	}
	if cfg.NATS.URL != "" {
		s, err := bridge.NewNATSSink(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			_ = closeSinks(sinks)
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

func closeSinks(sinks []bridge.Sink) error {
	var errs []error
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newBridgeCommand constructs the `bridge` command.
func newBridgeCommand(a *app) *cobra.Command {
	var (
		prefix      string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Forward validated messages to Kafka and/or NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg.Bridge
			if cmd.Flags().Changed("prefix") {
				cfg.Prefix = prefix
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			return a.runBridge(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Forward only channels starting with prefix")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (empty disables)")
	return cmd
}

func (a *app) runBridge(ctx context.Context, cfg config.Bridge) error {
	sinks, err := sinkFactory(cfg)
	if err != nil {
		return err
	}
	if len(sinks) == 0 {
		return errors.New("no sinks configured; set bridge.kafka.brokers or bridge.nats.url")
	}
	defer func() {
		if err := closeSinks(sinks); err != nil {
			a.logger.Warn("closing sinks failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	col := metrics.NewCollector(omnibus.DefaultCatalogue())
	reg.MustRegister(col, collectors.NewGoCollector())

	c, err := a.connect(ctx, col.Options()...)
	if err != nil {
		return err
	}
	defer c.Disconnect()

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range sinks {
		bridge.Forward(gctx, c.Receiver(), cfg.Prefix, s, a.logger)
	}
	a.logger.Info("bridge running", "prefix", cfg.Prefix, "sinks", len(sinks))

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsHandler(reg),
			ReadHeaderTimeout: 5 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return gctx },
		}
		g.Go(func() error {
			a.logger.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-transportDone(c):
			return errors.New("omnibus connection closed")
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}
