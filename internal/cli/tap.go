package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/bjaus/omnibus"
)

// tapLine is one line of `omnibus tap` output.
type tapLine struct {
	Channel   string `json:"channel"`
	Timestamp any    `json:"timestamp"`
	Payload   any    `json:"payload"`
}

// newTapCommand constructs the `tap` command.
func newTapCommand(a *app) *cobra.Command {
	var (
		raw   bool
		where []string
		sel   string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "tap [prefix]",
		Short: "Print messages whose channel starts with prefix as JSON lines",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			filter, err := parseWhere(where)
			if err != nil {
				return err
			}

			var opts []omnibus.Option
			if raw {
				opts = append(opts, omnibus.WithAllowUnsafe())
			}
			c, err := a.connect(cmd.Context(), opts...)
			if err != nil {
				return err
			}
			defer c.Disconnect()

			p := &printer{out: cmd.OutOrStdout(), sel: sel, limit: limit, done: make(chan struct{})}

			if raw {
				u, _ := c.Unsafe()
				u.Receive(func(m omnibus.RawMessage) {
					if !strings.HasPrefix(m.Channel, prefix) || !matchRaw(filter, m.Payload) {
						return
					}
					p.print(tapLine{Channel: m.Channel, Timestamp: m.Timestamp, Payload: m.Payload})
				})
			} else {
				var subOpts []omnibus.SubscribeOption
				if filter != nil {
					subOpts = append(subOpts, omnibus.Where(filter))
				}
				c.Receiver().Subscribe(prefix, func(m omnibus.Message[omnibus.Payload]) {
					p.print(tapLine{Channel: m.Channel, Timestamp: m.Timestamp, Payload: m.Payload})
				}, subOpts...)
			}

			a.logger.Info("tapping", "prefix", prefix, "raw", raw)

			select {
			case <-cmd.Context().Done():
			case <-p.done:
			case <-transportDone(c):
				return fmt.Errorf("connection closed")
			}
			return p.err()
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print events without validation")
	cmd.Flags().StringArrayVar(&where, "where", nil, "Only print payloads where path=value (repeatable)")
	cmd.Flags().StringVar(&sel, "select", "", "Print only the payload value at this path")
	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after N messages (0 = infinite)")
	return cmd
}

// parseWhere turns path=value pairs into a Discriminator matching all of them.
func parseWhere(pairs []string) (omnibus.Discriminator, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	ds := make([]omnibus.Discriminator, 0, len(pairs))
	for _, pair := range pairs {
		path, value, ok := strings.Cut(pair, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("invalid --where %q; expected path=value", pair)
		}
		ds = append(ds, omnibus.FieldIs(path, value))
	}
	return omnibus.And(ds...), nil
}

// matchRaw applies filter to an unvalidated payload. Payloads that are not
// JSON-encodable never match a filter.
func matchRaw(filter omnibus.Discriminator, payload any) bool {
	if filter == nil {
		return true
	}
	view, err := omnibus.PayloadView(payload)
	if err != nil {
		return false
	}
	return filter.Match(view)
}

// printer serializes output from the delivery goroutine.
type printer struct {
	out   io.Writer
	sel   string
	limit int

	mu      sync.Mutex
	n       int
	done    chan struct{}
	lastErr error
}

func (p *printer) print(line tapLine) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.limit > 0 && p.n >= p.limit {
		return
	}

	b, err := json.Marshal(line)
	if err != nil {
		p.lastErr = fmt.Errorf("encode %s: %w", line.Channel, err)
		return
	}
	if p.sel != "" {
		v := gjson.GetBytes(b, "payload."+p.sel)
		if !v.Exists() {
			return
		}
		b = []byte(line.Channel + "\t" + v.Raw)
	}
	if _, err := fmt.Fprintln(p.out, string(b)); err != nil {
		p.lastErr = err
	}

	p.n++
	if p.limit > 0 && p.n == p.limit {
		close(p.done)
	}
}

func (p *printer) err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}
