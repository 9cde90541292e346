package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bjaus/omnibus"
)

// newSendCommand constructs the `send` command.
func newSendCommand(a *app) *cobra.Command {
	var timestamp float64

	cmd := &cobra.Command{
		Use:   "send <channel> <json>",
		Short: "Validate a JSON payload against its channel's schema and send it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			channel := args[0]

			ts := timestamp
			if !cmd.Flags().Changed("timestamp") {
				ts = float64(time.Now().UnixMilli())
			}
			out, err := buildOutbound(channel, ts, []byte(args[1]))
			if err != nil {
				return err
			}

			c, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Disconnect()

			// With --loopback the echo shows what receivers will see.
			var echoed []byte
			if a.loopback {
				c.Receiver().Subscribe(channel, func(m omnibus.Message[omnibus.Payload]) {
					echoed, _ = json.Marshal(tapLine{Channel: m.Channel, Timestamp: m.Timestamp, Payload: m.Payload})
				})
			}

			if err := c.Sender().Send(out); err != nil {
				return fmt.Errorf("send %s: %w", channel, err)
			}

			if echoed != nil {
				fmt.Fprintln(cmd.OutOrStdout(), string(echoed))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", channel)
			return nil
		},
	}

	cmd.Flags().Float64Var(&timestamp, "timestamp", 0, "Message timestamp in ms (default now)")
	return cmd
}

// buildOutbound decodes raw JSON (camelCase or snake_case keys), validates it
// against the schema resolved from channel and returns a sendable message.
func buildOutbound(channel string, timestamp float64, raw []byte) (omnibus.Sendable, error) {
	schema, ok := omnibus.DefaultCatalogue().Resolve(channel)
	if !ok {
		return nil, &omnibus.UnknownChannelError{Channel: channel}
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("payload is not JSON: %w", err)
	}

	payload, err := schema.Parse(channel, omnibus.ToInternalCase(v))
	if err != nil {
		return nil, err
	}
	return omnibus.OutboundFor(channel, timestamp, payload)
}
