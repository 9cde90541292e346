package omnibus

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/bjaus/omnibus/transport/loopback"
)

type emitted struct {
	event string
	args  []any
}

// failingTransport rejects every Emit.
type failingTransport struct {
	loopback.Transport
	err error
}

func (f *failingTransport) Emit(string, ...any) error { return f.err }

type SenderSuite struct {
	suite.Suite
	transport *loopback.Transport
	client    *Client
	seen      []emitted
}

func TestSenderSuite(t *testing.T) {
	suite.Run(t, new(SenderSuite))
}

func (s *SenderSuite) SetupTest() {
	s.seen = nil
	s.transport = loopback.New()
	s.transport.OnAny(func(event string, args []any) {
		s.seen = append(s.seen, emitted{event: event, args: args})
	})

	c, err := New(s.transport, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
	s.client = c
}

func (s *SenderSuite) TestEmitsSnakeCasePayload() {
	out := NewOutbound(ChannelOf[DAQMessage]("unit1"), 1234.5, DAQMessage{
		Timestamp:            1234.5,
		Data:                 map[string][]float64{"sensor1": {1.5}},
		RelativeTimestamps:   []float64{0},
		SampleRate:           100,
		MessageFormatVersion: DAQFormatVersion,
	})

	s.Require().NoError(s.client.Sender().Send(out))

	s.Require().Len(s.seen, 1)
	s.Assert().Equal("DAQ/unit1", s.seen[0].event)
	s.Require().Len(s.seen[0].args, 2)
	s.Assert().Equal(1234.5, s.seen[0].args[0])

	payload, ok := s.seen[0].args[1].(map[string]any)
	s.Require().True(ok)
	s.Assert().ElementsMatch(
		[]string{"timestamp", "data", "relative_timestamps", "sample_rate", "message_format_version"},
		keys(payload),
	)
	s.Assert().EqualValues(100, payload["sample_rate"])
	s.Assert().EqualValues(3, payload["message_format_version"])

	data, ok := payload["data"].(map[string]any)
	s.Require().True(ok)
	s.Assert().Equal([]any{1.5}, data["sensor_1"])
}

func (s *SenderSuite) TestEmitsNestedCANPayloadInWireCase() {
	out := NewOutbound(ChannelOf[CANCommandMessage]("BATTERY"), 1, CANCommandMessage{
		BoardTypeID:          "BATTERY",
		BoardInstID:          "ROCKET",
		MsgPrio:              PriorityMedium,
		MsgType:              "ACTUATOR_CMD",
		CANMsg:               map[string]any{"actuatorState": "ON"},
		Parsley:              "parsley-1",
		MessageFormatVersion: CANFormatVersion,
	})

	s.Require().NoError(s.client.Sender().Send(out))

	s.Require().Len(s.seen, 1)
	payload := s.seen[0].args[1].(map[string]any)
	s.Assert().Equal("BATTERY", payload["board_type_id"])
	s.Assert().Equal("MEDIUM", payload["msg_prio"])
	s.Assert().Equal(map[string]any{"actuator_state": "ON"}, payload["can_msg"])
}

func (s *SenderSuite) TestDoesNotValidate() {
	// Send trusts the caller; receivers will drop this payload.
	out := NewOutbound(ChannelOf[ParsleyHealthMessage]("p1"), 1, ParsleyHealthMessage{})

	s.Assert().NoError(s.client.Sender().Send(out))
	s.Assert().Len(s.seen, 1)
}

func (s *SenderSuite) TestEmptyChannel() {
	err := s.client.Sender().Send(Outbound[DAQMessage]{})

	s.Assert().ErrorIs(err, ErrEmptyChannel)
	s.Assert().Empty(s.seen)
}

func (s *SenderSuite) TestTransportErrorReturned() {
	boom := errors.New("boom")
	c, err := New(&failingTransport{err: boom})
	s.Require().NoError(err)

	err = c.Sender().Send(NewOutbound(ChannelOf[RLCSMessage]("v3"), 1, RLCSMessage{"a": 1}))
	s.Assert().ErrorIs(err, boom)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
