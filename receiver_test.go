package omnibus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/bjaus/omnibus/transport/loopback"
)

// recordingHandler is a slog.Handler that keeps every record.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

// diagnostics returns the messages of records at Warn level or above.
func (h *recordingHandler) diagnostics() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, r := range h.records {
		if r.Level >= slog.LevelWarn {
			out = append(out, r.Message)
		}
	}
	return out
}

func sampleDAQ() DAQMessage {
	return DAQMessage{
		Timestamp:            1000,
		Data:                 map[string][]float64{"sensor1": {1, 2, 3}},
		RelativeTimestamps:   []float64{0, 1, 2},
		SampleRate:           1000,
		MessageFormatVersion: DAQFormatVersion,
	}
}

func sampleParsley() ParsleyMessage {
	return ParsleyMessage{
		BoardTypeID:          "GPS",
		BoardInstID:          "ROCKET",
		MsgPrio:              PriorityHigh,
		MsgType:              "GPS_INFO",
		Data:                 nil,
		Parsley:              "parsley-1",
		MessageFormatVersion: CANFormatVersion,
	}
}

type ReceiverSuite struct {
	suite.Suite
	transport *loopback.Transport
	client    *Client
	logs      *recordingHandler
}

func TestReceiverSuite(t *testing.T) {
	suite.Run(t, new(ReceiverSuite))
}

func (s *ReceiverSuite) SetupTest() {
	s.transport = loopback.New()
	s.logs = &recordingHandler{}

	c, err := New(s.transport, WithLogger(slog.New(s.logs)), WithAllowUnsafe())
	s.Require().NoError(err)
	s.client = c
}

func (s *ReceiverSuite) TearDownTest() {
	_ = s.client.Disconnect()
}

func (s *ReceiverSuite) send(channel string, p DAQMessage) {
	out := NewOutbound(MustParseChannel[DAQMessage](channel), p.Timestamp, p)
	s.Require().NoError(s.client.Sender().Send(out))
}

func (s *ReceiverSuite) TestDeliversInSendOrderWithLiteralChannel() {
	var got []string
	s.client.Receiver().Subscribe("DAQ", func(m Message[Payload]) {
		got = append(got, m.Channel)
	})

	s.send("DAQ/a", sampleDAQ())
	s.send("DAQ/b", sampleDAQ())

	s.Assert().Equal([]string{"DAQ/a", "DAQ/b"}, got)
}

func (s *ReceiverSuite) TestPrefixIsolatesChannels() {
	var got []string
	s.client.Receiver().Subscribe("DAQ", func(m Message[Payload]) {
		got = append(got, m.Channel)
	})

	health := NewOutbound(ChannelOf[ParsleyHealthMessage]("X"), 5, ParsleyHealthMessage{ID: "X", Health: "HEALTHY"})
	s.Require().NoError(s.client.Sender().Send(health))

	s.Assert().Empty(got)
	s.Assert().Empty(s.logs.diagnostics())
}

func (s *ReceiverSuite) TestEmptyPrefixReceivesEveryValidMessage() {
	var got []string
	s.client.Receiver().SubscribeAll(func(m Message[Payload]) {
		got = append(got, m.Channel)
	})

	s.send("DAQ/unit1", sampleDAQ())
	s.Require().NoError(s.client.Sender().Send(NewOutbound(ChannelOf[ParsleyMessage]("GPS"), 7, sampleParsley())))
	s.Require().NoError(s.client.Sender().Send(NewOutbound(ChannelOf[RLCSMessage]("v3"), 8, RLCSMessage{"ox": 1.5, "state": "OPEN"})))

	// Invalid: wrong version literal
	bad := sampleDAQ()
	bad.MessageFormatVersion = 2
	s.send("DAQ/unit2", bad)

	s.Assert().Equal([]string{"DAQ/unit1", "CAN/Parsley/GPS", "RLCS/v3"}, got)
}

func (s *ReceiverSuite) TestDAQRoundTrip() {
	var got []Message[Payload]
	s.client.Receiver().Subscribe("DAQ", func(m Message[Payload]) {
		got = append(got, m)
	})

	want := sampleDAQ()
	s.send("DAQ/unit1", want)

	s.Require().Len(got, 1)
	s.Assert().Equal("DAQ/unit1", got[0].Channel)
	s.Assert().Equal(float64(1000), got[0].Timestamp)
	s.Assert().Equal(want, got[0].Payload)
}

func (s *ReceiverSuite) TestNullPayloadProducesOneDiagnostic() {
	calls := 0
	s.client.Receiver().Subscribe("DAQ", func(Message[Payload]) { calls++ })
	s.client.Receiver().SubscribeAll(func(Message[Payload]) { calls++ })

	s.Require().NoError(s.transport.Emit("DAQ/unit1", 1000, nil))

	s.Assert().Zero(calls)
	s.Assert().Equal([]string{"omnibus: malformed message"}, s.logs.diagnostics())
}

func (s *ReceiverSuite) TestNonNumericTimestampProducesOneDiagnostic() {
	calls := 0
	s.client.Receiver().Subscribe("DAQ", func(Message[Payload]) { calls++ })
	s.client.Receiver().SubscribeAll(func(Message[Payload]) { calls++ })

	s.Require().NoError(s.transport.Emit("DAQ/unit1", "yesterday", map[string]any{"timestamp": 1}))

	s.Assert().Zero(calls)
	s.Assert().Equal([]string{"omnibus: malformed message"}, s.logs.diagnostics())
}

func (s *ReceiverSuite) TestMalformedEventOnUnsubscribedChannelIsDiagnosed() {
	calls := 0
	s.client.Receiver().Subscribe("DAQ", func(Message[Payload]) { calls++ })

	s.Require().NoError(s.transport.Emit("Parsley/Health/p1", 1, nil))

	s.Assert().Zero(calls)
	s.Assert().Equal([]string{"omnibus: malformed message"}, s.logs.diagnostics())
}

func (s *ReceiverSuite) TestMissingArgumentsAreMalformed() {
	calls := 0
	s.client.Receiver().SubscribeAll(func(Message[Payload]) { calls++ })

	s.Require().NoError(s.transport.Emit("DAQ/unit1"))

	s.Assert().Zero(calls)
	s.Assert().Len(s.logs.diagnostics(), 1)
}

func (s *ReceiverSuite) TestUnknownChannelIsDropped() {
	calls := 0
	s.client.Receiver().SubscribeAll(func(Message[Payload]) { calls++ })

	s.Require().NoError(s.transport.Emit("Test/AnyMessage", 1, map[string]any{"a": 1}))

	s.Assert().Zero(calls)
	s.Assert().Equal([]string{"omnibus: unknown channel"}, s.logs.diagnostics())
}

func (s *ReceiverSuite) TestWireCasedPayloadIsTranscoded() {
	var got []ParsleyMessage
	Receive(s.client.Receiver(), ChannelOf[ParsleyMessage](""), func(m Message[ParsleyMessage]) {
		got = append(got, m.Payload)
	})

	s.Require().NoError(s.transport.Emit("CAN/Parsley/GPS", 42, map[string]any{
		"board_type_id":          "GPS",
		"board_inst_id":          "ROCKET",
		"msg_prio":               "HIGH",
		"msg_type":               "GPS_INFO",
		"data":                   map[string]any{"lat": 43.5},
		"parsley":                "parsley-1",
		"message_format_version": 2,
	}))

	s.Require().Len(got, 1)
	s.Assert().Equal("GPS", got[0].BoardTypeID)
	s.Assert().Equal(PriorityHigh, got[0].MsgPrio)
	s.Assert().Equal(map[string]any{"lat": 43.5}, got[0].Data)
}

func (s *ReceiverSuite) TestValidationFailureDoesNotAffectLaterMessages() {
	var got []string
	s.client.Receiver().Subscribe("CAN", func(m Message[Payload]) {
		got = append(got, m.Channel)
	})

	s.Require().NoError(s.transport.Emit("CAN/Parsley/GPS", 1, map[string]any{
		"board_type_id": "GPS",
		"msg_prio":      "URGENT",
	}))
	s.Require().NoError(s.client.Sender().Send(NewOutbound(ChannelOf[ParsleyMessage]("GPS"), 2, sampleParsley())))

	s.Assert().Equal([]string{"CAN/Parsley/GPS"}, got)
	s.Assert().Equal([]string{"omnibus: malformed payload"}, s.logs.diagnostics())
}

func (s *ReceiverSuite) TestUnsubscribeDuringOwnCallback() {
	var first, second []string
	var unsub Unsubscribe
	unsub = s.client.Receiver().Subscribe("DAQ", func(m Message[Payload]) {
		first = append(first, m.Channel)
		unsub()
	})
	s.client.Receiver().Subscribe("DAQ", func(m Message[Payload]) {
		second = append(second, m.Channel)
	})

	s.send("DAQ/a", sampleDAQ())
	s.send("DAQ/b", sampleDAQ())

	s.Assert().Equal([]string{"DAQ/a"}, first)
	s.Assert().Equal([]string{"DAQ/a", "DAQ/b"}, second)
}

func (s *ReceiverSuite) TestUnsubscribeOtherDuringDispatch() {
	var second, third []string
	var unsubSecond Unsubscribe
	s.client.Receiver().Subscribe("DAQ", func(Message[Payload]) {
		unsubSecond()
	})
	unsubSecond = s.client.Receiver().Subscribe("DAQ", func(m Message[Payload]) {
		second = append(second, m.Channel)
	})
	s.client.Receiver().Subscribe("DAQ", func(m Message[Payload]) {
		third = append(third, m.Channel)
	})

	s.send("DAQ/a", sampleDAQ())

	s.Assert().Empty(second)
	s.Assert().Equal([]string{"DAQ/a"}, third)
}

func (s *ReceiverSuite) TestUnsubscribeIsIdempotent() {
	calls := 0
	unsub := s.client.Receiver().SubscribeAll(func(Message[Payload]) { calls++ })

	unsub()
	unsub()
	s.send("DAQ/a", sampleDAQ())

	s.Assert().Zero(calls)
}

func (s *ReceiverSuite) TestPanickingCallbackDoesNotStopDelivery() {
	var got []string
	s.client.Receiver().SubscribeAll(func(Message[Payload]) {
		panic("boom")
	})
	s.client.Receiver().SubscribeAll(func(m Message[Payload]) {
		got = append(got, m.Channel)
	})

	s.send("DAQ/a", sampleDAQ())

	s.Assert().Equal([]string{"DAQ/a"}, got)
	s.Assert().Equal([]string{"omnibus: subscriber panicked"}, s.logs.diagnostics())
}

func (s *ReceiverSuite) TestWhereFiltersOnPayload() {
	var got []Priority
	s.client.Receiver().Subscribe("CAN/Parsley", func(m Message[Payload]) {
		got = append(got, m.Payload.(ParsleyMessage).MsgPrio)
	}, Where(FieldEquals("msgPrio", "HIGHEST")))

	low := sampleParsley()
	low.MsgPrio = PriorityLow
	highest := sampleParsley()
	highest.MsgPrio = PriorityHighest

	ch := ChannelOf[ParsleyMessage]("GPS")
	s.Require().NoError(s.client.Sender().Send(NewOutbound(ch, 1, low)))
	s.Require().NoError(s.client.Sender().Send(NewOutbound(ch, 2, highest)))

	s.Assert().Equal([]Priority{PriorityHighest}, got)
}

func (s *ReceiverSuite) TestReceiveSkipsOtherKinds() {
	var got []string
	Receive(s.client.Receiver(), ChannelOf[DAQMessage](""), func(m Message[DAQMessage]) {
		got = append(got, m.Channel)
	})

	s.send("DAQ/a", sampleDAQ())
	s.Require().NoError(s.client.Sender().Send(NewOutbound(ChannelOf[ParsleyMessage]("GPS"), 2, sampleParsley())))

	s.Assert().Equal([]string{"DAQ/a"}, got)
}

func (s *ReceiverSuite) TestUnsafeReceiveSeesRawEvents() {
	unsafe, ok := s.client.Unsafe()
	s.Require().True(ok)

	var got []RawMessage
	unsafe.Receive(func(m RawMessage) {
		got = append(got, m)
	})

	s.Require().NoError(s.transport.Emit("Test/AnyMessage", 12, "test"))
	s.Require().NoError(s.transport.Emit("DAQ/a", "not a number", nil))

	s.Require().Len(got, 2)
	s.Assert().Equal("Test/AnyMessage", got[0].Channel)
	s.Assert().EqualValues(12, got[0].Timestamp)
	s.Assert().Equal("test", got[0].Payload)
	s.Assert().Equal("not a number", got[1].Timestamp)
	s.Assert().Nil(got[1].Payload)
	s.Assert().Empty(s.logs.diagnostics())
}

func (s *ReceiverSuite) TestNoCallbacksAfterDisconnect() {
	calls := 0
	s.client.Receiver().SubscribeAll(func(Message[Payload]) { calls++ })

	s.Require().NoError(s.client.Disconnect())

	err := s.client.Sender().Send(NewOutbound(ChannelOf[DAQMessage]("a"), 1, sampleDAQ()))
	s.Assert().ErrorIs(err, loopback.ErrClosed)
	s.Assert().Zero(calls)
}

func (s *ReceiverSuite) TestSubscribeAfterDisconnectIsNoop() {
	s.Require().NoError(s.client.Disconnect())

	unsub := s.client.Receiver().SubscribeAll(func(Message[Payload]) {})
	s.Assert().NotPanics(func() { unsub() })
}

func TestCheckEvent(t *testing.T) {
	tests := map[string]struct {
		args    []any
		wantErr bool
	}{
		"valid int timestamp":     {args: []any{int64(5), map[string]any{}}},
		"valid uint timestamp":    {args: []any{uint64(5), map[string]any{}}},
		"valid float timestamp":   {args: []any{1.5, map[string]any{}}},
		"no arguments":            {args: nil, wantErr: true},
		"string timestamp":        {args: []any{"5", map[string]any{}}, wantErr: true},
		"nil payload":             {args: []any{5, nil}, wantErr: true},
		"array payload":           {args: []any{5, []any{1}}, wantErr: true},
		"string payload":          {args: []any{5, "test"}, wantErr: true},
		"nil map payload":         {args: []any{5, map[string]any(nil)}, wantErr: true},
		"missing payload":         {args: []any{5}, wantErr: true},
		"bool timestamp":          {args: []any{true, map[string]any{}}, wantErr: true},
		"extra arguments ignored": {args: []any{5, map[string]any{}, "extra"}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := checkEvent("DAQ/a", tt.args)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var merr *MalformedError
			require.True(t, errors.As(err, &merr))
			assert.Equal(t, "DAQ/a", merr.Channel)
		})
	}
}
