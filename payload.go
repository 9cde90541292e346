package omnibus

// Payload is implemented by every payload kind in the catalogue. ChannelPrefix
// returns the literal channel-name prefix the kind travels on; it must not
// depend on the receiver's value, so calling it on the zero value is valid.
type Payload interface {
	ChannelPrefix() string
}

// Channel-name prefixes of the built-in payload kinds.
const (
	PrefixDAQ           = "DAQ"
	PrefixParsley       = "CAN/Parsley"
	PrefixCANCommand    = "CAN/Commands"
	PrefixParsleyHealth = "Parsley/Health"
	PrefixRLCS          = "RLCS"
)

// Format versions carried in messageFormatVersion. Peers compare these to
// detect incompatible producers; the client only checks the literal.
const (
	DAQFormatVersion = 3
	CANFormatVersion = 2
)

// Priority is the CAN message priority.
type Priority string

// Priority levels, lowest first.
const (
	PriorityLow     Priority = "LOW"
	PriorityMedium  Priority = "MEDIUM"
	PriorityHigh    Priority = "HIGH"
	PriorityHighest Priority = "HIGHEST"
)

// DAQMessage is one batch of data-acquisition samples. Data maps a sensor
// name to its samples; RelativeTimestamps holds the per-sample offsets shared
// by every sensor in the batch.
type DAQMessage struct {
	Timestamp            float64              `json:"timestamp"`
	Data                 map[string][]float64 `json:"data"`
	RelativeTimestamps   []float64            `json:"relativeTimestamps"`
	SampleRate           int                  `json:"sampleRate"`
	MessageFormatVersion int                  `json:"messageFormatVersion"`
}

// ChannelPrefix implements Payload.
func (DAQMessage) ChannelPrefix() string { return PrefixDAQ }

// ParsleyMessage is a CAN payload decoded by a Parsley server. Data is opaque
// to the client and may be nil.
type ParsleyMessage struct {
	BoardTypeID          string   `json:"boardTypeId"`
	BoardInstID          string   `json:"boardInstId"`
	MsgPrio              Priority `json:"msgPrio"`
	MsgType              string   `json:"msgType"`
	Data                 any      `json:"data"`
	Parsley              string   `json:"parsley"`
	MessageFormatVersion int      `json:"messageFormatVersion"`
}

// ChannelPrefix implements Payload.
func (ParsleyMessage) ChannelPrefix() string { return PrefixParsley }

// CANCommandMessage is a command addressed to a board through Parsley.
// Parsley is the id of the Parsley server instance that should relay it.
type CANCommandMessage struct {
	BoardTypeID          string   `json:"boardTypeId"`
	BoardInstID          string   `json:"boardInstId"`
	MsgPrio              Priority `json:"msgPrio"`
	MsgType              string   `json:"msgType"`
	CANMsg               any      `json:"canMsg"`
	Parsley              string   `json:"parsley"`
	MessageFormatVersion int      `json:"messageFormatVersion"`
}

// ChannelPrefix implements Payload.
func (CANCommandMessage) ChannelPrefix() string { return PrefixCANCommand }

// ParsleyHealthMessage is a Parsley heartbeat.
type ParsleyHealthMessage struct {
	ID     string `json:"id"`
	Health string `json:"health"`
}

// ChannelPrefix implements Payload.
func (ParsleyHealthMessage) ChannelPrefix() string { return PrefixParsleyHealth }

// RLCSMessage is the legacy RLCS reading: sensor name to a number or a string.
type RLCSMessage map[string]any

// ChannelPrefix implements Payload.
func (RLCSMessage) ChannelPrefix() string { return PrefixRLCS }
