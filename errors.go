package omnibus

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidConfig is returned by Dial and New when the client cannot be
	// constructed from the given arguments.
	ErrInvalidConfig = errors.New("invalid client configuration")

	// ErrClosed is returned by operations on a disconnected client.
	ErrClosed = errors.New("client disconnected")

	// ErrEmptyChannel is returned by Send for an Outbound whose channel was
	// never constructed.
	ErrEmptyChannel = errors.New("empty channel")

	// ErrChannelPrefix is returned when a channel name does not carry the
	// prefix required by its payload kind.
	ErrChannelPrefix = errors.New("channel prefix mismatch")

	// ErrDuplicatePrefix is returned by NewCatalogue when two schemas claim
	// the same prefix.
	ErrDuplicatePrefix = errors.New("duplicate channel prefix")
)

// MalformedError reports an inbound event whose timestamp or payload has the
// wrong primitive type.
type MalformedError struct {
	Channel string
	Reason  string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed message on %q: %s", e.Channel, e.Reason)
}

// UnknownChannelError reports an inbound event whose channel matches no
// catalogue prefix.
type UnknownChannelError struct {
	Channel string
}

func (e *UnknownChannelError) Error() string {
	return fmt.Sprintf("unknown channel %q", e.Channel)
}

// ValidationError reports a payload that does not satisfy the schema resolved
// from its channel. Problems holds one "field: description" entry per
// violation; Err is set instead when decoding failed after validation.
type ValidationError struct {
	Channel  string
	Kind     string
	Problems []string
	Err      error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "malformed payload for channel %q (%s)", e.Channel, e.Kind)
	if len(e.Problems) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Problems, "; "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.Err }
