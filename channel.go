package omnibus

import (
	"fmt"
	"strings"
)

// Channel is a channel name that carries payloads of kind T. A Channel can
// only be built by ChannelOf or ParseChannel, so its name always starts with
// T's prefix.
type Channel[T Payload] struct {
	name string
}

// ChannelOf returns the channel "<prefix>/<suffix>" for payload kind T, or the
// bare prefix when suffix is empty.
//
//	ch := omnibus.ChannelOf[omnibus.DAQMessage]("unit1") // "DAQ/unit1"
func ChannelOf[T Payload](suffix string) Channel[T] {
	prefix := prefixOf[T]()
	if suffix == "" {
		return Channel[T]{name: prefix}
	}
	return Channel[T]{name: prefix + "/" + suffix}
}

// ParseChannel checks that name starts with T's prefix.
func ParseChannel[T Payload](name string) (Channel[T], error) {
	prefix := prefixOf[T]()
	if !strings.HasPrefix(name, prefix) {
		return Channel[T]{}, fmt.Errorf("%w: %q does not start with %q", ErrChannelPrefix, name, prefix)
	}
	return Channel[T]{name: name}, nil
}

// MustParseChannel is like ParseChannel but panics on error.
func MustParseChannel[T Payload](name string) Channel[T] {
	ch, err := ParseChannel[T](name)
	if err != nil {
		panic(err)
	}
	return ch
}

// String returns the literal channel name.
func (c Channel[T]) String() string { return c.name }

func prefixOf[T Payload]() string {
	var zero T
	return zero.ChannelPrefix()
}
