package omnibus

// Transport is the duplex event transport the client runs on. The Socket.IO
// client in transport/socketio and the in-process transport in
// transport/loopback both implement it.
//
// OnAny hooks receive every inbound event as its name plus the remaining
// event arguments, one event at a time. The returned function removes the hook.
type Transport interface {
	Emit(event string, args ...any) error
	OnAny(fn func(event string, args []any)) (off func())
	Disconnect() error
	Connected() bool
	ID() string
}
