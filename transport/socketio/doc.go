// Package socketio is a minimal Socket.IO v5 client speaking Engine.IO v4
// over a websocket, with packets encoded by the MessagePack parser
// (socket.io-msgpack-parser on the server side).
//
// It supports what an Omnibus client needs: connecting to one namespace,
// emitting events, receiving every event through OnAny hooks, answering the
// server's heartbeat, and disconnecting. Long-polling, acknowledgements and
// automatic reconnection are not implemented.
//
// Inbound events are delivered one at a time, in arrival order, on the
// client's read goroutine. A hook that blocks delays every later event.
package socketio
