package ws

import "errors"

var (
	// ErrHandshakeTimeout indicates the websocket handshake exceeded the configured timeout.
	ErrHandshakeTimeout = errors.New("websocket handshake timed out")
	// ErrSessionShutdown is emitted when the server requests a session shutdown.
	ErrSessionShutdown = errors.New("websocket session shutdown")
	// ErrIdleTimeout is returned by Receive when no message arrived in time.
	// The pending read stays outstanding and the connection remains usable.
	ErrIdleTimeout = errors.New("websocket idle timeout")
	// ErrConnectionClosed is returned for operations on a closed connection.
	ErrConnectionClosed = errors.New("websocket connection closed")
)
