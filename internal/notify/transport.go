package notify

import (
	"context"
	"errors"
)

var (
	// ErrAuthRejected indicates the transport refused the connection
	// credential. Channels fail closed on it and do not retry.
	ErrAuthRejected = errors.New("notify: credential rejected")
	// ErrChannelUnavailable indicates there is no live connection.
	ErrChannelUnavailable = errors.New("notify: channel unavailable")
)

// Transport opens authenticated duplex connections.
type Transport interface {
	// Dial opens a connection using token as the connection-time
	// credential. It returns an error wrapping ErrAuthRejected when the
	// credential is refused.
	Dial(ctx context.Context, token string) (Conn, error)
}

// Conn is one live transport connection. Recv yields frames in the order
// the server emitted them.
type Conn interface {
	Recv(ctx context.Context) (Frame, error)
	Send(ctx context.Context, f Frame) error
	Close() error
}
