package docsmcp

import "context"

// Transport provides the client-side communication layer a session runs on.
// Implementations deliver one stream of decoded messages per session and
// serialize concurrent writers so two messages never interleave on the wire.
type Transport interface {
	// Start establishes the stream and returns a channel yielding messages
	// received from the server. The channel is closed when the stream ends,
	// whether by Close or by the peer going away; Err reports the cause of an
	// unexpected end.
	Start(ctx context.Context) (<-chan Message, error)

	// Send transmits one message to the server. The write is atomic with
	// respect to other senders.
	Send(ctx context.Context, msg Message) error

	// Err returns the error that terminated the stream, if any. It is only
	// meaningful after the message channel has been closed.
	Err() error

	// Close releases the stream and any resources behind it. It is idempotent.
	Close() error
}
