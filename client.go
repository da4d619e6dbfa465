package docsmcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ClientOption is a function that configures a client.
type ClientOption func(*Client)

// Client is a session-oriented MCP client. It owns exactly one session over
// the given transport: Connect spawns the server and performs the
// initialize/initialized handshake, after which ListTools and CallTool accept
// any number of concurrent invocations, each independently correlated until
// its response arrives or times out. Close tears the session down and is safe
// to call at any point.
//
// A Client must be created with NewClient and connected with Connect before
// any tool operation is legal.
type Client struct {
	sess *session

	logger            *slog.Logger
	capabilities      ClientCapabilities
	initializeTimeout time.Duration
	callTimeout       time.Duration
}

// Default timeouts, overridable per client. The handshake gets the shorter
// connection budget; tool calls get the request budget.
var (
	defaultInitializeTimeout = 10 * time.Second
	defaultCallTimeout       = 30 * time.Second
)

// WithLogger sets the logger for the client and its session.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithInitializeTimeout bounds the initialize handshake round trip.
func WithInitializeTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.initializeTimeout = timeout
	}
}

// WithCallTimeout sets the default per-call timeout for tool operations. A
// context with an earlier deadline takes precedence for that call.
func WithCallTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.callTimeout = timeout
	}
}

// WithCapabilities overrides the capability set sent in the initialize
// request.
func WithCapabilities(caps ClientCapabilities) ClientOption {
	return func(c *Client) {
		c.capabilities = caps
	}
}

// NewClient creates a client identified by info that will communicate over
// the given transport. The client is not connected until Connect is called.
func NewClient(info Info, transport Transport, options ...ClientOption) *Client {
	c := &Client{
		logger:       slog.Default(),
		capabilities: ClientCapabilities{Tools: &ToolsCapability{}},
	}
	for _, opt := range options {
		opt(c)
	}

	if c.initializeTimeout == 0 {
		c.initializeTimeout = defaultInitializeTimeout
	}
	if c.callTimeout == 0 {
		c.callTimeout = defaultCallTimeout
	}

	c.sess = newSession(info, transport, c.logger)
	c.sess.capabilities = c.capabilities
	c.sess.initializeTimeout = c.initializeTimeout
	c.sess.callTimeout = c.callTimeout

	return c
}

// Connect establishes the session: it spawns the server process, performs the
// initialize handshake, and sends the initialized notification. It must
// complete before ListTools or CallTool are legal. On failure the session is
// terminal and the client cannot be reused.
func (c *Client) Connect(ctx context.Context) error {
	return c.sess.connect(ctx)
}

// State reports the session's current lifecycle phase.
func (c *Client) State() State {
	return c.sess.currentState()
}

// ServerInfo returns the identity the server announced during the handshake.
func (c *Client) ServerInfo() Info {
	c.sess.mu.Lock()
	defer c.sess.mu.Unlock()
	return c.sess.serverInfo
}

// ListTools retrieves the server's tool descriptors in the order the server
// returned them. A result without a tools field yields an empty slice; "no
// tools" is a valid outcome, distinct from a transport failure.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	if err := c.sess.checkReady(); err != nil {
		return nil, err
	}

	res, err := c.sess.roundTrip(ctx, MethodToolsList, struct{}{}, c.timeoutFor(ctx))
	if err != nil {
		return nil, err
	}
	if res.Error != nil {
		return nil, fmt.Errorf("tools/list failed: %w", res.Error)
	}

	var result ListToolsResult
	if err := json.Unmarshal(res.Result, &result); err != nil {
		return nil, fmt.Errorf("%w: invalid tools/list result: %v", ErrMalformedMessage, err)
	}
	if result.Tools == nil {
		return []Tool{}, nil
	}
	return result.Tools, nil
}

// CallTool invokes the named tool and returns its opaque result value. The
// name must be non-empty; that is validated locally before any I/O. A remote
// error object is surfaced as *ToolCallError with the server's code and
// message. Any number of calls may be outstanding concurrently and responses
// may resolve in any order.
func (c *Client) CallTool(ctx context.Context, name string, arguments any) (json.RawMessage, error) {
	if name == "" {
		return nil, errors.New("tool name must not be empty")
	}
	if err := c.sess.checkReady(); err != nil {
		return nil, err
	}

	var argsBs json.RawMessage
	if arguments != nil {
		bs, err := json.Marshal(arguments)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal arguments: %w", err)
		}
		argsBs = bs
	}

	res, err := c.sess.roundTrip(ctx, MethodToolsCall, CallToolParams{
		Name:      name,
		Arguments: argsBs,
	}, c.timeoutFor(ctx))
	if err != nil {
		return nil, err
	}
	if res.Error != nil {
		return nil, &ToolCallError{Code: res.Error.Code, Message: res.Error.Message}
	}
	return res.Result, nil
}

// Close tears the session down from any state: every outstanding waiter is
// resolved with ErrSessionClosed, then the server process is released.
// Calling Close twice is a no-op.
func (c *Client) Close() error {
	return c.sess.close()
}

// timeoutFor picks the per-call budget: a caller-supplied context deadline
// wins when it is earlier than the client default.
func (c *Client) timeoutFor(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < c.callTimeout {
			return d
		}
	}
	return c.callTimeout
}
