package docsmcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/tmaxmax/go-sse"
)

// SSEClient implements the Transport interface for servers reachable over
// HTTP instead of a local pipe: server-to-client messages stream in as
// Server-Sent Events, client-to-server messages go out as HTTP POSTs to the
// endpoint the server announces in its first event. Instances should be
// created with NewSSEClient.
type SSEClient struct {
	httpClient *http.Client
	connectURL string
	logger     *slog.Logger

	maxPayloadSize int

	msgs chan Message
	done chan struct{}

	closeOnce sync.Once

	mu         sync.Mutex
	messageURL string
	body       io.ReadCloser
	readErr    error
}

// SSEClientOption represents the options for the SSEClient.
type SSEClientOption func(*SSEClient)

// WithHTTPClient sets the HTTP client used for both the event stream and the
// message POSTs.
func WithHTTPClient(httpClient *http.Client) SSEClientOption {
	return func(c *SSEClient) {
		c.httpClient = httpClient
	}
}

// WithSSELogger sets the logger used for transport-level events.
func WithSSELogger(logger *slog.Logger) SSEClientOption {
	return func(c *SSEClient) {
		c.logger = logger
	}
}

// WithMaxPayloadSize limits the size of a single inbound event.
func WithMaxPayloadSize(size int) SSEClientOption {
	return func(c *SSEClient) {
		c.maxPayloadSize = size
	}
}

// NewSSEClient creates a transport connecting to the given SSE endpoint.
func NewSSEClient(connectURL string, options ...SSEClientOption) *SSEClient {
	c := &SSEClient{
		httpClient: http.DefaultClient,
		connectURL: connectURL,
		logger:     slog.Default(),
		msgs:       make(chan Message),
		done:       make(chan struct{}),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Start opens the event stream and waits for the server to announce its
// message endpoint before returning the inbound message channel.
func (c *SSEClient) Start(ctx context.Context) (<-chan Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.connectURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SSE server: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	c.mu.Lock()
	c.body = resp.Body
	c.mu.Unlock()

	ready := make(chan error, 1)
	go c.readEvents(resp.Body, ready)

	select {
	case <-ctx.Done():
		c.Close()
		return nil, ctx.Err()
	case err := <-ready:
		if err != nil {
			c.Close()
			return nil, err
		}
	}

	return c.msgs, nil
}

// Send transmits a JSON-encoded message to the server through an HTTP POST to
// the announced endpoint.
func (c *SSEClient) Send(ctx context.Context, msg Message) error {
	c.mu.Lock()
	messageURL := c.messageURL
	c.mu.Unlock()
	if messageURL == "" {
		return errors.New("no message endpoint: transport not started")
	}

	bs, err := Encode(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, messageURL, bytes.NewReader(bs))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

// Err returns the error that terminated the event stream, if any.
func (c *SSEClient) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

// Close terminates the event stream. Idempotent.
func (c *SSEClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		body := c.body
		c.mu.Unlock()
		if body != nil {
			_ = body.Close()
		}
	})
	return nil
}

func (c *SSEClient) readEvents(body io.ReadCloser, ready chan<- error) {
	defer close(c.msgs)

	var config *sse.ReadConfig
	if c.maxPayloadSize > 0 {
		config = &sse.ReadConfig{MaxEventSize: c.maxPayloadSize}
	}

	endpointSeen := false
	for ev, err := range sse.Read(body, config) {
		if err != nil {
			select {
			case <-c.done:
			default:
				c.setReadErr(err)
				c.logger.Error("failed to read SSE message", "err", err)
			}
			if !endpointSeen {
				ready <- fmt.Errorf("stream ended before endpoint event: %w", err)
			}
			return
		}

		switch ev.Type {
		case "endpoint":
			// The endpoint URL must be validated before any message is routed
			// through it. Relative paths are resolved against the connect URL.
			messageURL, err := c.resolveEndpoint(ev.Data)
			if err != nil {
				c.logger.Error("invalid endpoint event", "err", err)
				if !endpointSeen {
					ready <- fmt.Errorf("parse endpoint URL: %w", err)
					return
				}
				continue
			}
			c.mu.Lock()
			c.messageURL = messageURL
			c.mu.Unlock()
			if !endpointSeen {
				endpointSeen = true
				ready <- nil
			}
		case "message":
			if !endpointSeen {
				c.logger.Warn("protocol violation: message before endpoint event")
				continue
			}

			msg, err := DecodeLine(ev.Data)
			if err != nil {
				c.logger.Warn("dropping malformed event", "err", err)
				continue
			}

			select {
			case <-c.done:
				return
			case c.msgs <- msg:
			}
		default:
			c.logger.Warn("unhandled event type", "type", ev.Type)
		}
	}

	if !endpointSeen {
		ready <- errors.New("stream ended before endpoint event")
	}
}

// resolveEndpoint turns an announced endpoint, absolute or relative, into the
// URL messages are posted to.
func (c *SSEClient) resolveEndpoint(endpoint string) (string, error) {
	if endpoint == "" {
		return "", errors.New("empty endpoint URL")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	base, err := url.Parse(c.connectURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

func (c *SSEClient) setReadErr(err error) {
	c.mu.Lock()
	c.readErr = err
	c.mu.Unlock()
}
