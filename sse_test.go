package docsmcp_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pptxagent/docsmcp"
)

// sseTestServer is an HTTP peer for the SSE transport: the event stream
// announces a message endpoint and every POSTed request is answered through
// the stream by the handler.
type sseTestServer struct {
	server  *httptest.Server
	events  chan string
	handler stubHandler
}

func newSSETestServer(t *testing.T, handler stubHandler) *sseTestServer {
	t.Helper()

	s := &sseTestServer{
		events:  make(chan string, 16),
		handler: handler,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/sse", s.serveStream)
	mux.HandleFunc("/message", s.serveMessage)
	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)

	return s
}

func (s *sseTestServer) serveStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: endpoint\ndata: /message\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-s.events:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *sseTestServer) serveMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := docsmcp.DecodeLine(string(body))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	for _, res := range s.handler(msg) {
		bs, err := docsmcp.Encode(res)
		if err != nil {
			continue
		}
		// Events are single-line: Encode's trailing newline must not reach the
		// data field.
		s.events <- string(bs[:len(bs)-1])
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *sseTestServer) connectURL() string {
	return s.server.URL + "/sse"
}

func TestSSEClientFullSession(t *testing.T) {
	handler := func(msg docsmcp.Message) []docsmcp.Message {
		switch msg.Method {
		case "initialize":
			return initOK(msg)
		case docsmcp.MethodToolsList:
			return []docsmcp.Message{okResponse(msg.ID,
				`{"tools":[{"name":"search_documentation"},{"name":"read_documentation"}]}`)}
		}
		return nil
	}
	server := newSSETestServer(t, handler)

	transport := docsmcp.NewSSEClient(server.connectURL())
	client := docsmcp.NewClient(docsmcp.Info{Name: "test-client", Version: "0.0.1"}, transport)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	require.NoError(t, client.Connect(ctx))
	assert.Equal(t, docsmcp.StateReady, client.State())

	tools, err := client.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "search_documentation", tools[0].Name)
}

func TestSSEClientSendBeforeStart(t *testing.T) {
	transport := docsmcp.NewSSEClient("http://127.0.0.1:0/sse")

	id := int64(1)
	err := transport.Send(context.Background(), docsmcp.Message{ID: &id, Method: "ping"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not started")
}

func TestSSEClientStreamWithoutEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		// Stream ends without ever announcing an endpoint.
	}))
	t.Cleanup(server.Close)

	transport := docsmcp.NewSSEClient(server.URL)
	_, err := transport.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint")
}

func TestSSEClientRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	transport := docsmcp.NewSSEClient(server.URL)
	_, err := transport.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestSSEClientCloseEndsStream(t *testing.T) {
	server := newSSETestServer(t, func(docsmcp.Message) []docsmcp.Message { return nil })

	transport := docsmcp.NewSSEClient(server.connectURL())
	msgs, err := transport.Start(context.Background())
	require.NoError(t, err)

	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())

	select {
	case _, ok := <-msgs:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("message channel not closed after Close")
	}
}
