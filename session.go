package docsmcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle phase of a session. Transitions are monotonic toward
// a terminal state: Unstarted -> Initializing -> Ready, with Closed and Failed
// terminal and reachable from any non-terminal state. No state is re-entered.
type State int

const (
	// StateUnstarted is the phase before Connect is called.
	StateUnstarted State = iota
	// StateInitializing covers process spawn and the initialize handshake.
	StateInitializing
	// StateReady accepts tool operations.
	StateReady
	// StateClosed is terminal, entered by Close.
	StateClosed
	// StateFailed is terminal, entered on handshake failure or process death.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) terminal() bool {
	return s == StateClosed || s == StateFailed
}

// session sequences the handshake, gates operations on readiness, and owns
// the single reader loop dispatching responses to the correlator.
type session struct {
	id        string
	logger    *slog.Logger
	transport Transport
	corr      *correlator

	info         Info
	capabilities ClientCapabilities

	initializeTimeout time.Duration
	callTimeout       time.Duration

	mu         sync.Mutex
	state      State
	serverInfo Info
	serverCaps ServerCapabilities

	readerDone chan struct{}
}

func newSession(info Info, transport Transport, logger *slog.Logger) *session {
	id := uuid.New().String()
	return &session{
		id:         id,
		logger:     logger.With("session", id),
		transport:  transport,
		corr:       newCorrelator(logger.With("session", id)),
		info:       info,
		readerDone: make(chan struct{}),
	}
}

// connect drives Unstarted -> Initializing -> Ready: it starts the transport
// (spawning the server process), launches the reader loop, performs the
// initialize round trip, and announces readiness with the initialized
// notification. Any failure along the way moves the session to Failed with
// the cause, and every pending call is resolved.
func (s *session) connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUnstarted {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot connect session in state %s", state)
	}
	s.state = StateInitializing
	s.mu.Unlock()

	msgs, err := s.transport.Start(ctx)
	if err != nil {
		err = fmt.Errorf("failed to start session: %w", err)
		s.fail(err)
		return err
	}

	go s.readLoop(msgs)

	if err := s.initialize(ctx); err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	// The reader loop may have already moved the session to Failed.
	if s.state != StateInitializing {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("session ended during handshake, state %s", state)
	}
	s.state = StateReady
	s.mu.Unlock()

	s.logger.Info("session ready",
		"server", s.serverInfo.Name, "serverVersion", s.serverInfo.Version)
	return nil
}

func (s *session) initialize(ctx context.Context) error {
	res, err := s.roundTrip(ctx, methodInitialize, initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    s.capabilities,
		ClientInfo:      s.info,
	}, s.initializeTimeout)
	if err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}
	if res.Error != nil {
		return fmt.Errorf("initialize failed: %w", res.Error)
	}

	var result initializeResult
	if err := json.Unmarshal(res.Result, &result); err != nil {
		return fmt.Errorf("initialize failed: %w: invalid result: %v", ErrMalformedMessage, err)
	}
	if result.ProtocolVersion != "" && result.ProtocolVersion != protocolVersion {
		s.logger.Warn("server announced a different protocol revision",
			"server", result.ProtocolVersion, "client", protocolVersion)
	}

	s.mu.Lock()
	s.serverInfo = result.ServerInfo
	s.serverCaps = result.Capabilities
	s.mu.Unlock()

	return s.notify(ctx, methodNotificationsInitialized, nil)
}

// currentState returns the state under the session lock.
func (s *session) currentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// checkReady gates non-handshake operations.
func (s *session) checkReady() error {
	switch s.currentState() {
	case StateReady:
		return nil
	case StateClosed, StateFailed:
		return ErrSessionClosed
	default:
		return ErrSessionNotReady
	}
}

// roundTrip allocates a fresh id, registers a waiter, writes the request, and
// suspends until the matching response, the timeout, or session teardown.
// A send failure evicts the waiter so a late response finds no entry.
func (s *session) roundTrip(ctx context.Context, method string, params any, timeout time.Duration) (Message, error) {
	paramsBs, err := json.Marshal(params)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal params: %w", err)
	}

	id := s.corr.nextID()
	call := s.corr.register(id)

	msg := Message{
		JSONRPC: JSONRPCVersion,
		ID:      &id,
		Method:  method,
		Params:  paramsBs,
	}
	if err := s.transport.Send(ctx, msg); err != nil {
		s.corr.evict(id)
		return Message{}, err
	}

	return s.corr.await(ctx, call, timeout)
}

func (s *session) notify(ctx context.Context, method string, params any) error {
	var paramsBs json.RawMessage
	if params != nil {
		bs, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to marshal params: %w", err)
		}
		paramsBs = bs
	}

	return s.transport.Send(ctx, Message{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  paramsBs,
	})
}

// readLoop is the single reader for this session. It dispatches responses to
// the correlator, answers server pings, and logs everything else. When the
// stream ends it resolves the session: Closed stays Closed, anything else
// becomes Failed and all pending calls are resolved with the cause.
func (s *session) readLoop(msgs <-chan Message) {
	defer close(s.readerDone)

	for msg := range msgs {
		switch msg.Kind() {
		case KindResponse:
			s.corr.resolve(*msg.ID, msg)
		case KindRequest:
			if msg.Method == methodPing {
				go s.answerPing(*msg.ID)
				continue
			}
			s.logger.Warn("protocol violation: unsupported server request", "method", msg.Method)
			go s.answerMethodNotFound(*msg.ID, msg.Method)
		case KindNotification:
			s.logger.Debug("ignoring server notification", "method", msg.Method)
		}
	}

	s.transportLost()
}

func (s *session) answerPing(id int64) {
	ctx, cancel := context.WithTimeout(context.Background(), s.callTimeout)
	defer cancel()

	err := s.transport.Send(ctx, Message{
		JSONRPC: JSONRPCVersion,
		ID:      &id,
		Result:  json.RawMessage("{}"),
	})
	if err != nil {
		s.logger.Error("failed to answer ping", "err", err)
	}
}

func (s *session) answerMethodNotFound(id int64, method string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.callTimeout)
	defer cancel()

	err := s.transport.Send(ctx, Message{
		JSONRPC: JSONRPCVersion,
		ID:      &id,
		Error: &JSONRPCError{
			Code:    jsonRPCMethodNotFoundCode,
			Message: fmt.Sprintf("method not supported: %s", method),
		},
	})
	if err != nil {
		s.logger.Error("failed to send error response", "err", err)
	}
}

// transportLost handles the message stream ending. After an explicit Close
// the pending calls were already resolved; any other cause moves the session
// to Failed and fails every outstanding waiter so none hangs indefinitely.
func (s *session) transportLost() {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return
	}
	s.state = StateFailed
	s.mu.Unlock()

	cause := s.transport.Err()
	if cause == nil {
		cause = fmt.Errorf("%w: server process exited", ErrSessionClosed)
	} else {
		cause = fmt.Errorf("%w: %v", ErrSessionClosed, cause)
	}

	s.logger.Warn("session failed", "cause", cause)
	s.corr.failAll(cause)
}

// fail moves a non-terminal session to Failed and resolves all pending calls.
func (s *session) fail(cause error) {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return
	}
	s.state = StateFailed
	s.mu.Unlock()

	s.corr.failAll(fmt.Errorf("%w: %v", ErrSessionClosed, cause))
	_ = s.transport.Close()
}

// close transitions to Closed from any state, fails every outstanding waiter
// with ErrSessionClosed, then releases the transport. Idempotent.
func (s *session) close() error {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return nil
	}
	started := s.state != StateUnstarted
	s.state = StateClosed
	s.mu.Unlock()

	s.corr.failAll(ErrSessionClosed)
	err := s.transport.Close()

	if started {
		// Wait for the reader loop so no dispatch runs after close returns.
		<-s.readerDone
	}
	return err
}
