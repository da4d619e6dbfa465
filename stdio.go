package docsmcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// StdIO implements the Transport interface over a pair of byte streams
// speaking newline-delimited JSON-RPC. In the usual configuration it spawns
// the configured server process on Start and owns its pipes; NewStdIO wires
// it to an arbitrary reader/writer pair instead, which is how tests drive it.
//
// Writes are serialized by a mutex so concurrent senders never interleave
// partial messages. Malformed inbound lines are logged and skipped; the read
// loop only stops on end of stream or an I/O failure.
type StdIO struct {
	logger *slog.Logger

	cfg  *ServerConfig
	proc *process

	reader io.Reader
	writer io.Writer

	writeMu sync.Mutex
	msgs    chan Message
	done    chan struct{}

	closeOnce sync.Once

	mu      sync.Mutex
	readErr error
}

// StdIOOption configures a StdIO transport.
type StdIOOption func(*StdIO)

// WithStdIOLogger sets the logger used for transport-level events.
func WithStdIOLogger(logger *slog.Logger) StdIOOption {
	return func(s *StdIO) {
		s.logger = logger
	}
}

// NewStdIO creates a transport over an existing reader/writer pair. The
// caller keeps responsibility for the streams' lifetime beyond Close, which
// closes them only if they implement io.Closer.
func NewStdIO(reader io.Reader, writer io.Writer, options ...StdIOOption) *StdIO {
	s := &StdIO{
		logger: slog.Default(),
		reader: reader,
		writer: writer,
		msgs:   make(chan Message),
		done:   make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// NewStdIOProcess creates a transport that spawns the configured server
// process when the session starts and owns its stdin/stdout/stderr pipes.
func NewStdIOProcess(cfg ServerConfig, options ...StdIOOption) *StdIO {
	s := NewStdIO(nil, nil, options...)
	s.cfg = &cfg
	return s
}

// Start spawns the server process if this transport is process-backed, then
// begins the read loop. It fails with ErrProcessSpawn if the executable
// cannot be started.
func (s *StdIO) Start(ctx context.Context) (<-chan Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.cfg != nil {
		p, err := launchServer(*s.cfg)
		if err != nil {
			return nil, err
		}
		s.proc = p
		s.reader = p.stdout
		s.writer = p.stdin
		go s.drainStderr(p.stderr)
	}

	go s.readLines()
	return s.msgs, nil
}

// Send encodes and writes one message. Exclusive access to the write side is
// held for the duration of the write so concurrent messages never interleave.
func (s *StdIO) Send(ctx context.Context, msg Message) error {
	bs, err := Encode(msg)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return fmt.Errorf("%w: transport closed", ErrSessionClosed)
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.writer.Write(bs); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Err returns the I/O failure that terminated the read loop, or nil when the
// stream ended cleanly.
func (s *StdIO) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readErr
}

// Close tears the transport down. For a process-backed transport this closes
// stdin first, waits the bounded grace period, then force-terminates the
// process. Close is idempotent.
func (s *StdIO) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)

		if s.proc != nil {
			s.proc.close()
			return
		}
		if rc, ok := s.reader.(io.Closer); ok {
			_ = rc.Close()
		}
		if wc, ok := s.writer.(io.Closer); ok {
			_ = wc.Close()
		}
	})
	return nil
}

func (s *StdIO) readLines() {
	defer close(s.msgs)

	dec := NewDecoder(s.reader)
	for {
		msg, err := dec.Next()
		if err != nil {
			if errors.Is(err, ErrMalformedMessage) {
				s.logger.Warn("dropping malformed line", "err", err)
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				s.setReadErr(err)
				s.logger.Error("failed to read message", "err", err)
			}
			return
		}

		select {
		case <-s.done:
			return
		case s.msgs <- msg:
		}
	}
}

// drainStderr forwards the child's stderr to the logger line by line, so the
// child never blocks on a full pipe.
func (s *StdIO) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		s.logger.Debug("server stderr", "line", scanner.Text())
	}
}

func (s *StdIO) setReadErr(err error) {
	s.mu.Lock()
	s.readErr = err
	s.mu.Unlock()
}
