package docsmcp

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// callResult is what a waiter receives: the matching response, or the
// terminal error that resolved the pending call instead.
type callResult struct {
	msg Message
	err error
}

// pendingCall tracks one outstanding request until its response arrives, its
// deadline elapses, or the session closes. The channel is buffered so the
// reader loop never blocks on delivery.
type pendingCall struct {
	id int64
	ch chan callResult
}

// correlator allocates monotonic request ids and matches incoming responses
// to outstanding callers. The id counter and pending map are its only shared
// state, both guarded by a single mutex.
type correlator struct {
	logger *slog.Logger

	mu      sync.Mutex
	lastID  int64
	pending map[int64]pendingCall
}

func newCorrelator(logger *slog.Logger) *correlator {
	return &correlator{
		logger:  logger,
		pending: make(map[int64]pendingCall),
	}
}

// nextID returns a strictly increasing integer, safe under concurrent callers.
// Ids are never reused for the lifetime of one session.
func (c *correlator) nextID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastID++
	return c.lastID
}

// register creates a pending entry for the given id.
func (c *correlator) register(id int64) pendingCall {
	call := pendingCall{
		id: id,
		ch: make(chan callResult, 1),
	}

	c.mu.Lock()
	c.pending[id] = call
	c.mu.Unlock()

	return call
}

// await suspends the caller until the matching response is delivered, the
// timeout elapses, or the context is done. Expiry removes the pending entry
// and returns ErrRequestTimeout to this caller only.
func (c *correlator) await(ctx context.Context, call pendingCall, timeout time.Duration) (Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-call.ch:
		if res.err != nil {
			return Message{}, res.err
		}
		return res.msg, nil
	case <-timer.C:
		c.evict(call.id)
		return Message{}, ErrRequestTimeout
	case <-ctx.Done():
		c.evict(call.id)
		if ctx.Err() == context.DeadlineExceeded {
			return Message{}, ErrRequestTimeout
		}
		return Message{}, ctx.Err()
	}
}

// resolve delivers a response to the pending entry for its id and removes the
// entry. A response with no pending entry (already resolved, timed out, or
// never issued) is logged as a protocol violation and dropped; it must never
// crash the reader loop.
func (c *correlator) resolve(id int64, msg Message) {
	c.mu.Lock()
	call, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Warn("protocol violation: response with no pending request", "id", id)
		return
	}
	call.ch <- callResult{msg: msg}
}

// evict removes a pending entry without resolving it. Used on timeout and on
// send failure so a late response finds no waiter.
func (c *correlator) evict(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// failAll resolves every currently pending entry with the given terminal
// error. Used on process death and on explicit close.
func (c *correlator) failAll(err error) {
	c.mu.Lock()
	calls := make([]pendingCall, 0, len(c.pending))
	for id, call := range c.pending {
		calls = append(calls, call)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	for _, call := range calls {
		call.ch <- callResult{err: err}
	}
}
