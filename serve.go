package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Conn is the transport collaborator for Serve. Receive returns one
// deframed message per call and io.EOF once the peer has gone away. Send
// writes one response; Serve never calls Send concurrently.
type Conn interface {
	Receive(ctx context.Context) (json.RawMessage, error)
	Send(ctx context.Context, resp *Response) error
}

// ErrConnClosed is the cancellation cause of handler contexts whose
// connection went away before they finished.
var ErrConnClosed = errors.New("connection closed")

// cancelParams is the payload of the cancellation notification.
type cancelParams struct {
	RequestID ID     `json:"requestId"`
	Reason    string `json:"reason,omitempty"`
}

// session is the per-connection state of Serve.
type session struct {
	router *Router
	conn   Conn

	sendMu sync.Mutex

	mu       sync.Mutex
	inflight map[string]context.CancelCauseFunc
}

// Serve reads messages from conn until it fails or ctx is done, dispatching
// each on its own goroutine and sending every due response back through
// conn. Responses are sent in completion order, not arrival order.
//
// When the connection closes, handler contexts are cancelled with
// ErrConnClosed and responses still pending are dropped rather than sent.
// Serve returns nil when Receive reports io.EOF.
//
// Example:
//
//	go func() {
//	    if err := r.Serve(ctx, conn); err != nil {
//	        log.Printf("serve: %v", err)
//	    }
//	}()
func (r *Router) Serve(ctx context.Context, conn Conn) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(ErrConnClosed)

	s := &session{
		router:   r,
		conn:     conn,
		inflight: make(map[string]context.CancelCauseFunc),
	}

	var sem *semaphore.Weighted
	if r.maxInFlight > 0 {
		sem = semaphore.NewWeighted(r.maxInFlight)
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		raw, err := conn.Receive(ctx)
		if err != nil {
			cancel(ErrConnClosed)
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		in := s.accept(ctx, raw)

		if sem != nil {
			if err := sem.Acquire(ctx, 1); err != nil {
				in.done()
				return nil
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if sem != nil {
				defer sem.Release(1)
			}
			s.handle(ctx, in)
		}()
	}
}

// inbound is a received message prepared for dispatch.
type inbound struct {
	raw json.RawMessage
	msg message
	err error

	// reqCtx is the cancellable context of a request; done releases it.
	reqCtx context.Context
	done   func()
}

// accept classifies raw on the receive loop. Requests are tracked and
// cancellation notifications applied here, in arrival order, so a cancel
// always sees every request received before it.
func (s *session) accept(ctx context.Context, raw json.RawMessage) inbound {
	r := s.router
	in := inbound{raw: raw, reqCtx: ctx, done: func() {}}

	in.msg, in.err = parseMessage(r.inspector, raw)
	if in.err != nil {
		return in
	}

	switch in.msg.kind {
	case kindRequest:
		in.reqCtx, in.done = s.track(ctx, in.msg.id)
	case kindNotification:
		if r.cancelMethod != "" && in.msg.method == r.cancelMethod {
			s.cancel(in.msg.params)
		}
	}
	return in
}

// handle dispatches one accepted message and delivers its response, if any.
func (s *session) handle(ctx context.Context, in inbound) {
	defer in.done()
	r := s.router

	if in.err != nil {
		s.send(ctx, r.handleMalformed(ctx, in.raw, in.msg, in.err))
		return
	}

	switch in.msg.kind {
	case kindNotification:
		if r.cancelMethod != "" && in.msg.method == r.cancelMethod {
			if _, _, err := r.table.LookupNotification(in.msg.method); err != nil {
				return
			}
		}
		r.dispatchNotification(ctx, in.msg)

	case kindRequest:
		s.send(ctx, r.dispatchRequest(in.reqCtx, in.msg))
	}
}

// track registers a cancellable context for an in-flight request. A second
// request reusing an in-flight id is served but cannot be cancelled.
func (s *session) track(ctx context.Context, id ID) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	k := id.String()

	s.mu.Lock()
	_, dup := s.inflight[k]
	if !dup {
		s.inflight[k] = cancel
	}
	s.mu.Unlock()

	return ctx, func() {
		if !dup {
			s.mu.Lock()
			delete(s.inflight, k)
			s.mu.Unlock()
		}
		cancel(nil)
	}
}

// cancel handles a cancellation notification. Unknown ids are ignored; the
// request may already have completed.
func (s *session) cancel(raw json.RawMessage) {
	var p cancelParams
	if err := json.Unmarshal(raw, &p); err != nil || p.RequestID.IsZero() {
		return
	}

	s.mu.Lock()
	cancel, ok := s.inflight[p.RequestID.String()]
	s.mu.Unlock()
	if !ok {
		return
	}

	reason := p.Reason
	if reason == "" {
		reason = "cancelled by caller"
	}
	cancel(Errorf(CodeRequestCancelled, "request cancelled: %s", reason))
}

// send delivers resp unless the connection is already gone.
func (s *session) send(ctx context.Context, resp *Response) {
	if resp == nil {
		return
	}
	if ctx.Err() != nil {
		s.router.hooks.callOnDrop(ctx, resp, context.Cause(ctx))
		return
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.conn.Send(ctx, resp); err != nil {
		s.router.hooks.callOnDrop(ctx, resp, err)
	}
}
