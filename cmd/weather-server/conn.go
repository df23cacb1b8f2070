package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/bjaus/jsonrpc"
)

const maxLineSize = 1 << 20

// lineConn frames messages as newline-delimited JSON. Lines are read on a
// separate goroutine so Receive can return as soon as its context ends.
type lineConn struct {
	lines   chan json.RawMessage
	readErr error // set before lines is closed
	closed  chan struct{}
	once    sync.Once

	mu sync.Mutex
	w  *bufio.Writer
}

func newLineConn(r io.Reader, w io.Writer) *lineConn {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	c := &lineConn{
		lines:  make(chan json.RawMessage),
		closed: make(chan struct{}),
		w:      bufio.NewWriter(w),
	}
	go c.read(s)
	return c
}

// read feeds non-empty lines to Receive until the input ends or the
// connection is closed.
func (c *lineConn) read(s *bufio.Scanner) {
	defer close(c.lines)
	for s.Scan() {
		line := s.Bytes()
		if len(line) == 0 {
			continue
		}
		select {
		case c.lines <- append(json.RawMessage(nil), line...):
		case <-c.closed:
			return
		}
	}
	if err := s.Err(); err != nil {
		c.readErr = fmt.Errorf("read message: %w", err)
	}
}

// Receive returns the next non-empty line, io.EOF once the input ends, or
// the context error once ctx is done.
func (c *lineConn) Receive(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			if c.readErr != nil {
				return nil, c.readErr
			}
			return nil, io.EOF
		}
		return line, nil
	}
}

func (c *lineConn) Send(_ context.Context, resp *jsonrpc.Response) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return c.w.Flush()
}

// Close stops the reader goroutine once it has a line to hand over. A read
// blocked on the underlying reader is left to end with the process.
func (c *lineConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}
