package testutil

import (
	"sync"

	"github.com/mcoot/geoduel/internal/model"
)

// FakeConn records every message sent to it.
// It implements model.Conn and is safe for concurrent use.
type FakeConn struct {
	mu       sync.Mutex
	messages []any
	closed   bool
}

// NewFakeConn creates an open connection with no messages
func NewFakeConn() *FakeConn {
	return &FakeConn{}
}

var _ model.Conn = (*FakeConn)(nil)

func (c *FakeConn) Send(msg any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

func (c *FakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Closed reports whether Close has been called
func (c *FakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Messages returns a copy of everything sent so far
func (c *FakeConn) Messages() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.messages))
	copy(out, c.messages)
	return out
}

// Reset forgets recorded messages
func (c *FakeConn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}

// MessagesOf returns the recorded messages of type T in send order
func MessagesOf[T any](c *FakeConn) []T {
	var out []T
	for _, msg := range c.Messages() {
		if m, ok := msg.(T); ok {
			out = append(out, m)
		}
	}
	return out
}

// LastOf returns the most recent message of type T
func LastOf[T any](c *FakeConn) (T, bool) {
	msgs := MessagesOf[T](c)
	if len(msgs) == 0 {
		var zero T
		return zero, false
	}
	return msgs[len(msgs)-1], true
}

// Toasts returns the keys of every toast sent, in order
func Toasts(c *FakeConn) []string {
	var keys []string
	for _, t := range MessagesOf[model.ToastMessage](c) {
		keys = append(keys, t.Key)
	}
	return keys
}
