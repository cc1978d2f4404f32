package vm

import (
	"context"
	"sync"

	"github.com/chazu/c2script/pkg/value"
)

// Continuation resumes a process parked by Call.Wait. It may be used from
// any goroutine; the outcome is applied the next time the owning list runs.
// Only the first Resolve or Reject counts, and only while the process is
// still in the Waiting episode the continuation was created for.
type Continuation struct {
	list   *ProcessList
	pid    uint32
	ticket uint64
	once   sync.Once
}

// ProcessID returns the id of the waiting process.
func (c *Continuation) ProcessID() uint32 { return c.pid }

// Resolve continues the process. If the waiting call wanted a result, v is
// pushed as that result.
func (c *Continuation) Resolve(v value.Value) {
	c.once.Do(func() {
		c.list.mailbox.post(message{pid: c.pid, ticket: c.ticket, value: v})
	})
}

// Reject continues the process with an error carrying msg, which a catch
// handler in the process can intercept.
func (c *Continuation) Reject(msg string) {
	c.once.Do(func() {
		c.list.mailbox.post(message{pid: c.pid, ticket: c.ticket, failed: true, reason: msg})
	})
}

type message struct {
	pid    uint32
	ticket uint64
	value  value.Value
	failed bool
	reason string
}

// mailbox queues continuation outcomes from other goroutines.
type mailbox struct {
	mu      sync.Mutex
	pending []message
	notify  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) post(msg message) {
	m.mu.Lock()
	m.pending = append(m.pending, msg)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) take() []message {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.pending
	m.pending = nil
	return msgs
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// wait blocks until a message has been posted since the last wait or ctx
// ends.
func (m *mailbox) wait(ctx context.Context) error {
	if m.len() > 0 {
		return nil
	}
	select {
	case <-m.notify:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
