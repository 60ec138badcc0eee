package web

import "sync/atomic"

// Console holds operator requests until the run machine consumes them.
// It satisfies run.Remote.
type Console struct {
	start atomic.Bool
	goReq atomic.Bool
}

// NewConsole creates a console with no pending requests.
func NewConsole() *Console {
	return &Console{}
}

// RequestStart queues a start-button press.
func (c *Console) RequestStart() { c.start.Store(true) }

// RequestGo queues the go signal for a robot waiting on the start line.
func (c *Console) RequestGo() { c.goReq.Store(true) }

// TakeStart consumes a pending start request.
func (c *Console) TakeStart() bool { return c.start.Swap(false) }

// TakeGo consumes a pending go request.
func (c *Console) TakeGo() bool { return c.goReq.Swap(false) }
