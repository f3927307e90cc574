package catalog

import (
	"log/slog"
	"sync/atomic"
)

// Progress is a status update from a running resolution.
type Progress struct {
	Message  string `json:"message"`
	Vehicle  int    `json:"vehicle,omitempty"`
	Vehicles int    `json:"vehicles,omitempty"`
	Engine   int    `json:"engine,omitempty"`
	Engines  int    `json:"engines,omitempty"`
}

// ProgressFunc receives progress updates on its own goroutine.
type ProgressFunc func(Progress)

const progressBuffer = 64

// notifier hands updates to a ProgressFunc without ever blocking the
// sender. Updates that arrive while the buffer is full are dropped.
type notifier struct {
	ch      chan Progress
	dropped atomic.Int64
}

// startNotifier returns nil when fn is nil; a nil notifier ignores updates.
func startNotifier(fn ProgressFunc, buffer int) *notifier {
	if fn == nil {
		return nil
	}
	n := &notifier{ch: make(chan Progress, buffer)}
	go func() {
		for p := range n.ch {
			fn(p)
		}
	}()
	return n
}

func (n *notifier) notify(p Progress) {
	if n == nil {
		return
	}
	select {
	case n.ch <- p:
	default:
		n.dropped.Add(1)
	}
}

// stop lets the delivery goroutine drain what is buffered and exit. It does
// not wait for the callback.
func (n *notifier) stop() int64 {
	if n == nil {
		return 0
	}
	close(n.ch)
	return n.dropped.Load()
}

func stopNotifier(n *notifier) {
	if dropped := n.stop(); dropped > 0 {
		slog.Debug("progress updates dropped", "count", dropped)
	}
}
