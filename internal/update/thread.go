package update

import (
	"context"
	"fmt"
	"sync"
)

// Thread runs a Strategy on its own goroutine so the host is never
// blocked by network or disk work.
type Thread struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Start launches s and returns once it has signalled readiness (or
// exited early). Cancelling ctx has the same effect as Terminate.
func Start(ctx context.Context, name string, s Strategy) *Thread {
	ctx, cancel := context.WithCancel(ctx)
	t := &Thread{
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	ready := make(chan struct{})
	var readyOnce sync.Once
	signal := func() { readyOnce.Do(func() { close(ready) }) }

	go func() {
		defer close(t.done)
		defer signal()
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("%s: panic: %v", name, r)
				log.Errorw("update thread panicked", "thread", name, "panic", r)
			}
		}()
		log.Debugw("update thread started", "thread", name)
		t.err = s.Run(ctx, signal)
		log.Debugw("update thread finished", "thread", name, "error", t.err)
	}()

	<-ready
	return t
}

// Name returns the name given to Start.
func (t *Thread) Name() string {
	return t.name
}

// Terminate asks the strategy to stop. It does not wait; use Join.
func (t *Thread) Terminate() {
	t.cancel()
}

// Join waits for the strategy to return and reports its error.
func (t *Thread) Join() error {
	<-t.done
	return t.err
}

// Done is closed once the strategy has returned.
func (t *Thread) Done() <-chan struct{} {
	return t.done
}
