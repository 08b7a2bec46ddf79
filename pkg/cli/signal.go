package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Signals cancels its context on the first SIGINT or SIGTERM so the runner
// can abort the remaining cases and still save the report. A second signal
// exits the process immediately.
type Signals struct {
	ctx    context.Context
	cancel context.CancelFunc
	ch     chan os.Signal
	done   chan struct{}
	exit   func(int)
}

// NewSignals starts listening. Call Stop when the run is over.
func NewSignals(parent context.Context, w io.Writer) *Signals {
	ctx, cancel := context.WithCancel(parent)
	s := &Signals{
		ctx:    ctx,
		cancel: cancel,
		ch:     make(chan os.Signal, 2),
		done:   make(chan struct{}),
		exit:   os.Exit,
	}
	signal.Notify(s.ch, os.Interrupt, syscall.SIGTERM)
	go s.watch(w)
	return s
}

func (s *Signals) watch(w io.Writer) {
	select {
	case sig := <-s.ch:
		fmt.Fprintf(w, "\n%v: aborting remaining cases, repeat to exit now\n", sig)
		s.cancel()
	case <-s.done:
		return
	}
	select {
	case <-s.ch:
		s.exit(130)
	case <-s.done:
	}
}

// Context returns the context cancelled by the first signal.
func (s *Signals) Context() context.Context {
	return s.ctx
}

// Stop releases the signal handler.
func (s *Signals) Stop() {
	signal.Stop(s.ch)
	close(s.done)
	s.cancel()
}

// CheckRace waits briefly for a cancellation that may trail an input error.
// Some terminals deliver EOF on stdin slightly before the interrupt itself.
func (s *Signals) CheckRace() {
	if s.ctx.Err() != nil {
		return
	}
	select {
	case <-s.ctx.Done():
	case <-time.After(100 * time.Millisecond):
	}
}
