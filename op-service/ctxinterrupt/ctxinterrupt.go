// Package ctxinterrupt ties context cancellation to process interrupt signals.
package ctxinterrupt

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// DefaultInterruptSignals is the set of signals that end a command.
var DefaultInterruptSignals = []os.Signal{
	os.Interrupt,
	syscall.SIGTERM,
	syscall.SIGQUIT,
}

type waiterKey struct{}

// waiter closes its channel on the first received interrupt signal.
type waiter struct {
	interrupted chan struct{}
}

func newSignalWaiter(signals ...os.Signal) *waiter {
	w := &waiter{interrupted: make(chan struct{})}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)
	go func() {
		<-ch
		signal.Stop(ch)
		close(w.interrupted)
	}()
	return w
}

// WithSignalWaiterMain attaches a process-wide signal waiter to ctx.
// It is meant to be called once, from main.
func WithSignalWaiterMain(ctx context.Context) context.Context {
	return context.WithValue(ctx, waiterKey{}, newSignalWaiter(DefaultInterruptSignals...))
}

// WithCancelOnInterrupt returns a context that is cancelled once an interrupt is received
// by the waiter attached to ctx. Without an attached waiter a new one is installed.
func WithCancelOnInterrupt(ctx context.Context) context.Context {
	w, ok := ctx.Value(waiterKey{}).(*waiter)
	if !ok {
		w = newSignalWaiter(DefaultInterruptSignals...)
	}
	return withWaiter(ctx, w)
}

func withWaiter(ctx context.Context, w *waiter) context.Context {
	ctx, cancel := context.WithCancelCause(ctx)
	go func() {
		select {
		case <-w.interrupted:
			cancel(ErrInterrupted)
		case <-ctx.Done():
		}
	}()
	return ctx
}

// Wait blocks until an interrupt is received or ctx is done.
func Wait(ctx context.Context) error {
	w, ok := ctx.Value(waiterKey{}).(*waiter)
	if !ok {
		<-ctx.Done()
		return ctx.Err()
	}
	select {
	case <-w.interrupted:
		return ErrInterrupted
	case <-ctx.Done():
		return ctx.Err()
	}
}
