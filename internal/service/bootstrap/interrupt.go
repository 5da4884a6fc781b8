package bootstrap

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/python313again/s2l-loader/internal/service/common"
)

// InterruptMessage is printed once when the operator interrupts the run.
const InterruptMessage = "\nOperation interrupted by user. Exiting..."

// Warner prints the interrupt message.
type Warner interface {
	Warn(format string, args ...any)
}

// Guard turns SIGINT and SIGTERM into a single message and exit status 1.
// Blocking reads such as prompts do not observe the context, so the guard
// exits the process itself.
type Guard struct {
	out    Warner
	exit   func(code int)
	notify func(c chan<- os.Signal, sig ...os.Signal)
	stop   func(c chan<- os.Signal)
	once   sync.Once
	cancel context.CancelCauseFunc
}

// NewGuard returns a Guard printing through out and ending with exit.
// A nil exit means os.Exit.
func NewGuard(out Warner, exit func(code int)) *Guard {
	if exit == nil {
		exit = os.Exit
	}

	return &Guard{
		out:    out,
		exit:   exit,
		notify: signal.Notify,
		stop:   signal.Stop,
	}
}

// Watch returns a context canceled on interrupt and a function releasing the
// signal handler. After an interrupt context.Cause reports
// common.ErrOperatorCancellation.
func (g *Guard) Watch(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	g.cancel = cancel

	signals := make(chan os.Signal, 1)
	g.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	go func() {
		select {
		case <-signals:
			g.Interrupt()
		case <-done:
		}
	}()

	var releaseOnce sync.Once

	return ctx, func() {
		releaseOnce.Do(func() {
			g.stop(signals)
			close(done)
			cancel(nil)
		})
	}
}

// Interrupt prints the message, exits with status 1 and cancels the watched
// context. Only the first call has any effect.
func (g *Guard) Interrupt() {
	g.once.Do(func() {
		g.out.Warn(InterruptMessage)
		g.exit(1)

		if g.cancel != nil {
			g.cancel(common.ErrOperatorCancellation)
		}
	})
}
