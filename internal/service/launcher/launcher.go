// Package launcher starts the application inside its conda environment.
package launcher

import (
	"context"
	"fmt"

	"github.com/python313again/s2l-loader/internal/logger"
	"github.com/python313again/s2l-loader/internal/process"
	"github.com/python313again/s2l-loader/internal/service/common"
)

// Reporter prints operator-facing status lines.
type Reporter interface {
	Success(format string, args ...any)
	Error(format string, args ...any)
}

// Launcher starts the entry point with an environment's interpreter.
type Launcher struct {
	runner process.Runner
	out    Reporter
}

// New returns a Launcher.
func New(runner process.Runner, out Reporter) *Launcher {
	return &Launcher{
		runner: runner,
		out:    out,
	}
}

// Target is what to launch.
type Target struct {
	// Python is the environment's interpreter.
	Python string
	// EntryPoint is the script, relative to Dir.
	EntryPoint string
	// Dir is the working copy.
	Dir string
}

// Launch starts the target detached and returns without waiting for it.
func (l *Launcher) Launch(ctx context.Context, target Target) (*process.Handle, error) {
	ctx = logger.WithKV(logger.WithName(ctx, "launcher"), "dir", target.Dir)

	l.out.Success("Installation and setup are complete. Launching the application...")

	handle, err := l.runner.Start(process.Command{
		Name: target.Python,
		Args: []string{target.EntryPoint},
		Dir:  target.Dir,
	})
	if handle == nil {
		if err == nil {
			err = process.ErrNoHandle
		}

		l.out.Error("Failed to launch the application.")

		return nil, fmt.Errorf("%w: launch %s: %w", common.ErrSetupFailed, target.EntryPoint, err)
	}

	if err != nil {
		logger.WarnKV(ctx, "Application process could not be released", "pid", handle.PID, "error", err)
	}

	logger.InfoKV(ctx, "Application started", "pid", handle.PID)

	return handle, nil
}
