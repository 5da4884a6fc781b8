package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/python313again/s2l-loader/internal/domain/workingcopy"
	"github.com/python313again/s2l-loader/internal/logger"
	"github.com/python313again/s2l-loader/internal/process"
	"github.com/python313again/s2l-loader/internal/service/common"
)

// UpToDateMarker is what git prints when a pull brings nothing new.
// The match is case-sensitive and trusted verbatim; localized or future git
// messages would be read as "updated".
const UpToDateMarker = "Already up to date"

// Reporter is the part of status.Printer the supervisor writes to.
type Reporter interface {
	Info(format string, args ...any)
	Success(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	Raw(text string)
}

// Supervisor runs the update step of one invocation.
type Supervisor struct {
	runner  process.Runner
	out     Reporter
	resolve func() (string, error)
	exit    func(code int)
	git     string
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithExecutableResolver replaces os.Executable.
func WithExecutableResolver(resolve func() (string, error)) Option {
	return func(s *Supervisor) {
		s.resolve = resolve
	}
}

// WithExit replaces os.Exit.
func WithExit(exit func(code int)) Option {
	return func(s *Supervisor) {
		s.exit = exit
	}
}

// WithGit overrides the git program name.
func WithGit(git string) Option {
	return func(s *Supervisor) {
		if git != "" {
			s.git = git
		}
	}
}

// New returns a Supervisor using runner for external commands and out for status lines.
func New(runner process.Runner, out Reporter, opts ...Option) *Supervisor {
	s := &Supervisor{
		runner:  runner,
		out:     out,
		resolve: os.Executable,
		exit:    os.Exit,
		git:     "git",
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CheckForUpdates synchronizes the working copy at path with its upstream,
// rebasing local history, and reports what happened. It never returns an
// error: absence and tool failures are outcomes.
func (s *Supervisor) CheckForUpdates(ctx context.Context, path string) workingcopy.Outcome {
	ctx = logger.WithKV(logger.WithName(ctx, "supervisor"), "path", path)

	if err := common.CheckPresent(path); err != nil {
		if errors.Is(err, common.ErrAbsentResource) {
			logger.DebugKV(ctx, "Working copy is absent", "reason", err)
			s.out.Warn("%s folder does not exist. Skipping self-update.", path)

			return workingcopy.NoCopyOutcome()
		}

		return s.failed(ctx, fmt.Errorf("%w: %w", common.ErrTransientToolFailure, err), "")
	}

	s.out.Info("Checking for updates in the %s folder...", path)

	cmd := process.Command{
		Name: s.git,
		Args: []string{"pull", "--rebase"},
		Dir:  path,
	}

	logger.DebugKV(ctx, "Synchronizing working copy", "command", cmd.String())

	res, err := s.runner.Run(ctx, cmd)
	if err != nil {
		return s.failed(ctx, fmt.Errorf("%w: %w", common.ErrTransientToolFailure, err), err.Error())
	}

	if !res.Succeeded() {
		detail := strings.TrimSpace(res.Stderr)
		reason := fmt.Errorf("%w: %s exited with status %d: %s",
			common.ErrTransientToolFailure, cmd, res.ExitCode, detail)

		return s.failed(ctx, reason, detail)
	}

	if strings.Contains(res.Stdout, UpToDateMarker) {
		logger.Info(ctx, "Working copy is already current")
		s.out.Success("No updates available in the %s repository.", path)

		return workingcopy.AlreadyCurrentOutcome()
	}

	logger.Info(ctx, "Working copy was updated")
	s.out.Success("Updates have been applied to the %s repository.", path)

	return workingcopy.UpdatedOutcome()
}

func (s *Supervisor) failed(ctx context.Context, reason error, detail string) workingcopy.Outcome {
	logger.WarnKV(ctx, "Update check failed", "error", reason)
	s.out.Error("Failed to check for updates. Error details:")
	s.out.Raw(detail)

	return workingcopy.FailedOutcome(reason)
}
