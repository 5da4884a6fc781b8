package supervisor

import (
	"context"
	"fmt"

	"github.com/python313again/s2l-loader/internal/domain/workingcopy"
	"github.com/python313again/s2l-loader/internal/logger"
	"github.com/python313again/s2l-loader/internal/process"
	"github.com/python313again/s2l-loader/internal/service/common"
)

// RelaunchRequest is what is needed to start an equivalent invocation.
type RelaunchRequest struct {
	// Executable is the resolved path of the running binary.
	Executable string
	// Args are the original arguments after the program name, in order.
	Args []string
}

// NewRelaunchRequest keeps argv[1:] and resolves the running executable.
func NewRelaunchRequest(argv []string, resolve func() (string, error)) (*RelaunchRequest, error) {
	executable, err := resolve()
	if err != nil {
		return nil, fmt.Errorf("%w: resolve executable: %w", common.ErrFatalHandoff, err)
	}

	if executable == "" {
		return nil, fmt.Errorf("%w: executable path is empty", common.ErrFatalHandoff)
	}

	var args []string
	if len(argv) > 1 {
		args = append(make([]string, 0, len(argv)-1), argv[1:]...)
	}

	return &RelaunchRequest{
		Executable: executable,
		Args:       args,
	}, nil
}

// Relaunch starts req detached and ends this process with exit code 0.
// It returns only on failure, with an error wrapping common.ErrFatalHandoff;
// with an injected exit function it also returns nil after "exiting", and the
// caller must then do nothing else.
func (s *Supervisor) Relaunch(ctx context.Context, req *RelaunchRequest) error {
	ctx = logger.WithName(ctx, "supervisor")

	if req == nil || req.Executable == "" {
		return fmt.Errorf("%w: nothing to relaunch", common.ErrFatalHandoff)
	}

	s.out.Success("Restarting to use the updated repository...")

	handle, err := s.runner.Start(process.Command{
		Name: req.Executable,
		Args: req.Args,
	})
	if handle == nil {
		if err == nil {
			err = process.ErrNoHandle
		}

		return fmt.Errorf("%w: %w", common.ErrFatalHandoff, err)
	}

	if err != nil {
		// The child runs; only the release bookkeeping failed.
		logger.WarnKV(ctx, "Relaunched process could not be released", "pid", handle.PID, "error", err)
	}

	logger.InfoKV(ctx, "Handed off to relaunched process", "pid", handle.PID)
	s.exit(0)

	return nil
}

// Supervise runs the whole update state machine for the working copy at path:
// check, then relaunch with argv when the check pulled changes. A non-nil
// error is always a fatal hand-off failure.
func (s *Supervisor) Supervise(ctx context.Context, path string, argv []string) (workingcopy.Outcome, error) {
	outcome := s.CheckForUpdates(ctx, path)
	if !outcome.NeedsRelaunch() {
		return outcome, nil
	}

	req, err := NewRelaunchRequest(argv, s.resolve)
	if err != nil {
		return outcome, err
	}

	return outcome, s.Relaunch(ctx, req)
}
