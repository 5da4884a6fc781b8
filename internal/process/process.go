package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Command describes one external invocation.
type Command struct {
	// Name is the program, looked up in PATH when it has no separator.
	Name string
	// Args excludes the program name.
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env replaces the environment when non-nil.
	Env []string
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is a completed process.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Succeeded reports a zero exit status.
func (r *Result) Succeeded() bool {
	return r != nil && r.ExitCode == 0
}

// Handle identifies a started process the caller does not wait for.
type Handle struct {
	PID int
}

// Runner is the external process collaborator used by every service.
type Runner interface {
	// Run executes cmd and captures its output.
	Run(ctx context.Context, cmd Command) (*Result, error)
	// Stream executes cmd attached to the terminal; Result carries only the exit code.
	Stream(ctx context.Context, cmd Command) (*Result, error)
	// Start launches cmd detached and returns without waiting.
	Start(cmd Command) (*Handle, error)
}

// ErrEmptyCommand is returned for a Command without a program name.
var ErrEmptyCommand = errors.New("command name is empty")

// ErrNoHandle reports a Start that returned neither a process nor an error.
var ErrNoHandle = errors.New("runner returned no process handle")

// Exec is the os/exec backed Runner.
type Exec struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewExec returns a Runner wired to the process's own standard streams.
func NewExec() *Exec {
	return &Exec{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run implements Runner.
func (e *Exec) Run(ctx context.Context, cmd Command) (*Result, error) {
	var stdout, stderr bytes.Buffer

	c, err := e.command(ctx, cmd)
	if err != nil {
		return nil, err
	}

	c.Stdout = &stdout
	c.Stderr = &stderr

	exitCode, err := wait(ctx, c.Run(), cmd)
	if err != nil {
		return nil, err
	}

	return &Result{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

// Stream implements Runner.
func (e *Exec) Stream(ctx context.Context, cmd Command) (*Result, error) {
	c, err := e.command(ctx, cmd)
	if err != nil {
		return nil, err
	}

	c.Stdin = e.Stdin
	c.Stdout = e.Stdout
	c.Stderr = e.Stderr

	exitCode, err := wait(ctx, c.Run(), cmd)
	if err != nil {
		return nil, err
	}

	return &Result{ExitCode: exitCode}, nil
}

// Start implements Runner. The child shares the terminal and is released
// right away, so nothing in this process ever waits on it.
func (e *Exec) Start(cmd Command) (*Handle, error) {
	if cmd.Name == "" {
		return nil, ErrEmptyCommand
	}

	//nolint:gosec,noctx // Detached on purpose; a context would kill the child with the parent.
	c := exec.Command(cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env
	c.Stdin = e.Stdin
	c.Stdout = e.Stdout
	c.Stderr = e.Stderr

	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd.Name, err)
	}

	handle := &Handle{PID: c.Process.Pid}

	if err := c.Process.Release(); err != nil {
		return handle, fmt.Errorf("release %s: %w", cmd.Name, err)
	}

	return handle, nil
}

func (e *Exec) command(ctx context.Context, cmd Command) (*exec.Cmd, error) {
	if cmd.Name == "" {
		return nil, ErrEmptyCommand
	}

	//nolint:gosec // Commands are assembled from configuration, not from untrusted input.
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env

	return c, nil
}

// wait turns the error of exec.Cmd.Run into an exit code, keeping real
// start failures and cancellations as errors.
func wait(ctx context.Context, runErr error, cmd Command) (int, error) {
	if runErr == nil {
		return 0, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, fmt.Errorf("run %s: %w", cmd.Name, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	return 0, fmt.Errorf("run %s: %w", cmd.Name, runErr)
}
