// Package processtest provides a scripted process.Runner for tests.
package processtest

import (
	"context"
	"sync"

	"github.com/python313again/s2l-loader/internal/process"
)

// Call kinds recorded by Fake.
const (
	KindRun    = "run"
	KindStream = "stream"
	KindStart  = "start"
)

// Call is one recorded invocation.
type Call struct {
	Kind    string
	Command process.Command
}

// Response scripts the reply to a command line.
type Response struct {
	Result *process.Result
	Err    error
	// Do runs before the reply, to simulate side effects such as a clone.
	Do func(cmd process.Command)
	// NoHandle makes Start return neither a handle nor an error.
	NoHandle bool
}

// Fake is a process.Runner answering from a script keyed by Command.String().
// Unscripted commands succeed with empty output.
type Fake struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     []Call
	nextPID   int
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{
		responses: make(map[string]Response),
		nextPID:   1000,
	}
}

// On scripts the response for commandLine, as rendered by process.Command.String.
func (f *Fake) On(commandLine string, resp Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.responses[commandLine] = resp

	return f
}

// OnOutput scripts a successful run printing stdout.
func (f *Fake) OnOutput(commandLine, stdout string) *Fake {
	return f.On(commandLine, Response{Result: &process.Result{Stdout: stdout}})
}

// OnExit scripts a completed run with a non-zero exit code and stderr.
func (f *Fake) OnExit(commandLine string, code int, stderr string) *Fake {
	return f.On(commandLine, Response{Result: &process.Result{ExitCode: code, Stderr: stderr}})
}

// OnError scripts a start failure.
func (f *Fake) OnError(commandLine string, err error) *Fake {
	return f.On(commandLine, Response{Err: err})
}

// Calls returns a copy of the recorded invocations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]Call(nil), f.calls...)
}

// CommandLines returns the recorded invocations rendered as strings.
func (f *Fake) CommandLines() []string {
	calls := f.Calls()
	lines := make([]string, 0, len(calls))

	for _, c := range calls {
		lines = append(lines, c.Command.String())
	}

	return lines
}

// Run implements process.Runner.
func (f *Fake) Run(_ context.Context, cmd process.Command) (*process.Result, error) {
	return f.reply(KindRun, cmd)
}

// Stream implements process.Runner.
func (f *Fake) Stream(_ context.Context, cmd process.Command) (*process.Result, error) {
	return f.reply(KindStream, cmd)
}

// Start implements process.Runner.
func (f *Fake) Start(cmd process.Command) (*process.Handle, error) {
	resp := f.record(KindStart, cmd)
	if resp.Err != nil || resp.NoHandle {
		return nil, resp.Err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextPID++

	return &process.Handle{PID: f.nextPID}, nil
}

func (f *Fake) reply(kind string, cmd process.Command) (*process.Result, error) {
	resp := f.record(kind, cmd)
	if resp.Err != nil {
		return nil, resp.Err
	}

	if resp.Result == nil {
		return &process.Result{}, nil
	}

	res := *resp.Result

	return &res, nil
}

func (f *Fake) record(kind string, cmd process.Command) Response {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Kind: kind, Command: cmd})
	resp := f.responses[cmd.String()]
	f.mu.Unlock()

	if resp.Do != nil {
		resp.Do(cmd)
	}

	return resp
}
