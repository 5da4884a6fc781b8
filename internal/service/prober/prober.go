package prober

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/python313again/s2l-loader/internal/logger"
	"github.com/python313again/s2l-loader/internal/process"
	"github.com/python313again/s2l-loader/internal/service/common"
)

// versionPattern picks the leading numeric part of "git version 2.45.1.windows.1" or "conda 24.5.0".
var versionPattern = regexp.MustCompile(`\d+(\.\d+){0,2}`)

// ToolStatus is the result of probing one tool.
type ToolStatus struct {
	// Name is the tool's display name.
	Name string
	// Path is the program that was invoked.
	Path string
	// Present is true when the version command started and exited with status 0.
	Present bool
	// Version is nil when the output could not be parsed.
	Version *semver.Version
	// Raw is the trimmed version output.
	Raw string
}

// String renders the status for logs.
func (s ToolStatus) String() string {
	switch {
	case !s.Present:
		return s.Name + " (missing)"
	case s.Version == nil:
		return s.Name + " (unknown version)"
	default:
		return s.Name + " " + s.Version.String()
	}
}

// Warner receives minimum-version warnings.
type Warner interface {
	Warn(format string, args ...any)
}

// Tools names the probed programs and their optional minimum versions.
type Tools struct {
	Git             string
	Conda           string
	MinGitVersion   string
	MinCondaVersion string
}

// Prober runs version probes through a process.Runner.
type Prober struct {
	runner process.Runner
	out    Warner
	tools  Tools
}

// New returns a Prober. An empty Tools.Git defaults to "git" and an empty
// Tools.Conda to "conda".
func New(runner process.Runner, out Warner, tools Tools) *Prober {
	if tools.Git == "" {
		tools.Git = "git"
	}

	if tools.Conda == "" {
		tools.Conda = "conda"
	}

	return &Prober{
		runner: runner,
		out:    out,
		tools:  tools,
	}
}

// Git probes `git --version`.
func (p *Prober) Git(ctx context.Context) ToolStatus {
	return p.probe(ctx, "git", p.tools.Git, p.tools.MinGitVersion)
}

// Conda probes `conda --version`.
func (p *Prober) Conda(ctx context.Context) ToolStatus {
	return p.probe(ctx, "conda", p.tools.Conda, p.tools.MinCondaVersion)
}

// EnvironmentExists reports whether `conda env list` names env in its first column.
func (p *Prober) EnvironmentExists(ctx context.Context, env string) (bool, error) {
	ctx = logger.WithKV(logger.WithName(ctx, "prober"), "environment", env)

	cmd := process.Command{Name: p.tools.Conda, Args: []string{"env", "list"}}

	res, err := p.runner.Run(ctx, cmd)
	if err != nil {
		return false, fmt.Errorf("%w: %w", common.ErrTransientToolFailure, err)
	}

	if !res.Succeeded() {
		return false, fmt.Errorf("%w: %s exited with status %d: %s",
			common.ErrTransientToolFailure, cmd, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	found := ListedEnvironment(res.Stdout, env)
	logger.DebugKV(ctx, "Listed conda environments", "found", found)

	return found, nil
}

// ListedEnvironment reports whether the `conda env list` output contains env.
func ListedEnvironment(listing, env string) bool {
	scanner := bufio.NewScanner(strings.NewReader(listing))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if fields := strings.Fields(line); fields[0] == env {
			return true
		}
	}

	return false
}

// ParseVersion extracts the first dotted version number from a tool's output.
func ParseVersion(output string) (*semver.Version, error) {
	match := versionPattern.FindString(output)
	if match == "" {
		return nil, fmt.Errorf("no version in %q", strings.TrimSpace(output))
	}

	return semver.NewVersion(match)
}

func (p *Prober) probe(ctx context.Context, name, program, minimum string) ToolStatus {
	ctx = logger.WithKV(logger.WithName(ctx, "prober"), "tool", name)

	status := ToolStatus{Name: name, Path: program}

	res, err := p.runner.Run(ctx, process.Command{Name: program, Args: []string{"--version"}})
	if err != nil {
		logger.DebugKV(ctx, "Tool did not start", "error", err)

		return status
	}

	if !res.Succeeded() {
		logger.DebugKV(ctx, "Tool exited with an error", "exit_code", res.ExitCode)

		return status
	}

	status.Present = true
	// Older conda releases print their version on stderr.
	status.Raw = strings.TrimSpace(res.Stdout + "\n" + res.Stderr)

	status.Version, err = ParseVersion(status.Raw)
	if err != nil {
		logger.Debugf(ctx, "Unparsable version output %q: %v", status.Raw, err)
	}

	p.checkMinimum(ctx, status, minimum)

	return status
}

func (p *Prober) checkMinimum(ctx context.Context, status ToolStatus, minimum string) {
	if minimum == "" {
		return
	}

	constraint, err := semver.NewConstraint(">= " + minimum)
	if err != nil {
		logger.WarnKV(ctx, "Invalid minimum version", "minimum", minimum, "error", err)

		return
	}

	if status.Version == nil {
		p.out.Warn("Could not determine the %s version; %s or newer is recommended.", status.Name, minimum)

		return
	}

	if !constraint.Check(status.Version) {
		p.out.Warn("%s %s is older than the recommended %s.", status.Name, status.Version, minimum)
	}
}
