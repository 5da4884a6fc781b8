package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"

	"github.com/mitchellh/go-ps"

	"github.com/python313again/s2l-loader/internal/config"
	"github.com/python313again/s2l-loader/internal/domain/workingcopy"
	"github.com/python313again/s2l-loader/internal/logger"
	"github.com/python313again/s2l-loader/internal/platform"
	"github.com/python313again/s2l-loader/internal/process"
	"github.com/python313again/s2l-loader/internal/prompt"
	"github.com/python313again/s2l-loader/internal/service/common"
	"github.com/python313again/s2l-loader/internal/service/launcher"
	"github.com/python313again/s2l-loader/internal/service/prober"
	"github.com/python313again/s2l-loader/internal/service/provisioner"
	"github.com/python313again/s2l-loader/internal/service/supervisor"
	"github.com/python313again/s2l-loader/internal/status"
	"github.com/python313again/s2l-loader/internal/version"
)

var errNoEnvironment = errors.New("environment name is empty")

// Options are inputs accepted by the bootstrap entry point. Fields after
// Argv are collaborators; zero values select the real implementations.
type Options struct {
	// ConfigPath is the path to the settings YAML file.
	ConfigPath string
	// ConfigRequired makes a missing ConfigPath an error instead of using defaults.
	ConfigRequired bool
	// WorkDir holds the working copy; empty means the current directory.
	WorkDir string
	// EnvironmentName overrides the configured conda environment.
	EnvironmentName string
	// AssumeYes answers every question with "yes".
	AssumeYes bool
	// Argv is the full command line, replayed on relaunch.
	Argv []string

	Runner process.Runner
	Out    *status.Printer
	Input  io.Reader
	OS     platform.OS
	// DefaultCondaRoot replaces platform.DefaultRoot.
	DefaultCondaRoot string
	// LookPath finds a conda installed outside the default root.
	LookPath    func(file string) (string, error)
	Processes   common.ProcessLister
	HTTPClient  *http.Client
	Exit        func(code int)
	ResolveExec func() (string, error)
}

// pipeline holds the wired collaborators of one run.
type pipeline struct {
	cfg         *config.Config
	env         string
	layout      *platform.Layout
	out         *status.Printer
	asker       prompt.Asker
	processes   common.ProcessLister
	provisioner *provisioner.Provisioner
	supervisor  *supervisor.Supervisor
	launcher    *launcher.Launcher
	argv        []string
}

// Run executes the loader and is the public entry point for the CLI.
// It returns common.ErrRestartRequired after installing a tool and nil after
// handing off to a relaunched copy of itself.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, version.Name)

	p, err := newPipeline(opts)
	if err != nil {
		return err
	}

	if err = p.run(ctx); err != nil {
		if cause := interrupted(ctx); errors.Is(cause, common.ErrOperatorCancellation) {
			err = cause
		}

		if !errors.Is(err, common.ErrRestartRequired) {
			logger.ErrorKV(ctx, "Loader run failed", "error", err)
		}

		return err
	}

	logger.Info(ctx, "Loader completed")

	return nil
}

func newPipeline(opts *Options) (*pipeline, error) {
	cfg, err := config.Load(opts.ConfigPath, opts.ConfigRequired)
	if err != nil {
		return nil, err
	}

	if opts.EnvironmentName != "" {
		cfg.EnvironmentName = opts.EnvironmentName
	}

	if cfg.EnvironmentName == "" {
		return nil, errNoEnvironment
	}

	cfg.WorkDir = opts.WorkDir
	if cfg.WorkDir == "" {
		if cfg.WorkDir, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
	}

	hostOS := opts.OS
	if hostOS == "" {
		if hostOS, err = platform.Detect(); err != nil {
			return nil, err
		}
	}

	defaultRoot := opts.DefaultCondaRoot
	if defaultRoot == "" && cfg.MinicondaRoot == "" {
		if defaultRoot, err = platform.DefaultRoot(); err != nil {
			return nil, err
		}
	}

	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	layout := platform.Locate(hostOS, cfg.MinicondaRoot, defaultRoot, lookPath)

	runner := opts.Runner
	if runner == nil {
		runner = process.NewExec()
	}

	out := opts.Out
	if out == nil {
		out = status.New(os.Stdout)
	}

	var asker prompt.Asker = prompt.Fixed(true)
	if !opts.AssumeYes {
		input := opts.Input
		if input == nil {
			input = os.Stdin
		}

		asker = prompt.NewReader(input, out)
	}

	processes := opts.Processes
	if processes == nil {
		processes = ps.Processes
	}

	probe := prober.New(runner, out, prober.Tools{
		Git:             "git",
		Conda:           layout.Conda(),
		MinGitVersion:   cfg.MinGitVersion,
		MinCondaVersion: cfg.MinCondaVersion,
	})

	var supervisorOptions []supervisor.Option
	if opts.Exit != nil {
		supervisorOptions = append(supervisorOptions, supervisor.WithExit(opts.Exit))
	}

	if opts.ResolveExec != nil {
		supervisorOptions = append(supervisorOptions, supervisor.WithExecutableResolver(opts.ResolveExec))
	}

	argv := opts.Argv
	if argv == nil {
		argv = os.Args
	}

	return &pipeline{
		cfg:       cfg,
		env:       cfg.EnvironmentName,
		layout:    layout,
		out:       out,
		asker:     asker,
		processes: processes,
		provisioner: provisioner.New(&provisioner.Options{
			Config:     cfg,
			OS:         hostOS,
			Layout:     layout,
			Runner:     runner,
			Prober:     probe,
			Asker:      asker,
			Out:        out,
			HTTPClient: opts.HTTPClient,
		}),
		supervisor: supervisor.New(runner, out, supervisorOptions...),
		launcher:   launcher.New(runner, out),
		argv:       argv,
	}, nil
}

func (p *pipeline) run(ctx context.Context) error {
	ctx = logger.WithKV(ctx, "environment", p.env)

	p.warnOtherInstances(ctx)

	steps := []func(context.Context) error{
		p.provisioner.EnsureGit,
		p.provisioner.EnsureConda,
		func(ctx context.Context) error { return p.provisioner.EnsureEnvironment(ctx, p.env) },
	}

	for _, step := range steps {
		if err := interrupted(ctx); err != nil {
			return err
		}

		if err := step(ctx); err != nil {
			return err
		}
	}

	copyPath := p.cfg.WorkingCopyPath()

	wc, err := workingcopy.Discover(copyPath)
	if err != nil {
		logger.WarnKV(ctx, "Could not inspect working copy", "path", copyPath, "error", err)
	}

	if err = interrupted(ctx); err != nil {
		return err
	}

	handedOff, err := p.update(ctx, wc)
	if err != nil {
		return err
	}

	if handedOff {
		// The relaunched process owns the rest of the run.
		return nil
	}

	if !wc.Exists {
		if err = p.provisioner.PrepareWorkingCopy(ctx, p.env); err != nil {
			return err
		}
	}

	if err = interrupted(ctx); err != nil {
		return err
	}

	_, err = p.launcher.Launch(ctx, launcher.Target{
		Python:     p.layout.Python(p.env),
		EntryPoint: p.cfg.EntryPoint,
		Dir:        p.cfg.WorkingCopyPath(),
	})

	return err
}

// update asks before synchronizing an existing working copy and reports
// whether a relaunched process took over. An absent copy goes straight to the
// supervisor, which reports it as NoCopy.
func (p *pipeline) update(ctx context.Context, wc *workingcopy.WorkingCopy) (bool, error) {
	if wc.Exists {
		p.out.Success("The %s repository already exists. Skipping setup steps.", p.cfg.WorkingCopyDir)

		question := fmt.Sprintf("Would you like to check for updates in the %s folder?", p.cfg.WorkingCopyDir)

		check, err := p.asker.Confirm(question)
		if err != nil {
			logger.WarnKV(ctx, "No answer to the update question", "error", err)
		}

		if !check {
			p.out.Info("Skipping updates.")

			return false, nil
		}
	}

	outcome, err := p.supervisor.Supervise(ctx, wc.Root, p.argv)
	if err != nil {
		return false, err
	}

	wc.Apply(outcome)
	logger.InfoKV(ctx, "Update step finished", "outcome", outcome.String(), "freshness", wc.Freshness.String())

	return outcome.NeedsRelaunch(), nil
}

// interrupted returns the cause of a canceled run, or nil while it may go on.
func interrupted(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}

	return context.Cause(ctx)
}

func (p *pipeline) warnOtherInstances(ctx context.Context) {
	others, err := common.OtherInstances(p.processes, version.Name)
	if err != nil {
		logger.DebugKV(ctx, "Could not list processes", "error", err)

		return
	}

	for _, other := range others {
		p.out.Warn("Another %s process is running (PID %d).", version.Name, other.PID)
	}
}
