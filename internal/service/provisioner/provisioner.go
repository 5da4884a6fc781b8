package provisioner

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"

	"github.com/python313again/s2l-loader/internal/config"
	"github.com/python313again/s2l-loader/internal/logger"
	"github.com/python313again/s2l-loader/internal/platform"
	"github.com/python313again/s2l-loader/internal/process"
	"github.com/python313again/s2l-loader/internal/prompt"
	"github.com/python313again/s2l-loader/internal/service/common"
	"github.com/python313again/s2l-loader/internal/service/prober"
)

// Prober is the part of prober.Prober the provisioner consults.
type Prober interface {
	Git(ctx context.Context) prober.ToolStatus
	Conda(ctx context.Context) prober.ToolStatus
	EnvironmentExists(ctx context.Context, env string) (bool, error)
}

// Reporter prints operator-facing status lines.
type Reporter interface {
	Info(format string, args ...any)
	Success(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Options wires a Provisioner.
type Options struct {
	Config *config.Config
	OS     platform.OS
	// Arch selects the installer build; defaults to runtime.GOARCH.
	Arch   string
	Layout *platform.Layout
	Runner process.Runner
	Prober Prober
	Asker  prompt.Asker
	Out    Reporter
	// HTTPClient downloads the Miniconda installer; defaults to http.DefaultClient.
	HTTPClient *http.Client
	// TempDir receives the installer; defaults to os.TempDir().
	TempDir string
}

// Provisioner performs the setup steps.
type Provisioner struct {
	cfg     *config.Config
	os      platform.OS
	arch    string
	layout  *platform.Layout
	runner  process.Runner
	prober  Prober
	asker   prompt.Asker
	out     Reporter
	client  *http.Client
	tempDir string
}

// New returns a Provisioner for opts.
func New(opts *Options) *Provisioner {
	p := &Provisioner{
		cfg:     opts.Config,
		os:      opts.OS,
		arch:    opts.Arch,
		layout:  opts.Layout,
		runner:  opts.Runner,
		prober:  opts.Prober,
		asker:   opts.Asker,
		out:     opts.Out,
		client:  opts.HTTPClient,
		tempDir: opts.TempDir,
	}

	if p.arch == "" {
		p.arch = runtime.GOARCH
	}

	if p.client == nil {
		p.client = http.DefaultClient
	}

	if p.tempDir == "" {
		p.tempDir = os.TempDir()
	}

	return p
}

// stream runs cmd attached to the terminal and turns any failure into ErrSetupFailed.
func (p *Provisioner) stream(ctx context.Context, cmd process.Command) error {
	logger.InfoKV(ctx, "Running command", "command", cmd.String())

	res, err := p.runner.Stream(ctx, cmd)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", common.ErrSetupFailed, cmd, err)
	}

	if !res.Succeeded() {
		return fmt.Errorf("%w: %s exited with status %d", common.ErrSetupFailed, cmd, res.ExitCode)
	}

	return nil
}

func (p *Provisioner) streamAll(ctx context.Context, cmds []process.Command) error {
	for _, cmd := range cmds {
		if err := p.stream(ctx, cmd); err != nil {
			return err
		}
	}

	return nil
}

func (p *Provisioner) python(env string) string {
	return p.layout.Python(env)
}

func pip(python string, args ...string) process.Command {
	return process.Command{
		Name: python,
		Args: append([]string{"-m", "pip"}, args...),
	}
}
