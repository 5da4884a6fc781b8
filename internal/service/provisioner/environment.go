package provisioner

import (
	"context"

	"github.com/python313again/s2l-loader/internal/logger"
	"github.com/python313again/s2l-loader/internal/process"
)

// EnsureEnvironment creates the conda environment env with the configured
// Python version unless it is already listed.
func (p *Provisioner) EnsureEnvironment(ctx context.Context, env string) error {
	ctx = logger.WithKV(logger.WithName(ctx, "provisioner"), "environment", env)

	exists, err := p.prober.EnvironmentExists(ctx, env)
	if err != nil {
		// Creation reports the real problem if conda is unusable.
		logger.WarnKV(ctx, "Could not list conda environments", "error", err)
	}

	if exists {
		p.out.Info("The environment '%s' already exists. Skipping environment creation.", env)

		return nil
	}

	p.out.Info("Creating the '%s' environment with Python %s...", env, p.cfg.PythonVersion)

	err = p.stream(ctx, process.Command{
		Name: p.layout.Conda(),
		Args: []string{"create", "-n", env, "python=" + p.cfg.PythonVersion, "-y"},
	})
	if err != nil {
		p.out.Error("Failed to create the '%s' environment.", env)

		return err
	}

	return nil
}
