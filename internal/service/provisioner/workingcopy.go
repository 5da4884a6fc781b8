package provisioner

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/python313again/s2l-loader/internal/logger"
	"github.com/python313again/s2l-loader/internal/process"
	"github.com/python313again/s2l-loader/internal/service/common"
)

// CUDAQuestion is asked before swapping in the GPU build of the numeric library.
const CUDAQuestion = "Do you want to use the CUDA variant of PyTorch (huge performance boost on NVIDIA GPUs)?"

// PrepareWorkingCopy clones the repository when the working copy is absent,
// installs its requirements into env and applies the GPU variant choice.
func (p *Provisioner) PrepareWorkingCopy(ctx context.Context, env string) error {
	root := p.cfg.WorkingCopyPath()
	ctx = logger.WithKV(logger.WithName(ctx, "provisioner"), "path", root)

	if err := common.CheckPresent(root); errors.Is(err, common.ErrAbsentResource) {
		logger.DebugKV(ctx, "Cloning working copy", "reason", err)
		p.out.Info("Cloning %s into %s...", p.cfg.RepositoryURL, root)

		err = p.stream(ctx, process.Command{
			Name: "git",
			Args: []string{"clone", p.cfg.RepositoryURL, root},
			Dir:  p.cfg.WorkDir,
		})
		if err != nil {
			p.out.Error("Failed to clone the repository.")

			return err
		}
	}

	p.out.Info("Installing Python dependencies from %s...", p.cfg.RequirementsFile)

	cmd := pip(p.python(env), "install", "-r", p.cfg.RequirementsFile)
	cmd.Dir = root

	if err := p.stream(ctx, cmd); err != nil {
		p.out.Error("Failed to install Python dependencies.")

		return err
	}

	return p.ApplyGPUVariant(ctx, env)
}

// ApplyGPUVariant picks between the pure and compiled builds of the visualizer
// module when both are shipped. Choosing the GPU build reinstalls the numeric
// package from the accelerated index. Failures to delete a module file are
// reported and ignored.
func (p *Provisioner) ApplyGPUVariant(ctx context.Context, env string) error {
	root := p.cfg.WorkingCopyPath()
	pure := filepath.Join(root, p.cfg.GPU.PureModule)
	compiled := filepath.Join(root, p.cfg.GPU.CompiledModule)

	if !exists(pure) || !exists(compiled) {
		logger.Debug(ctx, "Module variant already chosen")

		return nil
	}

	if !p.os.SupportsCUDA() {
		p.out.Info("Your system is not compatible with CUDA anyway, using non-CUDA version.")
		p.remove(ctx, compiled)

		return nil
	}

	useGPU, err := p.asker.Confirm(CUDAQuestion)
	if err != nil {
		logger.WarnKV(ctx, "No answer to the CUDA question", "error", err)
	}

	if !useGPU {
		p.remove(ctx, compiled)

		return nil
	}

	python := p.python(env)
	pkg := p.cfg.GPU.Package

	err = p.streamAll(ctx, []process.Command{
		pip(python, "uninstall", pkg, "-y"),
		pip(python, "install", pkg, "--index-url", p.cfg.GPU.IndexURL),
	})
	if err != nil {
		p.out.Error("Failed to install the CUDA variant of %s.", pkg)

		return err
	}

	p.remove(ctx, pure)

	return nil
}

func (p *Provisioner) remove(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil {
		logger.Warnf(ctx, "Could not remove module variant %s: %v", path, err)
		p.out.Warn("Could not remove %s: %v", path, err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}
