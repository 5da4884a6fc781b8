package provisioner

import (
	"bytes"
	"context"
	"crypto"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/python313again/s2l-loader/internal/logger"
	"github.com/python313again/s2l-loader/internal/platform"
	"github.com/python313again/s2l-loader/internal/process"
	"github.com/python313again/s2l-loader/internal/service/common"
)

const (
	// InstallerFilename is the name the Miniconda installer is saved under.
	InstallerFilename = "miniconda_installer.sh"

	// InstallerFileMode makes the saved installer executable.
	InstallerFileMode os.FileMode = 0o755
)

var errBadHTTPStatus = errors.New("bad HTTP status")

// GitInstallCommands returns the package-manager commands that install git on o.
func GitInstallCommands(o platform.OS) ([]process.Command, error) {
	switch o {
	case platform.Linux:
		return []process.Command{{Name: "sudo", Args: []string{"apt-get", "install", "-y", "git"}}}, nil
	case platform.Darwin:
		return []process.Command{{Name: "brew", Args: []string{"install", "git"}}}, nil
	case platform.Windows:
		return []process.Command{wingetInstall("Git.Git")}, nil
	default:
		return nil, fmt.Errorf("install git on %s: %w", o, platform.ErrUnsupportedOS)
	}
}

func wingetInstall(id string) process.Command {
	return process.Command{Name: "winget", Args: []string{"install", "--id", id, "-e", "--silent"}}
}

// EnsureGit installs git when the probe finds it missing.
func (p *Provisioner) EnsureGit(ctx context.Context) error {
	ctx = logger.WithName(ctx, "provisioner")

	status := p.prober.Git(ctx)
	if status.Present {
		logger.InfoKV(ctx, "Git is available", "status", status.String())

		return nil
	}

	p.out.Warn("Git is not installed. Attempting to install Git...")

	cmds, err := GitInstallCommands(p.os)
	if err != nil {
		p.out.Error("Please install Git manually for your system.")

		return fmt.Errorf("%w: %w", common.ErrSetupFailed, err)
	}

	if err = p.streamAll(ctx, cmds); err != nil {
		p.out.Error("Failed to install Git. Please install it manually and retry.")

		return err
	}

	p.out.Success("Git installed successfully. Please restart the loader.")

	return common.ErrRestartRequired
}

// EnsureConda installs Miniconda when the probe finds conda missing.
func (p *Provisioner) EnsureConda(ctx context.Context) error {
	ctx = logger.WithName(ctx, "provisioner")

	status := p.prober.Conda(ctx)
	if status.Present {
		logger.InfoKV(ctx, "Conda is available", "status", status.String())

		return nil
	}

	p.out.Info("Conda is not installed. Installing Miniconda...")

	var err error

	switch p.os {
	case platform.Linux:
		err = p.installMinicondaScript(ctx)
	case platform.Darwin:
		err = p.stream(ctx, process.Command{Name: "brew", Args: []string{"install", "miniconda"}})
	case platform.Windows:
		err = p.stream(ctx, wingetInstall("Continuum.Miniconda3"))
	default:
		err = fmt.Errorf("%w: install miniconda on %s: %w", common.ErrSetupFailed, p.os, platform.ErrUnsupportedOS)
	}

	if err != nil {
		p.out.Error("Failed to install Miniconda. Please install it manually and retry.")

		return err
	}

	p.out.Success("Miniconda installed successfully. Please restart the loader.")

	return common.ErrRestartRequired
}

func (p *Provisioner) installMinicondaScript(ctx context.Context) error {
	installerURL := p.cfg.MinicondaInstallerURL
	if installerURL == "" {
		var err error

		installerURL, err = platform.InstallerURL(p.os, p.arch)
		if err != nil {
			return fmt.Errorf("%w: %w", common.ErrSetupFailed, err)
		}
	}

	p.out.Info("Downloading Miniconda installer...")

	installer, err := p.DownloadInstaller(ctx, installerURL)
	if err != nil {
		return err
	}

	defer func() {
		if err := os.Remove(installer); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Could not remove installer", "path", installer, "error", err)
		}
	}()

	args := []string{installer, "-b"}
	if p.cfg.MinicondaRoot != "" {
		args = append(args, "-p", p.layout.Root())
	}

	p.out.Info("Installing Miniconda...")

	return p.stream(ctx, process.Command{Name: "bash", Args: args})
}

// DownloadInstaller fetches installerURL into the temp directory and returns
// the saved path. The file is replaced atomically and, when a checksum is
// configured, verified with SHA-256 before it is put in place.
func (p *Provisioner) DownloadInstaller(ctx context.Context, installerURL string) (string, error) {
	ctx = logger.WithKV(ctx, "url", installerURL)

	data, err := p.fetch(ctx, installerURL)
	if err != nil {
		return "", fmt.Errorf("%w: download installer: %w", common.ErrSetupFailed, err)
	}

	target := filepath.Join(p.tempDir, InstallerFilename)

	if _, err = os.Stat(target); err != nil && os.IsNotExist(err) {
		var f *os.File

		if f, err = os.Create(filepath.Clean(target)); err != nil {
			return "", fmt.Errorf("%w: create installer: %w", common.ErrSetupFailed, err)
		}

		_ = f.Close()
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: InstallerFileMode,
		Checksum:   p.cfg.InstallerChecksum(),
		Hash:       crypto.SHA256,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return "", fmt.Errorf("%w: write installer: %w", common.ErrSetupFailed, err)
	}

	oldFileName := target + ".old"
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	logger.InfoKV(ctx, "Downloaded installer", "path", target, "bytes", len(data))

	return target, nil
}

func (p *Provisioner) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	response, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", rawURL, response.Status, errBadHTTPStatus)
	}

	return io.ReadAll(response.Body)
}
