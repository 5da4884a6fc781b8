package provisioner

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/python313again/s2l-loader/internal/config"
	"github.com/python313again/s2l-loader/internal/platform"
	"github.com/python313again/s2l-loader/internal/process"
	"github.com/python313again/s2l-loader/internal/process/processtest"
	"github.com/python313again/s2l-loader/internal/prompt"
	"github.com/python313again/s2l-loader/internal/service/common"
	"github.com/python313again/s2l-loader/internal/service/prober"
	"github.com/python313again/s2l-loader/internal/status"
)

const (
	condaRoot = "/opt/miniconda3"
	python    = "/opt/miniconda3/envs/S2L/bin/python"
)

type fakeProber struct {
	git     bool
	conda   bool
	envs    map[string]bool
	listErr error
}

func (f *fakeProber) Git(context.Context) prober.ToolStatus {
	return prober.ToolStatus{Name: "git", Path: "git", Present: f.git}
}

func (f *fakeProber) Conda(context.Context) prober.ToolStatus {
	return prober.ToolStatus{Name: "conda", Path: condaRoot + "/bin/conda", Present: f.conda}
}

func (f *fakeProber) EnvironmentExists(_ context.Context, env string) (bool, error) {
	return f.envs[env], f.listErr
}

type fixture struct {
	cfg    *config.Config
	fake   *processtest.Fake
	prober *fakeProber
	out    *bytes.Buffer
	opts   *Options
}

func newFixture(t *testing.T, o platform.OS) *fixture {
	t.Helper()

	layout := platform.Locate(o, condaRoot, "", nil)

	cfg := config.Default()
	cfg.WorkDir = t.TempDir()

	f := &fixture{
		cfg:    cfg,
		fake:   processtest.NewFake(),
		prober: &fakeProber{git: true, conda: true, envs: map[string]bool{}},
		out:    new(bytes.Buffer),
	}

	f.opts = &Options{
		Config:  cfg,
		OS:      o,
		Arch:    "amd64",
		Layout:  layout,
		Runner:  f.fake,
		Prober:  f.prober,
		Asker:   prompt.Fixed(false),
		TempDir: t.TempDir(),
	}
	f.opts.Out = status.New(f.out)

	return f
}

func (f *fixture) provisioner() *Provisioner {
	return New(f.opts)
}

func touch(t *testing.T, path string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
}

// TestGitInstallCommands maps every supported OS to its package manager.
func TestGitInstallCommands(t *testing.T) {
	t.Parallel()

	want := map[platform.OS]string{
		platform.Linux:   "sudo apt-get install -y git",
		platform.Darwin:  "brew install git",
		platform.Windows: "winget install --id Git.Git -e --silent",
	}

	for o, line := range want {
		cmds, err := GitInstallCommands(o)
		require.NoError(t, err)
		require.Len(t, cmds, 1)
		require.Equal(t, line, cmds[0].String())
	}

	_, err := GitInstallCommands(platform.OS("plan9"))
	require.ErrorIs(t, err, platform.ErrUnsupportedOS)
}

// TestEnsureGit_Present does nothing when git is usable.
func TestEnsureGit_Present(t *testing.T) {
	t.Parallel()

	f := newFixture(t, platform.Linux)

	require.NoError(t, f.provisioner().EnsureGit(context.Background()))
	require.Empty(t, f.fake.Calls())
}

// TestEnsureGit_InstallRequiresRestart ends the run after installing git.
func TestEnsureGit_InstallRequiresRestart(t *testing.T) {
	t.Parallel()

	f := newFixture(t, platform.Linux)
	f.prober.git = false

	err := f.provisioner().EnsureGit(context.Background())
	require.ErrorIs(t, err, common.ErrRestartRequired)
	require.Equal(t, []string{"sudo apt-get install -y git"}, f.fake.CommandLines())
	require.Equal(t, processtest.KindStream, f.fake.Calls()[0].Kind)
	require.Contains(t, f.out.String(), "Git installed successfully")
}

// TestEnsureGit_InstallFails is a setup failure.
func TestEnsureGit_InstallFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, platform.Darwin)
	f.prober.git = false
	f.fake.OnExit("brew install git", 1, "")

	err := f.provisioner().EnsureGit(context.Background())
	require.ErrorIs(t, err, common.ErrSetupFailed)
	require.NotErrorIs(t, err, common.ErrRestartRequired)
	require.Contains(t, f.out.String(), "Failed to install Git")
}

// TestEnsureConda_PackageManagers uses brew on macOS and winget on Windows.
func TestEnsureConda_PackageManagers(t *testing.T) {
	t.Parallel()

	want := map[platform.OS]string{
		platform.Darwin:  "brew install miniconda",
		platform.Windows: "winget install --id Continuum.Miniconda3 -e --silent",
	}

	for o, line := range want {
		f := newFixture(t, o)
		f.prober.conda = false

		err := f.provisioner().EnsureConda(context.Background())
		require.ErrorIs(t, err, common.ErrRestartRequired)
		require.Equal(t, []string{line}, f.fake.CommandLines())
	}
}

// TestEnsureConda_LinuxInstaller downloads, verifies and runs the installer script.
func TestEnsureConda_LinuxInstaller(t *testing.T) {
	t.Parallel()

	script := []byte("#!/bin/sh\necho installing\n")
	sum := sha256.Sum256(script)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Miniconda3-latest-Linux-x86_64.sh" {
			http.NotFound(w, r)

			return
		}

		_, _ = w.Write(script)
	}))
	t.Cleanup(srv.Close)

	f := newFixture(t, platform.Linux)
	f.prober.conda = false
	f.cfg.MinicondaInstallerURL = srv.URL + "/Miniconda3-latest-Linux-x86_64.sh"
	f.cfg.MinicondaInstallerSHA256 = hex.EncodeToString(sum[:])
	f.opts.HTTPClient = srv.Client()

	installer := filepath.Join(f.opts.TempDir, InstallerFilename)

	var seen []byte

	var mode os.FileMode

	f.fake.On("bash "+installer+" -b", processtest.Response{
		Do: func(process.Command) {
			seen, _ = os.ReadFile(installer)
			if info, err := os.Stat(installer); err == nil {
				mode = info.Mode().Perm()
			}
		},
	})

	err := f.provisioner().EnsureConda(context.Background())
	require.ErrorIs(t, err, common.ErrRestartRequired)
	require.Equal(t, script, seen)
	require.Equal(t, InstallerFileMode, mode)
	require.Equal(t, []string{"bash " + installer + " -b"}, f.fake.CommandLines())

	_, err = os.Stat(installer)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(installer + ".old")
	require.True(t, os.IsNotExist(err))
}

// TestEnsureConda_CustomRoot installs into the configured prefix.
func TestEnsureConda_CustomRoot(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("#!/bin/sh\n"))
	}))
	t.Cleanup(srv.Close)

	f := newFixture(t, platform.Linux)
	f.prober.conda = false
	f.cfg.MinicondaRoot = condaRoot
	f.cfg.MinicondaInstallerURL = srv.URL
	f.opts.HTTPClient = srv.Client()

	installer := filepath.Join(f.opts.TempDir, InstallerFilename)

	require.ErrorIs(t, f.provisioner().EnsureConda(context.Background()), common.ErrRestartRequired)
	require.Equal(t, []string{"bash " + installer + " -b -p " + condaRoot}, f.fake.CommandLines())
}

// TestDownloadInstaller_Rejects refuses bad checksums and HTTP errors.
func TestDownloadInstaller_Rejects(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)

			return
		}

		_, _ = w.Write([]byte("tampered"))
	}))
	t.Cleanup(srv.Close)

	f := newFixture(t, platform.Linux)
	f.cfg.MinicondaInstallerSHA256 = hex.EncodeToString(make([]byte, sha256.Size))
	f.opts.HTTPClient = srv.Client()
	p := f.provisioner()

	_, err := p.DownloadInstaller(context.Background(), srv.URL+"/installer.sh")
	require.ErrorIs(t, err, common.ErrSetupFailed)

	_, err = p.DownloadInstaller(context.Background(), srv.URL+"/missing")
	require.ErrorIs(t, err, common.ErrSetupFailed)
	require.ErrorIs(t, err, errBadHTTPStatus)
}

// TestEnsureEnvironment creates the environment only when it is not listed.
func TestEnsureEnvironment(t *testing.T) {
	t.Parallel()

	create := condaRoot + "/bin/conda create -n S2L python=3.11.9 -y"

	f := newFixture(t, platform.Linux)
	f.prober.envs["S2L"] = true
	require.NoError(t, f.provisioner().EnsureEnvironment(context.Background(), "S2L"))
	require.Empty(t, f.fake.Calls())
	require.Contains(t, f.out.String(), "already exists")

	f = newFixture(t, platform.Linux)
	require.NoError(t, f.provisioner().EnsureEnvironment(context.Background(), "S2L"))
	require.Equal(t, []string{create}, f.fake.CommandLines())

	f = newFixture(t, platform.Linux)
	f.prober.listErr = errors.New("conda is broken")
	f.fake.OnExit(create, 1, "")
	err := f.provisioner().EnsureEnvironment(context.Background(), "S2L")
	require.ErrorIs(t, err, common.ErrSetupFailed)
}

// TestPrepareWorkingCopy_Clones clones an absent copy before installing requirements.
func TestPrepareWorkingCopy_Clones(t *testing.T) {
	t.Parallel()

	f := newFixture(t, platform.Linux)
	root := f.cfg.WorkingCopyPath()
	clone := "git clone https://github.com/python313again/S2L " + root

	f.fake.On(clone, processtest.Response{
		Do: func(process.Command) { require.NoError(t, os.MkdirAll(root, 0o755)) },
	})

	require.NoError(t, f.provisioner().PrepareWorkingCopy(context.Background(), "S2L"))
	require.Equal(t, []string{
		clone,
		python + " -m pip install -r requirements.txt",
	}, f.fake.CommandLines())

	calls := f.fake.Calls()
	require.Equal(t, f.cfg.WorkDir, calls[0].Command.Dir)
	require.Equal(t, root, calls[1].Command.Dir)
}

// TestPrepareWorkingCopy_Existing skips the clone.
func TestPrepareWorkingCopy_Existing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, platform.Linux)
	require.NoError(t, os.MkdirAll(f.cfg.WorkingCopyPath(), 0o755))

	require.NoError(t, f.provisioner().PrepareWorkingCopy(context.Background(), "S2L"))
	require.Equal(t, []string{python + " -m pip install -r requirements.txt"}, f.fake.CommandLines())
}

// TestPrepareWorkingCopy_Failures stops on clone and pip errors.
func TestPrepareWorkingCopy_Failures(t *testing.T) {
	t.Parallel()

	f := newFixture(t, platform.Linux)
	f.fake.OnExit("git clone https://github.com/python313again/S2L "+f.cfg.WorkingCopyPath(), 128, "")

	err := f.provisioner().PrepareWorkingCopy(context.Background(), "S2L")
	require.ErrorIs(t, err, common.ErrSetupFailed)
	require.Len(t, f.fake.Calls(), 1)

	f = newFixture(t, platform.Linux)
	require.NoError(t, os.MkdirAll(f.cfg.WorkingCopyPath(), 0o755))
	f.fake.OnError(python+" -m pip install -r requirements.txt", os.ErrNotExist)

	err = f.provisioner().PrepareWorkingCopy(context.Background(), "S2L")
	require.ErrorIs(t, err, common.ErrSetupFailed)
	require.Contains(t, f.out.String(), "Failed to install Python dependencies")
}

// TestApplyGPUVariant covers each choice of module build.
func TestApplyGPUVariant(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		os          platform.OS
		answer      bool
		wantPip     bool
		wantPure    bool
		wantCompile bool
	}{
		{name: "macos", os: platform.Darwin, answer: true, wantPure: true},
		{name: "declined", os: platform.Linux, answer: false, wantPure: true},
		{name: "accepted", os: platform.Windows, answer: true, wantPip: true, wantCompile: true},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, tc.os)
			f.opts.Asker = prompt.Fixed(tc.answer)

			root := f.cfg.WorkingCopyPath()
			pure := filepath.Join(root, f.cfg.GPU.PureModule)
			compiled := filepath.Join(root, f.cfg.GPU.CompiledModule)
			touch(t, pure)
			touch(t, compiled)

			var wantCalls []string
			if tc.wantPip {
				py := f.opts.Layout.Python("S2L")
				wantCalls = []string{
					py + " -m pip uninstall torch -y",
					py + " -m pip install torch --index-url https://download.pytorch.org/whl/cu124",
				}
			}

			require.NoError(t, f.provisioner().ApplyGPUVariant(context.Background(), "S2L"))
			require.Equal(t, wantCalls, nilIfEmpty(f.fake.CommandLines()))
			require.Equal(t, tc.wantPure, exists(pure))
			require.Equal(t, tc.wantCompile, exists(compiled))
		})
	}
}

// TestApplyGPUVariant_AlreadyChosen leaves a single remaining build alone.
func TestApplyGPUVariant_AlreadyChosen(t *testing.T) {
	t.Parallel()

	f := newFixture(t, platform.Linux)
	f.opts.Asker = prompt.Fixed(true)

	pure := filepath.Join(f.cfg.WorkingCopyPath(), f.cfg.GPU.PureModule)
	touch(t, pure)

	require.NoError(t, f.provisioner().ApplyGPUVariant(context.Background(), "S2L"))
	require.Empty(t, f.fake.Calls())
	require.True(t, exists(pure))
}

// TestApplyGPUVariant_InstallFails keeps both builds when pip fails.
func TestApplyGPUVariant_InstallFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, platform.Linux)
	f.opts.Asker = prompt.Fixed(true)
	f.fake.OnExit(python+" -m pip uninstall torch -y", 1, "")

	root := f.cfg.WorkingCopyPath()
	pure := filepath.Join(root, f.cfg.GPU.PureModule)
	compiled := filepath.Join(root, f.cfg.GPU.CompiledModule)
	touch(t, pure)
	touch(t, compiled)

	err := f.provisioner().ApplyGPUVariant(context.Background(), "S2L")
	require.ErrorIs(t, err, common.ErrSetupFailed)
	require.True(t, exists(pure))
	require.True(t, exists(compiled))
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}

	return s
}
