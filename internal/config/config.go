package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds everything the bootstrap pipeline needs to know up front.
// It replaces ambient state (working directory, PATH tweaks) with explicit values.
type Config struct {
	// EnvironmentName is the conda environment to create and run the app in.
	EnvironmentName string `yaml:"environment"`
	// WorkingCopyDir is the clone directory, relative to the working directory unless absolute.
	WorkingCopyDir string `yaml:"working_copy"`
	// RepositoryURL is cloned when the working copy is absent.
	RepositoryURL string `yaml:"repository_url"`
	// PythonVersion is pinned when the environment is created.
	PythonVersion string `yaml:"python_version"`
	// MinicondaRoot overrides the per-OS default Miniconda location.
	MinicondaRoot string `yaml:"miniconda_root,omitempty"`
	// MinicondaInstallerURL overrides the per-OS installer script URL (Linux only).
	MinicondaInstallerURL string `yaml:"miniconda_installer_url,omitempty"`
	// MinicondaInstallerSHA256 is an optional hex checksum of the installer script.
	MinicondaInstallerSHA256 string `yaml:"miniconda_installer_sha256,omitempty"`
	// RequirementsFile is installed with pip after cloning.
	RequirementsFile string `yaml:"requirements_file"`
	// EntryPoint is the script started by the launcher.
	EntryPoint string `yaml:"entry_point"`
	// GPU describes the optional accelerated library swap.
	GPU GPU `yaml:"gpu"`
	// MinGitVersion and MinCondaVersion only produce warnings when not met.
	MinGitVersion   string `yaml:"min_git_version,omitempty"`
	MinCondaVersion string `yaml:"min_conda_version,omitempty"`
	// WorkDir is the directory the working copy lives in. Set at runtime, not persisted.
	WorkDir string `yaml:"-"`
}

// GPU configures the CUDA variant of the numeric library.
type GPU struct {
	// Package is the pip package to replace.
	Package string `yaml:"package"`
	// IndexURL serves the accelerated wheels.
	IndexURL string `yaml:"index_url"`
	// PureModule is kept for CPU runs and removed when the GPU variant is chosen.
	PureModule string `yaml:"pure_module"`
	// CompiledModule is kept for GPU runs and removed otherwise.
	CompiledModule string `yaml:"compiled_module"`
}

const (
	// DefaultConfigFilename is the settings file looked up when --config is not given.
	DefaultConfigFilename = "s2l-loader.yaml"

	// DefaultEnvironmentName is used when no positional argument is given.
	DefaultEnvironmentName = "S2L"

	// DefaultFilePermissions is the permission of written config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errFieldRequired is returned when a mandatory field is empty.
	errFieldRequired = errors.New("field must be provided")
	// errInvalidChecksum is returned for a malformed installer checksum.
	errInvalidChecksum = errors.New("invalid sha256 checksum")
)

// Default returns the stock S2L settings.
func Default() *Config {
	return &Config{
		EnvironmentName:  DefaultEnvironmentName,
		WorkingCopyDir:   "S2L",
		RepositoryURL:    "https://github.com/python313again/S2L",
		PythonVersion:    "3.11.9",
		RequirementsFile: "requirements.txt",
		EntryPoint:       "main.py",
		GPU: GPU{
			Package:        "torch",
			IndexURL:       "https://download.pytorch.org/whl/cu124",
			PureModule:     filepath.Join("libs", "roi_visualizer.py"),
			CompiledModule: filepath.Join("libs", "roi_visualizer.cp311-win_amd64.pyd"),
		},
	}
}

// Load reads settings from path on top of Default. A missing file falls
// back to the defaults unless required is set. An empty path means
// DefaultConfigFilename.
func Load(path string, required bool) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
		// Defaults only.
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and formats, filling GPU defaults left empty.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	required := map[string]string{
		"environment":       cfg.EnvironmentName,
		"working_copy":      cfg.WorkingCopyDir,
		"repository_url":    cfg.RepositoryURL,
		"python_version":    cfg.PythonVersion,
		"requirements_file": cfg.RequirementsFile,
		"entry_point":       cfg.EntryPoint,
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s: %w", name, errFieldRequired)
		}
	}

	if _, err := url.ParseRequestURI(cfg.RepositoryURL); err != nil {
		return fmt.Errorf("invalid repository URL: %w", err)
	}

	if cfg.MinicondaInstallerURL != "" {
		if _, err := url.ParseRequestURI(cfg.MinicondaInstallerURL); err != nil {
			return fmt.Errorf("invalid installer URL: %w", err)
		}
	}

	if cfg.MinicondaInstallerSHA256 != "" {
		sum, err := hex.DecodeString(cfg.MinicondaInstallerSHA256)
		if err != nil || len(sum) != 32 {
			return fmt.Errorf("%q: %w", cfg.MinicondaInstallerSHA256, errInvalidChecksum)
		}
	}

	defaults := Default().GPU
	if cfg.GPU.Package == "" {
		cfg.GPU.Package = defaults.Package
	}

	if cfg.GPU.IndexURL == "" {
		cfg.GPU.IndexURL = defaults.IndexURL
	}

	if cfg.GPU.PureModule == "" {
		cfg.GPU.PureModule = defaults.PureModule
	}

	if cfg.GPU.CompiledModule == "" {
		cfg.GPU.CompiledModule = defaults.CompiledModule
	}

	return nil
}

// InstallerChecksum decodes MinicondaInstallerSHA256, returning nil when unset.
func (c *Config) InstallerChecksum() []byte {
	if c.MinicondaInstallerSHA256 == "" {
		return nil
	}

	sum, err := hex.DecodeString(c.MinicondaInstallerSHA256)
	if err != nil {
		return nil
	}

	return sum
}

// WorkingCopyPath resolves the working copy against WorkDir.
func (c *Config) WorkingCopyPath() string {
	if filepath.IsAbs(c.WorkingCopyDir) {
		return filepath.Clean(c.WorkingCopyDir)
	}

	return filepath.Join(c.WorkDir, c.WorkingCopyDir)
}
