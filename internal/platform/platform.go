// Package platform maps the host operating system to the installer commands
// and Miniconda file layout the bootstrapper relies on.
package platform

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
)

// OS is a supported operating system family.
type OS string

// Supported operating systems.
const (
	Linux   OS = "linux"
	Darwin  OS = "darwin"
	Windows OS = "windows"
)

// ErrUnsupportedOS indicates the current OS has no installer mapping.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// Detect returns the OS family of the running binary.
func Detect() (OS, error) {
	return Parse(runtime.GOOS)
}

// Parse maps a GOOS value to an OS family.
func Parse(goos string) (OS, error) {
	osName := strings.ToLower(goos)

	switch {
	case strings.Contains(osName, "linux"):
		return Linux, nil
	case strings.Contains(osName, "darwin"):
		return Darwin, nil
	case strings.Contains(osName, "windows"):
		return Windows, nil
	default:
		return "", fmt.Errorf("%s: %w", goos, ErrUnsupportedOS)
	}
}

// SupportsCUDA reports whether the GPU library variant can be offered.
func (o OS) SupportsCUDA() bool {
	return o != Darwin
}

// Layout is where Miniconda and its environments live on disk.
type Layout struct {
	os   OS
	root string
}

// DefaultRoot is %USERPROFILE%\miniconda3 on Windows and ~/miniconda3 elsewhere.
func DefaultRoot() (string, error) {
	home, err := homeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, "miniconda3"), nil
}

// Locate picks the Miniconda installation to use. A configured root always
// wins. Otherwise the default root is used when its conda exists, then the
// installation owning the conda found by lookPath (package managers such as
// Homebrew install outside the home directory), and finally the default root
// again so a missing conda can be installed there.
func Locate(o OS, configured, defaultRoot string, lookPath func(file string) (string, error)) *Layout {
	if configured != "" {
		return &Layout{os: o, root: configured}
	}

	layout := &Layout{os: o, root: defaultRoot}
	if _, err := os.Stat(layout.Conda()); err == nil || lookPath == nil {
		return layout
	}

	found, err := lookPath("conda")
	if err != nil {
		return layout
	}

	if resolved, err := filepath.EvalSymlinks(found); err == nil {
		found = resolved
	}

	// conda lives in <root>/bin, <root>/condabin or <root>/Scripts.
	return &Layout{os: o, root: filepath.Dir(filepath.Dir(found))}
}

// Root is the Miniconda installation directory.
func (l *Layout) Root() string {
	return l.root
}

// Conda is the conda entry point.
func (l *Layout) Conda() string {
	if l.os == Windows {
		return filepath.Join(l.root, "condabin", "conda.bat")
	}

	return filepath.Join(l.root, "bin", "conda")
}

// Python is the interpreter of the named environment.
func (l *Layout) Python(env string) string {
	if l.os == Windows {
		return filepath.Join(l.root, "envs", env, "python.exe")
	}

	return filepath.Join(l.root, "envs", env, "bin", "python")
}

// InstallerURL is the Miniconda installer script for o and the host architecture.
func InstallerURL(o OS, arch string) (string, error) {
	const base = "https://repo.anaconda.com/miniconda/"

	suffix := map[string]string{
		"amd64": "x86_64",
		"arm64": "aarch64",
	}[arch]
	if suffix == "" {
		suffix = "x86_64"
	}

	switch o {
	case Linux:
		return base + "Miniconda3-latest-Linux-" + suffix + ".sh", nil
	case Darwin:
		if arch == "arm64" {
			suffix = "arm64"
		}

		return base + "Miniconda3-latest-MacOSX-" + suffix + ".sh", nil
	case Windows:
		return "", fmt.Errorf("installer script on %s: %w", o, ErrUnsupportedOS)
	default:
		return "", fmt.Errorf("%s: %w", o, ErrUnsupportedOS)
	}
}

// homeDir prefers the account's home from the user database, like the
// %USERPROFILE% layout conda uses, and falls back to $HOME.
func homeDir() (string, error) {
	if current, err := user.Current(); err == nil && current.HomeDir != "" {
		return current.HomeDir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return home, nil
}
