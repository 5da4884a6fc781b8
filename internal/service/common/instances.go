//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-ps"
)

// Instance is another process running the same executable.
type Instance struct {
	PID  int
	PPID int
}

// ProcessLister lists running processes; ps.Processes in production.
type ProcessLister func() ([]ps.Process, error)

// OtherInstances returns live processes whose executable matches name,
// excluding this process and its parent. A relaunched child therefore does
// not report the parent that is still exiting.
func OtherInstances(list ProcessLister, name string) ([]Instance, error) {
	if list == nil {
		list = ps.Processes
	}

	processes, err := list()
	if err != nil {
		return nil, err
	}

	self, parent := os.Getpid(), os.Getppid()
	want := executableName(name)

	var found []Instance

	for _, p := range processes {
		if p.Pid() == self || p.Pid() == parent {
			continue
		}

		if executableName(p.Executable()) != want {
			continue
		}

		found = append(found, Instance{PID: p.Pid(), PPID: p.PPid()})
	}

	return found, nil
}

// executableName strips directories and a Windows ".exe" suffix.
func executableName(name string) string {
	base := filepath.Base(name)

	return strings.TrimSuffix(strings.ToLower(base), ".exe")
}
