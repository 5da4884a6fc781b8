//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import "errors"

var (
	// ErrAbsentResource marks an expected, non-fatal absence such as a missing working copy.
	ErrAbsentResource = errors.New("resource is absent")
	// ErrTransientToolFailure marks a tool that could not run or reported an error; the step is skipped.
	ErrTransientToolFailure = errors.New("tool invocation failed")
	// ErrFatalHandoff marks a relaunch that could not be performed; the program must stop.
	ErrFatalHandoff = errors.New("relaunch hand-off failed")
	// ErrOperatorCancellation marks an interrupt requested by the operator.
	ErrOperatorCancellation = errors.New("operation interrupted by user")
	// ErrSetupFailed marks an unrecoverable installer, clone or dependency failure.
	ErrSetupFailed = errors.New("setup failed")
	// ErrRestartRequired ends a run successfully after a tool was installed and PATH must be reloaded.
	ErrRestartRequired = errors.New("restart required")
)
