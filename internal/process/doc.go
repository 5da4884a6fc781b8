// Package process runs external commands for the bootstrapper.
//
// Runner distinguishes a command that could not be started (an error) from a
// command that ran and exited non-zero (a Result with ExitCode != 0). Start
// launches a detached process whose lifecycle the caller gives up.
package process
