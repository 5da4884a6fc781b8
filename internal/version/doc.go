// Package version exposes build metadata for the bootstrapper.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags. Short and Full render them for the `version` subcommand.
package version
