// Package config defines the bootstrap settings and provides helpers to
// load, validate and save them in YAML format.
//
// Every field has a default, so the settings file is optional; it exists to
// point the bootstrapper at a fork, pin another interpreter version or move
// the Miniconda installation.
package config
