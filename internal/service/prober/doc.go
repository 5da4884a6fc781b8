// Package prober reports which external tools are usable on this machine
// and which conda environments already exist.
package prober
