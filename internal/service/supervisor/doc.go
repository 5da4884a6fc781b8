// Package supervisor decides whether the local working copy is stale, pulls
// upstream changes into it, and hands execution over to a fresh copy of the
// bootstrapper when anything changed.
//
// Tool failures during the freshness check are soft: they come back as a
// Failed outcome and bootstrapping continues. A failed relaunch is hard: the
// caller must stop, since continuing would run stale code against a
// half-updated working copy.
package supervisor
