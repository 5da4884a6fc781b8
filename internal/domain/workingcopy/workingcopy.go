package workingcopy

import (
	"errors"
	"fmt"
	"os"
)

// Freshness is what is known about a working copy relative to its upstream.
type Freshness int

// Freshness values.
const (
	// FreshnessUnknown holds until the copy is probed, and after a failed probe.
	FreshnessUnknown Freshness = iota
	// FreshnessCurrent means the upstream had nothing new.
	FreshnessCurrent
	// FreshnessUpdated means changes were pulled during this run.
	FreshnessUpdated
)

// String implements fmt.Stringer.
func (f Freshness) String() string {
	switch f {
	case FreshnessCurrent:
		return "current"
	case FreshnessUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// WorkingCopy is a local clone of the application repository.
type WorkingCopy struct {
	// Root is the clone directory.
	Root string
	// Exists records whether Root was present when discovered.
	Exists bool
	// Freshness is FreshnessUnknown until an Outcome is applied.
	Freshness Freshness
}

// Discover stats root without creating anything.
func Discover(root string) (*WorkingCopy, error) {
	wc := &WorkingCopy{Root: root}

	_, err := os.Stat(root)
	switch {
	case err == nil:
		wc.Exists = true
	case errors.Is(err, os.ErrNotExist):
	default:
		return wc, fmt.Errorf("stat working copy: %w", err)
	}

	return wc, nil
}

// Apply records the freshness implied by an outcome.
func (wc *WorkingCopy) Apply(o Outcome) {
	switch o.Kind {
	case NoCopy:
		wc.Exists = false
		wc.Freshness = FreshnessUnknown
	case AlreadyCurrent:
		wc.Freshness = FreshnessCurrent
	case Updated:
		wc.Freshness = FreshnessUpdated
	default:
		wc.Freshness = FreshnessUnknown
	}
}
