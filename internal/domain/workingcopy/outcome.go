package workingcopy

import "fmt"

// Kind tags an Outcome.
type Kind int

// Outcome kinds of a single update attempt.
const (
	// NoCopy means there was nothing to update.
	NoCopy Kind = iota + 1
	// AlreadyCurrent means the synchronize step pulled nothing.
	AlreadyCurrent
	// Updated means the synchronize step changed the working copy.
	Updated
	// Failed means the synchronize step could not run or reported an error.
	Failed
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case NoCopy:
		return "no-copy"
	case AlreadyCurrent:
		return "already-current"
	case Updated:
		return "updated"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of one update attempt. Reason is set only for Failed.
type Outcome struct {
	Kind   Kind
	Reason error
}

// NoCopyOutcome returns the NoCopy outcome.
func NoCopyOutcome() Outcome {
	return Outcome{Kind: NoCopy}
}

// AlreadyCurrentOutcome returns the AlreadyCurrent outcome.
func AlreadyCurrentOutcome() Outcome {
	return Outcome{Kind: AlreadyCurrent}
}

// UpdatedOutcome returns the Updated outcome.
func UpdatedOutcome() Outcome {
	return Outcome{Kind: Updated}
}

// FailedOutcome returns a Failed outcome carrying reason.
func FailedOutcome(reason error) Outcome {
	return Outcome{Kind: Failed, Reason: reason}
}

// NeedsRelaunch reports whether the bootstrap must restart against the new code.
func (o Outcome) NeedsRelaunch() bool {
	return o.Kind == Updated
}

// String implements fmt.Stringer.
func (o Outcome) String() string {
	if o.Kind == Failed && o.Reason != nil {
		return fmt.Sprintf("%s: %v", o.Kind, o.Reason)
	}

	return o.Kind.String()
}
