package traversal

import "fmt"

// ProbeState is the outcome class of a page probe.
type ProbeState int

const (
	// ProbeAbsent means the probed element is not there.
	ProbeAbsent ProbeState = iota
	ProbePresent
	// ProbeFailed means the element could not be read in time or at all.
	ProbeFailed
)

func (s ProbeState) String() string {
	switch s {
	case ProbePresent:
		return "present"
	case ProbeFailed:
		return "failed"
	default:
		return "absent"
	}
}

// Probe is the result of asking the page for something. The zero value is
// an Absent probe.
type Probe[T any] struct {
	state ProbeState
	value T
	err   error
}

func Present[T any](v T) Probe[T] {
	return Probe[T]{state: ProbePresent, value: v}
}

func Absent[T any]() Probe[T] {
	return Probe[T]{}
}

// Failed wraps err. A nil err still yields a failed probe.
func Failed[T any](err error) Probe[T] {
	if err == nil {
		err = fmt.Errorf("probe failed")
	}
	return Probe[T]{state: ProbeFailed, err: err}
}

func (p Probe[T]) State() ProbeState { return p.state }

// Get returns the value and whether the probe is Present.
func (p Probe[T]) Get() (T, bool) {
	return p.value, p.state == ProbePresent
}

func (p Probe[T]) IsAbsent() bool { return p.state == ProbeAbsent }

// Err is non-nil only for failed probes.
func (p Probe[T]) Err() error { return p.err }

func (p Probe[T]) String() string {
	switch p.state {
	case ProbePresent:
		return fmt.Sprintf("present(%v)", p.value)
	case ProbeFailed:
		return fmt.Sprintf("failed(%v)", p.err)
	default:
		return "absent"
	}
}
