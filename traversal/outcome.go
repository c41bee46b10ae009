package traversal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutcomeKind is the per-location result reported to the operator.
type OutcomeKind string

const (
	OutcomeUploaded             OutcomeKind = "uploaded"
	OutcomeSkippedCompleted     OutcomeKind = "skipped-completed"
	OutcomeSkippedNoPhotos      OutcomeKind = "skipped-no-photos"
	OutcomeDeferredOverQuota    OutcomeKind = "deferred-over-quota"
	OutcomeClassificationFailed OutcomeKind = "classification-failed"
	OutcomeDispatchFailed       OutcomeKind = "dispatch-failed"
)

// Outcome is what happened to one location. Uploaded is set for
// OutcomeUploaded, Reason for OutcomeDispatchFailed and
// OutcomeClassificationFailed. An OutcomeUploaded with a Reason completed
// with photos left unarchived.
type Outcome struct {
	Code     string
	Kind     OutcomeKind
	Uploaded int
	Reason   string
	Row      int
}

func Uploaded(code string, n int) Outcome {
	return Outcome{Code: code, Kind: OutcomeUploaded, Uploaded: n}
}

func DeferredOverQuota(code string) Outcome {
	return Outcome{Code: code, Kind: OutcomeDeferredOverQuota}
}

func DispatchFailed(code, reason string) Outcome {
	return Outcome{Code: code, Kind: OutcomeDispatchFailed, Reason: reason}
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeUploaded:
		if o.Reason != "" {
			return fmt.Sprintf("%s: uploaded(%d, %s)", o.Code, o.Uploaded, o.Reason)
		}
		return fmt.Sprintf("%s: uploaded(%d)", o.Code, o.Uploaded)
	case OutcomeDispatchFailed, OutcomeClassificationFailed:
		return fmt.Sprintf("%s: %s(%s)", o.Code, o.Kind, o.Reason)
	default:
		return fmt.Sprintf("%s: %s", o.Code, o.Kind)
	}
}

// succeeded reports whether the outcome completed a dispatch.
func (o Outcome) succeeded() bool {
	return o.Kind == OutcomeUploaded || o.Kind == OutcomeDeferredOverQuota
}

// Report collects the outcomes of one run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome

	// Rows is the number of rows visited.
	Rows int
	// EndOfTable is set when the traversal ran until no row was present.
	EndOfTable bool
	// ReadFailures counts rows that could not be read.
	ReadFailures int
}

func NewReport() *Report {
	return &Report{RunID: uuid.NewString(), StartedAt: time.Now()}
}

func (r *Report) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Count returns how many outcomes have kind.
func (r *Report) Count(kind OutcomeKind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

// TotalUploaded sums photos uploaded across the run.
func (r *Report) TotalUploaded() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.Uploaded
	}
	return n
}

// Failures lists dispatch and classification failures.
func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Kind == OutcomeDispatchFailed || o.Kind == OutcomeClassificationFailed {
			out = append(out, o)
		}
	}
	return out
}
