package traversal

import (
	"context"

	"github.com/camden-git/sitephotosync/location"
	"github.com/camden-git/sitephotosync/media"
)

// FormState is the state of a location's inspection form.
type FormState int

const (
	// FormNone means the location has no form yet and one must be created.
	FormNone FormState = iota
	FormEditable
	FormCompleted
)

func (s FormState) String() string {
	switch s {
	case FormEditable:
		return "editable"
	case FormCompleted:
		return "completed"
	default:
		return "none"
	}
}

// PageDriver is the view of the remote location table the controller walks.
// Rows are addressed by their position in the currently rendered table.
// Every call is bounded by the driver's own timeouts; a timeout comes back
// as Absent or Failed, never as a hang.
type PageDriver interface {
	// ReadCellText returns the title of row, e.g. "Block C", "Level 01" or
	// "Plot 07". Absent means there is no such row.
	ReadCellText(ctx context.Context, row int) Probe[string]
	// ClickExpand opens a Block or Level row.
	ClickExpand(ctx context.Context, row int) error
	// LocationFormState probes the form cell of a Plot row. Absent means
	// there is no form yet.
	LocationFormState(ctx context.Context, row int) Probe[FormState]
}

// Target is one location handed to the Dispatcher.
type Target struct {
	Code   location.Code
	Row    int
	Form   FormState
	Bucket *media.Bucket
}

// Dispatcher fills the form of a single location. FormNone means create,
// FormEditable means edit. It returns OutcomeUploaded or
// OutcomeDeferredOverQuota on success; errors wrapping ErrSession stop the
// traversal, any other error is recorded as a failed dispatch.
type Dispatcher interface {
	Dispatch(ctx context.Context, target Target) (Outcome, error)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, target Target) (Outcome, error)

func (f DispatcherFunc) Dispatch(ctx context.Context, target Target) (Outcome, error) {
	return f(ctx, target)
}
