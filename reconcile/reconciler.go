package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/camden-git/sitephotosync/media"
)

// DefaultCapacity is the maximum number of photos the remote form accepts
// per location.
const DefaultCapacity = 30

// RemoteSource fetches the photos already uploaded for a location. It is
// only consulted while the location is under capacity.
type RemoteSource interface {
	FetchRemote(ctx context.Context, code string) ([]*media.PhotoRecord, error)
}

// RemoteSourceFunc adapts a function to RemoteSource.
type RemoteSourceFunc func(ctx context.Context, code string) ([]*media.PhotoRecord, error)

func (f RemoteSourceFunc) FetchRemote(ctx context.Context, code string) ([]*media.PhotoRecord, error) {
	return f(ctx, code)
}

// Match pairs a discarded local photo with the remote photo it duplicates.
type Match struct {
	Local  *media.PhotoRecord
	Remote *media.PhotoRecord
}

// Plan is the routing decision for one location. Every local photo appears
// in exactly one of ToUpload, ToDiscard and ToDefer; ToUpload keeps input
// order.
type Plan struct {
	Code         string
	Capacity     int
	RemoteCount  int
	OverCapacity bool

	ToUpload  []*media.PhotoRecord
	ToDiscard []*media.PhotoRecord
	ToDefer   []*media.PhotoRecord

	Matches []Match
	Remote  []*media.PhotoRecord

	// ReadFailures lists photos that could not be fingerprinted. Unreadable
	// local photos are deferred, unreadable remote photos are ignored.
	ReadFailures []error
}

// Total is the number of local photos routed by the plan.
func (p Plan) Total() int {
	return len(p.ToUpload) + len(p.ToDiscard) + len(p.ToDefer)
}

// Reconciler decides which new photos of a location may be uploaded.
type Reconciler struct {
	detector media.Detector
	capacity int
	log      *zap.Logger
}

func New(detector media.Detector, capacity int, logger *zap.Logger) *Reconciler {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{detector: detector, capacity: capacity, log: logger.Named("reconcile")}
}

func (r *Reconciler) Capacity() int { return r.capacity }

// Reconcile routes local photos of code. At or over capacity everything is
// deferred without looking at the remote set. Under capacity each local
// photo is compared with the remote photos; the first match discards it.
// Remote state is never changed.
func (r *Reconciler) Reconcile(ctx context.Context, code string, local []*media.PhotoRecord, remoteCount int, remote RemoteSource) (Plan, error) {
	plan := Plan{
		Code:        code,
		Capacity:    r.capacity,
		RemoteCount: remoteCount,
	}

	if remoteCount >= r.capacity {
		plan.OverCapacity = true
		plan.ToDefer = append(plan.ToDefer, local...)
		r.log.Info("location at capacity, deferring all new photos",
			zap.String("code", code),
			zap.Int("remote", remoteCount),
			zap.Int("capacity", r.capacity),
			zap.Int("deferred", len(local)))
		return plan, nil
	}

	if remote != nil && len(local) > 0 {
		photos, err := remote.FetchRemote(ctx, code)
		if err != nil {
			return Plan{}, fmt.Errorf("failed to fetch remote photos for %s: %w", code, err)
		}
		plan.Remote = photos
	}

	for _, p := range local {
		if err := ctx.Err(); err != nil {
			return Plan{}, err
		}
		idx, failures, err := r.detector.FirstMatch(p, plan.Remote)
		plan.ReadFailures = appendUnique(plan.ReadFailures, failures...)
		switch {
		case err != nil:
			r.log.Warn("cannot fingerprint local photo, deferring", zap.String("code", code), zap.String("photo", p.Filename), zap.Error(err))
			plan.ReadFailures = append(plan.ReadFailures, err)
			plan.ToDefer = append(plan.ToDefer, p)
		case idx >= 0:
			r.log.Info("local photo already uploaded",
				zap.String("code", code),
				zap.String("photo", p.Filename),
				zap.String("remote", plan.Remote[idx].Filename))
			plan.ToDiscard = append(plan.ToDiscard, p)
			plan.Matches = append(plan.Matches, Match{Local: p, Remote: plan.Remote[idx]})
		default:
			plan.ToUpload = append(plan.ToUpload, p)
		}
	}

	r.log.Info("reconciled location",
		zap.String("code", code),
		zap.Int("remote", remoteCount),
		zap.Int("upload", len(plan.ToUpload)),
		zap.Int("discard", len(plan.ToDiscard)),
		zap.Int("defer", len(plan.ToDefer)))
	return plan, nil
}

// appendUnique appends errors whose message is not already present; the
// same unreadable remote photo is reported once per local photo otherwise.
func appendUnique(list []error, errs ...error) []error {
	for _, err := range errs {
		dup := false
		for _, have := range list {
			if have.Error() == err.Error() {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, err)
		}
	}
	return list
}
