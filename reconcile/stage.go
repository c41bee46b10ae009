package reconcile

import (
	"errors"

	"go.uber.org/zap"

	"github.com/camden-git/sitephotosync/media"
)

// Stager carries out the local side of a Plan: discarded photos go to
// quarantine, deferred photos to the location's deferred folder. A photo
// whose move fails stays in the bucket.
type Stager struct {
	archive *media.Archive
	log     *zap.Logger
}

func NewStager(archive *media.Archive, logger *zap.Logger) *Stager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stager{archive: archive, log: logger.Named("reconcile.stage")}
}

// StageResult counts what Apply moved.
type StageResult struct {
	Quarantined int
	Deferred    int
	Held        int
}

// Apply stages plan against bucket. Unreadable photos that were deferred
// while under capacity stay in the new-photos folder for the next run; they
// only leave the bucket.
func (s *Stager) Apply(bucket *media.Bucket, plan Plan) (StageResult, error) {
	var res StageResult
	var errs []error

	for _, p := range plan.ToDiscard {
		if err := s.archive.Quarantine(bucket, plan.Code, p); err != nil {
			errs = append(errs, err)
			continue
		}
		res.Quarantined++
	}

	for _, p := range plan.ToDefer {
		if !plan.OverCapacity {
			bucket.Remove(plan.Code, p)
			res.Held++
			continue
		}
		if err := s.archive.Relocate(bucket, plan.Code, p, media.RoleDeferred); err != nil {
			errs = append(errs, err)
			continue
		}
		res.Deferred++
	}

	if res.Quarantined+res.Deferred+res.Held > 0 {
		s.log.Info("staged location",
			zap.String("code", plan.Code),
			zap.Int("quarantined", res.Quarantined),
			zap.Int("deferred", res.Deferred),
			zap.Int("held", res.Held))
	}
	return res, errors.Join(errs...)
}
