package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/camden-git/sitephotosync/media"
	"github.com/camden-git/sitephotosync/reconcile"
	"github.com/camden-git/sitephotosync/repository"
	"github.com/camden-git/sitephotosync/traversal"
)

// FormDriver operates the inspection form of one location. Calls apply to
// the form opened by the last OpenForm. Errors wrapping traversal.ErrSession
// mean the authenticated session is gone.
type FormDriver interface {
	// OpenForm opens the form of target for editing, or creates and fills
	// a new one when target.Form is FormNone.
	OpenForm(ctx context.Context, target traversal.Target) error
	// RemotePhotoCount returns the number of photos already attached.
	RemotePhotoCount(ctx context.Context) (int, error)
	// DownloadRemotePhotos saves every attached photo into dir.
	DownloadRemotePhotos(ctx context.Context, dir string) (int, error)
	// UploadPhoto attaches one photo and waits until the upload finished.
	UploadPhoto(ctx context.Context, path string) error
	// CloseForm leaves the form, saving it when save is set.
	CloseForm(ctx context.Context, save bool) error
}

// SessionKeeper keeps the remote session authenticated.
type SessionKeeper interface {
	EnsureSession(ctx context.Context) error
}

// Dispatcher fills the form of a location with its staged photos.
type Dispatcher struct {
	forms      FormDriver
	session    SessionKeeper
	archive    *media.Archive
	reconciler *reconcile.Reconciler
	stager     *reconcile.Stager
	uploads    repository.UploadRepositoryInterface
	log        *zap.Logger
}

func NewDispatcher(
	forms FormDriver,
	session SessionKeeper,
	archive *media.Archive,
	reconciler *reconcile.Reconciler,
	uploads repository.UploadRepositoryInterface,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		forms:      forms,
		session:    session,
		archive:    archive,
		reconciler: reconciler,
		stager:     reconcile.NewStager(archive, logger),
		uploads:    uploads,
		log:        logger.Named("dispatch"),
	}
}

// Dispatch reconciles the staged photos of target against the remote form
// and uploads the survivors. Each uploaded photo moves to the remote folder
// of its location and is recorded. A location at capacity only gets its
// remote photos archived and recorded. A session failure abandons the
// dispatch; photos not yet uploaded stay staged.
func (d *Dispatcher) Dispatch(ctx context.Context, target traversal.Target) (traversal.Outcome, error) {
	code := target.Code.String()
	log := d.log.With(zap.String("code", code), zap.Stringer("form", target.Form))

	if d.session != nil {
		if err := d.session.EnsureSession(ctx); err != nil {
			if errors.Is(err, traversal.ErrSession) {
				return traversal.Outcome{}, err
			}
			return traversal.Outcome{}, &traversal.SessionError{Op: "ensure session", Err: err}
		}
	}

	if err := d.forms.OpenForm(ctx, target); err != nil {
		return traversal.Outcome{}, failure(code, "open form", err)
	}
	open := true
	defer func() {
		if open {
			if err := d.forms.CloseForm(ctx, false); err != nil {
				log.Warn("failed to close form", zap.Error(err))
			}
		}
	}()

	remoteCount, err := d.forms.RemotePhotoCount(ctx)
	if err != nil {
		return traversal.Outcome{}, failure(code, "read photo count", err)
	}

	local := target.Bucket.Photos(code)
	plan, err := d.reconciler.Reconcile(ctx, code, local, remoteCount, reconcile.RemoteSourceFunc(d.fetchRemote))
	if err != nil {
		return traversal.Outcome{}, failure(code, "reconcile", err)
	}
	if _, err := d.stager.Apply(target.Bucket, plan); err != nil {
		log.Warn("some photos could not be staged", zap.Error(err))
	}

	if plan.OverCapacity {
		// the remote set is still archived and recorded
		if _, err := d.fetchRemote(ctx, code); err != nil {
			if errors.Is(err, traversal.ErrSession) {
				return traversal.Outcome{}, err
			}
			log.Warn("remote photos could not be archived", zap.Error(err))
		}
		return traversal.DeferredOverQuota(code), nil
	}

	uploaded := 0
	var unarchived []string
	for _, p := range plan.ToUpload {
		if err := d.forms.UploadPhoto(ctx, p.Path); err != nil {
			return traversal.Outcome{}, failure(code, fmt.Sprintf("upload %s", p.Filename), err)
		}
		uploaded++
		meta, err := media.ReadMetadata(p.Path)
		if err != nil {
			log.Debug("no metadata for photo", zap.String("photo", p.Filename), zap.Error(err))
		}
		if err := d.archive.Relocate(target.Bucket, code, p, media.RoleRemote); err != nil {
			log.Error("uploaded photo could not be archived", zap.String("photo", p.Filename), zap.Error(err))
			unarchived = append(unarchived, p.Filename)
		}
		d.record(code, p, meta)
		log.Info("uploaded photo", zap.String("photo", p.Filename), zap.Int("uploaded", uploaded), zap.Int("of", len(plan.ToUpload)))
	}

	open = false
	if err := d.forms.CloseForm(ctx, true); err != nil {
		return traversal.Outcome{}, failure(code, "save form", err)
	}
	log.Info("dispatched location", zap.Int("uploaded", uploaded), zap.Int("remote", remoteCount))
	out := traversal.Uploaded(code, uploaded)
	if len(unarchived) > 0 {
		out.Reason = "uploaded but not archived: " + strings.Join(unarchived, ", ")
	}
	return out, nil
}

// fetchRemote downloads the photos attached to the open form, archives them
// in the remote folder of code and records them.
func (d *Dispatcher) fetchRemote(ctx context.Context, code string) ([]*media.PhotoRecord, error) {
	dir, cleanup, err := d.archive.NewDownload(code)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	n, err := d.forms.DownloadRemotePhotos(ctx, dir)
	if err != nil {
		return nil, err
	}
	records, err := d.archive.ImportRemote(code, dir)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		meta, _ := media.ReadMetadata(rec.Path)
		d.record(code, rec, meta)
	}
	d.log.Debug("fetched remote photos", zap.String("code", code), zap.Int("downloaded", n), zap.Int("archived", len(records)))
	return records, nil
}

func (d *Dispatcher) record(code string, p *media.PhotoRecord, meta *media.Metadata) {
	if d.uploads == nil {
		return
	}
	if _, err := d.uploads.RecordUpload(code, d.archive.Subfolder(media.RoleRemote), p.Filename, p.SizeBytes, meta); err != nil {
		d.log.Error("failed to record upload", zap.String("code", code), zap.String("photo", p.Filename), zap.Error(err))
	}
}

// failure passes session errors through and wraps everything else as a
// failed dispatch of code.
func failure(code, reason string, err error) error {
	if errors.Is(err, traversal.ErrSession) {
		return err
	}
	return &traversal.DispatchError{Code: code, Reason: reason, Err: err}
}
