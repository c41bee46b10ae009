package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/camden-git/sitephotosync/location"
)

// Role names one of the per-location photo folders.
type Role string

const (
	RoleNew        Role = "new"
	RoleRemote     Role = "remote"
	RoleDuplicated Role = "duplicated"
	RoleDeferred   Role = "deferred"
)

const (
	DefaultNewPhotosSubDir  = "2.3/new_photos_send_to_asite"
	DefaultOnRemoteSubDir   = "2.3/photos_on_asite"
	DefaultDuplicatedSubDir = "2.3/duplicated_photos"
	DefaultDeferredSubDir   = "2.3/photos_not_on_asite_because_in_2_3_already_30_photos"
)

// Layout holds the folder of each role relative to a location folder.
type Layout struct {
	NewPhotos  string
	OnRemote   string
	Duplicated string
	Deferred   string
}

func DefaultLayout() Layout {
	return Layout{
		NewPhotos:  DefaultNewPhotosSubDir,
		OnRemote:   DefaultOnRemoteSubDir,
		Duplicated: DefaultDuplicatedSubDir,
		Deferred:   DefaultDeferredSubDir,
	}
}

func (l Layout) roles() map[Role]string {
	return map[Role]string{
		RoleNew:        l.NewPhotos,
		RoleRemote:     l.OnRemote,
		RoleDuplicated: l.Duplicated,
		RoleDeferred:   l.Deferred,
	}
}

// Archive is the on-disk photo archive: one folder per location code under
// basePath, each with role subfolders, plus a global quarantine folder for
// discarded duplicates and a download folder for remote copies.
type Archive struct {
	basePath      string
	subDirs       map[Role]string
	quarantineDir string
	downloadDir   string
	log           *zap.Logger
}

// NewArchive creates the archive rooted at basePath.
func NewArchive(basePath string, layout Layout, quarantineDir, downloadDir string, logger *zap.Logger) (*Archive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base archive path '%s': %w", basePath, err)
	}
	if err := os.MkdirAll(absBasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base archive directory '%s': %w", absBasePath, err)
	}

	subDirs := make(map[Role]string)
	for role, sub := range layout.roles() {
		if sub == "" {
			return nil, fmt.Errorf("archive layout: empty subdirectory for role %q", role)
		}
		clean := filepath.Clean(filepath.FromSlash(sub))
		if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("invalid subdirectory configuration: '%s' resolves outside the location folder", sub)
		}
		subDirs[role] = clean
	}

	a := &Archive{
		basePath:      absBasePath,
		subDirs:       subDirs,
		quarantineDir: quarantineDir,
		downloadDir:   downloadDir,
		log:           logger.Named("media.archive"),
	}
	for _, dir := range []string{quarantineDir, downloadDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory '%s': %w", dir, err)
		}
	}

	a.log.Info("initialized archive", zap.String("base", absBasePath))
	return a, nil
}

func (a *Archive) BasePath() string      { return a.basePath }
func (a *Archive) QuarantineDir() string { return a.quarantineDir }
func (a *Archive) DownloadDir() string   { return a.downloadDir }

// Subfolder returns the slash-separated subfolder of role, as recorded in
// the upload table.
func (a *Archive) Subfolder(role Role) string {
	return filepath.ToSlash(a.subDirs[role])
}

// LocationDir returns the folder of a location code.
func (a *Archive) LocationDir(code string) (string, error) {
	if _, err := location.ParseCode(code); err != nil {
		return "", err
	}
	dir := filepath.Join(a.basePath, code)
	if !strings.HasPrefix(filepath.Clean(dir), a.basePath) {
		return "", fmt.Errorf("location '%s' resolves outside base path", code)
	}
	return dir, nil
}

// Dir returns the role folder of a location without creating it.
func (a *Archive) Dir(code string, role Role) (string, error) {
	sub, ok := a.subDirs[role]
	if !ok {
		return "", fmt.Errorf("unknown archive role %q", role)
	}
	locDir, err := a.LocationDir(code)
	if err != nil {
		return "", err
	}
	return filepath.Join(locDir, sub), nil
}

// EnsureDir creates the role folder of a location if it doesn't exist.
func (a *Archive) EnsureDir(code string, role Role) (string, error) {
	dir, err := a.Dir(code, role)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to ensure directory '%s': %w", dir, err)
	}
	return dir, nil
}

// CollectBuckets stages every photo found in the new-photos folder of each
// location folder. Folders whose name is not a location code are ignored.
func (a *Archive) CollectBuckets() (*Bucket, error) {
	entries, err := os.ReadDir(a.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive %s: %w", a.basePath, err)
	}

	bucket := NewBucket()
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := location.ParseCode(e.Name()); err != nil {
			continue
		}
		dir, err := a.Dir(e.Name(), RoleNew)
		if err != nil {
			return nil, err
		}
		paths, err := ListPhotos(dir)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			rec, err := NewPhotoRecord(p)
			if err != nil {
				a.log.Warn("skipping photo", zap.String("path", p), zap.Error(err))
				continue
			}
			bucket.Add(e.Name(), rec)
		}
	}

	a.log.Info("collected buckets", zap.Int("locations", len(bucket.Codes())), zap.Int("photos", bucket.Len()))
	return bucket, nil
}

// IntakeStats summarises an Intake pass.
type IntakeStats struct {
	Moved    map[string]int
	Unsorted int
	Skipped  []string
}

// Intake moves photos from sortedDir/<code>/ into each location's new-photos
// folder. The unsorted folder and folders that are not codes stay put.
func (a *Archive) Intake(sortedDir string) (IntakeStats, error) {
	stats := IntakeStats{Moved: make(map[string]int)}

	entries, err := os.ReadDir(sortedDir)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, fmt.Errorf("failed to read sorted directory %s: %w", sortedDir, err)
	}

	var errs []error
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		srcDir := filepath.Join(sortedDir, e.Name())
		if e.Name() == location.UnsortedFolder {
			paths, _ := ListImages(srcDir)
			stats.Unsorted += len(paths)
			continue
		}
		if _, err := location.ParseCode(e.Name()); err != nil {
			stats.Skipped = append(stats.Skipped, e.Name())
			continue
		}
		dst, err := a.EnsureDir(e.Name(), RoleNew)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		paths, err := ListImages(srcDir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, p := range paths {
			if _, err := MoveInto(p, dst); err != nil {
				errs = append(errs, err)
				continue
			}
			stats.Moved[e.Name()]++
		}
	}

	return stats, errors.Join(errs...)
}

// Relocate moves a staged photo into another role folder of its location
// and removes it from the bucket. On failure the photo stays staged.
func (a *Archive) Relocate(b *Bucket, code string, p *PhotoRecord, role Role) error {
	dir, err := a.EnsureDir(code, role)
	if err != nil {
		return err
	}
	return a.moveOut(b, code, p, dir)
}

// Quarantine moves a staged photo to the global quarantine folder.
func (a *Archive) Quarantine(b *Bucket, code string, p *PhotoRecord) error {
	if a.quarantineDir == "" {
		return errors.New("archive: no quarantine directory configured")
	}
	return a.moveOut(b, code, p, a.quarantineDir)
}

func (a *Archive) moveOut(b *Bucket, code string, p *PhotoRecord, dir string) error {
	newPath, err := MoveInto(p.Path, dir)
	if err != nil {
		return err
	}
	a.log.Debug("moved photo", zap.String("code", code), zap.String("from", p.Path), zap.String("to", newPath))
	p.relocated(newPath)
	if b != nil {
		b.Remove(code, p)
	}
	return nil
}

// NewDownload creates an empty folder under the download directory for the
// remote photos of code. The returned func removes the folder and anything
// left in it.
func (a *Archive) NewDownload(code string) (string, func(), error) {
	if a.downloadDir == "" {
		return "", nil, errors.New("archive: no download directory configured")
	}
	dir, err := os.MkdirTemp(a.downloadDir, code+"-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create download folder for %s: %w", code, err)
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			a.log.Warn("failed to remove download folder", zap.String("dir", dir), zap.Error(err))
		}
	}, nil
}

// ImportRemote moves every image in dir, a folder from NewDownload, into
// the remote folder of code and returns records for them.
func (a *Archive) ImportRemote(code, dir string) ([]*PhotoRecord, error) {
	dst, err := a.EnsureDir(code, RoleRemote)
	if err != nil {
		return nil, err
	}
	paths, err := ListImages(dir)
	if err != nil {
		return nil, err
	}

	records := make([]*PhotoRecord, 0, len(paths))
	for _, p := range paths {
		newPath, err := MoveInto(p, dst)
		if err != nil {
			return records, err
		}
		rec, err := NewPhotoRecord(newPath)
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// DedupStats summarises a DedupLocal pass.
type DedupStats struct {
	Duplicates map[string]int
	Unreadable []string
}

// DedupLocal removes exact local duplicates from each location's new
// photos. The first copy in bucket order is kept; later copies move to the
// duplicated folder. Unreadable photos are reported and left staged.
func (a *Archive) DedupLocal(b *Bucket, size int) (DedupStats, error) {
	stats := DedupStats{Duplicates: make(map[string]int)}
	var errs []error

	for _, code := range b.Codes() {
		seen := make(map[string]string)
		for _, p := range b.Photos(code) {
			digest, err := ExactDigest(p.Path, size)
			if err != nil {
				a.log.Warn("skipping unreadable photo", zap.String("code", code), zap.String("path", p.Path), zap.Error(err))
				stats.Unreadable = append(stats.Unreadable, p.Path)
				continue
			}
			first, dup := seen[digest]
			if !dup {
				seen[digest] = p.Filename
				continue
			}
			a.log.Info("exact duplicate", zap.String("code", code), zap.String("photo", p.Filename), zap.String("original", first))
			if err := a.Relocate(b, code, p, RoleDuplicated); err != nil {
				errs = append(errs, err)
				continue
			}
			stats.Duplicates[code]++
		}
	}
	return stats, errors.Join(errs...)
}
