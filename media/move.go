package media

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MoveInto moves the file at src into dir and returns its new path. The move
// is atomic for a single file: either the file is fully present at the
// destination and gone from src, or src is left untouched.
//
// Repeating a completed move is a no-op. When a different file of the same
// name already sits in dir, the moved file gets a unique suffix.
func MoveInto(src, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	dst := filepath.Join(dir, filepath.Base(src))
	if filepath.Clean(src) == filepath.Clean(dst) {
		return dst, nil
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			if _, dstErr := os.Stat(dst); dstErr == nil {
				return dst, nil
			}
		}
		return "", fmt.Errorf("failed to stat %s: %w", src, err)
	}

	if dstInfo, err := os.Stat(dst); err == nil {
		same, err := sameContent(src, dst, srcInfo, dstInfo)
		if err != nil {
			return "", err
		}
		if same {
			// an earlier move copied but did not remove the source
			if err := os.Remove(src); err != nil {
				return "", fmt.Errorf("failed to remove already moved %s: %w", src, err)
			}
			return dst, nil
		}
		dst = uniqueName(dst)
	}

	if err := os.Rename(src, dst); err == nil {
		return dst, nil
	}

	// rename fails across filesystems; fall back to copy then remove
	if err := copyAtomic(src, dst); err != nil {
		return "", fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("copied %s to %s but failed to remove source: %w", src, dst, err)
	}
	return dst, nil
}

func uniqueName(path string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	return stem + "_" + uuid.NewString()[:8] + ext
}

func copyAtomic(src, dst string) error {
	tmp := dst + ".tmp"

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(out, in)
	syncErr := out.Sync()
	closeErr := out.Close()

	if err := errors.Join(copyErr, syncErr, closeErr); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename tmp->final: %w", err)
	}
	return nil
}

func sameContent(a, b string, ai, bi os.FileInfo) (bool, error) {
	if ai.Size() != bi.Size() {
		return false, nil
	}
	ha, err := fileSum(a)
	if err != nil {
		return false, err
	}
	hb, err := fileSum(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ha, hb), nil
}

func fileSum(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return h.Sum(nil), nil
}
