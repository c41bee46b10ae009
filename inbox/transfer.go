// Package inbox brings photos from the messaging channel into the OCR inbox.
package inbox

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/camden-git/sitephotosync/media"
)

// Transfer moves every JPEG photo found under chatsDir, chat folders
// included, into inboxDir. It returns the number of photos moved.
func Transfer(chatsDir, inboxDir string, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("inbox")

	if _, err := os.Stat(chatsDir); os.IsNotExist(err) {
		log.Info("no chats directory, nothing to transfer", zap.String("dir", chatsDir))
		return 0, nil
	}

	var photos []string
	err := filepath.WalkDir(chatsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && media.IsPhoto(d.Name()) {
			photos = append(photos, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan chats directory %s: %w", chatsDir, err)
	}

	moved := 0
	for _, src := range photos {
		dst, err := media.MoveInto(src, inboxDir)
		if err != nil {
			return moved, fmt.Errorf("failed to transfer %s: %w", src, err)
		}
		log.Debug("transferred photo", zap.String("from", src), zap.String("to", dst))
		moved++
	}
	log.Info("transferred photos to inbox", zap.Int("count", moved), zap.String("inbox", inboxDir))
	return moved, nil
}
