package pipeline

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
)

// LocalStore removes uploaded files from the scratch directory once a batch
// is done with them, success or failure.
type LocalStore struct {
	Log *slog.Logger
}

func (s LocalStore) Release(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log := s.Log
		if log == nil {
			log = slog.Default()
		}
		log.Warn("file release failed", "path", path, "error", err)
	}
}

// NoopStore keeps files in place; used when the caller owns cleanup.
type NoopStore struct{}

func (NoopStore) Release(string) {}
