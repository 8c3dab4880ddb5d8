package worker

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"rendition/internal/logging"
)

// tempFiles tracks the per-job scratch files and guarantees they are removed
// exactly once regardless of how the pipeline exits. Removal errors are
// logged, never returned, so cleanup can never mask the job outcome.
type tempFiles struct {
	logger *slog.Logger
	mu     sync.Mutex
	paths  []string
	once   sync.Once
}

func newTempFiles(logger *slog.Logger) *tempFiles {
	return &tempFiles{logger: logger}
}

func (t *tempFiles) add(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paths = append(t.paths, path)
}

func (t *tempFiles) cleanup() {
	t.once.Do(func() {
		t.mu.Lock()
		paths := t.paths
		t.paths = nil
		t.mu.Unlock()

		for _, path := range paths {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				t.logger.Warn("failed to remove temporary file",
					logging.String("path", path),
					logging.Error(err))
			}
		}
	})
}
