package threadstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileStore is a Store backed by a single JSON document
// ({"userId": "threadId", ...}) rewritten wholesale on every mutation.
// Single-process, single-writer assumption; the mutex guards only in-process
// concurrency, not concurrent processes.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	threads map[string]string
}

var _ Store = (*FileStore)(nil)

// NewFileStore loads the mapping from path, creating an empty file if none
// exists. A corrupt file is logged, reset to an empty mapping, and
// immediately rewritten: threads can always be recreated, so self-healing
// beats refusing to start.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &FileStore{
		path:    path,
		logger:  logger,
		threads: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if err := s.persistLocked(); err != nil {
			return nil, fmt.Errorf("create thread map file: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("read thread map file: %w", err)
	default:
		if err := json.Unmarshal(data, &s.threads); err != nil {
			logger.Error("thread map file is corrupt, resetting to empty",
				"path", path, "error", err)
			s.threads = make(map[string]string)
			if err := s.persistLocked(); err != nil {
				return nil, fmt.Errorf("rewrite thread map file: %w", err)
			}
		}
		if s.threads == nil {
			s.threads = make(map[string]string)
		}
	}

	return s, nil
}

func (s *FileStore) Get(_ context.Context, userID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	threadID, ok := s.threads[userID]
	return threadID, ok, nil
}

func (s *FileStore) Set(_ context.Context, userID, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[userID] = threadID
	return s.persistLocked()
}

func (s *FileStore) Has(_ context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.threads[userID]
	return ok, nil
}

func (s *FileStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, userID)
	return s.persistLocked()
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = make(map[string]string)
	return s.persistLocked()
}

func (s *FileStore) Size(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads), nil
}

func (s *FileStore) All(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[string]string, len(s.threads))
	for userID, threadID := range s.threads {
		snapshot[userID] = threadID
	}
	return snapshot, nil
}

// persistLocked rewrites the whole document. Callers hold the write lock
// (or, in NewFileStore, have exclusive access).
func (s *FileStore) persistLocked() error {
	data, err := json.MarshalIndent(s.threads, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal thread map: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create thread map dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write thread map: %w", err)
	}
	return nil
}
