package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store persists run checkpoints as one JSON document per run under a base
// directory. Writes are atomic (temp file + rename) so a crash mid-write
// never corrupts the previous snapshot.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a Store rooted at the given directory, creating it if
// needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save overwrites the run's on-disk snapshot. Callable after every phase
// transition and after every loop iteration.
func (s *Store) Save(cp *RunCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return atomicWriteFile(s.path(cp.RunID), data, 0644)
}

// Load returns the run's snapshot, or nil when none exists or the file does
// not parse. Absence is not an error: callers treat nil as "start fresh."
func (s *Store) Load(runID string) (*RunCheckpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp RunCheckpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		// A corrupt snapshot is treated as absent, never fatal.
		return nil, nil
	}
	return &cp, nil
}

// Clear deletes the run's snapshot. Idempotent: clearing a missing
// checkpoint is not an error.
func (s *Store) Clear(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(runID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	return nil
}

// Exists reports whether a snapshot file exists for the run.
func (s *Store) Exists(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := os.Stat(s.path(runID))
	return err == nil
}

// List returns the run IDs with a snapshot on disk, sorted.
func (s *Store) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	var runs []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		runs = append(runs, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(runs)
	return runs, nil
}

func (s *Store) path(runID string) string {
	return filepath.Join(s.dir, runID+".json")
}

// atomicWriteFile writes data to a temporary file in the target directory
// and renames it over the destination, so readers never observe a partial
// write.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
