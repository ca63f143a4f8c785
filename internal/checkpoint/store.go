// Package checkpoint provides the checkpoint collaborator used by the
// launcher: a store that persists model state dicts under opaque refs, and
// a tracker holding the best-checkpoint ref.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zredeaux65/go-train-spawn/internal/payload"
)

// Ref is an opaque path-like checkpoint handle.
type Ref string

// Store persists and retrieves model state dicts. The on-disk format is an
// implementation detail of the store; callers treat refs as opaque.
type Store interface {
	Save(state map[string]payload.Tensor, ref Ref) error
	Load(ref Ref) (map[string]payload.Tensor, error)
	Remove(ref Ref) error
}

// FileStore stores state dicts as files; refs are file paths.
type FileStore struct{}

// NewFileStore creates a file-backed store.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// Save writes state to the file at ref, creating parent directories.
func (s *FileStore) Save(state map[string]payload.Tensor, ref Ref) error {
	tree := make(map[string]payload.Value, len(state))
	for k, t := range state {
		tree[k] = t
	}
	data, err := payload.Marshal(tree)
	if err != nil {
		return fmt.Errorf("checkpoint: encode %s: %w", ref, err)
	}

	if dir := filepath.Dir(string(ref)); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("checkpoint: create dir for %s: %w", ref, err)
		}
	}
	if err := os.WriteFile(string(ref), data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write %s: %w", ref, err)
	}
	return nil
}

// Load reads the state dict at ref into host memory.
func (s *FileStore) Load(ref Ref) (map[string]payload.Tensor, error) {
	data, err := os.ReadFile(string(ref))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read %s: %w", ref, err)
	}
	tree, err := payload.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: decode %s: %w", ref, err)
	}

	m, ok := tree.(map[string]payload.Value)
	if !ok {
		return nil, fmt.Errorf("checkpoint: %s does not contain a state dict", ref)
	}
	state := make(map[string]payload.Tensor, len(m))
	for k, v := range m {
		t, ok := v.(payload.Tensor)
		if !ok {
			return nil, fmt.Errorf("checkpoint: %s entry %q is %T, not a tensor", ref, k, v)
		}
		state[k] = t
	}
	return state, nil
}

// Remove deletes the artifact at ref.
func (s *FileStore) Remove(ref Ref) error {
	if err := os.Remove(string(ref)); err != nil {
		return fmt.Errorf("checkpoint: remove %s: %w", ref, err)
	}
	return nil
}

// Tracker follows the best checkpoint seen during a run. It mirrors the
// role of a checkpoint callback: the worker group reports its best ref
// through the spawn output, and recovery overwrites the orchestrator's
// tracker with it.
type Tracker struct {
	mu   sync.Mutex
	best Ref
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// BestRef returns the current best checkpoint ref ("" when none).
func (t *Tracker) BestRef() Ref {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.best
}

// SetBestRef overwrites the best checkpoint ref.
func (t *Tracker) SetBestRef(ref Ref) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.best = ref
}
