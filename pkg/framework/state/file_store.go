// Package state persists what a plug-in asked the host to remember between invocations.
package state

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/flytam/filenamify"
)

// FileStore keeps one state file per plug-in in a directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a store rooted at dir. An empty dir means ".filterhost/state" in the
// current directory.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = filepath.Join(".", ".filterhost", "state")
	}
	return &FileStore{dir: dir}
}

// Path returns the file a plug-in's state is kept in.
func (f *FileStore) Path(plugin string) (string, error) {
	name, err := filenamify.Filenamify(plugin, filenamify.Options{Replacement: "_"})
	if err != nil {
		return "", fmt.Errorf("state file name for %q: %w", plugin, err)
	}
	return filepath.Join(f.dir, name+".state"), nil
}

// LoadParameters returns the saved snapshot of plugin, or nil when there is none.
func (f *FileStore) LoadParameters(plugin string) (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path, err := f.Path(plugin)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	snap, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("state file %s: %w", path, err)
	}
	return snap, nil
}

// SaveParameters replaces the saved snapshot of plugin.
func (f *FileStore) SaveParameters(plugin string, snap *Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path, err := f.Path(plugin)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := Save(&buf, snap); err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save state file: %w", err)
	}
	return nil
}

// Clear removes the saved snapshot of plugin.
func (f *FileStore) Clear(plugin string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path, err := f.Path(plugin)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear state: %w", err)
	}
	return nil
}

// MemoryStore keeps snapshots in memory. Snapshots are encoded on save so callers cannot
// alias stored state.
type MemoryStore struct {
	mu    sync.Mutex
	saved map[string][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{saved: make(map[string][]byte)}
}

func (m *MemoryStore) LoadParameters(plugin string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.saved[plugin]
	if !ok {
		return nil, nil
	}
	return Load(bytes.NewReader(data))
}

func (m *MemoryStore) SaveParameters(plugin string, snap *Snapshot) error {
	var buf bytes.Buffer
	if err := Save(&buf, snap); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[plugin] = buf.Bytes()
	return nil
}
