package scene

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileSeenStore persists seen scene ids as a JSON array on disk. All I/O
// failures are swallowed: loads degrade to an empty set and writes are
// logged at debug level only, so scheduling never fails on storage trouble.
type FileSeenStore struct {
	mu   sync.Mutex
	path string
}

// NewFileSeenStore creates a store writing to dir/seen_scenes.json.
func NewFileSeenStore(dir string) *FileSeenStore {
	return &FileSeenStore{path: filepath.Join(dir, "seen_scenes.json")}
}

func (f *FileSeenStore) Load() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		slog.Debug("seen-scene file unreadable, treating as empty", "path", f.path, "error", err)
		return nil
	}
	return ids
}

func (f *FileSeenStore) Save(ids []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(ids)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		slog.Debug("could not create seen-scene dir", "error", err)
		return
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		slog.Debug("could not persist seen scenes", "error", err)
	}
}

func (f *FileSeenStore) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	os.Remove(f.path)
}

// MemorySeenStore is an in-memory SeenStore for tests and ephemeral sessions.
type MemorySeenStore struct {
	mu  sync.Mutex
	ids []string
}

func (m *MemorySeenStore) Load() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.ids))
	copy(out, m.ids)
	return out
}

func (m *MemorySeenStore) Save(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append([]string(nil), ids...)
}

func (m *MemorySeenStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = nil
}
