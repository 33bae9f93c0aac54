package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// fileKV is a [KV] backed by a single JSON state file. Every write persists
// the whole state via write-temp-then-rename, so a crash mid-write leaves
// either the old state or the new one, never a torn file.
//
// The special path ":memory:" keeps all state in process memory, which the
// tests use.
type fileKV struct {
	path     string
	inMemory bool

	mu     sync.RWMutex
	values map[string]json.RawMessage
}

type filePersistedState struct {
	Values map[string]json.RawMessage `json:"values"`
}

// NewFileKV constructs a file-backed [KV] at path, loading any existing
// state. An empty path defaults to ":memory:".
func NewFileKV(path string) (KV, error) {
	if path == "" {
		path = ":memory:"
	}

	inMemory := path == ":memory:" || path == "memory"
	s := &fileKV{
		path:     path,
		inMemory: inMemory,
		values:   make(map[string]json.RawMessage),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fileKV) load() error {
	if s.inMemory {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: read state file: %v", ErrPersistence, err)
	}

	var st filePersistedState
	if err = json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("%w: decode state file: %v", ErrPersistence, err)
	}

	if st.Values == nil {
		st.Values = make(map[string]json.RawMessage)
	}
	s.values = st.Values

	return nil
}

// persist writes the whole state atomically. Caller must hold mu.
func (s *fileKV) persist() error {
	if s.inMemory {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create state dir: %v", ErrPersistence, err)
		}
	}

	payload, err := json.MarshalIndent(filePersistedState{Values: s.values}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode state: %v", ErrPersistence, err)
	}

	tmp := s.path + ".tmp"
	if err = os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("%w: write state file: %v", ErrPersistence, err)
	}
	if err = os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%w: replace state file: %v", ErrPersistence, err)
	}

	return nil
}

// Has implements [KV].
func (s *fileKV) Has(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.values[key]
	return ok, nil
}

// Get implements [KV].
func (s *fileKV) Get(_ context.Context, key string, target any) error {
	s.mu.RLock()
	raw, ok := s.values[key]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: decode value for %s: %v", ErrPersistence, key, err)
	}
	return nil
}

// Set implements [KV].
func (s *fileKV) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encode value for %s: %v", ErrPersistence, key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.values[key]
	s.values[key] = raw
	if err := s.persist(); err != nil {
		// roll back the in-memory state so memory and disk stay in sync
		if existed {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

// Delete implements [KV].
func (s *fileKV) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.values[key]
	if !existed {
		return nil
	}
	delete(s.values, key)
	if err := s.persist(); err != nil {
		s.values[key] = prev
		return err
	}
	return nil
}
