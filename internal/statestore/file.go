package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore persists keys in a single JSON document on disk. It is the
// default store: one driver session per process, synchronous writes, and
// the file survives restarts the way browser storage survives reloads.
type FileStore struct {
	path string

	mu     sync.Mutex
	values map[string]json.RawMessage
}

// NewFileStore opens (or creates) the store at path. An existing but
// unreadable file is treated as empty rather than fatal.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("statestore: file path must not be empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("statestore: creating state directory: %w", err)
	}

	s := &FileStore{
		path:   path,
		values: make(map[string]json.RawMessage),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("statestore: reading state file: %w", err)
	}

	if err := json.Unmarshal(raw, &s.values); err != nil {
		// Corrupt files fall back to empty, same policy as corrupt values.
		s.values = make(map[string]json.RawMessage)
	}
	return s, nil
}

// Get returns the stored value, or ErrKeyNotFound.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}

	cpy := make([]byte, len(v))
	copy(cpy, v)
	return cpy, nil
}

// Set persists the value and rewrites the backing file.
func (s *FileStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cpy := make(json.RawMessage, len(value))
	copy(cpy, value)
	s.values[key] = cpy
	return s.flushLocked()
}

// Delete removes a key and rewrites the backing file.
func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.flushLocked()
}

// DeleteAll removes every key with the given prefix in one write.
func (s *FileStore) DeleteAll(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			delete(s.values, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.flushLocked()
}

// flushLocked writes the document via a temp file and rename so a crash
// mid-write never leaves a half-written state file.
func (s *FileStore) flushLocked() error {
	raw, err := json.Marshal(s.values)
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("statestore: writing state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("statestore: replacing state file: %w", err)
	}
	return nil
}
