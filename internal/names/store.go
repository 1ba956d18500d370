// Package names persists user-assigned friendly labels for tmux
// sessions in a single JSON file.
package names

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// fileLayout is the on-disk shape: one top-level key wrapping the map.
type fileLayout struct {
	SessionNames map[string]string `json:"session_names"`
}

// Store is a file-backed session-name map. Every mutation is a
// read-modify-write of the whole file under the mutex, so concurrent
// updates cannot interleave and corrupt the persisted map.
type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// All returns the current map. Read failures are logged and degrade to
// an empty map: friendly names are best-effort enrichment and their
// absence is not an error.
func (s *Store) All() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get returns the friendly name for session, if one is set.
func (s *Store) Get(session string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.load()[session]
	return name, ok
}

// Set assigns a friendly name and persists the whole map. Returns the
// updated map. On a write error the file is unchanged and the error is
// surfaced so the caller knows the write did not take effect.
func (s *Store) Set(session, friendly string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := s.load()
	names[session] = friendly
	if err := s.save(names); err != nil {
		return nil, err
	}
	return names, nil
}

// Delete removes a session's friendly name and persists the map.
// Deleting an absent entry still rewrites the file and succeeds.
func (s *Store) Delete(session string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := s.load()
	delete(names, session)
	if err := s.save(names); err != nil {
		return nil, err
	}
	return names, nil
}

func (s *Store) load() map[string]string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Error loading session names from %s: %v", s.path, err)
		}
		return map[string]string{}
	}

	var layout fileLayout
	if err := json.Unmarshal(data, &layout); err != nil {
		log.Printf("Error parsing session names file %s: %v", s.path, err)
		return map[string]string{}
	}
	if layout.SessionNames == nil {
		return map[string]string{}
	}
	return layout.SessionNames
}

func (s *Store) save(names map[string]string) error {
	data, err := json.MarshalIndent(fileLayout{SessionNames: names}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session names: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating session names dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing session names: %w", err)
	}
	return nil
}
