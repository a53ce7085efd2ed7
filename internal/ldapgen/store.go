package ldapgen

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists accumulated filter rows between invocations as a JSON
// file, keyed per named row set.
type Store struct {
	path string
}

// NewStore creates a Store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultStorePath returns the default row-store location, honoring
// $XDG_CONFIG_HOME.
func DefaultStorePath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir != "" {
		return filepath.Join(configDir, "pvefleet", "ldap-rows.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "pvefleet", "ldap-rows.json")
}

// load reads the full row-set map. A missing file is an empty map.
func (s *Store) load() (map[string][]Row, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string][]Row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading row store: %w", err)
	}

	sets := map[string][]Row{}
	if err := json.Unmarshal(data, &sets); err != nil {
		return nil, fmt.Errorf("parsing row store: %w", err)
	}
	return sets, nil
}

// save writes the full row-set map back to disk.
func (s *Store) save(sets map[string][]Row) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	data, err := json.MarshalIndent(sets, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal row store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write row store: %w", err)
	}
	return nil
}

// Rows returns the rows of the named set, in insertion order.
func (s *Store) Rows(set string) ([]Row, error) {
	sets, err := s.load()
	if err != nil {
		return nil, err
	}
	return sets[set], nil
}

// Add appends a row to the named set.
func (s *Store) Add(set string, row Row) error {
	sets, err := s.load()
	if err != nil {
		return err
	}
	sets[set] = append(sets[set], row)
	return s.save(sets)
}

// Clear removes the named set.
func (s *Store) Clear(set string) error {
	sets, err := s.load()
	if err != nil {
		return err
	}
	delete(sets, set)
	return s.save(sets)
}
