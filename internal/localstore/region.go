// Package localstore implements ports.RegionStore and ports.LocalPlayerStore:
// the two small YAML-backed files the engine reads (region) and
// read-writes (local player usage counts) across restarts. LocalPlayerStore
// carries a sync.RWMutex because the capture loop mutates it at runtime.
package localstore

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// regionFile is region.yaml's on-disk shape: a single string, read once at
// startup and re-read only on InitEnv.
type regionFile struct {
	Region string `yaml:"region"`
}

// RegionStore implements ports.RegionStore over a YAML file.
type RegionStore struct {
	mu     sync.RWMutex
	path   string
	region string
	known  bool
}

// NewRegionStore loads path if present; a missing file is not an error —
// Get simply reports ok=false until the file exists.
func NewRegionStore(path string) (*RegionStore, error) {
	s := &RegionStore{path: path}
	if err := s.reload(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the backing file, used on InitEnv.
func (s *RegionStore) Reload() error {
	return s.reload()
}

func (s *RegionStore) reload() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var f regionFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse region file %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.region, s.known = f.Region, f.Region != ""
	s.mu.Unlock()
	return nil
}

// Get implements ports.RegionStore.
func (s *RegionStore) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.region, s.known
}

// GetPath implements ports.RegionStore.
func (s *RegionStore) GetPath() string {
	return s.path
}
