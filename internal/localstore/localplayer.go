package localstore

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/raidtrack/engine/internal/ports"
)

type localPlayerFile struct {
	ClientID     string                     `yaml:"client_id"`
	LocalPlayers map[uint64]usageFileRecord `yaml:"local_players"`
}

type usageFileRecord struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

// LocalPlayerStore implements ports.LocalPlayerStore: a persisted client id
// plus a character_id -> {name, count} usage map that the party-info
// handler uses to infer which party member is the local player across
// sessions.
type LocalPlayerStore struct {
	mu   sync.RWMutex
	path string
	info ports.LocalPlayerInfo
}

// NewLocalPlayerStore constructs an empty store bound to path. Call Load to
// populate it from disk.
func NewLocalPlayerStore(path string) *LocalPlayerStore {
	return &LocalPlayerStore{
		path: path,
		info: ports.LocalPlayerInfo{LocalPlayers: make(map[uint64]ports.LocalPlayerUsage)},
	}
}

// Load implements ports.LocalPlayerStore: loads the file if present,
// generating and persisting a fresh client id on first run. ok reports
// whether a pre-existing file was found.
func (s *LocalPlayerStore) Load() (bool, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.mu.Lock()
		s.info = ports.LocalPlayerInfo{ClientID: uuid.New(), LocalPlayers: make(map[uint64]ports.LocalPlayerUsage)}
		s.mu.Unlock()
		return false, s.persist()
	}
	if err != nil {
		return false, fmt.Errorf("read local player store %s: %w", s.path, err)
	}

	var f localPlayerFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return false, fmt.Errorf("parse local player store %s: %w", s.path, err)
	}

	clientID, err := uuid.Parse(f.ClientID)
	if err != nil {
		clientID = uuid.New()
	}
	players := make(map[uint64]ports.LocalPlayerUsage, len(f.LocalPlayers))
	for id, rec := range f.LocalPlayers {
		players[id] = ports.LocalPlayerUsage{Name: rec.Name, Count: rec.Count}
	}

	s.mu.Lock()
	s.info = ports.LocalPlayerInfo{ClientID: clientID, LocalPlayers: players}
	s.mu.Unlock()
	return true, nil
}

// Get implements ports.LocalPlayerStore.
func (s *LocalPlayerStore) Get() ports.LocalPlayerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := ports.LocalPlayerInfo{ClientID: s.info.ClientID, LocalPlayers: make(map[uint64]ports.LocalPlayerUsage, len(s.info.LocalPlayers))}
	for id, u := range s.info.LocalPlayers {
		cp.LocalPlayers[id] = u
	}
	return cp
}

// UsageCounts returns a snapshot of character_id -> seen-count, the shape
// engine.Graph.PartyInfo consults.
func (s *LocalPlayerStore) UsageCounts() map[uint64]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[uint64]int, len(s.info.LocalPlayers))
	for id, u := range s.info.LocalPlayers {
		counts[id] = u.Count
	}
	return counts
}

// Write implements ports.LocalPlayerStore: increments characterID's usage
// count under name and persists the file.
func (s *LocalPlayerStore) Write(name string, characterID uint64) error {
	s.mu.Lock()
	usage := s.info.LocalPlayers[characterID]
	usage.Name = name
	usage.Count++
	s.info.LocalPlayers[characterID] = usage
	s.mu.Unlock()
	return s.persist()
}

func (s *LocalPlayerStore) persist() error {
	s.mu.RLock()
	f := localPlayerFile{
		ClientID:     s.info.ClientID.String(),
		LocalPlayers: make(map[uint64]usageFileRecord, len(s.info.LocalPlayers)),
	}
	for id, u := range s.info.LocalPlayers {
		f.LocalPlayers[id] = usageFileRecord{Name: u.Name, Count: u.Count}
	}
	s.mu.RUnlock()

	raw, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode local player store: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("write local player store %s: %w", s.path, err)
	}
	return nil
}
