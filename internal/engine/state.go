package engine

import (
	"time"

	"github.com/raidtrack/engine/internal/metadata"
	"go.uber.org/zap"
)

// DamageLogPoint is one entry in the per-player damage-over-time log.
type DamageLogPoint struct {
	TimestampMS int64
	Damage      int64
}

// IdentityLogPoint is one entry in the per-player identity-gauge log.
type IdentityLogPoint struct {
	RelativeMS             int64
	Gauge1, Gauge2, Gauge3 uint32
}

// BossHPLogPoint is one coalesced-per-second boss HP sample.
type BossHPLogPoint struct {
	TSec      int64
	HP        int64
	HPPercent float64
}

// StaggerLogPoint is one stagger-gauge sample.
type StaggerLogPoint struct {
	RelativeMS int64
	Ratio      float64
}

// StaggerInterval is a span during which the stagger gauge was actively
// decreasing ("stagger check" window).
type StaggerInterval struct {
	StartMS, EndMS int64
}

// State is the top-level encounter aggregate: the
// entity graph, status-effect registry, skill-cast log, and every
// encounter-scoped log and flag, wired together by the damage aggregator
// (damage.go) and phase controller (phase.go).
type State struct {
	Graph         *Graph
	StatusEffects *StatusEffectRegistry
	CastLog       *CastLog

	tables *metadata.Tables
	log    *zap.Logger

	StartedOn time.Time // zero value means no damage attributed yet
	UpdatedOn time.Time

	CurrentBossID uint64

	LocalPlayerName string

	RaidDifficulty   string
	RaidDifficultyID uint32
	Region           string

	DamageLog        map[string][]DamageLogPoint
	IdentityLog      map[string][]IdentityLogPoint
	CastLogProj      map[string]map[uint32][]int64 // player -> skill -> relative ms
	BossHPLog        map[string][]BossHPLogPoint
	StaggerLog       map[string][]StaggerLogPoint
	StaggerIntervals map[string][]StaggerInterval

	CustomIDMap map[uint32]uint32 // custom id -> original buff id

	KnownBuffs   map[uint32]*metadata.BuffEntry
	UnknownBuffs map[uint32]struct{}

	// Flags
	Resetting      bool
	Saved          bool
	PartyFreeze    bool
	RaidClear      bool
	BossDeadUpdate bool
	DamageIsValid  bool
	IsValidZone    bool
	BossOnlyDamage bool
	RDPSValid      bool // false once a support buff's metadata could never be resolved

	NTPFightStart int64

	// PartyCache/PartyMapCache hold the last-known complete (all parties of
	// 4 members) party snapshot, consulted by the phase controller on clear
	// and by the snapshot emitter.
	PartyCache    map[int32][]string
	PartyMapCache map[int32][]uint64

	// Stagger gauge: current/max for the tracked boss, and
	// the prior sample used to detect "actively decreasing" windows.
	staggerCurrent, staggerMax int64
	staggerDecreasing          bool
	staggerIntervalStartMS     int64

	raidEndCooldownUntil time.Time // damage arriving before this is post-wipe/clear noise
}

// New constructs a fresh, empty encounter State.
func New(tables *metadata.Tables, log *zap.Logger) *State {
	return &State{
		Graph:         newGraph(),
		StatusEffects: newStatusEffectRegistry(),
		CastLog:       newCastLog(),
		tables:        tables,
		log:           log,

		DamageLog:        make(map[string][]DamageLogPoint),
		IdentityLog:      make(map[string][]IdentityLogPoint),
		CastLogProj:      make(map[string]map[uint32][]int64),
		BossHPLog:        make(map[string][]BossHPLogPoint),
		StaggerLog:       make(map[string][]StaggerLogPoint),
		StaggerIntervals: make(map[string][]StaggerInterval),
		CustomIDMap:      make(map[uint32]uint32),
		KnownBuffs:       make(map[uint32]*metadata.BuffEntry),
		UnknownBuffs:     make(map[uint32]struct{}),

		DamageIsValid: true,
		IsValidZone:   true,
		RDPSValid:     true,
	}
}

// IsStarted reports whether started_on has been set.
func (s *State) IsStarted() bool { return !s.StartedOn.IsZero() }

// CurrentBoss returns the current boss's EncounterEntity, if tracked.
func (s *State) CurrentBoss() (*EncounterEntity, bool) {
	if s.CurrentBossID == 0 {
		return nil, false
	}
	return s.Graph.StatsIfExists(s.CurrentBossID)
}

// InRaidEndCooldown reports whether now falls within the
// raid_end_capture_timeout window after a wipe/clear: damage
// packets arriving in this window are ignored.
func (s *State) InRaidEndCooldown(now time.Time) bool {
	return !s.raidEndCooldownUntil.IsZero() && now.Before(s.raidEndCooldownUntil)
}

// resolveBuff looks up a buff id's metadata, substituting through
// CustomIDMap first, and caches the result into
// KnownBuffs/UnknownBuffs exactly once per id.
func (s *State) resolveBuff(id uint32) *metadata.BuffEntry {
	if b, ok := s.KnownBuffs[id]; ok {
		return b
	}
	if _, ok := s.UnknownBuffs[id]; ok {
		return nil
	}
	lookupID := id
	if orig, ok := s.CustomIDMap[id]; ok {
		lookupID = orig
	}
	entry := s.tables.Buffs.Get(lookupID)
	if entry == nil {
		s.UnknownBuffs[id] = struct{}{}
		s.RDPSValid = false
		return nil
	}
	s.KnownBuffs[id] = entry
	return entry
}

// registerCustomID records the
// custom->original mapping the first time it is seen.
func (s *State) registerCustomID(effect *StatusEffectDetails) {
	if effect.CustomID == 0 || effect.CustomID == effect.StatusEffectID {
		return
	}
	if _, exists := s.CustomIDMap[effect.CustomID]; exists {
		return
	}
	s.CustomIDMap[effect.CustomID] = effect.StatusEffectID
}
