package ports

import (
	"context"

	"github.com/google/uuid"
)

// DamageDecryptor decrypts damage fields. Its
// own state is internally synchronized; handlers call it synchronously.
type DamageDecryptor interface {
	Start() error
	// Decrypt mutates event.Damage/ShieldDamage in place from event.RawDamage,
	// returning false if decryption failed.
	Decrypt(event *SkillDamageEvent) bool
	UpdateZone(channelID uint32)
}

// Phase is the 5-value phase-transition enum emitted to the UI.
type Phase uint8

const (
	PhaseZoneReset     Phase = 0
	PhaseBossKill      Phase = 1
	PhaseClear         Phase = 2
	PhaseBattleTrigger Phase = 3
	PhaseWipe          Phase = 4
)

// Event types the EventEmitter carries, one per message tag.
type (
	EventPauseEncounter  struct{}
	EventResetEncounter  struct{}
	EventSaveEncounter   struct{}
	EventClearEncounter  struct{ EncounterID int64 }
	EventPhaseTransition struct{ Phase Phase }
	EventRaidStart       struct{ FightStartMS int64 }
	EventZoneChange      struct{}
	EventIdentityUpdate  struct{ Gauge1, Gauge2, Gauge3 uint32 }
	EventEncounterUpdate struct{ Snapshot any } // pruned EncounterEntity map, see internal/snapshot
	EventPartyUpdate     struct{ Parties map[int32][]string }
	EventInvalidDamage   struct{}
)

// EventEmitter is fire-and-forget delivery of tagged messages.
type EventEmitter interface {
	Emit(event any)
}

// CompleteEncounter is everything the Persister stores for one encounter.
type CompleteEncounter struct {
	Encounter      any // map[uint64]engine.EncounterEntity snapshot
	DamageLog      map[string][]DamagePoint
	IdentityLog    map[string][]IdentityPoint
	CastLog        map[string]map[uint32][]int64
	BossHPLog      map[string][]BossHPPoint
	StaggerLog     map[string][]StaggerPoint
	PartyInfo      map[int32][]string
	CharacterInfo  map[string]PlayerStats
	RaidDifficulty string
	Region         string
	NTPFightStart  int64
	RaidClear      bool
	// RDPSValid is false when some support buff's metadata could never be
	// resolved, so consumers can grey out rDPS columns instead of showing
	// misleading numbers.
	RDPSValid bool
}

type DamagePoint struct {
	TimestampMS int64
	Damage      int64
}

type IdentityPoint struct {
	RelativeMS             int64
	Gauge1, Gauge2, Gauge3 uint32
}

type BossHPPoint struct {
	TSec      int64
	HP        int64
	HPPercent float64
}

type StaggerPoint struct {
	RelativeMS int64
	Ratio      float64
}

// Persister stores a completed/phase-closing encounter snapshot
// asynchronously.
type Persister interface {
	Save(ctx context.Context, version string, enc CompleteEncounter) error
}

// PlayerStats is one player's cached remote stats, per StatsApi.
type PlayerStats struct {
	Name  string
	Stats map[string]float64
}

// RaidInfo is the payload StatsApi.SendRaidInfo posts.
type RaidInfo struct {
	RaidName   string
	Difficulty string
	Players    []string
	IsCleared  bool
}

// StatsApi is the external character-stats collaborator.
type StatsApi interface {
	GetCharacterInfo(ctx context.Context, version, clientID, bossName string, playerNames []string, region string) (map[string]PlayerStats, error)
	SendRaidInfo(ctx context.Context, info RaidInfo) error
}

// HeartbeatApi posts a liveness beat, rate-limited to once per 5 minutes
// internally.
type HeartbeatApi interface {
	Beat(ctx context.Context, clientID uuid.UUID, version, region string) error
}

// RegionStore is a read-only-after-startup region string.
type RegionStore interface {
	Get() (string, bool)
	GetPath() string
}

// LocalPlayerInfo is LocalPlayerStore's persisted shape.
type LocalPlayerInfo struct {
	ClientID     uuid.UUID
	LocalPlayers map[uint64]LocalPlayerUsage // character_id -> usage
}

type LocalPlayerUsage struct {
	Name  string
	Count int
}

// LocalPlayerStore is the persistent client-id + seen-names mapping shared
// with the capture bootstrap and heartbeat sender.
type LocalPlayerStore interface {
	Load() (bool, error)
	Get() LocalPlayerInfo
	Write(name string, characterID uint64) error
}
