// Package metadata holds the immutable, process-wide lookup tables the
// encounter core consults but never mutates: skill, status-effect (buff),
// NPC, and zone tables. Tables are loaded once
// at startup from YAML files and never mutated afterwards.
package metadata

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SkillType distinguishes how a skill's damage is attributed.
type SkillType string

const (
	SkillTypeNormal         SkillType = "normal"
	SkillTypeHyperAwakening SkillType = "hyper_awakening"
	SkillTypeIdentity       SkillType = "identity"
)

// SkillEntry is the static description of one skill.
type SkillEntry struct {
	ID                 uint32    `yaml:"id"`
	Name               string    `yaml:"name"`
	Icon               string    `yaml:"icon"`
	ClassID            uint32    `yaml:"class_id"`
	Type               SkillType `yaml:"type"`
	SummonSourceSkills []uint32  `yaml:"summon_source_skills"`
	// IsGetUp marks a skill as the "stand up" animation that clips any
	// in-progress FallDown incapacitation.
	IsGetUp bool `yaml:"is_get_up"`
}

type skillListFile struct {
	Skills []SkillEntry `yaml:"skills"`
}

// SkillTable is the read-only skill -> {name, icon, class_id, type,
// summon_source_skills} lookup.
type SkillTable struct {
	byID map[uint32]*SkillEntry
}

// LoadSkillTable loads the skill table from a YAML file.
func LoadSkillTable(path string) (*SkillTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skill table %s: %w", path, err)
	}
	var f skillListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse skill table %s: %w", path, err)
	}
	t := &SkillTable{byID: make(map[uint32]*SkillEntry, len(f.Skills))}
	for i := range f.Skills {
		s := &f.Skills[i]
		t.byID[s.ID] = s
	}
	return t, nil
}

// Get returns the skill entry by id, or nil if unknown.
func (t *SkillTable) Get(id uint32) *SkillEntry { return t.byID[id] }

// Count returns the number of loaded skill entries.
func (t *SkillTable) Count() int { return len(t.byID) }

// IsHyperAwakening reports whether a skill id's damage bypasses standard
// buff/debuff accounting.
func (t *SkillTable) IsHyperAwakening(id uint32) bool {
	s := t.byID[id]
	return s != nil && s.Type == SkillTypeHyperAwakening
}

// BuffTargetScope names the DB-declared scope of a buff/debuff, used by the
// damage-attribution self-debuff filter.
type BuffTargetScope string

const (
	BuffTargetSelf  BuffTargetScope = "self"
	BuffTargetParty BuffTargetScope = "party"
	BuffTargetOther BuffTargetScope = "other"
)

// BuffEntry is the static description of one status effect / buff.
type BuffEntry struct {
	ID          uint32          `yaml:"id"`
	Name        string          `yaml:"name"`
	Category    string          `yaml:"category"` // "classskill", "arkpassive", "identity", "other"
	TargetScope BuffTargetScope `yaml:"target_scope"`
	Type        string          `yaml:"type"` // "shield", "hard_cc", "workshop", "other"
	SourceSkill uint32          `yaml:"source_skill"`
	SourceName  string          `yaml:"source_name"`
	IsHatBuff   bool            `yaml:"is_hat_buff"`
	DamageFlag  bool            `yaml:"damage_flag"`
	SupportBuff bool            `yaml:"support_buff"` // true if its source class is a support class
}

type buffListFile struct {
	Buffs []BuffEntry `yaml:"buffs"`
}

// BuffTable is the read-only buff -> {category, target, type, source skill}
// lookup.
type BuffTable struct {
	byID map[uint32]*BuffEntry
}

// LoadBuffTable loads the buff table from a YAML file.
func LoadBuffTable(path string) (*BuffTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read buff table %s: %w", path, err)
	}
	var f buffListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse buff table %s: %w", path, err)
	}
	t := &BuffTable{byID: make(map[uint32]*BuffEntry, len(f.Buffs))}
	for i := range f.Buffs {
		b := &f.Buffs[i]
		t.byID[b.ID] = b
	}
	return t, nil
}

// Get returns the buff entry by id, or nil if unknown.
func (t *BuffTable) Get(id uint32) *BuffEntry { return t.byID[id] }

// Count returns the number of loaded buff entries.
func (t *BuffTable) Count() int { return len(t.byID) }

// IsStabilizedStatus reports whether a buff's source name contains
// "Stabilized Status", used by the low-HP attribution filter.
func (b *BuffEntry) IsStabilizedStatus() bool {
	return b != nil && strings.Contains(b.SourceName, "Stabilized Status")
}

// NpcKind classifies an NPC from its static template.
type NpcKind string

const (
	NpcKindNpc    NpcKind = "npc"
	NpcKindBoss   NpcKind = "boss"
	NpcKindEsther NpcKind = "esther"
)

// NpcEntry is the static description of one NPC type.
type NpcEntry struct {
	TypeID   uint32 `yaml:"type_id"`
	Name     string `yaml:"name"`
	Grade    string `yaml:"grade"`
	HPBars   int    `yaml:"hp_bars"`
	IsBoss   bool   `yaml:"is_boss"`
	IsEsther bool   `yaml:"is_esther"`
}

type npcListFile struct {
	Npcs []NpcEntry `yaml:"npcs"`
}

// NpcTable is the read-only NPC type -> {grade, name, hp_bars} lookup.
type NpcTable struct {
	byID map[uint32]*NpcEntry
}

// LoadNpcTable loads the NPC table from a YAML file.
func LoadNpcTable(path string) (*NpcTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read npc table %s: %w", path, err)
	}
	var f npcListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse npc table %s: %w", path, err)
	}
	t := &NpcTable{byID: make(map[uint32]*NpcEntry, len(f.Npcs))}
	for i := range f.Npcs {
		n := &f.Npcs[i]
		t.byID[n.TypeID] = n
	}
	return t, nil
}

// Get returns the NPC entry by type id, or nil if unknown.
func (t *NpcTable) Get(typeID uint32) *NpcEntry { return t.byID[typeID] }

// Count returns the number of loaded NPC entries.
func (t *NpcTable) Count() int { return len(t.byID) }

// Classify resolves (type_id, max_hp) to {Npc, Boss, Esther} and a
// canonical display name, driven by the static template plus the observed
// max HP.
func (t *NpcTable) Classify(typeID uint32, maxHP int64) (kind NpcKind, displayName string) {
	entry := t.Get(typeID)
	if entry == nil {
		return NpcKindNpc, ""
	}
	name := entry.Name
	switch {
	case entry.IsEsther:
		return NpcKindEsther, name
	case entry.IsBoss, maxHP >= bossHPThreshold:
		return NpcKindBoss, name
	default:
		return NpcKindNpc, name
	}
}

// bossHPThreshold is the fallback HP floor used to infer "boss" for NPC
// types the static table doesn't explicitly flag (e.g. event-only adds).
const bossHPThreshold = 10_000_000

// ZoneEntry describes whether a zone id is a tracked raid instance.
type ZoneEntry struct {
	ZoneID uint32 `yaml:"zone_id"`
	IsRaid bool   `yaml:"is_raid"`
	Name   string `yaml:"name"`
}

type zoneListFile struct {
	Zones []ZoneEntry `yaml:"zones"`
}

// ZoneTable is the read-only zone -> valid-raid? lookup.
type ZoneTable struct {
	byID map[uint32]*ZoneEntry
}

// LoadZoneTable loads the zone table from a YAML file.
func LoadZoneTable(path string) (*ZoneTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zone table %s: %w", path, err)
	}
	var f zoneListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse zone table %s: %w", path, err)
	}
	t := &ZoneTable{byID: make(map[uint32]*ZoneEntry, len(f.Zones))}
	for i := range f.Zones {
		z := &f.Zones[i]
		t.byID[z.ZoneID] = z
	}
	return t, nil
}

// IsRaid reports whether zoneID is a tracked raid instance. Unknown zones
// are conservatively not raids.
func (t *ZoneTable) IsRaid(zoneID uint32) bool {
	z := t.byID[zoneID]
	return z != nil && z.IsRaid
}

// Count returns the number of loaded zone entries.
func (t *ZoneTable) Count() int { return len(t.byID) }

// Tables bundles all four static lookups for dependency injection into the
// engine and dispatcher.
type Tables struct {
	Skills *SkillTable
	Buffs  *BuffTable
	Npcs   *NpcTable
	Zones  *ZoneTable
}

// Load reads all four tables from the given directory, expecting
// skills.yaml, buffs.yaml, npcs.yaml and zones.yaml.
func Load(dir string) (*Tables, error) {
	skills, err := LoadSkillTable(dir + "/skills.yaml")
	if err != nil {
		return nil, err
	}
	buffs, err := LoadBuffTable(dir + "/buffs.yaml")
	if err != nil {
		return nil, err
	}
	npcs, err := LoadNpcTable(dir + "/npcs.yaml")
	if err != nil {
		return nil, err
	}
	zones, err := LoadZoneTable(dir + "/zones.yaml")
	if err != nil {
		return nil, err
	}
	return &Tables{Skills: skills, Buffs: buffs, Npcs: npcs, Zones: zones}, nil
}
