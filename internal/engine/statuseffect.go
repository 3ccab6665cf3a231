package engine

import (
	"encoding/binary"
	"time"
)

// StatusEffectTargetType selects which scope a status effect is registered
// into: Local (keyed by instance id) or Party (keyed by character id).
type StatusEffectTargetType int

const (
	TargetLocal StatusEffectTargetType = iota
	TargetParty
)

// StatusEffectCategory classifies a status effect broadly.
type StatusEffectCategory int

const (
	CategoryOther StatusEffectCategory = iota
	CategoryBuff
	CategoryDebuff
)

// BuffCategory further classifies a Buff/Debuff's source.
type BuffCategory int

const (
	BuffCategoryOther BuffCategory = iota
	BuffCategoryClassSkill
	BuffCategoryArkPassive
	BuffCategoryIdentity
)

// StatusEffectType names special-cased effect behaviors.
type StatusEffectType int

const (
	EffectTypeOther StatusEffectType = iota
	EffectTypeShield
	EffectTypeHardCrowdControl
	EffectTypeWorkshop
)

// customIDOffset is added to a status effect's declared id to synthesize a
// custom_id when its source skill differs from the declared effect id. The
// offset is large enough that it never collides with a real status effect
// or skill id space. Round-trips via CustomID/OriginalFromCustomID.
const customIDOffset = 1_000_000_000

// CustomID synthesizes a custom status-effect id from its originating
// skill/buff id.
func CustomID(sourceSkill uint32) uint32 { return sourceSkill + customIDOffset }

// OriginalFromCustomID inverts CustomID.
func OriginalFromCustomID(customID uint32) uint32 { return customID - customIDOffset }

// StatusEffectDetails is one live status effect instance.
type StatusEffectDetails struct {
	InstanceID      uint32
	SourceID        uint64
	TargetID        uint64
	StatusEffectID  uint32
	CustomID        uint32
	TargetType      StatusEffectTargetType
	Category        StatusEffectCategory
	BuffCategory    BuffCategory
	Type            StatusEffectType
	Value           uint64
	StackCount      uint32
	ExpirationDelay float64 // seconds; <= 0 means infinite
	ExpireAt        *time.Time
	EndTick         uint64
	Timestamp       time.Time
	SourceSkills    []uint32
}

// IsInfinite reports whether the effect never expires on its own.
func (s *StatusEffectDetails) IsInfinite() bool { return s.ExpireAt == nil }

// DecodeShieldValue reads the minimum of two consecutive little-endian
// uint64s at bytes [0..8) and [8..16) of a raw status-effect value blob, or
// 0 if the blob is missing or short. This matches the wire encoding used for
// shield-type status effects, where the first u64 is the shield's current
// remaining amount and the second is its originally-applied amount (or vice
// versa depending on client version); taking the minimum is conservative
// against either ordering.
func DecodeShieldValue(raw []byte) uint64 {
	if len(raw) < 16 {
		return 0
	}
	a := binary.LittleEndian.Uint64(raw[0:8])
	b := binary.LittleEndian.Uint64(raw[8:16])
	if a < b {
		return a
	}
	return b
}

// EncodeShieldValue is the inverse of DecodeShieldValue for testing
// round-trip behavior: it packs a and b as consecutive little-endian
// uint64s.
func EncodeShieldValue(a, b uint64) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], a)
	binary.LittleEndian.PutUint64(buf[8:16], b)
	return buf
}

// StatusEffectRegistry is the two-scope status-effect map:
// Local[target_id][instance_id] and Party[character_id][instance_id].
type StatusEffectRegistry struct {
	local map[uint64]map[uint32]*StatusEffectDetails
	party map[uint64]map[uint32]*StatusEffectDetails
}

func newStatusEffectRegistry() *StatusEffectRegistry {
	return &StatusEffectRegistry{
		local: make(map[uint64]map[uint32]*StatusEffectDetails),
		party: make(map[uint64]map[uint32]*StatusEffectDetails),
	}
}

func (r *StatusEffectRegistry) scope(tt StatusEffectTargetType) map[uint64]map[uint32]*StatusEffectDetails {
	if tt == TargetParty {
		return r.party
	}
	return r.local
}

// Register inserts the effect into the chosen scope. A duplicate instance
// id is a no-op: the first write wins.
func (r *StatusEffectRegistry) Register(effect *StatusEffectDetails) {
	key := effect.TargetID
	scope := r.scope(effect.TargetType)
	bucket, ok := scope[key]
	if !ok {
		bucket = make(map[uint32]*StatusEffectDetails)
		scope[key] = bucket
	}
	if _, exists := bucket[effect.InstanceID]; exists {
		return
	}
	bucket[effect.InstanceID] = effect
}

// Remove deletes one effect instance from the given target/scope.
func (r *StatusEffectRegistry) Remove(tt StatusEffectTargetType, targetID uint64, instanceID uint32) *StatusEffectDetails {
	bucket, ok := r.scope(tt)[targetID]
	if !ok {
		return nil
	}
	effect := bucket[instanceID]
	delete(bucket, instanceID)
	return effect
}

// sweep removes every expired entry from bucket as of now. Runs on every
// read, so expired effects are never returned.
func sweep(bucket map[uint32]*StatusEffectDetails, now time.Time) {
	for id, effect := range bucket {
		if effect.ExpireAt != nil && !effect.ExpireAt.After(now) {
			delete(bucket, id)
		}
	}
}

// EffectsOn returns the live (post-sweep) effects on a target in the given
// scope at time now.
func (r *StatusEffectRegistry) EffectsOn(tt StatusEffectTargetType, targetID uint64, now time.Time) []*StatusEffectDetails {
	bucket, ok := r.scope(tt)[targetID]
	if !ok {
		return nil
	}
	sweep(bucket, now)
	out := make([]*StatusEffectDetails, 0, len(bucket))
	for _, e := range bucket {
		out = append(out, e)
	}
	return out
}

// Sync updates an existing effect's value in place, looking only in the
// given scope, and returns the (possibly nil) effect and its old value.
func (r *StatusEffectRegistry) Sync(tt StatusEffectTargetType, targetID uint64, instanceID uint32, value uint64) (*StatusEffectDetails, uint64) {
	bucket, ok := r.scope(tt)[targetID]
	if !ok {
		return nil, 0
	}
	effect, ok := bucket[instanceID]
	if !ok {
		return nil, 0
	}
	old := effect.Value
	effect.Value = value
	return effect, old
}

// ClearLocal wipes the entire Local scope. Only the InitEnv handler calls
// it; InitPC and NewNpc leave the registry as it is.
func (r *StatusEffectRegistry) ClearLocal() {
	r.local = make(map[uint64]map[uint32]*StatusEffectDetails)
}

// RemoveLocalObject drops every Local-scope effect tracked under the given
// target id, without touching Party scope.
func (r *StatusEffectRegistry) RemoveLocalObject(targetID uint64) {
	delete(r.local, targetID)
}

// FilterForDamage applies the damage-attribution filter:
// drop effects whose TargetType is Local, Category is Debuff, whose source
// differs from the damage's source, and whose declared scope is "self"
// (modeled here as sourceIsSelfScoped), preventing self-only debuffs from
// leaking across sources.
func FilterForDamage(effects []*StatusEffectDetails, damageSourceID uint64, selfScoped func(*StatusEffectDetails) bool) []*StatusEffectDetails {
	out := effects[:0:0]
	for _, e := range effects {
		if e.TargetType == TargetLocal && e.Category == CategoryDebuff && e.SourceID != damageSourceID && selfScoped(e) {
			continue
		}
		out = append(out, e)
	}
	return out
}
