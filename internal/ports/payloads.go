package ports

// Payload structs carry the decoded fields for each packet
// kind the dispatcher routes. Fields use the same names as the data model so
// handlers can pass them straight into engine constructors without
// renaming.

type InitEnvPayload struct {
	PlayerID uint64
}

type InitPCPayload struct {
	PlayerID    uint64
	CharacterID uint64
	Name        string
	Class       uint32
	GearLevel   float32
	Level       uint32
	CurrentHP   int64
	MaxHP       int64
}

type NewPCPayload struct {
	PlayerID    uint64
	CharacterID uint64
	Name        string
	Class       uint32
	GearLevel   float32
	Level       uint32
	CurrentHP   int64
	MaxHP       int64
}

type NewNpcPayload struct {
	ObjectID  uint64
	TypeID    uint32
	CurrentHP int64
	MaxHP     int64
	Summoned  bool
	OwnerID   uint64 // nonzero when Summoned
}

type NewProjectilePayload struct {
	ProjectileID  uint64
	OwnerID       uint64
	SkillID       uint32
	SkillEffectID uint32
}

type NewTrapPayload struct {
	TrapID        uint64
	OwnerID       uint64
	SkillID       uint32
	SkillEffectID uint32
}

type NewTransitPayload struct {
	ChannelID uint32
}

type RemoveObjectPayload struct {
	ObjectID uint64
}

type DeathNotifyPayload struct {
	TargetID uint64
	SourceID uint64
}

type CounterAttackNotifyPayload struct {
	SourceID uint64
	TargetID uint64
}

type SkillCastNotifyPayload struct {
	EntityID uint64
	SkillID  uint32
}

type SkillStartNotifyPayload struct {
	EntityID    uint64
	SkillID     uint32
	TripodIndex [3]int
	TripodLevel [3]int
}

// HitFlag occupies the low nibble of a SkillDamageEvent's Modifier.
type HitFlag int

const (
	HitNormal HitFlag = iota
	HitCritical
	HitMiss
	HitInvincible
	HitDotCritical
	HitDamageShare
	HitImmune
	HitImmuneSilenced
	HitFireImmune
	HitIceImmune
	HitVoidImmune
)

// HitOption occupies bits [4:7) of a SkillDamageEvent's Modifier.
type HitOption int

const (
	HitOptionNone HitOption = iota
	HitOptionBackAttack
	HitOptionFrontalAttack
	HitOptionFlankAttack
)

// DecodeModifier unpacks the packed modifier nibbles:
// hit_flag = modifier & 0xF, hit_option = (modifier >> 4) & 0x7.
func DecodeModifier(modifier uint32) (HitFlag, HitOption) {
	return HitFlag(modifier & 0xF), HitOption((modifier >> 4) & 0x7)
}

// SkillDamageEvent is one target's hit within a SkillDamageNotify/
// SkillDamageAbnormalMoveNotify packet.
type SkillDamageEvent struct {
	TargetID     uint64
	Damage       int64
	ShieldDamage int64
	Modifier     uint32
	CurHP        int64
	MaxHP        int64

	// RawDamage carries the still-encrypted wire bytes for DamageDecryptor
	// to mutate in place via Decrypt. Nil if the source packet carries
	// plaintext damage (decryption optional per deployment).
	RawDamage []byte

	// MoveOptionData is only present on SkillDamageAbnormalMoveNotify.
	MoveOptionData *SkillMoveOptionData
}

// SkillMoveOptionData carries the abnormal-move incapacitation components
// (down, move, and stand-up times).
type SkillMoveOptionData struct {
	DownTimeSec    float64
	MoveTimeSec    float64
	StandUpTimeSec float64
}

type SkillDamageNotifyPayload struct {
	SourceID      uint64
	SkillID       uint32
	SkillEffectID uint32
	Events        []SkillDamageEvent
}

// SkillDamageAbnormalMoveNotifyPayload is identical in shape to
// SkillDamageNotifyPayload; kept as a distinct type so the dispatcher table
// can route it to the same handler with a static "isAbnormalMove" flag.
type SkillDamageAbnormalMoveNotifyPayload SkillDamageNotifyPayload

type IdentityGaugeChangeNotifyPayload struct {
	EntityID uint64
	Gauge1   uint32
	Gauge2   uint32
	Gauge3   uint32
}

type PartyInfoPayload struct {
	PartyInstanceID uint32
	Members         []PartyMember
}

type PartyMember struct {
	CharacterID uint64
	Name        string
	Class       uint32
	GearLevel   float32
}

type PartyLeaveResultPayload struct {
	PartyInstanceID uint32
	CharacterID     uint64
}

// PartyStatusEffectResultNotifyPayload carries the (party, character) pair
// the game sends to confirm a character's party-scoped buff target
// resolved; the engine uses it to bind the character to its party instance
// the same way PartyInfo does.
type PartyStatusEffectResultNotifyPayload struct {
	PartyInstanceID uint32
	CharacterID     uint64
}

// StatusEffectPayload carries the fields needed to construct a
// StatusEffectDetails for StatusEffectAddNotify and PartyStatusEffectAddNotify.
type StatusEffectPayload struct {
	InstanceID      uint32
	SourceID        uint64
	TargetID        uint64
	StatusEffectID  uint32
	RawValue        []byte
	StackCount      uint32
	ExpirationDelay float64
	Timestamp       int64 // unix millis, 0 means "use now"
}

type StatusEffectRemoveNotifyPayload struct {
	TargetID   uint64
	InstanceID uint32
	Reason     StatusEffectRemoveReason
}

// StatusEffectRemoveReason distinguishes a natural expiry from an explicit
// removal, relevant to the incapacitation-tracker CC-remove rule which only fires on an explicit removal before natural expiry.
type StatusEffectRemoveReason int

const (
	RemoveReasonExplicit StatusEffectRemoveReason = iota
	RemoveReasonExpired
)

type StatusEffectSyncDataNotifyPayload struct {
	TargetID   uint64
	InstanceID uint32
	ObjectID   uint64 // character-id for party-scope resolution
	RawValue   []byte
}

type TroopMemberUpdateMinNotifyPayload struct {
	TargetID   uint64
	InstanceID uint32
	RawValue   []byte
}

// TriggerSignal names one of the numeric signal codes phase transitions
// key on.
type TriggerSignal int

type TriggerStartNotifyPayload struct {
	Signal TriggerSignal
}

type TriggerBossBattleStatusPayload struct {
	BossName string
}

type RaidBeginPayload struct {
	RaidID uint32
}

type RaidBossKillNotifyPayload struct{}

type RaidResultPayload struct{}

type ZoneMemberLoadStatusNotifyPayload struct {
	ZoneID    uint32
	ZoneLevel uint32
}

type ZoneObjectUnpublishNotifyPayload struct {
	ObjectID uint64
}

// StaggerUpdateNotifyPayload carries the boss stagger-gauge signal.
type StaggerUpdateNotifyPayload struct {
	BossID  uint64
	Current int64
	Max     int64
}

// BuffLookup is the subset of a metadata buff entry the dispatcher needs to
// classify a status effect at registration time, decoupled from the
// internal/metadata package so ports stays dependency-free.
type BuffLookup struct {
	SourceSkill uint32
	Category    string
	Type        string
	SupportBuff bool
	TargetScope string
}
