// Package ports defines the external interfaces the encounter core consumes
// : the packet source, damage decryptor, event emitter,
// persister, stats/heartbeat HTTP clients, and the region/local-player
// stores. The core depends only on these interfaces, never on their
// concrete implementations, so it can be driven by a live capture, a replay
// file, or a test fixture interchangeably.
package ports

import "fmt"

// Opcode identifies a decoded packet's kind.
type Opcode int

const (
	OpUnknown Opcode = iota
	OpInitEnv
	OpInitPC
	OpNewPC
	OpNewNpc
	OpNewNpcSummon
	OpNewProjectile
	OpNewTrap
	OpNewTransit
	OpRemoveObject
	OpDeathNotify
	OpCounterAttackNotify
	OpSkillCastNotify
	OpSkillStartNotify
	OpSkillDamageNotify
	OpSkillDamageAbnormalMoveNotify
	OpIdentityGaugeChangeNotify
	OpPartyInfo
	OpPartyLeaveResult
	OpPartyStatusEffectAddNotify
	OpPartyStatusEffectRemoveNotify
	OpPartyStatusEffectResultNotify
	OpStatusEffectAddNotify
	OpStatusEffectRemoveNotify
	OpStatusEffectSyncDataNotify
	OpTroopMemberUpdateMinNotify
	OpTriggerStartNotify
	OpTriggerBossBattleStatus
	OpRaidBegin
	OpRaidBossKillNotify
	OpRaidResult
	OpZoneMemberLoadStatusNotify
	OpZoneObjectUnpublishNotify
	OpStaggerUpdateNotify
)

var opcodeNames = map[Opcode]string{
	OpUnknown:                       "Unknown",
	OpInitEnv:                       "InitEnv",
	OpInitPC:                        "InitPC",
	OpNewPC:                         "NewPC",
	OpNewNpc:                        "NewNpc",
	OpNewNpcSummon:                  "NewNpcSummon",
	OpNewProjectile:                 "NewProjectile",
	OpNewTrap:                       "NewTrap",
	OpNewTransit:                    "NewTransit",
	OpRemoveObject:                  "RemoveObject",
	OpDeathNotify:                   "DeathNotify",
	OpCounterAttackNotify:           "CounterAttackNotify",
	OpSkillCastNotify:               "SkillCastNotify",
	OpSkillStartNotify:              "SkillStartNotify",
	OpSkillDamageNotify:             "SkillDamageNotify",
	OpSkillDamageAbnormalMoveNotify: "SkillDamageAbnormalMoveNotify",
	OpIdentityGaugeChangeNotify:     "IdentityGaugeChangeNotify",
	OpPartyInfo:                     "PartyInfo",
	OpPartyLeaveResult:              "PartyLeaveResult",
	OpPartyStatusEffectAddNotify:    "PartyStatusEffectAddNotify",
	OpPartyStatusEffectRemoveNotify: "PartyStatusEffectRemoveNotify",
	OpPartyStatusEffectResultNotify: "PartyStatusEffectResultNotify",
	OpStatusEffectAddNotify:         "StatusEffectAddNotify",
	OpStatusEffectRemoveNotify:      "StatusEffectRemoveNotify",
	OpStatusEffectSyncDataNotify:    "StatusEffectSyncDataNotify",
	OpTroopMemberUpdateMinNotify:    "TroopMemberUpdateMinNotify",
	OpTriggerStartNotify:            "TriggerStartNotify",
	OpTriggerBossBattleStatus:       "TriggerBossBattleStatus",
	OpRaidBegin:                     "RaidBegin",
	OpRaidBossKillNotify:            "RaidBossKillNotify",
	OpRaidResult:                    "RaidResult",
	OpZoneMemberLoadStatusNotify:    "ZoneMemberLoadStatusNotify",
	OpZoneObjectUnpublishNotify:     "ZoneObjectUnpublishNotify",
	OpStaggerUpdateNotify:           "StaggerUpdateNotify",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(%d)", int(o))
}

// Packet is one decoded wire message: an opcode tag plus its already-decoded
// payload. The core never touches raw bytes; decoding
// happens upstream in the capture/decode collaborator.
type Packet struct {
	Opcode  Opcode
	Payload any
}

// PacketSource is the capture collaborator the main loop pulls from.
type PacketSource interface {
	// Recv returns the next decoded packet, or ok=false on clean end-of-stream.
	Recv() (pkt Packet, ok bool)
}
