// Package dispatch wires decoded ports.Packet values into engine.State
// method calls, translating wire-shaped payloads (raw ids, packed
// modifiers) into the domain types the encounter core consumes: a table
// keyed by a discrete tag, with panic recovery so one malformed packet
// never aborts capture.
package dispatch

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/raidtrack/engine/internal/engine"
	"github.com/raidtrack/engine/internal/metadata"
	"github.com/raidtrack/engine/internal/ports"
	"github.com/raidtrack/engine/internal/rules"
)

// HandlerFunc handles one decoded packet's payload against the live state.
type HandlerFunc func(d *Dispatcher, payload any, now time.Time)

// Dispatcher routes ports.Packet values to the engine and emits the
// resulting domain events:
// the routing table holds handlers, the Dispatcher holds the dependencies a
// handler needs (state, tables, emitter, decryptor).
type Dispatcher struct {
	State     *engine.State
	Tables    *metadata.Tables
	Emitter   ports.EventEmitter
	Decryptor ports.DamageDecryptor
	Region    ports.RegionStore
	Rules     *rules.Engine
	Stats     ports.StatsApi
	Log       *zap.Logger

	// SaveNow synchronously snapshots the current encounter for the
	// persister. Wired by the main loop; used where a handler is about to
	// destroy the state a deferred save would have read (InitEnv).
	SaveNow func()

	handlers map[ports.Opcode]HandlerFunc

	localPlayerID uint64
	usageCounts   map[uint64]int
	recordUsage   func(characterID uint64, name string)
}

// New builds a Dispatcher with every consumed opcode routed to its
// handler.
func New(state *engine.State, tables *metadata.Tables, emitter ports.EventEmitter, decryptor ports.DamageDecryptor, ruleEngine *rules.Engine, log *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		State:       state,
		Tables:      tables,
		Emitter:     emitter,
		Decryptor:   decryptor,
		Rules:       ruleEngine,
		Log:         log,
		handlers:    make(map[ports.Opcode]HandlerFunc),
		usageCounts: make(map[uint64]int),
	}
	d.registerHandlers()
	return d
}

// SetUsageTracking wires the local-player usage-counting collaborators the
// party-info handler consults to infer which party member is the local
// player.
func (d *Dispatcher) SetUsageTracking(counts map[uint64]int, record func(characterID uint64, name string)) {
	d.usageCounts = counts
	d.recordUsage = record
}

// Dispatch routes one packet, recovering from a handler panic so a single
// malformed packet never crashes the capture loop.
func (d *Dispatcher) Dispatch(pkt ports.Packet, now time.Time) {
	fn, ok := d.handlers[pkt.Opcode]
	if !ok {
		d.Log.Debug("unhandled opcode", zap.Stringer("opcode", pkt.Opcode))
		return
	}
	d.safeCall(fn, pkt, now)
}

func (d *Dispatcher) safeCall(fn HandlerFunc, pkt ports.Packet, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			d.Log.Error("recovered handler panic",
				zap.Stringer("opcode", pkt.Opcode),
				zap.Any("panic", r),
			)
		}
	}()
	fn(d, pkt.Payload, now)
}

func (d *Dispatcher) registerHandlers() {
	d.handlers[ports.OpInitEnv] = handleInitEnv
	d.handlers[ports.OpInitPC] = handleInitPC
	d.handlers[ports.OpNewPC] = handleNewPC
	d.handlers[ports.OpNewNpc] = handleNewNpc
	d.handlers[ports.OpNewNpcSummon] = handleNewNpc
	d.handlers[ports.OpNewProjectile] = handleNewProjectile
	d.handlers[ports.OpNewTrap] = handleNewTrap
	d.handlers[ports.OpNewTransit] = handleNewTransit
	d.handlers[ports.OpRemoveObject] = handleRemoveObject
	d.handlers[ports.OpZoneObjectUnpublishNotify] = handleZoneObjectUnpublish
	d.handlers[ports.OpDeathNotify] = handleDeath
	d.handlers[ports.OpSkillStartNotify] = handleSkillStart
	d.handlers[ports.OpSkillCastNotify] = handleSkillCast
	d.handlers[ports.OpCounterAttackNotify] = handleCounterAttack
	d.handlers[ports.OpPartyLeaveResult] = handlePartyLeaveResult
	d.handlers[ports.OpPartyStatusEffectResultNotify] = handlePartyStatusEffectResult
	d.handlers[ports.OpRaidResult] = handleRaidResult
	d.handlers[ports.OpSkillDamageNotify] = handleSkillDamage
	d.handlers[ports.OpSkillDamageAbnormalMoveNotify] = handleSkillDamageAbnormalMove
	d.handlers[ports.OpIdentityGaugeChangeNotify] = handleIdentityGaugeChange
	d.handlers[ports.OpPartyInfo] = handlePartyInfo
	d.handlers[ports.OpStatusEffectAddNotify] = handleStatusEffectAdd
	d.handlers[ports.OpPartyStatusEffectAddNotify] = handleStatusEffectAdd
	d.handlers[ports.OpStatusEffectRemoveNotify] = handleStatusEffectRemove
	d.handlers[ports.OpPartyStatusEffectRemoveNotify] = handleStatusEffectRemove
	d.handlers[ports.OpStatusEffectSyncDataNotify] = handleStatusEffectSync
	d.handlers[ports.OpTroopMemberUpdateMinNotify] = handleTroopMemberUpdate
	d.handlers[ports.OpTriggerStartNotify] = handleTriggerStart
	d.handlers[ports.OpTriggerBossBattleStatus] = handleTriggerBossBattleStatus
	d.handlers[ports.OpRaidBegin] = handleRaidBegin
	d.handlers[ports.OpRaidBossKillNotify] = handleRaidBossKill
	d.handlers[ports.OpZoneMemberLoadStatusNotify] = handleZoneMemberLoadStatus
	d.handlers[ports.OpStaggerUpdateNotify] = handleStaggerUpdate
}

func payloadErr(opcode string, payload any) {
	panic(fmt.Sprintf("dispatch: %s got unexpected payload type %T", opcode, payload))
}
