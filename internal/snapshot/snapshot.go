// Package snapshot builds the periodic UI-facing view of a running
// encounter: a pruned clone of the entity-stats map, plus a
// debounced party snapshot, emitted through a ports.EventEmitter.
package snapshot

import (
	"time"

	"github.com/raidtrack/engine/internal/engine"
	"github.com/raidtrack/engine/internal/ports"
)

// Emitter tracks the cadence state needed to decide, on each main-loop
// tick, whether a snapshot is due. It holds no encounter
// data itself — State remains the sole source of truth.
type Emitter struct {
	period      time.Duration
	partyPeriod time.Duration
	emit        ports.EventEmitter

	lastSnapshot time.Time
	lastParty    time.Time

	wasDamageValid bool
	everSnapshot   bool
}

// New builds an Emitter. period is the entity-stats cadence (snapshot_period
// or snapshot_period_low_perf depending on low_performance_mode);
// partyPeriod is the party-snapshot sub-cadence.
func New(emit ports.EventEmitter, period, partyPeriod time.Duration) *Emitter {
	return &Emitter{emit: emit, period: period, partyPeriod: partyPeriod, wasDamageValid: true}
}

// Due reports whether an entity-stats snapshot should fire this tick:
// the period has elapsed, or the state is mid-reset, or a boss just died.
func (e *Emitter) Due(s *engine.State, now time.Time) bool {
	if s.Resetting || s.BossDeadUpdate {
		return true
	}
	return !e.everSnapshot || now.Sub(e.lastSnapshot) >= e.period
}

// Emit builds and emits the pruned EncounterUpdate, the debounced party
// snapshot (when due and party_freeze is false), and a one-shot
// InvalidDamage transition, then advances the cadence clocks.
func (e *Emitter) Emit(s *engine.State, now time.Time) {
	e.emit.Emit(ports.EventEncounterUpdate{Snapshot: pruneStats(s)})
	e.lastSnapshot = now
	e.everSnapshot = true

	if !s.PartyFreeze && now.Sub(e.lastParty) >= e.partyPeriod {
		if parties := completeParties(s.Graph); parties != nil {
			s.PartyCache = parties
		}
		if s.PartyCache != nil {
			e.emit.Emit(ports.EventPartyUpdate{Parties: s.PartyCache})
		}
		e.lastParty = now
	}

	if e.wasDamageValid && !s.DamageIsValid {
		e.emit.Emit(ports.EventInvalidDamage{})
	}
	e.wasDamageValid = s.DamageIsValid
}

// pruneStats clones the entity-stats map keeping only entities with
// damage_dealt > 0, players, or the current boss.
func pruneStats(s *engine.State) map[uint64]*engine.EncounterEntity {
	all := s.Graph.AllStats()
	out := make(map[uint64]*engine.EncounterEntity, len(all))
	for id, ee := range all {
		if ee.DamageStats.DamageDealt > 0 || ee.Kind == engine.KindPlayer || id == s.CurrentBossID {
			out[id] = ee
		}
	}
	return out
}

// completeParties returns the live party roster keyed by party instance id,
// or nil if any known party does not have exactly 4 members.
func completeParties(g *engine.Graph) map[int32][]string {
	parties := g.Parties()
	if len(parties) == 0 {
		return nil
	}
	for _, members := range parties {
		if len(members) != 4 {
			return nil
		}
	}
	return parties
}
