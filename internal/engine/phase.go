package engine

import "time"

// TriggerSignal names one of the raw signal codes a TriggerStartNotify
// packet carries. The phase controller only distinguishes clear vs. wipe
// signal sets.
type TriggerSignal int

var clearSignals = map[TriggerSignal]bool{57: true, 59: true, 61: true, 63: true, 74: true, 76: true}
var wipeSignals = map[TriggerSignal]bool{58: true, 60: true, 62: true, 64: true, 75: true, 77: true}

// PhaseAction is what the phase controller decided to do, for the
// dispatcher to turn into emitted events and a persistence dispatch.
type PhaseAction struct {
	Phase       Phase
	EmitPhase   bool
	ShouldSave  bool
	ZoneChanged bool
}

// Phase mirrors ports.Phase without importing the ports package, keeping
// the engine transport-free; the dispatch layer maps 1:1 between them.
type Phase uint8

const (
	PhaseZoneReset     Phase = 0
	PhaseBossKill      Phase = 1
	PhaseClear         Phase = 2
	PhaseBattleTrigger Phase = 3
	PhaseWipe          Phase = 4
)

// raidEndCaptureTimeoutDefault is the stock post-wipe/clear window; callers that
// need a different value should set it via SetRaidEndCaptureTimeout.
var raidEndCaptureTimeoutDefault = 10 * time.Second

// OnRaidBossKillNotify marks the raid cleared and reports a BossKill phase.
func (s *State) OnRaidBossKillNotify(now time.Time) PhaseAction {
	s.RaidClear = true
	return PhaseAction{Phase: PhaseBossKill, EmitPhase: true}
}

// OnTriggerStartNotify handles the clear and wipe trigger-signal
// sets. derivePartySnapshot is called only when PartyCache is empty, to let
// the dispatcher (which owns LocalPlayerStore/party bookkeeping) supply a
// freshly-derived snapshot.
func (s *State) OnTriggerStartNotify(signal TriggerSignal, now time.Time, derivePartySnapshot func() map[int32][]string) PhaseAction {
	isClear := clearSignals[signal]
	isWipe := wipeSignals[signal]
	if !isClear && !isWipe {
		return PhaseAction{}
	}

	// Decide persistence before mutating any state: the full save
	// precondition (damaged boss, at least one player with damage dealt),
	// not just "a boss is tracked".
	shouldSave := s.ShouldSave(false)

	s.PartyFreeze = true
	if s.PartyCache == nil && derivePartySnapshot != nil {
		s.PartyCache = derivePartySnapshot()
	}
	s.RaidClear = isClear
	s.raidEndCooldownUntil = now.Add(raidEndCaptureTimeoutDefault)
	s.Resetting = true

	phase := PhaseWipe
	if isClear {
		phase = PhaseClear
	}
	return PhaseAction{Phase: phase, EmitPhase: true, ShouldSave: shouldSave}
}

// OnTriggerBossBattleStatus fires a BattleTrigger phase when no boss is
// tracked yet, the fight has not started, or the tracked boss is Saydon.
func (s *State) OnTriggerBossBattleStatus(bossName string, now time.Time) PhaseAction {
	boss, hasBoss := s.CurrentBoss()
	condition := !hasBoss || !s.IsStarted() || (hasBoss && boss.Name == "Saydon")
	if !condition {
		return PhaseAction{}
	}
	shouldSave := s.ShouldSave(false)
	s.Saved = shouldSave
	s.Resetting = true
	return PhaseAction{Phase: PhaseBattleTrigger, EmitPhase: true, ShouldSave: shouldSave}
}

// OnInitEnv handles a zone change: wipes the graph and
// local status-effect registry, rekeys the local player, and performs a
// hard reset (soft reset keeping nobody). The caller must persist the
// in-flight encounter (if worth saving) before calling this — the wipe is
// immediate. region is the freshly re-read RegionStore value.
func (s *State) OnInitEnv(playerID uint64, region string, now time.Time) PhaseAction {
	s.Graph.OnInitEnv(playerID, now)
	s.StatusEffects.ClearLocal()
	s.Region = region
	s.softReset(false)
	return PhaseAction{Phase: PhaseZoneReset, ZoneChanged: true}
}

// OnRaidResult handles the end-of-raid scoreboard packet: it freezes the
// party snapshot and
// emits a ZoneReset-phase transition without forcing a save (unlike the
// TriggerStartNotify clear/wipe rows, it carries no boss-defeat signal of
// its own).
func (s *State) OnRaidResult(now time.Time, derivePartySnapshot func() map[int32][]string) PhaseAction {
	s.PartyFreeze = true
	if s.PartyCache == nil && derivePartySnapshot != nil {
		s.PartyCache = derivePartySnapshot()
	}
	s.raidEndCooldownUntil = now.Add(raidEndCaptureTimeoutDefault)
	return PhaseAction{Phase: PhaseZoneReset, EmitPhase: true}
}

// RaidDifficultyFor maps a raid_id to its difficulty name and id.
func RaidDifficultyFor(raidID uint32) (name string, id uint32) {
	switch {
	case raidID == 0:
		return "", 0
	case raidID%10 == 7:
		return "Trial", 7
	case raidID%10 == 8:
		return "Challenge", 8
	default:
		return "", 0
	}
}

// OnRaidBegin records the raid difficulty and whether the zone is tracked.
func (s *State) OnRaidBegin(raidID uint32, zoneIsRaid bool) {
	s.RaidDifficulty, s.RaidDifficultyID = RaidDifficultyFor(raidID)
	s.IsValidZone = zoneIsRaid
}

// ZoneLevelName maps a zone_level code to its difficulty name.
func ZoneLevelName(level uint32) string {
	switch level {
	case 0:
		return "Normal"
	case 1:
		return "Hard"
	case 2:
		return "Inferno"
	case 3:
		return "Challenge"
	case 4:
		return "Solo"
	case 5:
		return "The First"
	default:
		return ""
	}
}

// OnZoneMemberLoadStatus refreshes the difficulty from a zone-member load
// report: only applies when the new zone id exceeds
// (or the current difficulty is unset relative to) the tracked difficulty id.
func (s *State) OnZoneMemberLoadStatus(zoneID, zoneLevel uint32) {
	if s.RaidDifficultyID < zoneID || s.RaidDifficulty == "" {
		s.RaidDifficulty = ZoneLevelName(zoneLevel)
	}
}

// ShouldSave is the persistence gate. manual=true
// bypasses only the emptiness checks (no current boss / no damage dealt);
// it never bypasses started_on == MIN (see DESIGN.md Open Question 1).
func (s *State) ShouldSave(manual bool) bool {
	if !s.IsStarted() {
		return false
	}
	if manual {
		return true
	}
	boss, ok := s.CurrentBoss()
	if !ok || boss.CurrentHP >= boss.MaxHP {
		return false
	}
	for _, stats := range s.Graph.AllStats() {
		if stats.Kind == KindPlayer && stats.DamageStats.DamageDealt > 0 {
			return true
		}
	}
	return false
}

// softReset resets the entity graph
// (keeping players, and bosses if keepBosses), clears every encounter-scoped
// log/flag, and rearms started_on back to the MIN sentinel.
func (s *State) softReset(keepBosses bool) {
	s.Graph.softReset(keepBosses)
	s.CastLog.reset()

	s.DamageLog = make(map[string][]DamageLogPoint)
	s.IdentityLog = make(map[string][]IdentityLogPoint)
	s.CastLogProj = make(map[string]map[uint32][]int64)
	s.BossHPLog = make(map[string][]BossHPLogPoint)
	s.StaggerLog = make(map[string][]StaggerLogPoint)
	s.StaggerIntervals = make(map[string][]StaggerInterval)
	s.CustomIDMap = make(map[uint32]uint32)

	s.CurrentBossID = 0
	s.StartedOn = time.Time{}
	s.UpdatedOn = time.Time{}
	s.RaidClear = false
	s.NTPFightStart = 0
	s.RDPSValid = true
	s.staggerCurrent, s.staggerMax = 0, 0
	s.staggerDecreasing = false

	if !keepBosses {
		s.PartyCache = nil
		s.PartyMapCache = nil
	}
}

// SoftReset is the exported entry point the main loop calls on its reset
// flag and after a phase-triggered resetting flag.
func (s *State) SoftReset(keepBosses bool) {
	s.softReset(keepBosses)
}

// ClearTransientFlags resets the one-shot flags the main loop clears after
// acting on them at the end of a loop iteration.
func (s *State) ClearTransientFlags() {
	s.Resetting = false
	s.Saved = false
	s.PartyFreeze = false
	s.PartyCache = nil
	s.PartyMapCache = nil
}
