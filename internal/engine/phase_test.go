package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raidtrack/engine/internal/engine"
)

func TestShouldSave_FalseBeforeEncounterStarts(t *testing.T) {
	s := newTestState(t)
	assert.False(t, s.ShouldSave(false))
	assert.False(t, s.ShouldSave(true), "manual never bypasses started_on == MIN")
}

func TestShouldSave_FalseWhenBossFullHPOrNoDamage(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	s.Graph.OnInitPC(100, 7, "Anna", 5, 1000, 60, 1_000_000, 1_000_000, now)
	s.Graph.NewNpc(200, 500, engine.KindBoss, 1_000_000_000, 1_000_000_000, false, 0, "Test Boss", 0, now)
	s.HandleSkillDamage(100, 21304, 0, []engine.DamageEvent{{
		TargetID: 200, Damage: 0, CurHP: 1_000_000_000, MaxHP: 1_000_000_000,
	}}, false, now, alwaysDecrypts)

	require.True(t, s.IsStarted())
	assert.False(t, s.ShouldSave(false), "boss still at full hp and nobody has dealt damage")
}

func TestShouldSave_TrueOncePlayerHasDealtDamage(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	s.Graph.OnInitPC(100, 7, "Anna", 5, 1000, 60, 1_000_000, 1_000_000, now)
	s.Graph.NewNpc(200, 500, engine.KindBoss, 1_000_000_000, 1_000_000_000, false, 0, "Test Boss", 0, now)
	s.HandleSkillDamage(100, 21304, 0, []engine.DamageEvent{{
		TargetID: 200, Damage: 500, CurHP: 999_999_500, MaxHP: 1_000_000_000,
	}}, false, now, alwaysDecrypts)

	assert.True(t, s.ShouldSave(false))
}

func TestShouldSave_ManualBypassesEmptinessChecksOnly(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	s.Graph.OnInitPC(100, 7, "Anna", 5, 1000, 60, 1_000_000, 1_000_000, now)
	s.Graph.NewNpc(200, 500, engine.KindBoss, 1_000_000_000, 1_000_000_000, false, 0, "Test Boss", 0, now)
	s.HandleSkillDamage(100, 21304, 0, []engine.DamageEvent{{
		TargetID: 200, Damage: 0, CurHP: 1_000_000_000, MaxHP: 1_000_000_000,
	}}, false, now, alwaysDecrypts)

	require.False(t, s.ShouldSave(false), "precondition: boss untouched, nobody dealt damage")
	assert.True(t, s.ShouldSave(true), "manual save bypasses the boss/damage emptiness checks")
}

// TestPhase_ClearTriggerSavesAndResets: a
// TriggerStartNotify clear signal against an active boss fight marks the
// phase as Clear, freezes the party, arms the save flag, and schedules the
// raid-end cooldown.
func TestPhase_ClearTriggerSavesAndResets(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	s.Graph.OnInitPC(100, 7, "Anna", 5, 1000, 60, 1_000_000, 1_000_000, now)
	s.Graph.NewNpc(200, 500, engine.KindBoss, 1_000_000_000, 1_000_000_000, false, 0, "Test Boss", 0, now)
	s.HandleSkillDamage(100, 21304, 0, []engine.DamageEvent{{
		TargetID: 200, Damage: 100_000, CurHP: 999_900_000, MaxHP: 1_000_000_000,
	}}, false, now, alwaysDecrypts)

	action := s.OnTriggerStartNotify(57, now, nil) // 57 is a clear signal
	require.True(t, action.EmitPhase)
	assert.Equal(t, engine.PhaseClear, action.Phase)
	assert.True(t, action.ShouldSave, "a damaged boss and a player with damage dealt make the clear save-worthy")
	assert.True(t, s.RaidClear)
	assert.True(t, s.PartyFreeze)
	assert.True(t, s.Resetting)
	assert.True(t, s.InRaidEndCooldown(now))
	assert.False(t, s.InRaidEndCooldown(now.Add(time.Hour)))
}

// A clear trigger against an untouched boss (full HP, nobody has dealt
// damage) still transitions the phase but must not persist an empty
// encounter.
func TestPhase_ClearTriggerOnUntouchedBossDoesNotSave(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	s.Graph.OnInitPC(100, 7, "Anna", 5, 1000, 60, 1_000_000, 1_000_000, now)
	s.Graph.NewNpc(200, 500, engine.KindBoss, 1_000_000_000, 1_000_000_000, false, 0, "Test Boss", 0, now)

	action := s.OnTriggerStartNotify(57, now, nil)
	require.True(t, action.EmitPhase)
	assert.Equal(t, engine.PhaseClear, action.Phase)
	assert.False(t, action.ShouldSave, "full-HP boss with zero damage dealt fails the save precondition")
	assert.True(t, s.Resetting)
}

// The battle-trigger transition applies the same save precondition instead
// of saving unconditionally.
func TestPhase_BossBattleStatusOnlySavesWhenEncounterHasSubstance(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	s.Graph.OnInitPC(100, 7, "Anna", 5, 1000, 60, 1_000_000, 1_000_000, now)

	// No boss tracked, nothing started: the trigger fires but saves nothing.
	action := s.OnTriggerBossBattleStatus("Test Boss", now)
	require.True(t, action.EmitPhase)
	assert.Equal(t, engine.PhaseBattleTrigger, action.Phase)
	assert.False(t, action.ShouldSave)
	assert.False(t, s.Saved)
}

func TestOnTriggerStartNotify_WipeSignalMarksWipeNotClear(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	s.Graph.NewNpc(200, 500, engine.KindBoss, 1_000_000_000, 1_000_000_000, false, 0, "Test Boss", 0, now)

	action := s.OnTriggerStartNotify(58, now, nil) // 58 is a wipe signal
	assert.Equal(t, engine.PhaseWipe, action.Phase)
	assert.False(t, s.RaidClear)
}

func TestOnTriggerStartNotify_UnknownSignalIsNoop(t *testing.T) {
	s := newTestState(t)
	now := time.Now()

	action := s.OnTriggerStartNotify(1, now, nil)
	assert.False(t, action.EmitPhase)
	assert.False(t, s.PartyFreeze)
}

func TestOnTriggerStartNotify_DerivesPartySnapshotOnlyWhenCacheEmpty(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	called := false
	derive := func() map[int32][]string {
		called = true
		return map[int32][]string{1: {"Anna"}}
	}

	s.OnTriggerStartNotify(57, now, derive)
	assert.True(t, called, "empty party cache: snapshot is derived")

	called = false
	s.OnTriggerStartNotify(57, now, derive)
	assert.False(t, called, "party cache already populated: snapshot is not re-derived")
}

// TestSoftReset_PreservesIdentityAndHPDropsStats: after a reset keeping
// bosses, every
// remaining EncounterEntity's damage_stats is default, identity/HP fields
// are preserved, and non-player/non-boss entities are dropped.
func TestSoftReset_PreservesIdentityAndHPDropsStats(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	s.Graph.OnInitPC(100, 7, "Anna", 5, 1000, 60, 1_000_000, 1_000_000, now)
	s.Graph.NewNpc(200, 500, engine.KindBoss, 900_000_000, 1_000_000_000, false, 0, "Test Boss", 0, now)
	s.Graph.NewNpc(300, 100, engine.KindNpc, 1000, 1000, false, 0, "Trash Mob", 0, now)

	s.HandleSkillDamage(100, 21304, 0, []engine.DamageEvent{{
		TargetID: 200, Damage: 100_000_000, CurHP: 900_000_000, MaxHP: 1_000_000_000,
	}}, false, now, alwaysDecrypts)

	annaBefore, _ := s.Graph.StatsIfExists(100)
	require.Greater(t, annaBefore.DamageStats.DamageDealt, int64(0))
	require.NotZero(t, s.StartedOn)

	s.SoftReset(true)

	assert.True(t, s.StartedOn.IsZero())
	assert.Equal(t, uint64(0), s.CurrentBossID)

	anna, ok := s.Graph.StatsIfExists(100)
	require.True(t, ok, "the player is kept")
	assert.Equal(t, int64(0), anna.DamageStats.DamageDealt, "damage stats reset to default")
	assert.Equal(t, "Anna", anna.Name, "identity preserved")
	assert.Equal(t, engine.Class(5), anna.Class)

	boss, ok := s.Graph.StatsIfExists(200)
	require.True(t, ok, "keep_bosses=true keeps the boss")
	assert.Equal(t, int64(900_000_000), boss.CurrentHP, "HP is preserved across a soft reset")
	assert.Equal(t, int64(0), boss.DamageStats.DamageTaken)

	_, ok = s.Graph.StatsIfExists(300)
	assert.False(t, ok, "a plain npc is dropped by a soft reset")
}

func TestSoftReset_DropsBossWhenKeepBossesFalse(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	s.Graph.OnInitPC(100, 7, "Anna", 5, 1000, 60, 1_000_000, 1_000_000, now)
	s.Graph.NewNpc(200, 500, engine.KindBoss, 1_000_000_000, 1_000_000_000, false, 0, "Test Boss", 0, now)

	s.SoftReset(false)

	_, ok := s.Graph.StatsIfExists(200)
	assert.False(t, ok)
	_, ok = s.Graph.StatsIfExists(100)
	assert.True(t, ok, "players always survive a soft reset")
}

func TestOnRaidBossKillNotify_MarksClearAndEmitsPhase(t *testing.T) {
	s := newTestState(t)
	action := s.OnRaidBossKillNotify(time.Now())
	assert.True(t, s.RaidClear)
	assert.Equal(t, engine.PhaseBossKill, action.Phase)
	assert.True(t, action.EmitPhase)
}

func TestZoneLevelName(t *testing.T) {
	cases := map[uint32]string{0: "Normal", 1: "Hard", 2: "Inferno", 3: "Challenge", 4: "Solo", 5: "The First", 99: ""}
	for level, want := range cases {
		assert.Equal(t, want, engine.ZoneLevelName(level))
	}
}

func TestRaidDifficultyFor(t *testing.T) {
	name, id := engine.RaidDifficultyFor(1107)
	assert.Equal(t, "Trial", name)
	assert.Equal(t, uint32(7), id)

	name, id = engine.RaidDifficultyFor(1108)
	assert.Equal(t, "Challenge", name)
	assert.Equal(t, uint32(8), id)

	name, id = engine.RaidDifficultyFor(1100)
	assert.Equal(t, "", name)
	assert.Equal(t, uint32(0), id)
}
