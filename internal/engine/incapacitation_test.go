package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raidtrack/engine/internal/engine"
)

func TestIncapacitation_InfiniteCCRemovedAfterThreeSeconds(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	s.Graph.Stats(1, now) // ensure EncounterEntity exists

	s.OnStatusEffectAdd(1, 0, 1, 0, 777, 0, nil, 1, 0, engine.BuffCategoryOther, engine.CategoryDebuff, engine.EffectTypeHardCrowdControl, now)
	stats, _ := s.Graph.StatsIfExists(1)
	assert.Empty(t, stats.DamageStats.Incapacitations, "infinite CC is deferred until removal")

	removedAt := now.Add(3 * time.Second)
	s.OnStatusEffectRemove(engine.TargetLocal, 1, 1, true, removedAt)

	require.Len(t, stats.DamageStats.Incapacitations, 1)
	ev := stats.DamageStats.Incapacitations[0]
	assert.Equal(t, engine.IncapCrowdControl, ev.Type)
	assert.InDelta(t, 3*time.Second, ev.Duration, float64(10*time.Millisecond))
}

func TestIncapacitation_FiniteCCPushedImmediately(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	s.Graph.Stats(1, now)

	s.OnStatusEffectAdd(1, 0, 1, 0, 777, 0, nil, 1, 2.5, engine.BuffCategoryOther, engine.CategoryDebuff, engine.EffectTypeHardCrowdControl, now)

	stats, _ := s.Graph.StatsIfExists(1)
	require.Len(t, stats.DamageStats.Incapacitations, 1)
	assert.Equal(t, 2500*time.Millisecond, stats.DamageStats.Incapacitations[0].Duration)
}

func TestIncapacitation_TwoFallDownEventsMerge(t *testing.T) {
	s := newTestState(t)
	base := time.Now()
	s.Graph.NewPC(1, 10, "Anna", 5, 1000, 60, 1000, 1000, base)
	s.Graph.Stats(1, base)

	// First FallDown at t=0, duration 4000ms.
	result := s.HandleSkillDamage(1, 0, 0, []engine.DamageEvent{{
		TargetID: 1, Damage: 1, CurHP: 900, MaxHP: 1000,
		HasMoveData: true, DownTimeSec: 4,
	}}, true, base, alwaysDecrypts)
	require.True(t, result.RaidStarted)

	// Second FallDown at t=+1.5s, duration 3000ms: must clip the first to [0,1500].
	atSecond := base.Add(1500 * time.Millisecond)
	s.HandleSkillDamage(1, 0, 0, []engine.DamageEvent{{
		TargetID: 1, Damage: 1, CurHP: 899, MaxHP: 1000,
		HasMoveData: true, DownTimeSec: 3,
	}}, true, atSecond, alwaysDecrypts)

	stats, _ := s.Graph.StatsIfExists(1)
	require.Len(t, stats.DamageStats.Incapacitations, 2)
	first, second := stats.DamageStats.Incapacitations[0], stats.DamageStats.Incapacitations[1]
	assert.Equal(t, base, first.Timestamp)
	assert.Equal(t, 1500*time.Millisecond, first.Duration, "first FallDown clipped at the second's start")
	assert.Equal(t, atSecond, second.Timestamp)
	assert.Equal(t, 3*time.Second, second.Duration)
}

func TestIncapacitation_GetUpSkillClipsInProgressFallDown(t *testing.T) {
	s := newTestState(t)
	base := time.Now()
	s.Graph.NewPC(1, 10, "Anna", 5, 1000, 60, 1000, 1000, base)
	s.Graph.Stats(1, base)

	s.HandleSkillDamage(1, 0, 0, []engine.DamageEvent{{
		TargetID: 1, Damage: 1, CurHP: 900, MaxHP: 1000,
		HasMoveData: true, DownTimeSec: 3,
	}}, true, base, alwaysDecrypts)

	castAt := base.Add(1 * time.Second)
	s.OnSkillStart(1, 88888, 0, [3]int{}, [3]int{}, castAt) // 88888 is flagged is_get_up in the test fixture

	stats, _ := s.Graph.StatsIfExists(1)
	require.Len(t, stats.DamageStats.Incapacitations, 1)
	assert.Equal(t, 1*time.Second, stats.DamageStats.Incapacitations[0].Duration)
}

// TestIncapacitation_KnockupClipping: a
// 2s fall-down clipped to 500ms by a second fall-down 0.5s later carrying
// its own 3s duration, followed by a get-up cast 1s into the second span
// clipping it down to 1000ms.
func TestIncapacitation_KnockupClipping(t *testing.T) {
	s := newTestState(t)
	base := time.Now()
	s.Graph.NewPC(1, 10, "Anna", 5, 1000, 60, 1000, 1000, base)
	s.Graph.Stats(1, base)

	s.HandleSkillDamage(1, 0, 0, []engine.DamageEvent{{
		TargetID: 1, Damage: 1, CurHP: 900, MaxHP: 1000,
		HasMoveData: true, DownTimeSec: 2,
	}}, true, base, alwaysDecrypts)

	atSecond := base.Add(500 * time.Millisecond)
	s.HandleSkillDamage(1, 0, 0, []engine.DamageEvent{{
		TargetID: 1, Damage: 1, CurHP: 899, MaxHP: 1000,
		HasMoveData: true, DownTimeSec: 3,
	}}, true, atSecond, alwaysDecrypts)

	castAt := atSecond.Add(1 * time.Second)
	s.OnSkillStart(1, 88888, 0, [3]int{}, [3]int{}, castAt)

	stats, _ := s.Graph.StatsIfExists(1)
	require.Len(t, stats.DamageStats.Incapacitations, 2)
	first, second := stats.DamageStats.Incapacitations[0], stats.DamageStats.Incapacitations[1]
	assert.Equal(t, 500*time.Millisecond, first.Duration, "first fall-down clipped by the second's start")
	assert.Equal(t, 1*time.Second, second.Duration, "second fall-down clipped by the get-up cast")
}

func TestIncapacitation_DeathCapsInProgressSpans(t *testing.T) {
	s := newTestState(t)
	base := time.Now()
	s.Graph.Stats(1, base)
	s.OnStatusEffectAdd(1, 0, 1, 0, 777, 0, nil, 1, 10, engine.BuffCategoryOther, engine.CategoryDebuff, engine.EffectTypeHardCrowdControl, base)

	deathAt := base.Add(2 * time.Second)
	s.OnDeath(1, deathAt)

	stats, _ := s.Graph.StatsIfExists(1)
	require.Len(t, stats.DamageStats.Incapacitations, 1)
	assert.Equal(t, 2*time.Second, stats.DamageStats.Incapacitations[0].Duration)
	assert.Equal(t, deathAt, stats.DamageStats.DeathTime)
	assert.Equal(t, 1, stats.DamageStats.Deaths)
}

func alwaysDecrypts(ev *engine.DamageEvent) bool { return true }
