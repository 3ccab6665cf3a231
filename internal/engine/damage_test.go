package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raidtrack/engine/internal/engine"
)

// First valid damage of a session must start the encounter, pick the boss,
// and attribute the hit on both ends.
func TestDamage_FirstBloodStartsEncounter(t *testing.T) {
	s := newTestState(t)
	now := time.Now()

	s.Graph.OnInitPC(100, 7, "Anna", 5, 1000, 60, 1_000_000, 1_000_000, now)
	s.Graph.NewNpc(200, 500, engine.KindBoss, 1_000_000_000, 1_000_000_000, false, 0, "Test Boss", 0, now)

	assert.False(t, s.IsStarted())

	result := s.HandleSkillDamage(100, 21304, 0, []engine.DamageEvent{{
		TargetID: 200, Damage: 10_000, CurHP: 1_000_000_000 - 10_000, MaxHP: 1_000_000_000,
		HitFlag: engine.HitNormal, HitOption: engine.HitOptionFlankAttack,
	}}, false, now, alwaysDecrypts)

	require.True(t, result.RaidStarted)
	assert.True(t, s.IsStarted())
	assert.NotZero(t, s.NTPFightStart)
	assert.Equal(t, uint64(200), s.CurrentBossID)

	source, ok := s.Graph.StatsIfExists(100)
	require.True(t, ok)
	assert.Equal(t, int64(10_000), source.DamageStats.DamageDealt)

	target, ok := s.Graph.StatsIfExists(200)
	require.True(t, ok)
	assert.Equal(t, int64(0), target.DamageStats.DamageTaken, "damage_taken only accrues for player targets")

	hpLog := s.BossHPLog["Test Boss"]
	require.Len(t, hpLog, 1)
	assert.Equal(t, int64(0), hpLog[0].TSec)
}

// With boss-only damage on, player-to-player events must leave no trace.
func TestDamage_BossOnlyFilter(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	s.BossOnlyDamage = true

	s.Graph.OnInitPC(100, 7, "Anna", 5, 1000, 60, 1_000_000, 1_000_000, now)
	s.Graph.NewPC(101, 8, "Bob", 2, 1000, 60, 1_000_000, 1_000_000, now)
	s.Graph.NewNpc(200, 500, engine.KindBoss, 1_000_000_000, 1_000_000_000, false, 0, "Test Boss", 0, now)

	// Player -> player: must be dropped entirely under boss-only damage.
	s.HandleSkillDamage(100, 1, 0, []engine.DamageEvent{{
		TargetID: 101, Damage: 999, CurHP: 999_001, MaxHP: 1_000_000,
	}}, false, now, alwaysDecrypts)
	assert.False(t, s.IsStarted(), "player-vs-player damage must not even start the encounter")

	bobStats, _ := s.Graph.StatsIfExists(101)
	assert.Equal(t, int64(0), bobStats.DamageStats.DamageTaken)

	// Player -> boss: must still be attributed.
	result := s.HandleSkillDamage(100, 21304, 0, []engine.DamageEvent{{
		TargetID: 200, Damage: 5000, CurHP: 999_995_000, MaxHP: 1_000_000_000,
	}}, false, now, alwaysDecrypts)
	assert.True(t, result.RaidStarted)
	annaStats, _ := s.Graph.StatsIfExists(100)
	assert.Equal(t, int64(5000), annaStats.DamageStats.DamageDealt)
}

func TestDamage_InvincibleHitProducesNoStateChange(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	s.Graph.OnInitPC(100, 7, "Anna", 5, 1000, 60, 1_000_000, 1_000_000, now)
	s.Graph.NewNpc(200, 500, engine.KindBoss, 1_000_000_000, 1_000_000_000, false, 0, "Test Boss", 0, now)

	result := s.HandleSkillDamage(100, 21304, 0, []engine.DamageEvent{{
		TargetID: 200, Damage: 10_000, HitFlag: engine.HitInvincible, CurHP: 1_000_000_000, MaxHP: 1_000_000_000,
	}}, false, now, alwaysDecrypts)

	assert.False(t, result.RaidStarted)
	assert.False(t, s.IsStarted())
	stats, ok := s.Graph.StatsIfExists(200)
	require.True(t, ok) // NewNpc already seeded the boss's stats entry
	assert.Equal(t, int64(0), stats.DamageStats.DamageTaken)
}

func TestDamage_DamageShareWithNoSkillProducesNoStateChange(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	s.Graph.OnInitPC(100, 7, "Anna", 5, 1000, 60, 1_000_000, 1_000_000, now)
	s.Graph.NewNpc(200, 500, engine.KindBoss, 1_000_000_000, 1_000_000_000, false, 0, "Test Boss", 0, now)

	result := s.HandleSkillDamage(100, 0, 0, []engine.DamageEvent{{
		TargetID: 200, Damage: 10_000, HitFlag: engine.HitDamageShare, CurHP: 1_000_000_000, MaxHP: 1_000_000_000,
	}}, false, now, alwaysDecrypts)

	assert.False(t, result.RaidStarted)
	assert.False(t, s.IsStarted())
}

func TestDamage_DecryptionFailureMarksInvalidAndSkipsEvent(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	s.Graph.OnInitPC(100, 7, "Anna", 5, 1000, 60, 1_000_000, 1_000_000, now)
	s.Graph.NewNpc(200, 500, engine.KindBoss, 1_000_000_000, 1_000_000_000, false, 0, "Test Boss", 0, now)
	s.DamageIsValid = true

	never := func(ev *engine.DamageEvent) bool { return false }
	result := s.HandleSkillDamage(100, 21304, 0, []engine.DamageEvent{{
		TargetID: 200, Damage: 10_000, CurHP: 1_000_000_000, MaxHP: 1_000_000_000,
	}}, false, now, never)

	assert.True(t, result.DamageInvalid)
	assert.False(t, s.DamageIsValid)
	assert.False(t, s.IsStarted(), "a failed decryption is not a valid first hit")
}

// TestDamage_SelfScopedDebuffFromOtherSourceIsNotAttributed exercises the
// self-debuff filter end to end: a self-only debuff a
// different source placed on the boss must not show up in an unrelated
// attacker's debuffed_by map.
func TestDamage_SelfScopedDebuffFromOtherSourceIsNotAttributed(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	s.Graph.OnInitPC(100, 7, "Anna", 5, 1000, 60, 1_000_000, 1_000_000, now)
	s.Graph.NewPC(101, 8, "Bob", 2, 1000, 60, 1_000_000, 1_000_000, now)
	s.Graph.NewNpc(200, 500, engine.KindBoss, 1_000_000_000, 1_000_000_000, false, 0, "Test Boss", 0, now)

	// Bob (101) places a self-scoped debuff on the boss.
	s.OnStatusEffectAdd(1, 101, 200, 0, 700100, 0, nil, 1, 0, engine.BuffCategoryOther, engine.CategoryDebuff, engine.EffectTypeOther, now)

	// Anna (100), a different source, hits the boss; the leaked debuff must
	// not land in Anna's debuffed_by attribution.
	s.HandleSkillDamage(100, 21304, 0, []engine.DamageEvent{{
		TargetID: 200, Damage: 1000, CurHP: 999_999_000, MaxHP: 1_000_000_000,
	}}, false, now, alwaysDecrypts)

	anna, ok := s.Graph.StatsIfExists(100)
	require.True(t, ok)
	assert.Empty(t, anna.DamageStats.DebuffedBy, "self-scoped debuff from a different source must be filtered out")
}

// TestDamage_SupportBuffAttributedOnBothSkillAndEntity: a support buff on
// the source must be recorded
// both on the per-skill breakdown (Skill.BuffedBy) and the per-entity
// breakdown (DamageStats.BuffedBy).
func TestDamage_SupportBuffAttributedOnBothSkillAndEntity(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	s.Graph.OnInitPC(100, 7, "Anna", 5, 1000, 60, 1_000_000, 1_000_000, now)
	s.Graph.NewNpc(200, 500, engine.KindBoss, 1_000_000_000, 1_000_000_000, false, 0, "Test Boss", 0, now)

	// Anna buffs herself with the "Harp of Rescue" support buff before hitting
	// the boss.
	s.OnStatusEffectAdd(1, 100, 100, 100, 210709, 0, nil, 1, 0,
		engine.BuffCategoryClassSkill, engine.CategoryBuff, engine.EffectTypeShield, now)

	s.HandleSkillDamage(100, 21304, 0, []engine.DamageEvent{{
		TargetID: 200, Damage: 1000, CurHP: 999_999_000, MaxHP: 1_000_000_000,
	}}, false, now, alwaysDecrypts)

	anna, ok := s.Graph.StatsIfExists(100)
	require.True(t, ok)
	assert.Equal(t, int64(1000), anna.DamageStats.BuffedBy[210709], "entity-level per-buff breakdown")

	skill, ok := anna.Skills[21304]
	require.True(t, ok)
	assert.Equal(t, int64(1000), skill.BuffedBy[210709], "skill-level per-buff breakdown")
	assert.Equal(t, int64(1000), skill.BuffedBySupport)
}

// The "Stabilized Status" exclusion keys on the attacker's own HP%: below
// 65% the buff is dropped from the per-hit attribution maps but still counts
// toward the aggregate support totals.
func TestDamage_StabilizedStatusExcludedWhenAttackerBelow65PercentHP(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	// Anna enters the zone already at 30% HP.
	s.Graph.OnInitPC(100, 7, "Anna", 5, 1000, 60, 300_000, 1_000_000, now)
	s.Graph.NewNpc(200, 500, engine.KindBoss, 1_000_000_000, 1_000_000_000, false, 0, "Test Boss", 0, now)

	s.OnStatusEffectAdd(1, 100, 100, 100, 500100, 0, nil, 1, 0,
		engine.BuffCategoryClassSkill, engine.CategoryBuff, engine.EffectTypeOther, now)

	s.HandleSkillDamage(100, 21304, 0, []engine.DamageEvent{{
		TargetID: 200, Damage: 1000, CurHP: 999_999_000, MaxHP: 1_000_000_000,
	}}, false, now, alwaysDecrypts)

	anna, ok := s.Graph.StatsIfExists(100)
	require.True(t, ok)
	assert.NotContains(t, anna.DamageStats.BuffedBy, uint32(500100), "low-HP attacker: excluded from the per-buff map")
	skill, ok := anna.Skills[21304]
	require.True(t, ok)
	assert.NotContains(t, skill.BuffedBy, uint32(500100))
	assert.Equal(t, int64(1000), skill.BuffedBySupport, "the aggregate support total still counts it")
	assert.Equal(t, int64(1000), anna.DamageStats.BuffedBySupport)
}

// Above the threshold the same buff lands in both the per-buff maps and the
// aggregates.
func TestDamage_StabilizedStatusAttributedWhenAttackerHealthy(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	s.Graph.OnInitPC(100, 7, "Anna", 5, 1000, 60, 1_000_000, 1_000_000, now)
	s.Graph.NewNpc(200, 500, engine.KindBoss, 1_000_000_000, 1_000_000_000, false, 0, "Test Boss", 0, now)

	s.OnStatusEffectAdd(1, 100, 100, 100, 500100, 0, nil, 1, 0,
		engine.BuffCategoryClassSkill, engine.CategoryBuff, engine.EffectTypeOther, now)

	s.HandleSkillDamage(100, 21304, 0, []engine.DamageEvent{{
		TargetID: 200, Damage: 1000, CurHP: 999_999_000, MaxHP: 1_000_000_000,
	}}, false, now, alwaysDecrypts)

	anna, ok := s.Graph.StatsIfExists(100)
	require.True(t, ok)
	assert.Equal(t, int64(1000), anna.DamageStats.BuffedBy[500100])
}

// Every qualifying hit bumps the entity-level skill_stats counters alongside
// the per-skill ones.
func TestDamage_SkillStatsCountersTrackCritBackFront(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	s.Graph.OnInitPC(100, 7, "Anna", 5, 1000, 60, 1_000_000, 1_000_000, now)
	s.Graph.NewNpc(200, 500, engine.KindBoss, 1_000_000_000, 1_000_000_000, false, 0, "Test Boss", 0, now)

	s.HandleSkillDamage(100, 21304, 0, []engine.DamageEvent{
		{TargetID: 200, Damage: 1000, CurHP: 999_999_000, MaxHP: 1_000_000_000,
			HitFlag: engine.HitCritical, HitOption: engine.HitOptionBackAttack},
		{TargetID: 200, Damage: 500, CurHP: 999_998_500, MaxHP: 1_000_000_000,
			HitOption: engine.HitOptionFrontalAttack},
	}, false, now, alwaysDecrypts)

	anna, ok := s.Graph.StatsIfExists(100)
	require.True(t, ok)
	assert.Equal(t, int64(2), anna.SkillStats.Hits)
	assert.Equal(t, int64(1), anna.SkillStats.Crits)
	assert.Equal(t, int64(1), anna.SkillStats.BackAttacks)
	assert.Equal(t, int64(1), anna.SkillStats.FrontAttacks)
}

// TestInvariant_TopDamageDealtTracksMaxPlayerHit checks the top_damage_dealt
// invariant across a sequence of events of increasing and
// decreasing size.
func TestInvariant_TopDamageDealtTracksMaxPlayerHit(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	s.Graph.OnInitPC(100, 7, "Anna", 5, 1000, 60, 1_000_000, 1_000_000, now)
	s.Graph.NewNpc(200, 500, engine.KindBoss, 1_000_000_000, 1_000_000_000, false, 0, "Test Boss", 0, now)

	hits := []int64{1000, 5000, 2000, 9000, 100}
	var maxSeen int64
	for i, dmg := range hits {
		s.HandleSkillDamage(100, 21304, 0, []engine.DamageEvent{{
			TargetID: 200, Damage: dmg, CurHP: 1_000_000_000, MaxHP: 1_000_000_000,
		}}, false, now.Add(time.Duration(i)*time.Millisecond), alwaysDecrypts)
		if dmg > maxSeen {
			maxSeen = dmg
		}
		stats, _ := s.Graph.StatsIfExists(100)
		assert.Equal(t, maxSeen, stats.DamageStats.TopDamageDealt)
	}
}

// TestInvariant_TotalDamageTakenIsSumOverPlayers checks that TotalDamageTaken
// stays the sum over player entities.
func TestInvariant_TotalDamageTakenIsSumOverPlayers(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	s.Graph.OnInitPC(100, 7, "Anna", 5, 1000, 60, 1_000_000, 1_000_000, now)
	s.Graph.NewPC(101, 8, "Bob", 2, 1000, 60, 1_000_000, 1_000_000, now)
	s.Graph.NewNpc(200, 500, engine.KindBoss, 1_000_000_000, 1_000_000_000, false, 0, "Test Boss", 0, now)

	s.HandleSkillDamage(200, 1, 0, []engine.DamageEvent{{
		TargetID: 100, Damage: 300, CurHP: 999_700, MaxHP: 1_000_000,
	}}, false, now, alwaysDecrypts)
	s.HandleSkillDamage(200, 1, 0, []engine.DamageEvent{{
		TargetID: 101, Damage: 450, CurHP: 999_550, MaxHP: 1_000_000,
	}}, false, now, alwaysDecrypts)

	var total int64
	for _, stats := range s.Graph.AllStats() {
		if stats.Kind == engine.KindPlayer {
			total += stats.DamageStats.DamageTaken
		}
	}
	assert.Equal(t, int64(750), total)
}

// TestInvariant_BossHPLogMonotonic checks boss-hp-log
// monotonicity: non-increasing HP, strictly increasing t_sec.
func TestInvariant_BossHPLogMonotonic(t *testing.T) {
	s := newTestState(t)
	now := time.Now()
	s.Graph.OnInitPC(100, 7, "Anna", 5, 1000, 60, 1_000_000, 1_000_000, now)
	s.Graph.NewNpc(200, 500, engine.KindBoss, 1_000_000_000, 1_000_000_000, false, 0, "Test Boss", 0, now)

	hp := int64(1_000_000_000)
	for i := 0; i < 5; i++ {
		hp -= 1000
		s.HandleSkillDamage(100, 21304, 0, []engine.DamageEvent{{
			TargetID: 200, Damage: 1000, CurHP: hp, MaxHP: 1_000_000_000,
		}}, false, now.Add(time.Duration(i+1)*time.Second), alwaysDecrypts)
	}

	log := s.BossHPLog["Test Boss"]
	require.Len(t, log, 5)
	for i := 1; i < len(log); i++ {
		assert.Greater(t, log[i].TSec, log[i-1].TSec)
		assert.LessOrEqual(t, log[i].HP, log[i-1].HP)
	}
}
