package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raidtrack/engine/internal/engine"
)

// TestCastLog_ProjectileAttribution: a cast
// observed directly (SkillStartNotify), a projectile spawned from it, and a
// hit arriving via the projectile's own instance id must resolve back to the
// caster's cast record through owner indirection.
func TestCastLog_ProjectileAttribution(t *testing.T) {
	s := newTestState(t)
	base := time.Now()

	s.Graph.NewPC(100, 7, "Anna", 5, 1000, 60, 1000, 1000, base)
	s.Graph.NewNpc(200, 900, engine.KindBoss, 1_000_000_000, 1_000_000_000, false, 0, "Raid Boss", 0, base)

	// t=0: player 100 starts casting skill 30000.
	s.OnSkillStart(100, 30000, 0, [3]int{}, [3]int{}, base)

	// Projectile 500 spawned by 100, carrying skill 30000: bridges the cast
	// timestamp to the projectile's own instance id.
	s.Graph.GetOrCreate(500, base)
	projEntity, _ := s.Graph.Get(500)
	projEntity.Kind = engine.KindProjectile
	projEntity.OwnerID = 100
	s.OnProjectileCreated(100, 30000, 500)

	// Damage arrives from source=500 (the projectile), not 100 directly.
	result := s.HandleSkillDamage(500, 30000, 0, []engine.DamageEvent{{
		TargetID: 200, Damage: 5000, CurHP: 999_995_000, MaxHP: 1_000_000_000,
	}}, false, base, alwaysDecrypts)
	require.True(t, result.RaidStarted)

	ownerStats, ok := s.Graph.StatsIfExists(100)
	require.True(t, ok)
	assert.Equal(t, int64(5000), ownerStats.DamageStats.DamageDealt, "damage attributed through projectile owner indirection")

	cast, ok := s.CastLog.Get(100, 30000, 0)
	require.True(t, ok, "hit resolved back to the t=0 cast")
	require.Len(t, cast.Hits, 1)
	assert.Equal(t, int64(5000), cast.Hits[0].Damage)
}

func TestCastLog_SummonSourceElision(t *testing.T) {
	s := newTestState(t)
	base := time.Now()
	s.Graph.NewPC(100, 7, "Anna", 5, 1000, 60, 1000, 1000, base)

	// Skill 30000 is cast directly first (its timestamp gets cached).
	s.OnSkillStart(100, 30000, 0, [3]int{}, [3]int{}, base)
	// Skill 40000 declares 30000 as a summon source in the test fixture: its
	// own SkillStart should be elided since the summoning cast already owns
	// attribution for this entity.
	s.OnSkillStart(100, 40000, 0, [3]int{}, [3]int{}, base.Add(200*time.Millisecond))

	// The fight has not started, so every cast is keyed at relative time 0.
	_, createdDirect := s.CastLog.Get(100, 40000, 0)
	assert.False(t, createdDirect, "summon-source skill start is elided: no cast of 40000 is recorded")
}

func TestCastLog_CastInvariant_HitWithinCastWindow(t *testing.T) {
	s := newTestState(t)
	base := time.Now()
	s.Graph.NewPC(100, 7, "Anna", 5, 1000, 60, 1000, 1000, base)
	s.Graph.NewNpc(200, 900, engine.KindBoss, 1_000_000_000, 1_000_000_000, false, 0, "Raid Boss", 0, base)

	s.OnSkillStart(100, 30000, 0, [3]int{}, [3]int{}, base)
	hitAt := base.Add(300 * time.Millisecond)
	s.HandleSkillDamage(100, 30000, 0, []engine.DamageEvent{{
		TargetID: 200, Damage: 100, CurHP: 999_999_900, MaxHP: 1_000_000_000,
	}}, false, hitAt, alwaysDecrypts)

	cast, ok := s.CastLog.Get(100, 30000, 0)
	require.True(t, ok)
	for _, hit := range cast.Hits {
		assert.False(t, hit.Timestamp.Before(cast.Timestamp))
		assert.False(t, hit.Timestamp.After(cast.Last))
	}
}
