package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raidtrack/engine/internal/engine"
)

func TestCustomIDRoundTrips(t *testing.T) {
	for _, sourceSkill := range []uint32{0, 1, 21304, 4_000_000_000} {
		custom := engine.CustomID(sourceSkill)
		assert.Equal(t, sourceSkill, engine.OriginalFromCustomID(custom))
	}
}

func TestDecodeShieldValue_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want uint64
	}{
		{"equal", 1000, 1000, 1000},
		{"a smaller", 200, 1000, 200},
		{"b smaller", 1000, 200, 200},
		{"zero", 0, 500, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := engine.EncodeShieldValue(tt.a, tt.b)
			assert.Equal(t, tt.want, engine.DecodeShieldValue(raw))
		})
	}
}

func TestDecodeShieldValue_MissingOrShortBlob(t *testing.T) {
	assert.Equal(t, uint64(0), engine.DecodeShieldValue(nil))
	assert.Equal(t, uint64(0), engine.DecodeShieldValue([]byte{1, 2, 3}))
}

func TestStatusEffectRegistry_DuplicateInstanceIsIdempotent(t *testing.T) {
	r := newRegistryForTest(t)
	now := time.Now()
	effect := &engine.StatusEffectDetails{
		InstanceID: 1, TargetID: 100, TargetType: engine.TargetLocal,
		StatusEffectID: 500, Value: 10, Timestamp: now,
	}
	r.Register(effect)

	duplicate := &engine.StatusEffectDetails{
		InstanceID: 1, TargetID: 100, TargetType: engine.TargetLocal,
		StatusEffectID: 999, Value: 999, Timestamp: now,
	}
	r.Register(duplicate)

	effects := r.EffectsOn(engine.TargetLocal, 100, now)
	require.Len(t, effects, 1)
	assert.Equal(t, uint32(500), effects[0].StatusEffectID, "first write wins")
}

func TestStatusEffectRegistry_SweepRemovesExpiredOnRead(t *testing.T) {
	r := newRegistryForTest(t)
	base := time.Now()
	expireAt := base.Add(5 * time.Second)
	r.Register(&engine.StatusEffectDetails{
		InstanceID: 1, TargetID: 100, TargetType: engine.TargetLocal,
		StatusEffectID: 1, Timestamp: base, ExpireAt: &expireAt,
	})
	r.Register(&engine.StatusEffectDetails{
		InstanceID: 2, TargetID: 100, TargetType: engine.TargetLocal,
		StatusEffectID: 2, Timestamp: base, // infinite: ExpireAt nil
	})

	before := r.EffectsOn(engine.TargetLocal, 100, base.Add(4*time.Second))
	assert.Len(t, before, 2)

	after := r.EffectsOn(engine.TargetLocal, 100, expireAt.Add(time.Millisecond))
	require.Len(t, after, 1)
	assert.Equal(t, uint32(2), after[0].StatusEffectID)
	for _, e := range after {
		assert.True(t, e.ExpireAt == nil || e.ExpireAt.After(expireAt.Add(time.Millisecond)))
	}
}

func TestStatusEffectRegistry_SyncUpdatesValueAndReturnsOld(t *testing.T) {
	r := newRegistryForTest(t)
	now := time.Now()
	r.Register(&engine.StatusEffectDetails{
		InstanceID: 7, TargetID: 2, TargetType: engine.TargetParty,
		StatusEffectID: 210709, Value: 1000, Timestamp: now,
	})

	effect, old := r.Sync(engine.TargetParty, 2, 7, 200)
	require.NotNil(t, effect)
	assert.Equal(t, uint64(1000), old)
	assert.Equal(t, uint64(200), effect.Value)
}

func TestFilterForDamage_DropsSelfScopedLocalDebuffFromOtherSource(t *testing.T) {
	effects := []*engine.StatusEffectDetails{
		{SourceID: 1, TargetType: engine.TargetLocal, Category: engine.CategoryDebuff, StatusEffectID: 10},
		{SourceID: 2, TargetType: engine.TargetLocal, Category: engine.CategoryDebuff, StatusEffectID: 11},
		{SourceID: 2, TargetType: engine.TargetParty, Category: engine.CategoryDebuff, StatusEffectID: 12},
	}
	selfScoped := func(e *engine.StatusEffectDetails) bool { return true }

	out := engine.FilterForDamage(effects, 1, selfScoped)

	ids := make([]uint32, 0, len(out))
	for _, e := range out {
		ids = append(ids, e.StatusEffectID)
	}
	assert.ElementsMatch(t, []uint32{10, 12}, ids, "only the other-source local debuff is dropped")
}

func newRegistryForTest(t *testing.T) *engine.StatusEffectRegistry {
	t.Helper()
	return newTestState(t).StatusEffects
}
