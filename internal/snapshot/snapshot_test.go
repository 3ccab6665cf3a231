package snapshot_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raidtrack/engine/internal/engine"
	"github.com/raidtrack/engine/internal/ports"
	"github.com/raidtrack/engine/internal/snapshot"
)

type recordingEmitter struct {
	events []any
}

func (e *recordingEmitter) Emit(event any) { e.events = append(e.events, event) }

func (e *recordingEmitter) ofType(match func(any) bool) int {
	n := 0
	for _, ev := range e.events {
		if match(ev) {
			n++
		}
	}
	return n
}

// The snapshot emitter never touches the metadata tables, so nil is enough.
func newState(t *testing.T) *engine.State {
	t.Helper()
	return engine.New(nil, zap.NewNop())
}

func TestEmitter_DueRespectsPeriodAndResetOverride(t *testing.T) {
	s := newState(t)
	base := time.Now()
	e := snapshot.New(&recordingEmitter{}, 500*time.Millisecond, time.Hour)

	assert.True(t, e.Due(s, base), "first tick always snapshots")
	e.Emit(s, base)

	assert.False(t, e.Due(s, base.Add(100*time.Millisecond)))
	assert.True(t, e.Due(s, base.Add(600*time.Millisecond)))

	s.Resetting = true
	assert.True(t, e.Due(s, base.Add(100*time.Millisecond)), "a pending reset forces a snapshot regardless of cadence")
}

func TestEmitter_PrunesUndamagedNonPlayers(t *testing.T) {
	s := newState(t)
	base := time.Now()
	rec := &recordingEmitter{}
	e := snapshot.New(rec, time.Millisecond, time.Hour)

	s.Graph.NewPC(100, 7, "Anna", 5, 1000, 60, 1000, 1000, base)
	s.Graph.NewNpc(200, 500, engine.KindBoss, 900, 1000, false, 0, "Boss", 0, base)
	s.CurrentBossID = 200
	s.Graph.NewNpc(300, 100, engine.KindNpc, 10, 10, false, 0, "Trash", 0, base)

	e.Emit(s, base)

	require.Len(t, rec.events, 1)
	update, ok := rec.events[0].(ports.EventEncounterUpdate)
	require.True(t, ok)
	stats, ok := update.Snapshot.(map[uint64]*engine.EncounterEntity)
	require.True(t, ok)
	assert.Contains(t, stats, uint64(100), "players are kept")
	assert.Contains(t, stats, uint64(200), "the current boss is kept")
	assert.NotContains(t, stats, uint64(300), "an undamaged npc is pruned")
}

func TestEmitter_PartySnapshotCachedOnlyWhenAllPartiesComplete(t *testing.T) {
	s := newState(t)
	base := time.Now()
	rec := &recordingEmitter{}
	e := snapshot.New(rec, time.Millisecond, time.Millisecond)

	s.Graph.OnInitPC(1, 1, "Anna", 5, 1000, 60, 1000, 1000, base)
	for i := uint64(2); i <= 3; i++ {
		s.Graph.NewPC(i, i, "Member", 2, 900, 60, 1000, 1000, base)
	}
	members := []engine.PartyMemberInfo{{CharacterID: 1}, {CharacterID: 2}, {CharacterID: 3}}
	s.Graph.PartyInfo(1, members, base, nil, func(uint64, string) {})

	// 3 of 4 members: incomplete, so no cache and no PartyUpdate.
	e.Emit(s, base.Add(time.Second))
	assert.Nil(t, s.PartyCache)
	assert.Zero(t, rec.ofType(func(ev any) bool { _, ok := ev.(ports.EventPartyUpdate); return ok }))

	s.Graph.NewPC(4, 4, "Fourth", 3, 900, 60, 1000, 1000, base)
	s.Graph.AddPartyMember(1, 4)

	e.Emit(s, base.Add(3*time.Second))
	require.NotNil(t, s.PartyCache)
	assert.Len(t, s.PartyCache[1], 4)
	assert.Equal(t, 1, rec.ofType(func(ev any) bool { _, ok := ev.(ports.EventPartyUpdate); return ok }))
}

func TestEmitter_InvalidDamageEmittedOnce(t *testing.T) {
	s := newState(t)
	base := time.Now()
	rec := &recordingEmitter{}
	e := snapshot.New(rec, time.Millisecond, time.Hour)

	e.Emit(s, base)
	s.DamageIsValid = false
	e.Emit(s, base.Add(time.Second))
	e.Emit(s, base.Add(2*time.Second))

	invalid := rec.ofType(func(ev any) bool { _, ok := ev.(ports.EventInvalidDamage); return ok })
	assert.Equal(t, 1, invalid, "the invalid-damage transition fires exactly once")
}

func TestEmitter_PartySnapshotFrozenDuringPartyFreeze(t *testing.T) {
	s := newState(t)
	base := time.Now()
	rec := &recordingEmitter{}
	e := snapshot.New(rec, time.Millisecond, time.Millisecond)

	s.PartyFreeze = true
	s.PartyCache = map[int32][]string{1: {"Anna"}}
	e.Emit(s, base.Add(time.Second))

	assert.Zero(t, rec.ofType(func(ev any) bool { _, ok := ev.(ports.EventPartyUpdate); return ok }),
		"no party update while the snapshot is frozen")
}
