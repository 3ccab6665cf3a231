// Package mainloop drives the single-threaded, cooperative capture loop:
// pull one packet, dispatch it to
// completion, emit a due snapshot, and fan out saves/heartbeats to a
// background worker pool without blocking the core.
package mainloop

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/raidtrack/engine/internal/core/system"
	"github.com/raidtrack/engine/internal/dispatch"
	"github.com/raidtrack/engine/internal/engine"
	"github.com/raidtrack/engine/internal/ports"
	"github.com/raidtrack/engine/internal/rules"
	"github.com/raidtrack/engine/internal/snapshot"
)

// Flags are the externally-toggled control bits the loop polls each
// iteration. cmd/raidtrackd sets Stop on a shutdown signal and Save on
// EventSaveEncounter; tests can flip them directly. Nothing in this package
// listens on a port for them.
type Flags struct {
	Stop           bool
	Reset          bool
	Pause          bool
	Save           bool
	BossOnlyDamage bool
}

// Deps bundles every collaborator the loop needs beyond the packet source
// and flags.
type Deps struct {
	State      *engine.State
	Dispatcher *dispatch.Dispatcher
	Snapshot   *snapshot.Emitter
	Source     ports.PacketSource
	Persister  ports.Persister
	Region     ports.RegionStore
	Heartbeat  ports.HeartbeatApi
	Rules      *rules.Engine
	ClientID   func() (id uuid.UUID, known bool)

	Version        string
	HeartbeatEvery time.Duration

	Log *zap.Logger
}

// Loop owns the flags, a background errgroup for fire-and-forget work, and
// the cadence state for heartbeats.
type Loop struct {
	deps   Deps
	flag   Flags
	runner *system.Runner

	group           *errgroup.Group
	groupCtx        context.Context
	lastHeartbeat   time.Time
	lastStaggerTick time.Time
}

// New constructs a Loop. ctx bounds the background worker pool's lifetime;
// cancelling it does not stop the core loop itself.
func New(ctx context.Context, deps Deps) *Loop {
	g, gctx := errgroup.WithContext(ctx)
	l := &Loop{deps: deps, runner: system.NewRunner(), group: g, groupCtx: gctx}
	l.runner.Register(snapshotSystem{l})
	l.runner.Register(persistSystem{l})
	l.runner.Register(staggerSystem{l})
	l.runner.Register(heartbeatSystem{l})
	return l
}

// Flags returns a pointer to the loop's live flag block, so the caller can
// mutate it between ticks.
func (l *Loop) Flags() *Flags { return &l.flag }

// Run pumps the capture loop until the stop flag is set or the
// packet source reaches clean end-of-stream.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if l.flag.Stop || ctx.Err() != nil {
			return l.group.Wait()
		}
		if l.flag.Reset {
			l.deps.State.SoftReset(true)
			l.flag.Reset = false
		}
		if l.flag.Pause {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if l.flag.Save {
			l.triggerSave()
			l.deps.State.Resetting = true
			l.flag.Save = false
		}

		l.deps.State.BossOnlyDamage = l.flag.BossOnlyDamage

		pkt, ok := l.deps.Source.Recv()
		if !ok {
			return l.group.Wait()
		}
		now := time.Now()
		l.deps.Dispatcher.Dispatch(pkt, now)
		l.runner.Tick(now)
	}
}

// tickStagger advances the current boss's stagger gauge recovery between
// explicit StaggerUpdateNotify signals. The first call
// only arms the clock: there is no prior tick to measure dt against.
func (l *Loop) tickStagger(now time.Time) {
	if l.lastStaggerTick.IsZero() {
		l.lastStaggerTick = now
		return
	}
	dtMS := now.Sub(l.lastStaggerTick).Milliseconds()
	l.lastStaggerTick = now
	if dtMS <= 0 {
		return
	}
	var rule engine.StaggerRuleEngine
	if l.deps.Rules != nil {
		rule = l.deps.Rules
	}
	l.deps.State.TickStagger(rule, dtMS, now)
}

// TriggerSave snapshots the current encounter and hands it to the persister
// without waiting for a loop tick. Exposed for the dispatcher's SaveNow hook.
func (l *Loop) TriggerSave() { l.triggerSave() }

// triggerSave freezes the current encounter and posts it to the persister on
// the background worker pool; the core does not wait for the write to
// complete.
func (l *Loop) triggerSave() {
	if l.deps.Persister == nil {
		return
	}
	enc := snapshotForSave(l.deps.State)
	version := l.deps.Version
	stats := l.deps.Dispatcher.Stats
	bossName, players, region, clientID, fetchStats := l.characterInfoFetchArgs(enc)
	l.group.Go(func() error {
		if fetchStats {
			info, err := stats.GetCharacterInfo(l.groupCtx, version, clientID, bossName, players, region)
			if err != nil {
				l.deps.Log.Warn("get character info failed", zap.Error(err))
			} else {
				enc.CharacterInfo = info
			}
		}
		if err := l.deps.Persister.Save(l.groupCtx, version, enc); err != nil {
			l.deps.Log.Warn("encounter save failed", zap.Error(err))
		}
		return nil
	})
}

// characterInfoFetchArgs decides whether the save worker should enrich enc
// with a StatsApi.GetCharacterInfo lookup before persisting, gated on a
// non-empty party of at most 16 players, a known region, and a known
// client id.
func (l *Loop) characterInfoFetchArgs(enc ports.CompleteEncounter) (bossName string, players []string, region, clientID string, ok bool) {
	if l.deps.Dispatcher == nil || l.deps.Dispatcher.Stats == nil || l.deps.Region == nil || l.deps.ClientID == nil {
		return "", nil, "", "", false
	}
	for _, names := range enc.PartyInfo {
		players = append(players, names...)
	}
	if len(players) == 0 || len(players) > 16 {
		return "", nil, "", "", false
	}
	reg, known := l.deps.Region.Get()
	if !known {
		return "", nil, "", "", false
	}
	id, known := l.deps.ClientID()
	if !known {
		return "", nil, "", "", false
	}
	if boss, ok := l.deps.State.CurrentBoss(); ok {
		bossName = boss.Name
	}
	return bossName, players, reg, id.String(), true
}

// maybeHeartbeat posts a liveness beat on the worker pool once the region
// is known and the configured interval has elapsed.
func (l *Loop) maybeHeartbeat(now time.Time) {
	if l.deps.Heartbeat == nil || l.deps.Region == nil {
		return
	}
	region, known := l.deps.Region.Get()
	if !known {
		return
	}
	if now.Sub(l.lastHeartbeat) < l.deps.HeartbeatEvery {
		return
	}
	l.lastHeartbeat = now

	clientID, idKnown := l.deps.ClientID()
	if !idKnown {
		return
	}
	version := l.deps.Version
	hb := l.deps.Heartbeat
	l.group.Go(func() error {
		if err := hb.Beat(l.groupCtx, clientID, version, region); err != nil {
			l.deps.Log.Warn("heartbeat failed", zap.Error(err))
		}
		return nil
	})
}
