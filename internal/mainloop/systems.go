package mainloop

import (
	"time"

	"github.com/raidtrack/engine/internal/core/system"
)

// The loop's per-tick cadence work runs phase-ordered on a system.Runner, so
// the sequence (snapshot, save/reset, stagger recovery, heartbeat) is fixed
// by phase constants rather than statement order in Run.

type snapshotSystem struct{ l *Loop }

func (s snapshotSystem) Phase() system.Phase { return system.PhaseObserve }

func (s snapshotSystem) Tick(now time.Time) {
	if s.l.deps.Snapshot.Due(s.l.deps.State, now) {
		s.l.deps.Snapshot.Emit(s.l.deps.State, now)
	}
}

type persistSystem struct{ l *Loop }

func (s persistSystem) Phase() system.Phase { return system.PhasePersist }

// Tick handles the save flag before acting on Resetting: a phase transition
// inside Dispatch may have armed both, and the persister must snapshot the
// encounter before the reset wipes it.
func (s persistSystem) Tick(now time.Time) {
	if s.l.flag.Save {
		s.l.triggerSave()
		s.l.deps.State.Resetting = true
		s.l.flag.Save = false
	}
	if s.l.deps.State.Resetting {
		s.l.deps.State.SoftReset(true)
		s.l.deps.State.ClearTransientFlags()
	}
}

type staggerSystem struct{ l *Loop }

func (s staggerSystem) Phase() system.Phase { return system.PhaseSimulate }

func (s staggerSystem) Tick(now time.Time) { s.l.tickStagger(now) }

type heartbeatSystem struct{ l *Loop }

func (s heartbeatSystem) Phase() system.Phase { return system.PhaseReport }

func (s heartbeatSystem) Tick(now time.Time) { s.l.maybeHeartbeat(now) }
