// Package system is the per-tick scheduling skeleton the capture loop hangs
// its cadence work on. Each concern (snapshot emission, save handling,
// stagger recovery, heartbeat) registers as a System; the Runner executes
// them in phase order after every dispatched packet.
package system

import "time"

// Phase defines execution ordering within a single loop tick.
type Phase int

const (
	PhaseObserve  Phase = iota // 0: UI-facing snapshot/party emission
	PhasePersist               // 1: save-flag handling + encounter reset
	PhaseSimulate              // 2: time-driven state advancement (stagger recovery)
	PhaseReport                // 3: outbound housekeeping (heartbeat)
)

// System is one unit of per-tick cadence work.
type System interface {
	Phase() Phase
	Tick(now time.Time)
}
