package engine

import "time"

// StaggerRuleEngine supplies the scriptable stagger-gauge recovery formula
// (internal/rules.Engine.StaggerDelta). Decoupling engine from internal/rules
// keeps the core aggregate free of a scripting-VM dependency; the dispatcher
// wires a *rules.Engine in at startup.
type StaggerRuleEngine interface {
	StaggerDelta(current, max, dtMS int64) int64
}

// defaultStaggerRule recovers the gauge linearly toward max, matching
// internal/rules.DefaultStaggerDelta, for use when no Lua engine is
// configured.
type defaultStaggerRule struct{}

func (defaultStaggerRule) StaggerDelta(current, max, dtMS int64) int64 {
	return DefaultStaggerDelta(current, max, dtMS)
}

// DefaultStaggerDelta is the single canonical fallback stagger recovery-tick
// formula: the gauge regenerates toward max at a flat rate over dtMS,
// matching the shipped internal/rules/scripts/stagger.lua. Declared here
// (rather than in internal/rules) so this package has no hard dependency on
// the scripting VM at compile time; internal/rules.DefaultStaggerDelta
// delegates to this function so there is exactly one formula, not two.
func DefaultStaggerDelta(current, max, dtMS int64) int64 {
	if current >= max {
		return 0
	}
	const recoverPerSecond = 50
	delta := recoverPerSecond * dtMS / 1000
	if current+delta > max {
		delta = max - current
	}
	return delta
}

// OnStaggerUpdate tracks the current
// boss's stagger gauge from a StaggerUpdateNotify-equivalent signal, appends
// to stagger_log, and records stagger_intervals spans where the gauge was
// observed actively decreasing between two consecutive samples.
func (s *State) OnStaggerUpdate(bossID uint64, current, max int64, now time.Time) {
	boss, ok := s.CurrentBoss()
	if !ok || boss.ID != bossID {
		return
	}
	relMS := now.Sub(s.StartedOn).Milliseconds()
	if !s.IsStarted() {
		relMS = 0
	}

	prevCurrent, prevMax := s.staggerCurrent, s.staggerMax
	decreasing := prevMax > 0 && current < prevCurrent

	if decreasing && !s.staggerDecreasing {
		s.staggerIntervalStartMS = relMS
	}
	if !decreasing && s.staggerDecreasing {
		s.appendStaggerInterval(boss.Name, s.staggerIntervalStartMS, relMS)
	}
	s.staggerDecreasing = decreasing
	s.staggerCurrent, s.staggerMax = current, max

	ratio := 0.0
	if max > 0 {
		ratio = float64(current) / float64(max)
	}
	log := s.StaggerLog[boss.Name]
	if n := len(log); n > 0 && log[n-1].RelativeMS == relMS {
		log[n-1].Ratio = ratio
	} else {
		log = append(log, StaggerLogPoint{RelativeMS: relMS, Ratio: ratio})
	}
	s.StaggerLog[boss.Name] = log
}

func (s *State) appendStaggerInterval(bossName string, startMS, endMS int64) {
	if endMS <= startMS {
		return
	}
	s.StaggerIntervals[bossName] = append(s.StaggerIntervals[bossName], StaggerInterval{StartMS: startMS, EndMS: endMS})
}

// TickStagger advances the current boss's stagger gauge by one recovery
// step using rule (or the built-in default if rule is nil), for callers that
// don't receive an explicit per-tick game signal and instead poll on a
// fixed cadence.
func (s *State) TickStagger(rule StaggerRuleEngine, dtMS int64, now time.Time) {
	boss, ok := s.CurrentBoss()
	if !ok || s.staggerMax == 0 || s.staggerDecreasing {
		return
	}
	if rule == nil {
		rule = defaultStaggerRule{}
	}
	delta := rule.StaggerDelta(s.staggerCurrent, s.staggerMax, dtMS)
	if delta == 0 {
		return
	}
	s.OnStaggerUpdate(boss.ID, s.staggerCurrent+delta, s.staggerMax, now)
}
