package mainloop

import (
	"github.com/raidtrack/engine/internal/engine"
	"github.com/raidtrack/engine/internal/ports"
)

// snapshotForSave takes an owned copy of everything the persister needs, so
// the core is free to keep mutating State the instant this returns.
func snapshotForSave(s *engine.State) ports.CompleteEncounter {
	return ports.CompleteEncounter{
		Encounter:      cloneStats(s.Graph.AllStats()),
		DamageLog:      cloneDamageLog(s.DamageLog),
		IdentityLog:    cloneIdentityLog(s.IdentityLog),
		CastLog:        cloneCastLog(s.CastLogProj),
		BossHPLog:      cloneBossHPLog(s.BossHPLog),
		StaggerLog:     cloneStaggerLog(s.StaggerLog),
		PartyInfo:      clonePartyInfo(s.PartyCache),
		RaidDifficulty: s.RaidDifficulty,
		Region:         s.Region,
		NTPFightStart:  s.NTPFightStart,
		RaidClear:      s.RaidClear,
		RDPSValid:      s.RDPSValid,
	}
}

func cloneStats(in map[uint64]*engine.EncounterEntity) map[uint64]engine.EncounterEntity {
	out := make(map[uint64]engine.EncounterEntity, len(in))
	for id, ee := range in {
		cp := *ee
		cp.DamageStats.BuffedBy = cloneCounter(ee.DamageStats.BuffedBy)
		cp.DamageStats.DebuffedBy = cloneCounter(ee.DamageStats.DebuffedBy)
		cp.DamageStats.ShieldsGivenBy = cloneCounter(ee.DamageStats.ShieldsGivenBy)
		cp.DamageStats.ShieldsReceivedBy = cloneCounter(ee.DamageStats.ShieldsReceivedBy)
		cp.DamageStats.DamageAbsorbedBy = cloneCounter(ee.DamageStats.DamageAbsorbedBy)
		cp.DamageStats.DamageAbsorbedOnOthersBy = cloneCounter(ee.DamageStats.DamageAbsorbedOnOthersBy)
		cp.DamageStats.Incapacitations = append([]engine.IncapacitatedEvent(nil), ee.DamageStats.Incapacitations...)
		cp.Skills = make(map[uint32]*engine.Skill, len(ee.Skills))
		for skillID, sk := range ee.Skills {
			skCopy := *sk
			skCopy.BuffedBy = cloneCounter(sk.BuffedBy)
			skCopy.DebuffedBy = cloneCounter(sk.DebuffedBy)
			skCopy.CastLog = append([]int64(nil), sk.CastLog...)
			cp.Skills[skillID] = &skCopy
		}
		out[id] = cp
	}
	return out
}

func cloneCounter(in map[uint32]int64) map[uint32]int64 {
	out := make(map[uint32]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneDamageLog(in map[string][]engine.DamageLogPoint) map[string][]ports.DamagePoint {
	out := make(map[string][]ports.DamagePoint, len(in))
	for name, pts := range in {
		cp := make([]ports.DamagePoint, len(pts))
		for i, p := range pts {
			cp[i] = ports.DamagePoint{TimestampMS: p.TimestampMS, Damage: p.Damage}
		}
		out[name] = cp
	}
	return out
}

func cloneIdentityLog(in map[string][]engine.IdentityLogPoint) map[string][]ports.IdentityPoint {
	out := make(map[string][]ports.IdentityPoint, len(in))
	for name, pts := range in {
		cp := make([]ports.IdentityPoint, len(pts))
		for i, p := range pts {
			cp[i] = ports.IdentityPoint{RelativeMS: p.RelativeMS, Gauge1: p.Gauge1, Gauge2: p.Gauge2, Gauge3: p.Gauge3}
		}
		out[name] = cp
	}
	return out
}

func cloneCastLog(in map[string]map[uint32][]int64) map[string]map[uint32][]int64 {
	out := make(map[string]map[uint32][]int64, len(in))
	for name, skills := range in {
		skillsCopy := make(map[uint32][]int64, len(skills))
		for skillID, ts := range skills {
			tsCopy := make([]int64, len(ts))
			copy(tsCopy, ts)
			skillsCopy[skillID] = tsCopy
		}
		out[name] = skillsCopy
	}
	return out
}

func cloneBossHPLog(in map[string][]engine.BossHPLogPoint) map[string][]ports.BossHPPoint {
	out := make(map[string][]ports.BossHPPoint, len(in))
	for name, pts := range in {
		cp := make([]ports.BossHPPoint, len(pts))
		for i, p := range pts {
			cp[i] = ports.BossHPPoint{TSec: p.TSec, HP: p.HP, HPPercent: p.HPPercent}
		}
		out[name] = cp
	}
	return out
}

func cloneStaggerLog(in map[string][]engine.StaggerLogPoint) map[string][]ports.StaggerPoint {
	out := make(map[string][]ports.StaggerPoint, len(in))
	for name, pts := range in {
		cp := make([]ports.StaggerPoint, len(pts))
		for i, p := range pts {
			cp[i] = ports.StaggerPoint{RelativeMS: p.RelativeMS, Ratio: p.Ratio}
		}
		out[name] = cp
	}
	return out
}

func clonePartyInfo(in map[int32][]string) map[int32][]string {
	out := make(map[int32][]string, len(in))
	for id, names := range in {
		cp := make([]string, len(names))
		copy(cp, names)
		out[id] = cp
	}
	return out
}
