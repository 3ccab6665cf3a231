package engine

import (
	"time"

	"github.com/raidtrack/engine/internal/metadata"
)

// HitFlag and HitOption are the engine's own decoded-modifier vocabulary;
// the dispatch layer translates from the wire encoding
// (ports.DecodeModifier) into these before calling into the engine, keeping
// this package free of any transport dependency.
type HitFlag int

const (
	HitNormal HitFlag = iota
	HitCritical
	HitMiss
	HitInvincible
	HitDotCritical
	HitDamageShare
)

type HitOption int

const (
	HitOptionNone HitOption = iota
	HitOptionBackAttack
	HitOptionFrontalAttack
	HitOptionFlankAttack
)

// DamageEvent is one target's hit within a damage packet, already decrypted
// and demodifier-decoded by the caller.
type DamageEvent struct {
	TargetID     uint64
	Damage       int64
	ShieldDamage int64
	HitFlag      HitFlag
	HitOption    HitOption
	CurHP        int64
	MaxHP        int64

	HasMoveData    bool
	DownTimeSec    float64
	MoveTimeSec    float64
	StandUpTimeSec float64
}

// DamageResult reports what one HandleSkillDamage call observed, so the
// dispatcher can emit the right events.
type DamageResult struct {
	RaidStarted   bool
	DamageInvalid bool
}

// HandleSkillDamage runs the damage pipeline end-to-end: preprocessing,
// first-damage handling, and the per-hit update, for both SkillDamageNotify
// and SkillDamageAbnormalMoveNotify (isAbnormalMove selects the extra
// incapacitation step). decrypt is called once per event, in order, and
// reports whether that event's damage was decrypted; the dispatcher runs
// ports.DamageDecryptor.Decrypt on the wire events before building events
// and its callback only returns the recorded results.
func (s *State) HandleSkillDamage(sourceID uint64, skillID, skillEffectID uint32, events []DamageEvent, isAbnormalMove bool, now time.Time, decrypt func(ev *DamageEvent) bool) DamageResult {
	var result DamageResult
	if s.InRaidEndCooldown(now) {
		return result
	}

	// get_source both resolves projectile/summon indirection and lazily
	// creates the literal source entity as a side effect.
	owner := s.Graph.GetSource(sourceID, now)
	effectiveSkillEffectID := skillEffectID
	if owner.IsBattleItem {
		effectiveSkillEffectID = owner.SkillEffectID
	}

	for i := range events {
		ev := &events[i]

		if !decrypt(ev) {
			s.DamageIsValid = false
			result.DamageInvalid = true
			continue
		}

		target := s.Graph.GetOrCreate(ev.TargetID, now)

		effectsOnSource := s.effectsOnEntity(owner, now)
		effectsOnTarget := FilterForDamage(s.effectsOnEntity(target, now), owner.ID, s.isSelfScopedBuff)
		for _, e := range effectsOnSource {
			s.registerCustomID(e)
		}
		for _, e := range effectsOnTarget {
			s.registerCustomID(e)
		}

		if ev.HitFlag == HitInvincible {
			continue
		}
		if ev.HitFlag == HitDamageShare && skillID == 0 && effectiveSkillEffectID == 0 {
			continue
		}
		if s.BossOnlyDamage {
			targetOK := target.Kind == KindBoss || target.Kind == KindPlayer
			pairOK := target.Kind == KindBoss || (target.Kind == KindPlayer && owner.Kind == KindBoss)
			if !targetOK || !pairOK {
				continue
			}
		}

		if !s.IsStarted() {
			s.StartedOn = now
			s.NTPFightStart = NTPFetcher()
			if owner.IsPlayer() && skillID > 0 {
				s.CastLog.OnSkillStart(owner.ID, skillID, now, now, func(uint32) bool { return false }, nil)
			}
			result.RaidStarted = true
		}

		if isAbnormalMove && target.IsPlayer() && ev.HasMoveData {
			total := ev.DownTimeSec + ev.MoveTimeSec + ev.StandUpTimeSec
			targetStats := s.Graph.Stats(target.ID, now)
			targetStats.DamageStats.Incapacitations = onFallDown(
				targetStats.DamageStats.Incapacitations, now, time.Duration(total*float64(time.Second)))
		}

		s.applyHit(owner, target, sourceID, skillID, effectiveSkillEffectID, *ev, effectsOnSource, effectsOnTarget, now)
	}
	return result
}

// effectsOnEntity resolves the same scope rule used at registration time
// to query "effects on" a live entity.
func (s *State) effectsOnEntity(e *Entity, now time.Time) []*StatusEffectDetails {
	if e.CharacterID != 0 && s.Graph.InPartyWithLocal(e.CharacterID) {
		return s.StatusEffects.EffectsOn(TargetParty, e.CharacterID, now)
	}
	return s.StatusEffects.EffectsOn(TargetLocal, e.ID, now)
}

// isSelfScopedBuff resolves a status effect's declared buff metadata
// (substituting its custom id back to the original) and
// reports whether the DB declares it target_scope=self — the predicate
// FilterForDamage needs to drop leaked self-only debuffs. Looked up
// directly against the tables rather than through resolveBuff so a
// filtered-out effect never pollutes the RDPSValid/unknown-buff caches
// that the attribution loop's own lookups maintain.
func (s *State) isSelfScopedBuff(e *StatusEffectDetails) bool {
	id := e.CustomID
	if id == 0 {
		id = e.StatusEffectID
	}
	if orig, ok := s.CustomIDMap[id]; ok {
		id = orig
	}
	buff := s.tables.Buffs.Get(id)
	return buff != nil && buff.TargetScope == metadata.BuffTargetSelf
}

// ScopeFor resolves the scope a status effect on characterID should be
// registered/queried under.
func (s *State) ScopeFor(characterID uint64) StatusEffectTargetType {
	if characterID != 0 && s.Graph.InPartyWithLocal(characterID) {
		return TargetParty
	}
	return TargetLocal
}

// applyHit performs the per-hit counter update and the player-
// source attribution sub-routine.
func (s *State) applyHit(owner, target *Entity, literalSourceID uint64, skillID, skillEffectID uint32, ev DamageEvent, effectsOnSource, effectsOnTarget []*StatusEffectDetails, now time.Time) {
	s.UpdatedOn = now

	ownerStats := s.Graph.Stats(owner.ID, now)
	targetStats := s.Graph.Stats(target.ID, now)

	targetStats.CurrentHP, targetStats.MaxHP = ev.CurHP, ev.MaxHP

	damage := ev.Damage + ev.ShieldDamage
	if target.Kind != KindPlayer && ev.CurHP < 0 {
		damage += ev.CurHP
	}

	resolvedSkillID := skillID
	if resolvedSkillID == 0 {
		resolvedSkillID = skillEffectID
	}
	skillEntry := s.tables.Skills.Get(resolvedSkillID)
	skillName := ""
	if skillEntry != nil {
		skillName = skillEntry.Name
	}
	skill, ok := ownerStats.Skills[resolvedSkillID]
	if !ok {
		if skillName != "" {
			for id, sk := range ownerStats.Skills {
				if sk.Name == skillName {
					skill, resolvedSkillID, ok = sk, id, true
					break
				}
			}
		}
		if !ok {
			skill = &Skill{
				ID: resolvedSkillID, Name: skillName, Casts: 1,
				BuffedBy:   make(map[uint32]int64),
				DebuffedBy: make(map[uint32]int64),
			}
			ownerStats.Skills[resolvedSkillID] = skill
		}
	}

	ownerStats.DamageStats.DamageDealt += damage
	skill.TotalDamage += damage
	if damage > skill.MaxDamage {
		skill.MaxDamage = damage
	}
	skill.LastTimestamp = now
	skill.Hits++
	ownerStats.SkillStats.Hits++

	isCrit := ev.HitFlag == HitCritical || ev.HitFlag == HitDotCritical
	if isCrit {
		ownerStats.DamageStats.Crits++
		ownerStats.DamageStats.CritDamage += damage
		ownerStats.SkillStats.Crits++
		skill.Crits++
	}
	isBack := ev.HitOption == HitOptionBackAttack
	if isBack {
		ownerStats.DamageStats.BackAttacks++
		ownerStats.DamageStats.BackAttackDamage += damage
		ownerStats.SkillStats.BackAttacks++
		skill.BackAttacks++
		skill.BackAttackDamage += damage
	}
	isFront := ev.HitOption == HitOptionFrontalAttack
	if isFront {
		ownerStats.DamageStats.FrontAttacks++
		ownerStats.DamageStats.FrontAttackDamage += damage
		ownerStats.SkillStats.FrontAttacks++
		skill.FrontAttacks++
		skill.FrontAttackDamage += damage
	}

	isHyperAwakening := s.tables.Skills.IsHyperAwakening(resolvedSkillID)
	if isHyperAwakening {
		ownerStats.DamageStats.HyperAwakeningDamage += damage
	}

	if target.Kind == KindPlayer {
		targetStats.DamageStats.DamageTaken += damage
		if damage > targetStats.DamageStats.TopDamageTaken {
			targetStats.DamageStats.TopDamageTaken = damage
		}
	} else if target.Kind == KindBoss {
		s.CurrentBossID = target.ID
		s.appendBossHP(target.Name, now, targetStats.CurrentShield+ev.CurHP, ev.MaxHP)
	}

	var buffedBy, debuffedBy []uint32
	var summonSources []uint32
	if skillEntry != nil {
		summonSources = skillEntry.SummonSourceSkills
	}
	if owner.IsPlayer() {
		buffedBy, debuffedBy = s.attributePlayerSource(owner, ownerStats, skill, damage, ev, effectsOnSource, effectsOnTarget, isHyperAwakening, now)
	}

	relMS, hitOK := s.CastLog.OnHit(owner.ID, literalSourceID, resolvedSkillID, SkillHit{
		Timestamp: now, Damage: damage, Crit: isCrit, BackAttack: isBack, FrontAttack: isFront,
		BuffedBy: buffedBy, DebuffedBy: debuffedBy,
	}, summonSources)
	if hitOK && owner.IsPlayer() {
		s.appendCastLogProj(owner.Name, resolvedSkillID, relMS)
	}
}

// appendCastLogProj maintains a compact
// player -> skill -> [relative ms] projection of the cast log.
func (s *State) appendCastLogProj(playerName string, skillID uint32, relativeMS int64) {
	bySkill, ok := s.CastLogProj[playerName]
	if !ok {
		bySkill = make(map[uint32][]int64)
		s.CastLogProj[playerName] = bySkill
	}
	log := bySkill[skillID]
	if n := len(log); n == 0 || log[n-1] != relativeMS {
		bySkill[skillID] = append(log, relativeMS)
	}
}

// appendBossHP appends a boss-hp-log
// sample, overwriting the last one if it shares the same integer second.
func (s *State) appendBossHP(bossName string, now time.Time, hp, maxHP int64) {
	tSec := now.Sub(s.StartedOn).Milliseconds() / 1000
	pct := 0.0
	if maxHP > 0 {
		pct = float64(hp) / float64(maxHP) * 100
	}
	log := s.BossHPLog[bossName]
	if n := len(log); n > 0 && log[n-1].TSec == tSec {
		log[n-1] = BossHPLogPoint{TSec: tSec, HP: hp, HPPercent: pct}
	} else {
		log = append(log, BossHPLogPoint{TSec: tSec, HP: hp, HPPercent: pct})
	}
	s.BossHPLog[bossName] = log
}

// attributePlayerSource is the player-source attribution
// sub-routine, run only when owner is a Player.
func (s *State) attributePlayerSource(owner *Entity, ownerStats *EncounterEntity, skill *Skill, damage int64, ev DamageEvent, effectsOnSource, effectsOnTarget []*StatusEffectDetails, isHyperAwakening bool, now time.Time) (buffedBy, debuffedBy []uint32) {
	if damage > ownerStats.DamageStats.TopDamageDealt {
		ownerStats.DamageStats.TopDamageDealt = damage
	}
	name := owner.Name
	s.DamageLog[name] = append(s.DamageLog[name], DamageLogPoint{TimestampMS: now.Sub(s.StartedOn).Milliseconds(), Damage: damage})

	// "Stabilized Status" only applies while its carrier is above 65% HP, so
	// the exclusion keys on the attacker's own HP, not the victim's.
	lowHP := ownerStats.MaxHP > 0 && float64(ownerStats.CurrentHP)/float64(ownerStats.MaxHP)*100 <= 65

	var buffedBySupport, buffedByIdentity, buffedByHat int64
	for _, e := range effectsOnSource {
		id := e.CustomID
		if id == 0 {
			id = e.StatusEffectID
		}
		buff := s.resolveBuff(id)
		if buff == nil {
			continue
		}
		isSupportBuff := buff.SupportBuff && buff.DamageFlag && buff.TargetScope == metadata.BuffTargetParty &&
			(buff.Category == "classskill" || buff.Category == "arkpassive")
		isIdentityBuff := buff.SupportBuff && buff.DamageFlag && buff.TargetScope == metadata.BuffTargetParty && buff.Category == "identity"
		if isSupportBuff {
			buffedBySupport += damage
		}
		if isIdentityBuff {
			buffedByIdentity += damage
		}
		if buff.IsHatBuff {
			buffedByHat += damage
		}
		if lowHP && buff.IsStabilizedStatus() {
			continue
		}
		if isHyperAwakening && !buff.IsHatBuff {
			continue
		}
		buffedBy = append(buffedBy, id)
		ownerStats.DamageStats.BuffedBy[id] += damage
		skill.BuffedBy[id] += damage
	}

	var debuffedBySupport int64
	if !isHyperAwakening {
		for _, e := range effectsOnTarget {
			id := e.CustomID
			if id == 0 {
				id = e.StatusEffectID
			}
			buff := s.resolveBuff(id)
			if buff == nil {
				continue
			}
			isSupportDebuff := buff.SupportBuff && buff.DamageFlag && buff.TargetScope == metadata.BuffTargetParty &&
				(buff.Category == "classskill" || buff.Category == "arkpassive")
			if isSupportDebuff {
				debuffedBySupport += damage
			}
			debuffedBy = append(debuffedBy, id)
			ownerStats.DamageStats.DebuffedBy[id] += damage
			skill.DebuffedBy[id] += damage
		}
	}

	if !isHyperAwakening {
		skill.BuffedBySupport += buffedBySupport
		skill.BuffedByIdentity += buffedByIdentity
		skill.DebuffedBySupport += debuffedBySupport
		ownerStats.DamageStats.BuffedBySupport += buffedBySupport
		ownerStats.DamageStats.BuffedByIdentity += buffedByIdentity
		ownerStats.DamageStats.DebuffedBySupport += debuffedBySupport
	}
	skill.BuffedByHat += buffedByHat
	ownerStats.DamageStats.BuffedByHat += buffedByHat

	return buffedBy, debuffedBy
}
