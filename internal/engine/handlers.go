package engine

import "time"

// OnStatusEffectAdd registers a status effect for both
// StatusEffectAddNotify and PartyStatusEffectAddNotify: resolves the target
// scope, builds the StatusEffectDetails, registers it, and (if the effect is
// a hard-CC type) feeds the incapacitation tracker's "On CC add" rule.
func (s *State) OnStatusEffectAdd(instanceID uint32, sourceID, targetID, characterID uint64, statusEffectID uint32, sourceSkillID uint32, rawValue []byte, stackCount uint32, expirationDelaySec float64, buffCategory BuffCategory, category StatusEffectCategory, effectType StatusEffectType, now time.Time) *StatusEffectDetails {
	effect := &StatusEffectDetails{
		InstanceID:      instanceID,
		SourceID:        sourceID,
		TargetID:        targetID,
		StatusEffectID:  statusEffectID,
		TargetType:      s.ScopeFor(characterID),
		Category:        category,
		BuffCategory:    buffCategory,
		Type:            effectType,
		Value:           DecodeShieldValue(rawValue),
		StackCount:      stackCount,
		ExpirationDelay: expirationDelaySec,
		Timestamp:       now,
	}
	if sourceSkillID != 0 && sourceSkillID != statusEffectID {
		effect.CustomID = CustomID(sourceSkillID)
		effect.SourceSkills = []uint32{sourceSkillID}
	}
	if expirationDelaySec > 0 {
		t := now.Add(time.Duration(expirationDelaySec * float64(time.Second)))
		effect.ExpireAt = &t
	}
	s.StatusEffects.Register(effect)
	s.registerCustomID(effect)

	if effectType == EffectTypeHardCrowdControl {
		if stats, ok := s.Graph.StatsIfExists(targetID); ok {
			stats.DamageStats.Incapacitations = onCCApplied(stats.DamageStats.Incapacitations, effect)
		}
	}
	return effect
}

// OnStatusEffectRemove drops an effect from the registry
// and, for an explicit removal of a hard-CC effect, the incapacitation
// tracker's "On CC remove at T" rule.
func (s *State) OnStatusEffectRemove(targetType StatusEffectTargetType, targetID uint64, instanceID uint32, explicit bool, now time.Time) {
	effect := s.StatusEffects.Remove(targetType, targetID, instanceID)
	if effect == nil || !explicit || effect.Type != EffectTypeHardCrowdControl {
		return
	}
	if stats, ok := s.Graph.StatsIfExists(targetID); ok {
		stats.DamageStats.Incapacitations = onCCRemoved(stats.DamageStats.Incapacitations, effect, now)
	}
}

// OnStatusEffectSync resolves the effect's scope,
// mutates the effect's value, and returns the (possibly nil) updated effect
// plus its prior value, for shield delta accounting.
func (s *State) OnStatusEffectSync(instanceID uint32, targetID, characterID uint64, rawValue []byte) (*StatusEffectDetails, uint64) {
	scope := s.ScopeFor(characterID)
	key := targetID
	if scope == TargetParty {
		key = characterID
	}
	return s.StatusEffects.Sync(scope, key, instanceID, DecodeShieldValue(rawValue))
}

// OnTroopMemberUpdate applies a TroopMemberUpdateMinNotify value change,
// identical in shape to a sync.
func (s *State) OnTroopMemberUpdate(instanceID uint32, targetID, characterID uint64, rawValue []byte) (*StatusEffectDetails, uint64) {
	return s.OnStatusEffectSync(instanceID, targetID, characterID, rawValue)
}

// ApplyShieldDelta records shield consumption: when a shield status
// effect's tracked value decreases (via sync or troop update), the delta is
// recorded as damage_absorbed on the shielded entity and
// damage_absorbed_on_others on the shield's source, split per buff id.
func (s *State) ApplyShieldDelta(effect *StatusEffectDetails, oldValue uint64, now time.Time) {
	if effect == nil || effect.Type != EffectTypeShield || oldValue <= effect.Value {
		return
	}
	delta := int64(oldValue - effect.Value)
	target := s.Graph.Stats(effect.TargetID, now)
	target.DamageStats.DamageAbsorbed += delta
	target.DamageStats.DamageAbsorbedBy[effect.StatusEffectID] += delta
	if effect.SourceID != 0 && effect.SourceID != effect.TargetID {
		source := s.Graph.Stats(effect.SourceID, now)
		source.DamageStats.DamageAbsorbedOnOthers += delta
		source.DamageStats.DamageAbsorbedOnOthersBy[effect.StatusEffectID] += delta
	}
}

// ApplyShieldGiven implements S3's "Party shield applied" half: recording
// shields_given/received the moment a shield effect registers.
func (s *State) ApplyShieldGiven(effect *StatusEffectDetails, now time.Time) {
	if effect == nil || effect.Type != EffectTypeShield || effect.Value == 0 {
		return
	}
	target := s.Graph.Stats(effect.TargetID, now)
	target.DamageStats.ShieldsReceived += int64(effect.Value)
	target.DamageStats.ShieldsReceivedBy[effect.StatusEffectID] += int64(effect.Value)
	if effect.SourceID != 0 && effect.SourceID != effect.TargetID {
		source := s.Graph.Stats(effect.SourceID, now)
		source.DamageStats.ShieldsGiven += int64(effect.Value)
		source.DamageStats.ShieldsGivenBy[effect.StatusEffectID] += int64(effect.Value)
	}
}

// OnIdentityGaugeChange records a player's identity gauge, both as the
// live SkillStats snapshot and an append to identity_log, coalescing same-second samples like boss_hp_log.
func (s *State) OnIdentityGaugeChange(entityID uint64, g1, g2, g3 uint32, now time.Time) {
	stats := s.Graph.Stats(entityID, now)
	stats.SkillStats.IdentityGauge = [3]uint32{g1, g2, g3}
	if stats.Kind != KindPlayer {
		return
	}
	relMS := now.Sub(s.StartedOn).Milliseconds()
	if !s.IsStarted() {
		relMS = 0
	}
	log := s.IdentityLog[stats.Name]
	if n := len(log); n > 0 && log[n-1].RelativeMS/1000 == relMS/1000 {
		log[n-1] = IdentityLogPoint{RelativeMS: relMS, Gauge1: g1, Gauge2: g2, Gauge3: g3}
	} else {
		log = append(log, IdentityLogPoint{RelativeMS: relMS, Gauge1: g1, Gauge2: g2, Gauge3: g3})
	}
	s.IdentityLog[stats.Name] = log
}

// OnSkillStart records a new skill cast, additionally
// guessing the caster's class from the skill's metadata.
func (s *State) OnSkillStart(entityID uint64, skillID uint32, classID uint32, tripodIndex, tripodLevel [3]int, now time.Time) {
	s.Graph.GuessClassFromSkill(entityID, classID)
	entry := s.tables.Skills.Get(skillID)
	var summonSources []uint32
	if entry != nil {
		summonSources = entry.SummonSourceSkills
	}
	relMS, created := s.CastLog.OnSkillStart(entityID, skillID, now, s.fightStartOr(now), func(src uint32) bool {
		_, ok := s.CastLog.cachedSkillTimestamp(entityID, src)
		return ok
	}, summonSources)

	if created {
		stats := s.Graph.Stats(entityID, now)
		stats.SkillStats.Casts++
		skill, ok := stats.Skills[skillID]
		if !ok {
			name := ""
			if entry != nil {
				name = entry.Name
			}
			skill = &Skill{
				ID: skillID, Name: name,
				BuffedBy:   make(map[uint32]int64),
				DebuffedBy: make(map[uint32]int64),
			}
			stats.Skills[skillID] = skill
		}
		skill.Casts++
		skill.TripodIndex = tripodIndex
		skill.TripodLevel = tripodLevel
		skill.CastLog = append(skill.CastLog, relMS)
	}

	if entry != nil && entry.IsGetUp {
		if stats, ok := s.Graph.StatsIfExists(entityID); ok {
			stats.DamageStats.Incapacitations = onGetUp(stats.DamageStats.Incapacitations, now)
		}
	}
}

// OnSkillCast handles the Arcanist exception: SkillCastNotify
// (distinct from SkillStartNotify) is the only start signal Arcanist's
// card-draw skills emit, so it's routed through the same OnSkillStart path
// for that one class.
func (s *State) OnSkillCast(entityID uint64, skillID uint32, now time.Time) {
	entity, ok := s.Graph.Get(entityID)
	if !ok || entity.Class != ClassArcanist {
		return
	}
	s.OnSkillStart(entityID, skillID, uint32(ClassArcanist), [3]int{}, [3]int{}, now)
}

func (s *State) fightStartOr(now time.Time) time.Time {
	if s.IsStarted() {
		return s.StartedOn
	}
	return now
}

// OnProjectileCreated bridges a new projectile or trap to its owning cast.
func (s *State) OnProjectileCreated(ownerID uint64, skillID uint32, projectileID uint64) {
	s.CastLog.OnProjectileCreated(ownerID, skillID, projectileID)
}

// OnDeath handles an entity death: it does the death-time
// bookkeeping: caps in-progress incapacitations and records death_time.
func (s *State) OnDeath(targetID uint64, now time.Time) {
	stats, ok := s.Graph.StatsIfExists(targetID)
	if !ok {
		return
	}
	stats.DamageStats.Incapacitations = onDeath(stats.DamageStats.Incapacitations, now)
	stats.DamageStats.DeathTime = now
	stats.DamageStats.Deaths++
}

// OnCounterAttack increments the counter-hit tally for an entity already
// present in the encounter; CounterAttackNotify is only meaningful once the
// entity has a stats row.
func (s *State) OnCounterAttack(sourceID uint64) {
	if stats, ok := s.Graph.StatsIfExists(sourceID); ok {
		stats.SkillStats.Counters++
	}
}

// OnPartyLeave implements PartyLeaveResult: drops the member from its
// party's roster and invalidates the cached party snapshot.
func (s *State) OnPartyLeave(partyInstanceID uint32, characterID uint64) {
	s.Graph.RemovePartyMember(partyInstanceID, characterID)
	s.PartyCache = nil
	s.PartyMapCache = nil
}

// OnPartyStatusEffectResult implements PartyStatusEffectResultNotify:
// confirms a character's party binding.
func (s *State) OnPartyStatusEffectResult(partyInstanceID uint32, characterID uint64) {
	s.Graph.AddPartyMember(partyInstanceID, characterID)
}

// OnRemoveObject purges the instance id from the
// live entity graph and the Local status-effect scope.
func (s *State) OnRemoveObject(objectID uint64) {
	s.Graph.PurgeLocal(objectID)
	s.StatusEffects.RemoveLocalObject(objectID)
}
