package engine

import "time"

// Graph is the live entity graph: a
// map of entities keyed by instance id, a secondary index by character id,
// party membership, and the parallel map of per-encounter aggregated
// statistics.
type Graph struct {
	entities      map[uint64]*Entity
	byCharacterID map[uint64]*Entity
	stats         map[uint64]*EncounterEntity

	partiesByID map[uint32][]uint64 // party instance id -> character ids

	localEntityID    uint64
	localCharacterID uint64
}

func newGraph() *Graph {
	return &Graph{
		entities:      make(map[uint64]*Entity),
		byCharacterID: make(map[uint64]*Entity),
		stats:         make(map[uint64]*EncounterEntity),
		partiesByID:   make(map[uint32][]uint64),
	}
}

// GetOrCreate lazily inserts an
// Unknown entity named by the hex of its id.
func (g *Graph) GetOrCreate(id uint64, now time.Time) *Entity {
	if e, ok := g.entities[id]; ok {
		return e
	}
	e := &Entity{ID: id, Kind: KindUnknown, Name: HexName(id), CreatedOn: now}
	g.entities[id] = e
	return e
}

// Get returns the entity for id without creating one.
func (g *Graph) Get(id uint64) (*Entity, bool) {
	e, ok := g.entities[id]
	return e, ok
}

// GetSource resolves attribution indirection: if id is a projectile or
// summon, returns its owner (lazily creating the owner if missing);
// otherwise returns the entity itself.
func (g *Graph) GetSource(id uint64, now time.Time) *Entity {
	e := g.GetOrCreate(id, now)
	if (e.Kind == KindProjectile || e.Kind == KindSummon) && e.OwnerID != 0 {
		return g.GetOrCreate(e.OwnerID, now)
	}
	return e
}

// Stats returns (creating if necessary) the EncounterEntity for an instance
// id, seeded from the live Entity if one exists.
func (g *Graph) Stats(id uint64, now time.Time) *EncounterEntity {
	if s, ok := g.stats[id]; ok {
		return s
	}
	e := g.GetOrCreate(id, now)
	s := newEncounterEntity(e)
	g.stats[id] = s
	return s
}

// StatsIfExists returns the EncounterEntity for id without creating one.
func (g *Graph) StatsIfExists(id uint64) (*EncounterEntity, bool) {
	s, ok := g.stats[id]
	return s, ok
}

// AllStats returns the full id -> EncounterEntity map for iteration
// (snapshotting, persistence).
func (g *Graph) AllStats() map[uint64]*EncounterEntity { return g.stats }

// LocalEntityID / LocalCharacterID report the identified local player.
func (g *Graph) LocalEntityID() uint64    { return g.localEntityID }
func (g *Graph) LocalCharacterID() uint64 { return g.localCharacterID }

// NewPC installs a newly seen player: replace any existing mapping for
// character-id, place the new entity in both indices, and either refresh an
// existing EncounterEntity's HP or insert a fresh one.
func (g *Graph) NewPC(id, characterID uint64, name string, class Class, gearLevel float32, level uint32, curHP, maxHP int64, now time.Time) *Entity {
	e := &Entity{
		ID: id, CharacterID: characterID, Kind: KindPlayer, Class: class,
		Name: name, GearLevel: gearLevel, Level: level, CreatedOn: now,
	}
	g.entities[id] = e
	if characterID != 0 {
		g.byCharacterID[characterID] = e
	}
	if s, ok := g.stats[id]; ok {
		s.CurrentHP, s.MaxHP = curHP, maxHP
		s.Name, s.Class, s.GearLevel = name, class, gearLevel
	} else {
		s := newEncounterEntity(e)
		s.CurrentHP, s.MaxHP = curHP, maxHP
		g.stats[id] = s
	}
	return e
}

// OnInitPC identifies the local player,
// wipes the entity graph (session-establishment point), then reinstalls the
// local player and its encounter stats.
func (g *Graph) OnInitPC(id, characterID uint64, name string, class Class, gearLevel float32, level uint32, curHP, maxHP int64, now time.Time) *Entity {
	g.localEntityID = id
	g.localCharacterID = characterID
	g.entities = make(map[uint64]*Entity)
	g.byCharacterID = make(map[uint64]*Entity)
	return g.NewPC(id, characterID, name, class, gearLevel, level, curHP, maxHP, now)
}

// OnInitEnv rekeys the local player to
// playerID, clears both entity indices, and retains only EncounterEntity
// entries of the local player or those with DamageDealt > 0. The caller is
// responsible for also clearing the local status-effect registry and
// performing the trailing soft reset.
func (g *Graph) OnInitEnv(playerID uint64, now time.Time) {
	oldLocal, hadLocal := g.entities[g.localEntityID]
	g.localEntityID = playerID
	g.entities = make(map[uint64]*Entity)
	g.byCharacterID = make(map[uint64]*Entity)
	if hadLocal {
		relocated := *oldLocal
		relocated.ID = playerID
		relocated.CreatedOn = now
		g.entities[playerID] = &relocated
		if relocated.CharacterID != 0 {
			g.byCharacterID[relocated.CharacterID] = &relocated
		}
	}

	kept := make(map[uint64]*EncounterEntity, len(g.stats))
	for id, s := range g.stats {
		if id == playerID || s.CharacterID == g.localCharacterID || s.DamageStats.DamageDealt > 0 {
			kept[id] = s
		}
	}
	g.stats = kept
}

// newBossWithMoreHP reports whether a newly seen boss should displace the
// tracked one, used by NewNpc.
func newBossWithMoreHP(candidateMaxHP int64, existing *EncounterEntity) bool {
	if existing == nil {
		return true
	}
	return candidateMaxHP >= existing.MaxHP || existing.CurrentHP <= 0
}

// NewNpc upserts an NPC with the provided HP; if
// summoned and kind was Npc, retag as Summon; if the new entity is a Boss
// and out-HPs (or replaces a dead) current boss, set it as current boss.
// currentBossID is the controller's *current_boss.ID, returned updated.
func (g *Graph) NewNpc(id uint64, typeID uint32, kind Kind, curHP, maxHP int64, summoned bool, ownerID uint64, name string, currentBossID uint64, now time.Time) (entity *Entity, newCurrentBossID uint64, becameBoss bool) {
	e, exists := g.entities[id]
	if !exists {
		e = &Entity{ID: id, CreatedOn: now}
		g.entities[id] = e
	}
	e.Kind = kind
	if summoned && kind == KindNpc {
		e.Kind = KindSummon
		e.OwnerID = ownerID
	}
	if name != "" {
		e.Name = name
	} else if e.Name == "" {
		e.Name = HexName(id)
	}

	s, statsExist := g.stats[id]
	if !statsExist {
		s = newEncounterEntity(e)
		g.stats[id] = s
	}
	s.CurrentHP, s.MaxHP = curHP, maxHP
	s.Kind = e.Kind

	newCurrentBossID = currentBossID
	if e.Kind == KindBoss {
		var existingBoss *EncounterEntity
		if currentBossID != 0 {
			existingBoss = g.stats[currentBossID]
		}
		if currentBossID == 0 || currentBossID != id && newBossWithMoreHP(maxHP, existingBoss) {
			newCurrentBossID = id
			becameBoss = true
		}
	}
	return e, newCurrentBossID, becameBoss
}

// PartyInfo rebuilds party membership,
// infers the local player's identity from a usage-count store when still
// unknown, updates member gear/class/party-instance, and resyncs the local
// player's EncounterEntity. usageCounts is the persisted character_id ->
// seen-count map from LocalPlayerStore;
// recordUsage is called once per still-unidentified member so the store can
// accumulate counts across sessions.
func (g *Graph) PartyInfo(partyInstanceID uint32, members []PartyMemberInfo, now time.Time, usageCounts map[uint64]int, recordUsage func(characterID uint64, name string)) {
	ids := make([]uint64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.CharacterID)
	}
	g.partiesByID[partyInstanceID] = ids

	localUnknown := g.localEntityID == 0
	if e, ok := g.entities[g.localEntityID]; ok {
		localUnknown = e.Name == "" || e.Name == HexName(e.ID)
	}

	if localUnknown {
		var best uint64
		bestCount := -1
		for _, m := range members {
			recordUsage(m.CharacterID, m.Name)
			if c := usageCounts[m.CharacterID]; c > bestCount {
				bestCount, best = c, m.CharacterID
			}
		}
		if best != 0 {
			if e, ok := g.byCharacterID[best]; ok {
				g.localEntityID = e.ID
				g.localCharacterID = best
			}
		}
	}

	for _, m := range members {
		e, ok := g.byCharacterID[m.CharacterID]
		if !ok {
			continue
		}
		e.GearLevel = m.GearLevel
		if e.Class == 0 {
			e.Class = Class(m.Class)
		}
		if s, ok := g.stats[e.ID]; ok {
			s.GearLevel = e.GearLevel
			s.Class = e.Class
		}
	}

	if e, ok := g.entities[g.localEntityID]; ok {
		if s, ok := g.stats[e.ID]; ok {
			s.Name, s.Class, s.GearLevel = e.Name, e.Class, e.GearLevel
		}
	}
}

// RemovePartyMember implements the PartyLeaveResult half of party
// membership upkeep: drops characterID from the named party's roster.
// Callers clear State.PartyCache/PartyMapCache
// alongside this.
func (g *Graph) RemovePartyMember(partyInstanceID uint32, characterID uint64) {
	members := g.partiesByID[partyInstanceID]
	for i, c := range members {
		if c == characterID {
			g.partiesByID[partyInstanceID] = append(members[:i], members[i+1:]...)
			return
		}
	}
}

// AddPartyMember implements the PartyStatusEffectResultNotify half of party
// membership upkeep: binds characterID to partyInstanceID if not already a
// member.
func (g *Graph) AddPartyMember(partyInstanceID uint32, characterID uint64) {
	for _, c := range g.partiesByID[partyInstanceID] {
		if c == characterID {
			return
		}
	}
	g.partiesByID[partyInstanceID] = append(g.partiesByID[partyInstanceID], characterID)
}

// PartyMemberInfo is the minimal per-member shape PartyInfo needs; decoupled
// from ports.PartyMember so the engine package has no dependency on ports.
type PartyMemberInfo struct {
	CharacterID uint64
	Name        string
	Class       uint32
	GearLevel   float32
}

// InPartyWithLocal reports whether characterID is a member of any party the local
// player also belongs to — the scope rule status effects use.
func (g *Graph) InPartyWithLocal(characterID uint64) bool {
	if characterID == 0 || characterID == g.localCharacterID {
		return false
	}
	for _, members := range g.partiesByID {
		hasLocal, hasTarget := false, false
		for _, c := range members {
			if c == g.localCharacterID {
				hasLocal = true
			}
			if c == characterID {
				hasTarget = true
			}
		}
		if hasLocal && hasTarget {
			return true
		}
	}
	return false
}

// Parties returns the current party roster as party instance id -> member
// names, resolving each character id through byCharacterID. A member not
// yet known by name falls back to its hex id.
func (g *Graph) Parties() map[int32][]string {
	if len(g.partiesByID) == 0 {
		return nil
	}
	out := make(map[int32][]string, len(g.partiesByID))
	for partyID, ids := range g.partiesByID {
		names := make([]string, 0, len(ids))
		for _, cid := range ids {
			if e, ok := g.byCharacterID[cid]; ok && e.Name != "" {
				names = append(names, e.Name)
				continue
			}
			names = append(names, HexName(cid))
		}
		out[int32(partyID)] = names
	}
	return out
}

// GuessClassFromSkill promotes an unidentified caster to a player: when
// a skill-cast arrives for an entity whose kind is Unknown (or a Player with
// unknown class), the skill's metadata class-id identifies the entity as a
// Player and sets its class. Never downgrades an already-known class.
func (g *Graph) GuessClassFromSkill(entityID uint64, classID uint32) {
	if classID == 0 {
		return
	}
	e, ok := g.entities[entityID]
	if !ok {
		return
	}
	if e.Kind != KindUnknown && !(e.Kind == KindPlayer && e.Class == 0) {
		return
	}
	e.Kind = KindPlayer
	e.Class = Class(classID)
	if s, ok := g.stats[entityID]; ok {
		s.Kind = KindPlayer
		s.Class = e.Class
	}
}

// PurgeLocal removes an entity on RemoveObject/ZoneObjectUnpublishNotify
// from the live entity graph only; EncounterEntity stats survive for the
// rest of the encounter.
func (g *Graph) PurgeLocal(id uint64) {
	delete(g.entities, id)
}

// softReset is the entity-graph half of an encounter reset:
// retain only EncounterEntity entries whose kind is Player (and Boss if
// keepBosses), resetting each one's ephemeral stats in place.
func (g *Graph) softReset(keepBosses bool) {
	kept := make(map[uint64]*EncounterEntity, len(g.stats))
	for id, s := range g.stats {
		if s.Kind == KindPlayer || (keepBosses && s.Kind == KindBoss) {
			s.softReset()
			kept[id] = s
		}
	}
	g.stats = kept
}
