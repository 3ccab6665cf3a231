package engine

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ttlIdle is the idle-TTL window for skillTimestamps and
// projectileTimestamps.
const ttlIdle = 20 * time.Second

// skillCastKey identifies one cast record: entity, skill, and the cast's
// relative start time in milliseconds since fight start.
type skillCastKey struct {
	EntityID   uint64
	SkillID    uint32
	RelativeMS int64
}

// CastLog is the temporal cast ledger: a map of
// (entity, skill, relative-timestamp) -> SkillCast, bridged by two idle-TTL
// caches that let a later hit find the cast that started it even through
// projectile indirection.
type CastLog struct {
	casts               map[skillCastKey]*SkillCast
	skillTimestamp      *gocache.Cache // "entity:skill" -> relative ms (int64)
	projectileTimestamp *gocache.Cache // "projectile" -> relative ms (int64)
}

func newCastLog() *CastLog {
	return &CastLog{
		casts:               make(map[skillCastKey]*SkillCast),
		skillTimestamp:      gocache.New(ttlIdle, ttlIdle/2),
		projectileTimestamp: gocache.New(ttlIdle, ttlIdle/2),
	}
}

func skillTSKey(entityID uint64, skillID uint32) string {
	return fmt.Sprintf("%d:%d", entityID, skillID)
}

func projTSKey(projectileID uint64) string {
	return fmt.Sprintf("%d", projectileID)
}

// OnSkillStart opens a new cast record. summonSourceHasCache
// reports whether any of the skill's summon-source skills already has a
// cached timestamp for this entity; when true, the new cast is elided
// because the summoning cast owns the attribution.
func (c *CastLog) OnSkillStart(entityID uint64, skillID uint32, now, fightStart time.Time, summonSourceHasCache func(sourceSkillID uint32) bool, summonSources []uint32) (relativeMS int64, created bool) {
	for _, s := range summonSources {
		if summonSourceHasCache(s) {
			return 0, false
		}
	}
	relativeMS = now.Sub(fightStart).Milliseconds()
	c.skillTimestamp.Set(skillTSKey(entityID, skillID), relativeMS, gocache.DefaultExpiration)
	key := skillCastKey{EntityID: entityID, SkillID: skillID, RelativeMS: relativeMS}
	if _, exists := c.casts[key]; !exists {
		c.casts[key] = &SkillCast{Timestamp: now, Last: now}
	}
	return relativeMS, true
}

// cachedSkillTimestamp reads the skill_timestamp cache for (entityID, skillID).
func (c *CastLog) cachedSkillTimestamp(entityID uint64, skillID uint32) (int64, bool) {
	v, ok := c.skillTimestamp.Get(skillTSKey(entityID, skillID))
	if !ok {
		return 0, false
	}
	return v.(int64), true
}

// OnProjectileCreated bridges a fresh projectile/trap to its cast:
// if the owner has a cached cast timestamp for skillID, bridge it to the
// projectile id so a later hit via that projectile can resolve its cast.
func (c *CastLog) OnProjectileCreated(ownerID uint64, skillID uint32, projectileID uint64) {
	if skillID == 0 {
		return
	}
	ts, ok := c.cachedSkillTimestamp(ownerID, skillID)
	if !ok {
		return
	}
	c.projectileTimestamp.Set(projTSKey(projectileID), ts, gocache.DefaultExpiration)
}

// OnHit appends a hit to its cast: resolve the cast timestamp in
// order (1) summon-source skill_timestamp, (2) projectile_id_to_timestamp,
// (3) skill_timestamp for (entity, skill). On a summon-source match, also
// cache that timestamp under (entity, skillID) for future direct lookups.
// Appends hit to the resolved SkillCast and advances its Last time.
func (c *CastLog) OnHit(entityID uint64, projectileID uint64, skillID uint32, hit SkillHit, summonSources []uint32) (relativeMS int64, ok bool) {
	for _, s := range summonSources {
		if ts, found := c.cachedSkillTimestamp(entityID, s); found {
			c.skillTimestamp.Set(skillTSKey(entityID, skillID), ts, gocache.DefaultExpiration)
			relativeMS, ok = ts, true
			break
		}
	}
	if !ok && projectileID != 0 {
		if v, found := c.projectileTimestamp.Get(projTSKey(projectileID)); found {
			relativeMS, ok = v.(int64), true
		}
	}
	if !ok {
		if ts, found := c.cachedSkillTimestamp(entityID, skillID); found {
			relativeMS, ok = ts, true
		}
	}
	if !ok {
		return 0, false
	}
	key := skillCastKey{EntityID: entityID, SkillID: skillID, RelativeMS: relativeMS}
	cast, exists := c.casts[key]
	if !exists {
		cast = &SkillCast{Timestamp: hit.Timestamp, Last: hit.Timestamp}
		c.casts[key] = cast
	}
	cast.Hits = append(cast.Hits, hit)
	if hit.Timestamp.After(cast.Last) {
		cast.Last = hit.Timestamp
	}
	return relativeMS, true
}

// Get returns the cast record for (entity, skill, relativeMS), if any.
func (c *CastLog) Get(entityID uint64, skillID uint32, relativeMS int64) (*SkillCast, bool) {
	cast, ok := c.casts[skillCastKey{EntityID: entityID, SkillID: skillID, RelativeMS: relativeMS}]
	return cast, ok
}

// reset clears the ledger and both caches, used on a hard phase reset.
func (c *CastLog) reset() {
	c.casts = make(map[skillCastKey]*SkillCast)
	c.skillTimestamp.Flush()
	c.projectileTimestamp.Flush()
}
