package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/raidtrack/engine/internal/engine"
	"github.com/raidtrack/engine/internal/ports"
)

func handleInitEnv(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.InitEnvPayload)
	if !ok {
		payloadErr("InitEnv", payload)
	}
	// The zone change wipes the graph below, so an in-flight encounter has to
	// be snapshotted for the persister now, not via the usual save flag.
	if d.SaveNow != nil && d.State.ShouldSave(false) {
		d.SaveNow()
	}
	var region string
	if d.Region != nil {
		if r, ok := d.Region.(interface{ Reload() error }); ok {
			if err := r.Reload(); err != nil {
				d.Log.Debug("region reload failed", zap.Error(err))
			}
		}
		region, _ = d.Region.Get()
	}
	action := d.State.OnInitEnv(p.PlayerID, region, now)
	d.emitPhase(action)
	if action.ZoneChanged {
		d.Emitter.Emit(ports.EventZoneChange{})
	}
}

func handleInitPC(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.InitPCPayload)
	if !ok {
		payloadErr("InitPC", payload)
	}
	d.State.Graph.OnInitPC(p.PlayerID, p.CharacterID, p.Name, engine.Class(p.Class), p.GearLevel, p.Level, p.CurrentHP, p.MaxHP, now)
}

func handleNewPC(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.NewPCPayload)
	if !ok {
		payloadErr("NewPC", payload)
	}
	d.State.Graph.NewPC(p.PlayerID, p.CharacterID, p.Name, engine.Class(p.Class), p.GearLevel, p.Level, p.CurrentHP, p.MaxHP, now)
}

func handleNewNpc(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.NewNpcPayload)
	if !ok {
		payloadErr("NewNpc", payload)
	}
	kind, name := engine.KindNpc, ""
	if d.Tables.Npcs != nil {
		npcKind, displayName := d.Tables.Npcs.Classify(p.TypeID, p.MaxHP)
		name = displayName
		switch npcKind {
		case "boss":
			kind = engine.KindBoss
		case "esther":
			kind = engine.KindEsther
		default:
			kind = engine.KindNpc
		}
	}
	_, newBossID, becameBoss := d.State.Graph.NewNpc(p.ObjectID, p.TypeID, kind, p.CurrentHP, p.MaxHP, p.Summoned, p.OwnerID, name, d.State.CurrentBossID, now)
	if becameBoss {
		d.State.CurrentBossID = newBossID
	}
}

func handleNewProjectile(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.NewProjectilePayload)
	if !ok {
		payloadErr("NewProjectile", payload)
	}
	d.State.Graph.GetOrCreate(p.ProjectileID, now)
	d.State.OnProjectileCreated(p.OwnerID, p.SkillID, p.ProjectileID)
}

func handleNewTrap(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.NewTrapPayload)
	if !ok {
		payloadErr("NewTrap", payload)
	}
	d.State.Graph.GetOrCreate(p.TrapID, now)
	d.State.OnProjectileCreated(p.OwnerID, p.SkillID, p.TrapID)
}

func handleNewTransit(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.NewTransitPayload)
	if !ok {
		payloadErr("NewTransit", payload)
	}
	if d.Decryptor != nil {
		d.Decryptor.UpdateZone(p.ChannelID)
	}
}

func handleRemoveObject(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.RemoveObjectPayload)
	if !ok {
		payloadErr("RemoveObject", payload)
	}
	d.State.OnRemoveObject(p.ObjectID)
}

func handleZoneObjectUnpublish(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.ZoneObjectUnpublishNotifyPayload)
	if !ok {
		payloadErr("ZoneObjectUnpublishNotify", payload)
	}
	d.State.OnRemoveObject(p.ObjectID)
}

func handleDeath(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.DeathNotifyPayload)
	if !ok {
		payloadErr("DeathNotify", payload)
	}
	d.State.OnDeath(p.TargetID, now)
}

func handleSkillStart(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.SkillStartNotifyPayload)
	if !ok {
		payloadErr("SkillStartNotify", payload)
	}
	var classID uint32
	if entry := d.Tables.Skills.Get(p.SkillID); entry != nil {
		classID = entry.ClassID
	}
	d.State.OnSkillStart(p.EntityID, p.SkillID, classID, p.TripodIndex, p.TripodLevel, now)
}

func handleSkillCast(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.SkillCastNotifyPayload)
	if !ok {
		payloadErr("SkillCastNotify", payload)
	}
	d.State.OnSkillCast(p.EntityID, p.SkillID, now)
}

func handleCounterAttack(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.CounterAttackNotifyPayload)
	if !ok {
		payloadErr("CounterAttackNotify", payload)
	}
	d.State.OnCounterAttack(p.SourceID)
}

func handlePartyLeaveResult(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.PartyLeaveResultPayload)
	if !ok {
		payloadErr("PartyLeaveResult", payload)
	}
	d.State.OnPartyLeave(p.PartyInstanceID, p.CharacterID)
}

func handlePartyStatusEffectResult(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.PartyStatusEffectResultNotifyPayload)
	if !ok {
		payloadErr("PartyStatusEffectResultNotify", payload)
	}
	d.State.OnPartyStatusEffectResult(p.PartyInstanceID, p.CharacterID)
}

func handleSkillDamage(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.SkillDamageNotifyPayload)
	if !ok {
		payloadErr("SkillDamageNotify", payload)
	}
	d.dispatchSkillDamage(p.SourceID, p.SkillID, p.SkillEffectID, p.Events, false, now)
}

func handleSkillDamageAbnormalMove(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.SkillDamageAbnormalMoveNotifyPayload)
	if !ok {
		payloadErr("SkillDamageAbnormalMoveNotify", payload)
	}
	d.dispatchSkillDamage(p.SourceID, p.SkillID, p.SkillEffectID, p.Events, true, now)
}

// dispatchSkillDamage translates ports-shaped damage events into the
// engine's decoupled DamageEvent vocabulary and runs the
// decryptor inline.
func (d *Dispatcher) dispatchSkillDamage(sourceID uint64, skillID, skillEffectID uint32, wireEvents []ports.SkillDamageEvent, isAbnormalMove bool, now time.Time) {
	// Decryption runs against the still-encrypted wire shape (RawDamage)
	// before conversion: engine.DamageEvent carries only already-decrypted
	// fields; the core never touches raw bytes.
	ok := make([]bool, len(wireEvents))
	for i := range wireEvents {
		if d.Decryptor == nil {
			ok[i] = true
			continue
		}
		ok[i] = d.Decryptor.Decrypt(&wireEvents[i])
	}

	events := make([]engine.DamageEvent, len(wireEvents))
	for i, we := range wireEvents {
		flag, opt := ports.DecodeModifier(we.Modifier)
		ev := engine.DamageEvent{
			TargetID:     we.TargetID,
			Damage:       we.Damage,
			ShieldDamage: we.ShieldDamage,
			HitFlag:      engine.HitFlag(flag),
			HitOption:    engine.HitOption(opt),
			CurHP:        we.CurHP,
			MaxHP:        we.MaxHP,
		}
		if we.MoveOptionData != nil {
			ev.HasMoveData = true
			ev.DownTimeSec = we.MoveOptionData.DownTimeSec
			ev.MoveTimeSec = we.MoveOptionData.MoveTimeSec
			ev.StandUpTimeSec = we.MoveOptionData.StandUpTimeSec
		}
		events[i] = ev
	}

	i := 0
	decrypt := func(ev *engine.DamageEvent) bool {
		success := ok[i]
		i++
		return success
	}

	result := d.State.HandleSkillDamage(sourceID, skillID, skillEffectID, events, isAbnormalMove, now, decrypt)
	if result.RaidStarted {
		d.Emitter.Emit(ports.EventRaidStart{FightStartMS: d.State.NTPFightStart})
	}
	if result.DamageInvalid {
		// The one-shot InvalidDamage event is the snapshot emitter's job; here
		// it is only worth a log line per packet.
		d.Log.Warn("damage decryption failed", zap.Uint64("source_id", sourceID), zap.Uint32("skill_id", skillID))
	}
}

func handleIdentityGaugeChange(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.IdentityGaugeChangeNotifyPayload)
	if !ok {
		payloadErr("IdentityGaugeChangeNotify", payload)
	}
	d.State.OnIdentityGaugeChange(p.EntityID, p.Gauge1, p.Gauge2, p.Gauge3, now)
	if p.EntityID == d.State.Graph.LocalEntityID() {
		d.Emitter.Emit(ports.EventIdentityUpdate{Gauge1: p.Gauge1, Gauge2: p.Gauge2, Gauge3: p.Gauge3})
	}
}

func handlePartyInfo(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.PartyInfoPayload)
	if !ok {
		payloadErr("PartyInfo", payload)
	}
	members := make([]engine.PartyMemberInfo, len(p.Members))
	for i, m := range p.Members {
		members[i] = engine.PartyMemberInfo{CharacterID: m.CharacterID, Name: m.Name, Class: m.Class, GearLevel: m.GearLevel}
	}
	record := d.recordUsage
	if record == nil {
		record = func(uint64, string) {}
	}
	d.State.Graph.PartyInfo(p.PartyInstanceID, members, now, d.usageCounts, record)
}

func handleStatusEffectAdd(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.StatusEffectPayload)
	if !ok {
		payloadErr("StatusEffectAddNotify", payload)
	}
	ts := now
	if p.Timestamp != 0 {
		ts = time.UnixMilli(p.Timestamp)
	}
	var sourceSkillID uint32
	buffCategory, category, effectType := engine.BuffCategoryOther, engine.CategoryOther, engine.EffectTypeOther
	if buff := d.resolveBuffForAdd(p.StatusEffectID); buff != nil {
		sourceSkillID = buff.SourceSkill
		switch buff.Category {
		case "classskill":
			buffCategory = engine.BuffCategoryClassSkill
		case "arkpassive":
			buffCategory = engine.BuffCategoryArkPassive
		case "identity":
			buffCategory = engine.BuffCategoryIdentity
		}
		switch buff.Type {
		case "shield":
			effectType = engine.EffectTypeShield
		case "hard_cc":
			effectType = engine.EffectTypeHardCrowdControl
		case "workshop":
			effectType = engine.EffectTypeWorkshop
		}
		if buff.TargetScope == "other" {
			category = engine.CategoryDebuff
		} else {
			category = engine.CategoryBuff
		}
	}
	effect := d.State.OnStatusEffectAdd(p.InstanceID, p.SourceID, p.TargetID, p.TargetID, p.StatusEffectID, sourceSkillID, p.RawValue, p.StackCount, p.ExpirationDelay, buffCategory, category, effectType, ts)
	d.State.ApplyShieldGiven(effect, ts)
}

// resolveBuffForAdd is a thin wrapper the dispatcher uses to look at buff
// metadata before the effect exists in the registry; engine.State keeps its
// own cached resolveBuff private, so registration-time classification reads
// the table directly.
func (d *Dispatcher) resolveBuffForAdd(statusEffectID uint32) *ports.BuffLookup {
	if d.Tables.Buffs == nil {
		return nil
	}
	entry := d.Tables.Buffs.Get(statusEffectID)
	if entry == nil {
		return nil
	}
	return &ports.BuffLookup{
		SourceSkill: entry.SourceSkill,
		Category:    entry.Category,
		Type:        entry.Type,
		SupportBuff: entry.SupportBuff,
		TargetScope: string(entry.TargetScope),
	}
}

func handleStatusEffectRemove(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.StatusEffectRemoveNotifyPayload)
	if !ok {
		payloadErr("StatusEffectRemoveNotify", payload)
	}
	explicit := p.Reason == ports.RemoveReasonExplicit
	d.State.OnStatusEffectRemove(d.State.ScopeFor(p.TargetID), p.TargetID, p.InstanceID, explicit, now)
}

func handleStatusEffectSync(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.StatusEffectSyncDataNotifyPayload)
	if !ok {
		payloadErr("StatusEffectSyncDataNotify", payload)
	}
	effect, oldValue := d.State.OnStatusEffectSync(p.InstanceID, p.TargetID, p.ObjectID, p.RawValue)
	d.State.ApplyShieldDelta(effect, oldValue, now)
}

func handleTroopMemberUpdate(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.TroopMemberUpdateMinNotifyPayload)
	if !ok {
		payloadErr("TroopMemberUpdateMinNotify", payload)
	}
	effect, oldValue := d.State.OnTroopMemberUpdate(p.InstanceID, p.TargetID, 0, p.RawValue)
	d.State.ApplyShieldDelta(effect, oldValue, now)
}

func handleTriggerStart(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.TriggerStartNotifyPayload)
	if !ok {
		payloadErr("TriggerStartNotify", payload)
	}
	action := d.State.OnTriggerStartNotify(engine.TriggerSignal(p.Signal), now, nil)
	d.emitPhase(action)
}

func handleRaidResult(d *Dispatcher, payload any, now time.Time) {
	if _, ok := payload.(ports.RaidResultPayload); !ok {
		payloadErr("RaidResult", payload)
	}
	action := d.State.OnRaidResult(now, nil)
	d.emitPhase(action)
}

func handleTriggerBossBattleStatus(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.TriggerBossBattleStatusPayload)
	if !ok {
		payloadErr("TriggerBossBattleStatus", payload)
	}
	action := d.State.OnTriggerBossBattleStatus(p.BossName, now)
	d.emitPhase(action)
}

func handleRaidBegin(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.RaidBeginPayload)
	if !ok {
		payloadErr("RaidBegin", payload)
	}
	isRaid := d.Tables.Zones != nil && d.Tables.Zones.IsRaid(p.RaidID)
	if d.Rules != nil {
		if override, ok := d.Rules.ZoneIsRaid(p.RaidID); ok {
			isRaid = override
		}
	}
	d.State.OnRaidBegin(p.RaidID, isRaid)
}

func handleRaidBossKill(d *Dispatcher, payload any, now time.Time) {
	action := d.State.OnRaidBossKillNotify(now)
	d.emitPhase(action)
}

func handleZoneMemberLoadStatus(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.ZoneMemberLoadStatusNotifyPayload)
	if !ok {
		payloadErr("ZoneMemberLoadStatusNotify", payload)
	}
	d.State.OnZoneMemberLoadStatus(p.ZoneID, p.ZoneLevel)
}

func handleStaggerUpdate(d *Dispatcher, payload any, now time.Time) {
	p, ok := payload.(ports.StaggerUpdateNotifyPayload)
	if !ok {
		payloadErr("StaggerUpdateNotify", payload)
	}
	d.State.OnStaggerUpdate(p.BossID, p.Current, p.Max, now)
}

func (d *Dispatcher) emitPhase(action engine.PhaseAction) {
	if action.EmitPhase {
		d.Emitter.Emit(ports.EventPhaseTransition{Phase: ports.Phase(action.Phase)})
		d.Log.Debug("phase transition", zap.Uint8("phase", uint8(action.Phase)), zap.Bool("save", action.ShouldSave))
	}
	// A save can also be decided without a UI phase transition; the raid-info
	// post stays bound to real transitions.
	if action.ShouldSave {
		d.Emitter.Emit(ports.EventSaveEncounter{})
		if action.EmitPhase {
			d.sendRaidInfo(action.Phase)
		}
	}
}

// sendRaidInfo posts the closed encounter's outcome to the external stats
// collaborator on its own goroutine: the core never blocks a packet tick on
// an HTTP round trip.
func (d *Dispatcher) sendRaidInfo(phase engine.Phase) {
	if d.Stats == nil {
		return
	}
	bossName := ""
	if boss, ok := d.State.CurrentBoss(); ok {
		bossName = boss.Name
	}
	var players []string
	for _, names := range d.State.PartyCache {
		players = append(players, names...)
	}
	info := ports.RaidInfo{
		RaidName:   bossName,
		Difficulty: d.State.RaidDifficulty,
		Players:    players,
		IsCleared:  phase == engine.PhaseClear,
	}
	go func() {
		if err := d.Stats.SendRaidInfo(context.Background(), info); err != nil {
			d.Log.Warn("send raid info failed", zap.Error(err))
		}
	}()
}
