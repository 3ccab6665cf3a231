package engine

import "time"

// IncapacitationType distinguishes a crowd-control status effect from a
// movement-derived knockdown/stagger animation.
type IncapacitationType int

const (
	IncapCrowdControl IncapacitationType = iota
	IncapFallDown
)

// IncapacitatedEvent is one span of time during which an entity could not
// act.
type IncapacitatedEvent struct {
	Timestamp time.Time
	Duration  time.Duration
	Type      IncapacitationType
}

// End returns the wall-clock time the span ends.
func (e IncapacitatedEvent) End() time.Time { return e.Timestamp.Add(e.Duration) }

// onCCApplied handles a new hard-CC effect: infinite effects are
// deferred (nothing pushed until they're removed); finite effects push
// immediately with their declared expiration as duration.
func onCCApplied(list []IncapacitatedEvent, effect *StatusEffectDetails) []IncapacitatedEvent {
	if effect.IsInfinite() {
		return list
	}
	return append(list, IncapacitatedEvent{
		Timestamp: effect.Timestamp,
		Duration:  time.Duration(effect.ExpirationDelay * float64(time.Second)),
		Type:      IncapCrowdControl,
	})
}

// onCCRemoved handles an explicit CC removal at time at.
func onCCRemoved(list []IncapacitatedEvent, effect *StatusEffectDetails, at time.Time) []IncapacitatedEvent {
	if effect.IsInfinite() {
		list = append(list, IncapacitatedEvent{
			Timestamp: effect.Timestamp,
			Duration:  at.Sub(effect.Timestamp),
			Type:      IncapCrowdControl,
		})
		sortIncapacitations(list)
		return list
	}
	for i := range list {
		ev := &list[i]
		if ev.Type == IncapCrowdControl && ev.Timestamp.Equal(effect.Timestamp) && ev.End().After(at) {
			ev.Duration = at.Sub(ev.Timestamp)
		}
	}
	return list
}

// onFallDown handles a new knockdown: clip the newest
// still-unexpired FallDown event to end at T, then push the new one.
func onFallDown(list []IncapacitatedEvent, at time.Time, duration time.Duration) []IncapacitatedEvent {
	for i := len(list) - 1; i >= 0; i-- {
		ev := &list[i]
		if ev.Type != IncapFallDown || !ev.End().After(at) {
			continue
		}
		ev.Duration = at.Sub(ev.Timestamp)
		break
	}
	return append(list, IncapacitatedEvent{Timestamp: at, Duration: duration, Type: IncapFallDown})
}

// onGetUp handles a get-up skill cast: clip every
// FallDown event still in progress at cast time.
func onGetUp(list []IncapacitatedEvent, at time.Time) []IncapacitatedEvent {
	for i := range list {
		ev := &list[i]
		if ev.Type == IncapFallDown && ev.End().After(at) {
			ev.Duration = at.Sub(ev.Timestamp)
		}
	}
	return list
}

// onDeath caps every in-progress
// incapacitation's duration to end at the death time.
func onDeath(list []IncapacitatedEvent, deathTime time.Time) []IncapacitatedEvent {
	for i := range list {
		ev := &list[i]
		if ev.End().After(deathTime) {
			ev.Duration = deathTime.Sub(ev.Timestamp)
		}
	}
	return list
}

func sortIncapacitations(list []IncapacitatedEvent) {
	// insertion sort: lists are short (a handful of CC spans per fight)
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && list[j].Timestamp.Before(list[j-1].Timestamp); j-- {
			list[j], list[j-1] = list[j-1], list[j]
		}
	}
}
