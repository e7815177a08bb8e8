package race

import "time"

// EffectKind identifies a transient render effect.
type EffectKind uint8

const (
	EffectAccelerate EffectKind = iota + 1
	EffectDecelerate
	EffectKnockout
	EffectHazardSpawn
)

func (k EffectKind) String() string {
	switch k {
	case EffectAccelerate:
		return "accelerate"
	case EffectDecelerate:
		return "decelerate"
	case EffectKnockout:
		return "knockout"
	case EffectHazardSpawn:
		return "hazard_spawn"
	default:
		return "unknown"
	}
}

// Effect is a side-channel event for the renderer ("emit particles here").
// Effects never feed back into the race.
type Effect struct {
	Kind     EffectKind
	Slot     int // -1 for effects not tied to a racer
	Position float64
	Lateral  float64
	At       time.Duration
}
