package race

import "time"

// VisualState is the render tag of a racer.
type VisualState uint8

const (
	VisualNormal VisualState = iota
	VisualAccelerating
	VisualDecelerating
	VisualKnockedOut
	VisualFinished
)

func (v VisualState) String() string {
	switch v {
	case VisualAccelerating:
		return "accelerating"
	case VisualDecelerating:
		return "decelerating"
	case VisualKnockedOut:
		return "knocked_out"
	case VisualFinished:
		return "finished"
	default:
		return "normal"
	}
}

// KnockoutCause records why a racer stopped.
type KnockoutCause uint8

const (
	CauseNone KnockoutCause = iota
	CauseCollision
	CauseHazard
)

func (c KnockoutCause) String() string {
	switch c {
	case CauseCollision:
		return "collision"
	case CauseHazard:
		return "hazard"
	default:
		return "none"
	}
}

// Racer is the per-race state of one participant. Racers are values inside a
// Snapshot; the simulator copies them into a new snapshot every tick.
type Racer struct {
	Participant *Participant
	Slot        int // lane slot, index in the full roster

	Position float64 // clamped to the finish line
	Distance float64 // pre-clamp distance, used for tie-breaks
	Lateral  float64 // continuous lane coordinate

	Profile   SpeedProfile
	Speed     float64
	PrevSpeed float64

	Finished      bool
	KnockedOut    bool
	KnockoutCause KnockoutCause
	KnockedOutAt  time.Duration

	Visual      VisualState
	visualUntil time.Duration
	drift       drift
}

// Racing reports whether the racer still moves and can still win.
func (r Racer) Racing() bool {
	return !r.Finished && !r.KnockedOut
}

// Drifting reports whether a lateral lane change is in progress.
func (r Racer) Drifting() bool {
	return r.drift.active
}

type drift struct {
	active   bool
	from, to float64
	start    time.Duration
	duration time.Duration
}
