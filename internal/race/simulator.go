package race

import (
	"fmt"
	"time"
)

// Phase is the simulation state.
type Phase uint8

const (
	PhaseRunning Phase = iota
	PhaseFinished
)

func (p Phase) String() string {
	if p == PhaseFinished {
		return "finished"
	}
	return "running"
}

// Resolution explains how a winner was chosen.
type Resolution uint8

const (
	// ResolutionFinish is a regular win: first across the line.
	ResolutionFinish Resolution = iota
	// ResolutionAllKnockedOut is the fallback when no racer can move anymore.
	ResolutionAllKnockedOut
	// ResolutionTimeout is the fallback when the duration cap is reached.
	ResolutionTimeout
	// ResolutionWalkover is a race that never ran: a single remaining participant.
	ResolutionWalkover
)

func (r Resolution) String() string {
	switch r {
	case ResolutionAllKnockedOut:
		return "all_knocked_out"
	case ResolutionTimeout:
		return "timeout"
	case ResolutionWalkover:
		return "walkover"
	default:
		return "finish"
	}
}

// Snapshot is the complete race state after one tick. A snapshot is never
// modified once returned; each tick produces a new one.
type Snapshot struct {
	Tick      uint64
	Elapsed   time.Duration
	LaneCount int
	Phase     Phase
	Racers    []Racer // in active roster order
	Hazards   []Hazard
	Effects   []Effect // emitted during this tick only
}

// Racer returns the racer in the given lane slot.
func (s Snapshot) Racer(slot int) (Racer, bool) {
	for _, r := range s.Racers {
		if r.Slot == slot {
			return r, true
		}
	}
	return Racer{}, false
}

// WinnerEvent is emitted exactly once per race.
type WinnerEvent struct {
	Participant *Participant
	Slot        int
	Distance    float64
	Elapsed     time.Duration
	Resolution  Resolution
}

// Simulator advances one race. It is a pure state machine driven by the
// elapsed time it is given; it is not safe for concurrent use.
type Simulator struct {
	cfg      Config
	src      Source
	progress float64

	snap      Snapshot
	winner    *WinnerEvent
	hazardSeq int
}

// New initializes a race for the roster. progress is the fraction of the full
// roster already eliminated and gates hazards.
func New(cfg Config, src Source, roster Roster, progress float64) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slots, err := roster.slots()
	if err != nil {
		return nil, fmt.Errorf("initializing race: %w", err)
	}

	s := &Simulator{
		cfg:      cfg,
		src:      src,
		progress: progress,
	}

	racers := make([]Racer, len(roster.Active))
	for i, p := range roster.Active {
		profile := GenerateProfile(cfg, src)
		racers[i] = Racer{
			Participant: p,
			Slot:        slots[i],
			Lateral:     float64(slots[i]),
			Profile:     profile,
			Speed:       profile[0].Speed,
			PrevSpeed:   profile[0].Speed,
		}
	}

	s.snap = Snapshot{
		LaneCount: roster.LaneCount(),
		Phase:     PhaseRunning,
		Racers:    racers,
	}
	return s, nil
}

// Config returns the model the race runs with.
func (s *Simulator) Config() Config {
	return s.cfg
}

// Snapshot returns the latest state.
func (s *Simulator) Snapshot() Snapshot {
	return s.snap
}

// Done reports whether a winner has been emitted.
func (s *Simulator) Done() bool {
	return s.winner != nil
}

// Winner returns the emitted winner, if any.
func (s *Simulator) Winner() (WinnerEvent, bool) {
	if s.winner == nil {
		return WinnerEvent{}, false
	}
	return *s.winner, true
}

// Advance moves the race to elapsed (time since race start). The returned
// WinnerEvent is non-nil on exactly one call per race; after that the
// simulator no longer changes. An elapsed value earlier than the previous one
// is treated as the previous one.
func (s *Simulator) Advance(elapsed time.Duration) (Snapshot, *WinnerEvent) {
	if s.winner != nil {
		return s.snap, nil
	}
	prev := s.snap
	if elapsed < prev.Elapsed {
		elapsed = prev.Elapsed
	}

	next := Snapshot{
		Tick:      prev.Tick + 1,
		Elapsed:   elapsed,
		LaneCount: prev.LaneCount,
		Phase:     PhaseRunning,
		Racers:    make([]Racer, len(prev.Racers)),
	}
	copy(next.Racers, prev.Racers)

	for i := range next.Racers {
		r := &next.Racers[i]
		if r.KnockedOut {
			continue
		}
		s.integrate(r, elapsed, &next.Effects)
		if s.cfg.Drift.Enabled && !r.Finished {
			s.steer(r, elapsed, next.LaneCount)
		}
	}

	next.Hazards = s.moveHazards(prev.Hazards, elapsed, next.LaneCount, &next.Effects)

	causes := s.knockouts(next.Racers, next.Hazards)
	for i, cause := range causes {
		if cause == CauseNone {
			continue
		}
		r := &next.Racers[i]
		knockOut(r, cause, elapsed)
		next.Effects = append(next.Effects, Effect{Kind: EffectKnockout, Slot: r.Slot, Position: r.Position, Lateral: r.Lateral, At: elapsed})
	}

	if w := s.resolve(&next); w != nil {
		s.winner = w
		next.Phase = PhaseFinished
	}

	s.snap = next
	return next, s.winner
}

// resolve picks the winner of this tick, if there is one. Racers that crossed
// in the same tick but lost the tie-break are not marked finished.
func (s *Simulator) resolve(next *Snapshot) *WinnerEvent {
	racers := next.Racers

	best := -1
	for i, r := range racers {
		if !r.Finished || r.KnockedOut {
			continue
		}
		if best < 0 || ahead(r, racers[best], r.Distance, racers[best].Distance) {
			best = i
		}
	}
	if best >= 0 {
		for i := range racers {
			if i != best && racers[i].Finished {
				racers[i].Finished = false
				racers[i].Visual = VisualNormal
			}
		}
		racers[best].Visual = VisualFinished
		return s.event(racers[best], next.Elapsed, ResolutionFinish)
	}

	standing := 0
	for _, r := range racers {
		if !r.KnockedOut {
			standing++
		}
	}
	switch {
	case standing == 0:
		return s.event(racers[furthest(racers, false)], next.Elapsed, ResolutionAllKnockedOut)
	case next.Elapsed >= s.cfg.MaxDuration:
		return s.event(racers[furthest(racers, true)], next.Elapsed, ResolutionTimeout)
	}
	return nil
}

func (s *Simulator) event(r Racer, elapsed time.Duration, res Resolution) *WinnerEvent {
	return &WinnerEvent{
		Participant: r.Participant,
		Slot:        r.Slot,
		Distance:    r.Distance,
		Elapsed:     elapsed,
		Resolution:  res,
	}
}

// furthest returns the index of the most progressed racer, optionally
// skipping knocked out racers.
func furthest(racers []Racer, standingOnly bool) int {
	best := -1
	for i, r := range racers {
		if standingOnly && r.KnockedOut {
			continue
		}
		if best < 0 || ahead(r, racers[best], r.Position, racers[best].Position) {
			best = i
		}
	}
	return best
}

// ahead orders by the given measure, lower lane slot first on exact ties.
func ahead(a, b Racer, av, bv float64) bool {
	if av != bv {
		return av > bv
	}
	return a.Slot < b.Slot
}
