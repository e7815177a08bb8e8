package race

import "time"

// knockouts finds every racer that is knocked out this tick. All positions
// are read before any flag is written, so the outcome does not depend on
// iteration order.
func (s *Simulator) knockouts(racers []Racer, hazards []Hazard) []KnockoutCause {
	causes := make([]KnockoutCause, len(racers))

	if s.cfg.Collision.Enabled {
		fwd := s.cfg.Collision.ForwardThreshold
		lat := s.cfg.Collision.LateralThreshold
		for i := range racers {
			a := racers[i]
			if !a.Racing() {
				continue
			}
			for j := i + 1; j < len(racers); j++ {
				b := racers[j]
				if !b.Racing() {
					continue
				}
				if abs(a.Position-b.Position) >= fwd || abs(a.Lateral-b.Lateral) >= lat {
					continue
				}
				// the trailing racer goes down; dead level knocks out nobody
				switch {
				case a.Position < b.Position:
					causes[i] = CauseCollision
				case b.Position < a.Position:
					causes[j] = CauseCollision
				}
			}
		}
	}

	for i, r := range racers {
		if !r.Racing() || causes[i] != CauseNone {
			continue
		}
		for _, h := range hazards {
			if h.hits(r, s.cfg.Hazard) {
				causes[i] = CauseHazard
				break
			}
		}
	}

	return causes
}

// knockOut freezes a racer for the rest of the race.
func knockOut(r *Racer, cause KnockoutCause, elapsed time.Duration) {
	r.KnockedOut = true
	r.KnockoutCause = cause
	r.KnockedOutAt = elapsed
	r.Visual = VisualKnockedOut
	r.PrevSpeed = r.Speed
	r.Speed = 0
	r.drift = drift{}
}
