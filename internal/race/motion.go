package race

import (
	"math"
	"time"
)

// integrate moves a racer to where its profile puts it at elapsed.
func (s *Simulator) integrate(r *Racer, elapsed time.Duration, effects *[]Effect) {
	r.Distance = r.Profile.DistanceAt(elapsed.Seconds())
	r.Position = math.Min(r.Distance, s.cfg.TrackLength)
	r.PrevSpeed = r.Speed
	r.Speed = r.Profile.SpeedAt(r.Position)
	r.Finished = r.Position >= s.cfg.TrackLength

	delta := r.Speed - r.PrevSpeed
	switch {
	case delta <= -s.cfg.SpeedChangeThreshold:
		r.Visual = VisualDecelerating
		r.visualUntil = elapsed + s.cfg.EffectHold
		*effects = append(*effects, Effect{Kind: EffectDecelerate, Slot: r.Slot, Position: r.Position, Lateral: r.Lateral, At: elapsed})
	case delta >= s.cfg.SpeedChangeThreshold:
		r.Visual = VisualAccelerating
		r.visualUntil = elapsed + s.cfg.EffectHold
		*effects = append(*effects, Effect{Kind: EffectAccelerate, Slot: r.Slot, Position: r.Position, Lateral: r.Lateral, At: elapsed})
	case elapsed >= r.visualUntil:
		r.Visual = VisualNormal
	}
}

// steer advances or starts a lateral drift. The lane the racer occupies feeds
// collision detection, so drift is spatially meaningful.
func (s *Simulator) steer(r *Racer, elapsed time.Duration, lanes int) {
	if r.drift.active {
		p := float64(elapsed-r.drift.start) / float64(r.drift.duration)
		if p >= 1 {
			r.Lateral = r.drift.to
			r.drift = drift{}
			return
		}
		r.Lateral = r.drift.from + (r.drift.to-r.drift.from)*smoothstep(p)
		return
	}

	cfg := s.cfg.Drift
	if s.src.Float64() >= cfg.Chance {
		return
	}

	current := int(math.Round(r.Lateral))
	target := clampInt(current+s.src.IntN(3)-1, 0, lanes-1)
	span := float64(cfg.MaxDuration - cfg.MinDuration)
	duration := cfg.MinDuration + time.Duration(s.src.Float64()*span)

	r.drift = drift{
		active:   true,
		from:     r.Lateral,
		to:       float64(target),
		start:    elapsed,
		duration: duration,
	}
}

// smoothstep eases 0..1 slow-fast-slow.
func smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
