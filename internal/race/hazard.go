package race

import "time"

// Hazard is an obstacle crossing the track laterally at a fixed forward
// position.
type Hazard struct {
	ID        int
	Position  float64 // forward, distance units
	Lateral   float64 // lanes
	Velocity  float64 // lanes per second, signed
	Size      float64
	SpawnedAt time.Duration
	origin    float64
}

// armed reports whether hazards may spawn in this race.
func (s *Simulator) armed() bool {
	return s.cfg.Hazard.Enabled && s.progress >= s.cfg.Hazard.Activation
}

// moveHazards advances live hazards, drops the ones that left the track and
// possibly spawns a new one.
func (s *Simulator) moveHazards(prev []Hazard, elapsed time.Duration, lanes int, effects *[]Effect) []Hazard {
	if !s.armed() {
		return nil
	}

	cfg := s.cfg.Hazard
	edge := float64(lanes)
	out := make([]Hazard, 0, len(prev)+1)
	for _, h := range prev {
		h.Lateral = h.origin + h.Velocity*(elapsed-h.SpawnedAt).Seconds()
		if (h.Velocity > 0 && h.Lateral > edge) || (h.Velocity < 0 && h.Lateral < -1) {
			continue
		}
		out = append(out, h)
	}

	if len(out) >= cfg.MaxActive || s.src.Float64() >= cfg.SpawnChance {
		return out
	}

	s.hazardSeq++
	h := Hazard{
		ID:        s.hazardSeq,
		Position:  s.cfg.TrackLength * (0.2 + 0.7*s.src.Float64()),
		Velocity:  cfg.MinSpeed + s.src.Float64()*(cfg.MaxSpeed-cfg.MinSpeed),
		Size:      cfg.MinSize + s.src.Float64()*(cfg.MaxSize-cfg.MinSize),
		SpawnedAt: elapsed,
		origin:    -1,
	}
	if s.src.IntN(2) == 1 {
		h.origin = edge
		h.Velocity = -h.Velocity
	}
	h.Lateral = h.origin

	*effects = append(*effects, Effect{Kind: EffectHazardSpawn, Slot: -1, Position: h.Position, Lateral: h.Lateral, At: elapsed})
	return append(out, h)
}

// hits reports whether the hazard overlaps the racer's (position, lane) window.
func (h Hazard) hits(r Racer, cfg HazardConfig) bool {
	return abs(r.Position-h.Position) < h.Size*cfg.ForwardReach &&
		abs(r.Lateral-h.Lateral) < h.Size*cfg.LateralReach
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
