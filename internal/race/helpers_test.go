package race

import (
	"fmt"
	"time"
)

const frame = time.Second / 60

// scriptedSource replays fixed draws; exhausted queues yield zero.
type scriptedSource struct {
	floats []float64
	ints   []int
}

func (s *scriptedSource) Float64() float64 {
	if len(s.floats) == 0 {
		return 0
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scriptedSource) IntN(n int) int {
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	return v % n
}

func participants(n int) []*Participant {
	ps := make([]*Participant, n)
	for i := range ps {
		ps[i] = &Participant{ID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("Racer %d", i)}
	}
	return ps
}

// calmConfig is a race with every random side system switched off.
func calmConfig() Config {
	cfg := DefaultConfig()
	cfg.Drift.Enabled = false
	cfg.Collision.Enabled = false
	cfg.Hazard.Enabled = false
	return cfg
}

// singleSegment makes every profile one segment with speed
// MinSpeed + draw*(MaxSpeed-MinSpeed).
func singleSegment(cfg Config) Config {
	cfg.MinSegments = 1
	cfg.MaxSegments = 1
	cfg.MinSpeed = 100
	cfg.MaxSpeed = 200
	return cfg
}

// runToEnd advances at frame rate until a winner is emitted and returns every
// snapshot and winner event seen.
func runToEnd(s *Simulator, limit time.Duration) ([]Snapshot, []WinnerEvent) {
	var snaps []Snapshot
	var winners []WinnerEvent
	for elapsed := frame; elapsed <= limit; elapsed += frame {
		snap, w := s.Advance(elapsed)
		snaps = append(snaps, snap)
		if w != nil {
			winners = append(winners, *w)
			break
		}
	}
	return snaps, winners
}
