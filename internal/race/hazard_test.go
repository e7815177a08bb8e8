package race

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hazardConfig() Config {
	cfg := singleSegment(calmConfig())
	cfg.Hazard = DefaultConfig().Hazard
	cfg.Hazard.SpawnChance = 1
	cfg.Hazard.MaxActive = 1
	return cfg
}

func TestHazard_GatedOnProgress(t *testing.T) {
	for _, progress := range []float64{0, 0.25, 0.49} {
		s, err := New(hazardConfig(), NewSource(1), Roster{Active: participants(4)}, progress)
		require.NoError(t, err)

		snaps, _ := runToEnd(s, time.Minute)
		for _, snap := range snaps {
			assert.Empty(t, snap.Hazards, "progress %v", progress)
		}
	}
}

func TestHazard_SpawnsOnceArmed(t *testing.T) {
	s, err := New(hazardConfig(), NewSource(1), Roster{Active: participants(4)}, 0.5)
	require.NoError(t, err)

	snap, _ := s.Advance(frame)
	require.Len(t, snap.Hazards, 1)
	h := snap.Hazards[0]
	assert.GreaterOrEqual(t, h.Position, 200.0)
	assert.LessOrEqual(t, h.Position, 900.0)
	assert.Contains(t, []float64{-1, 4}, h.Lateral)

	var spawned bool
	for _, e := range snap.Effects {
		spawned = spawned || e.Kind == EffectHazardSpawn
	}
	assert.True(t, spawned)
}

func TestHazard_CrossesAndLeaves(t *testing.T) {
	// two speeds, then spawn roll, position, velocity, size; the side draw
	// falls back to zero, so the hazard enters from the low edge
	src := &scriptedSource{floats: []float64{0.5, 0.5, 0, 0.5, 0, 0}}
	s, err := New(hazardConfig(), src, Roster{Active: participants(2)}, 1)
	require.NoError(t, err)

	snap, _ := s.Advance(frame)
	require.Len(t, snap.Hazards, 1)
	h := snap.Hazards[0]
	assert.Equal(t, 1.5, h.Velocity)
	assert.Equal(t, -1.0, h.Lateral)
	assert.InDelta(t, 550, h.Position, 1e-9)

	snap, _ = s.Advance(frame + time.Second)
	require.Len(t, snap.Hazards, 1)
	assert.InDelta(t, 0.5, snap.Hazards[0].Lateral, 1e-9)

	// two lanes, far edge at 2
	s.cfg.Hazard.SpawnChance = 0
	snap, _ = s.Advance(frame + 3*time.Second)
	assert.Empty(t, snap.Hazards)
}

func TestHazard_KnocksOutOverlappingRacer(t *testing.T) {
	s := &Simulator{cfg: hazardConfig()}

	racers := []Racer{
		{Slot: 0, Position: 500, Lateral: 0},
		{Slot: 1, Position: 500, Lateral: 1},
		{Slot: 2, Position: 300, Lateral: 0},
	}
	hazards := []Hazard{{Position: 505, Lateral: 0.1, Size: 1}}

	causes := s.knockouts(racers, hazards)
	assert.Equal(t, []KnockoutCause{CauseHazard, CauseNone, CauseNone}, causes)
}

func TestHazard_ReachScalesWithSize(t *testing.T) {
	cfg := DefaultConfig().Hazard
	r := Racer{Position: 510, Lateral: 0}

	assert.False(t, Hazard{Position: 500, Lateral: 0, Size: 0.6}.hits(r, cfg))
	assert.True(t, Hazard{Position: 500, Lateral: 0, Size: 1.2}.hits(r, cfg))
}
