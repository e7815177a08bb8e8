package race

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid race config")

// Config holds the numerical model of a race.
type Config struct {
	TrackLength float64 // distance units from start to finish

	MinSegments int
	MaxSegments int
	MinSpeed    float64 // distance units per second
	MaxSpeed    float64

	// SpeedChangeThreshold is the speed delta that tags a racer as
	// accelerating or decelerating. Cosmetic only.
	SpeedChangeThreshold float64
	EffectHold           time.Duration

	// MaxDuration caps a race that produced no finisher.
	MaxDuration time.Duration

	Drift     DriftConfig
	Collision CollisionConfig
	Hazard    HazardConfig
}

// DriftConfig controls lateral lane changes.
type DriftConfig struct {
	Enabled     bool
	Chance      float64 // per tick, when not already drifting
	MinDuration time.Duration
	MaxDuration time.Duration
}

// CollisionConfig controls racer-on-racer knockouts.
type CollisionConfig struct {
	Enabled          bool
	ForwardThreshold float64 // distance units
	LateralThreshold float64 // lanes
}

// HazardConfig controls obstacles crossing the track.
type HazardConfig struct {
	Enabled bool
	// Activation is the fraction of the full roster that must already be
	// eliminated before hazards spawn.
	Activation   float64
	SpawnChance  float64 // per tick
	MaxActive    int
	MinSpeed     float64 // lanes per second
	MaxSpeed     float64
	MinSize      float64
	MaxSize      float64
	ForwardReach float64 // distance units at size 1
	LateralReach float64 // lanes at size 1
}

// DefaultConfig returns the standard race model.
func DefaultConfig() Config {
	return Config{
		TrackLength:          1000,
		MinSegments:          2,
		MaxSegments:          4,
		MinSpeed:             200,
		MaxSpeed:             400,
		SpeedChangeThreshold: 20,
		EffectHold:           400 * time.Millisecond,
		MaxDuration:          30 * time.Second,
		Drift: DriftConfig{
			Enabled:     true,
			Chance:      0.06,
			MinDuration: 350 * time.Millisecond,
			MaxDuration: 1000 * time.Millisecond,
		},
		Collision: CollisionConfig{
			Enabled:          true,
			ForwardThreshold: 14,
			LateralThreshold: 0.45,
		},
		Hazard: HazardConfig{
			Enabled:      true,
			Activation:   0.5,
			SpawnChance:  0.015,
			MaxActive:    3,
			MinSpeed:     1.5,
			MaxSpeed:     3,
			MinSize:      0.6,
			MaxSize:      1.2,
			ForwardReach: 16,
			LateralReach: 0.4,
		},
	}
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	switch {
	case c.TrackLength <= 0:
		return fmt.Errorf("%w: track length must be positive", ErrInvalidConfig)
	case c.MinSegments < 1 || c.MaxSegments < c.MinSegments:
		return fmt.Errorf("%w: segment range [%d,%d]", ErrInvalidConfig, c.MinSegments, c.MaxSegments)
	case c.MinSpeed <= 0 || c.MaxSpeed < c.MinSpeed:
		return fmt.Errorf("%w: speed range [%g,%g]", ErrInvalidConfig, c.MinSpeed, c.MaxSpeed)
	case c.MaxDuration <= 0:
		return fmt.Errorf("%w: max duration must be positive", ErrInvalidConfig)
	case c.Drift.Enabled && c.Drift.MaxDuration < c.Drift.MinDuration:
		return fmt.Errorf("%w: drift duration range", ErrInvalidConfig)
	case c.Drift.Enabled && c.Drift.MinDuration <= 0:
		return fmt.Errorf("%w: drift duration must be positive", ErrInvalidConfig)
	case c.Hazard.Enabled && (c.Hazard.MaxSpeed < c.Hazard.MinSpeed || c.Hazard.MinSpeed <= 0):
		return fmt.Errorf("%w: hazard speed range", ErrInvalidConfig)
	case c.Hazard.Enabled && c.Hazard.MaxSize < c.Hazard.MinSize:
		return fmt.Errorf("%w: hazard size range", ErrInvalidConfig)
	}
	return nil
}
