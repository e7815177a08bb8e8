// pkg/core/race.go
package core

import "time"

// Segment is one constant-speed stretch of a speed profile.
type Segment struct {
	Speed  float64 `json:"speed"`
	Length float64 `json:"length"`
}

// Race is the start of one round.
type Race struct {
	TournamentID string
	Round        int
	StartedAt    time.Time
	LaneCount    int
	Progress     float64
	Entrants     []Entrant
}

// Entrant is a participant's draw for one race.
type Entrant struct {
	ParticipantID string
	Lane          int
	Profile       []Segment
}

// RacerState is a sampled frame of one racer.
type RacerState struct {
	TournamentID  string
	Round         int
	Tick          uint64
	Elapsed       time.Duration
	ParticipantID string
	Lane          int
	Position      float64
	Distance      float64
	Lateral       float64
	Speed         float64
	Visual        string
	Finished      bool
	KnockedOut    bool
}

// Knockout records a racer removed from contention mid-race.
type Knockout struct {
	TournamentID  string
	Round         int
	ParticipantID string
	Lane          int
	Cause         string
	Position      float64
	Lateral       float64
	Elapsed       time.Duration
}

// RaceResult closes a race.
type RaceResult struct {
	TournamentID string
	Round        int
	WinnerID     string
	Distance     float64
	Elapsed      time.Duration
	Resolution   string
	Racers       int
	Knockouts    int
}
