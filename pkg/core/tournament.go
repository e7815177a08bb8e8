// pkg/core/tournament.go
package core

import "time"

// Tournament is one elimination draw from first race to final ranking.
type Tournament struct {
	ID           string
	Mode         string
	StartedAt    time.Time
	EndedAt      time.Time
	Participants []Participant
	Ranking      []Placement
}

// Participant is an entrant with its fixed lane.
type Participant struct {
	ID   string
	Name string
	Lane int
}

// Placement is a participant's final rank, decided in Round.
type Placement struct {
	TournamentID  string
	ParticipantID string
	Name          string
	Rank          int
	Round         int
	Resolution    string
	Time          time.Time
}

// UploadMetadata describes an exported tournament file.
type UploadMetadata struct {
	TournamentID string
	Mode         string
	Participants int
	Races        int
	Duration     float64 // seconds from first race to final placement
	Winner       string  // rank 1
}
