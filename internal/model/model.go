package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Tournament{},
	&Participant{},
	&Race{},
	&RacerState{},
	&Knockout{},
	&RaceResult{},
	&Placement{},
}

// Tournament is one elimination draw
type Tournament struct {
	ID        uint         `json:"id" gorm:"primarykey;autoIncrement;"`
	UUID      string       `json:"uuid" gorm:"size:36;uniqueIndex:idx_tournament_uuid"`
	Mode      string       `json:"mode" gorm:"size:16"`
	StartedAt time.Time    `json:"startedAt" gorm:"index:idx_tournament_start"`
	EndedAt   sql.NullTime `json:"endedAt" gorm:"default:NULL"`
	// Ranking is the final order, filled when the tournament ends
	Ranking datatypes.JSON `json:"ranking"`

	Participants []Participant
	Races        []Race
	Placements   []Placement
}

func (*Tournament) TableName() string {
	return "tournaments"
}

// Participant is an entrant with its fixed lane
type Participant struct {
	ID           uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	TournamentID uint       `json:"tournamentId" gorm:"index:idx_participant_tournament_id"`
	Tournament   Tournament `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:TournamentID;"`
	UUID         string     `json:"uuid" gorm:"size:36;index:idx_participant_uuid"`
	Name         string     `json:"name" gorm:"size:127"`
	Lane         int        `json:"lane"`
}

func (*Participant) TableName() string {
	return "participants"
}

// Race is one round of a tournament
type Race struct {
	ID           uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	TournamentID uint       `json:"tournamentId" gorm:"uniqueIndex:idx_race_tournament_round"`
	Tournament   Tournament `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:TournamentID;"`
	Round        int        `json:"round" gorm:"uniqueIndex:idx_race_tournament_round"`
	StartedAt    time.Time  `json:"startedAt"`
	LaneCount    int        `json:"laneCount"`
	Progress     float64    `json:"progress"`
	// Entrants holds [{participantId, lane, profile: [{speed, length}]}]
	Entrants datatypes.JSON `json:"entrants"`
}

func (*Race) TableName() string {
	return "races"
}

// RacerState is a sampled frame of one racer
type RacerState struct {
	ID              uint    `json:"id" gorm:"primarykey;autoIncrement;"`
	TournamentID    uint    `json:"tournamentId" gorm:"index:idx_racerstate_tournament_round"`
	Round           int     `json:"round" gorm:"index:idx_racerstate_tournament_round"`
	Tick            uint64  `json:"tick"`
	ElapsedMs       int64   `json:"elapsedMs"`
	ParticipantUUID string  `json:"participantUuid" gorm:"size:36"`
	Lane            int     `json:"lane"`
	Position        float64 `json:"position"`
	Distance        float64 `json:"distance"` // pre-clamp, may exceed the track
	Lateral         float64 `json:"lateral"`
	Speed           float64 `json:"speed"`
	Visual          string  `json:"visual" gorm:"size:16"`
	Finished        bool    `json:"finished" gorm:"default:false"`
	KnockedOut      bool    `json:"knockedOut" gorm:"default:false"`
}

func (*RacerState) TableName() string {
	return "racer_states"
}

// Knockout records a racer removed mid-race
type Knockout struct {
	ID              uint    `json:"id" gorm:"primarykey;autoIncrement;"`
	TournamentID    uint    `json:"tournamentId" gorm:"index:idx_knockout_tournament_round"`
	Round           int     `json:"round" gorm:"index:idx_knockout_tournament_round"`
	ParticipantUUID string  `json:"participantUuid" gorm:"size:36"`
	Lane            int     `json:"lane"`
	Cause           string  `json:"cause" gorm:"size:16"` // collision, hazard
	Position        float64 `json:"position"`
	Lateral         float64 `json:"lateral"`
	ElapsedMs       int64   `json:"elapsedMs"`
}

func (*Knockout) TableName() string {
	return "knockouts"
}

// RaceResult closes a race
type RaceResult struct {
	ID           uint    `json:"id" gorm:"primarykey;autoIncrement;"`
	TournamentID uint    `json:"tournamentId" gorm:"uniqueIndex:idx_result_tournament_round"`
	Round        int     `json:"round" gorm:"uniqueIndex:idx_result_tournament_round"`
	WinnerUUID   string  `json:"winnerUuid" gorm:"size:36"`
	Distance     float64 `json:"distance"`
	ElapsedMs    int64   `json:"elapsedMs"`
	Resolution   string  `json:"resolution" gorm:"size:32"`
	Racers       int     `json:"racers"`
	Knockouts    int     `json:"knockouts"`
}

func (*RaceResult) TableName() string {
	return "race_results"
}

// Placement is a final rank
type Placement struct {
	ID              uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	TournamentID    uint      `json:"tournamentId" gorm:"index:idx_placement_tournament_id"`
	Time            time.Time `json:"time"`
	ParticipantUUID string    `json:"participantUuid" gorm:"size:36"`
	Name            string    `json:"name" gorm:"size:127"`
	Rank            int       `json:"rank"`
	Round           int       `json:"round"`
	Resolution      string    `json:"resolution" gorm:"size:32"`
}

func (*Placement) TableName() string {
	return "placements"
}
