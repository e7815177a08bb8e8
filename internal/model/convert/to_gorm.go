// Package convert maps between core records and GORM models
package convert

import (
	"database/sql"
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/racedraw/racedraw/internal/model"
	"github.com/racedraw/racedraw/pkg/core"
)

// toJSON marshals v for a JSON column, "[]" when there is nothing to store.
func toJSON(v any) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(data)
}

// CoreToTournament converts a core.Tournament to a GORM model.Tournament.
// Participants are converted separately once the row has its ID.
func CoreToTournament(t core.Tournament) model.Tournament {
	m := model.Tournament{
		UUID:      t.ID,
		Mode:      t.Mode,
		StartedAt: t.StartedAt,
		Ranking:   toJSON(t.Ranking),
	}
	if !t.EndedAt.IsZero() {
		m.EndedAt = sql.NullTime{Time: t.EndedAt, Valid: true}
	}
	return m
}

// CoreToParticipants converts the roster of a tournament.
func CoreToParticipants(ps []core.Participant, tournamentID uint) []model.Participant {
	out := make([]model.Participant, 0, len(ps))
	for _, p := range ps {
		out = append(out, model.Participant{
			TournamentID: tournamentID,
			UUID:         p.ID,
			Name:         p.Name,
			Lane:         p.Lane,
		})
	}
	return out
}

// CoreToRace converts a core.Race to a GORM model.Race.
func CoreToRace(r core.Race, tournamentID uint) model.Race {
	return model.Race{
		TournamentID: tournamentID,
		Round:        r.Round,
		StartedAt:    r.StartedAt,
		LaneCount:    r.LaneCount,
		Progress:     r.Progress,
		Entrants:     toJSON(r.Entrants),
	}
}

// CoreToRacerState converts a core.RacerState to a GORM model.RacerState.
func CoreToRacerState(s core.RacerState, tournamentID uint) model.RacerState {
	return model.RacerState{
		TournamentID:    tournamentID,
		Round:           s.Round,
		Tick:            s.Tick,
		ElapsedMs:       s.Elapsed.Milliseconds(),
		ParticipantUUID: s.ParticipantID,
		Lane:            s.Lane,
		Position:        s.Position,
		Distance:        s.Distance,
		Lateral:         s.Lateral,
		Speed:           s.Speed,
		Visual:          s.Visual,
		Finished:        s.Finished,
		KnockedOut:      s.KnockedOut,
	}
}

// CoreToKnockout converts a core.Knockout to a GORM model.Knockout.
func CoreToKnockout(k core.Knockout, tournamentID uint) model.Knockout {
	return model.Knockout{
		TournamentID:    tournamentID,
		Round:           k.Round,
		ParticipantUUID: k.ParticipantID,
		Lane:            k.Lane,
		Cause:           k.Cause,
		Position:        k.Position,
		Lateral:         k.Lateral,
		ElapsedMs:       k.Elapsed.Milliseconds(),
	}
}

// CoreToRaceResult converts a core.RaceResult to a GORM model.RaceResult.
func CoreToRaceResult(r core.RaceResult, tournamentID uint) model.RaceResult {
	return model.RaceResult{
		TournamentID: tournamentID,
		Round:        r.Round,
		WinnerUUID:   r.WinnerID,
		Distance:     r.Distance,
		ElapsedMs:    r.Elapsed.Milliseconds(),
		Resolution:   r.Resolution,
		Racers:       r.Racers,
		Knockouts:    r.Knockouts,
	}
}

// CoreToPlacement converts a core.Placement to a GORM model.Placement.
func CoreToPlacement(p core.Placement, tournamentID uint) model.Placement {
	return model.Placement{
		TournamentID:    tournamentID,
		Time:            p.Time,
		ParticipantUUID: p.ParticipantID,
		Name:            p.Name,
		Rank:            p.Rank,
		Round:           p.Round,
		Resolution:      p.Resolution,
	}
}
