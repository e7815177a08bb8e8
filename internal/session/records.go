package session

import (
	"time"

	"github.com/racedraw/racedraw/internal/race"
	"github.com/racedraw/racedraw/internal/tournament"
	"github.com/racedraw/racedraw/pkg/core"
)

func coreTournament(t *tournament.Tournament, endedAt time.Time) core.Tournament {
	out := core.Tournament{
		ID:        t.ID(),
		Mode:      string(t.Mode()),
		StartedAt: t.StartedAt(),
		EndedAt:   endedAt,
	}
	for lane, p := range t.Participants() {
		out.Participants = append(out.Participants, core.Participant{ID: p.ID, Name: p.Name, Lane: lane})
	}
	if !endedAt.IsZero() {
		for _, p := range t.Ranking() {
			out.Ranking = append(out.Ranking, corePlacement(t.ID(), p, endedAt))
		}
	}
	return out
}

func corePlacement(tournamentID string, p tournament.Placement, at time.Time) core.Placement {
	return core.Placement{
		TournamentID:  tournamentID,
		ParticipantID: p.Participant.ID,
		Name:          p.Participant.Name,
		Rank:          p.Rank,
		Round:         p.Round,
		Resolution:    p.Resolution.String(),
		Time:          at,
	}
}

func coreRace(tournamentID string, round int, progress float64, startedAt time.Time, snap race.Snapshot) core.Race {
	out := core.Race{
		TournamentID: tournamentID,
		Round:        round,
		StartedAt:    startedAt,
		LaneCount:    snap.LaneCount,
		Progress:     progress,
		Entrants:     make([]core.Entrant, 0, len(snap.Racers)),
	}
	for _, r := range snap.Racers {
		profile := make([]core.Segment, len(r.Profile))
		for i, seg := range r.Profile {
			profile[i] = core.Segment{Speed: seg.Speed, Length: seg.Length}
		}
		out.Entrants = append(out.Entrants, core.Entrant{ParticipantID: r.Participant.ID, Lane: r.Slot, Profile: profile})
	}
	return out
}

func coreStates(tournamentID string, round int, snap race.Snapshot) []core.RacerState {
	out := make([]core.RacerState, 0, len(snap.Racers))
	for _, r := range snap.Racers {
		out = append(out, core.RacerState{
			TournamentID:  tournamentID,
			Round:         round,
			Tick:          snap.Tick,
			Elapsed:       snap.Elapsed,
			ParticipantID: r.Participant.ID,
			Lane:          r.Slot,
			Position:      r.Position,
			Distance:      r.Distance,
			Lateral:       r.Lateral,
			Speed:         r.Speed,
			Visual:        r.Visual.String(),
			Finished:      r.Finished,
			KnockedOut:    r.KnockedOut,
		})
	}
	return out
}

func coreKnockout(tournamentID string, round int, r race.Racer) core.Knockout {
	return core.Knockout{
		TournamentID:  tournamentID,
		Round:         round,
		ParticipantID: r.Participant.ID,
		Lane:          r.Slot,
		Cause:         r.KnockoutCause.String(),
		Position:      r.Position,
		Lateral:       r.Lateral,
		Elapsed:       r.KnockedOutAt,
	}
}

func coreResult(tournamentID string, round, racers, knockouts int, ev race.WinnerEvent) core.RaceResult {
	return core.RaceResult{
		TournamentID: tournamentID,
		Round:        round,
		WinnerID:     ev.Participant.ID,
		Distance:     ev.Distance,
		Elapsed:      ev.Elapsed,
		Resolution:   ev.Resolution.String(),
		Racers:       racers,
		Knockouts:    knockouts,
	}
}
