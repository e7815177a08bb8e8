package convert

import (
	"sort"

	"github.com/racedraw/racedraw/internal/model"
	"github.com/racedraw/racedraw/pkg/core"
)

// TournamentToCore converts a stored tournament with its participants and
// placements back to a core.Tournament. The ranking is rebuilt from the
// placement rows, ordered by rank.
func TournamentToCore(t model.Tournament) core.Tournament {
	out := core.Tournament{
		ID:           t.UUID,
		Mode:         t.Mode,
		StartedAt:    t.StartedAt,
		Participants: make([]core.Participant, 0, len(t.Participants)),
		Ranking:      make([]core.Placement, 0, len(t.Placements)),
	}
	if t.EndedAt.Valid {
		out.EndedAt = t.EndedAt.Time
	}

	for _, p := range t.Participants {
		out.Participants = append(out.Participants, core.Participant{ID: p.UUID, Name: p.Name, Lane: p.Lane})
	}
	sort.Slice(out.Participants, func(i, j int) bool {
		return out.Participants[i].Lane < out.Participants[j].Lane
	})

	for _, p := range t.Placements {
		out.Ranking = append(out.Ranking, PlacementToCore(p, t.UUID))
	}
	sort.Slice(out.Ranking, func(i, j int) bool {
		return out.Ranking[i].Rank < out.Ranking[j].Rank
	})
	return out
}

// PlacementToCore converts a GORM model.Placement to a core.Placement.
func PlacementToCore(p model.Placement, tournamentUUID string) core.Placement {
	return core.Placement{
		TournamentID:  tournamentUUID,
		ParticipantID: p.ParticipantUUID,
		Name:          p.Name,
		Rank:          p.Rank,
		Round:         p.Round,
		Resolution:    p.Resolution,
		Time:          p.Time,
	}
}
