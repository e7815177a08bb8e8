// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/racedraw/racedraw/pkg/core"
)

// TournamentExport is the root JSON structure
type TournamentExport struct {
	ID           string            `json:"id"`
	Mode         string            `json:"mode"`
	StartedAt    time.Time         `json:"startedAt"`
	EndedAt      time.Time         `json:"endedAt"`
	Participants []ParticipantJSON `json:"participants"`
	Races        []RaceJSON        `json:"races"`
	Ranking      []PlacementJSON   `json:"ranking"`
}

type ParticipantJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Lane int    `json:"lane"`
}

// RaceJSON is one round. Frames are compact rows:
// [tick, elapsedMs, lane, position, lateral, speed, visual]
type RaceJSON struct {
	Round     int             `json:"round"`
	LaneCount int             `json:"laneCount"`
	Progress  float64         `json:"progress"`
	Entrants  []EntrantJSON   `json:"entrants"`
	Frames    [][]any         `json:"frames"`
	Knockouts [][]any         `json:"knockouts"` // [elapsedMs, lane, cause, position]
	Result    *RaceResultJSON `json:"result,omitempty"`
}

type EntrantJSON struct {
	ParticipantID string         `json:"participantId"`
	Lane          int            `json:"lane"`
	Profile       []core.Segment `json:"profile"`
}

type RaceResultJSON struct {
	WinnerID   string  `json:"winnerId"`
	Distance   float64 `json:"distance"`
	ElapsedMs  int64   `json:"elapsedMs"`
	Resolution string  `json:"resolution"`
	Knockouts  int     `json:"knockouts"`
}

type PlacementJSON struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	Round         int    `json:"round"`
	Resolution    string `json:"resolution"`
}

// exportJSON writes the tournament data to a (gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	short := b.tournament.ID
	if len(short) > 8 {
		short = short[:8]
	}
	timestamp := b.tournament.StartedAt.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("tournament_%s_%s.json.gz", timestamp, short)
	} else {
		filename = fmt.Sprintf("tournament_%s_%s.json", timestamp, short)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() TournamentExport {
	export := TournamentExport{
		ID:           b.tournament.ID,
		Mode:         b.tournament.Mode,
		StartedAt:    b.tournament.StartedAt,
		EndedAt:      b.tournament.EndedAt,
		Participants: make([]ParticipantJSON, 0, len(b.tournament.Participants)),
		Races:        make([]RaceJSON, 0, len(b.races)),
		Ranking:      make([]PlacementJSON, 0),
	}

	for _, p := range b.tournament.Participants {
		export.Participants = append(export.Participants, ParticipantJSON{ID: p.ID, Name: p.Name, Lane: p.Lane})
	}

	rounds := make([]int, 0, len(b.races))
	for round := range b.races {
		rounds = append(rounds, round)
	}
	sort.Ints(rounds)

	for _, round := range rounds {
		rec := b.races[round]
		rj := RaceJSON{
			Round:     round,
			LaneCount: rec.Race.LaneCount,
			Progress:  rec.Race.Progress,
			Entrants:  make([]EntrantJSON, 0, len(rec.Race.Entrants)),
			Frames:    make([][]any, 0, len(rec.States)),
			Knockouts: make([][]any, 0, len(rec.Knockouts)),
		}
		for _, e := range rec.Race.Entrants {
			rj.Entrants = append(rj.Entrants, EntrantJSON{ParticipantID: e.ParticipantID, Lane: e.Lane, Profile: e.Profile})
		}
		for _, s := range rec.States {
			rj.Frames = append(rj.Frames, []any{
				s.Tick,
				s.Elapsed.Milliseconds(),
				s.Lane,
				s.Position,
				s.Lateral,
				s.Speed,
				s.Visual,
			})
		}
		for _, k := range rec.Knockouts {
			rj.Knockouts = append(rj.Knockouts, []any{
				k.Elapsed.Milliseconds(),
				k.Lane,
				k.Cause,
				k.Position,
			})
		}
		if rec.Result != nil {
			rj.Result = &RaceResultJSON{
				WinnerID:   rec.Result.WinnerID,
				Distance:   rec.Result.Distance,
				ElapsedMs:  rec.Result.Elapsed.Milliseconds(),
				Resolution: rec.Result.Resolution,
				Knockouts:  rec.Result.Knockouts,
			}
		}
		export.Races = append(export.Races, rj)
	}

	for _, p := range b.ranking() {
		export.Ranking = append(export.Ranking, PlacementJSON{
			Rank:          p.Rank,
			ParticipantID: p.ParticipantID,
			Name:          p.Name,
			Round:         p.Round,
			Resolution:    p.Resolution,
		})
	}

	return export
}

func writeJSON(path string, data TournamentExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data TournamentExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}
