// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/racedraw/racedraw/internal/config"
	"github.com/racedraw/racedraw/pkg/core"
)

var ErrNoTournament = errors.New("no tournament started")

// RaceRecord groups a race with all its time-series data
type RaceRecord struct {
	Race      core.Race
	States    []core.RacerState
	Knockouts []core.Knockout
	Result    *core.RaceResult
}

// Backend stores tournament data in memory and exports to JSON
type Backend struct {
	cfg        config.MemoryConfig
	tournament *core.Tournament

	races      map[int]*RaceRecord // keyed by round
	placements []core.Placement

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:   cfg,
		races: make(map[int]*RaceRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartTournament begins recording a new tournament
func (b *Backend) StartTournament(t *core.Tournament) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := *t
	b.tournament = &cp
	b.races = make(map[int]*RaceRecord)
	b.placements = nil
	b.lastExportPath = ""
	return nil
}

// EndTournament finalizes and exports the tournament data
func (b *Backend) EndTournament(t *core.Tournament) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tournament == nil {
		return ErrNoTournament
	}
	b.tournament.EndedAt = t.EndedAt
	b.tournament.Ranking = t.Ranking
	return b.exportJSON()
}

// StartRace opens the record for a round
func (b *Backend) StartRace(r *core.Race) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tournament == nil {
		return ErrNoTournament
	}
	b.races[r.Round] = &RaceRecord{Race: *r}
	return nil
}

func (b *Backend) race(round int) (*RaceRecord, error) {
	rec, ok := b.races[round]
	if !ok {
		return nil, fmt.Errorf("race %d not started", round)
	}
	return rec, nil
}

// RecordRacerState records a sampled racer frame
func (b *Backend) RecordRacerState(s *core.RacerState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.race(s.Round)
	if err != nil {
		return err
	}
	rec.States = append(rec.States, *s)
	return nil
}

// RecordKnockout records a knockout
func (b *Backend) RecordKnockout(k *core.Knockout) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.race(k.Round)
	if err != nil {
		return err
	}
	rec.Knockouts = append(rec.Knockouts, *k)
	return nil
}

// RecordRaceResult closes a race
func (b *Backend) RecordRaceResult(r *core.RaceResult) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.race(r.Round)
	if err != nil {
		return err
	}
	cp := *r
	rec.Result = &cp
	return nil
}

// RecordPlacement records a final rank
func (b *Backend) RecordPlacement(p *core.Placement) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tournament == nil {
		return ErrNoTournament
	}
	b.placements = append(b.placements, *p)
	return nil
}

// Race returns a copy of the recorded race for a round.
func (b *Backend) Race(round int) (RaceRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.races[round]
	if !ok {
		return RaceRecord{}, false
	}
	return *rec, true
}

// Placements returns the recorded placements in the order they came in.
func (b *Backend) Placements() []core.Placement {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.Placement(nil), b.placements...)
}

// GetExportedFilePath returns the path of the last export
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the current tournament for upload
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.tournament == nil {
		return core.UploadMetadata{}
	}

	meta := core.UploadMetadata{
		TournamentID: b.tournament.ID,
		Mode:         b.tournament.Mode,
		Participants: len(b.tournament.Participants),
		Races:        len(b.races),
	}
	if !b.tournament.EndedAt.IsZero() {
		meta.Duration = b.tournament.EndedAt.Sub(b.tournament.StartedAt).Seconds()
	}
	for _, p := range b.ranking() {
		if p.Rank == 1 {
			meta.Winner = p.Name
		}
	}
	return meta
}

// ranking prefers the ranking handed over at the end and falls back to the
// placements recorded so far.
func (b *Backend) ranking() []core.Placement {
	src := b.tournament.Ranking
	if len(src) == 0 {
		src = b.placements
	}
	ranking := append([]core.Placement(nil), src...)
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Rank < ranking[j].Rank
	})
	return ranking
}
