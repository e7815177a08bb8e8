// Package tournament owns the roster, the elimination order and the ranking
// across repeated races.
package tournament

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/racedraw/racedraw/internal/race"
)

var (
	ErrFinished       = errors.New("tournament finished")
	ErrNotActive      = errors.New("participant not active")
	ErrEmptyName      = errors.New("empty participant name")
	ErrDuplicateName  = errors.New("duplicate participant name")
	ErrNoParticipants = errors.New("no participants")
	ErrUnknownMode    = errors.New("unknown mode")
)

// Mode decides what a race winner means for the ranking.
type Mode string

const (
	// ModeWinner ranks each race winner next best.
	ModeWinner Mode = "winner"
	// ModeLoser spares each race winner and ranks it next worst, so the
	// participant left at the end is ranked first.
	ModeLoser Mode = "loser"
)

// ParseMode resolves a config or flag value.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeWinner, "":
		return ModeWinner, nil
	case ModeLoser:
		return ModeLoser, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownMode)
}

// Placement is a participant's final rank.
type Placement struct {
	Rank        int
	Participant *race.Participant
	Round       int
	Resolution  race.Resolution
}

// RaceRecord summarizes one finished race.
type RaceRecord struct {
	Round      int
	Racers     int
	Winner     *race.Participant
	Resolution race.Resolution
	Knockouts  int
	Duration   time.Duration
}

// Tournament is safe for concurrent reads while a single driver mutates it
// between races.
type Tournament struct {
	mu         sync.RWMutex
	id         string
	mode       Mode
	startedAt  time.Time
	full       []*race.Participant
	active     []*race.Participant
	placements []Placement
	history    []RaceRecord
}

// Option configures a new tournament.
type Option func(*Tournament)

// WithStart sets the start time, which otherwise is the wall clock at New.
func WithStart(t time.Time) Option {
	return func(tr *Tournament) { tr.startedAt = t }
}

// New validates the names and creates a tournament. Participants keep the
// order they were given in, which fixes their lane slots.
func New(names []string, mode Mode, opts ...Option) (*Tournament, error) {
	if len(names) == 0 {
		return nil, ErrNoParticipants
	}
	if mode != ModeWinner && mode != ModeLoser {
		return nil, fmt.Errorf("%q: %w", mode, ErrUnknownMode)
	}

	seen := make(map[string]bool, len(names))
	full := make([]*race.Participant, 0, len(names))
	for i, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			return nil, fmt.Errorf("participant %d: %w", i, ErrEmptyName)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, fmt.Errorf("%q: %w", name, ErrDuplicateName)
		}
		seen[key] = true
		full = append(full, &race.Participant{ID: uuid.NewString(), Name: name})
	}

	t := &Tournament{
		id:        uuid.NewString(),
		mode:      mode,
		startedAt: time.Now(),
		full:      full,
		active:    append([]*race.Participant(nil), full...),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Tournament) ID() string {
	return t.id
}

func (t *Tournament) Mode() Mode {
	return t.mode
}

func (t *Tournament) StartedAt() time.Time {
	return t.startedAt
}

// Participants returns the full roster in lane order.
func (t *Tournament) Participants() []*race.Participant {
	return append([]*race.Participant(nil), t.full...)
}

// Roster returns the active participants and the full roster for the next
// race.
func (t *Tournament) Roster() race.Roster {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return race.Roster{
		Active: append([]*race.Participant(nil), t.active...),
		Full:   append([]*race.Participant(nil), t.full...),
	}
}

// Round is the number of the race that runs next, starting at 1.
func (t *Tournament) Round() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.placements) + 1
}

// Progress is the fraction of the full roster already placed.
func (t *Tournament) Progress() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return float64(len(t.placements)) / float64(len(t.full))
}

// Done reports whether every participant is ranked.
func (t *Tournament) Done() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.active) == 0
}

// Lane returns the participant's lane slot, which never changes.
func (t *Tournament) Lane(id string) (int, bool) {
	for i, p := range t.full {
		if p.ID == id {
			return i, true
		}
	}
	return -1, false
}

// Settle places the last active participant without running a race. It
// reports false when more than one participant is still active.
func (t *Tournament) Settle() (Placement, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.active) != 1 {
		return Placement{}, false
	}
	p, _ := t.eliminate(t.active[0].ID, race.ResolutionWalkover)
	return p, true
}

// Eliminate removes the participant from the active roster and ranks it
// according to the mode.
func (t *Tournament) Eliminate(id string, resolution race.Resolution) (Placement, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.eliminate(id, resolution)
}

// Conclude records a finished race and eliminates its winner.
func (t *Tournament) Conclude(ev race.WinnerEvent, knockouts int) (Placement, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	racers := len(t.active)
	p, err := t.eliminate(ev.Participant.ID, ev.Resolution)
	if err != nil {
		return Placement{}, err
	}
	t.history = append(t.history, RaceRecord{
		Round:      p.Round,
		Racers:     racers,
		Winner:     ev.Participant,
		Resolution: ev.Resolution,
		Knockouts:  knockouts,
		Duration:   ev.Elapsed,
	})
	return p, nil
}

func (t *Tournament) eliminate(id string, resolution race.Resolution) (Placement, error) {
	if len(t.active) == 0 {
		return Placement{}, ErrFinished
	}

	idx := -1
	for i, p := range t.active {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Placement{}, fmt.Errorf("%q: %w", id, ErrNotActive)
	}

	rank := len(t.placements) + 1
	if t.mode == ModeLoser {
		rank = len(t.full) - len(t.placements)
	}
	p := Placement{
		Rank:        rank,
		Participant: t.active[idx],
		Round:       len(t.placements) + 1,
		Resolution:  resolution,
	}
	t.placements = append(t.placements, p)
	t.active = append(t.active[:idx:idx], t.active[idx+1:]...)
	return p, nil
}

// Placements returns the placements in the order they were decided.
func (t *Tournament) Placements() []Placement {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Placement(nil), t.placements...)
}

// Ranking returns the placements ordered by rank.
func (t *Tournament) Ranking() []Placement {
	ranking := t.Placements()
	sort.Slice(ranking, func(i, j int) bool {
		return ranking[i].Rank < ranking[j].Rank
	})
	return ranking
}

// History returns every race run so far.
func (t *Tournament) History() []RaceRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]RaceRecord(nil), t.history...)
}
