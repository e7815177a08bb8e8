// Package render draws races. Renderers only read snapshots; they never
// influence the outcome.
package render

import (
	"github.com/racedraw/racedraw/internal/race"
	"github.com/racedraw/racedraw/internal/tournament"
)

// Renderer consumes race output.
type Renderer interface {
	RaceStarted(round int, roster race.Roster)
	Frame(snap race.Snapshot)
	Winner(ev race.WinnerEvent, p tournament.Placement)
	Standings(ranking []tournament.Placement)
	Close() error
}

// Glyph is the character a racer is drawn with in the given state.
func Glyph(v race.VisualState) rune {
	switch v {
	case race.VisualAccelerating:
		return '»'
	case race.VisualDecelerating:
		return '›'
	case race.VisualKnockedOut:
		return 'x'
	case race.VisualFinished:
		return '*'
	}
	return '>'
}

// names maps lane slots to display names.
func names(roster race.Roster) map[int]string {
	out := make(map[int]string, len(roster.Active))
	for _, p := range roster.Active {
		if slot, ok := roster.Slot(p.ID); ok {
			out[slot] = p.Name
		}
	}
	return out
}

// Nop discards everything.
type Nop struct{}

func (Nop) RaceStarted(int, race.Roster)                  {}
func (Nop) Frame(race.Snapshot)                           {}
func (Nop) Winner(race.WinnerEvent, tournament.Placement) {}
func (Nop) Standings([]tournament.Placement)              {}
func (Nop) Close() error                                  { return nil }
