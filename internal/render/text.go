package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/racedraw/racedraw/internal/race"
	"github.com/racedraw/racedraw/internal/tournament"
)

// Text writes a line-oriented race log, for headless runs.
type Text struct {
	mu    sync.Mutex
	w     io.Writer
	names map[int]string
}

func NewText(w io.Writer) *Text {
	return &Text{w: w, names: map[int]string{}}
}

func (t *Text) RaceStarted(round int, roster race.Roster) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.names = names(roster)
	list := make([]string, 0, len(roster.Active))
	for _, p := range roster.Active {
		list = append(list, p.Name)
	}
	fmt.Fprintf(t.w, "race %d: %s\n", round, strings.Join(list, ", "))
}

// Frame reports knockouts and hazard spawns; plain movement is not logged.
func (t *Text) Frame(snap race.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range snap.Effects {
		switch e.Kind {
		case race.EffectKnockout:
			r, _ := snap.Racer(e.Slot)
			fmt.Fprintf(t.w, "  %6.2fs %s knocked out (%s) at %.0f\n",
				e.At.Seconds(), t.names[e.Slot], r.KnockoutCause, e.Position)
		case race.EffectHazardSpawn:
			fmt.Fprintf(t.w, "  %6.2fs hazard at %.0f\n", e.At.Seconds(), e.Position)
		}
	}
}

func (t *Text) Winner(ev race.WinnerEvent, p tournament.Placement) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.w, "  winner %s after %.2fs (%s), rank %d\n",
		ev.Participant.Name, ev.Elapsed.Seconds(), ev.Resolution, p.Rank)
}

func (t *Text) Standings(ranking []tournament.Placement) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintln(t.w, "ranking:")
	for _, p := range ranking {
		fmt.Fprintf(t.w, "%3d. %s\n", p.Rank, p.Participant.Name)
	}
}

func (t *Text) Close() error {
	return nil
}
