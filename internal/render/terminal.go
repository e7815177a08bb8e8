package render

import (
	"fmt"
	"math"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/racedraw/racedraw/internal/race"
	"github.com/racedraw/racedraw/internal/tournament"
)

const (
	nameWidth = 14
	trackY    = 2 // first lane row
	laneRows  = 2 // screen rows per lane
)

// Terminal draws the track on a tcell screen. Each lane takes two rows so
// drifting racers show up between lanes.
type Terminal struct {
	mu          sync.Mutex
	screen      tcell.Screen
	trackLength float64
	names       map[int]string
	round       int
	banner      string
}

// NewTerminal wraps an initialized screen. trackLength scales positions to
// columns.
func NewTerminal(screen tcell.Screen, trackLength float64) *Terminal {
	return &Terminal{
		screen:      screen,
		trackLength: trackLength,
		names:       map[int]string{},
	}
}

func (t *Terminal) RaceStarted(round int, roster race.Roster) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.round = round
	t.names = names(roster)
	t.banner = ""
}

func (t *Terminal) Frame(snap race.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Clear()
	width, _ := t.screen.Size()
	base := tcell.StyleDefault.Background(RgbBackground)
	t.fill(base)

	t.text(0, 0, fmt.Sprintf("race %d  %5.2fs", t.round, snap.Elapsed.Seconds()), base.Foreground(RgbStatus))

	finish := t.column(t.trackLength, width)
	for lane := 0; lane < snap.LaneCount; lane++ {
		y := trackY + lane*laneRows
		if name, ok := t.names[lane]; ok {
			t.text(0, y, truncate(name, nameWidth-1), base.Foreground(RgbName))
		}
		for x := nameWidth; x < finish; x++ {
			t.screen.SetContent(x, y, '·', nil, base.Foreground(RgbTrack))
		}
		t.screen.SetContent(finish, y, '|', nil, base.Foreground(RgbFinishLine))
	}

	for _, h := range snap.Hazards {
		if h.Lateral < -0.5 || h.Lateral > float64(snap.LaneCount)-0.5 {
			continue
		}
		t.screen.SetContent(t.column(h.Position, width), t.row(h.Lateral), '#', nil, base.Foreground(RgbHazard))
	}

	for _, r := range snap.Racers {
		style := base.Foreground(racerColor(r.Visual)).Bold(r.Visual == race.VisualFinished)
		t.screen.SetContent(t.column(r.Position, width), t.row(r.Lateral), Glyph(r.Visual), nil, style)
	}

	if t.banner != "" {
		t.text(0, trackY+snap.LaneCount*laneRows, t.banner, base.Foreground(RgbFinished))
	}
	t.screen.Show()
}

func (t *Terminal) Winner(ev race.WinnerEvent, p tournament.Placement) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.banner = fmt.Sprintf("%s wins race %d (%s), rank %d", ev.Participant.Name, t.round, ev.Resolution, p.Rank)
}

func (t *Terminal) Standings(ranking []tournament.Placement) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Clear()
	base := tcell.StyleDefault.Background(RgbBackground)
	t.fill(base)
	t.text(0, 0, "ranking", base.Foreground(RgbStatus).Bold(true))
	for i, p := range ranking {
		t.text(0, 2+i, fmt.Sprintf("%3d. %s", p.Rank, p.Participant.Name), base.Foreground(RgbName))
	}
	t.screen.Show()
}

func (t *Terminal) Close() error {
	t.screen.Fini()
	return nil
}

// WatchQuit calls quit when the user presses Esc, q or Ctrl-C. It returns
// once the screen is finalized.
func (t *Terminal) WatchQuit(quit func()) {
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return
		}
		key, ok := ev.(*tcell.EventKey)
		if !ok {
			continue
		}
		if key.Key() == tcell.KeyEscape || key.Key() == tcell.KeyCtrlC || key.Rune() == 'q' {
			quit()
		}
	}
}

// column maps a forward position to a screen column between the name
// column and the finish line.
func (t *Terminal) column(pos float64, width int) int {
	span := width - nameWidth - 2
	if span < 1 {
		span = 1
	}
	frac := pos / t.trackLength
	if frac > 1 {
		frac = 1
	}
	if frac < 0 {
		frac = 0
	}
	return nameWidth + int(math.Round(frac*float64(span)))
}

func (t *Terminal) row(lateral float64) int {
	return trackY + int(math.Round(lateral*laneRows))
}

func (t *Terminal) fill(style tcell.Style) {
	w, h := t.screen.Size()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			t.screen.SetContent(x, y, ' ', nil, style)
		}
	}
}

func (t *Terminal) text(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		t.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
