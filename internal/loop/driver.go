// Package loop pumps a race simulator from a clock, one step per frame.
package loop

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/racedraw/racedraw/internal/race"
)

// DefaultInterval is roughly one display refresh.
const DefaultInterval = time.Second / 60

// ErrStale is returned for a token whose race was replaced or abandoned.
var ErrStale = errors.New("stale race token")

// Handlers receive the output of a running race. Both are optional.
type Handlers struct {
	OnFrame  func(race.Snapshot)
	OnWinner func(race.WinnerEvent)
}

// Token identifies one race generation.
type Token uint64

// Driver owns at most one running race. Starting a new race or abandoning the
// current one invalidates every token handed out before.
type Driver struct {
	mu       sync.Mutex
	clock    Clock
	interval time.Duration

	gen       Token
	sim       *race.Simulator
	handlers  Handlers
	start     time.Time
	delivered bool
}

// New creates a driver. A non-positive interval means DefaultInterval.
func New(clock Clock, interval time.Duration) *Driver {
	if clock == nil {
		clock = SystemClock{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Driver{clock: clock, interval: interval}
}

// Interval returns the frame period Run ticks at.
func (d *Driver) Interval() time.Duration {
	return d.interval
}

// Begin makes sim the current race and starts its clock.
func (d *Driver) Begin(sim *race.Simulator, h Handlers) Token {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	d.sim = sim
	d.handlers = h
	d.start = d.clock.Now()
	d.delivered = false
	return d.gen
}

// Abandon drops the current race. Pending steps for it return ErrStale.
func (d *Driver) Abandon() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	d.sim = nil
	d.handlers = Handlers{}
}

// Current returns the token of the running race, zero if none.
func (d *Driver) Current() Token {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sim == nil {
		return 0
	}
	return d.gen
}

// Step advances the race tok refers to to the clock's current time and
// reports whether it has produced its winner. OnWinner fires on the step
// that resolves the race and never again.
func (d *Driver) Step(tok Token) (bool, error) {
	d.mu.Lock()
	if tok != d.gen || d.sim == nil {
		d.mu.Unlock()
		return false, ErrStale
	}

	snap, w := d.sim.Advance(d.clock.Now().Sub(d.start))
	h := d.handlers
	var winner *race.WinnerEvent
	if w != nil && !d.delivered {
		d.delivered = true
		winner = w
	}
	done := d.sim.Done()
	d.mu.Unlock()

	// handlers run unlocked so they may begin the next race
	if h.OnFrame != nil {
		h.OnFrame(snap)
	}
	if winner != nil && h.OnWinner != nil {
		h.OnWinner(*winner)
	}
	return done, nil
}

// Run steps the race tok refers to on every tick until it resolves. It
// returns ErrStale if the race is replaced or abandoned first.
func (d *Driver) Run(ctx context.Context, tok Token) (race.WinnerEvent, error) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return race.WinnerEvent{}, ctx.Err()
		case <-ticker.C:
			done, err := d.Step(tok)
			if err != nil {
				return race.WinnerEvent{}, err
			}
			if done {
				return d.winner(tok)
			}
		}
	}
}

func (d *Driver) winner(tok Token) (race.WinnerEvent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if tok != d.gen || d.sim == nil {
		return race.WinnerEvent{}, ErrStale
	}
	w, ok := d.sim.Winner()
	if !ok {
		return race.WinnerEvent{}, ErrStale
	}
	return w, nil
}
