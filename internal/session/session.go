// Package session runs one tournament end to end: it starts each race on the
// loop driver, feeds frames to the renderer and the recorder, and applies
// every race winner to the tournament until the ranking is complete.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/racedraw/racedraw/internal/dispatcher"
	"github.com/racedraw/racedraw/internal/logging"
	"github.com/racedraw/racedraw/internal/loop"
	"github.com/racedraw/racedraw/internal/race"
	"github.com/racedraw/racedraw/internal/render"
	"github.com/racedraw/racedraw/internal/tournament"
	"github.com/racedraw/racedraw/internal/worker"
)

// Options configure a session.
type Options struct {
	Names []string
	Mode  tournament.Mode
	Race  race.Config

	// Seed makes the whole tournament reproducible; 0 picks one from the clock.
	Seed uint64
	// Pause is the break between races.
	Pause time.Duration
	// FrameSample records every n-th frame; values below 1 mean every frame.
	FrameSample int

	// Clock drives the races and stamps every record; nil is the system clock.
	Clock    loop.Clock
	Interval time.Duration
}

// Deps are the collaborators of a session. All are optional.
type Deps struct {
	Renderer   render.Renderer
	Dispatcher *dispatcher.Dispatcher
	Logger     *slog.Logger
	Run        *logging.RunContext
}

// Status is a point-in-time summary for the status API.
type Status struct {
	TournamentID string    `json:"tournamentId"`
	Mode         string    `json:"mode"`
	Seed         uint64    `json:"seed"`
	StartedAt    time.Time `json:"startedAt"`
	Round        int       `json:"round"`
	Racing       bool      `json:"racing"`
	Participants int       `json:"participants"`
	Remaining    int       `json:"remaining"`
	Done         bool      `json:"done"`
}

// Session owns one tournament.
type Session struct {
	opts   Options
	deps   Deps
	tour   *tournament.Tournament
	driver *loop.Driver
	src    race.Source
	log    *slog.Logger

	mu     sync.RWMutex
	latest race.Snapshot
	hasSn  bool
	racing bool

	// per race, only touched by the goroutine in Run
	round     int
	frames    int
	knockouts int
	knocked   map[int]bool
}

// New validates the roster and prepares the tournament.
func New(opts Options, deps Deps) (*Session, error) {
	if err := opts.Race.Validate(); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = loop.SystemClock{}
	}
	tour, err := tournament.New(opts.Names, opts.Mode, tournament.WithStart(opts.Clock.Now()))
	if err != nil {
		return nil, err
	}
	if opts.Seed == 0 {
		opts.Seed = uint64(time.Now().UnixNano())
	}
	if opts.FrameSample < 1 {
		opts.FrameSample = 1
	}
	if deps.Renderer == nil {
		deps.Renderer = render.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Session{
		opts:   opts,
		deps:   deps,
		tour:   tour,
		driver: loop.New(opts.Clock, opts.Interval),
		src:    race.NewSource(opts.Seed),
		log:    deps.Logger.With("component", "session"),
	}, nil
}

// Tournament returns the tournament this session runs.
func (s *Session) Tournament() *tournament.Tournament {
	return s.tour
}

// Seed returns the seed the races draw from.
func (s *Session) Seed() uint64 {
	return s.opts.Seed
}

// Snapshot returns the latest frame of the current or last race.
func (s *Session) Snapshot() (race.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.hasSn
}

// Status summarizes the session.
func (s *Session) Status() Status {
	s.mu.RLock()
	racing := s.racing
	s.mu.RUnlock()

	roster := s.tour.Roster()
	return Status{
		TournamentID: s.tour.ID(),
		Mode:         string(s.tour.Mode()),
		Seed:         s.opts.Seed,
		StartedAt:    s.tour.StartedAt(),
		Round:        s.tour.Round(),
		Racing:       racing,
		Participants: len(roster.Full),
		Remaining:    len(roster.Active),
		Done:         s.tour.Done(),
	}
}

// Run races until every participant is ranked and returns the ranking.
// Cancelling ctx abandons the running race.
func (s *Session) Run(ctx context.Context) ([]tournament.Placement, error) {
	id := s.tour.ID()
	if s.deps.Run != nil {
		s.deps.Run.SetTournament(id)
	}
	s.log.Info("Tournament started",
		"tournament", id,
		"mode", s.tour.Mode(),
		"participants", len(s.tour.Participants()),
		"seed", s.opts.Seed)
	s.dispatch(worker.CmdTournamentStart, coreTournament(s.tour, time.Time{}))

	for !s.tour.Done() {
		if p, ok := s.tour.Settle(); ok {
			s.placed(p)
			slot, _ := s.tour.Lane(p.Participant.ID)
			s.deps.Renderer.Winner(race.WinnerEvent{
				Participant: p.Participant,
				Slot:        slot,
				Resolution:  race.ResolutionWalkover,
			}, p)
			break
		}

		if err := s.race(ctx); err != nil {
			return s.tour.Ranking(), err
		}

		if len(s.tour.Roster().Active) > 1 && s.opts.Pause > 0 {
			select {
			case <-ctx.Done():
				return s.tour.Ranking(), ctx.Err()
			case <-time.After(s.opts.Pause):
			}
		}
	}

	ranking := s.tour.Ranking()
	s.deps.Renderer.Standings(ranking)
	s.dispatch(worker.CmdTournamentEnd, coreTournament(s.tour, s.opts.Clock.Now()))
	s.log.Info("Tournament finished", "tournament", id, "races", len(s.tour.History()))
	return ranking, nil
}

// race runs one race to its winner and applies it to the tournament.
func (s *Session) race(ctx context.Context) error {
	roster := s.tour.Roster()
	progress := s.tour.Progress()
	sim, err := race.New(s.opts.Race, s.src, roster, progress)
	if err != nil {
		return fmt.Errorf("round %d: %w", s.tour.Round(), err)
	}

	s.round = s.tour.Round()
	s.frames = 0
	s.knockouts = 0
	s.knocked = make(map[int]bool, len(roster.Active))
	if s.deps.Run != nil {
		s.deps.Run.SetRound(s.round)
	}

	start := s.opts.Clock.Now()
	first := sim.Snapshot()
	s.setLatest(first, true)
	s.dispatch(worker.CmdRaceStart, coreRace(s.tour.ID(), s.round, progress, start, first))
	s.deps.Renderer.RaceStarted(s.round, roster)
	s.log.Debug("Race started", "racers", len(roster.Active), "progress", progress, "hazards", s.opts.Race.Hazard.Enabled && progress >= s.opts.Race.Hazard.Activation)

	tok := s.driver.Begin(sim, loop.Handlers{OnFrame: s.onFrame})
	ev, err := s.driver.Run(ctx, tok)
	if err != nil {
		s.driver.Abandon()
		s.setRacing(false)
		return err
	}
	s.setRacing(false)

	p, err := s.tour.Conclude(ev, s.knockouts)
	if err != nil {
		return fmt.Errorf("round %d: %w", s.round, err)
	}

	s.dispatch(worker.CmdRaceResult, coreResult(s.tour.ID(), s.round, len(roster.Active), s.knockouts, ev))
	s.dispatch(worker.CmdRaceTiming, worker.FrameTiming{
		TournamentID: s.tour.ID(),
		Round:        s.round,
		Frames:       s.frames,
		Wall:         s.opts.Clock.Now().Sub(start),
	})
	s.placed(p)
	s.deps.Renderer.Winner(ev, p)

	s.log.Info("Race finished",
		"winner", ev.Participant.Name,
		"resolution", ev.Resolution,
		"elapsed", ev.Elapsed,
		"knockouts", s.knockouts,
		"rank", p.Rank)
	return nil
}

func (s *Session) onFrame(snap race.Snapshot) {
	s.frames++
	s.setLatest(snap, snap.Phase == race.PhaseRunning)

	for _, e := range snap.Effects {
		if e.Kind != race.EffectKnockout || s.knocked[e.Slot] {
			continue
		}
		r, ok := snap.Racer(e.Slot)
		if !ok {
			continue
		}
		s.knocked[e.Slot] = true
		s.knockouts++
		s.dispatch(worker.CmdRaceKnockout, coreKnockout(s.tour.ID(), s.round, r))
	}

	if s.frames%s.opts.FrameSample == 0 || snap.Phase == race.PhaseFinished {
		s.dispatch(worker.CmdRaceFrame, coreStates(s.tour.ID(), s.round, snap))
	}
	s.deps.Renderer.Frame(snap)
}

func (s *Session) placed(p tournament.Placement) {
	s.dispatch(worker.CmdPlacement, corePlacement(s.tour.ID(), p, s.opts.Clock.Now()))
}

func (s *Session) setLatest(snap race.Snapshot, racing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = snap
	s.hasSn = true
	s.racing = racing
}

func (s *Session) setRacing(racing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.racing = racing
}

// dispatch hands a record to the recorder. Recording problems never stop a
// race; they are logged.
func (s *Session) dispatch(command string, payload any) {
	if s.deps.Dispatcher == nil {
		return
	}
	if _, err := s.deps.Dispatcher.Dispatch(dispatcher.Event{Command: command, Payload: payload}); err != nil {
		s.log.Warn("Recording failed", "command", command, "error", err)
	}
}
