package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racedraw/racedraw/internal/config"
	"github.com/racedraw/racedraw/internal/dispatcher"
	"github.com/racedraw/racedraw/internal/logging"
	"github.com/racedraw/racedraw/internal/loop"
	"github.com/racedraw/racedraw/internal/race"
	"github.com/racedraw/racedraw/internal/storage/memory"
	"github.com/racedraw/racedraw/internal/tournament"
	"github.com/racedraw/racedraw/internal/worker"
)

func testOptions(names ...string) Options {
	return Options{
		Names:    names,
		Mode:     tournament.ModeWinner,
		Race:     race.DefaultConfig(),
		Seed:     42,
		Clock:    loop.NewStepClock(time.Unix(0, 0), 100*time.Millisecond),
		Interval: time.Millisecond,
	}
}

func newRecorder(t *testing.T) (*dispatcher.Dispatcher, *memory.Backend) {
	t.Helper()
	backend := memory.New(config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, backend.Init())

	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(d.Close)

	worker.NewManager(worker.Dependencies{}, backend).RegisterHandlers(d)
	return d, backend
}

// recordingRenderer counts renderer calls.
type recordingRenderer struct {
	starts    []int
	frames    int
	winners   []race.WinnerEvent
	standings []tournament.Placement
}

func (r *recordingRenderer) RaceStarted(round int, _ race.Roster) { r.starts = append(r.starts, round) }
func (r *recordingRenderer) Frame(race.Snapshot)                  { r.frames++ }
func (r *recordingRenderer) Winner(ev race.WinnerEvent, _ tournament.Placement) {
	r.winners = append(r.winners, ev)
}
func (r *recordingRenderer) Standings(p []tournament.Placement) { r.standings = p }
func (r *recordingRenderer) Close() error                       { return nil }

func TestNew_Invalid(t *testing.T) {
	_, err := New(testOptions(), Deps{})
	assert.ErrorIs(t, err, tournament.ErrNoParticipants)

	opts := testOptions("Ann", "Bob")
	opts.Race.TrackLength = 0
	_, err = New(opts, Deps{})
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	opts := testOptions("Ann", "Bob")
	opts.Seed = 0
	s, err := New(opts, Deps{})
	require.NoError(t, err)

	assert.NotZero(t, s.Seed())
	assert.Equal(t, 1, s.opts.FrameSample)

	st := s.Status()
	assert.Equal(t, 2, st.Participants)
	assert.Equal(t, 2, st.Remaining)
	assert.False(t, st.Racing)
	assert.False(t, st.Done)

	_, ok := s.Snapshot()
	assert.False(t, ok)
}

func TestRun_RanksEveryone(t *testing.T) {
	r := &recordingRenderer{}
	s, err := New(testOptions("Ann", "Bob", "Cid", "Dee"), Deps{Renderer: r})
	require.NoError(t, err)

	ranking, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, ranking, 4)
	for i, p := range ranking {
		assert.Equal(t, i+1, p.Rank)
	}
	last := s.Tournament().Placements()[3]
	assert.Equal(t, race.ResolutionWalkover, last.Resolution)
	assert.Equal(t, 4, last.Rank)

	assert.Equal(t, []int{1, 2, 3}, r.starts)
	assert.Len(t, r.winners, 4)
	assert.Equal(t, race.ResolutionWalkover, r.winners[3].Resolution)
	assert.Positive(t, r.frames)
	assert.Equal(t, ranking, r.standings)
	assert.Len(t, s.Tournament().History(), 3)

	snap, ok := s.Snapshot()
	require.True(t, ok)
	assert.Equal(t, race.PhaseFinished, snap.Phase)

	st := s.Status()
	assert.True(t, st.Done)
	assert.False(t, st.Racing)
	assert.Zero(t, st.Remaining)
}

func TestRun_LoserMode(t *testing.T) {
	opts := testOptions("Ann", "Bob", "Cid")
	opts.Mode = tournament.ModeLoser
	s, err := New(opts, Deps{})
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.NoError(t, err)

	placements := s.Tournament().Placements()
	require.Len(t, placements, 3)
	assert.Equal(t, 3, placements[0].Rank)
	assert.Equal(t, 1, placements[2].Rank)
}

func TestRun_SingleParticipantIsWalkover(t *testing.T) {
	r := &recordingRenderer{}
	s, err := New(testOptions("Solo"), Deps{Renderer: r})
	require.NoError(t, err)

	ranking, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, ranking, 1)
	assert.Equal(t, race.ResolutionWalkover, ranking[0].Resolution)
	assert.Empty(t, r.starts)
	assert.Zero(t, r.frames)
}

func TestRun_SameSeedSameOutcome(t *testing.T) {
	order := func() []string {
		s, err := New(testOptions("Ann", "Bob", "Cid", "Dee", "Eve"), Deps{})
		require.NoError(t, err)
		ranking, err := s.Run(context.Background())
		require.NoError(t, err)

		names := make([]string, len(ranking))
		for i, p := range ranking {
			names[i] = p.Participant.Name
		}
		return names
	}

	assert.Equal(t, order(), order())
}

func TestRun_Cancelled(t *testing.T) {
	s, err := New(testOptions("Ann", "Bob"), Deps{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, s.Status().Racing)
	assert.False(t, s.Status().Done)
}

func TestRun_PauseHonoursCancel(t *testing.T) {
	opts := testOptions("Ann", "Bob", "Cid")
	opts.Pause = time.Hour
	s, err := New(opts, Deps{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	_, err = s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Minute)
	assert.Len(t, s.Tournament().History(), 1)
}

func TestRun_Records(t *testing.T) {
	d, backend := newRecorder(t)
	opts := testOptions("Ann", "Bob", "Cid")
	opts.FrameSample = 5
	s, err := New(opts, Deps{Dispatcher: d})
	require.NoError(t, err)

	ranking, err := s.Run(context.Background())
	require.NoError(t, err)

	placements := backend.Placements()
	require.Len(t, placements, 3)
	for i, p := range s.Tournament().Placements() {
		assert.Equal(t, p.Participant.ID, placements[i].ParticipantID)
		assert.Equal(t, p.Rank, placements[i].Rank)
	}

	for round := 1; round <= 2; round++ {
		rec, ok := backend.Race(round)
		require.True(t, ok, "round %d", round)
		assert.Equal(t, 3, rec.Race.LaneCount)
		require.NotNil(t, rec.Result)
		assert.Equal(t, placements[round-1].ParticipantID, rec.Result.WinnerID)
		assert.NotEmpty(t, rec.States)
		assert.Len(t, rec.Race.Entrants, 4-round)
		for _, e := range rec.Race.Entrants {
			assert.NotEmpty(t, e.Profile)
		}
		assert.Equal(t, rec.Result.Knockouts, len(rec.Knockouts))
	}
	_, ok := backend.Race(3)
	assert.False(t, ok, "walkover runs no race")

	path := backend.GetExportedFilePath()
	require.NotEmpty(t, path)
	assert.Equal(t, ".json", filepath.Ext(path))

	meta := backend.GetExportMetadata()
	assert.Equal(t, ranking[0].Participant.Name, meta.Winner)
	assert.Equal(t, 2, meta.Races)
}

func TestRun_WalkoverReportsLane(t *testing.T) {
	for seed := uint64(1); seed <= 10; seed++ {
		r := &recordingRenderer{}
		opts := testOptions("Ann", "Bob", "Cid")
		opts.Seed = seed
		s, err := New(opts, Deps{Renderer: r})
		require.NoError(t, err)
		_, err = s.Run(context.Background())
		require.NoError(t, err)

		require.Len(t, r.winners, 3)
		ev := r.winners[2]
		require.Equal(t, race.ResolutionWalkover, ev.Resolution)
		lane, ok := s.Tournament().Lane(ev.Participant.ID)
		require.True(t, ok)
		assert.Equal(t, lane, ev.Slot, "seed %d", seed)
	}
}

type clockedRun struct {
	raceStarts []time.Time
	placed     []time.Time
	timings    []worker.FrameTiming
	duration   float64
}

func runWithClock(t *testing.T, start time.Time) (*Session, clockedRun) {
	t.Helper()
	d, backend := newRecorder(t)
	var out clockedRun
	d.Register(worker.CmdRaceTiming, func(e dispatcher.Event) (any, error) {
		ft := e.Payload.(worker.FrameTiming)
		ft.TournamentID = "" // a fresh uuid per run
		out.timings = append(out.timings, ft)
		return nil, nil
	})

	opts := testOptions("Ann", "Bob", "Cid")
	opts.Clock = loop.NewStepClock(start, 100*time.Millisecond)
	s, err := New(opts, Deps{Dispatcher: d})
	require.NoError(t, err)
	_, err = s.Run(context.Background())
	require.NoError(t, err)

	for round := 1; round <= 2; round++ {
		rec, ok := backend.Race(round)
		require.True(t, ok)
		out.raceStarts = append(out.raceStarts, rec.Race.StartedAt)
	}
	for _, p := range backend.Placements() {
		out.placed = append(out.placed, p.Time)
	}
	out.duration = backend.GetExportMetadata().Duration
	return s, out
}

func TestRun_RecordsFollowInjectedClock(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	s, first := runWithClock(t, start)
	assert.Equal(t, start, s.Tournament().StartedAt())
	assert.Equal(t, start, s.Status().StartedAt)

	prev := start
	for _, ts := range append(append([]time.Time{}, first.raceStarts...), first.placed...) {
		assert.True(t, ts.After(start), "%v not after tournament start", ts)
		assert.True(t, ts.Before(start.Add(time.Hour)), "%v is wall clock time", ts)
	}
	for _, ts := range first.placed {
		assert.False(t, ts.Before(prev))
		prev = ts
	}
	assert.True(t, first.raceStarts[1].After(first.raceStarts[0]))
	assert.Positive(t, first.duration)

	require.Len(t, first.timings, 2)
	for _, ft := range first.timings {
		// every frame reads the clock once
		assert.GreaterOrEqual(t, ft.Wall, time.Duration(ft.Frames)*100*time.Millisecond)
	}

	_, second := runWithClock(t, start)
	assert.Equal(t, first, second, "same seed and clock give the same records")
}

func TestRun_SampledFramesIncludeFinish(t *testing.T) {
	d, backend := newRecorder(t)
	opts := testOptions("Ann", "Bob")
	opts.FrameSample = 1000
	s, err := New(opts, Deps{Dispatcher: d})
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.NoError(t, err)

	rec, ok := backend.Race(1)
	require.True(t, ok)
	require.NotEmpty(t, rec.States)
	// one finishing frame per racer
	assert.Len(t, rec.States, 2)
}
