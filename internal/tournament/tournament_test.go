package tournament

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racedraw/racedraw/internal/race"
)

func names(t *Tournament) []string {
	var out []string
	for _, p := range t.Ranking() {
		out = append(out, p.Participant.Name)
	}
	return out
}

func byName(t *Tournament, name string) *race.Participant {
	for _, p := range t.Participants() {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Loser")
	require.NoError(t, err)
	assert.Equal(t, ModeLoser, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeWinner, m)

	_, err = ParseMode("random")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		mode  Mode
		err   error
	}{
		{"empty", nil, ModeWinner, ErrNoParticipants},
		{"blank name", []string{"a", "  "}, ModeWinner, ErrEmptyName},
		{"duplicate", []string{"Ann", "ann "}, ModeWinner, ErrDuplicateName},
		{"bad mode", []string{"a"}, Mode("x"), ErrUnknownMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.names, tt.mode)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestNew_AssignsIDs(t *testing.T) {
	tr, err := New([]string{" Ann ", "Bob"}, ModeWinner)
	require.NoError(t, err)

	ps := tr.Participants()
	require.Len(t, ps, 2)
	assert.Equal(t, "Ann", ps[0].Name)
	assert.NotEmpty(t, ps[0].ID)
	assert.NotEqual(t, ps[0].ID, ps[1].ID)
	assert.NotEmpty(t, tr.ID())
	assert.Equal(t, 1, tr.Round())
	assert.Zero(t, tr.Progress())
	assert.False(t, tr.Done())
}

func TestNew_StartTime(t *testing.T) {
	before := time.Now()
	tr, err := New([]string{"Ann"}, ModeWinner)
	require.NoError(t, err)
	assert.False(t, tr.StartedAt().Before(before))

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr, err = New([]string{"Ann"}, ModeWinner, WithStart(at))
	require.NoError(t, err)
	assert.Equal(t, at, tr.StartedAt())
}

func TestEliminate_WinnerMode(t *testing.T) {
	tr, err := New([]string{"a", "b", "c"}, ModeWinner)
	require.NoError(t, err)

	p, err := tr.Eliminate(byName(tr, "b").ID, race.ResolutionFinish)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Rank)
	assert.Equal(t, 1, p.Round)
	assert.InDelta(t, 1.0/3, tr.Progress(), 1e-12)

	_, ok := tr.Settle()
	assert.False(t, ok, "two participants still need a race")

	_, err = tr.Eliminate(byName(tr, "a").ID, race.ResolutionFinish)
	require.NoError(t, err)

	p, ok = tr.Settle()
	require.True(t, ok)
	assert.Equal(t, 3, p.Rank)
	assert.Equal(t, race.ResolutionWalkover, p.Resolution)
	assert.True(t, tr.Done())
	assert.Equal(t, []string{"b", "a", "c"}, names(tr))
}

func TestEliminate_LoserMode(t *testing.T) {
	tr, err := New([]string{"a", "b", "c"}, ModeLoser)
	require.NoError(t, err)

	p, err := tr.Eliminate(byName(tr, "b").ID, race.ResolutionFinish)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Rank)

	p, err = tr.Eliminate(byName(tr, "c").ID, race.ResolutionFinish)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Rank)

	p, ok := tr.Settle()
	require.True(t, ok)
	assert.Equal(t, 1, p.Rank)
	assert.Equal(t, "a", p.Participant.Name)
	assert.Equal(t, []string{"a", "c", "b"}, names(tr))
}

func TestEliminate_Errors(t *testing.T) {
	tr, err := New([]string{"a", "b"}, ModeWinner)
	require.NoError(t, err)

	_, err = tr.Eliminate("nobody", race.ResolutionFinish)
	assert.ErrorIs(t, err, ErrNotActive)

	a := byName(tr, "a")
	_, err = tr.Eliminate(a.ID, race.ResolutionFinish)
	require.NoError(t, err)
	_, err = tr.Eliminate(a.ID, race.ResolutionFinish)
	assert.ErrorIs(t, err, ErrNotActive)

	_, ok := tr.Settle()
	require.True(t, ok)
	_, err = tr.Eliminate(a.ID, race.ResolutionFinish)
	assert.ErrorIs(t, err, ErrFinished)
}

func TestSingleParticipant_SkipsRace(t *testing.T) {
	tr, err := New([]string{"solo"}, ModeWinner)
	require.NoError(t, err)

	p, ok := tr.Settle()
	require.True(t, ok)
	assert.Equal(t, 1, p.Rank)
	assert.Equal(t, race.ResolutionWalkover, p.Resolution)
	assert.True(t, tr.Done())
	assert.Empty(t, tr.History())
}

func TestRoster_LanesStayStable(t *testing.T) {
	tr, err := New([]string{"a", "b", "c", "d"}, ModeWinner)
	require.NoError(t, err)

	want := map[string]int{}
	for i, p := range tr.Participants() {
		want[p.ID] = i
	}

	src := race.NewSource(7)
	for !tr.Done() {
		if _, ok := tr.Settle(); ok {
			break
		}
		roster := tr.Roster()
		assert.Equal(t, 4, roster.LaneCount())

		sim, err := race.New(race.DefaultConfig(), src, roster, tr.Progress())
		require.NoError(t, err)
		for _, r := range sim.Snapshot().Racers {
			assert.Equal(t, want[r.Participant.ID], r.Slot)
			lane, ok := tr.Lane(r.Participant.ID)
			require.True(t, ok)
			assert.Equal(t, lane, r.Slot)
		}

		var ev *race.WinnerEvent
		for elapsed := time.Second / 60; ev == nil; elapsed += time.Second / 60 {
			_, ev = sim.Advance(elapsed)
		}
		_, err = tr.Conclude(*ev, 0)
		require.NoError(t, err)
	}

	assert.True(t, tr.Done())
	assert.Len(t, tr.Ranking(), 4)
	assert.Len(t, tr.History(), 3)
}

func TestRoster_IsACopy(t *testing.T) {
	tr, err := New([]string{"a", "b"}, ModeWinner)
	require.NoError(t, err)

	roster := tr.Roster()
	roster.Active[0] = nil
	assert.NotNil(t, tr.Roster().Active[0])
}

func TestConclude_RecordsHistory(t *testing.T) {
	tr, err := New([]string{"a", "b", "c"}, ModeWinner)
	require.NoError(t, err)

	b := byName(tr, "b")
	p, err := tr.Conclude(race.WinnerEvent{
		Participant: b,
		Elapsed:     4 * time.Second,
		Resolution:  race.ResolutionTimeout,
	}, 2)
	require.NoError(t, err)
	assert.Equal(t, race.ResolutionTimeout, p.Resolution)

	hist := tr.History()
	require.Len(t, hist, 1)
	assert.Equal(t, RaceRecord{
		Round:      1,
		Racers:     3,
		Winner:     b,
		Resolution: race.ResolutionTimeout,
		Knockouts:  2,
		Duration:   4 * time.Second,
	}, hist[0])
	assert.Equal(t, 2, tr.Round())
}
