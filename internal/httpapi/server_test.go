package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/racedraw/racedraw/internal/loop"
	"github.com/racedraw/racedraw/internal/model"
	"github.com/racedraw/racedraw/internal/race"
	"github.com/racedraw/racedraw/internal/session"
	"github.com/racedraw/racedraw/internal/tournament"
	"github.com/racedraw/racedraw/pkg/core"
)

type fakeArchive struct {
	tournaments map[string]core.Tournament
	results     []model.RaceResult
	err         error
}

func (a *fakeArchive) LoadTournament(id string) (core.Tournament, error) {
	if a.err != nil {
		return core.Tournament{}, a.err
	}
	t, ok := a.tournaments[id]
	if !ok {
		return core.Tournament{}, gorm.ErrRecordNotFound
	}
	return t, nil
}

func (a *fakeArchive) RaceResults(string) ([]model.RaceResult, error) {
	return a.results, nil
}

func newSession(t *testing.T, names ...string) *session.Session {
	t.Helper()
	s, err := session.New(session.Options{
		Names:    names,
		Mode:     tournament.ModeWinner,
		Race:     race.DefaultConfig(),
		Seed:     7,
		Clock:    loop.NewStepClock(time.Unix(0, 0), 100*time.Millisecond),
		Interval: time.Millisecond,
	}, session.Deps{})
	require.NoError(t, err)
	return s
}

func get(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func TestStatus(t *testing.T) {
	s := newSession(t, "Ann", "Bob", "Cid")
	srv := New(s, nil, nil)

	var st session.Status
	require.Equal(t, http.StatusOK, get(t, srv, "/api/status", &st))
	assert.Equal(t, s.Tournament().ID(), st.TournamentID)
	assert.Equal(t, "winner", st.Mode)
	assert.Equal(t, 3, st.Participants)
	assert.Equal(t, 3, st.Remaining)
	assert.False(t, st.Done)
}

func TestSnapshot_BeforeFirstRace(t *testing.T) {
	srv := New(newSession(t, "Ann", "Bob"), nil, nil)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/snapshot", nil))
}

func TestAfterRun(t *testing.T) {
	s := newSession(t, "Ann", "Bob", "Cid")
	ranking, err := s.Run(context.Background())
	require.NoError(t, err)
	srv := New(s, nil, nil)

	var placements []placementJSON
	require.Equal(t, http.StatusOK, get(t, srv, "/api/ranking", &placements))
	require.Len(t, placements, 3)
	for i, p := range placements {
		assert.Equal(t, i+1, p.Rank)
		assert.Equal(t, ranking[i].Participant.Name, p.Name)
	}
	assert.Equal(t, "walkover", placements[2].Resolution)

	var history []raceJSON
	require.Equal(t, http.StatusOK, get(t, srv, "/api/history", &history))
	require.Len(t, history, 2)
	assert.Equal(t, 3, history[0].Racers)
	assert.Equal(t, placements[0].Name, history[0].Winner)

	var snap snapshotJSON
	require.Equal(t, http.StatusOK, get(t, srv, "/api/snapshot", &snap))
	assert.Equal(t, "finished", snap.Phase)
	assert.Equal(t, 3, snap.LaneCount)
	assert.Len(t, snap.Racers, 2)
	assert.Positive(t, snap.Tick)

	var st session.Status
	require.Equal(t, http.StatusOK, get(t, srv, "/api/status", &st))
	assert.True(t, st.Done)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := New(newSession(t, "Ann"), nil, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTournament_NoArchive(t *testing.T) {
	srv := New(newSession(t, "Ann"), nil, nil)
	assert.Equal(t, http.StatusNotImplemented, get(t, srv, "/api/tournaments/abc", nil))
}

func TestTournament_FromArchive(t *testing.T) {
	ended := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	archive := &fakeArchive{
		tournaments: map[string]core.Tournament{
			"t-1": {
				ID:        "t-1",
				Mode:      "loser",
				StartedAt: ended.Add(-time.Minute),
				EndedAt:   ended,
				Participants: []core.Participant{
					{ID: "p-1", Name: "Ann", Lane: 0},
					{ID: "p-2", Name: "Bob", Lane: 1},
				},
				Ranking: []core.Placement{
					{ParticipantID: "p-2", Name: "Bob", Rank: 1, Round: 2, Resolution: "walkover"},
					{ParticipantID: "p-1", Name: "Ann", Rank: 2, Round: 1, Resolution: "finish"},
				},
			},
		},
		results: []model.RaceResult{{Round: 1, WinnerUUID: "p-1", Resolution: "finish", Racers: 2}},
	}
	srv := New(newSession(t, "Ann"), archive, nil)

	var out tournamentJSON
	require.Equal(t, http.StatusOK, get(t, srv, "/api/tournaments/t-1", &out))
	assert.Equal(t, "loser", out.Mode)
	assert.Equal(t, []string{"Ann", "Bob"}, out.Participants)
	require.NotNil(t, out.EndedAt)
	assert.True(t, ended.Equal(*out.EndedAt))
	require.Len(t, out.Ranking, 2)
	assert.Equal(t, "Bob", out.Ranking[0].Name)
	require.Len(t, out.Races, 1)
	assert.Equal(t, "p-1", out.Races[0].WinnerUUID)

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/tournaments/missing", nil))

	archive.err = errors.New("connection reset")
	assert.Equal(t, http.StatusInternalServerError, get(t, srv, "/api/tournaments/t-1", nil))
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	srv := New(newSession(t, "Ann"), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func dialLive(t *testing.T, srv *Server) (*ws.Conn, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	conn, _, err := ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/live", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, ts
}

func TestLive_PushesLatestFrameOnce(t *testing.T) {
	s := newSession(t, "Ann", "Bob")
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	srv := New(s, nil, nil)
	srv.liveInterval = 5 * time.Millisecond
	conn, _ := dialLive(t, srv)

	var msg liveMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.True(t, msg.Status.Done)
	assert.Equal(t, "finished", msg.Snapshot.Phase)
	assert.Len(t, msg.Snapshot.Racers, 2)

	// the frame does not change any more, so nothing else is sent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestLive_ClosesOnShutdown(t *testing.T) {
	s := newSession(t, "Ann", "Bob")
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	srv := New(s, nil, nil)
	srv.liveInterval = 5 * time.Millisecond
	conn, _ := dialLive(t, srv)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg liveMessage
	require.NoError(t, conn.ReadJSON(&msg))

	srv.quitOnce.Do(func() { close(srv.quit) })
	_, _, err = conn.ReadMessage()
	assert.True(t, ws.IsCloseError(err, ws.CloseGoingAway), "got %v", err)
}
