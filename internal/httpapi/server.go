// Package httpapi serves a read-only view of the running tournament and,
// when a database backend is configured, of recorded ones.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	ws "github.com/gorilla/websocket"
	"gorm.io/gorm"

	"github.com/racedraw/racedraw/internal/model"
	"github.com/racedraw/racedraw/internal/race"
	"github.com/racedraw/racedraw/internal/session"
	"github.com/racedraw/racedraw/internal/tournament"
	"github.com/racedraw/racedraw/pkg/core"
)

// Live is the running session.
type Live interface {
	Status() session.Status
	Snapshot() (race.Snapshot, bool)
	Tournament() *tournament.Tournament
}

// Archive reads recorded tournaments back.
type Archive interface {
	LoadTournament(uuid string) (core.Tournament, error)
	RaceResults(uuid string) ([]model.RaceResult, error)
}

const (
	// DefaultLiveInterval is how often the live feed checks for a new frame.
	DefaultLiveInterval = 100 * time.Millisecond
	writeWait           = 10 * time.Second
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Server routes the API. Archive may be nil.
type Server struct {
	live    Live
	archive Archive
	log     *slog.Logger
	router  *mux.Router

	liveInterval time.Duration
	// closed on shutdown; hijacked live connections are not tracked by http.Server
	quit     chan struct{}
	quitOnce sync.Once
}

// New builds the router.
func New(live Live, archive Archive, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		live:         live,
		archive:      archive,
		log:          log.With("component", "httpapi"),
		liveInterval: DefaultLiveInterval,
		quit:         make(chan struct{}),
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/ranking", s.handleRanking).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/live", s.handleLive).Methods(http.MethodGet)
	api.HandleFunc("/tournaments/{id}", s.handleTournament).Methods(http.MethodGet)
	s.router = r
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on address until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	s.log.Info("Status API listening", "address", address)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		s.quitOnce.Do(func() { close(s.quit) })
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type placementJSON struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	Round         int    `json:"round"`
	Resolution    string `json:"resolution"`
}

type raceJSON struct {
	Round      int    `json:"round"`
	Racers     int    `json:"racers"`
	Winner     string `json:"winner"`
	Resolution string `json:"resolution"`
	Knockouts  int    `json:"knockouts"`
	DurationMs int64  `json:"durationMs"`
}

type racerJSON struct {
	ParticipantID string  `json:"participantId"`
	Name          string  `json:"name"`
	Lane          int     `json:"lane"`
	Position      float64 `json:"position"`
	Lateral       float64 `json:"lateral"`
	Speed         float64 `json:"speed"`
	Visual        string  `json:"visual"`
	Finished      bool    `json:"finished"`
	KnockedOut    bool    `json:"knockedOut"`
}

type hazardJSON struct {
	Position float64 `json:"position"`
	Lateral  float64 `json:"lateral"`
	Size     float64 `json:"size"`
}

type snapshotJSON struct {
	Tick      uint64       `json:"tick"`
	ElapsedMs int64        `json:"elapsedMs"`
	LaneCount int          `json:"laneCount"`
	Phase     string       `json:"phase"`
	Racers    []racerJSON  `json:"racers"`
	Hazards   []hazardJSON `json:"hazards"`
}

type tournamentJSON struct {
	ID           string             `json:"id"`
	Mode         string             `json:"mode"`
	StartedAt    time.Time          `json:"startedAt"`
	EndedAt      *time.Time         `json:"endedAt,omitempty"`
	Participants []string           `json:"participants"`
	Ranking      []placementJSON    `json:"ranking"`
	Races        []model.RaceResult `json:"races"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.live.Status())
}

func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	ranking := s.live.Tournament().Ranking()
	out := make([]placementJSON, 0, len(ranking))
	for _, p := range ranking {
		out = append(out, placementJSON{
			Rank:          p.Rank,
			ParticipantID: p.Participant.ID,
			Name:          p.Participant.Name,
			Round:         p.Round,
			Resolution:    p.Resolution.String(),
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history := s.live.Tournament().History()
	out := make([]raceJSON, 0, len(history))
	for _, h := range history {
		out = append(out, raceJSON{
			Round:      h.Round,
			Racers:     h.Racers,
			Winner:     h.Winner.Name,
			Resolution: h.Resolution.String(),
			Knockouts:  h.Knockouts,
			DurationMs: h.Duration.Milliseconds(),
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.live.Snapshot()
	if !ok {
		s.writeError(w, http.StatusNotFound, "no race has started yet")
		return
	}
	s.writeJSON(w, http.StatusOK, toSnapshotJSON(snap))
}

type liveMessage struct {
	Status   session.Status `json:"status"`
	Snapshot snapshotJSON   `json:"snapshot"`
}

// handleLive upgrades to a websocket and pushes every new frame, sampled at
// liveInterval, until the client goes away or the server shuts down.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Live upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// the client never sends anything; reading detects when it leaves
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.liveInterval)
	defer ticker.Stop()

	var (
		sent      bool
		lastRound int
		lastTick  uint64
	)
	for {
		select {
		case <-s.quit:
			_ = conn.WriteControl(ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
			return
		case <-gone:
			return
		case <-ticker.C:
			snap, ok := s.live.Snapshot()
			if !ok {
				continue
			}
			st := s.live.Status()
			if sent && st.Round == lastRound && snap.Tick == lastTick {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(liveMessage{Status: st, Snapshot: toSnapshotJSON(snap)}); err != nil {
				s.log.Debug("Live client dropped", "error", err)
				return
			}
			sent, lastRound, lastTick = true, st.Round, snap.Tick
		}
	}
}

func toSnapshotJSON(snap race.Snapshot) snapshotJSON {
	out := snapshotJSON{
		Tick:      snap.Tick,
		ElapsedMs: snap.Elapsed.Milliseconds(),
		LaneCount: snap.LaneCount,
		Phase:     snap.Phase.String(),
		Racers:    make([]racerJSON, 0, len(snap.Racers)),
		Hazards:   make([]hazardJSON, 0, len(snap.Hazards)),
	}
	for _, rc := range snap.Racers {
		out.Racers = append(out.Racers, racerJSON{
			ParticipantID: rc.Participant.ID,
			Name:          rc.Participant.Name,
			Lane:          rc.Slot,
			Position:      rc.Position,
			Lateral:       rc.Lateral,
			Speed:         rc.Speed,
			Visual:        rc.Visual.String(),
			Finished:      rc.Finished,
			KnockedOut:    rc.KnockedOut,
		})
	}
	for _, h := range snap.Hazards {
		out.Hazards = append(out.Hazards, hazardJSON{Position: h.Position, Lateral: h.Lateral, Size: h.Size})
	}
	return out
}

func (s *Server) handleTournament(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.writeError(w, http.StatusNotImplemented, "no database backend configured")
		return
	}
	id := mux.Vars(r)["id"]

	t, err := s.archive.LoadTournament(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.writeError(w, http.StatusNotFound, "tournament not found")
		return
	}
	if err != nil {
		s.log.Error("Failed to load tournament", "tournament", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load tournament")
		return
	}
	results, err := s.archive.RaceResults(id)
	if err != nil {
		s.log.Error("Failed to load race results", "tournament", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load race results")
		return
	}

	out := tournamentJSON{
		ID:           t.ID,
		Mode:         t.Mode,
		StartedAt:    t.StartedAt,
		Participants: make([]string, 0, len(t.Participants)),
		Ranking:      make([]placementJSON, 0, len(t.Ranking)),
		Races:        results,
	}
	if !t.EndedAt.IsZero() {
		out.EndedAt = &t.EndedAt
	}
	for _, p := range t.Participants {
		out.Participants = append(out.Participants, p.Name)
	}
	for _, p := range t.Ranking {
		out.Ranking = append(out.Ranking, placementJSON{
			Rank:          p.Rank,
			ParticipantID: p.ParticipantID,
			Name:          p.Name,
			Round:         p.Round,
			Resolution:    p.Resolution,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("Failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
