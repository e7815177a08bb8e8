package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/racedraw/racedraw/internal/dispatcher"
	"github.com/racedraw/racedraw/internal/influx"
	"github.com/racedraw/racedraw/internal/storage"
	"github.com/racedraw/racedraw/pkg/core"
)

// Commands understood by the handlers registered in RegisterHandlers.
const (
	CmdTournamentStart = ":TOURNAMENT:START:"
	CmdTournamentEnd   = ":TOURNAMENT:END:"
	CmdPlacement       = ":TOURNAMENT:PLACEMENT:"
	CmdRaceStart       = ":RACE:START:"
	CmdRaceFrame       = ":RACE:FRAME:"
	CmdRaceKnockout    = ":RACE:KNOCKOUT:"
	CmdRaceResult      = ":RACE:WINNER:"
	CmdRaceTiming      = ":RACE:TIMING:"
)

// FrameTiming is the payload of CmdRaceTiming: how many frames a race drew
// and how long it ran.
type FrameTiming struct {
	TournamentID string
	Round        int
	Frames       int
	Wall         time.Duration
}

// RegisterHandlers registers all event handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	m.waiter = d

	// Lifecycle - sync, later records depend on them
	d.Register(CmdTournamentStart, m.handleTournamentStart, dispatcher.Logged())
	d.Register(CmdRaceStart, m.handleRaceStart, dispatcher.Logged())
	d.Register(CmdRaceResult, m.handleRaceResult, dispatcher.Logged())
	d.Register(CmdPlacement, m.handlePlacement, dispatcher.Logged())
	d.Register(CmdTournamentEnd, m.handleTournamentEnd, dispatcher.Logged())

	// High-volume frames - buffered, dropped when the writer falls behind
	d.Register(CmdRaceFrame, m.handleFrame, dispatcher.Buffered(10000), dispatcher.Logged())

	// Knockouts are rare but must not be lost
	d.Register(CmdRaceKnockout, m.handleKnockout, dispatcher.Buffered(1000), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(CmdRaceTiming, m.handleTiming, dispatcher.Buffered(100), dispatcher.Logged())
}

func payload[T any](e dispatcher.Event) (T, error) {
	v, ok := e.Payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s got %T, want %T", ErrBadPayload, e.Command, e.Payload, zero)
	}
	return v, nil
}

func (m *Manager) handleTournamentStart(e dispatcher.Event) (any, error) {
	t, err := payload[core.Tournament](e)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.mode = t.Mode
	m.mu.Unlock()

	if !m.hasBackend() {
		return nil, nil
	}
	if err := m.backend.StartTournament(&t); err != nil {
		return nil, fmt.Errorf("failed to start tournament: %w", err)
	}
	return nil, nil
}

func (m *Manager) handleRaceStart(e dispatcher.Event) (any, error) {
	r, err := payload[core.Race](e)
	if err != nil {
		return nil, err
	}
	if !m.hasBackend() {
		return nil, nil
	}
	if err := m.backend.StartRace(&r); err != nil {
		return nil, fmt.Errorf("failed to start race: %w", err)
	}
	return nil, nil
}

func (m *Manager) handleFrame(e dispatcher.Event) (any, error) {
	states, err := payload[[]core.RacerState](e)
	if err != nil {
		return nil, err
	}
	if !m.hasBackend() {
		return nil, nil
	}
	for i := range states {
		if err := m.backend.RecordRacerState(&states[i]); err != nil {
			return nil, fmt.Errorf("failed to record racer state: %w", err)
		}
	}
	return nil, nil
}

func (m *Manager) handleKnockout(e dispatcher.Event) (any, error) {
	k, err := payload[core.Knockout](e)
	if err != nil {
		return nil, err
	}

	if m.deps.Metrics != nil {
		m.deps.Metrics.Knockout(context.Background(), k.Cause)
	}
	if m.deps.Influx != nil {
		if err := m.deps.Influx.WritePoint(influx.BucketRaces, influx.KnockoutPoint(k)); err != nil {
			m.deps.LogManager.WriteLog(CmdRaceKnockout, fmt.Sprintf("influx: %v", err), "WARN")
		}
	}

	if !m.hasBackend() {
		return nil, nil
	}
	if err := m.backend.RecordKnockout(&k); err != nil {
		return nil, fmt.Errorf("failed to record knockout: %w", err)
	}
	return nil, nil
}

func (m *Manager) handleRaceResult(e dispatcher.Event) (any, error) {
	r, err := payload[core.RaceResult](e)
	if err != nil {
		return nil, err
	}

	if m.deps.Metrics != nil {
		m.deps.Metrics.RaceFinished(context.Background(), r.Resolution, r.Elapsed.Seconds())
	}
	if m.deps.Influx != nil {
		m.mu.RLock()
		mode := m.mode
		m.mu.RUnlock()
		if err := m.deps.Influx.WritePoint(influx.BucketRaces, influx.RaceResultPoint(r, mode)); err != nil {
			m.deps.LogManager.WriteLog(CmdRaceResult, fmt.Sprintf("influx: %v", err), "WARN")
		}
	}

	if !m.hasBackend() {
		return nil, nil
	}
	if err := m.backend.RecordRaceResult(&r); err != nil {
		return nil, fmt.Errorf("failed to record race result: %w", err)
	}
	return nil, nil
}

func (m *Manager) handleTiming(e dispatcher.Event) (any, error) {
	ft, err := payload[FrameTiming](e)
	if err != nil {
		return nil, err
	}
	if m.deps.Influx == nil {
		return nil, nil
	}
	point := influx.FrameTimingPoint(ft.TournamentID, ft.Round, ft.Frames, ft.Wall)
	return nil, m.deps.Influx.WritePoint(influx.BucketPerformance, point)
}

func (m *Manager) handlePlacement(e dispatcher.Event) (any, error) {
	p, err := payload[core.Placement](e)
	if err != nil {
		return nil, err
	}
	if !m.hasBackend() {
		return nil, nil
	}
	if err := m.backend.RecordPlacement(&p); err != nil {
		return nil, fmt.Errorf("failed to record placement: %w", err)
	}
	return nil, nil
}

// handleTournamentEnd waits for buffered frames and knockouts, closes the
// tournament in storage and uploads the export when there is one.
func (m *Manager) handleTournamentEnd(e dispatcher.Event) (any, error) {
	t, err := payload[core.Tournament](e)
	if err != nil {
		return nil, err
	}
	if m.waiter != nil {
		m.waiter.Wait()
	}
	if !m.hasBackend() {
		return nil, nil
	}
	if err := m.backend.EndTournament(&t); err != nil {
		return nil, fmt.Errorf("failed to end tournament: %w", err)
	}

	uploadable, ok := m.backend.(storage.Uploadable)
	if !ok || m.deps.Uploader == nil {
		return nil, nil
	}
	path := uploadable.GetExportedFilePath()
	if path == "" {
		return nil, nil
	}
	if err := m.deps.Uploader.Upload(path, uploadable.GetExportMetadata()); err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", path, err)
	}

	m.mu.Lock()
	m.lastUpload = path
	m.mu.Unlock()
	m.deps.LogManager.WriteLog(CmdTournamentEnd, fmt.Sprintf("Uploaded %s", path), "INFO")
	return path, nil
}
