// Package gormstorage implements the storage.Backend interface using GORM
// with internal queues and a background DB writer goroutine.
package gormstorage

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/racedraw/racedraw/internal/logging"
	"github.com/racedraw/racedraw/internal/model"
	"github.com/racedraw/racedraw/internal/model/convert"
	"github.com/racedraw/racedraw/internal/queue"
	"github.com/racedraw/racedraw/pkg/core"
)

const (
	// DefaultFlushInterval is how often queued frames are written.
	DefaultFlushInterval = 2 * time.Second
	// maxQueuedStates bounds the frame buffer while the DB is unreachable.
	maxQueuedStates = 500_000
)

// ErrNoTournament is returned when a record arrives before StartTournament.
var ErrNoTournament = errors.New("no tournament started")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	LogManager    *logging.SlogManager
	FlushInterval time.Duration
}

// queues holds the high-volume rows that are written in batches.
type queues struct {
	RacerStates *queue.Queue[model.RacerState]
	Knockouts   *queue.Queue[model.Knockout]
}

func newQueues() *queues {
	return &queues{
		RacerStates: queue.NewBounded[model.RacerState](maxQueuedStates),
		Knockouts:   queue.New[model.Knockout](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
// Low-volume rows (tournaments, races, results, placements) are written
// synchronously so they get their IDs right away.
type Backend struct {
	deps         Dependencies
	queues       *queues
	tournamentID atomic.Uint64

	flushMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if b.deps.DB == nil {
		close(b.done)
		return nil
	}

	b.deps.LogManager.WriteLog("gorm:Init", "Migrating schema", "INFO")
	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		close(b.done)
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	go b.writer()
	return nil
}

// Close stops the DB writer goroutine and writes whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	select {
	case <-b.stopChan:
		return nil
	default:
	}
	close(b.stopChan)
	<-b.done
	return b.Flush()
}

// StartTournament inserts the tournament and its roster.
func (b *Backend) StartTournament(t *core.Tournament) error {
	if b.deps.DB == nil {
		return nil
	}

	row := convert.CoreToTournament(*t)
	err := b.deps.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Participants", "Races", "Placements").Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert tournament: %w", err)
		}
		participants := convert.CoreToParticipants(t.Participants, row.ID)
		if len(participants) == 0 {
			return nil
		}
		if err := tx.Create(&participants).Error; err != nil {
			return fmt.Errorf("failed to insert participants: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	b.tournamentID.Store(uint64(row.ID))
	return nil
}

// EndTournament flushes pending rows and stores the end time and ranking.
func (b *Backend) EndTournament(t *core.Tournament) error {
	if b.deps.DB == nil {
		return nil
	}
	id := uint(b.tournamentID.Load())
	if id == 0 {
		return ErrNoTournament
	}
	if err := b.Flush(); err != nil {
		return err
	}

	row := convert.CoreToTournament(*t)
	err := b.deps.DB.Model(&model.Tournament{}).Where("id = ?", id).Updates(map[string]any{
		"ended_at": row.EndedAt,
		"ranking":  row.Ranking,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to close tournament: %w", err)
	}
	return nil
}

// StartRace inserts the race row with its entrants and profiles.
func (b *Backend) StartRace(r *core.Race) error {
	if b.deps.DB == nil {
		return nil
	}
	id := uint(b.tournamentID.Load())
	if id == 0 {
		return ErrNoTournament
	}
	row := convert.CoreToRace(*r, id)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert race %d: %w", r.Round, err)
	}
	return nil
}

// RecordRacerState converts and queues a sampled frame.
func (b *Backend) RecordRacerState(s *core.RacerState) error {
	b.queues.RacerStates.Push(convert.CoreToRacerState(*s, 0))
	return nil
}

// RecordKnockout converts and queues a knockout.
func (b *Backend) RecordKnockout(k *core.Knockout) error {
	b.queues.Knockouts.Push(convert.CoreToKnockout(*k, 0))
	return nil
}

// RecordRaceResult inserts the result of a race.
func (b *Backend) RecordRaceResult(r *core.RaceResult) error {
	if b.deps.DB == nil {
		return nil
	}
	id := uint(b.tournamentID.Load())
	if id == 0 {
		return ErrNoTournament
	}
	row := convert.CoreToRaceResult(*r, id)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert race result %d: %w", r.Round, err)
	}
	return nil
}

// RecordPlacement inserts a final rank.
func (b *Backend) RecordPlacement(p *core.Placement) error {
	if b.deps.DB == nil {
		return nil
	}
	id := uint(b.tournamentID.Load())
	if id == 0 {
		return ErrNoTournament
	}
	row := convert.CoreToPlacement(*p, id)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert placement: %w", err)
	}
	return nil
}

// LoadTournament reads a stored tournament with its roster and placements.
func (b *Backend) LoadTournament(uuid string) (core.Tournament, error) {
	if b.deps.DB == nil {
		return core.Tournament{}, gorm.ErrRecordNotFound
	}
	var row model.Tournament
	err := b.deps.DB.
		Preload("Participants").
		Preload("Placements").
		Where("uuid = ?", uuid).
		First(&row).Error
	if err != nil {
		return core.Tournament{}, err
	}
	return convert.TournamentToCore(row), nil
}

// RaceResults returns the stored results of a tournament ordered by round.
func (b *Backend) RaceResults(uuid string) ([]model.RaceResult, error) {
	if b.deps.DB == nil {
		return nil, gorm.ErrRecordNotFound
	}
	var results []model.RaceResult
	err := b.deps.DB.
		Joins("JOIN tournaments ON tournaments.id = race_results.tournament_id").
		Where("tournaments.uuid = ?", uuid).
		Order("race_results.round").
		Find(&results).Error
	return results, err
}

// Flush writes all queued rows now.
func (b *Backend) Flush() error {
	if b.deps.DB == nil {
		return nil
	}
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	tournamentID := uint(b.tournamentID.Load())
	log := b.deps.LogManager.WriteLog

	errs := []error{
		writeQueue(b.deps.DB, b.queues.RacerStates, "racer states", log, func(items []model.RacerState) {
			for i := range items {
				items[i].TournamentID = tournamentID
			}
		}),
		writeQueue(b.deps.DB, b.queues.Knockouts, "knockouts", log, func(items []model.Knockout) {
			for i := range items {
				items[i].TournamentID = tournamentID
			}
		}),
	}
	return errors.Join(errs...)
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the items go back on the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log func(string, string, string), prepare func([]T)) error {
	if q.Empty() {
		return nil
	}

	tx := db.Begin()
	items := q.Drain()
	if prepare != nil {
		prepare(items)
	}
	if err := tx.CreateInBatches(&items, 1000).Error; err != nil {
		log(":DB:WRITER:", fmt.Sprintf("Error creating %s: %v", name, err), "ERROR")
		tx.Rollback()
		q.Requeue(items...)
		return fmt.Errorf("writing %s: %w", name, err)
	}

	return tx.Commit().Error
}

// writer periodically drains the queues into the DB.
func (b *Backend) writer() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	var reported uint64

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			_ = b.Flush()
			if n := b.queues.RacerStates.Dropped(); n > reported {
				b.deps.LogManager.WriteLog(":DB:WRITER:", fmt.Sprintf("%d racer states dropped so far", n), "WARN")
				reported = n
			}
		}
	}
}
