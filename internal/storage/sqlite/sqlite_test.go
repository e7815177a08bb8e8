package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/racedraw/racedraw/internal/database"
	"github.com/racedraw/racedraw/internal/model"
	"github.com/racedraw/racedraw/internal/storage"
	"github.com/racedraw/racedraw/pkg/core"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func TestInitClose_NoDump(t *testing.T) {
	b, err := New(Config{}, database.NewManager(zerolog.Nop()), nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	require.NoError(t, b.Close())
}

func TestClose_DumpsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "racedraw.db")
	b, err := New(Config{DumpPath: path, DumpInterval: time.Hour, FlushInterval: time.Hour}, database.NewManager(zerolog.Nop()), nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())

	tour := &core.Tournament{
		ID:           "t-dump",
		Mode:         "loser",
		StartedAt:    time.Now().UTC(),
		Participants: []core.Participant{{ID: "p1", Name: "Ann"}, {ID: "p2", Name: "Bob", Lane: 1}},
	}
	require.NoError(t, b.StartTournament(tour))
	require.NoError(t, b.RecordRacerState(&core.RacerState{Round: 1, Tick: 6, ParticipantID: "p1"}))
	require.NoError(t, b.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)

	disk, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	require.NoError(t, err)

	var got model.Tournament
	require.NoError(t, disk.Preload("Participants").First(&got, "uuid = ?", "t-dump").Error)
	assert.Equal(t, "loser", got.Mode)
	assert.Len(t, got.Participants, 2)

	var states int64
	disk.Model(&model.RacerState{}).Count(&states)
	assert.Equal(t, int64(1), states)
}

func TestDumpLoop_WritesPeriodically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "periodic.db")
	b, err := New(Config{DumpPath: path, DumpInterval: 10 * time.Millisecond}, database.NewManager(zerolog.Nop()), nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 10*time.Millisecond)
}
