package influx

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racedraw/racedraw/pkg/core"
)

func TestConnect_Disabled(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("influx.enabled", false)

	m := NewManager(zerolog.Nop(), filepath.Join(t.TempDir(), "influx.gz"))
	assert.ErrorIs(t, m.Connect(), ErrDisabled)
	assert.False(t, m.IsValid)
}

func TestWritePoint_NoBackend(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	err := m.WritePoint(BucketRaces, influxdb2_write.NewPointWithMeasurement("x"))
	assert.Error(t, err)
}

func TestWritePoint_Backup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "influx_backup.log.gz")
	m := NewManager(zerolog.Nop(), path)
	require.NoError(t, m.OpenBackup())
	require.NoError(t, m.OpenBackup(), "reopening is a no-op")

	res := core.RaceResult{
		TournamentID: "t-1",
		Round:        2,
		Racers:       4,
		Knockouts:    1,
		Elapsed:      7500 * time.Millisecond,
		Resolution:   "finish",
	}
	require.NoError(t, m.WritePoint(BucketRaces, RaceResultPoint(res, "winner")))
	require.NoError(t, m.WritePoint(BucketRaces, KnockoutPoint(core.Knockout{TournamentID: "t-1", Round: 2, Cause: "collision"})))
	require.NoError(t, m.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "race_result,"))
	assert.Contains(t, lines[0], "resolution=finish")
	assert.Contains(t, lines[0], "duration_ms=7500i")
	assert.True(t, strings.HasPrefix(lines[1], "knockout,cause=collision"))
}

func TestFrameTimingPoint(t *testing.T) {
	p := FrameTimingPoint("t-1", 1, 60, 3*time.Millisecond)
	line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	assert.Contains(t, line, "frame_timing,tournament=t-1")
	assert.Contains(t, line, "frames=60i")
	assert.Contains(t, line, "per_frame=50")

	// no division by zero on an empty batch
	p = FrameTimingPoint("t-1", 1, 0, time.Millisecond)
	assert.Contains(t, influxdb2_write.PointToLineProtocol(p, time.Nanosecond), "per_frame=1000")
}
