package monitor

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racedraw/racedraw/internal/influx"
	"github.com/racedraw/racedraw/internal/session"
)

type fakeSession struct {
	calls atomic.Int32
}

func (f *fakeSession) Status() session.Status {
	n := int(f.calls.Add(1))
	return session.Status{TournamentID: "t-1", Mode: "winner", Round: n, Participants: 4, Remaining: 3}
}

func readStatus(t *testing.T, path string) Report {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var r Report
	require.NoError(t, json.Unmarshal(data, &r))
	return r
}

func TestNewService_Defaults(t *testing.T) {
	s := NewService(Dependencies{Session: &fakeSession{}})
	assert.Equal(t, DefaultInterval, s.deps.Interval)
	assert.NotNil(t, s.deps.LogManager)
	assert.False(t, s.IsRunning())
}

func TestGetProgramStatus(t *testing.T) {
	s := NewService(Dependencies{Session: &fakeSession{}})
	r := s.GetProgramStatus()

	assert.Equal(t, "t-1", r.Session.TournamentID)
	assert.Positive(t, r.Goroutines)
	assert.Positive(t, r.HeapBytes)
	assert.WithinDuration(t, time.Now(), r.Time, time.Second)
}

func TestReport_WritesStatusFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	s := NewService(Dependencies{Session: &fakeSession{}, StatusPath: path})

	require.NoError(t, s.Report())
	require.NoError(t, s.Report())

	r := readStatus(t, path)
	assert.Equal(t, 2, r.Session.Round, "file holds only the latest report")
	assert.Equal(t, 3, r.Session.Remaining)
}

func TestReport_BadPath(t *testing.T) {
	s := NewService(Dependencies{
		Session:    &fakeSession{},
		StatusPath: filepath.Join(t.TempDir(), "missing", "status.json"),
	})
	assert.Error(t, s.Report())
}

func TestReport_InfluxBackup(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "influx_backup.log.gz")
	m := influx.NewManager(zerolog.Nop(), backup)
	require.NoError(t, m.OpenBackup())

	s := NewService(Dependencies{Session: &fakeSession{}, Influx: m})
	require.NoError(t, s.Report())
	require.NoError(t, m.Close())

	f, err := os.Open(backup)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)

	line := strings.TrimSpace(string(data))
	assert.True(t, strings.HasPrefix(line, "status,tournament=t-1 "), line)
	assert.Contains(t, line, "remaining=3i")
}

func TestStartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	src := &fakeSession{}
	s := NewService(Dependencies{Session: src, StatusPath: path, Interval: 5 * time.Millisecond})

	require.NoError(t, s.Start())
	require.NoError(t, s.Start(), "second start is a no-op")
	assert.True(t, s.IsRunning())

	require.Eventually(t, func() bool { return src.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	final := src.calls.Load()
	assert.Equal(t, int(final), readStatus(t, path).Session.Round, "stop writes a final report")

	s.Stop()
	assert.Equal(t, final, src.calls.Load(), "stopping twice reports nothing")
}
