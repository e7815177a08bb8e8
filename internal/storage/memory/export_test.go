// internal/storage/memory/export_test.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/racedraw/racedraw/internal/config"
	"github.com/racedraw/racedraw/pkg/core"
)

func recordTournament(t *testing.T, b *Backend) {
	t.Helper()

	_ = b.StartRace(&core.Race{
		Round:     2,
		LaneCount: 3,
		Progress:  1.0 / 3,
		Entrants: []core.Entrant{
			{ParticipantID: "a", Lane: 0, Profile: []core.Segment{{Speed: 300, Length: 1000}}},
			{ParticipantID: "c", Lane: 2, Profile: []core.Segment{{Speed: 200, Length: 500}, {Speed: 220, Length: 500}}},
		},
	})
	_ = b.StartRace(&core.Race{Round: 1, LaneCount: 3})

	_ = b.RecordRacerState(&core.RacerState{
		Round: 2, Tick: 6, Elapsed: 100 * time.Millisecond, Lane: 0,
		Position: 30, Lateral: 0.25, Speed: 300, Visual: "normal",
	})
	_ = b.RecordKnockout(&core.Knockout{Round: 2, Lane: 2, Cause: "hazard", Position: 20, Elapsed: 90 * time.Millisecond})
	_ = b.RecordRaceResult(&core.RaceResult{
		Round: 2, WinnerID: "a", Distance: 1005, Elapsed: 3340 * time.Millisecond,
		Resolution: "finish", Knockouts: 1,
	})

	end := testTournament()
	end.EndedAt = end.StartedAt.Add(90 * time.Second)
	end.Ranking = []core.Placement{
		{Rank: 2, ParticipantID: "a", Name: "Ann", Round: 2, Resolution: "finish"},
		{Rank: 1, ParticipantID: "b", Name: "Bob", Round: 1, Resolution: "finish"},
		{Rank: 3, ParticipantID: "c", Name: "Cid", Round: 3, Resolution: "walkover"},
	}
	if err := b.EndTournament(end); err != nil {
		t.Fatalf("EndTournament failed: %v", err)
	}
}

func TestBuildExport(t *testing.T) {
	b := startedBackend(t, config.MemoryConfig{OutputDir: t.TempDir()})
	recordTournament(t, b)

	export := b.buildExport()

	if export.Mode != "winner" {
		t.Errorf("expected mode winner, got %s", export.Mode)
	}
	if len(export.Participants) != 3 || export.Participants[2].Lane != 2 {
		t.Errorf("unexpected participants: %+v", export.Participants)
	}
	if len(export.Races) != 2 {
		t.Fatalf("expected 2 races, got %d", len(export.Races))
	}
	if export.Races[0].Round != 1 || export.Races[1].Round != 2 {
		t.Errorf("races not ordered by round: %d, %d", export.Races[0].Round, export.Races[1].Round)
	}

	race := export.Races[1]
	if len(race.Entrants) != 2 || len(race.Entrants[1].Profile) != 2 {
		t.Errorf("unexpected entrants: %+v", race.Entrants)
	}
	frame := race.Frames[0]
	if frame[0] != uint64(6) || frame[1] != int64(100) || frame[3] != 30.0 || frame[6] != "normal" {
		t.Errorf("unexpected frame row: %v", frame)
	}
	ko := race.Knockouts[0]
	if ko[0] != int64(90) || ko[2] != "hazard" {
		t.Errorf("unexpected knockout row: %v", ko)
	}
	if race.Result == nil || race.Result.ElapsedMs != 3340 {
		t.Errorf("unexpected result: %+v", race.Result)
	}
	if export.Races[0].Result != nil {
		t.Error("round 1 has no recorded result")
	}

	names := []string{}
	for _, p := range export.Ranking {
		names = append(names, p.Name)
	}
	if strings.Join(names, ",") != "Bob,Ann,Cid" {
		t.Errorf("ranking not ordered by rank: %v", names)
	}
}

func TestExportJSON(t *testing.T) {
	dir := t.TempDir()
	b := startedBackend(t, config.MemoryConfig{OutputDir: dir, CompressOutput: false})
	recordTournament(t, b)

	path := b.GetExportedFilePath()
	if filepath.Base(path) != "tournament_20240115_103000_0f8fad5b.json" {
		t.Errorf("unexpected filename %s", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}

	var export TournamentExport
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("failed to parse export: %v", err)
	}
	if len(export.Ranking) != 3 {
		t.Errorf("expected 3 ranked, got %d", len(export.Ranking))
	}
}

func TestExportGzipJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	b := startedBackend(t, config.MemoryConfig{OutputDir: dir, CompressOutput: true})
	recordTournament(t, b)

	path := b.GetExportedFilePath()
	if !strings.HasSuffix(path, ".json.gz") {
		t.Errorf("expected .json.gz suffix, got %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open export: %v", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("failed to open gzip: %v", err)
	}
	defer gz.Close()

	var export TournamentExport
	if err := json.NewDecoder(gz).Decode(&export); err != nil {
		t.Fatalf("failed to decode export: %v", err)
	}
	if export.ID != testTournament().ID {
		t.Errorf("unexpected id %s", export.ID)
	}
}

func TestExportMetadataAfterEnd(t *testing.T) {
	b := startedBackend(t, config.MemoryConfig{OutputDir: t.TempDir()})
	recordTournament(t, b)

	meta := b.GetExportMetadata()
	if meta.Duration != 90 {
		t.Errorf("expected 90s, got %v", meta.Duration)
	}
	if meta.Winner != "Bob" {
		t.Errorf("expected Bob, got %s", meta.Winner)
	}
}
