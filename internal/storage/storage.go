// internal/storage/storage.go
package storage

import "github.com/racedraw/racedraw/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Tournament management
	StartTournament(t *core.Tournament) error
	EndTournament(t *core.Tournament) error

	// Race recording
	StartRace(r *core.Race) error
	RecordRacerState(s *core.RacerState) error
	RecordKnockout(k *core.Knockout) error
	RecordRaceResult(r *core.RaceResult) error
	RecordPlacement(p *core.Placement) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}
