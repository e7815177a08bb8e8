package logging

import (
	"fmt"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGELFHandler sends JSON records to a Graylog input over UDP.
// The returned writer must be closed on shutdown.
func NewGELFHandler(address, level string) (slog.Handler, *gelf.Writer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GELF writer for %s: %w", address, err)
	}
	w.Facility = "racedraw"
	return slog.NewJSONHandler(w, handlerOptions(parseLevel(level))), w, nil
}
