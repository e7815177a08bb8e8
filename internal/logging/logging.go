package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const sessionStamp = "20060102_150405"

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, name string, sessionStart time.Time) string {
	return filepath.Join(logsDir, fmt.Sprintf("%s.%s.log", name, sessionStart.Format(sessionStamp)))
}

// OpenLogFile creates logsDir and opens the session log file in it. A file
// left over from a session with the same start second is kept as <path>.old.
func OpenLogFile(logsDir, name string, sessionStart time.Time) (*os.File, error) {
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating logs dir: %w", err)
	}
	path := LogFilePath(logsDir, name, sessionStart)
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".old"); err != nil {
			return nil, fmt.Errorf("rotating %s: %w", path, err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

// OpenLogFileOrDiscard is OpenLogFile for callers that keep running without
// a log file. The failure is reported on stderr.
func OpenLogFileOrDiscard(logsDir, name string, sessionStart time.Time) (io.Writer, func()) {
	f, err := OpenLogFile(logsDir, name, sessionStart)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		return io.Discard, func() {}
	}
	return f, func() { _ = f.Close() }
}
