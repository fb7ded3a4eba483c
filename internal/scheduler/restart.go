package scheduler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// RestartMarker records where a restart was requested so the next process
// can report completion there.
type RestartMarker struct {
	ChatID    int64
	MessageID int
}

// WriteRestartMarker persists the marker at path as two lines: chat id, message id.
func WriteRestartMarker(path string, marker RestartMarker) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create marker dir: %w", err)
	}
	data := fmt.Sprintf("%d\n%d", marker.ChatID, marker.MessageID)
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		return fmt.Errorf("write restart marker: %w", err)
	}
	return nil
}

// ConsumeRestartMarker reads and removes the marker. A missing marker
// returns ok=false with no error. A corrupt marker is removed and reported.
func ConsumeRestartMarker(path string) (RestartMarker, bool, error) {
	var marker RestartMarker
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return marker, false, nil
	}
	if err != nil {
		return marker, false, fmt.Errorf("read restart marker: %w", err)
	}
	if rmErr := os.Remove(path); rmErr != nil {
		return marker, false, fmt.Errorf("remove restart marker: %w", rmErr)
	}

	lines := strings.Fields(string(data))
	if len(lines) != 2 {
		return marker, false, fmt.Errorf("decode restart marker: want 2 fields, got %d", len(lines))
	}
	if marker.ChatID, err = strconv.ParseInt(lines[0], 10, 64); err != nil {
		return marker, false, fmt.Errorf("decode restart marker chat: %w", err)
	}
	if marker.MessageID, err = strconv.Atoi(lines[1]); err != nil {
		return marker, false, fmt.Errorf("decode restart marker message: %w", err)
	}
	return marker, true, nil
}
