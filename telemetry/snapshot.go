package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TickSnapshotVersion is incremented when the format changes.
const TickSnapshotVersion = 1

// TickSnapshot wraps a serialized physics request so a problematic tick can
// be replayed offline. Data holds the payload verbatim; the envelope stays
// payload-agnostic so this package does not depend on the worker wire types.
type TickSnapshot struct {
	Version int             `json:"version"`
	Tick    int64           `json:"tick"`
	SavedAt time.Time       `json:"saved_at"`
	Data    json.RawMessage `json:"data"`
}

// SaveTickSnapshot writes payload to dir as a versioned JSON snapshot.
// Returns the filepath where it was saved.
func SaveTickSnapshot(dir string, tick int64, payload any) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot payload: %w", err)
	}

	snapshot := TickSnapshot{
		Version: TickSnapshotVersion,
		Tick:    tick,
		SavedAt: time.Now().UTC(),
		Data:    data,
	}

	out, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("tick_%09d.json", tick))
	if err := os.WriteFile(path, out, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadTickSnapshot reads a snapshot from disk and unmarshals its payload
// into payload (pass a pointer). The envelope is returned for its metadata.
func LoadTickSnapshot(path string, payload any) (TickSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TickSnapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot TickSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return TickSnapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != TickSnapshotVersion {
		return TickSnapshot{}, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, TickSnapshotVersion)
	}

	if payload != nil {
		if err := json.Unmarshal(snapshot.Data, payload); err != nil {
			return TickSnapshot{}, fmt.Errorf("unmarshal snapshot payload: %w", err)
		}
	}

	return snapshot, nil
}
