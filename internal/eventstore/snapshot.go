package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dossier-hq/dossier/internal/canonical"
	"github.com/dossier-hq/dossier/internal/event"
)

// SnapshotVersion is the persisted export format version.
const SnapshotVersion = "1.0"

// Snapshot is the bit-exact export/import contract:
// { events: Event[], exportedAt: ISO8601, version: string }.
type Snapshot struct {
	Events     []event.Event `json:"events"`
	ExportedAt time.Time     `json:"exportedAt"`
	Version    string        `json:"version"`
}

// Export serializes the full event log as a canonical JSON snapshot.
func Export(ctx context.Context, s Store) ([]byte, error) {
	events, err := s.Events(ctx, "")
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []event.Event{}
	}
	snap := Snapshot{
		Events:     events,
		ExportedAt: time.Now().UTC(),
		Version:    SnapshotVersion,
	}
	return canonical.Marshal(snap)
}

// DecodeSnapshot parses and validates a snapshot payload without touching
// any store. A payload without a well-formed events array, or with any
// invalid event, is rejected whole with ErrInvalidFormat so a bad snapshot
// never half-applies.
func DecodeSnapshot(data []byte) ([]event.Event, error) {
	var probe struct {
		Events *json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if probe.Events == nil {
		return nil, fmt.Errorf("%w: missing events array", ErrInvalidFormat)
	}
	var events []event.Event
	if err := json.Unmarshal(*probe.Events, &events); err != nil {
		return nil, fmt.Errorf("%w: events is not an array of events: %v", ErrInvalidFormat, err)
	}
	for i, ev := range events {
		if ev.ID == "" {
			return nil, fmt.Errorf("%w: event %d missing id", ErrInvalidFormat, i)
		}
		if err := event.Validate(ev); err != nil {
			return nil, fmt.Errorf("%w: event %d: %v", ErrInvalidFormat, i, err)
		}
	}
	return events, nil
}

// Import validates a snapshot payload and appends its events through the
// store. Events already present (by id) are skipped.
func Import(ctx context.Context, s Store, data []byte) error {
	events, err := DecodeSnapshot(data)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := s.SaveEvent(ctx, ev); err != nil {
			if errors.Is(err, ErrDuplicateID) {
				continue
			}
			return err
		}
	}
	return nil
}
