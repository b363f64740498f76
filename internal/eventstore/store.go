// package eventstore persists the append-only event log. Implementations
// never update or delete individual rows; the only destructive operation is
// an explicit bulk Clear.
package eventstore

import (
	"context"
	"errors"
	"sort"

	"github.com/dossier-hq/dossier/internal/event"
)

var (
	// ErrDuplicateID is returned when an event id already exists. The
	// original record is always preserved.
	ErrDuplicateID = errors.New("duplicate event id")

	// ErrNotInitialized is returned for any operation before Initialize.
	ErrNotInitialized = errors.New("event store not initialized")

	// ErrInvalidFormat is returned by Import for malformed snapshots.
	ErrInvalidFormat = errors.New("invalid snapshot format")
)

// Store is the narrow persistence abstraction over the ordered event log.
// caseID == "" selects all cases.
type Store interface {
	Initialize(ctx context.Context) error
	SaveEvent(ctx context.Context, ev event.Event) error
	Events(ctx context.Context, caseID string) ([]event.Event, error)
	EventCount(ctx context.Context, caseID string) (int, error)
	CaseIDs(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
	Ping(ctx context.Context) error
}

// SortEvents orders events by occurredAt, ties broken by insertion order.
// Every reducer fold and every store read path goes through this ordering.
func SortEvents(events []event.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].OccurredAt.Equal(events[j].OccurredAt) {
			return events[i].Seq < events[j].Seq
		}
		return events[i].OccurredAt.Before(events[j].OccurredAt)
	})
}
