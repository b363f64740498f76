// package casemanager owns the canonical append path for domain events.
// Every write — user command, import, or sync merge — funnels through one
// Manager so the log stays serialized and subscribers observe every event.
package casemanager

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dossier-hq/dossier/internal/casestate"
	"github.com/dossier-hq/dossier/internal/event"
	"github.com/dossier-hq/dossier/internal/eventstore"
	"github.com/dossier-hq/dossier/internal/permission"
)

// Subscriber receives each successfully stored event. Called synchronously
// on the append path; long-running work belongs in the subscriber's own
// goroutine.
type Subscriber func(ev event.Event)

// AppendInput is an event before the manager assigns id and timestamp.
type AppendInput struct {
	Type      event.Type
	CaseID    string
	ActorID   string
	ActorRole string
	Payload   json.RawMessage
}

// Summary is the per-case listing row derived from the event set.
type Summary struct {
	CaseID          string    `json:"caseId"`
	Title           string    `json:"title"`
	Status          string    `json:"status"`
	Severity        string    `json:"severity,omitempty"`
	EvidenceCount   int       `json:"evidenceCount"`
	ConnectionCount int       `json:"connectionCount"`
	EventCount      int       `json:"eventCount"`
	LastActivityAt  time.Time `json:"lastActivityAt"`
}

type Manager struct {
	store eventstore.Store

	// appendMu is the single serialization point for writes: concurrent
	// appends for the same case are never applied out of order.
	appendMu sync.Mutex

	subMu   sync.RWMutex
	subs    map[int]Subscriber
	nextSub int

	nowFunc func() time.Time
}

// New constructs a Manager over an initialized store.
func New(store eventstore.Store) *Manager {
	return &Manager{
		store:   store,
		subs:    map[int]Subscriber{},
		nowFunc: func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock; tests use this to control occurredAt.
func (m *Manager) SetNowFunc(f func() time.Time) { m.nowFunc = f }

// Subscribe registers a subscriber and returns its detach function.
func (m *Manager) Subscribe(fn Subscriber) func() {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subMu.Unlock()
	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *Manager) notify(ev event.Event) {
	m.subMu.RLock()
	subs := make([]Subscriber, 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.subMu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// Append assigns id and timestamp, validates, stores and fans the event out
// to subscribers. Store-level failures surface as typed errors
// (eventstore.ErrDuplicateID, eventstore.ErrNotInitialized).
func (m *Manager) Append(ctx context.Context, in AppendInput) (event.Event, error) {
	ev := event.Event{
		ID:         event.NewID(),
		Type:       in.Type,
		CaseID:     in.CaseID,
		ActorID:    in.ActorID,
		ActorRole:  in.ActorRole,
		OccurredAt: m.nowFunc(),
		Payload:    in.Payload,
	}
	if err := event.Validate(ev); err != nil {
		return event.Event{}, err
	}

	m.appendMu.Lock()
	err := m.store.SaveEvent(ctx, ev)
	m.appendMu.Unlock()
	if err != nil {
		return event.Event{}, err
	}

	m.notify(ev)
	return ev, nil
}

// Ingest stores an event that already carries id and timestamp — the merge
// path for pull sync and snapshot import. Identical dedup and notification
// semantics as Append.
func (m *Manager) Ingest(ctx context.Context, ev event.Event) error {
	if err := event.Validate(ev); err != nil {
		return err
	}
	m.appendMu.Lock()
	err := m.store.SaveEvent(ctx, ev)
	m.appendMu.Unlock()
	if err != nil {
		return err
	}
	m.notify(ev)
	return nil
}

// Events returns the ordered event log for one case.
func (m *Manager) Events(ctx context.Context, caseID string) ([]event.Event, error) {
	return m.store.Events(ctx, caseID)
}

// CaseState re-derives the aggregate for a case as seen by role.
func (m *Manager) CaseState(ctx context.Context, caseID, role string) (casestate.CaseState, error) {
	events, err := m.store.Events(ctx, caseID)
	if err != nil {
		return casestate.CaseState{}, err
	}
	state := casestate.Reduce(events)
	if state.ID == "" {
		state.ID = caseID
	}
	state.Permissions = permission.Snapshot(role, state)
	return state, nil
}

// Summaries derives one row per distinct case id in the store.
func (m *Manager) Summaries(ctx context.Context) ([]Summary, error) {
	ids, err := m.store.CaseIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		events, err := m.store.Events(ctx, id)
		if err != nil {
			return nil, err
		}
		state := casestate.Reduce(events)
		out = append(out, Summary{
			CaseID:          id,
			Title:           state.Title,
			Status:          state.Status,
			Severity:        state.Severity,
			EvidenceCount:   state.EvidenceCount,
			ConnectionCount: state.ConnectionCount,
			EventCount:      state.EventCount,
			LastActivityAt:  state.LastActivityAt,
		})
	}
	return out, nil
}

// Store exposes the underlying store for export/import and sync backfill.
func (m *Manager) Store() eventstore.Store { return m.store }
