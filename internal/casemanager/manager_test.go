package casemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dossier-hq/dossier/internal/casestate"
	"github.com/dossier-hq/dossier/internal/event"
	"github.com/dossier-hq/dossier/internal/eventstore"
	"github.com/dossier-hq/dossier/internal/permission"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	store := eventstore.NewMemoryStore()
	require.NoError(t, store.Initialize(context.Background()))
	return New(store)
}

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	m := newManager(t)
	now := time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)
	m.SetNowFunc(func() time.Time { return now })

	ev, err := m.Append(context.Background(), AppendInput{
		Type:      event.TypeCaseCreated,
		CaseID:    "case-9",
		ActorID:   "lestrade",
		ActorRole: event.RoleDetective,
		Payload:   event.MarshalPayload(event.CaseCreatedPayload{Title: "Missing witness"}),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, now, ev.OccurredAt)

	events, err := m.Events(context.Background(), "case-9")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ev.ID, events[0].ID)
}

func TestAppendValidates(t *testing.T) {
	m := newManager(t)
	_, err := m.Append(context.Background(), AppendInput{Type: event.TypeCaseCreated})
	assert.ErrorIs(t, err, event.ErrValidation)
}

func TestAppendSurfacesStoreUnavailable(t *testing.T) {
	m := New(eventstore.NewMemoryStore()) // never initialized
	_, err := m.Append(context.Background(), AppendInput{
		Type:      event.TypeCaseCreated,
		CaseID:    "case-1",
		ActorID:   "holmes",
		ActorRole: event.RoleLead,
	})
	assert.ErrorIs(t, err, eventstore.ErrNotInitialized)
}

func TestIngestDeduplicatesByID(t *testing.T) {
	m := newManager(t)
	ev := event.Event{
		ID:         event.NewID(),
		Type:       event.TypeCaseCreated,
		CaseID:     "case-2",
		ActorID:    "watson",
		ActorRole:  event.RoleDetective,
		OccurredAt: time.Now().UTC(),
	}
	require.NoError(t, m.Ingest(context.Background(), ev))
	err := m.Ingest(context.Background(), ev)
	assert.True(t, errors.Is(err, eventstore.ErrDuplicateID))

	n, err := m.Store().EventCount(context.Background(), "case-2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSubscribersSeeEveryStoredEvent(t *testing.T) {
	m := newManager(t)
	var seen []event.Event
	unsub := m.Subscribe(func(ev event.Event) { seen = append(seen, ev) })

	_, err := m.Append(context.Background(), AppendInput{
		Type: event.TypeCaseCreated, CaseID: "case-3", ActorID: "holmes", ActorRole: event.RoleLead,
	})
	require.NoError(t, err)
	require.Len(t, seen, 1)

	// A failed append must not notify.
	dup := seen[0]
	_ = m.Ingest(context.Background(), dup)
	assert.Len(t, seen, 1)

	unsub()
	_, err = m.Append(context.Background(), AppendInput{
		Type: event.TypeEvidenceAdded, CaseID: "case-3", ActorID: "holmes", ActorRole: event.RoleLead,
		Payload: event.MarshalPayload(event.EvidenceAddedPayload{EvidenceID: "ev-1"}),
	})
	require.NoError(t, err)
	assert.Len(t, seen, 1, "detached subscriber must not be called")
}

func TestCaseStateAttachesPermissionSnapshot(t *testing.T) {
	m := newManager(t)
	_, err := m.Append(context.Background(), AppendInput{
		Type: event.TypeCaseCreated, CaseID: "case-4", ActorID: "holmes", ActorRole: event.RoleLead,
		Payload: event.MarshalPayload(event.CaseCreatedPayload{Title: "Red-headed league"}),
	})
	require.NoError(t, err)

	state, err := m.CaseState(context.Background(), "case-4", event.RoleObserver)
	require.NoError(t, err)
	assert.Equal(t, casestate.StatusOpen, state.Status)
	assert.False(t, state.Permissions[permission.ActionEvidenceAdd])
	assert.True(t, state.Permissions[permission.ActionExport])
}

func TestSummariesOnePerCase(t *testing.T) {
	m := newManager(t)
	for _, caseID := range []string{"case-a", "case-b"} {
		_, err := m.Append(context.Background(), AppendInput{
			Type: event.TypeCaseCreated, CaseID: caseID, ActorID: "holmes", ActorRole: event.RoleLead,
			Payload: event.MarshalPayload(event.CaseCreatedPayload{Title: "t-" + caseID}),
		})
		require.NoError(t, err)
	}
	_, err := m.Append(context.Background(), AppendInput{
		Type: event.TypeEvidenceAdded, CaseID: "case-b", ActorID: "holmes", ActorRole: event.RoleLead,
		Payload: event.MarshalPayload(event.EvidenceAddedPayload{EvidenceID: "ev-1"}),
	})
	require.NoError(t, err)

	summaries, err := m.Summaries(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	byID := map[string]Summary{}
	for _, s := range summaries {
		byID[s.CaseID] = s
	}
	assert.Equal(t, 0, byID["case-a"].EvidenceCount)
	assert.Equal(t, 1, byID["case-b"].EvidenceCount)
	assert.Equal(t, 2, byID["case-b"].EventCount)
}
