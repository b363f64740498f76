package replay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dossier-hq/dossier/internal/event"
)

type stubSource struct {
	events []event.Event
}

func (s *stubSource) Events(ctx context.Context, caseID string) ([]event.Event, error) {
	return s.events, nil
}

func threeEventLog() []event.Event {
	t0 := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	return []event.Event{
		{
			ID: "e1", Type: event.TypeCaseCreated, CaseID: "case-1", ActorID: "holmes",
			ActorRole: event.RoleLead, OccurredAt: t0, Seq: 1,
			Payload: event.MarshalPayload(event.CaseCreatedPayload{Title: "A Study in Scarlet"}),
		},
		{
			ID: "e2", Type: event.TypeEvidenceAdded, CaseID: "case-1", ActorID: "holmes",
			ActorRole: event.RoleLead, OccurredAt: t0.Add(time.Minute), Seq: 2,
			Payload: event.MarshalPayload(event.EvidenceAddedPayload{EvidenceID: "ev-1", Content: "RACHE"}),
		},
		{
			ID: "e3", Type: event.TypeEvidenceAdded, CaseID: "case-1", ActorID: "watson",
			ActorRole: event.RoleDetective, OccurredAt: t0.Add(2 * time.Minute), Seq: 3,
			Payload: event.MarshalPayload(event.EvidenceAddedPayload{EvidenceID: "ev-2", Content: "pill box"}),
		},
	}
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	eng := New(&stubSource{events: threeEventLog()})
	require.NoError(t, eng.SetCase(context.Background(), "case-1"))
	return eng
}

func TestSetCaseLandsOnLatestState(t *testing.T) {
	eng := newEngine(t)
	st := eng.Status()
	assert.Equal(t, 2, st.Cursor)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, eng.State().EvidenceCount)
}

func TestGoToPrefix(t *testing.T) {
	eng := newEngine(t)

	eng.GoTo(0)
	state := eng.State()
	assert.Equal(t, "A Study in Scarlet", state.Title)
	assert.Equal(t, 0, state.EvidenceCount)

	eng.GoTo(-1)
	assert.Equal(t, 0, eng.State().EventCount, "pristine initial state at -1")

	eng.GoTo(99)
	assert.Equal(t, 2, eng.Status().Cursor, "clamped to last index")
	eng.GoTo(-99)
	assert.Equal(t, -1, eng.Status().Cursor)
}

func TestStepBounds(t *testing.T) {
	eng := newEngine(t)

	eng.StepForward()
	assert.Equal(t, 2, eng.Status().Cursor, "step forward at end is a no-op")

	eng.Reset()
	assert.Equal(t, -1, eng.Status().Cursor)
	eng.StepBackward()
	assert.Equal(t, -1, eng.Status().Cursor, "step backward at -1 is a no-op")

	eng.StepForward()
	assert.Equal(t, 0, eng.Status().Cursor)
}

func TestObserveGrowsPrefixForActiveCaseOnly(t *testing.T) {
	eng := newEngine(t)

	eng.Observe(event.Event{ID: "other", CaseID: "case-2", Type: event.TypeCaseCreated})
	assert.Equal(t, 3, eng.Status().Total)

	eng.Observe(event.Event{
		ID: "e4", CaseID: "case-1", Type: event.TypeEvidenceAdded,
		ActorID: "watson", ActorRole: event.RoleDetective,
		OccurredAt: time.Date(2026, 5, 1, 8, 5, 0, 0, time.UTC),
		Payload:    event.MarshalPayload(event.EvidenceAddedPayload{EvidenceID: "ev-3"}),
	})
	assert.Equal(t, 4, eng.Status().Total)
	assert.Equal(t, 2, eng.Status().Cursor, "cursor does not jump on observe")
}

func TestObserveInsertsMergedEventAtOccurredAtPosition(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	src := &stubSource{events: []event.Event{
		{
			ID: "e1", Type: event.TypeCaseCreated, CaseID: "case-1", ActorID: "holmes",
			ActorRole: event.RoleLead, OccurredAt: t0, Seq: 1,
			Payload: event.MarshalPayload(event.CaseCreatedPayload{Title: "A Study in Scarlet"}),
		},
		{
			ID: "e2", Type: event.TypeCaseStatusChanged, CaseID: "case-1", ActorID: "holmes",
			ActorRole: event.RoleLead, OccurredAt: t0.Add(2 * time.Minute), Seq: 2,
			Payload: event.MarshalPayload(event.CaseStatusChangedPayload{Status: "closed"}),
		},
	}}
	eng := New(src)
	require.NoError(t, eng.SetCase(context.Background(), "case-1"))

	// A pull-merged event dated between the two local ones.
	eng.Observe(event.Event{
		ID: "remote-1", Type: event.TypeCaseStatusChanged, CaseID: "case-1",
		ActorID: "lestrade", ActorRole: event.RoleDetective,
		OccurredAt: t0.Add(time.Minute),
		Payload:    event.MarshalPayload(event.CaseStatusChangedPayload{Status: "open"}),
	})

	eng.GoTo(2)
	assert.Equal(t, "closed", eng.State().Status,
		"full fold must equal the occurredAt-ordered reduce")

	eng.GoTo(1)
	assert.Equal(t, "open", eng.State().Status, "merged event sits at index 1")
}

func TestObserveBeforeCursorShiftsCursorRight(t *testing.T) {
	eng := newEngine(t)
	require.Equal(t, 2, eng.Status().Cursor)

	t0 := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	eng.Observe(event.Event{
		ID: "remote-1", Type: event.TypeEvidenceAdded, CaseID: "case-1",
		ActorID: "lestrade", ActorRole: event.RoleDetective,
		OccurredAt: t0.Add(30 * time.Second),
		Payload:    event.MarshalPayload(event.EvidenceAddedPayload{EvidenceID: "ev-r"}),
	})

	st := eng.Status()
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 3, st.Cursor, "cursor keeps denoting the same last event")
	assert.Equal(t, 3, eng.State().EvidenceCount)
}

func TestPlayAdvancesToEndAndStops(t *testing.T) {
	eng := newEngine(t)
	eng.Reset()

	eng.Play(5 * time.Millisecond)
	assert.Eventually(t, func() bool {
		st := eng.Status()
		return st.Cursor == 2 && !st.Playing
	}, time.Second, 5*time.Millisecond)
}

func TestPauseStopsTicks(t *testing.T) {
	eng := newEngine(t)
	eng.Reset()

	eng.Play(10 * time.Millisecond)
	eng.Pause()
	cursor := eng.Status().Cursor
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, cursor, eng.Status().Cursor, "no ticks after pause")
	assert.False(t, eng.Status().Playing)
}
