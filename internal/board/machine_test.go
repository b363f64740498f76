package board

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dossier-hq/dossier/internal/casemanager"
	"github.com/dossier-hq/dossier/internal/casestate"
	"github.com/dossier-hq/dossier/internal/event"
)

type recordingSink struct {
	inputs []casemanager.AppendInput
}

func (r *recordingSink) Append(_ context.Context, in casemanager.AppendInput) (event.Event, error) {
	r.inputs = append(r.inputs, in)
	return event.Event{ID: event.NewID(), Type: in.Type, CaseID: in.CaseID, OccurredAt: time.Now().UTC()}, nil
}

func twoNodeMachine(t *testing.T, sink Sink) (*Machine, string, string) {
	t.Helper()
	m := NewMachine("case-1", sink)
	cs := casestate.New()
	cs.ID = "case-1"
	cs.Evidence["ev-1"] = casestate.Evidence{ID: "ev-1"}
	cs.Evidence["ev-2"] = casestate.Evidence{ID: "ev-2"}
	m.Initialize(cs)
	st := m.State()
	require.Len(t, st.Nodes, 2)
	return m, nodeIDFor(t, st, "ev-1"), nodeIDFor(t, st, "ev-2")
}

func nodeIDFor(t *testing.T, st State, dataID string) string {
	t.Helper()
	for _, n := range st.Nodes {
		if n.DataID == dataID {
			return n.ID
		}
	}
	t.Fatalf("no node for %s", dataID)
	return ""
}

func nodeByID(t *testing.T, st State, id string) Node {
	t.Helper()
	for _, n := range st.Nodes {
		if n.ID == id {
			return n
		}
	}
	t.Fatalf("no node %s", id)
	return Node{}
}

func TestMoveNodeUndoRedo(t *testing.T) {
	m, n1, _ := twoNodeMachine(t, nil)
	original := m.State()

	positions := []Point{{X: 10, Y: 10}, {X: 200, Y: 40}, {X: 305, Y: 410}}
	for _, p := range positions {
		m.MoveNode(n1, p)
	}
	moved := m.State()
	assert.Equal(t, positions[len(positions)-1], nodeByID(t, moved, n1).Position)

	for range positions {
		m.Undo()
	}
	assert.Equal(t, original.Nodes, m.State().Nodes)

	m.Undo() // empty history is a no-op
	assert.Equal(t, original.Nodes, m.State().Nodes)

	for range positions {
		m.Redo()
	}
	assert.Equal(t, moved.Nodes, m.State().Nodes)
}

func TestMutationClearsRedoStack(t *testing.T) {
	m, n1, _ := twoNodeMachine(t, nil)
	m.MoveNode(n1, Point{X: 50, Y: 50})
	m.Undo()
	m.MoveNode(n1, Point{X: 99, Y: 99})

	m.Redo() // nothing to redo after a fresh mutation
	assert.Equal(t, Point{X: 99, Y: 99}, nodeByID(t, m.State(), n1).Position)
}

func TestHistoryCapDropsOldest(t *testing.T) {
	m, n1, _ := twoNodeMachine(t, nil)
	for i := 0; i < HistoryLimit+10; i++ {
		m.MoveNode(n1, Point{X: float64(i), Y: 0})
	}
	for i := 0; i < HistoryLimit+10; i++ {
		m.Undo()
	}
	// Only the newest 50 snapshots survive.
	assert.Equal(t, Point{X: float64(9), Y: 0}, nodeByID(t, m.State(), n1).Position)
}

func TestMoveNodeSnapsToGrid(t *testing.T) {
	m, n1, _ := twoNodeMachine(t, nil)
	m.SetTools(ToolSettings{ShowGrid: true, GridSize: 20, SnapToGrid: true, ConnectionStyle: StyleStraight})

	m.MoveNode(n1, Point{X: 33, Y: 71})
	assert.Equal(t, Point{X: 40, Y: 80}, nodeByID(t, m.State(), n1).Position)
}

func TestZoomClamped(t *testing.T) {
	m := NewMachine("case-1", nil)
	m.Zoom(10, nil)
	assert.Equal(t, MaxZoom, m.State().Viewport.Zoom)
	m.Zoom(-10, nil)
	assert.Equal(t, MinZoom, m.State().Viewport.Zoom)
}

func TestZoomKeepsCenterFixed(t *testing.T) {
	m := NewMachine("case-1", nil)
	center := Point{X: 400, Y: 300}
	m.Zoom(1, &center) // 1.0 -> 2.0

	vp := m.State().Viewport
	assert.Equal(t, 2.0, vp.Zoom)
	// world point under the cursor: (center - pan) / zoom stays constant
	assert.InDelta(t, center.X/1.0, (center.X-vp.PanX)/vp.Zoom, 0.001)
	assert.InDelta(t, center.Y/1.0, (center.Y-vp.PanY)/vp.Zoom, 0.001)
}

func TestCreateConnectionEmitsDomainEventWhenReasoned(t *testing.T) {
	sink := &recordingSink{}
	m, n1, n2 := twoNodeMachine(t, sink)

	m.CreateConnection(context.Background(), Actor{ID: "det-1", Role: event.RoleDetective}, n1, n2, "supports", 2, "same fingerprint")
	require.Len(t, m.State().Connections, 1)
	require.Len(t, sink.inputs, 1)
	assert.Equal(t, event.TypeEvidenceConnected, sink.inputs[0].Type)
	assert.Equal(t, "case-1", sink.inputs[0].CaseID)

	var p event.EvidenceConnectedPayload
	ev := event.Event{Payload: sink.inputs[0].Payload}
	ev.DecodePayload(&p)
	assert.Equal(t, "ev-1", p.SourceID)
	assert.Equal(t, "ev-2", p.TargetID)
	assert.Equal(t, "same fingerprint", p.Reason)
}

func TestCreateConnectionVisualOnlyWithoutReason(t *testing.T) {
	sink := &recordingSink{}
	m, n1, n2 := twoNodeMachine(t, sink)

	m.CreateConnection(context.Background(), Actor{ID: "det-1", Role: event.RoleDetective}, n1, n2, "related", 1, "")
	assert.Len(t, m.State().Connections, 1)
	assert.Empty(t, sink.inputs)
}

func TestCreateConnectionMissingNodeIsNoOp(t *testing.T) {
	m, n1, _ := twoNodeMachine(t, nil)
	m.CreateConnection(context.Background(), Actor{}, n1, "ghost", "related", 1, "")
	assert.Empty(t, m.State().Connections)
}

func TestDeleteNodeRemovesTouchingConnections(t *testing.T) {
	m, n1, n2 := twoNodeMachine(t, nil)
	m.CreateConnection(context.Background(), Actor{}, n1, n2, "related", 1, "")
	require.Len(t, m.State().Connections, 1)

	m.DeleteNode(n1)
	st := m.State()
	assert.Len(t, st.Nodes, 1)
	assert.Empty(t, st.Connections)

	m.DeleteNode("ghost") // silent no-op
	assert.Len(t, m.State().Nodes, 1)
}

func TestSetModeClearsSelection(t *testing.T) {
	m, n1, _ := twoNodeMachine(t, nil)
	m.SelectNode(n1)
	require.Equal(t, []string{n1}, m.State().SelectedNodeIDs)

	m.SetMode(ModeConnect)
	st := m.State()
	assert.Equal(t, ModeConnect, st.Mode)
	assert.Empty(t, st.SelectedNodeIDs)
	assert.False(t, nodeByID(t, st, n1).Selected)
}

func TestAutoArrangeGrid(t *testing.T) {
	m := NewMachine("case-1", nil)
	cs := casestate.New()
	cs.ID = "case-1"
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		cs.Evidence[id] = casestate.Evidence{ID: id}
	}
	m.Initialize(cs)

	m.AutoArrange()
	st := m.State()
	require.Len(t, st.Nodes, 5)
	assert.Equal(t, Point{X: arrangePadding, Y: arrangePadding}, st.Nodes[0].Position)
	assert.Equal(t, Point{X: arrangePadding + 3*arrangeSpacingX, Y: arrangePadding}, st.Nodes[3].Position)
	// fifth node wraps to the second row
	assert.Equal(t, Point{X: arrangePadding, Y: arrangePadding + arrangeSpacingY}, st.Nodes[4].Position)
}

func TestInitializeAppliesPersistedLayout(t *testing.T) {
	cs := casestate.New()
	cs.ID = "case-1"
	cs.Evidence["ev-1"] = casestate.Evidence{ID: "ev-1"}
	cs.Layout = &casestate.Layout{
		Positions: map[string]event.NodePosition{"ev-1": {X: 512, Y: 256}},
		Zoom:      1.5,
		PanX:      -40,
		PanY:      12,
	}

	m := NewMachine("case-1", nil)
	m.Initialize(cs)
	st := m.State()
	require.Len(t, st.Nodes, 1)
	assert.Equal(t, Point{X: 512, Y: 256}, st.Nodes[0].Position)
	assert.Equal(t, Viewport{Zoom: 1.5, PanX: -40, PanY: 12}, st.Viewport)

	m.Undo() // history was cleared on initialize
	assert.Equal(t, Point{X: 512, Y: 256}, m.State().Nodes[0].Position)
}

func TestObserveDomainAddsNodes(t *testing.T) {
	m := NewMachine("case-1", nil)
	ev := event.Event{
		Type:    event.TypeEvidenceAdded,
		CaseID:  "case-1",
		Payload: event.MarshalPayload(event.EvidenceAddedPayload{EvidenceID: "ev-9"}),
	}
	m.ObserveDomain(ev)
	m.ObserveDomain(ev) // repeated delivery does not duplicate the node

	st := m.State()
	require.Len(t, st.Nodes, 1)
	assert.Equal(t, "ev-9", st.Nodes[0].DataID)
	assert.Equal(t, NodeEvidence, st.Nodes[0].Type)
}

func TestSaveLayoutEmitsEvent(t *testing.T) {
	sink := &recordingSink{}
	m, _, _ := twoNodeMachine(t, sink)
	m.Zoom(0.5, nil)

	require.NoError(t, m.SaveLayout(context.Background(), Actor{ID: "lead-1", Role: event.RoleLead}))
	require.Len(t, sink.inputs, 1)
	assert.Equal(t, event.TypeVisualLayoutUpdated, sink.inputs[0].Type)

	var p event.VisualLayoutUpdatedPayload
	ev := event.Event{Payload: sink.inputs[0].Payload}
	ev.DecodePayload(&p)
	assert.Len(t, p.Positions, 2)
	assert.Equal(t, 1.5, p.Zoom)
}

func TestConnectionStyleChangeRecomputesPaths(t *testing.T) {
	m, n1, n2 := twoNodeMachine(t, nil)
	m.CreateConnection(context.Background(), Actor{}, n1, n2, "related", 1, "")
	require.Len(t, m.State().Connections[0].Path, 2)

	m.SetTools(ToolSettings{ShowGrid: true, GridSize: 20, ConnectionStyle: StyleOrthogonal})
	assert.Len(t, m.State().Connections[0].Path, 4)
}

func TestZoomStepHalfFromDefault(t *testing.T) {
	m := NewMachine("case-1", nil)
	m.Zoom(0.25, nil)
	m.Zoom(0.25, nil)
	assert.InDelta(t, 1.5, m.State().Viewport.Zoom, 0.0001)
}
