package board

import (
	"context"
	"log"
	"math"
	"sync"

	"github.com/dossier-hq/dossier/internal/casemanager"
	"github.com/dossier-hq/dossier/internal/casestate"
	"github.com/dossier-hq/dossier/internal/event"
)

// Actor identifies who is driving the board; carried onto any domain event
// a board action emits.
type Actor struct {
	ID   string
	Role string
}

// Sink receives the domain events some board actions emit (connection
// reasons, saved layouts). The aggregate manager satisfies this.
type Sink interface {
	Append(ctx context.Context, in casemanager.AppendInput) (event.Event, error)
}

// Machine is the per-case board state machine. Operations referencing
// missing node or connection ids are silent no-ops: the board never throws.
type Machine struct {
	mu      sync.Mutex
	state   State
	history []State
	future  []State
	sink    Sink
}

// NewMachine returns an empty board for a case.
func NewMachine(caseID string, sink Sink) *Machine {
	return &Machine{state: defaultState(caseID), sink: sink}
}

// Initialize builds one node per evidence/hypothesis entity not already
// represented and clears the undo/redo history. When the case carries a
// persisted layout, saved positions and viewport win over defaults.
func (m *Machine) Initialize(cs casestate.CaseState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id := range cs.Evidence {
		m.ensureNodeLocked(NodeEvidence, id)
	}
	for id := range cs.Hypotheses {
		m.ensureNodeLocked(NodeHypothesis, id)
	}
	for _, conn := range cs.Connections {
		m.ensureConnectionLocked(conn)
	}
	if cs.Layout != nil {
		for dataID, pos := range cs.Layout.Positions {
			if i := m.state.nodeByDataID(dataID); i >= 0 {
				m.state.Nodes[i].Position = Point{X: pos.X, Y: pos.Y}
			}
		}
		if cs.Layout.Zoom != 0 {
			m.state.Viewport = Viewport{
				Zoom: clampZoom(cs.Layout.Zoom),
				PanX: cs.Layout.PanX,
				PanY: cs.Layout.PanY,
			}
		}
	}
	m.state.refreshAllPaths()
	m.history = nil
	m.future = nil
}

// ObserveDomain keeps the board consistent as new domain events fold in:
// fresh entities get nodes, domain connections get visual edges. Not a
// user action, so it does not touch history.
func (m *Machine) ObserveDomain(ev event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch ev.Type {
	case event.TypeEvidenceAdded:
		var p event.EvidenceAddedPayload
		ev.DecodePayload(&p)
		if p.EvidenceID != "" {
			m.ensureNodeLocked(NodeEvidence, p.EvidenceID)
		}
	case event.TypeHypothesisProposed:
		var p event.HypothesisProposedPayload
		ev.DecodePayload(&p)
		if p.HypothesisID != "" {
			m.ensureNodeLocked(NodeHypothesis, p.HypothesisID)
		}
	case event.TypeEvidenceConnected:
		var p event.EvidenceConnectedPayload
		ev.DecodePayload(&p)
		if p.ConnectionID == "" {
			return
		}
		m.ensureConnectionLocked(casestate.Connection{
			ID:       p.ConnectionID,
			SourceID: p.SourceID,
			TargetID: p.TargetID,
			Type:     p.ConnectionType,
			Strength: p.Strength,
			Reason:   p.Reason,
		})
	}
}

func (m *Machine) ensureNodeLocked(nodeType, dataID string) {
	if m.state.nodeByDataID(dataID) >= 0 {
		return
	}
	idx := len(m.state.Nodes)
	m.state.Nodes = append(m.state.Nodes, Node{
		ID:       event.NewID(),
		Type:     nodeType,
		DataID:   dataID,
		Position: arrangePosition(idx),
		Width:    180,
		Height:   90,
	})
}

func (m *Machine) ensureConnectionLocked(conn casestate.Connection) {
	if m.state.connectionIndex(conn.ID) >= 0 {
		return
	}
	si := m.state.nodeByDataID(conn.SourceID)
	ti := m.state.nodeByDataID(conn.TargetID)
	if si < 0 || ti < 0 {
		return
	}
	c := Connection{
		ID:           conn.ID,
		SourceNodeID: m.state.Nodes[si].ID,
		TargetNodeID: m.state.Nodes[ti].ID,
		Type:         conn.Type,
		Strength:     conn.Strength,
		Reason:       conn.Reason,
		Path:         computePath(m.state.Tools.ConnectionStyle, m.state.Nodes[si], m.state.Nodes[ti]),
	}
	m.state.Connections = append(m.state.Connections, c)
}

// SetMode switches the interaction mode and clears the selection.
func (m *Machine) SetMode(mode Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch mode {
	case ModeSelect, ModeConnect, ModeHypothesis, ModePan, ModeDelete:
	default:
		return
	}
	m.state.Mode = mode
	m.clearSelectionLocked()
}

func (m *Machine) clearSelectionLocked() {
	for i := range m.state.Nodes {
		m.state.Nodes[i].Selected = false
	}
	m.state.SelectedNodeIDs = nil
}

// SelectNode marks a node selected; unknown ids are no-ops.
func (m *Machine) SelectNode(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.state.nodeIndex(id)
	if i < 0 {
		return
	}
	m.clearSelectionLocked()
	m.state.Nodes[i].Selected = true
	m.state.SelectedNodeIDs = []string{id}
}

// MoveNode completes a node move: grid snapping when enabled, then only
// the paths of connections touching that node are recomputed.
func (m *Machine) MoveNode(id string, pos Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.state.nodeIndex(id)
	if i < 0 {
		return
	}
	m.pushHistoryLocked()
	if m.state.Tools.SnapToGrid && m.state.Tools.GridSize > 0 {
		g := m.state.Tools.GridSize
		pos.X = math.Round(pos.X/g) * g
		pos.Y = math.Round(pos.Y/g) * g
	}
	m.state.Nodes[i].Position = pos
	m.state.Nodes[i].Dragging = false
	m.state.refreshPathsTouching(id)
}

// SetDragging toggles the transient drag flag without touching history.
func (m *Machine) SetDragging(id string, dragging bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.state.nodeIndex(id); i >= 0 {
		m.state.Nodes[i].Dragging = dragging
	}
}

// CreateConnection links two existing nodes. The current state is pushed
// onto the undo stack before mutating. A non-empty reason additionally
// appends an EVIDENCE_CONNECTED domain event: the board edge and the domain
// fact are two effects of one user action.
func (m *Machine) CreateConnection(ctx context.Context, actor Actor, sourceID, targetID, connType string, strength int, reason string) {
	m.mu.Lock()
	si := m.state.nodeIndex(sourceID)
	ti := m.state.nodeIndex(targetID)
	if si < 0 || ti < 0 || sourceID == targetID {
		m.mu.Unlock()
		return
	}
	m.pushHistoryLocked()
	if strength < 1 {
		strength = 1
	}
	if strength > 3 {
		strength = 3
	}
	conn := Connection{
		ID:           event.NewID(),
		SourceNodeID: sourceID,
		TargetNodeID: targetID,
		Type:         connType,
		Strength:     strength,
		Reason:       reason,
		Path:         computePath(m.state.Tools.ConnectionStyle, m.state.Nodes[si], m.state.Nodes[ti]),
	}
	m.state.Connections = append(m.state.Connections, conn)
	caseID := m.state.CaseID
	srcData := m.state.Nodes[si].DataID
	dstData := m.state.Nodes[ti].DataID
	m.mu.Unlock()

	if reason == "" || m.sink == nil {
		return
	}
	_, err := m.sink.Append(ctx, casemanager.AppendInput{
		Type:      event.TypeEvidenceConnected,
		CaseID:    caseID,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Payload: event.MarshalPayload(event.EvidenceConnectedPayload{
			ConnectionID:   conn.ID,
			SourceID:       srcData,
			TargetID:       dstData,
			ConnectionType: connType,
			Strength:       strength,
			Reason:         reason,
		}),
	})
	if err != nil {
		log.Printf("[board] append EVIDENCE_CONNECTED: %v", err)
	}
}

// DeleteConnection removes a visual edge; unknown ids are no-ops.
func (m *Machine) DeleteConnection(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.state.connectionIndex(id)
	if i < 0 {
		return
	}
	m.pushHistoryLocked()
	m.state.Connections = append(m.state.Connections[:i], m.state.Connections[i+1:]...)
}

// DeleteNode removes a node and every connection touching it.
func (m *Machine) DeleteNode(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.state.nodeIndex(id)
	if i < 0 {
		return
	}
	m.pushHistoryLocked()
	m.state.Nodes = append(m.state.Nodes[:i], m.state.Nodes[i+1:]...)
	kept := m.state.Connections[:0]
	for _, c := range m.state.Connections {
		if c.SourceNodeID != id && c.TargetNodeID != id {
			kept = append(kept, c)
		}
	}
	m.state.Connections = kept
	m.state.SelectedNodeIDs = nil
}

// Zoom adjusts the viewport zoom, clamped to [0.1, 3]. With a center point
// the pan is corrected so the point under the cursor stays put.
func (m *Machine) Zoom(delta float64, zoomCenter *Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldZoom := m.state.Viewport.Zoom
	newZoom := clampZoom(oldZoom + delta)
	if newZoom == oldZoom {
		return
	}
	if zoomCenter != nil {
		ratio := newZoom / oldZoom
		m.state.Viewport.PanX = zoomCenter.X - (zoomCenter.X-m.state.Viewport.PanX)*ratio
		m.state.Viewport.PanY = zoomCenter.Y - (zoomCenter.Y-m.state.Viewport.PanY)*ratio
	}
	m.state.Viewport.Zoom = newZoom
}

// Pan shifts the viewport.
func (m *Machine) Pan(dx, dy float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Viewport.PanX += dx
	m.state.Viewport.PanY += dy
}

// SetTools updates grid and rendering settings; a style change recomputes
// every path.
func (m *Machine) SetTools(tools ToolSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	styleChanged := tools.ConnectionStyle != m.state.Tools.ConnectionStyle
	if tools.GridSize <= 0 {
		tools.GridSize = m.state.Tools.GridSize
	}
	switch tools.ConnectionStyle {
	case StyleStraight, StyleBezier, StyleOrthogonal:
	default:
		tools.ConnectionStyle = m.state.Tools.ConnectionStyle
	}
	m.state.Tools = tools
	if styleChanged {
		m.state.refreshAllPaths()
	}
}

// AutoArrange lays nodes on a deterministic grid: row = index/4,
// col = index mod 4.
func (m *Machine) AutoArrange() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.state.Nodes) == 0 {
		return
	}
	m.pushHistoryLocked()
	for i := range m.state.Nodes {
		m.state.Nodes[i].Position = arrangePosition(i)
	}
	m.state.refreshAllPaths()
}

func arrangePosition(index int) Point {
	row := index / arrangeColumns
	col := index % arrangeColumns
	return Point{
		X: arrangePadding + float64(col)*arrangeSpacingX,
		Y: arrangePadding + float64(row)*arrangeSpacingY,
	}
}

// Undo restores the previous snapshot; no-op with empty history.
func (m *Machine) Undo() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 {
		return
	}
	m.future = append(m.future, m.state.clone())
	m.state = m.history[len(m.history)-1]
	m.history = m.history[:len(m.history)-1]
}

// Redo reapplies the last undone snapshot; no-op with empty future.
func (m *Machine) Redo() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.future) == 0 {
		return
	}
	m.history = append(m.history, m.state.clone())
	m.state = m.future[len(m.future)-1]
	m.future = m.future[:len(m.future)-1]
}

// pushHistoryLocked snapshots the current state before a mutating action.
// Any new mutation clears the redo stack; history is capped at 50.
func (m *Machine) pushHistoryLocked() {
	m.history = append(m.history, m.state.clone())
	if len(m.history) > HistoryLimit {
		m.history = m.history[1:]
	}
	m.future = nil
}

// SaveLayout persists all node positions and the viewport as a
// VISUAL_LAYOUT_UPDATED event — the only path by which layout becomes
// durable.
func (m *Machine) SaveLayout(ctx context.Context, actor Actor) error {
	m.mu.Lock()
	positions := make(map[string]event.NodePosition, len(m.state.Nodes))
	for _, n := range m.state.Nodes {
		positions[n.DataID] = event.NodePosition{X: n.Position.X, Y: n.Position.Y}
	}
	payload := event.VisualLayoutUpdatedPayload{
		Positions: positions,
		Zoom:      m.state.Viewport.Zoom,
		PanX:      m.state.Viewport.PanX,
		PanY:      m.state.Viewport.PanY,
	}
	caseID := m.state.CaseID
	m.mu.Unlock()

	if m.sink == nil {
		return nil
	}
	_, err := m.sink.Append(ctx, casemanager.AppendInput{
		Type:      event.TypeVisualLayoutUpdated,
		CaseID:    caseID,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Payload:   event.MarshalPayload(payload),
	})
	return err
}

// State returns a copy safe for serialization.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func clampZoom(z float64) float64 {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}
