// package board derives the editable visual graph for a case and keeps it
// consistent with the domain aggregate. Layout edits are visual-only until
// SaveLayout persists them as a VISUAL_LAYOUT_UPDATED domain event; the
// undo/redo stacks are ephemeral and never serialized.
package board

// Interaction modes. Switching modes clears the current selection.
type Mode string

const (
	ModeSelect     Mode = "select"
	ModeConnect    Mode = "connect"
	ModeHypothesis Mode = "hypothesis"
	ModePan        Mode = "pan"
	ModeDelete     Mode = "delete"
)

// Connection rendering styles.
type ConnectionStyle string

const (
	StyleStraight   ConnectionStyle = "straight"
	StyleBezier     ConnectionStyle = "bezier"
	StyleOrthogonal ConnectionStyle = "orthogonal"
)

// Node kinds mirror the domain entities they reference.
const (
	NodeEvidence   = "evidence"
	NodeHypothesis = "hypothesis"
)

// Zoom bounds and history cap.
const (
	MinZoom      = 0.1
	MaxZoom      = 3.0
	HistoryLimit = 50
)

// Auto-arrange grid constants: row = index/4, col = index%4.
const (
	arrangeColumns  = 4
	arrangePadding  = 80.0
	arrangeSpacingX = 220.0
	arrangeSpacingY = 160.0
)

// Point is a board coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one visual element. DataID is a weak back-reference to the domain
// entity; the board never owns the entity itself.
type Node struct {
	ID       string  `json:"id"`
	Type     string  `json:"type"`
	DataID   string  `json:"dataId"`
	Position Point   `json:"position"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Selected bool    `json:"isSelected"`
	Dragging bool    `json:"isDragging"`
}

// Connection is a visual edge with its computed render path.
type Connection struct {
	ID           string  `json:"id"`
	SourceNodeID string  `json:"sourceNodeId"`
	TargetNodeID string  `json:"targetNodeId"`
	Type         string  `json:"type,omitempty"`
	Strength     int     `json:"strength"`
	Path         []Point `json:"path"`
	Label        string  `json:"label,omitempty"`
	Reason       string  `json:"reason,omitempty"`
}

// Viewport is the visible window over the board.
type Viewport struct {
	Zoom float64 `json:"zoom"`
	PanX float64 `json:"panX"`
	PanY float64 `json:"panY"`
}

// ToolSettings carries grid and rendering preferences.
type ToolSettings struct {
	ShowGrid        bool            `json:"showGrid"`
	GridSize        float64         `json:"gridSize"`
	SnapToGrid      bool            `json:"snapToGrid"`
	ConnectionStyle ConnectionStyle `json:"connectionStyle"`
}

// State is the full visual state for one case.
type State struct {
	CaseID          string       `json:"caseId"`
	Nodes           []Node       `json:"nodes"`
	Connections     []Connection `json:"connections"`
	Viewport        Viewport     `json:"viewport"`
	Mode            Mode         `json:"mode"`
	Tools           ToolSettings `json:"tools"`
	SelectedNodeIDs []string     `json:"selectedNodeIds,omitempty"`
}

func defaultState(caseID string) State {
	return State{
		CaseID:   caseID,
		Viewport: Viewport{Zoom: 1},
		Mode:     ModeSelect,
		Tools: ToolSettings{
			ShowGrid:        true,
			GridSize:        20,
			SnapToGrid:      false,
			ConnectionStyle: StyleStraight,
		},
	}
}

// clone deep-copies a State so history snapshots never alias live slices.
func (s State) clone() State {
	out := s
	out.Nodes = append([]Node(nil), s.Nodes...)
	out.Connections = make([]Connection, len(s.Connections))
	for i, c := range s.Connections {
		c.Path = append([]Point(nil), c.Path...)
		out.Connections[i] = c
	}
	out.SelectedNodeIDs = append([]string(nil), s.SelectedNodeIDs...)
	return out
}

func (s *State) nodeIndex(id string) int {
	for i := range s.Nodes {
		if s.Nodes[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *State) nodeByDataID(dataID string) int {
	for i := range s.Nodes {
		if s.Nodes[i].DataID == dataID {
			return i
		}
	}
	return -1
}

func (s *State) connectionIndex(id string) int {
	for i := range s.Connections {
		if s.Connections[i].ID == id {
			return i
		}
	}
	return -1
}
