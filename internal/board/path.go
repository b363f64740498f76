package board

// computePath renders the point list for a connection between two node
// centers, per the active connection style:
//
//	straight:   2 points, a direct segment
//	bezier:     4 points, endpoints plus two horizontal control points
//	orthogonal: elbowed path through the midpoint x
func computePath(style ConnectionStyle, src, dst Node) []Point {
	a := center(src)
	b := center(dst)
	switch style {
	case StyleBezier:
		dx := (b.X - a.X) / 3
		return []Point{a, {X: a.X + dx, Y: a.Y}, {X: b.X - dx, Y: b.Y}, b}
	case StyleOrthogonal:
		midX := (a.X + b.X) / 2
		return []Point{a, {X: midX, Y: a.Y}, {X: midX, Y: b.Y}, b}
	default:
		return []Point{a, b}
	}
}

func center(n Node) Point {
	return Point{
		X: n.Position.X + n.Width/2,
		Y: n.Position.Y + n.Height/2,
	}
}

// refreshPathsTouching recomputes only the paths of connections attached to
// the given node. Recomputation is localized: untouched connections keep
// their existing paths.
func (s *State) refreshPathsTouching(nodeID string) {
	for i := range s.Connections {
		c := &s.Connections[i]
		if c.SourceNodeID != nodeID && c.TargetNodeID != nodeID {
			continue
		}
		s.refreshPath(i)
	}
}

func (s *State) refreshPath(i int) {
	c := &s.Connections[i]
	si := s.nodeIndex(c.SourceNodeID)
	ti := s.nodeIndex(c.TargetNodeID)
	if si < 0 || ti < 0 {
		return
	}
	c.Path = computePath(s.Tools.ConnectionStyle, s.Nodes[si], s.Nodes[ti])
}

func (s *State) refreshAllPaths() {
	for i := range s.Connections {
		s.refreshPath(i)
	}
}
