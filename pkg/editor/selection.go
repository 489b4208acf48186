package editor

// Selection is either a *RangeSelection or a *NodeSelection.
type Selection interface {
	Nodes() []*Node
	isSelection()
}

// Point addresses a position inside a node. Offsets are carried for callers but formatting
// operates on whole text nodes.
type Point struct {
	Key    NodeKey
	Offset int
}

// RangeSelection spans from Anchor to Focus. Format holds the marks every touched text node
// carries; on a collapsed caret it is the pending format for the caret.
type RangeSelection struct {
	Anchor Point
	Focus  Point
	Format Format

	state *State
}

func NewRangeSelection(anchor, focus Point) *RangeSelection {
	return &RangeSelection{Anchor: anchor, Focus: focus}
}

// Caret is a collapsed range selection.
func Caret(key NodeKey, offset int) *RangeSelection {
	p := Point{Key: key, Offset: offset}
	return NewRangeSelection(p, p)
}

func (*RangeSelection) isSelection() {}

func (s *RangeSelection) IsCollapsed() bool {
	return s.Anchor == s.Focus
}

func (s *RangeSelection) HasFormat(f Format) bool {
	return s.Format.Has(f)
}

func (s *RangeSelection) AnchorNode() *Node {
	if s.state == nil {
		return nil
	}
	return s.state.nodes[s.Anchor.Key]
}

// Nodes returns the nodes between anchor and focus in document order, both ends included.
func (s *RangeSelection) Nodes() []*Node {
	if s.state == nil {
		return nil
	}
	v := &View{state: s.state}
	if s.Anchor.Key == s.Focus.Key {
		if n := v.Node(s.Anchor.Key); n != nil {
			return []*Node{n}
		}
		return nil
	}
	order := v.order()
	lo, hi := -1, -1
	for i, k := range order {
		if k == s.Anchor.Key || k == s.Focus.Key {
			if lo < 0 {
				lo = i
			}
			hi = i
		}
	}
	if lo < 0 {
		return nil
	}
	out := make([]*Node, 0, hi-lo+1)
	for _, k := range order[lo : hi+1] {
		out = append(out, v.Node(k))
	}
	return out
}

// NodeSelection selects whole nodes, for example a single block picked as an object.
type NodeSelection struct {
	Keys []NodeKey

	state *State
}

func (*NodeSelection) isSelection() {}

func (s *NodeSelection) Nodes() []*Node {
	if s.state == nil {
		return nil
	}
	out := make([]*Node, 0, len(s.Keys))
	for _, k := range s.Keys {
		if n := s.state.nodes[k]; n != nil {
			out = append(out, n)
		}
	}
	return out
}

// AsRangeSelection reports whether sel is a range selection.
func AsRangeSelection(sel Selection) (*RangeSelection, bool) {
	rs, ok := sel.(*RangeSelection)
	return rs, ok && rs != nil
}

// uniformFormat returns the marks carried by every text node in nodes.
func uniformFormat(nodes []*Node) Format {
	var out Format
	seen := false
	for _, n := range nodes {
		if !n.IsText() {
			continue
		}
		if !seen {
			out = n.Format
			seen = true
			continue
		}
		out &= n.Format
	}
	return out
}

// touchedBlocks returns the distinct top-level blocks under sel in document order.
func touchedBlocks(v *View, sel Selection) []*Node {
	var out []*Node
	seen := map[NodeKey]bool{}
	for _, n := range sel.Nodes() {
		if v.IsRootOrShadowRoot(n) {
			continue
		}
		top := v.TopLevelElement(n)
		if top == nil || seen[top.Key] {
			continue
		}
		seen[top.Key] = true
		out = append(out, top)
	}
	return out
}
