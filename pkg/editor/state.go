package editor

import (
	"maps"
	"strings"
)

// State is an immutable snapshot of the document tree and its selection. Once committed a
// State is never written again; updates work on a copy.
type State struct {
	nodes     map[NodeKey]*Node
	selection Selection
}

func emptyState() *State {
	return &State{
		nodes: map[NodeKey]*Node{
			RootKey: {Key: RootKey, Type: TypeRoot},
		},
	}
}

func (s *State) draft() *State {
	return &State{nodes: maps.Clone(s.nodes), selection: s.selection}
}

// Len returns the number of nodes, the root included.
func (s *State) Len() int {
	return len(s.nodes)
}

// View is the read scope over a State.
type View struct {
	state *State
}

// NewView opens a read scope directly over a state, for example one handed to an update
// listener.
func NewView(s *State) *View {
	return &View{state: s}
}

func (v *View) Node(key NodeKey) *Node {
	return v.state.nodes[key]
}

func (v *View) Root() *Node {
	return v.state.nodes[RootKey]
}

func (v *View) Parent(n *Node) *Node {
	if n == nil || n.Parent == "" {
		return nil
	}
	return v.state.nodes[n.Parent]
}

func (v *View) Children(n *Node) []*Node {
	if n == nil {
		return nil
	}
	out := make([]*Node, 0, len(n.Children))
	for _, k := range n.Children {
		if c := v.state.nodes[k]; c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Blocks returns the top-level elements in document order.
func (v *View) Blocks() []*Node {
	return v.Children(v.Root())
}

// Selection returns the current selection bound to this view, or nil.
func (v *View) Selection() Selection {
	switch sel := v.state.selection.(type) {
	case *RangeSelection:
		c := *sel
		c.state = v.state
		return &c
	case *NodeSelection:
		c := *sel
		c.state = v.state
		return &c
	}
	return nil
}

// IsRootOrShadowRoot reports whether n is a boundary that top-level blocks hang off. This
// model has no shadow roots, so only the root qualifies.
func (v *View) IsRootOrShadowRoot(n *Node) bool {
	return n != nil && n.Type == TypeRoot
}

// FindMatchingParent walks from n (inclusive) towards the root and returns the first node
// satisfying pred.
func (v *View) FindMatchingParent(n *Node, pred func(*Node) bool) *Node {
	for cur := n; cur != nil; cur = v.Parent(cur) {
		if pred(cur) {
			return cur
		}
	}
	return nil
}

// TopLevelElement returns the ancestor-or-self of n whose parent is the root.
func (v *View) TopLevelElement(n *Node) *Node {
	return v.FindMatchingParent(n, func(c *Node) bool {
		return c.IsElement() && v.IsRootOrShadowRoot(v.Parent(c))
	})
}

// TopLevelElementOrPanic is TopLevelElement for callers that hold a node known to be attached.
// A detached node is a programming error.
func (v *View) TopLevelElementOrPanic(n *Node) *Node {
	el := v.TopLevelElement(n)
	if el == nil {
		key := NodeKey("<nil>")
		if n != nil {
			key = n.Key
		}
		panic("editor: expected node " + string(key) + " to have a top-level element")
	}
	return el
}

func (v *View) TextContent(n *Node) string {
	if n == nil {
		return ""
	}
	if n.IsText() {
		return n.Text
	}
	var sb strings.Builder
	for i, c := range v.Children(n) {
		if i > 0 && c.IsElement() {
			sb.WriteString("\n")
		}
		sb.WriteString(v.TextContent(c))
	}
	return sb.String()
}

// Walk visits every node below the root in document order. Returning false from fn stops
// the walk.
func (v *View) Walk(fn func(n *Node, depth int) bool) {
	var visit func(n *Node, depth int) bool
	visit = func(n *Node, depth int) bool {
		for _, c := range v.Children(n) {
			if !fn(c, depth) {
				return false
			}
			if !visit(c, depth+1) {
				return false
			}
		}
		return true
	}
	visit(v.Root(), 0)
}

// TextNodes returns every text node in document order.
func (v *View) TextNodes() []*Node {
	var out []*Node
	v.Walk(func(n *Node, _ int) bool {
		if n.IsText() {
			out = append(out, n)
		}
		return true
	})
	return out
}

func (v *View) order() []NodeKey {
	var out []NodeKey
	v.Walk(func(n *Node, _ int) bool {
		out = append(out, n.Key)
		return true
	})
	return out
}

func (v *View) reachable() map[NodeKey]bool {
	seen := map[NodeKey]bool{RootKey: true}
	v.Walk(func(n *Node, _ int) bool {
		seen[n.Key] = true
		return true
	})
	return seen
}
