package editor

import (
	"errors"
	"fmt"
	"slices"
)

var ErrUnknownNode = errors.New("unknown node")

// Tx is the mutation scope handed to Editor.Update. It reads like a View over the draft state.
type Tx struct {
	View

	editor         *Editor
	owned          map[NodeKey]bool
	remap          map[NodeKey]NodeKey
	dirty          bool
	selectionDirty bool
}

func newTx(e *Editor, base *State) *Tx {
	return &Tx{
		View:   View{state: base.draft()},
		editor: e,
		owned:  make(map[NodeKey]bool),
		remap:  make(map[NodeKey]NodeKey),
	}
}

func (tx *Tx) writable(key NodeKey) (*Node, error) {
	n := tx.state.nodes[key]
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, key)
	}
	if !tx.owned[key] {
		n = n.clone()
		tx.state.nodes[key] = n
		tx.owned[key] = true
	}
	tx.dirty = true
	return n, nil
}

func (tx *Tx) create(n *Node) *Node {
	n.Key = tx.editor.nextKey()
	tx.state.nodes[n.Key] = n
	tx.owned[n.Key] = true
	tx.dirty = true
	return n
}

func (tx *Tx) CreateParagraph() *Node {
	return tx.create(&Node{Type: TypeParagraph})
}

func (tx *Tx) CreateHeading(tag HeadingTag) *Node {
	if !tag.Valid() {
		tag = H1
	}
	return tx.create(&Node{Type: TypeHeading, Tag: string(tag)})
}

func (tx *Tx) CreateQuote() *Node {
	return tx.create(&Node{Type: TypeQuote})
}

func (tx *Tx) CreateList(t ListType) *Node {
	if !t.Valid() {
		t = ListBullet
	}
	return tx.create(&Node{Type: TypeList, Tag: string(t)})
}

func (tx *Tx) CreateListItem() *Node {
	return tx.create(&Node{Type: TypeListItem})
}

func (tx *Tx) CreateText(text string) *Node {
	return tx.create(&Node{Type: TypeText, Text: text})
}

// Append attaches children, detaching them from any previous parent first.
func (tx *Tx) Append(parent NodeKey, children ...NodeKey) error {
	p, err := tx.writable(parent)
	if err != nil {
		return err
	}
	if p.IsText() {
		return fmt.Errorf("cannot append to text node %s", parent)
	}
	for _, k := range children {
		if err := tx.detach(k); err != nil {
			return err
		}
		c, err := tx.writable(k)
		if err != nil {
			return err
		}
		c.Parent = parent
		p.Children = append(p.Children, k)
	}
	return nil
}

// InsertBefore attaches node as the sibling immediately before ref.
func (tx *Tx) InsertBefore(ref, node NodeKey) error {
	if err := tx.detach(node); err != nil {
		return err
	}
	r := tx.Node(ref)
	if r == nil || r.Parent == "" {
		return fmt.Errorf("%w: %s has no parent", ErrUnknownNode, ref)
	}
	p, err := tx.writable(r.Parent)
	if err != nil {
		return err
	}
	idx := slices.Index(p.Children, ref)
	p.Children = slices.Insert(p.Children, idx, node)
	c, err := tx.writable(node)
	if err != nil {
		return err
	}
	c.Parent = p.Key
	return nil
}

func (tx *Tx) detach(key NodeKey) error {
	n := tx.Node(key)
	if n == nil {
		return fmt.Errorf("%w: %s", ErrUnknownNode, key)
	}
	if n.Parent == "" {
		return nil
	}
	p, err := tx.writable(n.Parent)
	if err != nil {
		return err
	}
	p.Children = slices.DeleteFunc(p.Children, func(k NodeKey) bool { return k == key })
	c, err := tx.writable(key)
	if err != nil {
		return err
	}
	c.Parent = ""
	return nil
}

// Remove detaches a node; it and its subtree are dropped on commit.
func (tx *Tx) Remove(key NodeKey) error {
	if key == RootKey {
		return errors.New("cannot remove the root")
	}
	return tx.detach(key)
}

// Clear removes every top-level block.
func (tx *Tx) Clear() error {
	for _, k := range slices.Clone(tx.Root().Children) {
		if err := tx.detach(k); err != nil {
			return err
		}
	}
	return nil
}

// Replace puts repl where old is. With keepChildren the children of old move to repl.
func (tx *Tx) Replace(old, repl NodeKey, keepChildren bool) error {
	if err := tx.InsertBefore(old, repl); err != nil {
		return err
	}
	if keepChildren {
		if err := tx.Append(repl, slices.Clone(tx.Node(old).Children)...); err != nil {
			return err
		}
	}
	tx.remap[old] = repl
	return tx.detach(old)
}

func (tx *Tx) SetText(key NodeKey, text string) error {
	n, err := tx.writable(key)
	if err != nil {
		return err
	}
	if !n.IsText() {
		return fmt.Errorf("node %s is not a text node", key)
	}
	n.Text = text
	return nil
}

func (tx *Tx) SetStyle(key NodeKey, style string) error {
	n, err := tx.writable(key)
	if err != nil {
		return err
	}
	if !n.IsText() {
		return fmt.Errorf("node %s is not a text node", key)
	}
	n.Style = style
	return nil
}

func (tx *Tx) SetFormat(key NodeKey, f Format) error {
	n, err := tx.writable(key)
	if err != nil {
		return err
	}
	if !n.IsText() {
		return fmt.Errorf("node %s is not a text node", key)
	}
	n.Format = f
	return nil
}

func (tx *Tx) SetAlign(key NodeKey, a Alignment) error {
	if !a.Valid() {
		return fmt.Errorf("unknown alignment %q", string(a))
	}
	n, err := tx.writable(key)
	if err != nil {
		return err
	}
	if !n.IsElement() || n.Type == TypeRoot {
		return fmt.Errorf("node %s cannot be aligned", key)
	}
	n.Align = a
	return nil
}

// SetSelection replaces the selection. A range selection picks up the marks shared by the
// text nodes it touches.
func (tx *Tx) SetSelection(sel Selection) {
	switch s := sel.(type) {
	case *RangeSelection:
		c := *s
		c.state = tx.state
		c.Format = uniformFormat(c.Nodes())
		c.state = nil
		tx.state.selection = &c
	case *NodeSelection:
		c := *s
		c.Keys = slices.Clone(s.Keys)
		c.state = nil
		tx.state.selection = &c
	default:
		tx.state.selection = nil
	}
	tx.selectionDirty = true
}

// SetSelectionFormat overrides the pending marks of a range selection.
func (tx *Tx) SetSelectionFormat(f Format) {
	rs, ok := tx.state.selection.(*RangeSelection)
	if !ok {
		return
	}
	c := *rs
	c.Format = f
	tx.state.selection = &c
	tx.selectionDirty = true
}

// SetBlocksType replaces every top-level block touched by sel with a block built by create,
// moving the inline children across. A touched list is replaced by one new block per item.
func (tx *Tx) SetBlocksType(sel Selection, create func() *Node) error {
	if sel == nil {
		return nil
	}
	bound := tx.bind(sel)
	for _, block := range touchedBlocks(&tx.View, bound) {
		if IsList(block) {
			for _, item := range tx.Children(block) {
				repl := create()
				if err := tx.InsertBefore(block.Key, repl.Key); err != nil {
					return err
				}
				if err := tx.Append(repl.Key, slices.Clone(item.Children)...); err != nil {
					return err
				}
				tx.remap[item.Key] = repl.Key
			}
			if len(block.Children) > 0 {
				tx.remap[block.Key] = tx.remap[block.Children[0]]
			}
			if err := tx.detach(block.Key); err != nil {
				return err
			}
			continue
		}
		repl := create()
		repl.Align = block.Align
		if err := tx.Replace(block.Key, repl.Key, true); err != nil {
			return err
		}
	}
	return nil
}

func (tx *Tx) bind(sel Selection) Selection {
	switch s := sel.(type) {
	case *RangeSelection:
		c := *s
		c.state = tx.state
		return &c
	case *NodeSelection:
		c := *s
		c.state = tx.state
		return &c
	}
	return sel
}

// finish drops unreachable nodes and repairs selection points that no longer resolve.
func (tx *Tx) finish() *State {
	if tx.dirty {
		live := tx.reachable()
		for k := range tx.state.nodes {
			if !live[k] {
				delete(tx.state.nodes, k)
			}
		}
		if rs, ok := tx.state.selection.(*RangeSelection); ok {
			c := *rs
			c.Anchor = tx.repairPoint(c.Anchor)
			c.Focus = tx.repairPoint(c.Focus)
			if c != *rs {
				tx.state.selection = &c
				tx.selectionDirty = true
			}
		}
	}
	return tx.state
}

func (tx *Tx) repairPoint(p Point) Point {
	for i := 0; i < 8; i++ {
		if _, ok := tx.state.nodes[p.Key]; ok {
			return p
		}
		next, ok := tx.remap[p.Key]
		if !ok {
			break
		}
		p = Point{Key: next}
	}
	if _, ok := tx.state.nodes[p.Key]; ok {
		return p
	}
	if order := tx.order(); len(order) > 0 {
		return Point{Key: order[0]}
	}
	return Point{Key: RootKey}
}
