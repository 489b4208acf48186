// Package docstore keeps the editor document inside an automerge document so that it can be
// persisted and synced between peers.
//
// Layout of the automerge root map:
//
//	blocks: [ {id, type, tag, align, children: [{text, format, style}], items: [[...inline]]} ]
//
// Blocks are matched by id when writing, so concurrent changes to different blocks merge.
package docstore

import (
	"fmt"
	"slices"
	"strings"

	"github.com/automerge/automerge-go"
	"github.com/google/uuid"

	"github.com/astromechza/automerge-docs/pkg/editor"
)

const blocksKey = "blocks"

type Inline struct {
	Text   string
	Format int64
	Style  string
}

type Block struct {
	ID       string
	Type     string
	Tag      string
	Align    string
	Children []Inline
	// Items holds the inline content of each list item when Type is "list".
	Items [][]Inline
}

func (b Block) equal(o Block) bool {
	if b.ID != o.ID || b.Type != o.Type || b.Tag != o.Tag || b.Align != o.Align {
		return false
	}
	if !slices.Equal(b.Children, o.Children) || len(b.Items) != len(o.Items) {
		return false
	}
	for i := range b.Items {
		if !slices.Equal(b.Items[i], o.Items[i]) {
			return false
		}
	}
	return true
}

// SeedBlockID is the id of the empty paragraph a new document starts with.
const SeedBlockID = "seed"

// NewDocument returns a document whose block list already exists and holds one empty
// paragraph. Every peer of a room must start from the same save of it, otherwise each peer
// creates its own list on first edit and only one of them survives a merge.
func NewDocument() (*automerge.Doc, error) {
	doc := automerge.New()
	if err := WriteBlocks(doc, []Block{{ID: SeedBlockID, Type: string(editor.TypeParagraph)}}); err != nil {
		return nil, err
	}
	if _, err := doc.Commit("create"); err != nil {
		return nil, fmt.Errorf("failed to commit new document: %w", err)
	}
	return doc, nil
}

// PlainText joins the text of a block, one line per list item.
func PlainText(b Block) string {
	join := func(in []Inline) string {
		var sb strings.Builder
		for _, i := range in {
			sb.WriteString(i.Text)
		}
		return sb.String()
	}
	if len(b.Items) == 0 {
		return join(b.Children)
	}
	lines := make([]string, 0, len(b.Items))
	for _, it := range b.Items {
		lines = append(lines, join(it))
	}
	return strings.Join(lines, "\n")
}

// ReadBlocks decodes the block list. A document without blocks yields an empty list.
func ReadBlocks(doc *automerge.Doc) ([]Block, error) {
	v, err := doc.Path(blocksKey).Get()
	if err != nil {
		return nil, fmt.Errorf("failed to read blocks: %w", err)
	}
	if v.Kind() != automerge.KindList {
		return nil, nil
	}
	list := v.List()
	out := make([]Block, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		item, err := list.Get(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read block %d: %w", i, err)
		}
		if item.Kind() != automerge.KindMap {
			continue
		}
		b, err := readBlock(item.Map())
		if err != nil {
			return nil, fmt.Errorf("failed to decode block %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func readBlock(m *automerge.Map) (Block, error) {
	var b Block
	var err error
	if b.ID, err = readString(m, "id"); err != nil {
		return b, err
	}
	if b.Type, err = readString(m, "type"); err != nil {
		return b, err
	}
	if b.Tag, err = readString(m, "tag"); err != nil {
		return b, err
	}
	if b.Align, err = readString(m, "align"); err != nil {
		return b, err
	}
	if b.Children, err = readInlines(m, "children"); err != nil {
		return b, err
	}
	items, err := m.Get("items")
	if err != nil {
		return b, err
	}
	if items.Kind() == automerge.KindList {
		l := items.List()
		for i := 0; i < l.Len(); i++ {
			iv, err := l.Get(i)
			if err != nil {
				return b, err
			}
			if iv.Kind() != automerge.KindMap {
				continue
			}
			inl, err := readInlines(iv.Map(), "children")
			if err != nil {
				return b, err
			}
			b.Items = append(b.Items, inl)
		}
	}
	return b, nil
}

func readInlines(m *automerge.Map, key string) ([]Inline, error) {
	v, err := m.Get(key)
	if err != nil {
		return nil, err
	}
	if v.Kind() != automerge.KindList {
		return nil, nil
	}
	l := v.List()
	out := make([]Inline, 0, l.Len())
	for i := 0; i < l.Len(); i++ {
		iv, err := l.Get(i)
		if err != nil {
			return nil, err
		}
		if iv.Kind() != automerge.KindMap {
			continue
		}
		im := iv.Map()
		var in Inline
		if in.Text, err = readString(im, "text"); err != nil {
			return nil, err
		}
		if in.Style, err = readString(im, "style"); err != nil {
			return nil, err
		}
		fv, err := im.Get("format")
		if err != nil {
			return nil, err
		}
		if fv.Kind() == automerge.KindInt64 {
			in.Format = fv.Int64()
		}
		out = append(out, in)
	}
	return out, nil
}

func readString(m *automerge.Map, key string) (string, error) {
	v, err := m.Get(key)
	if err != nil {
		return "", err
	}
	if v.Kind() != automerge.KindStr {
		return "", nil
	}
	return v.Str(), nil
}

func inlinesValue(in []Inline) []any {
	out := make([]any, 0, len(in))
	for _, i := range in {
		out = append(out, map[string]any{"text": i.Text, "format": i.Format, "style": i.Style})
	}
	return out
}

func blockValue(b Block) map[string]any {
	items := make([]any, 0, len(b.Items))
	for _, it := range b.Items {
		items = append(items, map[string]any{"children": inlinesValue(it)})
	}
	return map[string]any{
		"id":       b.ID,
		"type":     b.Type,
		"tag":      b.Tag,
		"align":    b.Align,
		"children": inlinesValue(b.Children),
		"items":    items,
	}
}

// WriteBlocks brings the document's block list in line with blocks. Blocks whose id is already
// present and unchanged are left alone; changed ones are rewritten in place.
func WriteBlocks(doc *automerge.Doc, blocks []Block) error {
	v, err := doc.Path(blocksKey).Get()
	if err != nil {
		return fmt.Errorf("failed to read blocks: %w", err)
	}
	if v.Kind() != automerge.KindList {
		if err := doc.Path(blocksKey).Set([]any{}); err != nil {
			return fmt.Errorf("failed to create blocks: %w", err)
		}
	}
	existing, err := ReadBlocks(doc)
	if err != nil {
		return err
	}
	list := doc.Path(blocksKey).List()

	wanted := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		wanted[b.ID] = true
	}
	for i := len(existing) - 1; i >= 0; i-- {
		if !wanted[existing[i].ID] {
			if err := list.Delete(i); err != nil {
				return fmt.Errorf("failed to delete block %d: %w", i, err)
			}
			existing = slices.Delete(existing, i, i+1)
		}
	}

	for i, b := range blocks {
		switch {
		case i < len(existing) && existing[i].ID == b.ID:
			if existing[i].equal(b) {
				continue
			}
			if err := list.Set(i, blockValue(b)); err != nil {
				return fmt.Errorf("failed to update block %s: %w", b.ID, err)
			}
			existing[i] = b
		default:
			if idx := slices.IndexFunc(existing, func(o Block) bool { return o.ID == b.ID }); idx > i {
				// moved further up the document
				if err := list.Delete(idx); err != nil {
					return fmt.Errorf("failed to move block %s: %w", b.ID, err)
				}
				existing = slices.Delete(existing, idx, idx+1)
			}
			if err := list.Insert(i, blockValue(b)); err != nil {
				return fmt.Errorf("failed to insert block %s: %w", b.ID, err)
			}
			existing = slices.Insert(existing, i, b)
		}
	}
	for len(existing) > len(blocks) {
		last := len(existing) - 1
		if err := list.Delete(last); err != nil {
			return fmt.Errorf("failed to trim block %d: %w", last, err)
		}
		existing = existing[:last]
	}
	return nil
}

// Snapshot converts the blocks of an editor state. ids maps top-level block keys to their
// document ids; blocks without one get a fresh id which is recorded in ids.
func Snapshot(v *editor.View, ids map[editor.NodeKey]string) []Block {
	blocks := v.Blocks()
	out := make([]Block, 0, len(blocks))
	for _, n := range blocks {
		id, ok := ids[n.Key]
		if !ok {
			id = uuid.NewString()
			ids[n.Key] = id
		}
		b := Block{ID: id, Type: string(n.Type), Tag: n.Tag, Align: string(n.Align)}
		if editor.IsList(n) {
			for _, item := range v.Children(n) {
				b.Items = append(b.Items, inlines(v, item))
			}
		} else {
			b.Children = inlines(v, n)
		}
		out = append(out, b)
	}
	return out
}

func inlines(v *editor.View, n *editor.Node) []Inline {
	var out []Inline
	for _, c := range v.Children(n) {
		if c.IsText() {
			out = append(out, Inline{Text: c.Text, Format: int64(c.Format), Style: c.Style})
		}
	}
	return out
}

// Build appends blocks to the root inside tx and returns the ids of the new top-level nodes.
func Build(tx *editor.Tx, blocks []Block) (map[editor.NodeKey]string, error) {
	ids := make(map[editor.NodeKey]string, len(blocks))
	for _, b := range blocks {
		var n *editor.Node
		switch editor.NodeType(b.Type) {
		case editor.TypeHeading:
			n = tx.CreateHeading(editor.HeadingTag(b.Tag))
		case editor.TypeQuote:
			n = tx.CreateQuote()
		case editor.TypeList:
			n = tx.CreateList(editor.ListType(b.Tag))
		default:
			n = tx.CreateParagraph()
		}
		if err := tx.Append(editor.RootKey, n.Key); err != nil {
			return nil, err
		}
		if a := editor.Alignment(b.Align); a != editor.AlignNone && a.Valid() {
			if err := tx.SetAlign(n.Key, a); err != nil {
				return nil, err
			}
		}
		if editor.IsList(n) {
			for _, item := range b.Items {
				li := tx.CreateListItem()
				if err := tx.Append(n.Key, li.Key); err != nil {
					return nil, err
				}
				if err := appendInlines(tx, li.Key, item); err != nil {
					return nil, err
				}
			}
		} else if err := appendInlines(tx, n.Key, b.Children); err != nil {
			return nil, err
		}
		ids[n.Key] = b.ID
	}
	return ids, nil
}

func appendInlines(tx *editor.Tx, parent editor.NodeKey, in []Inline) error {
	for _, i := range in {
		t := tx.CreateText(i.Text)
		if err := tx.Append(parent, t.Key); err != nil {
			return err
		}
		if i.Format != 0 {
			if err := tx.SetFormat(t.Key, editor.Format(i.Format)); err != nil {
				return err
			}
		}
		if i.Style != "" {
			if err := tx.SetStyle(t.Key, i.Style); err != nil {
				return err
			}
		}
	}
	return nil
}
