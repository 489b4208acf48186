package docstore

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/automerge/automerge-go"

	"github.com/astromechza/automerge-docs/pkg/editor"
)

// Binding keeps an editor and an automerge document in step. Local content changes are
// committed to the document; Reload pulls in changes that arrived from other peers.
type Binding struct {
	editor *editor.Editor
	logger *slog.Logger

	// mu guards doc, which is shared with the sync loop.
	mu    sync.Mutex
	doc   *automerge.Doc
	ids   map[editor.NodeKey]string
	heads string

	unregister func()
}

type BindOption func(*Binding)

func WithLogger(l *slog.Logger) BindOption {
	return func(b *Binding) {
		b.logger = l
	}
}

// Bind loads doc into e and starts mirroring local edits into doc.
func Bind(e *editor.Editor, doc *automerge.Doc, opts ...BindOption) (*Binding, error) {
	b := &Binding{editor: e, doc: doc, ids: map[editor.NodeKey]string{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	if err := b.reload(true); err != nil {
		return nil, err
	}
	b.unregister = e.RegisterUpdateListener(b.onUpdate)
	return b, nil
}

// Locker must be held by anything else touching the document, such as a sync state.
func (b *Binding) Locker() sync.Locker {
	return &b.mu
}

// Doc returns the bound document. Callers must hold Locker.
func (b *Binding) Doc() *automerge.Doc {
	return b.doc
}

func (b *Binding) Close() {
	if b.unregister != nil {
		b.unregister()
	}
}

func (b *Binding) onUpdate(p editor.UpdatePayload) {
	if !p.ContentChanged || p.HasTag(editor.TagCollaboration) {
		return
	}
	if err := b.write(editor.NewView(p.State)); err != nil {
		b.logger.Error("failed to write document", "err", err)
	}
}

func (b *Binding) write(v *editor.View) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	blocks := Snapshot(v, b.ids)
	if err := WriteBlocks(b.doc, blocks); err != nil {
		return err
	}
	if _, err := b.doc.Commit("edit"); err != nil {
		return fmt.Errorf("failed to commit doc: %w", err)
	}
	b.heads = headsKey(b.doc)
	return nil
}

// Reload rebuilds the editor content from the document when the document has changed since
// the last write or reload. It reports whether anything was applied.
func (b *Binding) Reload() (bool, error) {
	b.mu.Lock()
	changed := headsKey(b.doc) != b.heads
	b.mu.Unlock()
	if !changed {
		return false, nil
	}
	return true, b.reload(false)
}

func (b *Binding) reload(initial bool) error {
	b.mu.Lock()
	blocks, err := ReadBlocks(b.doc)
	b.heads = headsKey(b.doc)
	b.mu.Unlock()
	if err != nil {
		return err
	}
	if len(blocks) == 0 && initial {
		// keep the editor's own empty paragraph and let the first edit create the blocks
		return nil
	}

	var ids map[editor.NodeKey]string
	err = b.editor.Update(func(tx *editor.Tx) error {
		anchor, focus := locate(&tx.View)
		if err := tx.Clear(); err != nil {
			return err
		}
		var err error
		if ids, err = Build(tx, blocks); err != nil {
			return err
		}
		if len(blocks) == 0 {
			p := tx.CreateParagraph()
			if err := tx.Append(editor.RootKey, p.Key); err != nil {
				return err
			}
		}
		tx.SetSelection(editor.NewRangeSelection(resolve(&tx.View, anchor), resolve(&tx.View, focus)))
		return nil
	}, editor.TagCollaboration)
	if err != nil {
		return fmt.Errorf("failed to load document into editor: %w", err)
	}
	b.mu.Lock()
	b.ids = ids
	b.mu.Unlock()
	return nil
}

// position addresses a selection point by its place in the document rather than its key,
// so it survives a rebuild.
type position struct {
	textIndex int
	offset    int
}

func locate(v *editor.View) (position, position) {
	rs, ok := editor.AsRangeSelection(v.Selection())
	if !ok {
		return position{}, position{}
	}
	texts := v.TextNodes()
	find := func(p editor.Point) position {
		for i, t := range texts {
			if t.Key == p.Key {
				return position{textIndex: i, offset: p.Offset}
			}
		}
		return position{}
	}
	return find(rs.Anchor), find(rs.Focus)
}

func resolve(v *editor.View, p position) editor.Point {
	texts := v.TextNodes()
	if len(texts) == 0 {
		blocks := v.Blocks()
		if len(blocks) == 0 {
			return editor.Point{Key: editor.RootKey}
		}
		return editor.Point{Key: blocks[0].Key}
	}
	idx := min(p.textIndex, len(texts)-1)
	t := texts[idx]
	return editor.Point{Key: t.Key, Offset: min(p.offset, len(t.Text))}
}

func headsKey(doc *automerge.Doc) string {
	return fmt.Sprint(doc.Heads())
}
