package editor

import (
	"errors"
	"testing"
)

// seed replaces the document with one block per entry; each block holds a single text node.
func seed(t *testing.T, e *Editor, blocks ...func(tx *Tx) *Node) []NodeKey {
	t.Helper()
	var texts []NodeKey
	err := e.Update(func(tx *Tx) error {
		if err := tx.Clear(); err != nil {
			return err
		}
		for i, mk := range blocks {
			b := mk(tx)
			txt := tx.CreateText("block " + string(rune('a'+i)))
			if err := tx.Append(b.Key, txt.Key); err != nil {
				return err
			}
			if err := tx.Append(RootKey, b.Key); err != nil {
				return err
			}
			texts = append(texts, txt.Key)
		}
		tx.SetSelection(Caret(texts[0], 0))
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return texts
}

func paragraph(tx *Tx) *Node { return tx.CreateParagraph() }
func quote(tx *Tx) *Node     { return tx.CreateQuote() }

func selectRange(t *testing.T, e *Editor, from, to NodeKey) {
	t.Helper()
	if err := e.Update(func(tx *Tx) error {
		tx.SetSelection(NewRangeSelection(Point{Key: from}, Point{Key: to, Offset: 1}))
		return nil
	}); err != nil {
		t.Fatalf("select: %v", err)
	}
}

func TestNewEditorStartsWithEmptyParagraph(t *testing.T) {
	e := New()
	e.Read(func(v *View) {
		blocks := v.Blocks()
		if len(blocks) != 1 || blocks[0].Type != TypeParagraph {
			t.Fatalf("blocks = %+v, want one paragraph", blocks)
		}
		rs, ok := AsRangeSelection(v.Selection())
		if !ok || !rs.IsCollapsed() || rs.Anchor.Key != blocks[0].Key {
			t.Fatalf("selection = %+v, want caret in paragraph", v.Selection())
		}
	})
}

func TestUpdateNotifiesOncePerCommit(t *testing.T) {
	e := New()
	var calls int
	unregister := e.RegisterUpdateListener(func(p UpdatePayload) {
		calls++
		if p.State == p.PrevState {
			t.Fatal("expected a new state")
		}
	})
	seed(t, e, paragraph, paragraph)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	unregister()
	seed(t, e, paragraph)
	if calls != 1 {
		t.Fatalf("listener fired after unregister")
	}
}

func TestFailedUpdateCommitsNothing(t *testing.T) {
	e := New()
	before := e.State()
	boom := errors.New("boom")
	err := e.Update(func(tx *Tx) error {
		if err := tx.Append(RootKey, tx.CreateQuote().Key); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if e.State() != before {
		t.Fatal("state changed after failed update")
	}
}

func TestCommittedStateIsNotMutatedByLaterUpdates(t *testing.T) {
	e := New()
	texts := seed(t, e, paragraph)
	before := e.State()
	if err := e.Update(func(tx *Tx) error { return tx.SetStyle(texts[0], "color: red;") }); err != nil {
		t.Fatal(err)
	}
	if got := NewView(before).Node(texts[0]).Style; got != "" {
		t.Fatalf("old snapshot style = %q, want empty", got)
	}
}

func TestDispatchRunsHighestPriorityFirstAndStops(t *testing.T) {
	e := New()
	cmd := NewCommand[string]("TEST_COMMAND")
	var order []string
	RegisterCommand(e, cmd, func(p string) bool { order = append(order, "low:"+p); return false }, PriorityLow)
	unregisterHigh := RegisterCommand(e, cmd, func(p string) bool { order = append(order, "high:"+p); return true }, PriorityHigh)

	if !DispatchCommand(e, cmd, "x") {
		t.Fatal("expected handled")
	}
	if len(order) != 1 || order[0] != "high:x" {
		t.Fatalf("order = %v", order)
	}

	unregisterHigh()
	order = nil
	if DispatchCommand(e, cmd, "y") {
		t.Fatal("expected unhandled")
	}
	if len(order) != 1 || order[0] != "low:y" {
		t.Fatalf("order = %v", order)
	}
}

func TestFormatTextTogglesRangeUniformly(t *testing.T) {
	e := New()
	texts := seed(t, e, paragraph, paragraph)
	if err := e.Update(func(tx *Tx) error { return tx.SetFormat(texts[0], FormatBold) }); err != nil {
		t.Fatal(err)
	}
	selectRange(t, e, texts[0], texts[1])

	e.Read(func(v *View) {
		rs, _ := AsRangeSelection(v.Selection())
		if rs.HasFormat(FormatBold) {
			t.Fatal("mixed range must not report bold")
		}
	})

	DispatchCommand(e, FormatTextCommand, TextBold)
	e.Read(func(v *View) {
		for _, k := range texts {
			if !v.Node(k).Format.Has(FormatBold) {
				t.Fatalf("node %s not bold", k)
			}
		}
		rs, _ := AsRangeSelection(v.Selection())
		if !rs.HasFormat(FormatBold) {
			t.Fatal("selection should report bold")
		}
	})

	DispatchCommand(e, FormatTextCommand, TextBold)
	e.Read(func(v *View) {
		for _, k := range texts {
			if v.Node(k).Format.Has(FormatBold) {
				t.Fatalf("node %s still bold", k)
			}
		}
	})
}

func TestFormatTextOnCaretOnlyChangesPendingFormat(t *testing.T) {
	e := New()
	texts := seed(t, e, paragraph)
	DispatchCommand(e, FormatTextCommand, TextItalic)
	e.Read(func(v *View) {
		if v.Node(texts[0]).Format != 0 {
			t.Fatal("caret toggle must not format the text node")
		}
		rs, _ := AsRangeSelection(v.Selection())
		if !rs.HasFormat(FormatItalic) {
			t.Fatal("caret should carry pending italic")
		}
	})
}

func TestFormatElementAlignsTouchedBlocks(t *testing.T) {
	e := New()
	texts := seed(t, e, paragraph, quote, paragraph)
	selectRange(t, e, texts[0], texts[1])
	DispatchCommand(e, FormatElementCommand, AlignCenter)
	e.Read(func(v *View) {
		blocks := v.Blocks()
		if blocks[0].Align != AlignCenter || blocks[1].Align != AlignCenter {
			t.Fatalf("touched blocks not centered: %+v", blocks)
		}
		if blocks[2].Align != AlignNone {
			t.Fatal("untouched block aligned")
		}
	})
}

func TestSetBlocksTypeReplacesAndKeepsChildren(t *testing.T) {
	e := New()
	texts := seed(t, e, paragraph, quote)
	selectRange(t, e, texts[0], texts[1])
	if err := e.Update(func(tx *Tx) error {
		return tx.SetBlocksType(tx.Selection(), func() *Node { return tx.CreateHeading(H2) })
	}); err != nil {
		t.Fatal(err)
	}
	e.Read(func(v *View) {
		blocks := v.Blocks()
		if len(blocks) != 2 {
			t.Fatalf("got %d blocks", len(blocks))
		}
		for i, b := range blocks {
			if !IsHeading(b) || b.Tag != string(H2) {
				t.Fatalf("block %d = %+v, want h2", i, b)
			}
			if len(b.Children) != 1 || b.Children[0] != texts[i] {
				t.Fatalf("block %d lost its text", i)
			}
		}
		rs, _ := AsRangeSelection(v.Selection())
		if rs.Anchor.Key != texts[0] {
			t.Fatalf("anchor moved to %s", rs.Anchor.Key)
		}
	})
}

func TestSetBlocksTypeRepairsCaretOnReplacedElement(t *testing.T) {
	e := New()
	var old NodeKey
	e.Read(func(v *View) { old = v.Blocks()[0].Key })
	if err := e.Update(func(tx *Tx) error {
		return tx.SetBlocksType(tx.Selection(), func() *Node { return tx.CreateQuote() })
	}); err != nil {
		t.Fatal(err)
	}
	e.Read(func(v *View) {
		b := v.Blocks()[0]
		if b.Type != TypeQuote || b.Key == old {
			t.Fatalf("block = %+v", b)
		}
		rs, _ := AsRangeSelection(v.Selection())
		if rs.Anchor.Key != b.Key {
			t.Fatalf("anchor = %s, want %s", rs.Anchor.Key, b.Key)
		}
	})
}

func TestInsertAndRemoveList(t *testing.T) {
	e := New()
	texts := seed(t, e, paragraph, paragraph, quote)
	selectRange(t, e, texts[0], texts[1])

	DispatchCommand(e, InsertListCommand, ListNumber)
	e.Read(func(v *View) {
		blocks := v.Blocks()
		if len(blocks) != 2 || !IsList(blocks[0]) || blocks[0].Tag != string(ListNumber) {
			t.Fatalf("blocks = %+v", blocks)
		}
		if len(blocks[0].Children) != 2 {
			t.Fatalf("list has %d items", len(blocks[0].Children))
		}
	})

	DispatchCommand(e, InsertListCommand, ListCheck)
	e.Read(func(v *View) {
		if v.Blocks()[0].Tag != string(ListCheck) {
			t.Fatal("list not retyped")
		}
	})

	DispatchCommand(e, RemoveListCommand, Empty{})
	e.Read(func(v *View) {
		blocks := v.Blocks()
		if len(blocks) != 3 || blocks[0].Type != TypeParagraph || blocks[1].Type != TypeParagraph {
			t.Fatalf("blocks = %+v", blocks)
		}
		if v.TextContent(blocks[1]) != "block b" {
			t.Fatalf("text = %q", v.TextContent(blocks[1]))
		}
	})
}

func TestTopLevelElementOrPanic(t *testing.T) {
	e := New()
	e.Read(func(v *View) {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic for detached node")
			}
		}()
		v.TopLevelElementOrPanic(&Node{Key: "detached", Type: TypeText})
	})
}

func TestHistoryUndoRedo(t *testing.T) {
	e := New()
	var canUndo, canRedo []bool
	RegisterCommand(e, CanUndoCommand, func(v bool) bool { canUndo = append(canUndo, v); return false }, PriorityLow)
	RegisterCommand(e, CanRedoCommand, func(v bool) bool { canRedo = append(canRedo, v); return false }, PriorityLow)
	RegisterHistory(e)

	texts := seed(t, e, paragraph)
	if err := e.Update(func(tx *Tx) error { return tx.SetText(texts[0], "changed") }); err != nil {
		t.Fatal(err)
	}
	if len(canUndo) != 1 || !canUndo[0] {
		t.Fatalf("canUndo = %v", canUndo)
	}

	if !DispatchCommand(e, UndoCommand, Empty{}) {
		t.Fatal("undo not handled")
	}
	e.Read(func(v *View) {
		if got := v.Node(texts[0]).Text; got != "block a" {
			t.Fatalf("text after undo = %q", got)
		}
	})
	if len(canRedo) != 1 || !canRedo[0] {
		t.Fatalf("canRedo = %v", canRedo)
	}

	DispatchCommand(e, RedoCommand, Empty{})
	e.Read(func(v *View) {
		if got := v.Node(texts[0]).Text; got != "changed" {
			t.Fatalf("text after redo = %q", got)
		}
	})
	if canRedo[len(canRedo)-1] {
		t.Fatal("redo should be unavailable")
	}
}

func TestHistoryIgnoresSelectionOnlyUpdates(t *testing.T) {
	e := New()
	var pushes int
	RegisterCommand(e, CanUndoCommand, func(bool) bool { pushes++; return false }, PriorityLow)
	RegisterHistory(e)
	texts := seed(t, e, paragraph, paragraph)
	pushes = 0
	selectRange(t, e, texts[0], texts[1])
	if pushes != 0 {
		t.Fatalf("selection change pushed %d history notifications", pushes)
	}
}

func TestHistoryResetsOnCollaborationUpdate(t *testing.T) {
	e := New()
	var last bool
	RegisterCommand(e, CanUndoCommand, func(v bool) bool { last = v; return false }, PriorityLow)
	RegisterHistory(e)
	texts := seed(t, e, paragraph)
	if !last {
		t.Fatal("expected undo to be available")
	}
	if err := e.Update(func(tx *Tx) error { return tx.SetText(texts[0], "remote") }, TagCollaboration); err != nil {
		t.Fatal(err)
	}
	if last {
		t.Fatal("collaboration update should clear undo")
	}
	if DispatchCommand(e, UndoCommand, Empty{}) {
		t.Fatal("undo should have nothing to do")
	}
}
