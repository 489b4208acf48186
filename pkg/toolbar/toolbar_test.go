package toolbar

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/astromechza/automerge-docs/pkg/editor"
)

type block func(tx *editor.Tx) *editor.Node

// newDoc builds an editor holding one block per kind, each with a single text node, and a
// caret in the first text node.
func newDoc(t *testing.T, kinds ...block) (*editor.Editor, []editor.NodeKey) {
	t.Helper()
	e := editor.New()
	var texts []editor.NodeKey
	if err := e.Update(func(tx *editor.Tx) error {
		if err := tx.Clear(); err != nil {
			return err
		}
		for _, mk := range kinds {
			b := mk(tx)
			txt := tx.CreateText("some text")
			if err := tx.Append(b.Key, txt.Key); err != nil {
				return err
			}
			if err := tx.Append(editor.RootKey, b.Key); err != nil {
				return err
			}
			texts = append(texts, txt.Key)
		}
		tx.SetSelection(editor.Caret(texts[0], 0))
		return nil
	}); err != nil {
		t.Fatalf("build doc: %v", err)
	}
	return e, texts
}

func para(tx *editor.Tx) *editor.Node  { return tx.CreateParagraph() }
func quote(tx *editor.Tx) *editor.Node { return tx.CreateQuote() }
func heading(tag editor.HeadingTag) block {
	return func(tx *editor.Tx) *editor.Node { return tx.CreateHeading(tag) }
}

func selectAll(t *testing.T, e *editor.Editor, texts []editor.NodeKey) {
	t.Helper()
	if err := e.Update(func(tx *editor.Tx) error {
		tx.SetSelection(editor.NewRangeSelection(
			editor.Point{Key: texts[0]},
			editor.Point{Key: texts[len(texts)-1], Offset: len("some text")},
		))
		return nil
	}); err != nil {
		t.Fatalf("select: %v", err)
	}
}

func firstBlock(e *editor.Editor) *editor.Node {
	var b *editor.Node
	e.Read(func(v *editor.View) { b = v.Blocks()[0] })
	return b
}

func TestMountDerivesInitialState(t *testing.T) {
	e, _ := newDoc(t, heading(editor.H2))
	tb := New(e)
	defer tb.Mount()()

	s := tb.State()
	if s.ActiveBlock != "h2" {
		t.Fatalf("active block = %q, want h2", s.ActiveBlock)
	}
	if s.FontSize != "12px" || s.FontFamily != "Arial" {
		t.Fatalf("font defaults = %q/%q", s.FontSize, s.FontFamily)
	}
	if !tb.UndoDisabled() || !tb.RedoDisabled() {
		t.Fatal("history controls should start disabled")
	}
}

func TestFlagsFalseWithoutRangeSelection(t *testing.T) {
	e, texts := newDoc(t, para)
	if err := e.Update(func(tx *editor.Tx) error { return tx.SetFormat(texts[0], editor.FormatBold|editor.FormatItalic) }); err != nil {
		t.Fatal(err)
	}
	selectAll(t, e, texts)
	tb := New(e)
	defer tb.Mount()()
	if s := tb.State(); !s.Bold || !s.Italic {
		t.Fatalf("expected bold+italic, got %+v", s)
	}

	if err := e.Update(func(tx *editor.Tx) error {
		tx.SetSelection(&editor.NodeSelection{Keys: []editor.NodeKey{texts[0]}})
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	s := tb.State()
	if s.Bold || s.Italic || s.Underline || s.Strikethrough {
		t.Fatalf("flags must be false without a range selection: %+v", s)
	}
	if s.ActiveBlock != "" {
		t.Fatalf("active block = %q, want empty", s.ActiveBlock)
	}
}

func TestCaretOutsideFormattingReportsNoFlags(t *testing.T) {
	e, _ := newDoc(t, para)
	tb := New(e)
	defer tb.Mount()()
	s := tb.State()
	if s.Bold || s.Italic || s.Underline || s.Strikethrough {
		t.Fatalf("unexpected flags %+v", s)
	}
}

func TestFlagsFollowFormatCommands(t *testing.T) {
	e, texts := newDoc(t, para, para)
	tb := New(e)
	defer tb.Mount()()
	selectAll(t, e, texts)

	tb.FormatText(editor.TextUnderline)
	if s := tb.State(); !s.Underline || s.Bold {
		t.Fatalf("state = %+v, want underline only", s)
	}
	tb.FormatText(editor.TextUnderline)
	if tb.State().Underline {
		t.Fatal("underline should toggle off")
	}
}

func TestActiveBlockClassification(t *testing.T) {
	tests := []struct {
		name string
		kind block
		want string
	}{
		{"paragraph", para, "paragraph"},
		{"quote", quote, "quote"},
		{"h1", heading(editor.H1), "h1"},
		{"h3", heading(editor.H3), "h3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newDoc(t, tt.kind)
			tb := New(e)
			defer tb.Mount()()
			if got := tb.State().ActiveBlock; got != tt.want {
				t.Fatalf("active block = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActiveBlockForList(t *testing.T) {
	e, _ := newDoc(t, para)
	tb := New(e)
	defer tb.Mount()()
	tb.FormatList(editor.ListBullet)
	if got := tb.State().ActiveBlock; got != "bullet" {
		t.Fatalf("active block = %q, want bullet", got)
	}
	tb.FormatList(editor.ListBullet)
	if got := tb.State().ActiveBlock; got != "paragraph" {
		t.Fatalf("active block = %q, want paragraph", got)
	}
}

func TestToggleSameBlockTurnsIntoParagraph(t *testing.T) {
	e, _ := newDoc(t, heading(editor.H1))
	tb := New(e)
	defer tb.Mount()()

	if err := tb.ToggleBlock(BlockH1); err != nil {
		t.Fatal(err)
	}
	b := firstBlock(e)
	if b.Type != editor.TypeParagraph {
		t.Fatalf("block = %+v, want paragraph", b)
	}
	if tb.State().ActiveBlock != "paragraph" {
		t.Fatalf("active block = %q", tb.State().ActiveBlock)
	}
}

func TestToggleDifferentBlockConverts(t *testing.T) {
	e, texts := newDoc(t, quote)
	tb := New(e)
	defer tb.Mount()()

	if err := tb.ToggleBlock(BlockH2); err != nil {
		t.Fatal(err)
	}
	b := firstBlock(e)
	if !editor.IsHeading(b) || b.Tag != "h2" {
		t.Fatalf("block = %+v, want h2 heading", b)
	}
	if len(b.Children) != 1 || b.Children[0] != texts[0] {
		t.Fatal("inline content not preserved")
	}

	if err := tb.ToggleBlock(BlockQuote); err != nil {
		t.Fatal(err)
	}
	if b := firstBlock(e); b.Type != editor.TypeQuote {
		t.Fatalf("block = %+v, want quote", b)
	}
}

func TestInlineStylesAccumulateInOrder(t *testing.T) {
	e, texts := newDoc(t, para, para)
	tb := New(e)
	defer tb.Mount()()
	selectAll(t, e, texts)

	if err := tb.SetFontSize("18px"); err != nil {
		t.Fatal(err)
	}
	if err := tb.SetFontFamily("Georgia"); err != nil {
		t.Fatal(err)
	}
	e.Read(func(v *editor.View) {
		for _, k := range texts {
			if got, want := v.Node(k).Style, "font-size: 18px; font-family: Georgia;"; got != want {
				t.Fatalf("style = %q, want %q", got, want)
			}
		}
	})

	if err := tb.SetFontSize("24px"); err != nil {
		t.Fatal(err)
	}
	e.Read(func(v *editor.View) {
		if got := v.Node(texts[0]).Style; strings.Count(got, "font-size") != 2 {
			t.Fatalf("style = %q, want repeated declarations", got)
		}
	})
	if s := tb.State(); s.FontSize != "24px" || s.FontFamily != "Georgia" {
		t.Fatalf("font state = %+v", s)
	}
}

func TestUnknownFontPresetRejected(t *testing.T) {
	e, _ := newDoc(t, para)
	tb := New(e)
	defer tb.Mount()()
	if err := tb.SetFontSize("13px"); !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("err = %v, want ErrUnknownPreset", err)
	}
	if tb.State().FontSize != "12px" {
		t.Fatal("font size changed after rejected preset")
	}
}

func TestRejectedActionsAreLogged(t *testing.T) {
	e, _ := newDoc(t, para)
	var buf bytes.Buffer
	tb := New(e, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	defer tb.Mount()()

	if err := tb.SetFontFamily("Comic Sans"); !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("err = %v, want ErrUnknownPreset", err)
	}
	if err := tb.ToggleBlock(BlockKind("h9")); err == nil {
		t.Fatal("expected unknown block kind to fail")
	}
	out := buf.String()
	for _, want := range []string{`level=WARN msg="rejected font family" family="Comic Sans"`, `msg="failed to toggle block" kind=h9`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log %q does not contain %q", out, want)
		}
	}
}

func TestHistoryFlagsMirrorNotificationsOnly(t *testing.T) {
	e, texts := newDoc(t, para)
	tb := New(e)
	defer tb.Mount()()

	// No history registered: edits alone must not enable undo.
	if err := e.Update(func(tx *editor.Tx) error { return tx.SetText(texts[0], "edited") }); err != nil {
		t.Fatal(err)
	}
	if !tb.UndoDisabled() {
		t.Fatal("undo enabled without a history notification")
	}

	editor.DispatchCommand(e, editor.CanUndoCommand, true)
	if tb.UndoDisabled() {
		t.Fatal("undo should follow the pushed value")
	}
	if err := e.Update(func(tx *editor.Tx) error { return tx.SetText(texts[0], "again") }); err != nil {
		t.Fatal(err)
	}
	if tb.UndoDisabled() {
		t.Fatal("content edit flipped the undo flag")
	}
	editor.DispatchCommand(e, editor.CanUndoCommand, false)
	if !tb.UndoDisabled() {
		t.Fatal("undo should be disabled again")
	}
}

func TestUndoRedoThroughHistory(t *testing.T) {
	e, texts := newDoc(t, para)
	tb := New(e)
	defer tb.Mount()()
	defer editor.RegisterHistory(e)()

	selectAll(t, e, texts)
	tb.FormatText(editor.TextBold)
	if tb.UndoDisabled() {
		t.Fatal("undo should be enabled after an edit")
	}
	if !tb.Undo() {
		t.Fatal("undo not handled")
	}
	if s := tb.State(); s.Bold || !s.CanRedo || s.CanUndo {
		t.Fatalf("state after undo = %+v", s)
	}
	if !tb.Redo() {
		t.Fatal("redo not handled")
	}
	if s := tb.State(); !s.Bold || s.CanRedo {
		t.Fatalf("state after redo = %+v", s)
	}
}

func TestAlignForwardsCommand(t *testing.T) {
	e, _ := newDoc(t, para)
	tb := New(e)
	defer tb.Mount()()
	var got editor.Alignment
	editor.RegisterCommand(e, editor.FormatElementCommand, func(a editor.Alignment) bool {
		got = a
		return false
	}, editor.PriorityHigh)
	tb.Align(editor.AlignJustify)
	if got != editor.AlignJustify {
		t.Fatalf("forwarded %q", got)
	}
	if firstBlock(e).Align != editor.AlignJustify {
		t.Fatal("block not aligned")
	}
}

func TestUnmountStopsUpdates(t *testing.T) {
	e, texts := newDoc(t, para)
	tb := New(e)
	unmount := tb.Mount()
	unmount()
	if err := e.Update(func(tx *editor.Tx) error { return tx.SetFormat(texts[0], editor.FormatBold) }); err != nil {
		t.Fatal(err)
	}
	selectAll(t, e, texts)
	if tb.State().Bold {
		t.Fatal("state changed after unmount")
	}
}

func TestOnChangeFiresOnlyOnDifference(t *testing.T) {
	e, texts := newDoc(t, para)
	var calls int
	tb := New(e, WithOnChange(func(State) { calls++ }))
	defer tb.Mount()()
	calls = 0
	if err := e.Update(func(tx *editor.Tx) error { return tx.SetText(texts[0], "x") }); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Fatalf("calls = %d, want 0 for unchanged state", calls)
	}
	editor.DispatchCommand(e, editor.CanRedoCommand, true)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRenderMarksActiveAndDisabled(t *testing.T) {
	s := State{CanUndo: true, Bold: true, ActiveBlock: "h2", FontSize: "12px", FontFamily: "Arial"}
	groups := Groups(s)
	if !groups[0][1].Disabled || groups[0][0].Disabled {
		t.Fatal("redo should be disabled, undo enabled")
	}
	if !groups[1][1].Active || groups[1][0].Active {
		t.Fatal("only H2 should be active")
	}
	if !groups[2][0].Active {
		t.Fatal("bold should be active")
	}
	out := Render(s, DefaultStyles())
	for _, want := range []string{"undo", "H2", "12px", "Arial", "justify"} {
		if !strings.Contains(out, want) {
			t.Fatalf("render %q missing %q", out, want)
		}
	}
}
