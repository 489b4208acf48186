// Package toolbar mirrors the formatting state of an editor selection and turns toolbar
// gestures into editor commands. Derived state is rebuilt from scratch on every editor
// notification; only the font choices are owned by the toolbar itself.
package toolbar

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/astromechza/automerge-docs/pkg/editor"
)

// BlockKind is a block the toolbar can toggle.
type BlockKind string

const (
	BlockH1        BlockKind = "h1"
	BlockH2        BlockKind = "h2"
	BlockH3        BlockKind = "h3"
	BlockQuote     BlockKind = "quote"
	BlockParagraph BlockKind = "paragraph"
)

var ErrUnknownPreset = errors.New("value is not one of the toolbar presets")

// State is what the toolbar renders.
type State struct {
	CanUndo bool
	CanRedo bool

	Bold          bool
	Italic        bool
	Underline     bool
	Strikethrough bool

	// ActiveBlock is the heading tag ("h1") or block type ("paragraph", "quote") of the block
	// holding the selection anchor, the list type for lists, or empty without a range selection.
	ActiveBlock string

	FontSize   string
	FontFamily string
}

type Toolbar struct {
	editor   *editor.Editor
	presets  Presets
	logger   *slog.Logger
	onChange func(State)

	mu    sync.Mutex
	state State
}

type Option func(*Toolbar)

func WithPresets(p Presets) Option {
	return func(t *Toolbar) {
		t.presets = p
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Toolbar) {
		t.logger = l
	}
}

// WithOnChange is called with a fresh snapshot whenever the toolbar state changes.
func WithOnChange(fn func(State)) Option {
	return func(t *Toolbar) {
		t.onChange = fn
	}
}

func New(e *editor.Editor, opts ...Option) *Toolbar {
	t := &Toolbar{editor: e, presets: DefaultPresets(), logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	t.state.FontSize = t.presets.DefaultFontSize()
	t.state.FontFamily = t.presets.DefaultFontFamily()
	return t
}

// Mount subscribes the toolbar to the editor and derives the initial state. The returned
// function removes every subscription.
func (t *Toolbar) Mount() func() {
	unmount := editor.MergeRegister(
		t.editor.RegisterUpdateListener(func(p editor.UpdatePayload) {
			t.refresh(editor.NewView(p.State))
		}),
		editor.RegisterCommand(t.editor, editor.SelectionChangeCommand, func(editor.Empty) bool {
			t.editor.Read(t.refresh)
			return false
		}, editor.PriorityLow),
		editor.RegisterCommand(t.editor, editor.CanUndoCommand, func(v bool) bool {
			t.set(func(s *State) { s.CanUndo = v })
			return false
		}, editor.PriorityLow),
		editor.RegisterCommand(t.editor, editor.CanRedoCommand, func(v bool) bool {
			t.set(func(s *State) { s.CanRedo = v })
			return false
		}, editor.PriorityLow),
	)
	t.editor.Read(t.refresh)
	return unmount
}

func (t *Toolbar) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Toolbar) UndoDisabled() bool {
	return !t.State().CanUndo
}

func (t *Toolbar) RedoDisabled() bool {
	return !t.State().CanRedo
}

func (t *Toolbar) Presets() Presets {
	return t.presets
}

func (t *Toolbar) set(fn func(s *State)) {
	t.mu.Lock()
	before := t.state
	fn(&t.state)
	after := t.state
	t.mu.Unlock()
	if after != before && t.onChange != nil {
		t.onChange(after)
	}
}

func (t *Toolbar) refresh(v *editor.View) {
	var bold, italic, underline, strike bool
	if rs, ok := editor.AsRangeSelection(v.Selection()); ok {
		bold = rs.HasFormat(editor.FormatBold)
		italic = rs.HasFormat(editor.FormatItalic)
		underline = rs.HasFormat(editor.FormatUnderline)
		strike = rs.HasFormat(editor.FormatStrikethrough)
	}
	active := ActiveBlock(v)
	t.set(func(s *State) {
		s.Bold, s.Italic, s.Underline, s.Strikethrough = bold, italic, underline, strike
		s.ActiveBlock = active
	})
}

// ActiveBlock classifies the top-level block containing the selection anchor.
func ActiveBlock(v *editor.View) string {
	rs, ok := editor.AsRangeSelection(v.Selection())
	if !ok {
		return ""
	}
	anchor := rs.AnchorNode()
	if anchor == nil {
		return ""
	}
	element := anchor
	if anchor.Key != editor.RootKey {
		element = v.FindMatchingParent(anchor, func(n *editor.Node) bool {
			parent := v.Parent(n)
			return parent != nil && v.IsRootOrShadowRoot(parent)
		})
	}
	if element == nil {
		element = v.TopLevelElementOrPanic(anchor)
	}
	switch {
	case editor.IsHeading(element):
		return element.Tag
	case editor.IsList(element):
		return element.Tag
	}
	return string(element.Type)
}

// ToggleBlock converts the selected blocks to kind, or back to paragraphs when kind is
// already the active block.
func (t *Toolbar) ToggleBlock(kind BlockKind) error {
	active := t.State().ActiveBlock
	err := t.editor.Update(func(tx *editor.Tx) error {
		sel := tx.Selection()
		if string(kind) == active {
			return tx.SetBlocksType(sel, func() *editor.Node { return tx.CreateParagraph() })
		}
		switch kind {
		case BlockH1, BlockH2, BlockH3:
			return tx.SetBlocksType(sel, func() *editor.Node { return tx.CreateHeading(editor.HeadingTag(kind)) })
		case BlockQuote:
			return tx.SetBlocksType(sel, func() *editor.Node { return tx.CreateQuote() })
		case BlockParagraph:
			return tx.SetBlocksType(sel, func() *editor.Node { return tx.CreateParagraph() })
		}
		return fmt.Errorf("unknown block kind %q", string(kind))
	})
	if err != nil {
		t.logger.Warn("failed to toggle block", "kind", kind, "err", err)
	}
	return err
}

// FormatList wraps the selection in a list of type lt, or unwraps it when that list type is
// already active.
func (t *Toolbar) FormatList(lt editor.ListType) bool {
	if t.State().ActiveBlock == string(lt) {
		return editor.DispatchCommand(t.editor, editor.RemoveListCommand, editor.Empty{})
	}
	return editor.DispatchCommand(t.editor, editor.InsertListCommand, lt)
}

// ApplyTextStyle appends "prop: value;" to the inline style of every selected text node.
// Declarations accumulate; an earlier value for the same property is not removed.
func (t *Toolbar) ApplyTextStyle(prop, value string) error {
	err := t.editor.Update(func(tx *editor.Tx) error {
		rs, ok := editor.AsRangeSelection(tx.Selection())
		if !ok {
			return nil
		}
		for _, n := range rs.Nodes() {
			if !n.IsText() {
				continue
			}
			style := strings.TrimSpace(fmt.Sprintf("%s %s: %s;", n.Style, prop, value))
			if err := tx.SetStyle(n.Key, style); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.logger.Warn("failed to apply text style", "prop", prop, "value", value, "err", err)
	}
	return err
}

func (t *Toolbar) SetFontSize(size string) error {
	if !slices.Contains(t.presets.FontSizes, size) {
		t.logger.Warn("rejected font size", "size", size, "presets", t.presets.FontSizes)
		return fmt.Errorf("%w: font size %q", ErrUnknownPreset, size)
	}
	t.set(func(s *State) { s.FontSize = size })
	return t.ApplyTextStyle("font-size", size)
}

func (t *Toolbar) SetFontFamily(family string) error {
	if !slices.Contains(t.presets.FontFamilies, family) {
		t.logger.Warn("rejected font family", "family", family, "presets", t.presets.FontFamilies)
		return fmt.Errorf("%w: font family %q", ErrUnknownPreset, family)
	}
	t.set(func(s *State) { s.FontFamily = family })
	return t.ApplyTextStyle("font-family", family)
}

func (t *Toolbar) Undo() bool {
	return editor.DispatchCommand(t.editor, editor.UndoCommand, editor.Empty{})
}

func (t *Toolbar) Redo() bool {
	return editor.DispatchCommand(t.editor, editor.RedoCommand, editor.Empty{})
}

func (t *Toolbar) FormatText(f editor.TextFormat) bool {
	return editor.DispatchCommand(t.editor, editor.FormatTextCommand, f)
}

func (t *Toolbar) Align(a editor.Alignment) bool {
	return editor.DispatchCommand(t.editor, editor.FormatElementCommand, a)
}
