// Package tui is a terminal front end for the editor. It moves the selection between text
// nodes and drives every toolbar control from the keyboard.
package tui

import (
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/astromechza/automerge-docs/pkg/editor"
	"github.com/astromechza/automerge-docs/pkg/toolbar"
)

// RemoteChangeMsg tells the model that the synced document changed underneath it.
type RemoteChangeMsg struct{}

// Options configure a Model.
type Options struct {
	Editor *editor.Editor
	// Toolbar must already be mounted on Editor.
	Toolbar *toolbar.Toolbar
	// Reload applies remote document changes to Editor. Optional.
	Reload func() (bool, error)
	Title  string
	Logger *slog.Logger
}

type Model struct {
	editor  *editor.Editor
	toolbar *toolbar.Toolbar
	reload  func() (bool, error)
	title   string
	logger  *slog.Logger

	keys   keyMap
	help   help.Model
	input  textinput.Model
	styles styles

	editing bool
	width   int
	height  int
	status  string
}

func New(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	input := textinput.New()
	input.Prompt = "edit> "
	return Model{
		editor:  opts.Editor,
		toolbar: opts.Toolbar,
		reload:  opts.Reload,
		title:   opts.Title,
		logger:  logger,
		keys:    defaultKeyMap(),
		help:    help.New(),
		input:   input,
		styles:  defaultStyles(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case RemoteChangeMsg:
		if m.reload != nil {
			if applied, err := m.reload(); err != nil {
				m.logger.Error("failed to apply remote changes", "err", err)
				m.status = "sync error: " + err.Error()
			} else if applied {
				m.status = "merged remote changes"
			}
		}
		return m, nil

	case tea.KeyMsg:
		if m.editing {
			return m.handleInputKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.editing = false
		m.input.Blur()
		m.report(m.setText(m.input.Value()))
		return m, nil
	case key.Matches(msg, m.keys.Cancel):
		m.editing = false
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	tb := m.toolbar
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Up):
		m.report(m.moveCaret(-1))
	case key.Matches(msg, m.keys.Down):
		m.report(m.moveCaret(1))
	case key.Matches(msg, m.keys.ExtendUp):
		m.report(m.extendSelection(-1))
	case key.Matches(msg, m.keys.ExtendDn):
		m.report(m.extendSelection(1))
	case key.Matches(msg, m.keys.SelectAll):
		m.report(m.selectAll())

	case key.Matches(msg, m.keys.Edit):
		m.editing = true
		m.input.SetValue(m.anchorText())
		m.input.CursorEnd()
		cmd := m.input.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.NewBlock):
		m.report(m.newParagraph())
	case key.Matches(msg, m.keys.Delete):
		m.report(m.deleteBlock())

	case key.Matches(msg, m.keys.Undo):
		tb.Undo()
	case key.Matches(msg, m.keys.Redo):
		tb.Redo()
	case key.Matches(msg, m.keys.Bold):
		tb.FormatText(editor.TextBold)
	case key.Matches(msg, m.keys.Italic):
		tb.FormatText(editor.TextItalic)
	case key.Matches(msg, m.keys.Underline):
		tb.FormatText(editor.TextUnderline)
	case key.Matches(msg, m.keys.Strike):
		tb.FormatText(editor.TextStrikethrough)
	case key.Matches(msg, m.keys.H1):
		m.report(tb.ToggleBlock(toolbar.BlockH1))
	case key.Matches(msg, m.keys.H2):
		m.report(tb.ToggleBlock(toolbar.BlockH2))
	case key.Matches(msg, m.keys.H3):
		m.report(tb.ToggleBlock(toolbar.BlockH3))
	case key.Matches(msg, m.keys.Quote):
		m.report(tb.ToggleBlock(toolbar.BlockQuote))
	case key.Matches(msg, m.keys.Bullets):
		tb.FormatList(editor.ListBullet)
	case key.Matches(msg, m.keys.Numbers):
		tb.FormatList(editor.ListNumber)
	case key.Matches(msg, m.keys.Checks):
		tb.FormatList(editor.ListCheck)
	case key.Matches(msg, m.keys.AlignLeft):
		tb.Align(editor.AlignLeft)
	case key.Matches(msg, m.keys.AlignCtr):
		tb.Align(editor.AlignCenter)
	case key.Matches(msg, m.keys.AlignRight):
		tb.Align(editor.AlignRight)
	case key.Matches(msg, m.keys.AlignJust):
		tb.Align(editor.AlignJustify)
	case key.Matches(msg, m.keys.FontSize):
		m.report(tb.SetFontSize(toolbar.Next(tb.Presets().FontSizes, tb.State().FontSize)))
	case key.Matches(msg, m.keys.FontFamily):
		m.report(tb.SetFontFamily(toolbar.Next(tb.Presets().FontFamilies, tb.State().FontFamily)))
	}
	return m, nil
}

func (m *Model) report(err error) {
	if err != nil {
		m.logger.Warn("editor action failed", "err", err)
		m.status = err.Error()
	}
}

// anchorIndex is the position of the selection anchor among the text nodes, or -1.
func anchorIndex(v *editor.View, texts []*editor.Node) int {
	rs, ok := editor.AsRangeSelection(v.Selection())
	if !ok {
		return -1
	}
	for i, t := range texts {
		if t.Key == rs.Anchor.Key {
			return i
		}
	}
	return -1
}

func clamp(i, n int) int {
	return max(0, min(i, n-1))
}

func (m Model) moveCaret(delta int) error {
	return m.editor.Update(func(tx *editor.Tx) error {
		texts := tx.TextNodes()
		if len(texts) == 0 {
			return nil
		}
		i := anchorIndex(&tx.View, texts)
		if i < 0 {
			i = 0
		} else {
			i = clamp(i+delta, len(texts))
		}
		tx.SetSelection(editor.Caret(texts[i].Key, 0))
		return nil
	})
}

func (m Model) extendSelection(delta int) error {
	return m.editor.Update(func(tx *editor.Tx) error {
		texts := tx.TextNodes()
		rs, ok := editor.AsRangeSelection(tx.Selection())
		if !ok || len(texts) == 0 {
			return nil
		}
		focus := -1
		for i, t := range texts {
			if t.Key == rs.Focus.Key {
				focus = i
			}
		}
		if focus < 0 {
			return nil
		}
		next := texts[clamp(focus+delta, len(texts))]
		tx.SetSelection(editor.NewRangeSelection(rs.Anchor, editor.Point{Key: next.Key, Offset: len(next.Text)}))
		return nil
	})
}

func (m Model) selectAll() error {
	return m.editor.Update(func(tx *editor.Tx) error {
		texts := tx.TextNodes()
		if len(texts) == 0 {
			return nil
		}
		last := texts[len(texts)-1]
		tx.SetSelection(editor.NewRangeSelection(
			editor.Point{Key: texts[0].Key},
			editor.Point{Key: last.Key, Offset: len(last.Text)},
		))
		return nil
	})
}

func (m Model) anchorText() string {
	var out string
	m.editor.Read(func(v *editor.View) {
		rs, ok := editor.AsRangeSelection(v.Selection())
		if !ok {
			return
		}
		if n := v.Node(rs.Anchor.Key); n != nil && n.IsText() {
			out = n.Text
		}
	})
	return out
}

// setText replaces the text of the anchor's text node. An anchor on an empty element gets a
// new text node.
func (m Model) setText(value string) error {
	return m.editor.Update(func(tx *editor.Tx) error {
		rs, ok := editor.AsRangeSelection(tx.Selection())
		if !ok {
			return fmt.Errorf("nothing selected")
		}
		n := tx.Node(rs.Anchor.Key)
		if n == nil {
			return fmt.Errorf("%w: %s", editor.ErrUnknownNode, rs.Anchor.Key)
		}
		if n.IsText() {
			if err := tx.SetText(n.Key, value); err != nil {
				return err
			}
			tx.SetSelection(editor.Caret(n.Key, len(value)))
			return nil
		}
		t := tx.CreateText(value)
		if err := tx.Append(n.Key, t.Key); err != nil {
			return err
		}
		tx.SetSelection(editor.Caret(t.Key, len(value)))
		return nil
	})
}

func (m Model) newParagraph() error {
	return m.editor.Update(func(tx *editor.Tx) error {
		p := tx.CreateParagraph()
		t := tx.CreateText("")
		if err := tx.Append(p.Key, t.Key); err != nil {
			return err
		}
		var after *editor.Node
		if rs, ok := editor.AsRangeSelection(tx.Selection()); ok {
			if n := rs.AnchorNode(); n != nil {
				after = tx.TopLevelElement(n)
			}
		}
		blocks := tx.Blocks()
		placed := false
		for i, b := range blocks {
			if after != nil && b.Key == after.Key && i+1 < len(blocks) {
				if err := tx.InsertBefore(blocks[i+1].Key, p.Key); err != nil {
					return err
				}
				placed = true
				break
			}
		}
		if !placed {
			if err := tx.Append(editor.RootKey, p.Key); err != nil {
				return err
			}
		}
		tx.SetSelection(editor.Caret(t.Key, 0))
		return nil
	})
}

func (m Model) deleteBlock() error {
	return m.editor.Update(func(tx *editor.Tx) error {
		rs, ok := editor.AsRangeSelection(tx.Selection())
		if !ok {
			return nil
		}
		n := rs.AnchorNode()
		if n == nil || n.Key == editor.RootKey {
			return nil
		}
		block := tx.TopLevelElement(n)
		if block == nil {
			return nil
		}
		if err := tx.Remove(block.Key); err != nil {
			return err
		}
		if len(tx.Blocks()) == 0 {
			p := tx.CreateParagraph()
			if err := tx.Append(editor.RootKey, p.Key); err != nil {
				return err
			}
			tx.SetSelection(editor.Caret(p.Key, 0))
		}
		return nil
	})
}
