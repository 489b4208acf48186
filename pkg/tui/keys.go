package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings of the editor.
type keyMap struct {
	Quit key.Binding
	Help key.Binding

	// Selection
	Up        key.Binding
	Down      key.Binding
	ExtendUp  key.Binding
	ExtendDn  key.Binding
	SelectAll key.Binding

	// Content
	Edit     key.Binding
	NewBlock key.Binding
	Delete   key.Binding

	// Toolbar
	Undo       key.Binding
	Redo       key.Binding
	Bold       key.Binding
	Italic     key.Binding
	Underline  key.Binding
	Strike     key.Binding
	H1         key.Binding
	H2         key.Binding
	H3         key.Binding
	Quote      key.Binding
	Bullets    key.Binding
	Numbers    key.Binding
	Checks     key.Binding
	AlignLeft  key.Binding
	AlignCtr   key.Binding
	AlignRight key.Binding
	AlignJust  key.Binding
	FontSize   key.Binding
	FontFamily key.Binding

	// Text input
	Confirm key.Binding
	Cancel  key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Previous text"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Next text"),
		),
		ExtendUp: key.NewBinding(
			key.WithKeys("K", "shift+up"),
			key.WithHelp("K", "Extend selection up"),
		),
		ExtendDn: key.NewBinding(
			key.WithKeys("J", "shift+down"),
			key.WithHelp("J", "Extend selection down"),
		),
		SelectAll: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Select all"),
		),

		Edit: key.NewBinding(
			key.WithKeys("e", "enter"),
			key.WithHelp("e", "Edit text"),
		),
		NewBlock: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "New paragraph below"),
		),
		Delete: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "Delete block"),
		),

		Undo: key.NewBinding(
			key.WithKeys("z", "ctrl+z"),
			key.WithHelp("z", "Undo"),
		),
		Redo: key.NewBinding(
			key.WithKeys("y", "ctrl+y"),
			key.WithHelp("y", "Redo"),
		),
		Bold: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "Bold"),
		),
		Italic: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "Italic"),
		),
		Underline: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "Underline"),
		),
		Strike: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Strikethrough"),
		),
		H1: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "Heading 1"),
		),
		H2: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "Heading 2"),
		),
		H3: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "Heading 3"),
		),
		Quote: key.NewBinding(
			key.WithKeys(">"),
			key.WithHelp(">", "Quote"),
		),
		Bullets: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "Bulleted list"),
		),
		Numbers: key.NewBinding(
			key.WithKeys("#"),
			key.WithHelp("#", "Numbered list"),
		),
		Checks: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "Check list"),
		),
		AlignLeft: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "Align left"),
		),
		AlignCtr: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "Align center"),
		),
		AlignRight: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "Align right"),
		),
		AlignJust: key.NewBinding(
			key.WithKeys("F"),
			key.WithHelp("F", "Justify"),
		),
		FontSize: key.NewBinding(
			key.WithKeys("+"),
			key.WithHelp("+", "Next font size"),
		),
		FontFamily: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "Next font family"),
		),

		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Save text"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Cancel"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Edit, k.Bold, k.Undo, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.ExtendUp, k.ExtendDn, k.SelectAll, k.Edit, k.NewBlock, k.Delete},
		{k.Undo, k.Redo, k.Bold, k.Italic, k.Underline, k.Strike, k.FontSize, k.FontFamily},
		{k.H1, k.H2, k.H3, k.Quote, k.Bullets, k.Numbers, k.Checks},
		{k.AlignLeft, k.AlignCtr, k.AlignRight, k.AlignJust, k.Help, k.Quit},
	}
}
