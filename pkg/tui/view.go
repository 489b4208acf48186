package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/astromechza/automerge-docs/pkg/editor"
	"github.com/astromechza/automerge-docs/pkg/toolbar"
)

type styles struct {
	Title    lipgloss.Style
	Status   lipgloss.Style
	Toolbar  toolbar.Styles
	Rule     lipgloss.Style
	Heading  map[editor.HeadingTag]lipgloss.Style
	Quote    lipgloss.Style
	Marker   lipgloss.Style
	Selected lipgloss.Style
	Empty    lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Title:   lipgloss.NewStyle().Bold(true).Padding(0, 1),
		Status:  lipgloss.NewStyle().Faint(true).Padding(0, 1),
		Toolbar: toolbar.DefaultStyles(),
		Rule:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Heading: map[editor.HeadingTag]lipgloss.Style{
			editor.H1: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
			editor.H2: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")),
			editor.H3: lipgloss.NewStyle().Bold(true),
		},
		Quote:    lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245")),
		Marker:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Selected: lipgloss.NewStyle().Reverse(true),
		Empty:    lipgloss.NewStyle().Faint(true),
	}
}

// View implements tea.Model.
func (m Model) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	var sb strings.Builder
	title := m.title
	if title == "" {
		title = "Untitled Document"
	}
	sb.WriteString(m.styles.Title.Render(title))
	if m.status != "" {
		sb.WriteString(m.styles.Status.Render(m.status))
	}
	sb.WriteString("\n")
	sb.WriteString(toolbar.Render(m.toolbar.State(), m.styles.Toolbar))
	sb.WriteString("\n")
	sb.WriteString(m.styles.Rule.Render(strings.Repeat("─", width)))
	sb.WriteString("\n")

	m.editor.Read(func(v *editor.View) {
		sb.WriteString(renderDocument(v, m.styles, width))
	})

	sb.WriteString("\n")
	if m.editing {
		sb.WriteString(m.input.View())
		sb.WriteString("\n")
	}
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

// renderDocument draws every block on its own line(s), highlighting the selected text.
func renderDocument(v *editor.View, st styles, width int) string {
	selected := map[editor.NodeKey]bool{}
	if sel := v.Selection(); sel != nil {
		for _, n := range sel.Nodes() {
			selected[n.Key] = true
		}
	}

	var lines []string
	for _, b := range v.Blocks() {
		if editor.IsList(b) {
			for i, item := range v.Children(b) {
				marker := "• "
				switch editor.ListType(b.Tag) {
				case editor.ListNumber:
					marker = fmt.Sprintf("%d. ", i+1)
				case editor.ListCheck:
					marker = "☐ "
				}
				lines = append(lines, align(st.Marker.Render(marker)+renderInline(v, item, st, selected, lipgloss.NewStyle()), b.Align, width))
			}
			continue
		}
		base := lipgloss.NewStyle()
		prefix := ""
		switch {
		case editor.IsHeading(b):
			base = st.Heading[editor.HeadingTag(b.Tag)]
			prefix = st.Marker.Render(strings.Repeat("#", headingLevel(b.Tag)) + " ")
		case b.Type == editor.TypeQuote:
			base = st.Quote
			prefix = st.Marker.Render("│ ")
		}
		lines = append(lines, align(prefix+renderInline(v, b, st, selected, base), b.Align, width))
	}
	return strings.Join(lines, "\n")
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 1
}

func renderInline(v *editor.View, el *editor.Node, st styles, selected map[editor.NodeKey]bool, base lipgloss.Style) string {
	children := v.Children(el)
	if len(children) == 0 {
		s := st.Empty.Render("¶")
		if selected[el.Key] {
			s = st.Selected.Render("¶")
		}
		return s
	}
	var sb strings.Builder
	for _, c := range children {
		if !c.IsText() {
			continue
		}
		style := base.
			Bold(base.GetBold() || c.Format.Has(editor.FormatBold)).
			Italic(base.GetItalic() || c.Format.Has(editor.FormatItalic)).
			Underline(c.Format.Has(editor.FormatUnderline)).
			Strikethrough(c.Format.Has(editor.FormatStrikethrough)).
			Reverse(selected[c.Key])
		text := c.Text
		if text == "" {
			text = " "
		}
		sb.WriteString(style.Render(text))
	}
	return sb.String()
}

func align(line string, a editor.Alignment, width int) string {
	var pos lipgloss.Position
	switch a {
	case editor.AlignCenter:
		pos = lipgloss.Center
	case editor.AlignRight:
		pos = lipgloss.Right
	default:
		// justify has no meaning for a single terminal line
		return line
	}
	return lipgloss.NewStyle().Width(width).Align(pos).Render(line)
}
