package toolbar

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles used by Render.
type Styles struct {
	Item     lipgloss.Style
	Active   lipgloss.Style
	Disabled lipgloss.Style
	Divider  lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Item:     lipgloss.NewStyle().Padding(0, 1),
		Active:   lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true),
		Disabled: lipgloss.NewStyle().Padding(0, 1).Faint(true),
		Divider:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Button is a single rendered control.
type Button struct {
	Label    string
	Active   bool
	Disabled bool
}

// Groups lays out the controls for s, one slice per divider-separated group.
func Groups(s State) [][]Button {
	return [][]Button{
		{
			{Label: "undo", Disabled: !s.CanUndo},
			{Label: "redo", Disabled: !s.CanRedo},
		},
		{
			{Label: "H1", Active: s.ActiveBlock == string(BlockH1)},
			{Label: "H2", Active: s.ActiveBlock == string(BlockH2)},
			{Label: "H3", Active: s.ActiveBlock == string(BlockH3)},
			{Label: "quote", Active: s.ActiveBlock == string(BlockQuote)},
		},
		{
			{Label: "B", Active: s.Bold},
			{Label: "I", Active: s.Italic},
			{Label: "U", Active: s.Underline},
			{Label: "S", Active: s.Strikethrough},
		},
		{{Label: s.FontSize}},
		{{Label: s.FontFamily}},
		{
			{Label: "left"},
			{Label: "center"},
			{Label: "right"},
			{Label: "justify"},
		},
		{
			{Label: "bullets", Active: s.ActiveBlock == "bullet"},
			{Label: "numbers", Active: s.ActiveBlock == "number"},
			{Label: "checks", Active: s.ActiveBlock == "check"},
		},
	}
}

// Render draws the toolbar on a single line.
func Render(s State, st Styles) string {
	groups := Groups(s)
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		var sb strings.Builder
		for _, b := range g {
			switch {
			case b.Disabled:
				sb.WriteString(st.Disabled.Render(b.Label))
			case b.Active:
				sb.WriteString(st.Active.Render(b.Label))
			default:
				sb.WriteString(st.Item.Render(b.Label))
			}
		}
		parts = append(parts, sb.String())
	}
	return strings.Join(parts, st.Divider.Render("│"))
}
