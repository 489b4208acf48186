package toolbar

// Presets are the choices offered by the font size and font family pickers. The entries at
// DefaultSizeIndex and DefaultFamilyIndex are selected when the toolbar mounts.
type Presets struct {
	FontSizes          []string
	FontFamilies       []string
	DefaultSizeIndex   int
	DefaultFamilyIndex int
}

func DefaultPresets() Presets {
	return Presets{
		FontSizes: []string{"8px", "10px", "12px", "14px", "16px", "18px", "24px", "36px", "48px", "72px"},
		FontFamilies: []string{
			"Arial", "Arial Black", "Book Antiqua", "Helvetica", "Symbol", "Times New Roman", "Georgia",
			"Verdana", "Courier New", "Tahoma", "Comic Sans MS", "Calibiri", "Lucida Handwriting",
			"Monotype Corsiva", "Impact",
		},
		DefaultSizeIndex:   2,
		DefaultFamilyIndex: 0,
	}
}

func (p Presets) DefaultFontSize() string {
	return pick(p.FontSizes, p.DefaultSizeIndex)
}

func (p Presets) DefaultFontFamily() string {
	return pick(p.FontFamilies, p.DefaultFamilyIndex)
}

func pick(values []string, idx int) string {
	if len(values) == 0 {
		return ""
	}
	if idx < 0 || idx >= len(values) {
		return values[0]
	}
	return values[idx]
}

// Next returns the entry after current, wrapping around.
func Next(values []string, current string) string {
	for i, v := range values {
		if v == current {
			return values[(i+1)%len(values)]
		}
	}
	return pick(values, 0)
}
