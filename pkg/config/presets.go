package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/astromechza/automerge-docs/pkg/toolbar"
)

// LoadPresets reads toolbar font presets from a TOML file:
//
//	font_sizes = ["12px", "16px"]
//	font_families = ["Arial", "Georgia"]
//	default_font_size = "16px"
//	default_font_family = "Georgia"
//
// Lists that are missing or empty keep the built-in presets. An empty path or a missing file
// yields the built-in presets.
func LoadPresets(path string) (toolbar.Presets, error) {
	presets := toolbar.DefaultPresets()
	if strings.TrimSpace(path) == "" {
		return presets, nil
	}
	bytes, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return presets, nil
		}
		return toolbar.Presets{}, fmt.Errorf("read presets: %w", err)
	}

	var raw struct {
		FontSizes         []string `toml:"font_sizes"`
		FontFamilies      []string `toml:"font_families"`
		DefaultFontSize   string   `toml:"default_font_size"`
		DefaultFontFamily string   `toml:"default_font_family"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return toolbar.Presets{}, fmt.Errorf("parse presets: %w", err)
	}

	if len(raw.FontSizes) > 0 {
		presets.FontSizes = raw.FontSizes
		presets.DefaultSizeIndex = 0
	}
	if len(raw.FontFamilies) > 0 {
		presets.FontFamilies = raw.FontFamilies
		presets.DefaultFamilyIndex = 0
	}
	if d := strings.TrimSpace(raw.DefaultFontSize); d != "" {
		idx := slices.Index(presets.FontSizes, d)
		if idx < 0 {
			return toolbar.Presets{}, fmt.Errorf("default font size %q is not in font_sizes", d)
		}
		presets.DefaultSizeIndex = idx
	}
	if d := strings.TrimSpace(raw.DefaultFontFamily); d != "" {
		idx := slices.Index(presets.FontFamilies, d)
		if idx < 0 {
			return toolbar.Presets{}, fmt.Errorf("default font family %q is not in font_families", d)
		}
		presets.DefaultFamilyIndex = idx
	}
	return presets, nil
}
