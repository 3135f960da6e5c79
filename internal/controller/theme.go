package controller

import (
	"strings"

	"github.com/aethra/glow/internal/models"
)

// EffectiveTheme resolves "system" to light or dark from the client's color
// scheme hint.
func EffectiveTheme(p models.Preferences, hint string) string {
	switch p.Normalize().Theme {
	case models.ThemeLight:
		return models.ThemeLight
	case models.ThemeDark:
		return models.ThemeDark
	}
	if strings.EqualFold(strings.Trim(strings.TrimSpace(hint), `"`), "dark") {
		return models.ThemeDark
	}
	return models.ThemeLight
}

// SetTheme returns p with a new theme mode. Unknown modes are ignored.
func SetTheme(p models.Preferences, mode string) models.Preferences {
	p = p.Normalize()
	if next := (models.Preferences{Theme: mode, Accent: p.Accent}).Normalize(); next.Theme == mode {
		p.Theme = mode
	}
	return p
}

// SetAccent returns p with a new accent. Unknown accents are ignored.
func SetAccent(p models.Preferences, accent string) models.Preferences {
	p = p.Normalize()
	if next := (models.Preferences{Theme: p.Theme, Accent: accent}).Normalize(); next.Accent == accent {
		p.Accent = accent
	}
	return p
}
