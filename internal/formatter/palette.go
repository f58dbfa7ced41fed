package formatter

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

var (
	styled = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")
	plain  = &Palette{
		title: lipgloss.NewStyle(),
		ok:    lipgloss.NewStyle(),
		err:   lipgloss.NewStyle(),
		warn:  lipgloss.NewStyle(),
		help:  lipgloss.NewStyle(),
	}
)

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

func paletteFor(style bool) *Palette {
	if style {
		return styled
	}
	return plain
}
