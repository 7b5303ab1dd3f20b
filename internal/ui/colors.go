package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/basket/internal/realtime"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	done  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
		done:  NewStyle(h).Strikethrough(true),
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

// level picks the style for a notification.
func (p *Palette) level(l realtime.Level) lipgloss.Style {
	switch l {
	case realtime.LevelSuccess:
		return p.ok
	case realtime.LevelWarning:
		return p.warn
	case realtime.LevelError:
		return p.err
	default:
		return p.help
	}
}

// status renders the connection indicator.
func (p *Palette) status(s realtime.Status) string {
	switch s {
	case realtime.StatusOpen:
		return p.ok.Render("● live")
	case realtime.StatusConnecting:
		return p.warn.Render("◌ connecting")
	case realtime.StatusClosed:
		return p.warn.Render("○ reconnecting")
	case realtime.StatusFailedAuth, realtime.StatusFailedAccess, realtime.StatusFailed:
		return p.err.Render("✕ " + s.String())
	default:
		return p.help.Render("○ offline")
	}
}
