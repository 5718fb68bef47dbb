package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the botflow banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text, color string
	}{
		{"  _           _    __ _               ", "#34d399"},
		{" | |__   ___ | |_ / _| | _____      __", "#2dd4bf"},
		{" | '_ \\ / _ \\| __| |_| |/ _ \\ \\ /\\ / /", "#22d3ee"},
		{" | |_) | (_) | |_|  _| | (_) \\ V  V / ", "#38bdf8"},
		{" |_.__/ \\___/ \\__|_| |_|\\___/ \\_/\\_/  ", "#60a5fa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// StatusStyle colours an execution status for terminal output.
func StatusStyle(status string) termenv.Style {
	p := termenv.ColorProfile()
	s := termenv.String(status).Bold()
	switch status {
	case "running":
		return s.Foreground(p.Color("#60a5fa"))
	case "paused":
		return s.Foreground(p.Color("#facc15"))
	case "stopped":
		return s.Foreground(p.Color("#34d399"))
	case "error":
		return s.Foreground(p.Color("#f87171"))
	}
	return s
}
