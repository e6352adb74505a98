package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the bozchat banner followed by a subtitle line.
func PrintBanner(w io.Writer, subtitle string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"  _                     _           _   ", "#34d399"},
		{" | |__   ___ ___ ___ __| |__   __ _| |_ ", "#2dd4bf"},
		{" | '_ \\ / _ \\_  // __|  _ \\ / _` | __|", "#22d3ee"},
		{" | |_) | (_) / /| (__| | | | (_| | |_ ", "#38bdf8"},
		{" |_.__/ \\___/___|\\___|_| |_|\\__,_|\\__|", "#60a5fa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	if subtitle != "" {
		fmt.Fprintln(w, termenv.String("  "+subtitle).Faint())
	}
	fmt.Fprintln(w)
}
