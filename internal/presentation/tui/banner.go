package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the detent banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"      _      _             _   ", "#34d399"},
		{"     | |    | |           | |  ", "#2dd4bf"},
		{"   __| | ___| |_ ___ _ __ | |_ ", "#22d3ee"},
		{"  / _` |/ _ \\ __/ _ \\ '_ \\| __|", "#38bdf8"},
		{" | (_| |  __/ ||  __/ | | | |_ ", "#60a5fa"},
		{"  \\__,_|\\___|\\__\\___|_| |_|\\__|", "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
