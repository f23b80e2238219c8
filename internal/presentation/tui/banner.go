package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the weft banner followed by the version.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	// Using a subtle gradient-like color scheme (Teal/Indigo)
	lines := []struct{ text, color string }{
		{"                    __ _   ", "#2dd4bf"},
		{" __      _____ ___ / _| |_ ", "#22d3ee"},
		{" \\ \\ /\\ / / _ \\ _ \\ |_| __|", "#38bdf8"},
		{"  \\ V  V /  __/  _/  _| |_ ", "#818cf8"},
		{"   \\_/\\_/ \\___|_| |_|  \\__|", "#a78bfa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("   "+version).Faint())
	fmt.Fprintln(w)
}
