package tui

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown reports for the terminal.
// With plain set it uses the ASCII style, for pipes and tests.
func NewRenderer(plain bool) (func(string) (string, error), error) {
	opt := glamour.WithAutoStyle() // Automatically detect light/dark background
	if plain {
		opt = glamour.WithStandardStyle("ascii")
	}
	r, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(100))
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}, nil
}
