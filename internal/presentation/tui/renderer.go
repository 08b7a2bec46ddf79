package tui

import (
	"github.com/charmbracelet/glamour"

	"github.com/benchrig/benchrig/pkg/feedback"
)

// NewRenderer renders operator prompts as markdown with an automatic
// light or dark style. Prompts are returned unchanged if glamour cannot
// be initialised.
func NewRenderer(width int) feedback.Renderer {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return r.Render
}
