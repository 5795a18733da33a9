package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"nextrelease/internal/logger"
)

// PlainStyle is the glamour style used when colors are unavailable or unwanted.
const PlainStyle = "notty"

// MarkdownRenderer renders markdown for the terminal using Glamour.
type MarkdownRenderer struct {
	renderer *glamour.TermRenderer
	style    string
}

// NewMarkdownRenderer creates a renderer. With plain set, or when the terminal has no
// color support, the notty style is used.
func NewMarkdownRenderer(plain bool, width int) (*MarkdownRenderer, error) {
	if width <= 0 {
		return nil, fmt.Errorf("word wrap width must be positive, got %d", width)
	}

	style := "auto"
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if plain || lipgloss.ColorProfile() == termenv.Ascii {
		style = PlainStyle
		opts = append(opts, glamour.WithStandardStyle(PlainStyle))
	} else {
		opts = append(opts, glamour.WithAutoStyle())
	}

	renderer, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	logger.Debug("Markdown renderer ready", "style", style, "width", width)
	return &MarkdownRenderer{renderer: renderer, style: style}, nil
}

// Style returns the glamour style in use.
func (m *MarkdownRenderer) Style() string {
	return m.style
}

// Render renders markdown content to terminal output.
func (m *MarkdownRenderer) Render(markdown string) (string, error) {
	if strings.TrimSpace(markdown) == "" {
		return "", fmt.Errorf("markdown content cannot be empty")
	}

	rendered, err := m.renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return rendered, nil
}
