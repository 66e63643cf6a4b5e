package models

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/renderer/html"
)

// markdown renders untrusted chat content. Raw HTML stays disabled, so
// markup-significant characters in user or assistant text are neutralized
// before any markup this renderer emits; inner text of code spans and fenced
// blocks can never re-introduce live markup.
var markdown = goldmark.New(
	goldmark.WithExtensions(
		highlighting.NewHighlighting(
			highlighting.WithStyle("friendly"),
		),
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

// RenderMarkdown converts message content to HTML safe for direct insertion
// into the chat pane. Fenced code blocks, inline code, bold, italic and line
// breaks are the supported grammar; content without markup passes through
// with only escaping applied.
func RenderMarkdown(content string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}
