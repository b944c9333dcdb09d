package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
)

// Renderer turns code and bot answers into HTML. Raw HTML in the input is escaped, so the output is
// safe to embed in a page.
type Renderer struct {
	md goldmark.Markdown
}

const highlightStyle = "monokai"

// NewRenderer creates a Renderer highlighting code blocks with the monokai style.
func NewRenderer() Renderer {
	return Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				highlighting.NewHighlighting(
					highlighting.WithStyle(highlightStyle),
				),
			),
		),
	}
}

// Code renders src as a highlighted code block in lang.
func (r Renderer) Code(src, lang string) (template.HTML, error) {
	fence := codeFence(src)
	return r.Markdown(fmt.Sprintf("%s%s\n%s\n%s\n", fence, lang, strings.TrimRight(src, "\n"), fence))
}

// Markdown renders src as markdown.
func (r Renderer) Markdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	// goldmark escapes raw HTML unless WithUnsafe is set.
	return template.HTML(buf.String()), nil
}

// codeFence returns a backtick fence longer than any backtick run inside src.
func codeFence(src string) string {
	longest, run := 0, 0
	for _, c := range src {
		if c == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	return strings.Repeat("`", max(3, longest+1))
}

// Answer renders a bot's answer. Answers that already use markdown fences are rendered as markdown,
// anything else is taken to be bare Python code.
func (r Renderer) Answer(src string) (template.HTML, error) {
	if strings.Contains(src, "```") {
		return r.Markdown(src)
	}
	return r.Code(src, "python")
}
