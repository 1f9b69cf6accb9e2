package upload

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// markdownToHTML renders md as a standalone HTML document, which the
// translation service accepts as text/html.
func markdownToHTML(md []byte, title string) []byte {
	opts := html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank | html.CompletePage,
		Title: title,
	}
	renderer := html.NewRenderer(opts)
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Attributes)
	doc := p.Parse(normalizeNewlines(md))
	return markdown.Render(doc, renderer)
}

// normalizeNewlines converts CRLF and CR line endings to LF; the parser
// treats a lone CR as part of the line.
func normalizeNewlines(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(b, []byte("\r"), []byte("\n"))
}

func htmlName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".html"
}
