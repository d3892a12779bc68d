// Package markdown converts markdown documents to plain text before ingestion.
package markdown

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var extraBlankLines = regexp.MustCompile(`\n{3,}`)

// Extractor strips markdown syntax, keeping the text a reader would see.
// Headings, paragraphs and code blocks are separated by a blank line;
// list items are one per line. Link targets, images and raw HTML are dropped.
type Extractor struct {
	md goldmark.Markdown
}

// NewExtractor creates an extractor with the CommonMark parser.
func NewExtractor() *Extractor {
	return &Extractor{md: goldmark.New()}
}

// PlainText returns the text content of source.
func (e *Extractor) PlainText(source []byte) (string, error) {
	doc := e.md.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				b.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				b.Write(node.URL(source))
			}
		case *ast.Image, *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(source))
				}
				return ast.WalkSkipChildren, nil
			}
			endLines(&b, 2)
		case *ast.Heading, *ast.Paragraph, *ast.List, *ast.Blockquote:
			if !entering {
				endLines(&b, 2)
			}
		case *ast.TextBlock:
			if !entering {
				endLines(&b, 1)
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(extraBlankLines.ReplaceAllString(b.String(), "\n\n")), nil
}

// PlainText converts source with a default extractor. It matches the
// signature the GitHub fetcher expects for transforms.
func PlainText(source []byte) (string, error) {
	return NewExtractor().PlainText(source)
}

// endLines pads b so it ends with at least n newlines.
func endLines(b *strings.Builder, n int) {
	s := b.String()
	if s == "" {
		return
	}
	have := len(s) - len(strings.TrimRight(s, "\n"))
	for ; have < n; have++ {
		b.WriteByte('\n')
	}
}
