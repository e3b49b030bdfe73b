// Package markdown converts post bodies to HTML with goldmark, highlights
// fenced code with chroma and rewrites content-relative image paths.
package markdown

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// ErrConversion indicates goldmark failed to render a document.
var ErrConversion = errors.New("markdown conversion failed")

// DefaultHighlightStyle is the chroma style used when none is configured.
const DefaultHighlightStyle = "github"

// Converter turns markdown into an HTML fragment.
type Converter struct {
	md     goldmark.Markdown
	images ImageOptions
	style  string
	unsafe bool
}

// Option configures a Converter.
type Option func(*Converter)

// WithHighlightStyle selects the chroma style name for code blocks.
func WithHighlightStyle(style string) Option {
	return func(c *Converter) {
		if style != "" {
			c.style = style
		}
	}
}

// WithUnsafeHTML lets raw HTML in markdown through to the output. Link and
// image URLs are still checked with SafeURL.
func WithUnsafeHTML(enabled bool) Option {
	return func(c *Converter) {
		c.unsafe = enabled
	}
}

// WithImages configures image-path rewriting.
func WithImages(opts ImageOptions) Option {
	return func(c *Converter) {
		c.images = opts
	}
}

// NewConverter creates a Converter with GFM, footnotes, heading IDs and
// class-based syntax highlighting.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		style:  DefaultHighlightStyle,
		images: ImageOptions{ImageDir: "images", BaseURL: "/images"},
	}
	for _, opt := range opts {
		opt(c)
	}

	rendererOpts := []renderer.Option{gmhtml.WithXHTML()}
	if c.unsafe {
		rendererOpts = append(rendererOpts, gmhtml.WithUnsafe())
	}

	c.md = goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			highlighting.NewHighlighting(
				highlighting.WithStyle(c.style),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(rendererOpts...),
	)
	return c
}

// Style returns the chroma style name in use.
func (c *Converter) Style() string {
	return c.style
}

// Convert renders src to HTML. docDir is the slash-separated directory of the
// document relative to the content root ("" for top-level posts) and is used
// to resolve relative image paths.
func (c *Converter) Convert(ctx context.Context, src []byte, docDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := c.md.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrConversion, err)
	}
	out := buf.String()
	if !strings.Contains(out, "<img") && !(c.unsafe && strings.Contains(out, "<a ")) {
		return out, nil
	}
	rewritten, err := rewriteFragment(out, docDir, c.images, c.unsafe)
	if err != nil {
		return "", fmt.Errorf("%w: rewrite images: %v", ErrConversion, err)
	}
	return rewritten, nil
}

// HTML returns a templ.Component that writes already-rendered HTML as is.
func HTML(content string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, content)
		return err
	})
}

// SafeURL validates and sanitizes a URL for use in HTML attributes.
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}
