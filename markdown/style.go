package markdown

import (
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
)

// StyleCSS returns the stylesheet for the highlight classes emitted by the
// converter. Unknown style names fall back to chroma's default style.
func StyleCSS(style string) (string, error) {
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	var buf strings.Builder
	if err := formatter.WriteCSS(&buf, styles.Get(style)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
