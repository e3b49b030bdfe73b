package content

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnclosedFrontMatter is returned when a file opens a front-matter block
// but never closes it.
var ErrUnclosedFrontMatter = errors.New("front matter started but no closing delimiter found")

var fence = []byte("---")

// FrontMatter is the metadata block at the top of a post.
type FrontMatter struct {
	Slug    string  `yaml:"slug"`
	Date    rawDate `yaml:"date"`
	Title   string  `yaml:"title"`
	Tags    tagList `yaml:"tags"`
	Summary string  `yaml:"summary"`
	Draft   bool    `yaml:"draft"`
}

// SplitFrontMatter separates a leading "---" fenced block from the body. The
// opening fence must be the first line and the closing fence a line of its
// own. Files without an opening fence have no metadata.
func SplitFrontMatter(data []byte) (meta, body []byte, err error) {
	first, rest, ok := cutLine(data)
	if !ok && len(first) == 0 {
		return nil, data, nil
	}
	if !bytes.Equal(bytes.TrimRight(first, "\r"), fence) {
		return nil, data, nil
	}

	start := len(data) - len(rest)
	for pos := start; pos <= len(data); {
		line, next, more := cutLine(data[pos:])
		if bytes.Equal(bytes.TrimRight(line, "\r"), fence) {
			return data[start:pos], next, nil
		}
		if !more {
			break
		}
		pos = len(data) - len(next)
	}
	return nil, nil, ErrUnclosedFrontMatter
}

// cutLine returns the first line of b (without "\n"), the remainder, and
// whether a newline was found.
func cutLine(b []byte) (line, rest []byte, found bool) {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i], b[i+1:], true
	}
	return b, nil, false
}

// ParseFrontMatter decodes a YAML metadata block.
func ParseFrontMatter(meta []byte) (FrontMatter, error) {
	var fm FrontMatter
	if len(bytes.TrimSpace(meta)) == 0 {
		return fm, nil
	}
	if err := yaml.Unmarshal(meta, &fm); err != nil {
		return FrontMatter{}, fmt.Errorf("parse front matter: %w", err)
	}
	return fm, nil
}

// rawDate keeps the date exactly as written, whether YAML resolves it as a
// timestamp or a string.
type rawDate string

func (d *rawDate) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("date: expected a scalar, got %s", nodeKind(value))
	}
	*d = rawDate(strings.TrimSpace(value.Value))
	return nil
}

// tagList accepts either a YAML sequence or a comma-separated string.
type tagList []string

func (t *tagList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var tags []string
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("tags: expected scalars, got %s", nodeKind(item))
			}
			if s := strings.TrimSpace(item.Value); s != "" {
				tags = append(tags, s)
			}
		}
		*t = tags
	case yaml.ScalarNode:
		var tags []string
		for _, s := range strings.Split(value.Value, ",") {
			if s = strings.TrimSpace(s); s != "" {
				tags = append(tags, s)
			}
		}
		*t = tags
	default:
		return fmt.Errorf("tags: expected a list or string, got %s", nodeKind(value))
	}
	return nil
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.AliasNode:
		return "alias"
	default:
		return "scalar"
	}
}
