package content

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrPostNotFound is returned when no published post has the requested slug.
var ErrPostNotFound = errors.New("post not found")

// DefaultPattern matches markdown files in the content dir.
const DefaultPattern = "*.md"

// Converter renders a markdown body. docDir is the slash-separated directory
// of the post relative to the content dir.
type Converter interface {
	Convert(ctx context.Context, src []byte, docDir string) (string, error)
}

// Loader reads posts from a directory. Posts are read from disk on every call
// so edits show up without a restart.
type Loader struct {
	dir       string
	fsys      fs.FS
	pattern   string
	imageDir  string
	drafts    bool
	converter Converter
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPattern sets the doublestar glob used to find posts, e.g. "**/*.md".
func WithPattern(pattern string) LoaderOption {
	return func(l *Loader) {
		if pattern != "" {
			l.pattern = pattern
		}
	}
}

// WithImageDir sets the image directory relative to the content dir. Files
// under it are never treated as posts.
func WithImageDir(dir string) LoaderOption {
	return func(l *Loader) {
		if dir != "" {
			l.imageDir = path.Clean(dir)
		}
	}
}

// WithDrafts includes posts marked draft: true.
func WithDrafts(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.drafts = enabled
	}
}

// NewLoader creates a Loader for dir. conv may be nil, in which case Post
// leaves HTML empty.
func NewLoader(dir string, conv Converter, opts ...LoaderOption) *Loader {
	l := &Loader{
		dir:       dir,
		fsys:      os.DirFS(dir),
		pattern:   DefaultPattern,
		imageDir:  "images",
		converter: conv,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AllPosts returns every published post, newest first. Dates are compared as
// strings, so ISO 8601 dates sort chronologically. Posts with equal dates keep
// their file order. Bodies are not rendered.
func (l *Loader) AllPosts(ctx context.Context) ([]Post, error) {
	files, err := l.files()
	if err != nil {
		return nil, err
	}
	posts := make([]Post, 0, len(files))
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, draft, err := l.read(name)
		if err != nil {
			return nil, err
		}
		if draft && !l.drafts {
			continue
		}
		posts = append(posts, p)
	}
	slices.SortStableFunc(posts, func(a, b Post) int {
		return cmp.Compare(b.Date, a.Date)
	})
	return posts, nil
}

// Post returns the post with slug and its body rendered to HTML. When two
// files share a slug the first one in file order wins.
func (l *Loader) Post(ctx context.Context, slug string) (Post, error) {
	files, err := l.files()
	if err != nil {
		return Post{}, err
	}
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return Post{}, err
		}
		p, draft, err := l.read(name)
		if err != nil {
			return Post{}, err
		}
		if p.Slug != slug || (draft && !l.drafts) {
			continue
		}
		if l.converter != nil {
			docDir := path.Dir(name)
			if docDir == "." {
				docDir = ""
			}
			p.HTML, err = l.converter.Convert(ctx, []byte(p.Body), docDir)
			if err != nil {
				return Post{}, fmt.Errorf("render %s: %w", name, err)
			}
		}
		return p, nil
	}
	return Post{}, fmt.Errorf("post with slug '%s' not found: %w", slug, ErrPostNotFound)
}

// Tags returns the distinct tags of all published posts in the order they
// first appear in the newest-first listing.
func (l *Loader) Tags(ctx context.Context) ([]string, error) {
	posts, err := l.AllPosts(ctx)
	if err != nil {
		return nil, err
	}
	return UniqueTags(posts), nil
}

// PostsByTag returns the published posts carrying tag, newest first.
func (l *Loader) PostsByTag(ctx context.Context, tag string) ([]Post, error) {
	posts, err := l.AllPosts(ctx)
	if err != nil {
		return nil, err
	}
	return FilterByTag(posts, tag), nil
}

// UniqueTags collects tags across posts, dropping exact duplicates and
// keeping first-seen order.
func UniqueTags(posts []Post) []string {
	seen := make(map[string]struct{})
	tags := []string{}
	for _, p := range posts {
		for _, t := range p.Tags {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			tags = append(tags, t)
		}
	}
	return tags
}

// FilterByTag returns the posts carrying tag. An empty tag returns posts
// unchanged.
func FilterByTag(posts []Post, tag string) []Post {
	if NormalizeTag(tag) == "" {
		return posts
	}
	var out []Post
	for _, p := range posts {
		if p.HasTag(tag) {
			out = append(out, p)
		}
	}
	return out
}

// files lists post files relative to the content dir in lexical order.
func (l *Loader) files() ([]string, error) {
	info, err := os.Stat(l.dir)
	if err != nil {
		return nil, fmt.Errorf("content dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content dir %s: not a directory", l.dir)
	}
	matches, err := doublestar.Glob(l.fsys, l.pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", l.pattern, err)
	}
	files := matches[:0]
	for _, m := range matches {
		if m == l.imageDir || strings.HasPrefix(m, l.imageDir+"/") {
			continue
		}
		files = append(files, m)
	}
	slices.Sort(files)
	return files, nil
}

func (l *Loader) read(name string) (Post, bool, error) {
	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return Post{}, false, fmt.Errorf("read %s: %w", name, err)
	}
	meta, body, err := SplitFrontMatter(data)
	if err != nil {
		return Post{}, false, fmt.Errorf("%s: %w", name, err)
	}
	fm, err := ParseFrontMatter(meta)
	if err != nil {
		return Post{}, false, fmt.Errorf("%s: %w", name, err)
	}

	id := strings.TrimSuffix(name, path.Ext(name))
	p := Post{
		ID:      id,
		Path:    name,
		Title:   fm.Title,
		Date:    string(fm.Date),
		Slug:    strings.TrimSpace(fm.Slug),
		Tags:    Tags(fm.Tags),
		Summary: fm.Summary,
		Body:    string(body),
	}
	if p.Slug == "" {
		p.Slug = Slugify(path.Base(id))
		if p.Slug == "" {
			p.Slug = path.Base(id)
		}
	}
	if p.Title == "" {
		p.Title = path.Base(id)
	}
	if p.Tags == nil {
		p.Tags = Tags{}
	}
	return p, fm.Draft, nil
}
