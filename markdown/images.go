package markdown

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	_ "golang.org/x/image/webp"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ImageOptions controls how image references inside posts are rewritten.
type ImageOptions struct {
	// ContentDir is the directory holding the markdown files. Used to read
	// image dimensions; leave empty to skip that step.
	ContentDir string
	// ImageDir is the image directory relative to ContentDir (default "images").
	ImageDir string
	// BaseURL is the public URL prefix the image directory is served under.
	BaseURL string
}

// rewriteFragment rewrites content-relative <img src> paths in an HTML
// fragment to public URLs and adds loading hints and dimensions. With
// sanitize set, unsafe link and image URLs are dropped as well.
func rewriteFragment(fragment, docDir string, opts ImageOptions, sanitize bool) (string, error) {
	body := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Body,
		Data:     "body",
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return "", err
	}

	rw := &imageRewriter{opts: opts, docDir: docDir, sanitize: sanitize}
	for _, n := range nodes {
		rw.walk(n)
	}

	var buf strings.Builder
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

type imageRewriter struct {
	opts     ImageOptions
	docDir   string
	sanitize bool
	count    int
}

func (rw *imageRewriter) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Img:
			rw.rewriteImg(n)
		case atom.A:
			if rw.sanitize {
				dropUnsafeURL(n, "href")
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		rw.walk(c)
	}
}

func (rw *imageRewriter) rewriteImg(n *html.Node) {
	if rw.sanitize {
		dropUnsafeURL(n, "src")
	}
	rw.count++

	src, ok := getAttr(n, "src")
	if ok {
		if public, local, ok := rw.resolve(src); ok {
			setAttr(n, "src", public)
			if _, hasW := getAttr(n, "width"); !hasW {
				if w, h, ok := imageSize(local); ok {
					setAttr(n, "width", strconv.Itoa(w))
					setAttr(n, "height", strconv.Itoa(h))
				}
			}
		}
	}

	if rw.count == 1 {
		setDefaultAttr(n, "fetchpriority", "high")
	} else {
		setDefaultAttr(n, "loading", "lazy")
	}
	setDefaultAttr(n, "decoding", "async")
}

// resolve maps a document-relative src under the image directory to its
// public URL and local file path.
func (rw *imageRewriter) resolve(src string) (public, local string, ok bool) {
	if !isRelativePath(src) {
		return "", "", false
	}
	raw, suffix := src, ""
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw, suffix = raw[:i], raw[i:]
	}
	cleaned := path.Clean(path.Join(rw.docDir, raw))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", "", false
	}
	imageDir := path.Clean(rw.opts.ImageDir)
	if imageDir == "." || imageDir == "" {
		imageDir = "images"
	}
	rest, found := strings.CutPrefix(cleaned, imageDir+"/")
	if !found || rest == "" {
		return "", "", false
	}

	// The escaped form was checked above; the decoded one must stay inside
	// the image dir too, e.g. "images/%2e%2e/x.png".
	decoded, err := url.PathUnescape(rest)
	if err != nil || strings.ContainsRune(decoded, 0) {
		return "", "", false
	}
	root := filepath.Join(rw.opts.ContentDir, filepath.FromSlash(imageDir))
	target := filepath.Join(root, filepath.FromSlash(decoded))
	if !within(root, target) {
		return "", "", false
	}

	base := strings.TrimRight(rw.opts.BaseURL, "/")
	public = base + "/" + rest + suffix
	if rw.opts.ContentDir != "" {
		local = target
	}
	return public, local, true
}

// within reports whether target is base or lies below it.
func within(base, target string) bool {
	r, err := filepath.Rel(base, target)
	if err != nil || r == "." {
		return false
	}
	return r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator))
}

// isRelativePath returns true for paths relative to the current document.
func isRelativePath(p string) bool {
	if p == "" {
		return false
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "#") || strings.HasPrefix(p, "data:") {
		return false
	}
	if u, err := url.Parse(p); err != nil || u.Scheme != "" || u.Host != "" {
		return false
	}
	return true
}

func imageSize(local string) (int, int, bool) {
	if local == "" {
		return 0, 0, false
	}
	f, err := os.Open(local)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

// dropUnsafeURL removes attr when it carries a scheme SafeURL rejects.
func dropUnsafeURL(n *html.Node, attr string) {
	val, ok := getAttr(n, attr)
	if !ok || isRelativePath(val) {
		return
	}
	if SafeURL(val) == "" {
		removeAttr(n, attr)
	}
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func setDefaultAttr(n *html.Node, key, val string) {
	if _, ok := getAttr(n, key); !ok {
		n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	}
}

func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}
