// Package images copies the content image directory into the static
// directory at build time.
package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/image/draw"
)

const jpegQuality = 85

// Options controls Copy.
type Options struct {
	// MaxWidth downscales png, jpeg and gif images wider than this. Zero
	// copies every file as is.
	MaxWidth int
	// Logger receives progress messages. Defaults to log.Default().
	Logger *log.Logger
}

// Result summarises a Copy run.
type Result struct {
	Copied  int
	Resized int
}

// Copy replaces the contents of dst with a recursive copy of src. A missing
// src is created empty so later builds pick up new images.
func Copy(src, dst string, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return Result{}, fmt.Errorf("create %s: %w", dst, err)
	}
	if err := clearDir(dst); err != nil {
		return Result{}, err
	}

	info, err := os.Stat(src)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(src, 0o755); err != nil {
			return Result{}, fmt.Errorf("create %s: %w", src, err)
		}
		logger.Info("created image directory", "dir", src)
		return Result{}, nil
	case err != nil:
		return Result{}, fmt.Errorf("stat %s: %w", src, err)
	case !info.IsDir():
		return Result{}, fmt.Errorf("%s: not a directory", src)
	}

	var res Result
	err = filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		resized, err := copyFile(p, target, opts.MaxWidth)
		if err != nil {
			return err
		}
		res.Copied++
		if resized {
			res.Resized++
			logger.Debug("resized image", "file", rel)
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("copy images: %w", err)
	}
	logger.Info("copied images", "from", src, "to", dst, "files", res.Copied, "resized", res.Resized)
	return res, nil
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("clear %s: %w", dir, err)
		}
	}
	return nil
}

func copyFile(src, dst string, maxWidth int) (bool, error) {
	if maxWidth > 0 && resizable(src) {
		data, err := os.ReadFile(src)
		if err != nil {
			return false, err
		}
		out, ok, err := downscale(data, maxWidth)
		if err != nil {
			return false, fmt.Errorf("%s: %w", src, err)
		}
		if ok {
			return true, os.WriteFile(dst, out, 0o644)
		}
		return false, os.WriteFile(dst, data, 0o644)
	}

	in, err := os.Open(src)
	if err != nil {
		return false, err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return false, err
	}
	return false, out.Close()
}

func resizable(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif":
		return true
	}
	return false
}

// downscale resizes an image wider than maxWidth, keeping the aspect ratio
// and the original encoding. ok is false when no resize was needed.
func downscale(data []byte, maxWidth int) (out []byte, ok bool, err error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// Undecodable files are copied unchanged.
		return nil, false, nil
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxWidth {
		return nil, false, nil
	}

	newH := max(1, h*maxWidth/w)
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality})
	case "png":
		err = png.Encode(&buf, dst)
	case "gif":
		err = gif.Encode(&buf, dst, nil)
	default:
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), true, nil
}
