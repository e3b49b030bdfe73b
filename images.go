package mdblog

import (
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const imageCacheControl = "public, max-age=86400"

type jsonError struct {
	Error string `json:"error"`
}

// handlePostsImage serves files from the content image directory. Only GET
// is allowed; paths resolving outside the directory are rejected.
func (a *App) handlePostsImage(c echo.Context) error {
	if c.Request().Method != http.MethodGet {
		c.Response().Header().Set(echo.HeaderAllow, http.MethodGet)
		return c.JSON(http.StatusMethodNotAllowed, jsonError{"Method not allowed"})
	}

	// URL.Path is already percent-decoded.
	rel := strings.TrimPrefix(c.Request().URL.Path, postsImagesURL+"/")
	base, err := filepath.Abs(filepath.Join(a.Config.ContentDir, a.Config.ImageDir))
	if err != nil {
		return a.imageServerError(c, err)
	}
	target, ok := resolveUnder(base, rel)
	if !ok {
		return c.JSON(http.StatusForbidden, jsonError{"Access denied"})
	}

	info, err := os.Stat(target)
	switch {
	case errors.Is(err, fs.ErrNotExist), err == nil && !info.Mode().IsRegular():
		return c.JSON(http.StatusNotFound, jsonError{"File not found"})
	case err != nil:
		return a.imageServerError(c, err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return a.imageServerError(c, err)
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(target)))
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	h := c.Response().Header()
	h.Set("Cache-Control", imageCacheControl)
	h.Set(echo.HeaderContentLength, strconv.Itoa(len(data)))
	return c.Blob(http.StatusOK, contentType, data)
}

func (a *App) imageServerError(c echo.Context, err error) error {
	a.Logger.Error("serve post image", "path", c.Request().URL.Path, "err", err)
	return c.JSON(http.StatusInternalServerError, jsonError{"Internal server error"})
}

// resolveUnder joins rel onto base and reports whether the result stays
// inside base. The comparison is separator-aware, so "images-private" is not
// inside "images".
func resolveUnder(base, rel string) (string, bool) {
	if strings.ContainsRune(rel, 0) {
		return "", false
	}
	target := filepath.Join(base, filepath.FromSlash(rel))
	r, err := filepath.Rel(base, target)
	if err != nil {
		return "", false
	}
	if r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", false
	}
	return target, true
}
