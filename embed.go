package mdblog

import "embed"

// EmbeddedAssets contains static assets shipped with the server: site.css
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
