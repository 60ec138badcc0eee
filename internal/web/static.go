package web

import (
	"embed"
)

// staticFiles holds the console page.
//
//go:embed static/*
var staticFiles embed.FS
