// Package web holds the browser client served by the authority.
package web

import "embed"

//go:embed assets/*
var Assets embed.FS
