// Package appfs exposes files embedded into the binary at build time.
package appfs

import "embed"

//go:embed migrations
var FS embed.FS
