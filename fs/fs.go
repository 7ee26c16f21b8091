// Package appfs embeds static assets (email templates, password lists) into the binaries.
package appfs

import "embed"

//go:embed all:templates passwords
var FS embed.FS
