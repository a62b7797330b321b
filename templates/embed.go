// Package templates embeds the default configuration and dashboard
// placeholder used by arrisd init.
package templates

import "embed"

//go:embed config.yaml dashboard.md
var FS embed.FS
