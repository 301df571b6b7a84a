// Package ui embeds the single page chat client served at "/".
package ui

import _ "embed"

//go:embed index.html
var IndexHTML []byte
