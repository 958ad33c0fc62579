// Package web bundles the portal's HTML templates and static assets.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates/layouts/*.html templates/partials/*.html templates/pages/*.html
var Templates embed.FS

// TemplatePatterns lists the template globs in parse order: layouts first so
// pages can reference them.
var TemplatePatterns = []string{
	"templates/layouts/*.html",
	"templates/partials/*.html",
	"templates/pages/*.html",
}

//go:embed static
var static embed.FS

// Static returns the asset tree rooted at static/, as served under /static/.
func Static() (fs.FS, error) {
	return fs.Sub(static, "static")
}
