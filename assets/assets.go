// Package assets embeds the files shipped with the binaries.
package assets

import "embed"

// FS holds the email templates (templates/email), the database migrations (migrations)
// and the serif certificate fonts (fonts, DejaVu Serif).
//go:embed templates/email/*.txt templates/email/*.gohtml migrations/*.sql fonts/*.ttf
var FS embed.FS

const (
	EmailTemplatesDir = "templates/email"
	MigrationsDir     = "migrations"
	FontsDir          = "fonts"
)
