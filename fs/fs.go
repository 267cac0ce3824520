// Package appfs exposes the app's embedded assets (DB migrations, email templates).
package appfs

import "embed"

//go:embed migrations templates
var FS embed.FS
