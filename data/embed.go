package data

import (
	"embed"
)

// NewDocs holds the locale-specific blank document assets used to seed
// freshly created submission and template files.
//
//go:embed newdocs
var NewDocs embed.FS
