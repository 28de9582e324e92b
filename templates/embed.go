package templates

import "embed"

// EmailFS holds the HTML bodies of transactional emails.
//
//go:embed email/*.html
var EmailFS embed.FS
