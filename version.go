package bozchat

import _ "embed"

// Version is the release of the editor, read from the VERSION file.
//
//go:embed VERSION
var Version string
