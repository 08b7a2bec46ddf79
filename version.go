package benchrig

import _ "embed"

// Version is the release of the benchrig module.
//
//go:embed VERSION
var Version string
