package chatflow

import (
	_ "embed"
)

// Version is the release of the chatflow module.
//
//go:embed VERSION
var Version string
