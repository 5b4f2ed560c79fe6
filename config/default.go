package config

import _ "embed"

// Default holds the embedded baseline configuration. It is merged first so a
// partial conf.yaml on disk only has to name the keys it overrides.
//
//go:embed conf.yaml
var Default []byte
