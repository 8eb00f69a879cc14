// Package configs holds the configuration template written by
// `lexindex config init`. It is embedded at build time so every binary
// carries it.
package configs

import _ "embed"

// ConfigTemplate is a commented lexindex.yaml listing every setting at
// its default.
//
//go:embed lexindex.example.yaml
var ConfigTemplate string
