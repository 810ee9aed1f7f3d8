// Package config loads, validates, and defaults shrinkray configuration.
//
// Configuration lives in a single TOML file. Load applies repository defaults
// first, then decodes the file over them, expands filesystem paths, and
// validates the result so the rest of the program can treat the Config value
// as immutable and well formed.
package config
