// Package logging builds slog loggers for the conversion pipeline.
//
// Two output formats are supported: a human-oriented console format with
// optional color, and line-delimited JSON for machine consumption. Field-name
// constants keep structured attributes consistent across components so log
// queries can rely on stable keys.
package logging
