// Package main hosts the shrinkray CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into batch
// conversion runs, session resume and retry operations, history ledger
// queries, preflight checks, and configuration scaffolding. It centralizes
// configuration resolution, runtime wiring, and structured logging setup so
// subcommands can focus on user experience instead of plumbing.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
