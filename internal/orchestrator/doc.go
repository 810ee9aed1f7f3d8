// Package orchestrator is the batch state machine. It admits catalog
// candidates against the conversion history, fans jobs out to the bounded
// worker pool, routes failures through classification and the retry ladder,
// checkpoints the session after every transition, and assembles the final
// batch report. A flock-guarded instance lock keeps two orchestrators from
// sharing a state directory.
package orchestrator
