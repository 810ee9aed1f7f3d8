// Package processor runs conversion jobs through a bounded worker pool. It
// enforces the concurrency limit, gates admission on free disk space with a
// pause/resume cycle, and aggregates per-job progress weighted by estimated
// duration.
package processor
