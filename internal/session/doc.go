// Package session models one batch run's durable state: the ordered job
// list, per-job attempt history, aggregate counters, and the checkpoint store
// that makes a crashed or cancelled run resumable. Checkpoints are whole-file
// JSON documents written atomically after every job terminal transition.
package session
