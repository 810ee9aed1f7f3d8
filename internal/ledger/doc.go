// Package ledger is the durable record of completed conversions, keyed by
// content identity. It answers "already converted?" across process restarts
// and enforces the at-most-once guarantee: for any identity, at most one
// successful entry ever exists. Entries are write-once; the ledger never
// updates a row in place.
package ledger
