// Package resource samples CPU, memory, and disk-free figures on an interval
// and exposes the latest snapshot to the scheduler. Disk free space on the
// staging volume is the signal that gates job admission; CPU and memory are
// advisory and feed adaptive throttling only.
package resource
