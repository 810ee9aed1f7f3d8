// Package preflight verifies the runtime environment before a batch starts:
// external tool availability, directory access, and free disk space.
package preflight
