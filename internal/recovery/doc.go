// Package recovery classifies job failures into actionable categories and
// applies the cleanup policy that keeps retries starting from a clean slate.
package recovery
