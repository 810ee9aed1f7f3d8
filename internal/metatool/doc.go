// Package metatool wraps the external exiftool utility behind the
// MetadataTool capability: extracting date, GPS, and descriptive tags from a
// media file and copying them onto a converted output.
package metatool
