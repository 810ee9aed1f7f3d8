// Package ffprobe shells out to ffprobe and parses its JSON output into the
// media properties the validator compares: codec, resolution, frame rate,
// duration, audio channels, and container size.
package ffprobe
