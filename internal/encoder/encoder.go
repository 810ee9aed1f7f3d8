package encoder

import (
	"context"
	"time"
)

// Family selects between hardware-accelerated and software encoding.
type Family string

const (
	FamilySoftware Family = "software"
	FamilyHardware Family = "hardware"
)

// Other returns the opposite encoder family, used by retry escalation.
func (f Family) Other() Family {
	if f == FamilyHardware {
		return FamilySoftware
	}
	return FamilyHardware
}

// Options controls a single conversion invocation.
type Options struct {
	Family Family
	// Codec is the video codec for the selected family (e.g. libx265,
	// hevc_vaapi).
	Codec   string
	Quality int
	Preset  string
	// DurationHint is the expected source duration, used to derive fractional
	// progress from encoder time reports. Zero disables fraction estimates.
	DurationHint time.Duration
}

// ProgressUpdate captures encoder progress events.
type ProgressUpdate struct {
	Fraction float64
	Stage    string
	Message  string
}

// Outcome summarizes a completed conversion.
type Outcome struct {
	OutputPath  string
	InputBytes  int64
	OutputBytes int64
	Duration    time.Duration
}

// Converter wraps an external encoding process.
type Converter interface {
	Convert(ctx context.Context, inputPath, outputPath string, opts Options, progress func(ProgressUpdate)) (Outcome, error)
}
