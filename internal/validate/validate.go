package validate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"shrinkray/internal/config"
	"shrinkray/internal/logging"
	"shrinkray/internal/media/ffprobe"
	"shrinkray/internal/metatool"
	"shrinkray/internal/services"
)

// Result is the outcome of a post-conversion acceptance check.
type Result struct {
	IntegrityOK              bool
	PropertiesMatch          bool
	CompressionInNormalRange bool
	MetadataPreserved        bool
	QualityScore             float64
	Errors                   []string
	Warnings                 []string
}

// Acceptable reports whether the output may replace the source.
func (r Result) Acceptable() bool {
	return r.IntegrityOK && len(r.Errors) == 0
}

// Err returns a validation error when the result is not acceptable.
func (r Result) Err() error {
	if r.Acceptable() {
		return nil
	}
	detail := "output rejected"
	if len(r.Errors) > 0 {
		detail = strings.Join(r.Errors, "; ")
	}
	return services.Wrap(services.ErrValidation, "validate", "accept", detail, nil)
}

// Request describes one output to validate against its source.
type Request struct {
	SourcePath  string
	OutputPath  string
	SourceBytes int64
	OutputBytes int64
}

// Validator runs the tolerance-based acceptance checks on converted output.
type Validator struct {
	cfg           config.Validation
	ffprobeBinary string
	meta          metatool.Tool
	logger        *slog.Logger

	inspect func(ctx context.Context, binary, path string) (ffprobe.Result, error)
}

// New builds a validator. meta may be nil, which skips metadata verification.
func New(cfg config.Validation, ffprobeBinary string, meta metatool.Tool, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Validator{
		cfg:           cfg,
		ffprobeBinary: ffprobeBinary,
		meta:          meta,
		logger:        logging.NewComponentLogger(logger, "validate"),
		inspect:       ffprobe.Inspect,
	}
}

// Validate probes the output, compares it against the source, and reports
// which checks passed. Integrity failures are always fatal; property and
// metadata mismatches are fatal only under strict validation. A compression
// ratio between the normal and error bounds is a warning; outside the error
// bounds it is treated like any other mismatch.
func (v *Validator) Validate(ctx context.Context, req Request) Result {
	result := Result{
		IntegrityOK:              true,
		PropertiesMatch:          true,
		CompressionInNormalRange: true,
		MetadataPreserved:        true,
	}

	output, err := v.inspect(ctx, v.ffprobeBinary, req.OutputPath)
	if err != nil {
		result.IntegrityOK = false
		result.Errors = append(result.Errors, fmt.Sprintf("output unreadable: %v", err))
		return result
	}
	v.checkIntegrity(output, &result)
	if !result.IntegrityOK {
		return result
	}

	source, err := v.inspect(ctx, v.ffprobeBinary, req.SourcePath)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("source probe failed, property checks skipped: %v", err))
	} else {
		v.checkProperties(source, output, &result)
	}

	v.checkCompression(req, source, output, &result)
	v.checkMetadata(ctx, req, &result)

	result.QualityScore = score(result)
	return result
}

func (v *Validator) checkIntegrity(output ffprobe.Result, result *Result) {
	video, ok := output.FirstVideoStream()
	if !ok {
		result.IntegrityOK = false
		result.Errors = append(result.Errors, "output has no video stream")
		return
	}
	if video.Width <= 0 || video.Height <= 0 {
		result.IntegrityOK = false
		result.Errors = append(result.Errors, fmt.Sprintf("output video has invalid dimensions %dx%d", video.Width, video.Height))
	}
	if output.DurationSeconds() <= 0 {
		result.IntegrityOK = false
		result.Errors = append(result.Errors, "output has zero duration")
	}
}

func (v *Validator) checkProperties(source, output ffprobe.Result, result *Result) {
	var mismatches []string

	srcDur, outDur := source.DurationSeconds(), output.DurationSeconds()
	if srcDur > 0 && math.Abs(srcDur-outDur) > v.cfg.DurationTolerance {
		mismatches = append(mismatches, fmt.Sprintf("duration drift %.2fs exceeds %.2fs tolerance", math.Abs(srcDur-outDur), v.cfg.DurationTolerance))
	}

	srcVideo, srcOK := source.FirstVideoStream()
	outVideo, outOK := output.FirstVideoStream()
	if srcOK && outOK {
		srcRate, outRate := srcVideo.FrameRate(), outVideo.FrameRate()
		if srcRate > 0 && math.Abs(srcRate-outRate) > v.cfg.FrameRateTolerance {
			mismatches = append(mismatches, fmt.Sprintf("frame rate %.3f differs from source %.3f beyond %.3f tolerance", outRate, srcRate, v.cfg.FrameRateTolerance))
		}
		if srcVideo.Width != outVideo.Width || srcVideo.Height != outVideo.Height {
			mismatches = append(mismatches, fmt.Sprintf("resolution %dx%d differs from source %dx%d", outVideo.Width, outVideo.Height, srcVideo.Width, srcVideo.Height))
		}
	}

	if source.AudioStreamCount() != output.AudioStreamCount() {
		mismatches = append(mismatches, fmt.Sprintf("audio stream count %d differs from source %d", output.AudioStreamCount(), source.AudioStreamCount()))
	}
	if source.AudioChannelCount() != output.AudioChannelCount() {
		mismatches = append(mismatches, fmt.Sprintf("audio channel count %d differs from source %d", output.AudioChannelCount(), source.AudioChannelCount()))
	}

	if len(mismatches) > 0 {
		result.PropertiesMatch = false
		v.flag(result, mismatches)
	}
}

func (v *Validator) checkCompression(req Request, source, output ffprobe.Result, result *Result) {
	srcBytes := req.SourceBytes
	if srcBytes <= 0 {
		srcBytes = source.SizeBytes()
	}
	outBytes := req.OutputBytes
	if outBytes <= 0 {
		outBytes = output.SizeBytes()
	}
	if srcBytes <= 0 || outBytes <= 0 {
		result.Warnings = append(result.Warnings, "compression ratio unavailable, size unknown")
		return
	}

	ratio := float64(outBytes) / float64(srcBytes)
	switch {
	case ratio >= v.cfg.RatioNormalMin && ratio <= v.cfg.RatioNormalMax:
	case ratio >= v.cfg.RatioErrorMin && ratio <= v.cfg.RatioErrorMax:
		result.CompressionInNormalRange = false
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"compression ratio %.2f outside normal range [%.2f, %.2f]",
			ratio, v.cfg.RatioNormalMin, v.cfg.RatioNormalMax))
	default:
		result.CompressionInNormalRange = false
		v.flag(result, []string{fmt.Sprintf(
			"compression ratio %.2f outside error bounds [%.2f, %.2f]",
			ratio, v.cfg.RatioErrorMin, v.cfg.RatioErrorMax)})
	}
}

func (v *Validator) checkMetadata(ctx context.Context, req Request, result *Result) {
	if v.meta == nil {
		return
	}

	src, err := v.meta.Extract(ctx, req.SourcePath)
	if err != nil {
		result.MetadataPreserved = false
		result.Warnings = append(result.Warnings, fmt.Sprintf("source metadata unreadable: %v", err))
		return
	}
	out, err := v.meta.Extract(ctx, req.OutputPath)
	if err != nil {
		result.MetadataPreserved = false
		result.Warnings = append(result.Warnings, fmt.Sprintf("output metadata unreadable: %v", err))
		return
	}

	var mismatches []string
	if !src.CreateDate.IsZero() {
		drift := src.CreateDate.Sub(out.CreateDate)
		if drift < 0 {
			drift = -drift
		}
		if out.CreateDate.IsZero() || drift > time.Duration(v.cfg.DateTolerance*float64(time.Second)) {
			mismatches = append(mismatches, "creation date not preserved")
		}
	}
	if src.HasGPS() {
		switch {
		case !out.HasGPS():
			mismatches = append(mismatches, "gps coordinates dropped")
		case !gpsEqual(*src.GPSLatitude, *src.GPSLongitude, *out.GPSLatitude, *out.GPSLongitude, v.cfg.GPSToleranceDegrees):
			mismatches = append(mismatches, fmt.Sprintf(
				"gps drifted %.2fm beyond tolerance",
				haversineMeters(*src.GPSLatitude, *src.GPSLongitude, *out.GPSLatitude, *out.GPSLongitude),
			))
		}
	}
	if src.Title != "" && src.Title != out.Title {
		mismatches = append(mismatches, "title not preserved")
	}

	if len(mismatches) > 0 {
		result.MetadataPreserved = false
		v.flag(result, mismatches)
	}
}

// flag routes mismatch messages to errors under strict validation and to
// warnings otherwise.
func (v *Validator) flag(result *Result, messages []string) {
	if v.cfg.Strict {
		result.Errors = append(result.Errors, messages...)
	} else {
		result.Warnings = append(result.Warnings, messages...)
	}
}

func score(result Result) float64 {
	if !result.IntegrityOK {
		return 0
	}
	total := 1.0
	for _, passed := range []bool{result.PropertiesMatch, result.CompressionInNormalRange, result.MetadataPreserved} {
		if !passed {
			total -= 0.25
		}
	}
	return total
}
