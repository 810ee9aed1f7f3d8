package validate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"shrinkray/internal/config"
	"shrinkray/internal/logging"
	"shrinkray/internal/media/ffprobe"
	"shrinkray/internal/metatool"
)

func testValidationConfig(strict bool) config.Validation {
	return config.Validation{
		Strict:              strict,
		FrameRateTolerance:  0.1,
		DurationTolerance:   1.0,
		DateTolerance:       1.0,
		GPSToleranceDegrees: 1e-6,
		RatioNormalMin:      0.20,
		RatioNormalMax:      0.80,
		RatioErrorMin:       0.15,
		RatioErrorMax:       0.90,
	}
}

func probeResult(duration float64, size int64, width, height int, frameRate string) ffprobe.Result {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{
			{CodecType: "video", Width: width, Height: height, AvgFrameRate: frameRate},
			{CodecType: "audio", Channels: 2},
		},
		Format: ffprobe.Format{
			Duration: fmt.Sprintf("%f", duration),
			Size:     fmt.Sprintf("%d", size),
		},
	}
}

type fakeMeta struct {
	byPath map[string]metatool.Metadata
	err    error
}

func (f *fakeMeta) Extract(_ context.Context, path string) (metatool.Metadata, error) {
	if f.err != nil {
		return metatool.Metadata{}, f.err
	}
	return f.byPath[path], nil
}

func (f *fakeMeta) Apply(context.Context, string, string) error { return nil }

func ptr(v float64) *float64 { return &v }

func newTestValidator(strict bool, meta metatool.Tool, probes map[string]ffprobe.Result) *Validator {
	v := New(testValidationConfig(strict), "ffprobe", meta, logging.NewNop())
	v.inspect = func(_ context.Context, _, path string) (ffprobe.Result, error) {
		result, ok := probes[path]
		if !ok {
			return ffprobe.Result{}, errors.New("probe failed")
		}
		return result, nil
	}
	return v
}

func TestAcceptsCleanOutput(t *testing.T) {
	created := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	meta := &fakeMeta{byPath: map[string]metatool.Metadata{
		"/in/a.mov": {CreateDate: created, GPSLatitude: ptr(47.6), GPSLongitude: ptr(-122.3), Title: "Beach"},
		"/out/a.mp4": {CreateDate: created, GPSLatitude: ptr(47.6), GPSLongitude: ptr(-122.3), Title: "Beach"},
	}}
	v := newTestValidator(false, meta, map[string]ffprobe.Result{
		"/in/a.mov":  probeResult(120, 1000, 1920, 1080, "30000/1001"),
		"/out/a.mp4": probeResult(120.3, 400, 1920, 1080, "30000/1001"),
	})

	result := v.Validate(context.Background(), Request{
		SourcePath: "/in/a.mov", OutputPath: "/out/a.mp4",
		SourceBytes: 1000, OutputBytes: 400,
	})
	if !result.Acceptable() {
		t.Fatalf("expected acceptable, errors: %v", result.Errors)
	}
	if !result.IntegrityOK || !result.PropertiesMatch || !result.CompressionInNormalRange || !result.MetadataPreserved {
		t.Fatalf("expected all checks to pass: %+v", result)
	}
	if result.QualityScore != 1.0 {
		t.Fatalf("QualityScore: got %v, want 1.0", result.QualityScore)
	}
	if err := result.Err(); err != nil {
		t.Fatalf("Err: got %v, want nil", err)
	}
}

func TestOversizedOutputWarnsButSucceeds(t *testing.T) {
	v := newTestValidator(false, nil, map[string]ffprobe.Result{
		"/in/a.mov":  probeResult(60, 1000, 1280, 720, "30/1"),
		"/out/a.mp4": probeResult(60, 950, 1280, 720, "30/1"),
	})

	result := v.Validate(context.Background(), Request{
		SourcePath: "/in/a.mov", OutputPath: "/out/a.mp4",
		SourceBytes: 1000, OutputBytes: 950,
	})
	if result.CompressionInNormalRange {
		t.Fatal("expected ratio 0.95 to fall outside the normal range")
	}
	if !result.Acceptable() {
		t.Fatalf("ratio excursion must stay a warning, errors: %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning for the ratio excursion")
	}
}

func TestRatioBetweenBandsWarnsEvenWhenStrict(t *testing.T) {
	v := newTestValidator(true, nil, map[string]ffprobe.Result{
		"/in/a.mov":  probeResult(60, 1000, 1280, 720, "30/1"),
		"/out/a.mp4": probeResult(60, 170, 1280, 720, "30/1"),
	})

	result := v.Validate(context.Background(), Request{
		SourcePath: "/in/a.mov", OutputPath: "/out/a.mp4",
		SourceBytes: 1000, OutputBytes: 170,
	})
	if result.CompressionInNormalRange {
		t.Fatal("0.17 must be outside the normal window")
	}
	if !result.Acceptable() {
		t.Fatalf("between-band ratio must stay a warning, errors: %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning for the between-band ratio")
	}
}

func TestRatioOutsideErrorBoundsStrictRejects(t *testing.T) {
	v := newTestValidator(true, nil, map[string]ffprobe.Result{
		"/in/a.mov":  probeResult(60, 1000, 1280, 720, "30/1"),
		"/out/a.mp4": probeResult(60, 50, 1280, 720, "30/1"),
	})

	result := v.Validate(context.Background(), Request{
		SourcePath: "/in/a.mov", OutputPath: "/out/a.mp4",
		SourceBytes: 1000, OutputBytes: 50,
	})
	if result.CompressionInNormalRange {
		t.Fatal("0.05 must be outside the error bounds")
	}
	if len(result.Errors) == 0 {
		t.Fatal("expected an error entry for a ratio outside the error bounds")
	}
	if result.Acceptable() {
		t.Fatal("strict validation must reject a ratio outside the error bounds")
	}
}

func TestRatioOutsideErrorBoundsLenientWarns(t *testing.T) {
	v := newTestValidator(false, nil, map[string]ffprobe.Result{
		"/in/a.mov":  probeResult(60, 1000, 1280, 720, "30/1"),
		"/out/a.mp4": probeResult(60, 50, 1280, 720, "30/1"),
	})

	result := v.Validate(context.Background(), Request{
		SourcePath: "/in/a.mov", OutputPath: "/out/a.mp4",
		SourceBytes: 1000, OutputBytes: 50,
	})
	if !result.Acceptable() {
		t.Fatalf("lenient validation keeps the excursion a warning, errors: %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning for a ratio outside the error bounds")
	}
}

func TestMonoDownmixRejectedWhenStrict(t *testing.T) {
	output := probeResult(60, 400, 1280, 720, "30/1")
	output.Streams[1].Channels = 1
	v := newTestValidator(true, nil, map[string]ffprobe.Result{
		"/in/a.mov":  probeResult(60, 1000, 1280, 720, "30/1"),
		"/out/a.mp4": output,
	})

	result := v.Validate(context.Background(), Request{
		SourcePath: "/in/a.mov", OutputPath: "/out/a.mp4",
		SourceBytes: 1000, OutputBytes: 400,
	})
	if result.PropertiesMatch {
		t.Fatal("stereo source downmixed to mono must fail the property check")
	}
	if result.Acceptable() {
		t.Fatalf("strict validation must reject a channel count change, errors: %v", result.Errors)
	}
}

func TestGPSWithinToleranceAccepted(t *testing.T) {
	meta := &fakeMeta{byPath: map[string]metatool.Metadata{
		"/in/a.mov":  {GPSLatitude: ptr(47.6000000), GPSLongitude: ptr(-122.3000000)},
		"/out/a.mp4": {GPSLatitude: ptr(47.6000005), GPSLongitude: ptr(-122.3000005)},
	}}
	v := newTestValidator(true, meta, map[string]ffprobe.Result{
		"/in/a.mov":  probeResult(60, 1000, 1280, 720, "30/1"),
		"/out/a.mp4": probeResult(60, 400, 1280, 720, "30/1"),
	})

	result := v.Validate(context.Background(), Request{SourcePath: "/in/a.mov", OutputPath: "/out/a.mp4", SourceBytes: 1000, OutputBytes: 400})
	if !result.MetadataPreserved {
		t.Fatalf("5e-7 degree drift must pass, warnings %v errors %v", result.Warnings, result.Errors)
	}
}

func TestGPSBeyondToleranceRejectedWhenStrict(t *testing.T) {
	meta := &fakeMeta{byPath: map[string]metatool.Metadata{
		"/in/a.mov":  {GPSLatitude: ptr(47.6000000), GPSLongitude: ptr(-122.3000000)},
		"/out/a.mp4": {GPSLatitude: ptr(47.6000100), GPSLongitude: ptr(-122.3000100)},
	}}
	v := newTestValidator(true, meta, map[string]ffprobe.Result{
		"/in/a.mov":  probeResult(60, 1000, 1280, 720, "30/1"),
		"/out/a.mp4": probeResult(60, 400, 1280, 720, "30/1"),
	})

	result := v.Validate(context.Background(), Request{SourcePath: "/in/a.mov", OutputPath: "/out/a.mp4", SourceBytes: 1000, OutputBytes: 400})
	if result.MetadataPreserved {
		t.Fatal("1e-5 degree drift must fail verification")
	}
	if result.Acceptable() {
		t.Fatal("strict validation must reject the gps drift")
	}
	if err := result.Err(); err == nil {
		t.Fatal("Err must be non-nil for a rejected result")
	}
}

func TestGPSDriftWarnsWhenLenient(t *testing.T) {
	meta := &fakeMeta{byPath: map[string]metatool.Metadata{
		"/in/a.mov":  {GPSLatitude: ptr(47.6), GPSLongitude: ptr(-122.3)},
		"/out/a.mp4": {},
	}}
	v := newTestValidator(false, meta, map[string]ffprobe.Result{
		"/in/a.mov":  probeResult(60, 1000, 1280, 720, "30/1"),
		"/out/a.mp4": probeResult(60, 400, 1280, 720, "30/1"),
	})

	result := v.Validate(context.Background(), Request{SourcePath: "/in/a.mov", OutputPath: "/out/a.mp4", SourceBytes: 1000, OutputBytes: 400})
	if result.MetadataPreserved {
		t.Fatal("dropped gps must clear the preserved flag")
	}
	if !result.Acceptable() {
		t.Fatalf("lenient validation must accept with warnings, errors: %v", result.Errors)
	}
}

func TestDurationDriftRejectedWhenStrict(t *testing.T) {
	v := newTestValidator(true, nil, map[string]ffprobe.Result{
		"/in/a.mov":  probeResult(120, 1000, 1280, 720, "30/1"),
		"/out/a.mp4": probeResult(115, 400, 1280, 720, "30/1"),
	})

	result := v.Validate(context.Background(), Request{SourcePath: "/in/a.mov", OutputPath: "/out/a.mp4", SourceBytes: 1000, OutputBytes: 400})
	if result.PropertiesMatch {
		t.Fatal("5s duration drift must fail the property check")
	}
	if result.Acceptable() {
		t.Fatal("strict validation must reject the drift")
	}
}

func TestUnreadableOutputIsFatal(t *testing.T) {
	v := newTestValidator(false, nil, map[string]ffprobe.Result{
		"/in/a.mov": probeResult(60, 1000, 1280, 720, "30/1"),
	})

	result := v.Validate(context.Background(), Request{SourcePath: "/in/a.mov", OutputPath: "/out/missing.mp4"})
	if result.IntegrityOK || result.Acceptable() {
		t.Fatalf("unreadable output must fail integrity: %+v", result)
	}
	if result.QualityScore != 0 {
		t.Fatalf("QualityScore: got %v, want 0", result.QualityScore)
	}
}

func TestMissingVideoStreamIsFatal(t *testing.T) {
	v := newTestValidator(false, nil, map[string]ffprobe.Result{
		"/in/a.mov": probeResult(60, 1000, 1280, 720, "30/1"),
		"/out/a.mp4": {
			Streams: []ffprobe.Stream{{CodecType: "audio", Channels: 2}},
			Format:  ffprobe.Format{Duration: "60", Size: "400"},
		},
	})

	result := v.Validate(context.Background(), Request{SourcePath: "/in/a.mov", OutputPath: "/out/a.mp4"})
	if result.IntegrityOK {
		t.Fatal("audio-only output must fail integrity")
	}
}
