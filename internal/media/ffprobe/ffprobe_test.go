package ffprobe

import (
	"math"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Width: 1920, Height: 1080, AvgFrameRate: "30000/1001"},
			{CodecType: "audio", Channels: 2},
			{CodecType: "audio", Channels: 6},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
		},
	}

	video, ok := result.FirstVideoStream()
	if !ok {
		t.Fatal("expected a video stream")
	}
	if video.Width != 1920 || video.Height != 1080 {
		t.Fatalf("unexpected resolution %dx%d", video.Width, video.Height)
	}
	if got := video.FrameRate(); math.Abs(got-29.97) > 0.001 {
		t.Fatalf("frame rate = %v, want ~29.97", got)
	}
	if result.AudioChannelCount() != 2 {
		t.Fatalf("first audio channels = %d, want 2", result.AudioChannelCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("audio streams = %d, want 2", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
}

func TestFrameRateEdgeCases(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{"", 0},
		{"0/0", 0},
		{"25/1", 25},
		{"24", 24},
		{"bad/1", 0},
	}
	for _, tc := range cases {
		s := Stream{AvgFrameRate: tc.raw}
		if got := s.FrameRate(); got != tc.want {
			t.Errorf("FrameRate(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestSizeBytesHandlesInvalid(t *testing.T) {
	result := Result{Format: Format{Size: "-1"}}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected 0 for negative size, got %d", result.SizeBytes())
	}
	result = Result{Format: Format{Size: "nope"}}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected 0 for junk size, got %d", result.SizeBytes())
	}
}
