package encoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"shrinkray/internal/services"
)

var commandContext = exec.CommandContext

// Option configures the ffmpeg client.
type Option func(*FFmpeg)

// WithBinary overrides the default ffmpeg binary name.
func WithBinary(binary string) Option {
	return func(f *FFmpeg) {
		if binary != "" {
			f.binary = binary
		}
	}
}

// WithHardwareDevice overrides the VAAPI render device used for hardware encodes.
func WithHardwareDevice(device string) Option {
	return func(f *FFmpeg) {
		if device != "" {
			f.hwDevice = device
		}
	}
}

// FFmpeg wraps the ffmpeg command-line encoder.
type FFmpeg struct {
	binary   string
	hwDevice string
}

// NewFFmpeg constructs an ffmpeg client using defaults.
func NewFFmpeg(opts ...Option) *FFmpeg {
	f := &FFmpeg{binary: "ffmpeg", hwDevice: "/dev/dri/renderD128"}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Convert launches ffmpeg and blocks until the encode finishes or ctx is
// cancelled. Progress lines from -progress pipe:1 are parsed into fractional
// updates when a duration hint is available.
func (f *FFmpeg) Convert(ctx context.Context, inputPath, outputPath string, opts Options, progress func(ProgressUpdate)) (Outcome, error) {
	if strings.TrimSpace(inputPath) == "" {
		return Outcome{}, errors.New("input path required")
	}
	if strings.TrimSpace(outputPath) == "" {
		return Outcome{}, errors.New("output path required")
	}

	inputInfo, err := os.Stat(inputPath)
	if err != nil {
		return Outcome{}, services.Wrap(services.ErrNotFound, "encoder", "stat input", inputPath, err)
	}

	args := f.buildArgs(inputPath, outputPath, opts)
	start := time.Now()

	cmd := commandContext(ctx, f.binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Outcome{}, fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Outcome{}, services.Wrap(services.ErrExternalTool, "encoder", "start ffmpeg", "", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		update, ok := parseProgressLine(scanner.Text(), opts.DurationHint)
		if ok && progress != nil {
			progress(update)
		}
	}

	if err := cmd.Wait(); err != nil {
		detail := tailLines(stderr.String(), 5)
		return Outcome{}, services.Wrap(services.ErrExternalTool, "encoder", "ffmpeg encode", detail, err)
	}

	outputInfo, err := os.Stat(outputPath)
	if err != nil {
		return Outcome{}, services.Wrap(services.ErrExternalTool, "encoder", "stat output", "encode reported success but produced no file", err)
	}

	return Outcome{
		OutputPath:  outputPath,
		InputBytes:  inputInfo.Size(),
		OutputBytes: outputInfo.Size(),
		Duration:    time.Since(start),
	}, nil
}

func (f *FFmpeg) buildArgs(inputPath, outputPath string, opts Options) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-nostats"}

	if opts.Family == FamilyHardware {
		args = append(args, "-vaapi_device", f.hwDevice)
	}
	args = append(args, "-i", inputPath)

	codec := opts.Codec
	switch opts.Family {
	case FamilyHardware:
		if codec == "" {
			codec = "hevc_vaapi"
		}
		args = append(args,
			"-vf", "format=nv12,hwupload",
			"-c:v", codec,
			"-qp", strconv.Itoa(opts.Quality),
		)
	default:
		if codec == "" {
			codec = "libx265"
		}
		args = append(args, "-c:v", codec, "-crf", strconv.Itoa(opts.Quality))
		if opts.Preset != "" {
			args = append(args, "-preset", opts.Preset)
		}
	}

	args = append(args,
		"-c:a", "copy",
		"-map_metadata", "0",
		"-movflags", "use_metadata_tags",
		"-progress", "pipe:1",
		outputPath,
	)
	return args
}

// parseProgressLine handles the key=value stream emitted by -progress pipe:1.
func parseProgressLine(line string, durationHint time.Duration) (ProgressUpdate, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return ProgressUpdate{}, false
	}
	switch key {
	case "out_time_us":
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 {
			return ProgressUpdate{}, false
		}
		update := ProgressUpdate{Stage: "encoding"}
		if durationHint > 0 {
			fraction := float64(us) / float64(durationHint.Microseconds())
			if fraction > 1 {
				fraction = 1
			}
			update.Fraction = fraction
			update.Message = fmt.Sprintf("%.0f%% encoded", fraction*100)
		}
		return update, true
	case "progress":
		if value == "end" {
			return ProgressUpdate{Fraction: 1, Stage: "encoding", Message: "encode finished"}, true
		}
	}
	return ProgressUpdate{}, false
}

func tailLines(text string, n int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}

var _ Converter = (*FFmpeg)(nil)
