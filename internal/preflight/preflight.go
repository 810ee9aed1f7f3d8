package preflight

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"shrinkray/internal/config"
)

// Result is the outcome of one environment check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// test seams for environment probes
var (
	lookPath = exec.LookPath
	access   = unix.Access
	statfs   = func(path string) (free uint64, err error) {
		var stat unix.Statfs_t
		if err := unix.Statfs(path, &stat); err != nil {
			return 0, err
		}
		return stat.Bavail * uint64(stat.Bsize), nil
	}
)

// CheckBinary verifies an external tool is resolvable on PATH.
func CheckBinary(name, binary string) Result {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return Result{Name: name, Detail: "binary not configured"}
	}
	resolved, err := lookPath(binary)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s not found on PATH", binary)}
	}
	return Result{Name: name, Passed: true, Detail: resolved}
}

// CheckDirectory verifies a directory exists and is writable.
func CheckDirectory(name, path string) Result {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{Name: name, Detail: "path not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("stat failed (%v)", err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: "not a directory"}
	}
	if err := access(path, unix.W_OK); err != nil {
		return Result{Name: name, Detail: "not writable"}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckDiskSpace verifies the output volume has at least the configured
// minimum free space.
func CheckDiskSpace(path string, minFree uint64) Result {
	const name = "Disk space"
	free, err := statfs(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("statfs failed (%v)", err)}
	}
	detail := fmt.Sprintf("%.1f GiB free", float64(free)/(1<<30))
	if minFree > 0 && free < minFree {
		return Result{Name: name, Detail: fmt.Sprintf("%s, below %.1f GiB minimum", detail, float64(minFree)/(1<<30))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckHardwareDevice verifies the VAAPI render node exists when hardware
// encoding is selected.
func CheckHardwareDevice(device string) Result {
	const name = "Hardware encoder"
	if device == "" {
		device = "/dev/dri/renderD128"
	}
	if _, err := os.Stat(device); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s unavailable", device)}
	}
	return Result{Name: name, Passed: true, Detail: device}
}

// Run executes every check relevant to the configuration and returns results
// in display order.
func Run(_ context.Context, cfg *config.Config) []Result {
	results := []Result{
		CheckBinary("ffmpeg", cfg.Processing.FFmpegBinary),
		CheckBinary("ffprobe", cfg.Processing.FFprobeBinary),
		CheckBinary("exiftool", cfg.Processing.ExifToolBinary),
		CheckDirectory("Staging directory", cfg.Paths.StagingDir),
		CheckDirectory("Output directory", cfg.Paths.OutputDir),
		CheckDirectory("State directory", cfg.Paths.StateDir),
		CheckDiskSpace(cfg.Paths.OutputDir, cfg.MinFreeBytes()),
	}
	if cfg.Processing.EncoderFamily == "hardware" {
		results = append(results, CheckHardwareDevice(""))
	}
	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}

// Failures returns the checks that did not pass.
func Failures(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}
