package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir   string `toml:"state_dir"`
	StagingDir string `toml:"staging_dir"`
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
}

// Processing contains batch scheduling and encoder invocation settings.
type Processing struct {
	MaxConcurrent  int    `toml:"max_concurrent"`
	EncoderFamily  string `toml:"encoder_family"`
	VideoCodec     string `toml:"video_codec"`
	HardwareCodec  string `toml:"hardware_codec"`
	Quality        int    `toml:"quality"`
	Preset         string `toml:"preset"`
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	ExifToolBinary string `toml:"exiftool_binary"`
	EncodeTimeout  int    `toml:"encode_timeout"`
}

// Retry contains the strategy escalation and backoff settings.
type Retry struct {
	MaxRetries  int `toml:"max_retries"`
	BaseDelay   int `toml:"base_delay"`
	MaxDelay    int `toml:"max_delay"`
	QualityStep int `toml:"quality_step"`
}

// Resources contains resource monitoring and disk-space gating settings.
type Resources struct {
	MinFreeGiB           int     `toml:"min_free_gib"`
	SampleInterval       int     `toml:"sample_interval"`
	PauseTimeout         int     `toml:"pause_timeout"`
	PauseTimeoutBehavior string  `toml:"pause_timeout_behavior"`
	CPUHighPercent       float64 `toml:"cpu_high_percent"`
}

// Validation contains post-conversion acceptance tolerances.
type Validation struct {
	Strict              bool    `toml:"strict"`
	FrameRateTolerance  float64 `toml:"frame_rate_tolerance"`
	DurationTolerance   float64 `toml:"duration_tolerance"`
	DateTolerance       float64 `toml:"date_tolerance"`
	GPSToleranceDegrees float64 `toml:"gps_tolerance_degrees"`
	RatioNormalMin      float64 `toml:"ratio_normal_min"`
	RatioNormalMax      float64 `toml:"ratio_normal_max"`
	RatioErrorMin       float64 `toml:"ratio_error_min"`
	RatioErrorMax       float64 `toml:"ratio_error_max"`
}

// Notifications contains ntfy push notification settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	BatchEvents    bool   `toml:"batch_events"`
	PauseEvents    bool   `toml:"pause_events"`
	ErrorEvents    bool   `toml:"error_events"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for shrinkray.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Processing    Processing    `toml:"processing"`
	Retry         Retry         `toml:"retry"`
	Resources     Resources     `toml:"resources"`
	Validation    Validation    `toml:"validation"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/shrinkray/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a config file was found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
		path = defaultPath
	}

	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(expanded); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return expanded, true, nil
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// EnsureDirectories creates the state, staging, output, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.StagingDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// MinFreeBytes converts the configured minimum free disk space to bytes.
func (c *Config) MinFreeBytes() uint64 {
	return uint64(c.Resources.MinFreeGiB) * 1024 * 1024 * 1024
}
