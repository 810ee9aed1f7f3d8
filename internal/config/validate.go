package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for internally inconsistent or out-of-range values.
func (c *Config) Validate() error {
	var problems []string

	if c.Processing.MaxConcurrent < 1 {
		problems = append(problems, "processing.max_concurrent must be at least 1")
	}
	if c.Processing.MaxConcurrent > MaxConcurrentCeiling {
		problems = append(problems, fmt.Sprintf("processing.max_concurrent must not exceed %d", MaxConcurrentCeiling))
	}
	switch c.Processing.EncoderFamily {
	case "software", "hardware":
	default:
		problems = append(problems, fmt.Sprintf("processing.encoder_family must be %q or %q, got %q", "software", "hardware", c.Processing.EncoderFamily))
	}
	if c.Processing.Quality < 0 || c.Processing.Quality > 51 {
		problems = append(problems, "processing.quality must be between 0 and 51")
	}
	if c.Processing.EncodeTimeout < 1 {
		problems = append(problems, "processing.encode_timeout must be positive")
	}

	if c.Retry.MaxRetries < 0 {
		problems = append(problems, "retry.max_retries must not be negative")
	}
	if c.Retry.BaseDelay < 1 {
		problems = append(problems, "retry.base_delay must be positive")
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		problems = append(problems, "retry.max_delay must be at least retry.base_delay")
	}
	if c.Retry.QualityStep < 1 {
		problems = append(problems, "retry.quality_step must be positive")
	}

	if c.Resources.MinFreeGiB < 0 {
		problems = append(problems, "resources.min_free_gib must not be negative")
	}
	if c.Resources.SampleInterval < 1 {
		problems = append(problems, "resources.sample_interval must be positive")
	}
	if c.Resources.CPUHighPercent < 0 || c.Resources.CPUHighPercent > 100 {
		problems = append(problems, "resources.cpu_high_percent must be between 0 and 100")
	}
	switch c.Resources.PauseTimeoutBehavior {
	case "skip", "abort":
	default:
		problems = append(problems, fmt.Sprintf("resources.pause_timeout_behavior must be %q or %q, got %q", "skip", "abort", c.Resources.PauseTimeoutBehavior))
	}

	if c.Validation.RatioNormalMin <= c.Validation.RatioErrorMin {
		// The warning band sits between the error and normal bounds, so the
		// normal minimum must be strictly above the error minimum.
		problems = append(problems, "validation.ratio_normal_min must exceed validation.ratio_error_min")
	}
	if c.Validation.RatioNormalMax >= c.Validation.RatioErrorMax {
		problems = append(problems, "validation.ratio_normal_max must be below validation.ratio_error_max")
	}
	if c.Validation.GPSToleranceDegrees <= 0 {
		problems = append(problems, "validation.gps_tolerance_degrees must be positive")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
