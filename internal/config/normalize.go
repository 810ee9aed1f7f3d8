package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"state_dir", &c.Paths.StateDir},
		{"staging_dir", &c.Paths.StagingDir},
		{"output_dir", &c.Paths.OutputDir},
		{"log_dir", &c.Paths.LogDir},
	}
	for _, field := range fields {
		expanded, err := expandPath(*field.value)
		if err != nil {
			return fmt.Errorf("expand %s: %w", field.name, err)
		}
		*field.value = expanded
	}

	c.Processing.EncoderFamily = strings.ToLower(strings.TrimSpace(c.Processing.EncoderFamily))
	c.Resources.PauseTimeoutBehavior = strings.ToLower(strings.TrimSpace(c.Resources.PauseTimeoutBehavior))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("path must not be empty")
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, path[2:])
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	return abs, nil
}
