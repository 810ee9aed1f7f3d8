package metatool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"shrinkray/internal/services"
)

var commandContext = exec.CommandContext

// ExifTool shells out to the exiftool binary.
type ExifTool struct {
	binary string
}

// NewExifTool constructs a client for the given binary name; empty uses "exiftool".
func NewExifTool(binary string) *ExifTool {
	if strings.TrimSpace(binary) == "" {
		binary = "exiftool"
	}
	return &ExifTool{binary: binary}
}

type exifRecord struct {
	CreateDate   string   `json:"CreateDate"`
	ModifyDate   string   `json:"FileModifyDate"`
	GPSLatitude  *float64 `json:"GPSLatitude"`
	GPSLongitude *float64 `json:"GPSLongitude"`
	Title        string   `json:"Title"`
	Description  string   `json:"Description"`
	Album        string   `json:"Album"`
}

// Extract reads the tag subset from path via `exiftool -json -n`.
func (e *ExifTool) Extract(ctx context.Context, path string) (Metadata, error) {
	if strings.TrimSpace(path) == "" {
		return Metadata{}, errors.New("exiftool extract: empty path")
	}

	cmd := commandContext(ctx, e.binary, "-json", "-n", "-CreateDate", "-FileModifyDate", "-GPSLatitude", "-GPSLongitude", "-Title", "-Description", "-Album", path)
	output, err := cmd.Output()
	if err != nil {
		return Metadata{}, services.Wrap(services.ErrExternalTool, "metatool", "extract", path, err)
	}

	var records []exifRecord
	if err := json.Unmarshal(output, &records); err != nil {
		return Metadata{}, fmt.Errorf("exiftool parse: %w", err)
	}
	if len(records) == 0 {
		return Metadata{}, errors.New("exiftool parse: empty result")
	}

	record := records[0]
	meta := Metadata{
		GPSLatitude:  record.GPSLatitude,
		GPSLongitude: record.GPSLongitude,
		Title:        record.Title,
		Description:  record.Description,
		Album:        record.Album,
	}
	if t, ok := parseExifDate(record.CreateDate); ok {
		meta.CreateDate = t
	}
	if t, ok := parseExifDate(record.ModifyDate); ok {
		meta.ModifyDate = t
	}
	return meta, nil
}

// Apply copies all tags from sourcePath onto targetPath in place.
func (e *ExifTool) Apply(ctx context.Context, sourcePath, targetPath string) error {
	if strings.TrimSpace(sourcePath) == "" || strings.TrimSpace(targetPath) == "" {
		return errors.New("exiftool apply: source and target paths required")
	}

	cmd := commandContext(ctx, e.binary, "-TagsFromFile", sourcePath, "-All:All", "-overwrite_original", targetPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		return services.Wrap(services.ErrExternalTool, "metatool", "apply tags", detail, err)
	}
	return nil
}

// exiftool prints timestamps like "2023:07:14 10:02:11" with an optional
// trailing zone offset.
func parseExifDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	layouts := []string{
		"2006:01:02 15:04:05-07:00",
		"2006:01:02 15:04:05Z07:00",
		"2006:01:02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var _ Tool = (*ExifTool)(nil)
