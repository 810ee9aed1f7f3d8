package metatool

import (
	"context"
	"time"
)

// Metadata carries the tag subset the validator compares between source and
// converted files.
type Metadata struct {
	CreateDate   time.Time
	ModifyDate   time.Time
	GPSLatitude  *float64
	GPSLongitude *float64
	Title        string
	Description  string
	Album        string
}

// HasGPS reports whether both coordinates are present.
func (m Metadata) HasGPS() bool {
	return m.GPSLatitude != nil && m.GPSLongitude != nil
}

// Tool defines the metadata read/write capability.
type Tool interface {
	Extract(ctx context.Context, path string) (Metadata, error)
	Apply(ctx context.Context, sourcePath, targetPath string) error
}
