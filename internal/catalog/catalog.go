// Package catalog abstracts the media library the batch pulls candidates
// from. The orchestration core only sees Descriptors and an Export operation;
// whether they come from a directory scan or a proprietary library service is
// an implementation detail.
package catalog

import (
	"context"
	"time"
)

// Descriptor identifies one candidate source item.
type Descriptor struct {
	// CatalogID is a library-assigned UUID when the backing store has one;
	// empty means the content identity falls back to a file hash.
	CatalogID string
	Title     string
	// Ref is the backend-specific locator (a path for the filesystem catalog).
	Ref       string
	SizeBytes int64
	Modified  time.Time
}

// Filter narrows candidate listing.
type Filter struct {
	// Extensions restricts results to these lowercase extensions (with dot).
	// Empty means the backend default set.
	Extensions []string
	// ModifiedAfter excludes items older than this instant when non-zero.
	ModifiedAfter time.Time
	// MinSizeBytes excludes items smaller than this when positive.
	MinSizeBytes int64
}

// Catalog wraps the media-library access layer.
//
// Export may fail with services.ErrNotAvailable when an item exists in the
// library index but its bytes are not locally present; callers must treat
// that as a skip, not a failure.
type Catalog interface {
	ListCandidates(ctx context.Context, filter Filter) ([]Descriptor, error)
	Export(ctx context.Context, desc Descriptor, destDir string) (string, error)
}
