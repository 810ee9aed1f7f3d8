package recovery

import (
	"context"
	"errors"
	"strings"
	"syscall"

	"shrinkray/internal/services"
)

// Category buckets a job failure for retry routing and reporting.
type Category string

const (
	CategoryInput      Category = "input_error"
	CategoryEncoding   Category = "encoding_error"
	CategoryValidation Category = "validation_error"
	CategoryMetadata   Category = "metadata_error"
	CategoryDiskSpace  Category = "disk_space_error"
	CategoryPermission Category = "permission_error"
)

// Classify maps an error to its failure category. Sentinel markers attached
// through services.Wrap win over message heuristics; unrecognized errors are
// treated as encoding failures so they stay on the retry path.
func Classify(err error) Category {
	if err == nil {
		return CategoryEncoding
	}

	switch {
	case errors.Is(err, services.ErrDiskSpace) || errors.Is(err, syscall.ENOSPC):
		return CategoryDiskSpace
	case errors.Is(err, services.ErrPermission) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM):
		return CategoryPermission
	case errors.Is(err, services.ErrValidation):
		return CategoryValidation
	case errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrNotAvailable):
		return CategoryInput
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, services.ErrTimeout):
		return CategoryEncoding
	}

	return classifyMessage(err.Error())
}

func classifyMessage(msg string) Category {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "no space left on device"),
		strings.Contains(lower, "disk full"):
		return CategoryDiskSpace
	case strings.Contains(lower, "permission denied"),
		strings.Contains(lower, "operation not permitted"):
		return CategoryPermission
	case strings.Contains(lower, "invalid data found"),
		strings.Contains(lower, "moov atom not found"),
		strings.Contains(lower, "could not find codec parameters"),
		strings.Contains(lower, "corrupt"),
		strings.Contains(lower, "truncated"):
		return CategoryInput
	case strings.Contains(lower, "exiftool"),
		strings.Contains(lower, "metatool"),
		strings.Contains(lower, "metadata"):
		return CategoryMetadata
	default:
		return CategoryEncoding
	}
}

// Fatal reports whether a category can never succeed on retry regardless of
// strategy. Disk space failures are not fatal but are handled through the
// pause path instead of retries.
func (c Category) Fatal() bool {
	return c == CategoryInput || c == CategoryPermission
}

// PausesSession reports whether the failure should pause admission rather
// than consume retry attempts.
func (c Category) PausesSession() bool {
	return c == CategoryDiskSpace
}

func (c Category) String() string { return string(c) }
