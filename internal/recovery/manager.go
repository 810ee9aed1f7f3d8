package recovery

import (
	"log/slog"

	"shrinkray/internal/fileutil"
	"shrinkray/internal/logging"
)

// Manager applies recovery policy when a job attempt fails: it classifies
// the error, removes partial outputs so a retry starts clean, and decides
// whether the category is worth another attempt.
type Manager struct {
	logger           *slog.Logger
	strictValidation bool
}

// NewManager builds a recovery manager. strictValidation controls whether
// validation failures beyond integrity are eligible for retries.
func NewManager(logger *slog.Logger, strictValidation bool) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		logger:           logging.NewComponentLogger(logger, "recovery"),
		strictValidation: strictValidation,
	}
}

// Handle classifies the failure and cleans up the partial output. It returns
// the category for retry routing and session bookkeeping.
func (m *Manager) Handle(jobID string, err error, partialOutput string) Category {
	category := Classify(err)
	m.logger.Warn("job attempt failed",
		logging.FieldJobID, jobID,
		logging.FieldCategory, category.String(),
		logging.FieldErrorHint, Hint(category),
		"error", err,
	)
	if partialOutput != "" {
		if rmErr := fileutil.RemoveIfExists(partialOutput); rmErr != nil {
			m.logger.Warn("partial output cleanup failed",
				logging.FieldJobID, jobID,
				logging.FieldOutputPath, partialOutput,
				"error", rmErr,
			)
		}
	}
	return category
}

// Retryable reports whether another attempt may be worthwhile for the
// category. attempt is the zero-based index of the attempt that just failed.
func (m *Manager) Retryable(category Category, attempt int) bool {
	switch category {
	case CategoryInput, CategoryPermission:
		return false
	case CategoryDiskSpace:
		// Resolved by the pause/resume path, not by re-encoding.
		return false
	case CategoryMetadata:
		// Metadata carry-over rarely improves with repetition.
		return attempt == 0
	case CategoryValidation:
		return m.strictValidation || attempt == 0
	default:
		return true
	}
}

// Hint returns an operator-facing suggestion for the category.
func Hint(category Category) string {
	switch category {
	case CategoryInput:
		return "source file is unreadable or corrupt; re-export it from the source device"
	case CategoryEncoding:
		return "encoder rejected the stream; a retry with different settings may help"
	case CategoryValidation:
		return "output failed quality checks; inspect the converted file before deleting the source"
	case CategoryMetadata:
		return "metadata carry-over failed; the converted video itself may still be usable"
	case CategoryDiskSpace:
		return "free disk space on the output volume and resume the session"
	case CategoryPermission:
		return "fix file or directory permissions and retry"
	default:
		return ""
	}
}
