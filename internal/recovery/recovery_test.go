package recovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"shrinkray/internal/logging"
	"shrinkray/internal/services"
)

func TestClassifySentinels(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"disk space sentinel", services.Wrap(services.ErrDiskSpace, "processor", "gate", "below floor", nil), CategoryDiskSpace},
		{"enospc errno", syscall.ENOSPC, CategoryDiskSpace},
		{"permission sentinel", services.Wrap(services.ErrPermission, "catalog", "export", "", os.ErrPermission), CategoryPermission},
		{"eacces errno", syscall.EACCES, CategoryPermission},
		{"validation sentinel", services.Wrap(services.ErrValidation, "validate", "ratio", "out of range", nil), CategoryValidation},
		{"missing source", services.Wrap(services.ErrNotFound, "catalog", "export", "", nil), CategoryInput},
		{"not locally available", services.Wrap(services.ErrNotAvailable, "catalog", "export", "cloud only", nil), CategoryInput},
		{"deadline is encoding", context.DeadlineExceeded, CategoryEncoding},
		{"timeout sentinel", services.Wrap(services.ErrTimeout, "encoder", "convert", "", nil), CategoryEncoding},
		{"unknown defaults to encoding", errors.New("something odd"), CategoryEncoding},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("Classify: got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestClassifyMessageHeuristics(t *testing.T) {
	tests := []struct {
		msg  string
		want Category
	}{
		{"ffmpeg exited: No space left on device", CategoryDiskSpace},
		{"open /out/x.mp4: permission denied", CategoryPermission},
		{"Invalid data found when processing input", CategoryInput},
		{"moov atom not found", CategoryInput},
		{"file appears truncated", CategoryInput},
		{"exiftool exited with status 1", CategoryMetadata},
		{"conversion failed at frame 1200", CategoryEncoding},
	}
	for _, tc := range tests {
		if got := Classify(errors.New(tc.msg)); got != tc.want {
			t.Fatalf("Classify(%q): got %s, want %s", tc.msg, got, tc.want)
		}
	}
}

func TestCategoryPolicyFlags(t *testing.T) {
	if !CategoryInput.Fatal() || !CategoryPermission.Fatal() {
		t.Fatal("input and permission failures must be fatal")
	}
	if CategoryEncoding.Fatal() || CategoryDiskSpace.Fatal() {
		t.Fatal("encoding and disk space failures must not be fatal")
	}
	if !CategoryDiskSpace.PausesSession() {
		t.Fatal("disk space failures must pause the session")
	}
	if CategoryEncoding.PausesSession() {
		t.Fatal("encoding failures must not pause the session")
	}
}

func TestRetryable(t *testing.T) {
	m := NewManager(logging.NewNop(), false)
	strict := NewManager(logging.NewNop(), true)

	tests := []struct {
		name     string
		manager  *Manager
		category Category
		attempt  int
		want     bool
	}{
		{"encoding always retryable", m, CategoryEncoding, 3, true},
		{"input never retryable", m, CategoryInput, 0, false},
		{"permission never retryable", m, CategoryPermission, 0, false},
		{"disk space routed to pause", m, CategoryDiskSpace, 0, false},
		{"metadata retries once", m, CategoryMetadata, 0, true},
		{"metadata second attempt stops", m, CategoryMetadata, 1, false},
		{"validation lenient retries once", m, CategoryValidation, 0, true},
		{"validation lenient stops after", m, CategoryValidation, 1, false},
		{"validation strict keeps retrying", strict, CategoryValidation, 2, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.manager.Retryable(tc.category, tc.attempt); got != tc.want {
				t.Fatalf("Retryable(%s, %d): got %v, want %v", tc.category, tc.attempt, got, tc.want)
			}
		})
	}
}

func TestHandleCleansPartialOutput(t *testing.T) {
	m := NewManager(logging.NewNop(), false)
	partial := filepath.Join(t.TempDir(), "partial.mp4")
	if err := os.WriteFile(partial, []byte("half a file"), 0o644); err != nil {
		t.Fatalf("write partial: %v", err)
	}

	category := m.Handle("job-1", errors.New("conversion failed"), partial)
	if category != CategoryEncoding {
		t.Fatalf("Handle category: got %s, want %s", category, CategoryEncoding)
	}
	if _, err := os.Stat(partial); !os.IsNotExist(err) {
		t.Fatalf("partial output still present: %v", err)
	}
}

func TestHandleMissingPartialIsFine(t *testing.T) {
	m := NewManager(logging.NewNop(), false)
	category := m.Handle("job-2", services.Wrap(services.ErrValidation, "validate", "duration", "drift", nil), filepath.Join(t.TempDir(), "never-written.mp4"))
	if category != CategoryValidation {
		t.Fatalf("Handle category: got %s, want %s", category, CategoryValidation)
	}
}
