package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes contents to path, creating parent directories as needed.
func WriteFile(t testing.TB, path string, contents []byte) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteVideoFile drops a placeholder media file of the given size under dir.
func WriteVideoFile(t testing.TB, dir, name string, size int) string {
	t.Helper()
	return WriteFile(t, filepath.Join(dir, name), make([]byte, size))
}
