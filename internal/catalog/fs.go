package catalog

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"shrinkray/internal/fileutil"
	"shrinkray/internal/services"
)

var defaultExtensions = map[string]struct{}{
	".mov": {},
	".mp4": {},
	".m4v": {},
	".avi": {},
	".mkv": {},
	".mts": {},
}

// FS is a Catalog backed by a directory tree of media files.
type FS struct {
	root string
}

// NewFS constructs a filesystem catalog rooted at dir.
func NewFS(dir string) *FS {
	return &FS{root: dir}
}

// ListCandidates walks the root directory and returns matching media files
// ordered by path for deterministic batch composition.
func (c *FS) ListCandidates(ctx context.Context, filter Filter) ([]Descriptor, error) {
	extensions := defaultExtensions
	if len(filter.Extensions) > 0 {
		extensions = make(map[string]struct{}, len(filter.Extensions))
		for _, ext := range filter.Extensions {
			extensions[strings.ToLower(strings.TrimSpace(ext))] = struct{}{}
		}
	}

	var candidates []Descriptor
	err := filepath.WalkDir(c.root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if _, ok := extensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		if filter.MinSizeBytes > 0 && info.Size() < filter.MinSizeBytes {
			return nil
		}
		if !filter.ModifiedAfter.IsZero() && info.ModTime().Before(filter.ModifiedAfter) {
			return nil
		}
		candidates = append(candidates, Descriptor{
			Title:     strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			Ref:       path,
			SizeBytes: info.Size(),
			Modified:  info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Ref < candidates[j].Ref })
	return candidates, nil
}

// Export copies the source into destDir and returns the staged path.
func (c *FS) Export(ctx context.Context, desc Descriptor, destDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := os.Stat(desc.Ref); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", services.Wrap(services.ErrNotAvailable, "catalog", "export", desc.Ref, err)
		}
		return "", err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "catalog", "stage source", destDir, err)
	}
	staged := filepath.Join(destDir, filepath.Base(desc.Ref))
	if err := fileutil.CopyFile(desc.Ref, staged); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "catalog", "stage source", desc.Ref, err)
	}
	return staged, nil
}

var _ Catalog = (*FS)(nil)
