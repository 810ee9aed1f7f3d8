// Package identity derives the stable content key used for conversion dedup.
package identity

import (
	"errors"
	"strings"

	"shrinkray/internal/fileutil"
)

// ID is the stable key identifying a source item across runs.
type ID string

// FromCatalog builds an identity from a catalog-provided UUID.
func FromCatalog(uuid string) (ID, bool) {
	uuid = strings.ToLower(strings.TrimSpace(uuid))
	if uuid == "" {
		return "", false
	}
	return ID("catalog:" + uuid), true
}

// FromFile builds an identity by hashing the file contents.
func FromFile(path string) (ID, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("identity: empty path")
	}
	digest, err := fileutil.HashFile(path)
	if err != nil {
		return "", err
	}
	return ID("sha256:" + digest), nil
}

// String implements fmt.Stringer.
func (id ID) String() string { return string(id) }

// Valid reports whether the identity carries a recognized scheme.
func (id ID) Valid() bool {
	s := string(id)
	return strings.HasPrefix(s, "catalog:") && len(s) > len("catalog:") ||
		strings.HasPrefix(s, "sha256:") && len(s) > len("sha256:")
}
