package identity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromCatalog(t *testing.T) {
	id, ok := FromCatalog(" ABCD-1234 ")
	if !ok {
		t.Fatal("expected identity from catalog uuid")
	}
	if id != "catalog:abcd-1234" {
		t.Fatalf("id = %q", id)
	}
	if !id.Valid() {
		t.Fatal("catalog identity should be valid")
	}

	if _, ok := FromCatalog("   "); ok {
		t.Fatal("blank uuid should not produce an identity")
	}
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mov")
	if err := os.WriteFile(path, []byte("frames"), 0o644); err != nil {
		t.Fatal(err)
	}

	id, err := FromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !id.Valid() {
		t.Fatalf("hash identity should be valid: %q", id)
	}

	again, err := FromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if id != again {
		t.Fatalf("identity not stable: %q vs %q", id, again)
	}
}

func TestValidRejectsBareScheme(t *testing.T) {
	for _, bad := range []ID{"", "catalog:", "sha256:", "plainstring"} {
		if bad.Valid() {
			t.Errorf("%q should be invalid", bad)
		}
	}
}
