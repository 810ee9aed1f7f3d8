package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, []string{"--config", target, "config", "init"})
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	contents, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if !strings.Contains(string(contents), "[processing]") {
		t.Fatalf("sample config missing processing section:\n%s", contents)
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(target, []byte("# existing\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := runCLI(t, []string{"--config", target, "config", "init"})
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected overwrite refusal, got %v", err)
	}
}

func TestConfigPathReportsMissingFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, []string{"--config", target, "config", "path"})
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	requireContains(t, out, target)
	requireContains(t, out, "not created yet")
}
