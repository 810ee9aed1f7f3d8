package main

import (
	"bytes"
	"strings"
	"testing"
)

// runCLI executes the root command with the given args and returns its
// combined output.
func runCLI(t *testing.T, args []string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestRootHelpListsCommands(t *testing.T) {
	out, err := runCLI(t, []string{"--help"})
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, command := range []string{"run", "resume", "retry", "status", "sessions", "history", "preflight", "config"} {
		requireContains(t, out, command)
	}
}

func TestRunRequiresLibraryArgument(t *testing.T) {
	_, err := runCLI(t, []string{"run"})
	if err == nil {
		t.Fatal("expected an error when the library directory is missing")
	}
}
