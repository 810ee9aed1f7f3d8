package main

import "testing"

func TestDisplayName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"encoding_error", "Encoding Error"},
		{"disk_space_error", "Disk Space Error"},
		{"completed", "Completed"},
		{"", "-"},
		{"  ", "-"},
	}
	for _, tc := range cases {
		if got := displayName(tc.in); got != tc.want {
			t.Errorf("displayName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{3 << 30, "3.0 GiB"},
	}
	for _, tc := range cases {
		if got := formatBytes(tc.in); got != tc.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestShortIdentity(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"sha256:0123456789abcdef0123456789abcdef", "sha256:0123456789abc"},
		{"uuid:01234567-89ab", "uuid:01234567-89ab"},
		{"plain", "plain"},
	}
	for _, tc := range cases {
		if got := shortIdentity(tc.in); got != tc.want {
			t.Errorf("shortIdentity(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(
		[]string{"A", "B"},
		[][]string{{"only-a"}},
		[]columnAlignment{alignLeft, alignRight},
	)
	if out == "" {
		t.Fatal("expected rendered table output")
	}
}
