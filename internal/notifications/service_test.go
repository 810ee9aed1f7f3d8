package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shrinkray/internal/config"
	"shrinkray/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	svc := notifications.NewService(config.Notifications{})
	if err := svc.NotifyBatchStarted(context.Background(), 3); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	type captured struct {
		title    string
		priority string
		tags     string
		body     string
	}
	var got captured

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = captured{
			title:    r.Header.Get("Title"),
			priority: r.Header.Get("Priority"),
			tags:     r.Header.Get("Tags"),
			body:     string(body),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := notifications.NewService(config.Notifications{
		NtfyTopic:      server.URL,
		RequestTimeout: 5,
		BatchEvents:    true,
		PauseEvents:    true,
		ErrorEvents:    true,
	})
	ctx := context.Background()

	if err := svc.NotifyBatchStarted(ctx, 7); err != nil {
		t.Fatalf("NotifyBatchStarted: %v", err)
	}
	if got.title != "Shrinkray - Batch Started" {
		t.Fatalf("title: got %q", got.title)
	}
	if !strings.Contains(got.body, "7 videos") {
		t.Fatalf("body: got %q", got.body)
	}

	if err := svc.NotifyBatchCompleted(ctx, 5, 1, 2, 3<<30, 90*time.Second); err != nil {
		t.Fatalf("NotifyBatchCompleted: %v", err)
	}
	if !strings.Contains(got.title, "with errors") {
		t.Fatalf("title: got %q", got.title)
	}
	for _, want := range []string{"5 converted", "1 failed", "1m30s", "3.0 GiB", "2 skipped"} {
		if !strings.Contains(got.body, want) {
			t.Fatalf("body %q missing %q", got.body, want)
		}
	}

	if err := svc.NotifySessionPaused(ctx, "disk space below configured minimum"); err != nil {
		t.Fatalf("NotifySessionPaused: %v", err)
	}
	if got.priority != "high" {
		t.Fatalf("priority: got %q, want high", got.priority)
	}
	if got.tags != "shrinkray,session,paused" {
		t.Fatalf("tags: got %q", got.tags)
	}

	if err := svc.NotifyJobFailed(ctx, "IMG_0042", "encoding_error"); err != nil {
		t.Fatalf("NotifyJobFailed: %v", err)
	}
	if !strings.Contains(got.body, "IMG_0042") || !strings.Contains(got.body, "encoding_error") {
		t.Fatalf("body: got %q", got.body)
	}
}

func TestNtfyServiceRespectsEventToggles(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := notifications.NewService(config.Notifications{NtfyTopic: server.URL, RequestTimeout: 5})
	ctx := context.Background()

	if err := svc.NotifyBatchStarted(ctx, 1); err != nil {
		t.Fatalf("NotifyBatchStarted: %v", err)
	}
	if err := svc.NotifySessionPaused(ctx, "low disk"); err != nil {
		t.Fatalf("NotifySessionPaused: %v", err)
	}
	if err := svc.NotifyJobFailed(ctx, "clip", "input_error"); err != nil {
		t.Fatalf("NotifyJobFailed: %v", err)
	}
	if requests != 0 {
		t.Fatalf("disabled events must not send, got %d requests", requests)
	}

	if err := svc.TestNotification(ctx); err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if requests != 1 {
		t.Fatalf("test notification always sends, got %d requests", requests)
	}
}

func TestNtfyServiceSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic rejected", http.StatusForbidden)
	}))
	defer server.Close()

	svc := notifications.NewService(config.Notifications{NtfyTopic: server.URL, RequestTimeout: 5, BatchEvents: true})
	err := svc.NotifyBatchStarted(context.Background(), 1)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
