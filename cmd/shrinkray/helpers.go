package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"shrinkray/internal/orchestrator"
)

var titleCaser = cases.Title(language.English)

// displayName turns snake_case statuses and categories into readable labels.
func displayName(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "-"
	}
	return titleCaser.String(strings.ReplaceAll(raw, "_", " "))
}

func secondsDuration(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func shortIdentity(id string) string {
	if idx := strings.Index(id, ":"); idx >= 0 && len(id) > idx+14 {
		return id[:idx+14]
	}
	return id
}

// withGracefulShutdown cancels admission on the first interrupt and the
// whole context on the second.
func withGracefulShutdown(parent context.Context, orch *orchestrator.Orchestrator) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigs:
			fmt.Fprintln(os.Stderr, "interrupt received, finishing in-flight conversions (interrupt again to abort)")
			orch.Cancel()
		case <-ctx.Done():
			return
		}
		select {
		case <-sigs:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigs)
		cancel()
	}
}
