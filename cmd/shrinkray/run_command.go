package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"shrinkray/internal/catalog"
	"shrinkray/internal/orchestrator"
	"shrinkray/internal/session"
)

func newRunCommand(cctx *commandContext) *cobra.Command {
	var extensions []string
	var minSizeBytes int64

	cmd := &cobra.Command{
		Use:   "run <library-dir>",
		Short: "Convert every eligible video under a library directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := cctx.newRuntime(args[0])
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, stop := withGracefulShutdown(cmd.Context(), rt.Orchestrator)
			defer stop()
			rt.Monitor.Start(ctx)

			report, err := rt.Orchestrator.Run(ctx, catalog.Filter{
				Extensions:   extensions,
				MinSizeBytes: minSizeBytes,
			})
			if err != nil {
				return err
			}
			printReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&extensions, "ext", nil, "Restrict to these extensions (e.g. .mov,.mp4)")
	cmd.Flags().Int64Var(&minSizeBytes, "min-size", 0, "Skip files smaller than this many bytes")
	return cmd
}

func printReport(cmd *cobra.Command, report *orchestrator.BatchReport) {
	rows := [][]string{
		{"Session", report.SessionID},
		{"Status", displayName(string(report.SessionStatus))},
		{"Succeeded", strconv.Itoa(report.Succeeded)},
		{"Failed", strconv.Itoa(report.Failed)},
		{"Skipped", strconv.Itoa(report.Skipped)},
		{"Space saved", formatBytes(report.BytesSaved)},
		{"Duration", report.Duration.Round(time.Second).String()},
	}
	cmd.Println(renderTable([]string{"Batch", "Result"}, rows, []columnAlignment{alignLeft, alignLeft}))

	if len(report.Failures) == 0 {
		return
	}

	categories := make([]string, 0, len(report.FailureCategories))
	for category := range report.FailureCategories {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		cmd.Printf("%s: %d\n", displayName(category), report.FailureCategories[category])
	}

	failureRows := make([][]string, 0, len(report.Failures))
	for _, failure := range report.Failures {
		failureRows = append(failureRows, []string{
			failure.Title,
			shortIdentity(failure.Identity),
			displayName(failure.Category),
			failure.Message,
		})
	}
	cmd.Println(renderTable(
		[]string{"Title", "Identity", "Category", "Error"},
		failureRows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
	))
	cmd.Println(`Retry failed jobs with "shrinkray retry".`)
}

func sessionRow(sess *session.Session) []string {
	return []string{
		shortID(sess.ID),
		sess.CreatedAt.Local().Format("2006-01-02 15:04"),
		displayName(string(sess.Status)),
		fmt.Sprintf("%d/%d/%d", sess.Counters.Succeeded, sess.Counters.Failed, sess.Counters.Skipped),
		formatBytes(sess.Counters.BytesSaved),
	}
}
