package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// historyRecord is the machine-readable shape emitted by history --json,
// one JSON object per line.
type historyRecord struct {
	Identity    string  `json:"identity"`
	Outcome     string  `json:"outcome"`
	Ratio       float64 `json:"ratio"`
	SourceBytes int64   `json:"source_bytes"`
	OutputBytes int64   `json:"output_bytes"`
	OutputPath  string  `json:"output_path,omitempty"`
	CompletedAt string  `json:"completed_at"`
}

func newHistoryCommand(cctx *commandContext) *cobra.Command {
	var since time.Duration
	var limit int
	var pruneBefore time.Duration
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded conversions from the history ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := cctx.openLedger()
			if err != nil {
				return err
			}
			defer history.Close()

			if pruneBefore > 0 {
				removed, err := history.Prune(cmd.Context(), time.Now().UTC().Add(-pruneBefore))
				if err != nil {
					return err
				}
				cmd.Printf("Pruned %d entries. Pruned identities will convert again on the next run.\n", removed)
				return nil
			}

			var lower time.Time
			if since > 0 {
				lower = time.Now().UTC().Add(-since)
			}

			entries, err := history.Entries(cmd.Context(), lower, time.Time{})
			if err != nil {
				return err
			}
			if len(entries) == 0 && !asJSON {
				cmd.Println("No conversions recorded.")
				return nil
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}

			if asJSON {
				for _, entry := range entries {
					line, err := json.Marshal(historyRecord{
						Identity:    string(entry.Identity),
						Outcome:     string(entry.Outcome),
						Ratio:       entry.Ratio,
						SourceBytes: entry.SourceBytes,
						OutputBytes: entry.OutputBytes,
						OutputPath:  entry.OutputPath,
						CompletedAt: entry.CompletedAt.UTC().Format(time.RFC3339),
					})
					if err != nil {
						return err
					}
					cmd.Println(string(line))
				}
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					shortIdentity(string(entry.Identity)),
					displayName(string(entry.Outcome)),
					fmt.Sprintf("%.2f", entry.Ratio),
					formatBytes(entry.SourceBytes),
					formatBytes(entry.OutputBytes),
					entry.CompletedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			cmd.Println(renderTable(
				[]string{"Identity", "Outcome", "Ratio", "Source", "Output", "Completed"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))

			stats, err := history.Stats(cmd.Context(), lower, time.Time{})
			if err != nil {
				return err
			}
			cmd.Printf("%d conversions (%d succeeded, %d failed), %s saved, mean ratio %.2f\n",
				stats.Total, stats.Succeeded, stats.Failed, formatBytes(stats.BytesSaved), stats.MeanRatio)
			return nil
		},
	}

	cmd.Flags().DurationVar(&since, "since", 0, "Only show entries newer than this (e.g. 72h)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of entries to show (0 for all)")
	cmd.Flags().DurationVar(&pruneBefore, "prune-before", 0, "Delete entries older than this and exit (e.g. 2160h)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit entries as JSON, one object per line")
	return cmd
}
