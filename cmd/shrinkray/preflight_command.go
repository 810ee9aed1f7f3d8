package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shrinkray/internal/preflight"
)

func newPreflightCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check binaries, directories, and disk space before a batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.Run(cmd.Context(), cfg)
			rows := make([][]string, 0, len(results))
			for _, result := range results {
				state := "ok"
				if !result.Passed {
					state = "FAIL"
				}
				rows = append(rows, []string{result.Name, state, result.Detail})
			}
			cmd.Println(renderTable(
				[]string{"Check", "Status", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			if failures := preflight.Failures(results); len(failures) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(failures))
			}
			cmd.Println("All preflight checks passed.")
			return nil
		},
	}
}
