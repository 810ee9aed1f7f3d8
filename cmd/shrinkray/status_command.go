package main

import (
	"github.com/spf13/cobra"
)

func newStatusCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sessions that can be resumed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cctx.openStore()
			if err != nil {
				return err
			}

			resumable, err := store.ListResumable()
			if err != nil {
				return err
			}
			if len(resumable) == 0 {
				cmd.Println("No interrupted sessions. Start a batch with \"shrinkray run\".")
				return nil
			}

			rows := make([][]string, 0, len(resumable))
			for _, sess := range resumable {
				rows = append(rows, sessionRow(sess))
			}
			cmd.Println(renderTable(
				[]string{"Session", "Created", "Status", "Ok/Fail/Skip", "Saved"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			cmd.Println(`Resume with "shrinkray resume <library-dir> <session-id>".`)
			return nil
		},
	}
}
