package main

import (
	"sort"

	"github.com/spf13/cobra"
)

func newSessionsCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List every recorded session, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cctx.openStore()
			if err != nil {
				return err
			}

			sessions, err := store.List()
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				cmd.Println("No sessions recorded yet.")
				return nil
			}

			sort.Slice(sessions, func(i, j int) bool {
				return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
			})

			rows := make([][]string, 0, len(sessions))
			for _, sess := range sessions {
				rows = append(rows, sessionRow(sess))
			}
			cmd.Println(renderTable(
				[]string{"Session", "Created", "Status", "Ok/Fail/Skip", "Saved"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
}
