package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResumeCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <library-dir> [session-id]",
		Short: "Resume an interrupted session, skipping work already recorded",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := cctx.newRuntime(args[0])
			if err != nil {
				return err
			}
			defer rt.Close()

			sessionID := ""
			if len(args) == 2 {
				sessionID = args[1]
			} else {
				resumable, err := rt.Store.ListResumable()
				if err != nil {
					return err
				}
				if len(resumable) == 0 {
					return fmt.Errorf("no resumable sessions found")
				}
				newest := resumable[0]
				for _, sess := range resumable[1:] {
					if sess.CreatedAt.After(newest.CreatedAt) {
						newest = sess
					}
				}
				sessionID = newest.ID
				cmd.Printf("Resuming most recent session %s\n", shortID(sessionID))
			}

			ctx, stop := withGracefulShutdown(cmd.Context(), rt.Orchestrator)
			defer stop()
			rt.Monitor.Start(ctx)

			report, err := rt.Orchestrator.Resume(ctx, sessionID)
			if err != nil {
				return err
			}
			printReport(cmd, report)
			return nil
		},
	}
}
