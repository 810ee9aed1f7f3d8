package main

import (
	"github.com/spf13/cobra"
)

func newRetryCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <library-dir> <session-id> [identity...]",
		Short: "Re-run failed jobs from a session with a fresh retry budget",
		Long: `Re-run failed jobs from a session. With no identities, every failed
job is readmitted; otherwise only the named identities are retried.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := cctx.newRuntime(args[0])
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, stop := withGracefulShutdown(cmd.Context(), rt.Orchestrator)
			defer stop()
			rt.Monitor.Start(ctx)

			report, err := rt.Orchestrator.RetryFailed(ctx, args[1], args[2:])
			if err != nil {
				return err
			}
			printReport(cmd, report)
			return nil
		},
	}
}
