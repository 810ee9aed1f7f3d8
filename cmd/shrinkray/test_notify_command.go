package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shrinkray/internal/notifications"
)

func newTestNotifyCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification to the configured ntfy topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Notifications.NtfyTopic == "" {
				return fmt.Errorf("no ntfy topic configured; set notifications.ntfy_topic")
			}

			svc := notifications.NewService(cfg.Notifications)
			if err := svc.TestNotification(cmd.Context()); err != nil {
				return err
			}
			cmd.Printf("Test notification sent to %s\n", cfg.Notifications.NtfyTopic)
			return nil
		},
	}
}
