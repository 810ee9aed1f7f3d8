package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"shrinkray/internal/config"
)

func newConfigCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage configuration",
	}
	cmd.AddCommand(newConfigInitCommand(cctx))
	cmd.AddCommand(newConfigShowCommand(cctx))
	cmd.AddCommand(newConfigPathCommand(cctx))
	return cmd
}

func newConfigInitCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write an annotated sample configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if cctx.configFlag != nil {
				path = *cctx.configFlag
			}
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}

			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config file already exists at %s", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(config.SampleConfig()), 0o644); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			cmd.Printf("Wrote sample configuration to %s\n", path)
			return nil
		},
	}
}

func newConfigShowCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}

			rows := [][]string{
				{"Config file", cctx.cfgPath},
				{"State directory", cfg.Paths.StateDir},
				{"Staging directory", cfg.Paths.StagingDir},
				{"Output directory", cfg.Paths.OutputDir},
				{"Log directory", cfg.Paths.LogDir},
				{"Max concurrent", fmt.Sprintf("%d", cfg.Processing.MaxConcurrent)},
				{"Encoder family", cfg.Processing.EncoderFamily},
				{"Video codec", cfg.Processing.VideoCodec},
				{"Quality", fmt.Sprintf("%d", cfg.Processing.Quality)},
				{"Max retries", fmt.Sprintf("%d", cfg.Retry.MaxRetries)},
				{"Strict validation", fmt.Sprintf("%t", cfg.Validation.Strict)},
				{"Min free disk", fmt.Sprintf("%d GiB", cfg.Resources.MinFreeGiB)},
				{"Ntfy topic", cfg.Notifications.NtfyTopic},
				{"Log level", cfg.Logging.Level},
			}
			cmd.Println(renderTable(
				[]string{"Setting", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newConfigPathCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the resolved configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if cctx.configFlag != nil {
				path = *cctx.configFlag
			}
			_, resolvedPath, exists, err := config.Load(path)
			if err != nil {
				return err
			}
			if !exists {
				cmd.Printf("%s (not created yet, using defaults)\n", resolvedPath)
				return nil
			}
			cmd.Println(resolvedPath)
			return nil
		},
	}
}
