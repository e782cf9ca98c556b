package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cliparr/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "data_dir:       %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "log_dir:        %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "api_bind:       %s\n", cfg.Paths.APIBind)
			fmt.Fprintf(out, "snapshot_path:  %s\n", cfg.Catalog.SnapshotPath)
			fmt.Fprintf(out, "ffmpeg_binary:  %s\n", cfg.Analysis.FFmpegBinary)
			fmt.Fprintf(out, "sample_rate:    %d\n", cfg.Analysis.SampleRate)
			fmt.Fprintf(out, "workers:        %d\n", cfg.Workflow.Workers)
			fmt.Fprintf(out, "max_attempts:   %d\n", cfg.Workflow.MaxAttempts)
			fmt.Fprintf(out, "log_format:     %s\n", cfg.Logging.Format)
			fmt.Fprintf(out, "log_level:      %s\n", cfg.Logging.Level)
			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}

			written, err := config.WriteSample(target)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", written)
			fmt.Fprintln(out, "Edit the file to set catalog.snapshot_path before starting cliparrd.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}
