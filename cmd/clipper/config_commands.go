package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clipper/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigValidateCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

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
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	var asTOML bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asTOML {
				encoded, err := cfg.Encode()
				if err != nil {
					return err
				}
				fmt.Fprint(out, encoded)
				return nil
			}
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			fmt.Fprintln(out, renderKeyValues(configRows(cfg)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asTOML, "toml", false, "Print as TOML instead of a table")
	return cmd
}

func configRows(cfg *config.Config) [][2]string {
	token := "(not set)"
	if cfg.API.Token != "" {
		token = "(set)"
	}
	origins := strings.Join(cfg.API.AllowedOrigins, ", ")
	if origins == "" {
		origins = "(none)"
	}
	jobTimeout := "unlimited"
	if cfg.Supervisor.JobTimeoutSeconds > 0 {
		jobTimeout = cfg.JobTimeout().String()
	}
	return [][2]string{
		{"paths.output_dir", cfg.Paths.OutputDir},
		{"paths.log_dir", cfg.Paths.LogDir},
		{"paths.state_dir", cfg.Paths.StateDir},
		{"paths.bin_dir", cfg.Paths.BinDir},
		{"tools.ffmpeg_binary", cfg.FFmpegBinary()},
		{"tools.ffprobe_binary", cfg.FFprobeBinary()},
		{"encoding.codec", cfg.Encoding.Codec},
		{"encoding.crf", cfg.Encoding.CRF},
		{"encoding.fps", cfg.Encoding.FPS},
		{"encoding.audio_bitrate", cfg.Encoding.AudioBitrate},
		{"encoding.resolution", cfg.Encoding.Resolution},
		{"encoding.speed", cfg.Encoding.Speed},
		{"encoding.preset", cfg.Encoding.Preset},
		{"encoding.container", cfg.Encoding.Container},
		{"supervisor.cancel_grace", cfg.CancelGrace().String()},
		{"supervisor.read_timeout", cfg.ReadTimeout().String()},
		{"supervisor.job_timeout", jobTimeout},
		{"supervisor.verify_output", yesNo(cfg.Supervisor.VerifyOutput)},
		{"upload.default_service", cfg.Upload.DefaultService},
		{"upload.timeout", cfg.UploadTimeout().String()},
		{"upload.max_attempts", strconv.Itoa(cfg.Upload.MaxAttempts)},
		{"api.bind", cfg.API.Bind},
		{"api.allowed_origins", origins},
		{"api.token", token},
		{"probe_cache.enabled", yesNo(cfg.ProbeCache.Enabled)},
		{"probe_cache.path", cfg.ProbeCache.Path},
		{"logging.level", cfg.Logging.Level},
		{"logging.format", cfg.Logging.Format},
	}
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if _, err := os.Stat(ctx.configPath); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
