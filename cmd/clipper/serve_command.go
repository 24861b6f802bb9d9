package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"clipper/internal/daemon"
	"clipper/internal/logging"
	"clipper/internal/upload"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bindFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control API in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(bindFlag) != "" {
				cfg.API.Bind = strings.TrimSpace(bindFlag)
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			mgr, closer, err := ctx.newManager(logger)
			if err != nil {
				return err
			}
			defer closer.Close()

			d, err := daemon.New(cfg, logger, mgr, upload.NewFromConfig(cfg, logger))
			if err != nil {
				return err
			}

			signalCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return d.Run(signalCtx)
		},
	}
	cmd.Flags().StringVar(&bindFlag, "bind", "", "Listen address (overrides api.bind)")
	return cmd
}
