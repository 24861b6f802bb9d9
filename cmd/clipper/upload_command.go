package main

import (
	"github.com/spf13/cobra"

	"clipper/internal/upload"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var serviceFlag string

	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a file to a temporary file host and print its link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			name := serviceFlag
			if name == "" {
				name = cfg.Upload.DefaultService
			}
			service, err := upload.ParseService(name)
			if err != nil {
				return err
			}
			logger, err := ctx.fileLogger()
			if err != nil {
				return err
			}
			return uploadAndPrint(cmd, upload.NewFromConfig(cfg, logger), args[0], service)
		},
	}
	cmd.Flags().StringVar(&serviceFlag, "service", "", "Upload service (catbox, uguu, tempsh); defaults to upload.default_service")
	return cmd
}
