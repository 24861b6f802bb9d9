package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipper/internal/deps"
	"clipper/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check that ffmpeg and ffprobe are available",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := preflight.CheckTools(cfg)
			rows := make([][]string, 0, len(statuses))
			missing := 0
			for _, status := range statuses {
				state := "ok"
				detail := status.Detail
				if status.Available {
					if version, err := deps.Version(cmd.Context(), status.Command); err == nil {
						detail = version
					}
				} else {
					state = "missing"
					if !status.Optional {
						missing++
					}
				}
				rows = append(rows, []string{status.Name, status.Command, state, detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Tool", "Command", "Status", "Detail"}, rows, nil))
			if missing > 0 {
				return fmt.Errorf("%d required tool(s) missing; install ffmpeg or set tools.* / paths.bin_dir", missing)
			}
			return nil
		},
	}
}
