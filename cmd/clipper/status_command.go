package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"clipper/internal/api"
	"clipper/internal/services"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var apiFlag string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the daemon's current job and last outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient(apiFlag)
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return daemonError(err)
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}
			renderStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
	cmd.Flags().StringVar(&apiFlag, "api", "", "Daemon address (defaults to api.bind)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the status as JSON")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	var apiFlag string

	cmd := &cobra.Command{
		Use:   "cancel [JOB_ID]",
		Short: "Cancel the daemon's running job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient(apiFlag)
			if err != nil {
				return err
			}
			id := ""
			if len(args) == 1 {
				id = strings.TrimSpace(args[0])
			}
			if id == "" {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return daemonError(err)
				}
				if !status.Busy || status.Job == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No job is running")
					return nil
				}
				id = status.Job.ID
			}
			if _, err := client.Cancel(cmd.Context(), id); err != nil {
				return daemonError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancel requested for job %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&apiFlag, "api", "", "Daemon address (defaults to api.bind)")
	return cmd
}

func daemonError(err error) error {
	switch {
	case errors.Is(err, api.ErrUnavailable):
		return fmt.Errorf("%w; start it with `clipper serve`", err)
	case errors.Is(err, services.ErrPermission):
		return fmt.Errorf("%w; set api.token or CLIPPER_API_TOKEN to match the daemon", err)
	default:
		return err
	}
}

func renderStatus(w io.Writer, status *api.StatusResponse) {
	state := "idle"
	if status.Busy {
		state = "busy"
	}
	rows := [][2]string{{"Daemon", state}}
	if status.Source != nil {
		rows = append(rows, [2]string{"Source", status.Source.Path})
	}
	p := status.Params
	rows = append(rows, [2]string{"Encoding", fmt.Sprintf("%s crf %s, %s, %s fps, %s", p.Codec, p.CRF, p.Container, p.FPS, p.Resolution)})
	if job := status.Job; job != nil {
		rows = append(rows,
			[2]string{"Job", job.ID},
			[2]string{"State", job.State},
			[2]string{"Progress", fmt.Sprintf("%.1f%%", job.Progress*100)},
			[2]string{"Output", job.OutputPath},
		)
		if job.LastErrorLine != "" {
			rows = append(rows, [2]string{"Last error", job.LastErrorLine})
		}
	}
	if out := status.LastOutcome; out != nil {
		rows = append(rows, [2]string{"Last outcome", out.Summary})
	}
	fmt.Fprintln(w, renderKeyValues(rows))
}
