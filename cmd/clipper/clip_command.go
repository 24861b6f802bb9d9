package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"clipper/internal/outcome"
	"clipper/internal/params"
	"clipper/internal/upload"
	"clipper/internal/workflow"
)

const managerDrainTimeout = 15 * time.Second

type clipFlags struct {
	start     string
	end       string
	outputDir string
	uploadTo  string
	options   params.RawOptions
}

func newClipCommand(ctx *commandContext) *cobra.Command {
	var flags clipFlags

	cmd := &cobra.Command{
		Use:   "clip FILE",
		Short: "Trim and re-encode FILE",
		Long: `Trim and re-encode FILE into the output directory.

Times accept MM:SS or HH:MM:SS with optional fractional seconds. Options
not given fall back to the [encoding] section of the configuration.
Press Ctrl-C to cancel; the partial output is removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClip(cmd, ctx, args[0], flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.start, "start", "", "Clip start time")
	f.StringVar(&flags.end, "end", "", "Clip end time")
	f.StringVar(&flags.options.Codec, "codec", "", "Video codec (h264, h265, vp9)")
	f.StringVar(&flags.options.CRF, "crf", "", "Constant rate factor")
	f.StringVar(&flags.options.FPS, "fps", "", "Output frame rate")
	f.StringVar(&flags.options.AudioBitrate, "audio-bitrate", "", "Audio bitrate in kbps")
	f.BoolVar(&flags.options.RemoveAudio, "no-audio", false, "Drop all audio")
	f.StringVar(&flags.options.Resolution, "resolution", "", "Output resolution (source, 1080p, 720p, WxH)")
	f.StringVar(&flags.options.Speed, "speed", "", "Playback speed multiplier")
	f.StringVar(&flags.options.Preset, "preset", "", "Encoder preset")
	f.StringVar(&flags.options.Container, "container", "", "Output container (mp4, mkv, webm)")
	f.StringVar(&flags.options.AudioTrack, "audio-track", "", "Audio track number (from probe)")
	f.StringVar(&flags.options.SubtitleTrack, "subtitle-track", "", "Subtitle track number (from probe)")
	f.StringVar(&flags.outputDir, "output-dir", "", "Write the clip here instead of paths.output_dir")
	f.StringVar(&flags.uploadTo, "upload", "", "Upload the finished clip (catbox, uguu, tempsh)")
	return cmd
}

func runClip(cmd *cobra.Command, ctx *commandContext, path string, flags clipFlags) error {
	var service upload.Service
	if flags.uploadTo != "" {
		parsed, err := upload.ParseService(flags.uploadTo)
		if err != nil {
			return err
		}
		service = parsed
	}

	logger, err := ctx.fileLogger()
	if err != nil {
		return err
	}
	mgr, closer, err := ctx.newManager(logger)
	if err != nil {
		return err
	}
	defer closer.Close()
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), managerDrainTimeout)
		defer cancel()
		_ = mgr.Shutdown(drainCtx)
	}()

	signalCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub, err := mgr.Process(signalCtx, workflow.Request{
		Source:    path,
		Start:     flags.start,
		End:       flags.end,
		OutputDir: flags.outputDir,
		Options:   flags.options,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if sub.Launched() {
		fmt.Fprintf(out, "Clipping %s (%s) -> %s\n", sub.Source.Path, sub.Trim, sub.Command.OutputPath)
		watchCancel(signalCtx, mgr, sub.JobID, cmd)
		printer := newProgressPrinter(cmd.ErrOrStderr())
		for ev := range sub.Handle().Events() {
			printer.handle(ev)
		}
	}

	result, err := mgr.Await(context.Background(), sub)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, result.Summary())
	for _, w := range result.Warnings {
		if w.Hint != "" {
			fmt.Fprintf(out, "note: %s\n", w.Hint)
		}
	}
	switch result.Status {
	case outcome.StatusCancelled:
		return context.Canceled
	case outcome.StatusFailure:
		if result.Hint != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "hint: %s\n", result.Hint)
		}
		return result.Err()
	}

	if service == "" {
		return nil
	}
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	return uploadAndPrint(cmd, upload.NewFromConfig(cfg, logger), result.Path, service)
}

// watchCancel cancels the job once the signal context ends. The job then
// reaches its terminal event and the event loop returns.
func watchCancel(signalCtx context.Context, mgr *workflow.Manager, jobID string, cmd *cobra.Command) {
	handle, ok := mgr.Lookup(jobID)
	if !ok {
		return
	}
	go func() {
		select {
		case <-signalCtx.Done():
		case <-handle.Done():
			return
		}
		if err := mgr.Cancel(jobID); err != nil {
			return
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "\nCancelling...")
	}()
}

func uploadAndPrint(cmd *cobra.Command, client *upload.Client, path string, service upload.Service) error {
	fmt.Fprintf(cmd.OutOrStdout(), "Uploading to %s...\n", service)
	signalCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := client.Upload(signalCtx, path, service)
	if err != nil {
		var upErr *upload.Error
		if errors.As(err, &upErr) && upErr.Kind == upload.KindCancelled {
			return context.Canceled
		}
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.URL)
	return nil
}
