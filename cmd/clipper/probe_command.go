package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clipper/internal/api"
	"clipper/internal/media/source"
	"clipper/internal/textutil"
	"clipper/internal/timerange"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "probe FILE",
		Short: "Show duration, geometry and tracks of a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.fileLogger()
			if err != nil {
				return err
			}
			mgr, closer, err := ctx.newManager(logger)
			if err != nil {
				return err
			}
			defer closer.Close()

			src, err := mgr.Select(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("probe %s: %w", args[0], err)
			}
			if jsonOutput {
				return writeJSON(cmd, api.FromSource(src))
			}
			fmt.Fprint(cmd.OutOrStdout(), renderSource(src))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the inventory as JSON")
	return cmd
}

func renderSource(src *source.MediaSource) string {
	var b strings.Builder
	geometry := "unknown"
	if src.HasGeometry() {
		geometry = fmt.Sprintf("%dx%d", src.Width, src.Height)
	}
	b.WriteString(renderKeyValues([][2]string{
		{"File", src.Path},
		{"Duration", timerange.Format(src.Duration())},
		{"Video", fmt.Sprintf("%s %s @ %s fps", src.VideoCodec, geometry, strconv.FormatFloat(src.FrameRate, 'f', -1, 64))},
		{"Size", formatBytes(src.SizeBytes)},
	}))
	b.WriteString("\n")

	if len(src.Audio) == 0 && len(src.Subtitles) == 0 {
		b.WriteString("No audio or subtitle tracks\n")
		return b.String()
	}
	rows := make([][]string, 0, len(src.Audio)+len(src.Subtitles))
	for _, t := range src.Audio {
		rows = append(rows, trackRow("audio", t))
	}
	for _, t := range src.Subtitles {
		rows = append(rows, trackRow("subtitle", t))
	}
	b.WriteString(renderTable(
		[]string{"Kind", "#", "Stream", "Codec", "Language", "Title", "Notes"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight},
	))
	b.WriteString("\n")
	return b.String()
}

func trackRow(kind string, t source.Track) []string {
	var notes []string
	if t.Channels > 0 {
		notes = append(notes, fmt.Sprintf("%d ch", t.Channels))
	}
	if t.ImageBased() {
		notes = append(notes, "image-based")
	}
	return []string{
		kind,
		strconv.Itoa(t.Ordinal),
		strconv.Itoa(t.StreamIndex),
		t.Codec,
		textutil.LanguageName(t.Language),
		t.Title,
		strings.Join(notes, ", "),
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
