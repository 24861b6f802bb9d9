package api

import (
	"time"

	"clipper/internal/media/source"
	"clipper/internal/outcome"
	"clipper/internal/params"
	"clipper/internal/supervisor"
	"clipper/internal/timerange"
	"clipper/internal/workflow"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func fromWarnings(warnings []supervisor.Warning) []Warning {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]Warning, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, Warning{Code: w.Code, Line: w.Line, Hint: w.Hint})
	}
	return out
}

// FromJob converts a supervisor snapshot to its API representation.
func FromJob(job supervisor.Job) Job {
	return Job{
		ID:              job.ID,
		Source:          job.Source,
		State:           string(job.State),
		Progress:        job.Progress,
		ElapsedSeconds:  job.Elapsed.Seconds(),
		ExpectedSeconds: job.Expected.Seconds(),
		ETASeconds:      job.ETA.Seconds(),
		Speed:           job.Speed,
		OutputPath:      job.OutputPath,
		Command:         job.Command,
		LastErrorLine:   job.LastErrorLine,
		Warnings:        fromWarnings(job.Warnings),
		CancelPending:   job.CancelPending,
		CreatedAt:       formatTime(job.CreatedAt),
		StartedAt:       formatTime(job.StartedAt),
		FinishedAt:      formatTime(job.FinishedAt),
	}
}

// FromEvent converts one supervisor event.
func FromEvent(ev supervisor.Event) Event {
	dto := Event{
		Seq:            ev.Seq,
		JobID:          ev.JobID,
		Type:           string(ev.Type),
		Time:           formatTime(ev.Time),
		State:          string(ev.State),
		Progress:       ev.Progress,
		ElapsedSeconds: ev.Elapsed.Seconds(),
		ETASeconds:     ev.ETA.Seconds(),
		Speed:          ev.Speed,
	}
	if ev.Warning != nil {
		dto.Warning = &Warning{Code: ev.Warning.Code, Line: ev.Warning.Line, Hint: ev.Warning.Hint}
	}
	if ts := ev.Terminal; ts != nil {
		dto.Terminal = &Terminal{
			State:         string(ts.State),
			ExitCode:      ts.ExitCode,
			OutputPath:    ts.OutputPath,
			LastErrorLine: ts.LastErrorLine,
			TimedOut:      ts.TimedOut,
		}
	}
	return dto
}

// FromEvents converts a slice of events.
func FromEvents(events []supervisor.Event) []Event {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		out = append(out, FromEvent(ev))
	}
	return out
}

// FromOutcome converts a classified outcome.
func FromOutcome(out outcome.Outcome) Outcome {
	return Outcome{
		JobID:    out.JobID,
		Status:   string(out.Status),
		Path:     out.Path,
		Kind:     string(out.Kind),
		Detail:   out.Detail,
		Lines:    out.Lines,
		Hint:     out.Hint,
		Warnings: fromWarnings(out.Warnings),
		Summary:  out.Summary(),
	}
}

func fromTracks(tracks []source.Track) []Track {
	out := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, Track{
			Ordinal:     t.Ordinal,
			StreamIndex: t.StreamIndex,
			Codec:       t.Codec,
			Language:    t.Language,
			Title:       t.Title,
			Channels:    t.Channels,
			ImageBased:  t.ImageBased(),
			Label:       t.Label(),
		})
	}
	return out
}

// FromSource converts a media source.
func FromSource(src *source.MediaSource) Source {
	if src == nil {
		return Source{}
	}
	return Source{
		Path:            src.Path,
		DurationSeconds: src.DurationSeconds,
		Duration:        timerange.Format(src.Duration()),
		Width:           src.Width,
		Height:          src.Height,
		FrameRate:       src.FrameRate,
		VideoCodec:      src.VideoCodec,
		SizeBytes:       src.SizeBytes,
		Audio:           fromTracks(src.Audio),
		Subtitles:       fromTracks(src.Subtitles),
	}
}

// FromTrim converts a trim range.
func FromTrim(trim timerange.TrimRange) TrimRange {
	return TrimRange{
		Enabled:      trim.Enabled,
		StartSeconds: trim.Start.Seconds(),
		EndSeconds:   trim.End.Seconds(),
		Adjusted:     trim.Adjusted,
		Display:      trim.String(),
	}
}

// FromRawOptions converts resolver input back to wire options.
func FromRawOptions(raw params.RawOptions) ClipOptions {
	return ClipOptions{
		Codec:         raw.Codec,
		CRF:           raw.CRF,
		FPS:           raw.FPS,
		AudioBitrate:  raw.AudioBitrate,
		RemoveAudio:   raw.RemoveAudio,
		Container:     raw.Container,
		Resolution:    raw.Resolution,
		Speed:         raw.Speed,
		Preset:        raw.Preset,
		AudioTrack:    raw.AudioTrack,
		SubtitleTrack: raw.SubtitleTrack,
	}
}

// FromStatusSummary converts workflow diagnostics.
func FromStatusSummary(summary workflow.StatusSummary) StatusResponse {
	resp := StatusResponse{Busy: summary.Busy, Params: FromRawOptions(summary.Params)}
	if summary.Job != nil {
		job := FromJob(*summary.Job)
		resp.Job = &job
	}
	if summary.Source != nil {
		src := FromSource(summary.Source)
		resp.Source = &src
	}
	if summary.LastOutcome != nil {
		out := FromOutcome(*summary.LastOutcome)
		resp.LastOutcome = &out
	}
	return resp
}

// FromHealth converts readiness checks.
func FromHealth(checks []workflow.ComponentHealth) HealthResponse {
	resp := HealthResponse{Status: "ok", Checks: make([]HealthCheck, 0, len(checks))}
	for _, c := range checks {
		resp.Checks = append(resp.Checks, HealthCheck{Name: c.Name, Ready: c.Ready, Detail: c.Detail})
	}
	if !workflow.Healthy(checks) {
		resp.Status = "degraded"
	}
	return resp
}
