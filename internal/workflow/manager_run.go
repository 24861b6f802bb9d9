package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"clipper/internal/config"
	"clipper/internal/ffmpeg"
	"clipper/internal/logging"
	"clipper/internal/media/source"
	"clipper/internal/outcome"
	"clipper/internal/params"
	"clipper/internal/services"
	"clipper/internal/supervisor"
	"clipper/internal/timerange"
)

// Select probes path and makes it the current source. Probe failures are
// returned as errors; a missing ffprobe binary is marked
// services.ErrExternalTool and every other failure services.ErrValidation.
func (m *Manager) Select(ctx context.Context, path string) (*source.MediaSource, error) {
	binary, err := m.resolveProbe(m.cfg)
	if err != nil {
		return nil, err
	}
	src, err := source.Load(ctx, m.probe, binary, path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.source = src
	m.mu.Unlock()
	m.logger.Info("source selected",
		logging.String(logging.FieldEventType, "source_selected"),
		logging.String("path", src.Path),
		logging.Duration("duration", src.Duration()),
		logging.Int("audio_tracks", len(src.Audio)),
		logging.Int("subtitle_tracks", len(src.Subtitles)),
	)
	return src, nil
}

// Process validates req and starts the encoder. Invalid options, ranges or
// track selections are returned as errors and leave no job behind; a busy
// supervisor yields *supervisor.BusyError. Failures detected before launch
// are returned as a Submission carrying an early outcome.
func (m *Manager) Process(ctx context.Context, req Request) (*Submission, error) {
	if active, ok := m.sup.Active(); ok {
		return nil, &supervisor.BusyError{JobID: active.ID()}
	}

	src, early, err := m.sourceFor(ctx, req.Source)
	if err != nil || early != nil {
		return early, err
	}

	// Requests resolve over the configured defaults, not the previous job.
	p, err := params.Resolve(req.Options.Merge(m.defaults.Raw()))
	if err != nil {
		return nil, err
	}
	if err := params.ValidateTracks(p, len(src.Audio), len(src.Subtitles)); err != nil {
		return nil, err
	}
	if err := checkSubtitleBurn(src, p); err != nil {
		return nil, err
	}
	m.state.Remember(p)

	trim, err := timerange.ComputeEnabled(req.Trimming(), timerange.Text(req.Start), timerange.Text(req.End), src.Duration())
	if err != nil {
		return nil, err
	}
	if trim.Adjusted {
		m.logger.Info("trim range auto-corrected",
			logging.String(logging.FieldEventType, "trim_adjusted"),
			logging.String("start_input", req.Start),
			logging.String("end_input", req.End),
			logging.String("range", trim.String()),
		)
	}

	dir, err := m.outputDir(req.OutputDir)
	if err != nil {
		return nil, err
	}
	outputPath, err := m.reserver.Reserve(dir, ffmpeg.OutputName(src.Path, trim, p))
	if err != nil {
		return nil, err
	}
	cmd, err := ffmpeg.Build(src, trim, p, ffmpeg.Options{
		Binary:     m.encoderName(),
		OutputPath: outputPath,
		Progress:   true,
	})
	if err != nil {
		m.reserver.Release(outputPath)
		return nil, err
	}

	out, ok := m.preflight(dir, &cmd)
	sub := &Submission{Source: src, Trim: trim, Params: p, Command: cmd}
	if !ok {
		m.reserver.Release(outputPath)
		sub.JobID = out.JobID
		sub.early = &out
		m.record(out)
		return sub, nil
	}

	handle, err := m.sup.Submit(ctx, supervisor.Request{
		Argv:       cmd.Argv(),
		OutputPath: cmd.OutputPath,
		Expected:   cmd.Expected,
		Source:     src.Path,
	})
	if err != nil {
		m.reserver.Release(outputPath)
		return nil, err
	}
	sub.JobID = handle.ID()
	sub.handle = handle

	logger := logging.WithContext(services.WithJobID(ctx, handle.ID()), m.logger)
	logger.Info("clip submitted",
		logging.String(logging.FieldEventType, "clip_submitted"),
		logging.String("command", cmd.String()),
		logging.String("range", trim.String()),
		logging.String("output", cmd.OutputPath),
	)

	m.wg.Add(1)
	go m.track(sub)
	return sub, nil
}

// sourceFor loads the requested source or reuses the current one. Probe
// failures become early outcomes because they block submission the same way
// an encoder failure would.
func (m *Manager) sourceFor(ctx context.Context, path string) (*source.MediaSource, *Submission, error) {
	if strings.TrimSpace(path) == "" {
		if src, ok := m.Source(); ok {
			return src, nil, nil
		}
		return nil, nil, services.Wrap(services.ErrValidation, "workflow", "select source", "no source selected", nil)
	}
	src, err := m.Select(ctx, path)
	if err == nil {
		return src, nil, nil
	}
	if errors.Is(err, context.Canceled) {
		return nil, nil, err
	}
	kind := outcome.KindInvalidInput
	if errors.Is(err, services.ErrExternalTool) {
		kind = outcome.KindMissingTool
	}
	out := outcome.Failure(uuid.NewString(), kind, err.Error())
	m.record(out)
	logging.WarnWithContext(m.logger, "source rejected", "source_rejected",
		logging.String("path", path),
		logging.String("kind", string(kind)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, out.Hint),
		logging.String(logging.FieldImpact, "no job was started"),
	)
	return nil, &Submission{JobID: out.JobID, early: &out}, nil
}

func checkSubtitleBurn(src *source.MediaSource, p params.EncodingParameters) error {
	if p.SubtitleTrack == nil || !p.Container.BurnsSubtitles() {
		return nil
	}
	track, ok := src.SubtitleTrack(*p.SubtitleTrack)
	if ok && track.ImageBased() {
		return &params.ValidationError{
			Field:  params.FieldSubtitleTrack,
			Reason: fmt.Sprintf("%s subtitles are image based and cannot be burned into %s; choose mkv", track.Codec, p.Container),
		}
	}
	return nil
}

func (m *Manager) outputDir(override string) (string, error) {
	dir := strings.TrimSpace(override)
	if dir == "" && m.cfg != nil {
		dir = m.cfg.Paths.OutputDir
	}
	if dir == "" {
		return "", services.Wrap(services.ErrConfiguration, "workflow", "output dir", "paths.output_dir is not set", nil)
	}
	expanded, err := config.ExpandPath(dir)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "workflow", "output dir", dir, err)
	}
	return expanded, nil
}

func (m *Manager) encoderName() string {
	if m.cfg == nil {
		return ffmpeg.DefaultBinary
	}
	return m.cfg.FFmpegBinary()
}

func (m *Manager) track(sub *Submission) {
	defer m.wg.Done()
	<-sub.handle.Done()
	ts, _ := sub.handle.Result()
	m.reserver.Release(sub.Command.OutputPath)

	out := m.reporter.Report(ts)
	m.record(out)

	logger := m.logger.With(logging.String(logging.FieldJobID, out.JobID))
	if path, err := m.jobLog.Write(ts, out); err != nil {
		logging.WarnWithContext(logger, "job log unavailable", "job_log_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "encoder log not saved"),
		)
	} else if path != "" {
		logger = logger.With(logging.String("job_log", path))
	}

	switch out.Status {
	case outcome.StatusFailure:
		logging.ErrorWithContext(logger, "clip failed", "clip_failed",
			logging.String("kind", string(out.Kind)),
			logging.String("detail", out.Detail),
			logging.String(logging.FieldErrorHint, out.Hint),
		)
	default:
		logger.Info("clip finished",
			logging.String(logging.FieldEventType, "clip_finished"),
			logging.String("status", string(out.Status)),
			logging.String("output", out.Path),
			logging.Int("warnings", len(out.Warnings)),
		)
	}
}
