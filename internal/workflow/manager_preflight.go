package workflow

import (
	"errors"

	"github.com/google/uuid"

	"clipper/internal/ffmpeg"
	"clipper/internal/logging"
	"clipper/internal/outcome"
	"clipper/internal/services"
)

// preflight resolves the encoder binary into cmd and checks the output
// directory. A failed check yields a terminal outcome instead of a launch.
func (m *Manager) preflight(dir string, cmd *ffmpeg.CommandLine) (outcome.Outcome, bool) {
	binary, err := m.resolveEncoder(m.cfg)
	if err != nil {
		return m.preflightFailed("encoder", outcome.KindMissingTool, err), false
	}
	cmd.Binary = binary

	if err := m.ensureDir(dir); err != nil {
		kind := outcome.KindUnknown
		switch {
		case errors.Is(err, services.ErrPermission):
			kind = outcome.KindPermissionDenied
		case errors.Is(err, services.ErrValidation):
			kind = outcome.KindInvalidInput
		}
		return m.preflightFailed("output directory", kind, err), false
	}
	return outcome.Outcome{}, true
}

func (m *Manager) preflightFailed(check string, kind outcome.Kind, err error) outcome.Outcome {
	out := outcome.Failure(uuid.NewString(), kind, err.Error())
	m.logger.Error("preflight check failed",
		logging.String("check", check),
		logging.String(logging.FieldJobID, out.JobID),
		logging.String("kind", string(kind)),
		logging.Error(err),
		logging.String(logging.FieldEventType, "preflight_failed"),
		logging.String(logging.FieldErrorHint, out.Hint),
	)
	return out
}
