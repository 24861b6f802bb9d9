package params

import (
	"fmt"

	"clipper/internal/services"
)

// Field names reported in ValidationError.
const (
	FieldCodec         = "codec"
	FieldCRF           = "crf"
	FieldFPS           = "fps"
	FieldAudioBitrate  = "audio_bitrate"
	FieldContainer     = "container"
	FieldResolution    = "resolution"
	FieldSpeed         = "speed"
	FieldPreset        = "preset"
	FieldAudioTrack    = "audio_track"
	FieldSubtitleTrack = "subtitle_track"
)

// ValidationError reports a rejected option. It never starts a job.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets callers classify the error with errors.Is(err, services.ErrValidation).
func (e *ValidationError) Unwrap() error {
	return services.ErrValidation
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
