package params

import "sync"

// State holds the last successfully resolved parameters. A failed update
// leaves the previous values in place.
type State struct {
	mu      sync.Mutex
	current EncodingParameters
}

// NewState seeds the state with initial parameters.
func NewState(initial EncodingParameters) *State {
	return &State{current: initial}
}

// Current returns the last-known-good parameters.
func (s *State) Current() EncodingParameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Apply resolves raw on top of the current parameters and stores the result
// when it validates.
func (s *State) Apply(raw RawOptions) (EncodingParameters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := Resolve(raw.Merge(s.current.Raw()))
	if err != nil {
		return s.current, err
	}
	s.current = next
	return next, nil
}

// Remember records p as the last-known-good value without resolving it.
func (s *State) Remember(p EncodingParameters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = p
}

// Set changes one field by name, using the option names reported in
// ValidationError.Field.
func (s *State) Set(field, value string) (EncodingParameters, error) {
	var raw RawOptions
	switch field {
	case FieldCodec:
		raw.Codec = value
	case FieldCRF:
		raw.CRF = value
	case FieldFPS:
		raw.FPS = value
	case FieldAudioBitrate:
		raw.AudioBitrate = value
	case FieldContainer:
		raw.Container = value
	case FieldResolution:
		raw.Resolution = value
	case FieldSpeed:
		raw.Speed = value
	case FieldPreset:
		raw.Preset = value
	case FieldAudioTrack:
		raw.AudioTrack = value
	case FieldSubtitleTrack:
		raw.SubtitleTrack = value
	default:
		return s.Current(), invalid(field, "unknown option")
	}
	if value == "" {
		return s.Current(), invalid(field, "value required")
	}
	return s.Apply(raw)
}
