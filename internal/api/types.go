package api

import "clipper/internal/params"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Warning is a non-fatal encoder diagnostic.
type Warning struct {
	Code string `json:"code"`
	Line string `json:"line"`
	Hint string `json:"hint,omitempty"`
}

// Job describes a supervised encode in a transport-friendly format.
type Job struct {
	ID              string    `json:"id"`
	Source          string    `json:"source,omitempty"`
	State           string    `json:"state"`
	Progress        float64   `json:"progress"`
	ElapsedSeconds  float64   `json:"elapsedSeconds"`
	ExpectedSeconds float64   `json:"expectedSeconds"`
	ETASeconds      float64   `json:"etaSeconds,omitempty"`
	Speed           float64   `json:"speed,omitempty"`
	OutputPath      string    `json:"outputPath"`
	Command         []string  `json:"command"`
	LastErrorLine   string    `json:"lastErrorLine,omitempty"`
	Warnings        []Warning `json:"warnings,omitempty"`
	CancelPending   bool      `json:"cancelPending,omitempty"`
	CreatedAt       string    `json:"createdAt,omitempty"`
	StartedAt       string    `json:"startedAt,omitempty"`
	FinishedAt      string    `json:"finishedAt,omitempty"`
}

// Terminal summarises how a job ended.
type Terminal struct {
	State         string `json:"state"`
	ExitCode      int    `json:"exitCode"`
	OutputPath    string `json:"outputPath,omitempty"`
	LastErrorLine string `json:"lastErrorLine,omitempty"`
	TimedOut      bool   `json:"timedOut,omitempty"`
}

// Event is one entry of a job's event log.
type Event struct {
	Seq            int       `json:"seq"`
	JobID          string    `json:"jobId"`
	Type           string    `json:"type"`
	Time           string    `json:"time"`
	State          string    `json:"state,omitempty"`
	Progress       float64   `json:"progress,omitempty"`
	ElapsedSeconds float64   `json:"elapsedSeconds,omitempty"`
	ETASeconds     float64   `json:"etaSeconds,omitempty"`
	Speed          float64   `json:"speed,omitempty"`
	Warning        *Warning  `json:"warning,omitempty"`
	Terminal       *Terminal `json:"terminal,omitempty"`
}

// Outcome is the classified result of a job.
type Outcome struct {
	JobID    string    `json:"jobId"`
	Status   string    `json:"status"`
	Path     string    `json:"path,omitempty"`
	Kind     string    `json:"kind,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	Lines    []string  `json:"lines,omitempty"`
	Hint     string    `json:"hint,omitempty"`
	Warnings []Warning `json:"warnings,omitempty"`
	Summary  string    `json:"summary"`
}

// Track describes an audio or subtitle stream.
type Track struct {
	Ordinal     int    `json:"ordinal"`
	StreamIndex int    `json:"streamIndex"`
	Codec       string `json:"codec"`
	Language    string `json:"language,omitempty"`
	Title       string `json:"title,omitempty"`
	Channels    int    `json:"channels,omitempty"`
	ImageBased  bool   `json:"imageBased,omitempty"`
	Label       string `json:"label"`
}

// Source describes the selected media file.
type Source struct {
	Path            string  `json:"path"`
	DurationSeconds float64 `json:"durationSeconds"`
	Duration        string  `json:"duration"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	FrameRate       float64 `json:"frameRate"`
	VideoCodec      string  `json:"videoCodec"`
	SizeBytes       int64   `json:"sizeBytes"`
	Audio           []Track `json:"audio"`
	Subtitles       []Track `json:"subtitles"`
}

// ClipOptions is the wire form of the encoding options. Empty fields keep
// the server's last-known-good values.
type ClipOptions struct {
	Codec         string `json:"codec,omitempty"`
	CRF           string `json:"crf,omitempty"`
	FPS           string `json:"fps,omitempty"`
	AudioBitrate  string `json:"audioBitrate,omitempty"`
	RemoveAudio   bool   `json:"removeAudio,omitempty"`
	Container     string `json:"container,omitempty"`
	Resolution    string `json:"resolution,omitempty"`
	Speed         string `json:"speed,omitempty"`
	Preset        string `json:"preset,omitempty"`
	AudioTrack    string `json:"audioTrack,omitempty"`
	SubtitleTrack string `json:"subtitleTrack,omitempty"`
}

// Raw converts the options to resolver input.
func (o ClipOptions) Raw() params.RawOptions {
	return params.RawOptions{
		Codec:         o.Codec,
		CRF:           o.CRF,
		FPS:           o.FPS,
		AudioBitrate:  o.AudioBitrate,
		RemoveAudio:   o.RemoveAudio,
		Container:     o.Container,
		Resolution:    o.Resolution,
		Speed:         o.Speed,
		Preset:        o.Preset,
		AudioTrack:    o.AudioTrack,
		SubtitleTrack: o.SubtitleTrack,
	}
}

// TrimRange reports the corrected trim window.
type TrimRange struct {
	Enabled      bool    `json:"enabled"`
	StartSeconds float64 `json:"startSeconds"`
	EndSeconds   float64 `json:"endSeconds"`
	Adjusted     bool    `json:"adjusted,omitempty"`
	Display      string  `json:"display"`
}

// ProbeRequest selects a source file.
type ProbeRequest struct {
	Path string `json:"path"`
}

// JobRequest starts a clip.
type JobRequest struct {
	Source    string      `json:"source,omitempty"`
	Start     string      `json:"start,omitempty"`
	End       string      `json:"end,omitempty"`
	OutputDir string      `json:"outputDir,omitempty"`
	Options   ClipOptions `json:"options"`
}

// JobResponse wraps a job and, once terminal, its outcome. Job is nil for
// requests rejected before launch.
type JobResponse struct {
	JobID   string     `json:"jobId"`
	Job     *Job       `json:"job,omitempty"`
	Trim    *TrimRange `json:"trim,omitempty"`
	Outcome *Outcome   `json:"outcome,omitempty"`
}

// EventsResponse returns buffered events. Next is the cursor for the
// following request.
type EventsResponse struct {
	Events []Event `json:"events"`
	Next   int     `json:"next"`
	Done   bool    `json:"done"`
}

// CancelResponse acknowledges a cancel request.
type CancelResponse struct {
	JobID         string `json:"jobId"`
	CancelPending bool   `json:"cancelPending"`
}

// UploadRequest uploads Path, or the output of JobID when Path is empty.
type UploadRequest struct {
	Path    string `json:"path,omitempty"`
	JobID   string `json:"jobId,omitempty"`
	Service string `json:"service,omitempty"`
}

// UploadResponse carries the public link.
type UploadResponse struct {
	URL       string `json:"url"`
	Service   string `json:"service"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"sizeBytes"`
	Attempts  int    `json:"attempts"`
}

// HealthCheck mirrors one readiness check.
type HealthCheck struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse reports "ok" when every check passed, else "degraded".
type HealthResponse struct {
	Status string        `json:"status"`
	Checks []HealthCheck `json:"checks"`
}

// StatusResponse summarises the workflow.
type StatusResponse struct {
	Busy        bool        `json:"busy"`
	Job         *Job        `json:"job,omitempty"`
	Source      *Source     `json:"source,omitempty"`
	Params      ClipOptions `json:"params"`
	LastOutcome *Outcome    `json:"lastOutcome,omitempty"`
}

// ErrorResponse is returned for every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	// Field names the rejected option for validation errors.
	Field string `json:"field,omitempty"`
	// Kind carries a typed failure category, e.g. an upload error kind.
	Kind  string `json:"kind,omitempty"`
	JobID string `json:"jobId,omitempty"`
}
