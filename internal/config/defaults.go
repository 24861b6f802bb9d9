package config

const (
	defaultConfigPath         = "~/.config/clipper/config.toml"
	defaultOutputDir          = "~/Videos/clips"
	defaultLogDir             = "~/.local/share/clipper/logs"
	defaultStateDir           = "~/.local/share/clipper"
	defaultProbeCachePath     = "~/.cache/clipper/probe.db"
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultCodec              = "h264"
	defaultCRF                = "20"
	defaultFPS                = "120"
	defaultAudioBitrate       = "128k"
	defaultResolution         = "1920x1080"
	defaultSpeed              = "1.0"
	defaultPreset             = "medium"
	defaultContainer          = "mp4"
	defaultCancelGraceSeconds = 3
	defaultReadTimeoutMillis  = 250
	defaultUploadService      = "catbox"
	defaultUploadTimeout      = 60
	defaultUploadMaxAttempts  = 3
	defaultUploadBackoffMs    = 1000
	defaultAPIBind            = "127.0.0.1:7488"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		Tools: Tools{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Encoding: Encoding{
			Codec:        defaultCodec,
			CRF:          defaultCRF,
			FPS:          defaultFPS,
			AudioBitrate: defaultAudioBitrate,
			Resolution:   defaultResolution,
			Speed:        defaultSpeed,
			Preset:       defaultPreset,
			Container:    defaultContainer,
		},
		Supervisor: Supervisor{
			CancelGraceSeconds: defaultCancelGraceSeconds,
			ReadTimeoutMillis:  defaultReadTimeoutMillis,
			VerifyOutput:       true,
		},
		Upload: Upload{
			DefaultService:   defaultUploadService,
			TimeoutSeconds:   defaultUploadTimeout,
			MaxAttempts:      defaultUploadMaxAttempts,
			InitialBackoffMs: defaultUploadBackoffMs,
		},
		API: API{
			Bind:           defaultAPIBind,
			AllowedOrigins: []string{"http://localhost", "http://127.0.0.1"},
		},
		ProbeCache: ProbeCache{
			Enabled: true,
			Path:    defaultProbeCachePath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
