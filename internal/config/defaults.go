package config

const (
	defaultStagingDir       = "~/.local/share/subburn/staging"
	defaultLogDir           = "~/.local/share/subburn/logs"
	defaultAPIBind          = "127.0.0.1:8290"
	defaultMaxUploadMiB     = 512
	defaultModel            = "small"
	defaultDevice           = "cpu"
	defaultComputeType      = "int8"
	defaultVADMethod        = "silero"
	defaultFFmpegBinary     = "ffmpeg"
	defaultFFprobeBinary    = "ffprobe"
	defaultWhisperXBinary   = "whisperx"
	defaultStaleMaxAgeHours = 24
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Upload: Upload{
			MaxUploadMiB: defaultMaxUploadMiB,
		},
		Transcription: Transcription{
			Model:       defaultModel,
			Device:      defaultDevice,
			ComputeType: defaultComputeType,
			VADMethod:   defaultVADMethod,
		},
		Tools: Tools{
			FFmpeg:   defaultFFmpegBinary,
			FFprobe:  defaultFFprobeBinary,
			WhisperX: defaultWhisperXBinary,
		},
		Workspace: Workspace{
			StaleMaxAgeHours: defaultStaleMaxAgeHours,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
