package config

// Storage backends.
const (
	BackendLocal   = "local"
	BackendGateway = "gateway"
)

// Output formats for rendered transcripts.
const (
	FormatText     = "txt"
	FormatMarkdown = "markdown"
)

const (
	defaultDataDir              = "~/.local/share/scribe"
	defaultWorkDir              = "~/.local/share/scribe/work"
	defaultLogDir               = "~/.local/share/scribe/logs"
	defaultResultsDir           = "~/.local/share/scribe/results"
	defaultAPIBind              = "127.0.0.1:8924"
	defaultYtdlpBin             = "yt-dlp"
	defaultFFmpegBin            = "ffmpeg"
	defaultWhisperBin           = "whisper-ctranslate2"
	defaultModel                = "tiny"
	defaultDevice               = "cpu"
	defaultComputeType          = "int8"
	defaultDownloadTimeout      = 600
	defaultNtfyRequestTimeout   = 10
	defaultAuthTolerance        = 300
	defaultMinFreeSpaceGiB      = 2
	defaultTerminalWriteRetries = 1
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			WorkDir:    defaultWorkDir,
			LogDir:     defaultLogDir,
			ResultsDir: defaultResultsDir,
			APIBind:    defaultAPIBind,
		},
		Download: Download{
			YtdlpBin:       defaultYtdlpBin,
			FFmpegBin:      defaultFFmpegBin,
			TimeoutSeconds: defaultDownloadTimeout,
		},
		Transcription: Transcription{
			WhisperBin:          defaultWhisperBin,
			Model:               defaultModel,
			Device:              defaultDevice,
			ComputeType:         defaultComputeType,
			DefaultOutputFormat: FormatText,
		},
		Storage: Storage{
			Backend: BackendLocal,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
		},
		Auth: Auth{
			ToleranceSeconds: defaultAuthTolerance,
		},
		Pipeline: Pipeline{
			MinFreeSpaceGiB:      defaultMinFreeSpaceGiB,
			TerminalWriteRetries: defaultTerminalWriteRetries,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
