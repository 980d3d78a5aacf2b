package config

const (
	defaultConfigPath        = "~/.config/vhxdl/config.toml"
	projectConfigName        = "vhxdl.toml"
	defaultBaseURL           = "https://api.vhx.com/v2"
	defaultTokenURL          = "https://auth.vhx.com/v1/oauth/token"
	defaultRequestTimeout    = 30
	defaultRequestsPerSecond = 5
	defaultDestDir           = "~/Videos/vhx"
	defaultStateDir          = "~/.local/share/vhxdl"
	defaultLogDir            = "~/.local/share/vhxdl/logs"
	defaultLogRetentionDays  = 30
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultYtDlpBinary       = "yt-dlp"
	defaultFFmpegBinary      = "ffmpeg"
	defaultFormat            = "bestvideo+bestaudio"
	defaultMergeFormat       = "mkv"
	defaultStreamMethod      = "dash"
	defaultWorkers           = 1
	defaultWatchAt           = "00:00"
	defaultNotifyTimeout     = 10

	MissingStreamFail = "fail"
	MissingStreamSkip = "skip"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		API: API{
			BaseURL:           defaultBaseURL,
			TokenURL:          defaultTokenURL,
			RequestTimeout:    defaultRequestTimeout,
			RequestsPerSecond: defaultRequestsPerSecond,
		},
		Paths: Paths{
			DestDir:  defaultDestDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Downloader: Downloader{
			Binary:         defaultYtDlpBinary,
			FFmpegBinary:   defaultFFmpegBinary,
			Format:         defaultFormat,
			MergeFormat:    defaultMergeFormat,
			StreamMethod:   defaultStreamMethod,
			EmbedSubtitles: true,
			Workers:        defaultWorkers,
			MissingStream:  MissingStreamFail,
		},
		Watch: Watch{
			At: defaultWatchAt,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			RunCompleted:   true,
			Downloads:      false,
			Errors:         true,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
