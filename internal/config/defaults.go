package config

const (
	defaultDataDir               = "~/.local/share/fieldsync"
	defaultLogDir                = "~/.local/share/fieldsync/logs"
	defaultAPIBind               = "127.0.0.1:7490"
	defaultSocketName            = "fieldsync.sock"
	defaultRemoteBaseURL         = "http://127.0.0.1:8080"
	defaultRemoteRequestTimeout  = 30
	defaultSyncInterval          = 30
	defaultSyncMaxRetries        = 5
	defaultSyncBackoffBase       = 2
	defaultSyncBackoffUnitMillis = 1000
	defaultSyncSubmitTimeout     = 30
	defaultSyncedDisplayMillis   = 2000
	defaultFailedDisplayMillis   = 3000
	defaultProbeInterval         = 5
	defaultProbeTimeout          = 3
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogMaxSizeMB          = 20
	defaultLogMaxBackups         = 5
	defaultLogMaxAgeDays         = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Remote: Remote{
			BaseURL:        defaultRemoteBaseURL,
			RequestTimeout: defaultRemoteRequestTimeout,
		},
		Sync: Sync{
			Interval:          defaultSyncInterval,
			MaxRetries:        defaultSyncMaxRetries,
			BackoffBase:       defaultSyncBackoffBase,
			BackoffUnitMillis: defaultSyncBackoffUnitMillis,
			SubmitTimeout:     defaultSyncSubmitTimeout,
			SyncedDisplayMS:   defaultSyncedDisplayMillis,
			FailedDisplayMS:   defaultFailedDisplayMillis,
			DeadLetter:        true,
		},
		Connectivity: Connectivity{
			ProbeInterval: defaultProbeInterval,
			ProbeTimeout:  defaultProbeTimeout,
			WatchNetlink:  true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}
