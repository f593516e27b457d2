package testsupport

import (
	"path/filepath"
	"testing"

	"fieldsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.SocketPath = filepath.Join(base, "fieldsync.sock")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Remote.BaseURL = "http://127.0.0.1:1"
	cfgVal.Connectivity.ProbeAddress = "127.0.0.1:1"
	cfgVal.Connectivity.WatchNetlink = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRemote points the config at a test server.
func WithRemote(baseURL, token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Remote.BaseURL = baseURL
		b.cfg.Remote.Token = token
	}
}

// WithFastBackoff shrinks the backoff unit and display timings so tests can
// observe retries and status reverts quickly.
func WithFastBackoff(unitMillis int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.BackoffUnitMillis = unitMillis
		b.cfg.Sync.SyncedDisplayMS = unitMillis
		b.cfg.Sync.FailedDisplayMS = unitMillis
	}
}

// WithoutAPI disables the HTTP API listener.
func WithoutAPI() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIBind = ""
	}
}

// WithNtfyTopic enables notifications against a test ntfy endpoint.
func WithNtfyTopic(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = url
		b.cfg.Notifications.RequestTimeout = 5
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
