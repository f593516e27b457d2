package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory, socket, and bind address configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
	SocketPath string `toml:"socket_path"`
}

// Remote contains connection settings for the maintenance API that receives
// replayed mutations.
type Remote struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Sync contains the retry schedule and status display timings.
type Sync struct {
	Interval          int  `toml:"interval"`
	MaxRetries        int  `toml:"max_retries"`
	BackoffBase       int  `toml:"backoff_base"`
	BackoffUnitMillis int  `toml:"backoff_unit_ms"`
	SubmitTimeout     int  `toml:"submit_timeout"`
	SyncedDisplayMS   int  `toml:"synced_display_ms"`
	FailedDisplayMS   int  `toml:"failed_display_ms"`
	DeadLetter        bool `toml:"dead_letter"`
}

// Connectivity contains reachability probe settings.
type Connectivity struct {
	// ProbeAddress is a host:port dialled to decide reachability. Derived from
	// remote.base_url when empty.
	ProbeAddress  string `toml:"probe_address"`
	ProbeInterval int    `toml:"probe_interval"`
	ProbeTimeout  int    `toml:"probe_timeout"`
	WatchNetlink  bool   `toml:"watch_netlink"`
}

// Notifications configures ntfy alerts for mutations dropped after
// exhausting their retries. An empty topic disables them.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Config encapsulates all configuration values for fieldsync.
//
// Configuration sections by subsystem:
//   - Paths: queue database, logs, IPC socket, and HTTP bind address
//   - Remote: maintenance API endpoint and credentials
//   - Sync: pass interval, retry budget, backoff schedule, and status timings
//   - Connectivity: reachability probe and netlink watching
//   - Notifications: ntfy alerts for dropped mutations
//   - Logging: log format, level, and rotation
type Config struct {
	Paths         Paths         `toml:"paths"`
	Remote        Remote        `toml:"remote"`
	Sync          Sync          `toml:"sync"`
	Connectivity  Connectivity  `toml:"connectivity"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/fieldsync/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("fieldsync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the location of the durable queue database.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "fieldsyncd.lock")
}

// LogPath returns the daemon log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "fieldsync.log")
}

// SyncInterval returns the periodic pass interval.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.Sync.Interval) * time.Second
}

// SubmitTimeout bounds a single remote submission.
func (c *Config) SubmitTimeout() time.Duration {
	return time.Duration(c.Sync.SubmitTimeout) * time.Second
}

// BackoffUnit is the delay multiplied by backoff_base^retries.
func (c *Config) BackoffUnit() time.Duration {
	return time.Duration(c.Sync.BackoffUnitMillis) * time.Millisecond
}

// SyncedDisplay is how long the Synced status lingers before reverting to Online.
func (c *Config) SyncedDisplay() time.Duration {
	return time.Duration(c.Sync.SyncedDisplayMS) * time.Millisecond
}

// FailedDisplay is how long the Failed status lingers before reverting to Online.
func (c *Config) FailedDisplay() time.Duration {
	return time.Duration(c.Sync.FailedDisplayMS) * time.Millisecond
}

// ProbeInterval returns the connectivity polling interval.
func (c *Config) ProbeInterval() time.Duration {
	return time.Duration(c.Connectivity.ProbeInterval) * time.Second
}

// ProbeTimeout bounds a single reachability probe.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Connectivity.ProbeTimeout) * time.Second
}

// NotifyTimeout bounds a single ntfy request.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

// RemoteRequestTimeout bounds the HTTP client used for submissions.
func (c *Config) RemoteRequestTimeout() time.Duration {
	return time.Duration(c.Remote.RequestTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// probeAddressFromURL derives host:port from the remote base URL.
func probeAddressFromURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	host := parsed.Hostname()
	if host == "" {
		return "", fmt.Errorf("no host in %q", raw)
	}
	port := parsed.Port()
	if port == "" {
		switch parsed.Scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(host, port), nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Marshal renders the config as TOML.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
