package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Auth holds the password-grant credentials for the platform API.
type Auth struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	Username     string `toml:"username"`
	Password     string `toml:"password"`
	// PersistToken caches the bearer token in the state directory between runs.
	PersistToken bool `toml:"persist_token"`
}

// API describes the remote endpoints and request pacing.
type API struct {
	BaseURL           string  `toml:"base_url"`
	TokenURL          string  `toml:"token_url"`
	SiteID            string  `toml:"site_id"`
	RequestTimeout    int     `toml:"request_timeout"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Paths contains directory configuration.
type Paths struct {
	DestDir  string `toml:"dest_dir"`
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Selectors lists what to download. Each list is processed in order.
type Selectors struct {
	SeriesIDs   []string `toml:"series_ids"`
	SeriesSlugs []string `toml:"series_slugs"`
	VideoIDs    []string `toml:"video_ids"`
	VideoSlugs  []string `toml:"video_slugs"`
}

// Empty reports whether no selector of any kind is configured.
func (s Selectors) Empty() bool {
	return len(s.SeriesIDs) == 0 && len(s.SeriesSlugs) == 0 && len(s.VideoIDs) == 0 && len(s.VideoSlugs) == 0
}

// Downloader configures the external download agent.
type Downloader struct {
	Binary         string `toml:"binary"`
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	Format         string `toml:"format"`
	MergeFormat    string `toml:"merge_format"`
	StreamMethod   string `toml:"stream_method"`
	EmbedSubtitles bool   `toml:"embed_subtitles"`
	// AutoInstall downloads a managed yt-dlp build instead of using Binary.
	AutoInstall bool `toml:"auto_install"`
	Workers     int  `toml:"workers"`
	// MissingStream is "fail" (abort the run) or "skip" (continue with the next job).
	MissingStream string `toml:"missing_stream"`
	// Timeout bounds one download in seconds; 0 disables the bound.
	Timeout int `toml:"timeout"`
}

// Watch configures the daily repeat schedule.
type Watch struct {
	Enabled  bool   `toml:"enabled"`
	At       string `toml:"at"`
	Timezone string `toml:"timezone"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunCompleted   bool   `toml:"run_completed"`
	Downloads      bool   `toml:"downloads"`
	Errors         bool   `toml:"errors"`
}

// History configures the completed-download ledger.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for vhxdl.
type Config struct {
	Auth          Auth          `toml:"auth"`
	API           API           `toml:"api"`
	Paths         Paths         `toml:"paths"`
	Selectors     Selectors     `toml:"selectors"`
	Downloader    Downloader    `toml:"downloader"`
	Watch         Watch         `toml:"watch"`
	Notifications Notifications `toml:"notifications"`
	History       History       `toml:"history"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and environment fallbacks applied.
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
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strings.TrimSpace(strict.String()))
			}
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
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(projectConfigName)
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

// EnsureDirectories creates the state, lock and log directories. The
// destination is created on a best-effort basis so a watch daemon can start
// while external storage is still being mounted.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.LockDir(), c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.DestDir) != "" {
		_ = os.MkdirAll(c.Paths.DestDir, 0o755)
	}
	return nil
}

// LockDir is where per-destination claim locks live.
func (c *Config) LockDir() string {
	if c.Paths.StateDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.StateDir, "locks")
}

// DaemonLockPath is the single-instance lock held by watch mode.
func (c *Config) DaemonLockPath() string {
	return filepath.Join(c.Paths.StateDir, "vhxdl.lock")
}

// HistoryPath is the SQLite ledger location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// TokenPath is the persisted bearer token location.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Paths.StateDir, "token.json")
}

// RequestTimeout returns the HTTP timeout for API calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.RequestTimeout) * time.Second
}

// DownloadTimeout returns the per-download bound, or zero for none.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Downloader.Timeout) * time.Second
}

// Location resolves the watch timezone. An empty zone means the local zone.
func (c *Config) Location() (*time.Location, error) {
	zone := strings.TrimSpace(c.Watch.Timezone)
	if zone == "" || strings.EqualFold(zone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("watch.timezone: %w", err)
	}
	return loc, nil
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
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
// The file may hold credentials, so it is created owner-readable only.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
