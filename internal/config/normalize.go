package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted when the config file leaves a credential empty.
const (
	EnvClientID     = "VHX_CLIENT_ID"
	EnvClientSecret = "VHX_CLIENT_SECRET"
	EnvUsername     = "VHX_USERNAME"
	EnvPassword     = "VHX_PASSWORD"
	EnvSiteID       = "VHX_SITE_ID"
)

func (c *Config) normalize() error {
	c.normalizeAuth()
	c.normalizeAPI()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSelectors()
	c.normalizeDownloader()
	c.normalizeWatch()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func envFallback(current *string, key string) {
	if strings.TrimSpace(*current) != "" {
		*current = strings.TrimSpace(*current)
		return
	}
	if value, ok := os.LookupEnv(key); ok {
		*current = strings.TrimSpace(value)
	}
}

func (c *Config) normalizeAuth() {
	envFallback(&c.Auth.ClientID, EnvClientID)
	envFallback(&c.Auth.ClientSecret, EnvClientSecret)
	envFallback(&c.Auth.Username, EnvUsername)
	// Passwords may legitimately carry surrounding spaces.
	if c.Auth.Password == "" {
		if value, ok := os.LookupEnv(EnvPassword); ok {
			c.Auth.Password = value
		}
	}
}

func (c *Config) normalizeAPI() {
	envFallback(&c.API.SiteID, EnvSiteID)
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaultBaseURL
	}
	c.API.TokenURL = strings.TrimSpace(c.API.TokenURL)
	if c.API.TokenURL == "" {
		c.API.TokenURL = defaultTokenURL
	}
	if c.API.RequestTimeout <= 0 {
		c.API.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DestDir, err = expandPath(c.Paths.DestDir); err != nil {
		return fmt.Errorf("paths.dest_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

// normalizeSelectors trims entries and drops blanks while preserving order.
func (c *Config) normalizeSelectors() {
	c.Selectors.SeriesIDs = cleanList(c.Selectors.SeriesIDs)
	c.Selectors.SeriesSlugs = cleanList(c.Selectors.SeriesSlugs)
	c.Selectors.VideoIDs = cleanList(c.Selectors.VideoIDs)
	c.Selectors.VideoSlugs = cleanList(c.Selectors.VideoSlugs)
}

func cleanList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (c *Config) normalizeDownloader() {
	d := &c.Downloader
	d.Binary = strings.TrimSpace(d.Binary)
	if d.Binary == "" {
		d.Binary = defaultYtDlpBinary
	}
	d.FFmpegBinary = strings.TrimSpace(d.FFmpegBinary)
	if d.FFmpegBinary == "" {
		d.FFmpegBinary = defaultFFmpegBinary
	}
	d.Format = strings.TrimSpace(d.Format)
	if d.Format == "" {
		d.Format = defaultFormat
	}
	d.MergeFormat = strings.ToLower(strings.TrimSpace(d.MergeFormat))
	if d.MergeFormat == "" {
		d.MergeFormat = defaultMergeFormat
	}
	d.StreamMethod = strings.ToLower(strings.TrimSpace(d.StreamMethod))
	if d.StreamMethod == "" {
		d.StreamMethod = defaultStreamMethod
	}
	d.MissingStream = strings.ToLower(strings.TrimSpace(d.MissingStream))
	if d.MissingStream == "" {
		d.MissingStream = MissingStreamFail
	}
	if d.Workers == 0 {
		d.Workers = defaultWorkers
	}
}

func (c *Config) normalizeWatch() {
	c.Watch.At = strings.TrimSpace(c.Watch.At)
	if c.Watch.At == "" {
		c.Watch.At = defaultWatchAt
	}
	c.Watch.Timezone = strings.TrimSpace(c.Watch.Timezone)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
