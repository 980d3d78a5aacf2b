package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate ensures the configuration is structurally usable. Credentials and
// selectors may still be supplied by command-line flags, so they are checked
// separately by ValidateRun.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateDownloader(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// ValidateRun checks everything a pipeline run needs in addition to Validate.
func (c *Config) ValidateRun() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	if strings.TrimSpace(c.API.SiteID) == "" {
		return fmt.Errorf("api.site_id is required (set %s or pass --site-id)", EnvSiteID)
	}
	if strings.TrimSpace(c.Paths.DestDir) == "" {
		return errors.New("paths.dest_dir must be set")
	}
	if c.Selectors.Empty() {
		return errors.New("no selectors: set at least one of selectors.series_ids, series_slugs, video_ids or video_slugs")
	}
	return nil
}

func (c *Config) validateAuth() error {
	missing := make([]string, 0, 4)
	if c.Auth.ClientID == "" {
		missing = append(missing, "auth.client_id ("+EnvClientID+")")
	}
	if c.Auth.ClientSecret == "" {
		missing = append(missing, "auth.client_secret ("+EnvClientSecret+")")
	}
	if c.Auth.Username == "" {
		missing = append(missing, "auth.username ("+EnvUsername+")")
	}
	if c.Auth.Password == "" {
		missing = append(missing, "auth.password ("+EnvPassword+")")
	}
	if len(missing) == 0 {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("missing credentials: %s. Set the env vars, pass flags, or edit %s (create with 'vhxdl config init')",
		strings.Join(missing, ", "), defaultPath)
}

func (c *Config) validateAPI() error {
	for key, raw := range map[string]string{"api.base_url": c.API.BaseURL, "api.token_url": c.API.TokenURL} {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
		}
	}
	if c.API.RequestsPerSecond < 0 {
		return errors.New("api.requests_per_second must be >= 0")
	}
	return nil
}

func (c *Config) validateDownloader() error {
	if c.Downloader.Workers < 1 {
		return errors.New("downloader.workers must be >= 1")
	}
	switch c.Downloader.MissingStream {
	case MissingStreamFail, MissingStreamSkip:
	default:
		return fmt.Errorf("downloader.missing_stream must be %q or %q, got %q", MissingStreamFail, MissingStreamSkip, c.Downloader.MissingStream)
	}
	if c.Downloader.Timeout < 0 {
		return errors.New("downloader.timeout must be >= 0")
	}
	return nil
}

func (c *Config) validateWatch() error {
	if _, err := time.Parse("15:04", c.Watch.At); err != nil {
		return fmt.Errorf("watch.at must be HH:MM, got %q", c.Watch.At)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	parsed, err := url.Parse(topic)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be a full topic URL such as https://ntfy.sh/vhxdl, got %q", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
