package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vhxdl/internal/config"
)

// sourceFlags select what to download and how to authenticate. They are
// shared by run and plan.
type sourceFlags struct {
	clientID     string
	clientSecret string
	username     string
	password     string
	siteID       string
	seriesIDs    []string
	seriesSlugs  []string
	videoIDs     []string
	videoSlugs   []string
	destDir      string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.clientID, "client-id", "", "API client id (overrides auth.client_id)")
	flags.StringVar(&f.clientSecret, "client-secret", "", "API client secret (overrides auth.client_secret)")
	flags.StringVar(&f.username, "username", "", "Account username (overrides auth.username)")
	flags.StringVar(&f.password, "password", "", "Account password (overrides auth.password)")
	flags.StringVar(&f.siteID, "site-id", "", "Site id (overrides api.site_id)")
	flags.StringSliceVar(&f.seriesIDs, "series-id", nil, "Series collection id; repeatable")
	flags.StringSliceVar(&f.seriesSlugs, "series-slug", nil, "Series slug; repeatable")
	flags.StringSliceVar(&f.videoIDs, "video-id", nil, "Video id; repeatable")
	flags.StringSliceVar(&f.videoSlugs, "video-slug", nil, "Video slug; repeatable")
	flags.StringVar(&f.destDir, "dest-dir", "", "Destination directory (overrides paths.dest_dir)")
}

// apply overlays explicitly set flags onto cfg. Any selector flag replaces
// the configured selectors as a whole.
func (f *sourceFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	overrides := []struct {
		name  string
		value string
		dest  *string
	}{
		{"client-id", f.clientID, &cfg.Auth.ClientID},
		{"client-secret", f.clientSecret, &cfg.Auth.ClientSecret},
		{"username", f.username, &cfg.Auth.Username},
		{"password", f.password, &cfg.Auth.Password},
		{"site-id", f.siteID, &cfg.API.SiteID},
	}
	for _, o := range overrides {
		if flags.Changed(o.name) {
			*o.dest = o.value
		}
	}

	if flags.Changed("series-id") || flags.Changed("series-slug") || flags.Changed("video-id") || flags.Changed("video-slug") {
		cfg.Selectors = config.Selectors{
			SeriesIDs:   compact(f.seriesIDs),
			SeriesSlugs: compact(f.seriesSlugs),
			VideoIDs:    compact(f.videoIDs),
			VideoSlugs:  compact(f.videoSlugs),
		}
	}

	if flags.Changed("dest-dir") {
		expanded, err := config.ExpandPath(f.destDir)
		if err != nil {
			return fmt.Errorf("--dest-dir: %w", err)
		}
		cfg.Paths.DestDir = expanded
	}
	return nil
}

// watchFlags control the daily repeat mode and concurrency of run.
type watchFlags struct {
	watch    bool
	watchAt  string
	timezone string
	workers  int
}

func (f *watchFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.BoolVar(&f.watch, "watch", false, "Keep running and repeat daily (overrides watch.enabled)")
	flags.StringVar(&f.watchAt, "watch-at", "", "Daily trigger time HH:MM (overrides watch.at)")
	flags.StringVar(&f.timezone, "timezone", "", "IANA zone for --watch-at (overrides watch.timezone)")
	flags.IntVar(&f.workers, "workers", 0, "Concurrent downloads (overrides downloader.workers)")
}

func (f *watchFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("watch") {
		cfg.Watch.Enabled = f.watch
	}
	if flags.Changed("watch-at") {
		cfg.Watch.At = f.watchAt
	}
	if flags.Changed("timezone") {
		cfg.Watch.Timezone = f.timezone
	}
	if flags.Changed("workers") {
		cfg.Downloader.Workers = f.workers
	}
}

func compact(values []string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
