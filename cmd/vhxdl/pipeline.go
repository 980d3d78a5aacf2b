package main

import (
	"fmt"
	"log/slog"

	"vhxdl/internal/catalog"
	"vhxdl/internal/config"
	"vhxdl/internal/download"
	"vhxdl/internal/history"
	"vhxdl/internal/logging"
	"vhxdl/internal/notifications"
	"vhxdl/internal/services/vhx"
	"vhxdl/internal/services/ytdlp"
	"vhxdl/internal/workflow"
)

// apiStack is the authenticated API access shared by run, plan and check.
type apiStack struct {
	authority *vhx.TokenAuthority
	client    *vhx.Client
	resolver  *catalog.Resolver
}

func credentials(cfg *config.Config) vhx.Credentials {
	return vhx.Credentials{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		Username:     cfg.Auth.Username,
		Password:     cfg.Auth.Password,
	}
}

func newAuthority(cfg *config.Config, logger *slog.Logger) *vhx.TokenAuthority {
	opts := []vhx.AuthorityOption{
		vhx.WithTokenURL(cfg.API.TokenURL),
		vhx.WithLogger(logger),
	}
	if cfg.Auth.PersistToken {
		opts = append(opts, vhx.WithTokenStore(vhx.NewFileTokenStore(cfg.TokenPath())))
	}
	return vhx.NewTokenAuthority(credentials(cfg), opts...)
}

func newAPIStack(cfg *config.Config, logger *slog.Logger) (*apiStack, error) {
	authority := newAuthority(cfg, logger)
	client, err := vhx.NewClient(vhx.ClientConfig{
		BaseURL:           cfg.API.BaseURL,
		SiteID:            cfg.API.SiteID,
		Authority:         authority,
		Timeout:           cfg.RequestTimeout(),
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}
	return &apiStack{
		authority: authority,
		client:    client,
		resolver:  catalog.NewResolver(client, cfg.Paths.DestDir, logger),
	}, nil
}

func selectors(cfg *config.Config) catalog.Selectors {
	return catalog.Selectors{
		SeriesIDs:   cfg.Selectors.SeriesIDs,
		SeriesSlugs: cfg.Selectors.SeriesSlugs,
		VideoIDs:    cfg.Selectors.VideoIDs,
		VideoSlugs:  cfg.Selectors.VideoSlugs,
	}
}

// pipeline is everything a download run needs. Close releases the history
// store.
type pipeline struct {
	api     *apiStack
	history *history.Store
	runner  *workflow.Runner
}

func newPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	api, err := newAPIStack(cfg, logger)
	if err != nil {
		return nil, err
	}

	agent, err := ytdlp.New(ytdlp.Config{
		Binary:         cfg.Downloader.Binary,
		FFmpegBinary:   cfg.Downloader.FFmpegBinary,
		Format:         cfg.Downloader.Format,
		MergeFormat:    cfg.Downloader.MergeFormat,
		EmbedSubtitles: cfg.Downloader.EmbedSubtitles,
		AutoInstall:    cfg.Downloader.AutoInstall,
	}, ytdlp.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("init yt-dlp: %w", err)
	}

	p := &pipeline{api: api}
	dispatchOpts := download.Options{
		Source:       api.client,
		Agent:        agent,
		LockDir:      cfg.LockDir(),
		StreamMethod: cfg.Downloader.StreamMethod,
		Timeout:      cfg.DownloadTimeout(),
		Logger:       logger,
	}
	if cfg.History.Enabled {
		store, err := history.Open(cfg.HistoryPath())
		if err != nil {
			logging.WarnWithContext(logger, "history ledger unavailable", "history_open_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on "+cfg.HistoryPath()),
				logging.String(logging.FieldImpact, "completed downloads are not recorded"),
			)
		} else {
			p.history = store
			dispatchOpts.Recorder = store
		}
	}

	dispatcher, err := download.NewDispatcher(dispatchOpts)
	if err != nil {
		p.Close()
		return nil, err
	}
	runner, err := workflow.NewRunner(workflow.Options{
		Resolver:      api.resolver,
		Dispatcher:    dispatcher,
		Selectors:     selectors(cfg),
		Workers:       cfg.Downloader.Workers,
		MissingStream: cfg.Downloader.MissingStream,
		Notifier:      notifications.NewService(cfg),
		Logger:        logger,
	})
	if err != nil {
		p.Close()
		return nil, err
	}
	p.runner = runner
	return p, nil
}

func (p *pipeline) Close() {
	if p.history != nil {
		_ = p.history.Close()
	}
}
