package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	goytdlp "github.com/lrstanley/go-ytdlp"

	"vhxdl/internal/download"
	"vhxdl/internal/logging"
)

const (
	component               = "ytdlp"
	defaultProgressInterval = 2 * time.Second
	progressLogStep         = 10.0
	stderrTailLimit         = 2048
)

// Config selects the binary and the format/merge/subtitle behaviour.
type Config struct {
	Binary         string
	FFmpegBinary   string
	Format         string
	MergeFormat    string
	EmbedSubtitles bool
	// AutoInstall fetches a managed yt-dlp build instead of using Binary.
	AutoInstall      bool
	ProgressInterval time.Duration
}

// Runner executes a prepared command. It exists so tests can inspect the
// command line without launching yt-dlp.
type Runner interface {
	Run(ctx context.Context, cmd *goytdlp.Command, url string) error
}

// Installer provides a managed yt-dlp executable path.
type Installer func(ctx context.Context) (string, error)

// Option configures the client.
type Option func(*Client)

// WithRunner injects a custom runner (primarily for tests).
func WithRunner(r Runner) Option {
	return func(c *Client) {
		if r != nil {
			c.runner = r
		}
	}
}

// WithInstaller replaces the managed-build installer.
func WithInstaller(fn Installer) Option {
	return func(c *Client) {
		if fn != nil {
			c.install = fn
		}
	}
}

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, component)
	}
}

// Client drives yt-dlp for one download at a time per call; calls may run
// concurrently.
type Client struct {
	cfg     Config
	runner  Runner
	install Installer
	logger  *slog.Logger

	mu         sync.Mutex
	executable string
	ffmpeg     string
}

// New constructs a client from cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.Binary = strings.TrimSpace(cfg.Binary)
	if cfg.Binary == "" && !cfg.AutoInstall {
		return nil, errors.New("yt-dlp binary required")
	}
	if strings.TrimSpace(cfg.Format) == "" {
		cfg.Format = "bestvideo+bestaudio"
	}
	if strings.TrimSpace(cfg.MergeFormat) == "" {
		cfg.MergeFormat = "mkv"
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = defaultProgressInterval
	}
	c := &Client{
		cfg:     cfg,
		runner:  commandRunner{},
		install: managedInstall,
		logger:  logging.NewComponentLogger(nil, component),
	}
	if !cfg.AutoInstall {
		c.executable = cfg.Binary
	}
	c.ffmpeg = ffmpegLocation(cfg.FFmpegBinary)
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Executable returns the yt-dlp binary in use, installing the managed build
// first when configured to.
func (c *Client) Executable(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.executable != "" {
		return c.executable, nil
	}
	path, err := c.install(ctx)
	if err != nil {
		return "", fmt.Errorf("install yt-dlp: %w", err)
	}
	c.logger.Info("managed yt-dlp ready", logging.String("executable", path))
	c.executable = path
	return path, nil
}

// Command builds the yt-dlp invocation for req.
func (c *Client) Command(ctx context.Context, req download.Request) (*goytdlp.Command, error) {
	executable, err := c.Executable(ctx)
	if err != nil {
		return nil, err
	}
	cmd := goytdlp.New().
		SetExecutable(executable).
		Format(c.cfg.Format).
		MergeOutputFormat(c.cfg.MergeFormat).
		Output(req.OutputTemplate)
	if c.cfg.EmbedSubtitles {
		cmd.WriteSubs().EmbedSubs()
	}
	if c.ffmpeg != "" {
		cmd.FFmpegLocation(c.ffmpeg)
	}
	return cmd, nil
}

// Download runs yt-dlp for req and waits for it to exit.
func (c *Client) Download(ctx context.Context, req download.Request) error {
	cmd, err := c.Command(ctx, req)
	if err != nil {
		return err
	}
	logger := logging.WithContext(ctx, c.logger)
	cmd.ProgressFunc(c.cfg.ProgressInterval, progressLogger(logger, req.Label))

	started := time.Now()
	if err := c.runner.Run(ctx, cmd, req.URL); err != nil {
		return err
	}
	logger.Debug("yt-dlp finished", logging.String("label", req.Label), logging.Duration("elapsed", time.Since(started)))
	return nil
}

// progressLogger emits a debug record each time the download crosses another
// progressLogStep percent.
func progressLogger(logger *slog.Logger, label string) func(goytdlp.ProgressUpdate) {
	var (
		mu   sync.Mutex
		next = progressLogStep
		file string
	)
	return func(update goytdlp.ProgressUpdate) {
		mu.Lock()
		defer mu.Unlock()
		if update.Status == goytdlp.ProgressStatusPostProcessing || update.Status == goytdlp.ProgressStatusFinished {
			if update.Filename != file {
				file = update.Filename
				logger.Debug("yt-dlp post-processing", logging.String("label", label), logging.String("file", update.Filename))
			}
			return
		}
		if update.Filename != file {
			file = update.Filename
			next = progressLogStep
		}
		if update.TotalBytes <= 0 {
			return
		}
		percent := float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100
		if percent < next {
			return
		}
		for next <= percent {
			next += progressLogStep
		}
		logger.Debug("download progress",
			logging.String("label", label),
			logging.String("file", update.Filename),
			logging.Int("percent", int(percent)),
		)
	}
}

type commandRunner struct{}

func (commandRunner) Run(ctx context.Context, cmd *goytdlp.Command, url string) error {
	result, err := cmd.Run(ctx, url)
	if err == nil {
		return nil
	}
	if result != nil {
		if tail := tailString(result.Stderr, stderrTailLimit); tail != "" {
			return fmt.Errorf("yt-dlp exit %d: %w: %s", result.ExitCode, err, tail)
		}
	}
	return fmt.Errorf("yt-dlp: %w", err)
}

func managedInstall(ctx context.Context) (string, error) {
	resolved, err := goytdlp.Install(ctx, nil)
	if err != nil {
		return "", err
	}
	return resolved.Executable, nil
}

// ffmpegLocation resolves the configured ffmpeg to a path yt-dlp accepts.
// A bare name is looked up on PATH; an unresolvable name leaves yt-dlp to its
// own discovery.
func ffmpegLocation(binary string) string {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return ""
	}
	if strings.ContainsRune(binary, '/') {
		return binary
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return ""
	}
	return path
}

func tailString(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	return "..." + value[len(value)-limit:]
}
