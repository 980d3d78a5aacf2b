package download

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"vhxdl/internal/catalog"
	"vhxdl/internal/history"
	"vhxdl/internal/logging"
	"vhxdl/internal/services"
	"vhxdl/internal/services/vhx"
)

const (
	component = "download"
	// StagingPrefix names the per-attempt directory created next to the
	// destination while the agent runs.
	StagingPrefix = ".vhxdl-partial-"
)

// Outcome describes how a job ended.
type Outcome string

const (
	OutcomeDownloaded Outcome = "downloaded"
	OutcomeSkipped    Outcome = "skipped"
)

// Source fetches delivery manifests.
type Source interface {
	Delivery(ctx context.Context, videoID string) (vhx.DeliveryManifest, error)
}

// Request is one invocation of the download agent.
type Request struct {
	URL string
	// OutputTemplate is an agent output template whose extension placeholder
	// is %(ext)s. Literal percent signs in it are doubled.
	OutputTemplate string
	Label          string
}

// Agent fetches and muxes an adaptive stream.
type Agent interface {
	Download(ctx context.Context, req Request) error
}

// Recorder receives completed downloads.
type Recorder interface {
	Record(ctx context.Context, entry history.Entry) error
}

// Result reports what Dispatch did with a job.
type Result struct {
	Job      catalog.Job
	Outcome  Outcome
	Bytes    int64
	Duration time.Duration
}

// Options configures a Dispatcher.
type Options struct {
	Source Source
	Agent  Agent
	// LockDir holds the per-destination claim locks.
	LockDir      string
	StreamMethod string
	Recorder     Recorder
	// Timeout bounds one agent invocation; zero means no bound.
	Timeout        time.Duration
	LockRetryDelay time.Duration
	Logger         *slog.Logger
	Clock          func() time.Time
}

// Dispatcher executes download jobs.
type Dispatcher struct {
	source    Source
	agent     Agent
	lockDir   string
	method    string
	recorder  Recorder
	timeout   time.Duration
	lockRetry time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewDispatcher validates opts and constructs a Dispatcher.
func NewDispatcher(opts Options) (*Dispatcher, error) {
	if opts.Source == nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "init", "delivery source is required", nil)
	}
	if opts.Agent == nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "init", "download agent is required", nil)
	}
	if strings.TrimSpace(opts.LockDir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "init", "lock directory is required", nil)
	}
	d := &Dispatcher{
		source:    opts.Source,
		agent:     opts.Agent,
		lockDir:   opts.LockDir,
		method:    strings.TrimSpace(opts.StreamMethod),
		recorder:  opts.Recorder,
		timeout:   opts.Timeout,
		lockRetry: opts.LockRetryDelay,
		logger:    logging.NewComponentLogger(opts.Logger, component),
		now:       opts.Clock,
	}
	if d.method == "" {
		d.method = DefaultStreamMethod
	}
	if d.lockRetry <= 0 {
		d.lockRetry = defaultLockRetryDelay
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d, nil
}

// Dispatch downloads job unless its destination already exists.
func (d *Dispatcher) Dispatch(ctx context.Context, job catalog.Job) (Result, error) {
	ctx = services.WithVideoID(ctx, job.VideoID)
	logger := logging.WithContext(ctx, d.logger)
	result := Result{Job: job, Outcome: OutcomeSkipped}

	if exists(job.Path) {
		logger.Debug("destination exists, skipping", logging.String("path", job.Path))
		return result, nil
	}

	release, err := claim(ctx, d.lockDir, job.Path, d.lockRetry)
	if err != nil {
		return result, err
	}
	defer func() {
		if err := release(); err != nil {
			logger.Debug("release claim lock failed", logging.Error(err))
		}
	}()
	if exists(job.Path) {
		logger.Debug("destination completed by another worker, skipping", logging.String("path", job.Path))
		return result, nil
	}

	manifest, err := d.source.Delivery(ctx, job.VideoID)
	if err != nil {
		return result, err
	}
	stream, ok := SelectStream(manifest, d.method)
	if !ok {
		return result, services.Wrap(services.ErrNoStream, component, "select stream",
			fmt.Sprintf("video %s (%s): no %q stream among %v", job.VideoID, job.Label(), d.method, methods(manifest)), nil)
	}

	started := d.now()
	logger.Info("download started",
		logging.String("label", job.Label()),
		logging.String("path", job.Path),
		logging.String("stream_method", stream.Method),
	)
	size, err := d.fetch(ctx, job, stream)
	if err != nil {
		return result, err
	}

	result.Outcome = OutcomeDownloaded
	result.Bytes = size
	result.Duration = d.now().Sub(started)
	logger.Info("download completed",
		logging.String("label", job.Label()),
		logging.String("path", job.Path),
		logging.Int64("bytes", size),
		logging.Duration("duration", result.Duration),
	)
	d.record(ctx, logger, job, size)
	return result, nil
}

// fetch runs the agent into a fresh staging directory and moves the merged
// file to job.Path. The staging directory is removed on every path.
func (d *Dispatcher) fetch(ctx context.Context, job catalog.Job, stream vhx.Stream) (int64, error) {
	if err := os.MkdirAll(job.Dir, 0o755); err != nil {
		return 0, services.Wrap(services.ErrAgent, component, "prepare destination", job.Dir, err)
	}
	staging := filepath.Join(job.Dir, StagingPrefix+uuid.NewString())
	if err := os.Mkdir(staging, 0o755); err != nil {
		return 0, services.Wrap(services.ErrAgent, component, "create staging", staging, err)
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			logging.WarnWithContext(d.logger, "staging cleanup failed", "staging_cleanup_failed",
				logging.String("staging", staging),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the leftover .vhxdl-partial directory manually"),
			)
		}
	}()

	agentCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		agentCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	req := Request{
		URL:            stream.URL,
		OutputTemplate: filepath.Join(staging, EscapeTemplate(job.Root)) + ".%(ext)s",
		Label:          job.Label(),
	}
	if err := d.agent.Download(agentCtx, req); err != nil {
		return 0, services.Wrap(services.ErrAgent, component, "download", job.Label(), err)
	}

	staged := filepath.Join(staging, job.Root+catalog.FileExt)
	info, err := os.Stat(staged)
	if err != nil {
		return 0, services.Wrap(services.ErrAgent, component, "locate output",
			fmt.Sprintf("agent produced no %s output for %s", catalog.FileExt, job.Label()), err)
	}
	if err := os.Rename(staged, job.Path); err != nil {
		return 0, services.Wrap(services.ErrAgent, component, "finalize", job.Path, err)
	}
	return info.Size(), nil
}

func (d *Dispatcher) record(ctx context.Context, logger *slog.Logger, job catalog.Job, size int64) {
	if d.recorder == nil {
		return
	}
	runID, _ := services.RunIDFromContext(ctx)
	entry := history.Entry{
		Path:        job.Path,
		VideoID:     job.VideoID,
		Kind:        job.Kind,
		Series:      job.Series,
		Title:       job.Title,
		Season:      job.Season,
		Episode:     job.Episode,
		RunID:       runID,
		Bytes:       size,
		CompletedAt: d.now(),
	}
	if err := d.recorder.Record(ctx, entry); err != nil {
		logging.WarnWithContext(logger, "history record failed", "history_record_failed",
			logging.String("path", job.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on paths.state_dir"),
			logging.String(logging.FieldImpact, "download is complete but missing from history"),
		)
	}
}

// EscapeTemplate doubles percent signs so value is literal inside an agent
// output template.
func EscapeTemplate(value string) string {
	return strings.ReplaceAll(value, "%", "%%")
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
