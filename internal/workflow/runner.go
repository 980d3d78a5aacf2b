package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"vhxdl/internal/catalog"
	"vhxdl/internal/download"
	"vhxdl/internal/logging"
	"vhxdl/internal/notifications"
	"vhxdl/internal/services"
)

const component = "workflow"

// Missing-stream policies.
const (
	MissingStreamFail = "fail"
	MissingStreamSkip = "skip"
)

// Resolver expands selectors into jobs.
type Resolver interface {
	Resolve(ctx context.Context, sel catalog.Selectors) ([]catalog.Job, error)
}

// Dispatcher executes one job.
type Dispatcher interface {
	Dispatch(ctx context.Context, job catalog.Job) (download.Result, error)
}

// Options configures a Runner.
type Options struct {
	Resolver   Resolver
	Dispatcher Dispatcher
	Selectors  catalog.Selectors
	// Workers above one dispatches jobs concurrently.
	Workers       int
	MissingStream string
	Notifier      notifications.Service
	Logger        *slog.Logger
	Clock         func() time.Time
}

// Summary reports the outcome of one run.
type Summary struct {
	RunID      string
	Planned    int
	Downloaded int
	Skipped    int
	// Missing counts jobs dropped for lack of a stream under the skip policy.
	Missing  int
	Bytes    int64
	Duration time.Duration
}

// Runner executes pipeline runs. Runs on one Runner must not overlap.
type Runner struct {
	resolver   Resolver
	dispatcher Dispatcher
	selectors  catalog.Selectors
	workers    int
	skipMiss   bool
	notifier   notifications.Service
	logger     *slog.Logger
	now        func() time.Time
}

// NewRunner validates opts and constructs a Runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Resolver == nil || opts.Dispatcher == nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "init", "resolver and dispatcher are required", nil)
	}
	policy := strings.ToLower(strings.TrimSpace(opts.MissingStream))
	switch policy {
	case "", MissingStreamFail, MissingStreamSkip:
	default:
		return nil, services.Wrap(services.ErrConfiguration, component, "init", "unknown missing-stream policy "+opts.MissingStream, nil)
	}
	r := &Runner{
		resolver:   opts.Resolver,
		dispatcher: opts.Dispatcher,
		selectors:  opts.Selectors,
		workers:    opts.Workers,
		skipMiss:   policy == MissingStreamSkip,
		notifier:   opts.Notifier,
		logger:     logging.NewComponentLogger(opts.Logger, component),
		now:        opts.Clock,
	}
	if r.workers < 1 {
		r.workers = 1
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Plan resolves the configured selectors without downloading anything.
func (r *Runner) Plan(ctx context.Context) ([]catalog.Job, error) {
	return r.resolver.Resolve(ctx, r.selectors)
}

// Run resolves and dispatches every job, stopping at the first fatal error.
// The run id is taken from ctx when present.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	runID, ok := services.RunIDFromContext(ctx)
	if !ok {
		runID = uuid.NewString()
		ctx = services.WithRunID(ctx, runID)
	}
	logger := logging.WithContext(ctx, r.logger)
	started := r.now()
	summary := Summary{RunID: runID}

	logger.Info("run started", logging.Int("workers", r.workers))
	jobs, err := r.Plan(ctx)
	if err == nil {
		summary.Planned = len(jobs)
		logger.Info("jobs resolved", logging.Int("jobs", len(jobs)))
		err = r.dispatchAll(ctx, jobs, &summary)
	}
	summary.Duration = r.now().Sub(started)

	if errors.Is(err, context.Canceled) {
		logger.Info("run interrupted",
			logging.Int("downloaded", summary.Downloaded),
			logging.Int("skipped", summary.Skipped),
		)
		return summary, err
	}
	if err != nil {
		logging.ErrorWithContext(logger, "run failed", "run_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldErrorHint, hintFor(err)),
			logging.Int("downloaded", summary.Downloaded),
			logging.Int("skipped", summary.Skipped),
		)
		r.notifyFailed(ctx, err)
		return summary, err
	}
	logger.Info("run completed",
		logging.Int("planned", summary.Planned),
		logging.Int("downloaded", summary.Downloaded),
		logging.Int("skipped", summary.Skipped),
		logging.Int("missing", summary.Missing),
		logging.Int64("bytes", summary.Bytes),
		logging.Duration("duration", summary.Duration),
	)
	r.notifyCompleted(ctx, summary)
	return summary, nil
}

func (r *Runner) dispatchAll(ctx context.Context, jobs []catalog.Job, summary *Summary) error {
	var mu sync.Mutex
	handle := func(ctx context.Context, job catalog.Job) error {
		result, err := r.dispatcher.Dispatch(ctx, job)
		if err != nil {
			if !r.skipMiss || !errors.Is(err, services.ErrNoStream) {
				return err
			}
			mu.Lock()
			summary.Missing++
			mu.Unlock()
			logging.WarnWithContext(logging.WithContext(services.WithVideoID(ctx, job.VideoID), r.logger),
				"no downloadable stream, skipping", "stream_missing",
				logging.String("label", job.Label()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the video may not offer offline delivery"),
				logging.String(logging.FieldImpact, "video not downloaded"),
			)
			return nil
		}
		mu.Lock()
		switch result.Outcome {
		case download.OutcomeDownloaded:
			summary.Downloaded++
			summary.Bytes += result.Bytes
		case download.OutcomeSkipped:
			summary.Skipped++
		}
		mu.Unlock()
		if result.Outcome == download.OutcomeDownloaded {
			r.notifyDownloaded(ctx, job)
		}
		return nil
	}

	if r.workers <= 1 {
		for _, job := range jobs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := handle(ctx, job); err != nil {
				return err
			}
		}
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.workers)
	for _, job := range jobs {
		if groupCtx.Err() != nil {
			break
		}
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return nil
			}
			return handle(groupCtx, job)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, services.ErrAuth):
		return "check client id, client secret, username and password"
	case errors.Is(err, services.ErrResolution):
		return "check the configured series and video slugs"
	case errors.Is(err, services.ErrNoStream):
		return "set downloader.missing_stream = \"skip\" to continue past videos without a stream"
	case errors.Is(err, services.ErrAgent):
		return "run with --log-level debug to see yt-dlp output"
	case errors.Is(err, services.ErrFetch):
		return "the API request failed; rerun later, completed files are skipped"
	default:
		return "check logs for details"
	}
}
