package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"vhxdl/internal/logging"
	"vhxdl/internal/services"
	"vhxdl/internal/services/vhx"
	"vhxdl/internal/textutil"
)

const (
	component = "catalog"
	// FileExt is the container every download is merged into.
	FileExt = ".mkv"
)

// Job kinds.
const (
	KindEpisode = "episode"
	KindVideo   = "video"
)

// Job is one concrete download: a remote video and where it ends up.
type Job struct {
	Kind    string
	VideoID string
	// Dir is the destination directory, Root the file name without extension
	// and Path the final file whose existence marks the job as done.
	Dir  string
	Root string
	Path string

	Series  string
	Title   string
	Season  int
	Episode int
}

// Label is a short human description used in logs and tables.
func (j Job) Label() string {
	if j.Kind == KindEpisode {
		return fmt.Sprintf("%s %s", j.Series, j.Root)
	}
	return j.Root
}

// Selectors name the content to resolve. Each list keeps its given order.
type Selectors struct {
	SeriesIDs   []string
	SeriesSlugs []string
	VideoIDs    []string
	VideoSlugs  []string
}

// API is the subset of the platform client the resolver needs.
type API interface {
	Collection(ctx context.Context, idOrSlug string) (vhx.Collection, error)
	CollectionItemsPage(ctx context.Context, idOrSlug string) (vhx.SelfLink, error)
	CollectionItems(ctx context.Context, id string) ([]vhx.Entity, error)
	Video(ctx context.Context, idOrSlug string) (vhx.Video, error)
}

// Resolver turns selectors into ordered download jobs.
type Resolver struct {
	api     API
	destDir string
	logger  *slog.Logger
}

// NewResolver constructs a Resolver writing below destDir.
func NewResolver(api API, destDir string, logger *slog.Logger) *Resolver {
	return &Resolver{api: api, destDir: destDir, logger: logging.NewComponentLogger(logger, component)}
}

var collectionIDPattern = regexp.MustCompile(`/collections/(\d+)/items`)

// ResolveSeriesSlug maps a series slug to its numeric collection id using the
// self link of the collection's item listing.
func (r *Resolver) ResolveSeriesSlug(ctx context.Context, slug string) (string, error) {
	link, err := r.api.CollectionItemsPage(ctx, slug)
	if err != nil {
		return "", err
	}
	match := collectionIDPattern.FindStringSubmatch(link.Links.Self.Href)
	if match == nil {
		return "", services.Wrap(services.ErrResolution, component, "resolve series slug",
			fmt.Sprintf("slug %q: no collection id in self link %q", slug, link.Links.Self.Href), nil)
	}
	r.logger.Debug("series slug resolved", logging.String("slug", slug), logging.String("series_id", match[1]))
	return match[1], nil
}

// ResolveVideoSlug maps a video slug to its numeric id.
func (r *Resolver) ResolveVideoSlug(ctx context.Context, slug string) (string, error) {
	video, err := r.api.Video(ctx, slug)
	if err != nil {
		return "", err
	}
	if video.ID == "" {
		return "", services.Wrap(services.ErrResolution, component, "resolve video slug",
			fmt.Sprintf("slug %q: response carries no id", slug), nil)
	}
	return video.ID.String(), nil
}

// SeriesJobs walks a series (seasons, then episodes) in listing order.
func (r *Resolver) SeriesJobs(ctx context.Context, seriesID string) ([]Job, error) {
	series, err := r.api.Collection(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	seasons, err := r.api.CollectionItems(ctx, seriesID)
	if err != nil {
		return nil, err
	}

	var episodes []vhx.Entity
	for _, season := range seasons {
		if season.Type != vhx.EntityCollection {
			continue
		}
		items, err := r.api.CollectionItems(ctx, season.ID.String())
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if item.Type == vhx.EntityVideo {
				episodes = append(episodes, item)
			}
		}
	}

	title := series.DisplayTitle()
	if title == "" && len(episodes) > 0 {
		title = strings.TrimSpace(episodes[0].Entity.Metadata.Series.Name)
	}
	dir := filepath.Join(r.destDir, safeComponent(title, "series-"+seriesID))

	jobs := make([]Job, 0, len(episodes))
	for _, ep := range episodes {
		meta := ep.Entity.Metadata
		season, episode := int(meta.Season.Number), int(meta.Season.EpisodeNumber)
		root := EpisodeRoot(season, episode, ep.Entity.Title)
		jobs = append(jobs, Job{
			Kind:    KindEpisode,
			VideoID: ep.ID.String(),
			Dir:     dir,
			Root:    root,
			Path:    filepath.Join(dir, root+FileExt),
			Series:  title,
			Title:   ep.Entity.Title,
			Season:  season,
			Episode: episode,
		})
	}
	r.logger.Info("series resolved",
		logging.String("series_id", seriesID),
		logging.String("series", title),
		logging.Int("seasons", len(seasons)),
		logging.Int("episodes", len(jobs)),
	)
	return jobs, nil
}

// VideoJob builds the job for a standalone video.
func (r *Resolver) VideoJob(ctx context.Context, videoID string) (Job, error) {
	video, err := r.api.Video(ctx, videoID)
	if err != nil {
		return Job{}, err
	}
	title := video.DisplayTitle()
	root := safeComponent(title, "video-"+videoID)
	return Job{
		Kind:    KindVideo,
		VideoID: videoID,
		Dir:     r.destDir,
		Root:    root,
		Path:    filepath.Join(r.destDir, root+FileExt),
		Title:   title,
	}, nil
}

// Resolve expands selectors into jobs: series ids, series slugs, video ids,
// then video slugs. A destination named twice is kept once, first wins.
func (r *Resolver) Resolve(ctx context.Context, sel Selectors) ([]Job, error) {
	var jobs []Job
	seen := make(map[string]struct{})
	add := func(batch ...Job) {
		for _, job := range batch {
			if _, dup := seen[job.Path]; dup {
				r.logger.Debug("duplicate job dropped", logging.String("path", job.Path), logging.String(logging.FieldVideoID, job.VideoID))
				continue
			}
			seen[job.Path] = struct{}{}
			jobs = append(jobs, job)
		}
	}

	seriesIDs := append([]string(nil), sel.SeriesIDs...)
	for _, slug := range sel.SeriesSlugs {
		id, err := r.ResolveSeriesSlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		seriesIDs = append(seriesIDs, id)
	}
	// All slugs resolve before any series is walked.
	for _, id := range seriesIDs {
		batch, err := r.SeriesJobs(ctx, id)
		if err != nil {
			return nil, err
		}
		add(batch...)
	}

	videoIDs := append([]string(nil), sel.VideoIDs...)
	for _, slug := range sel.VideoSlugs {
		id, err := r.ResolveVideoSlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		videoIDs = append(videoIDs, id)
	}
	for _, id := range videoIDs {
		job, err := r.VideoJob(ctx, id)
		if err != nil {
			return nil, err
		}
		add(job)
	}
	return jobs, nil
}

// EpisodeRoot formats the file name root "SxxEyy - Title" with path
// separators in the title replaced.
func EpisodeRoot(season, episode int, title string) string {
	return textutil.SanitizePathComponent(fmt.Sprintf("S%02dE%02d - %s", season, episode, title))
}

// safeComponent sanitises name for use as one path element, substituting
// fallback when nothing usable remains.
func safeComponent(name, fallback string) string {
	cleaned := strings.TrimSpace(textutil.SanitizePathComponent(name))
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return fallback
	}
	return cleaned
}
