package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"vhxdl/internal/catalog"
	"vhxdl/internal/services"
	"vhxdl/internal/services/vhx"
)

type fakeAPI struct {
	collections map[string]vhx.Collection
	items       map[string][]vhx.Entity
	selfLinks   map[string]string
	videos      map[string]vhx.Video
	calls       []string
}

func (f *fakeAPI) Collection(_ context.Context, id string) (vhx.Collection, error) {
	f.calls = append(f.calls, "collection "+id)
	c, ok := f.collections[id]
	if !ok {
		return vhx.Collection{}, services.Wrap(services.ErrFetch, "fake", "collection", "404", nil)
	}
	return c, nil
}

func (f *fakeAPI) CollectionItemsPage(_ context.Context, slug string) (vhx.SelfLink, error) {
	f.calls = append(f.calls, "self "+slug)
	var link vhx.SelfLink
	link.Links.Self.Href = f.selfLinks[slug]
	return link, nil
}

func (f *fakeAPI) CollectionItems(_ context.Context, id string) ([]vhx.Entity, error) {
	f.calls = append(f.calls, "items "+id)
	return f.items[id], nil
}

func (f *fakeAPI) Video(_ context.Context, id string) (vhx.Video, error) {
	f.calls = append(f.calls, "video "+id)
	v, ok := f.videos[id]
	if !ok {
		return vhx.Video{}, services.Wrap(services.ErrFetch, "fake", "video", "404", nil)
	}
	return v, nil
}

func entities(t *testing.T, raw string) []vhx.Entity {
	t.Helper()
	var out []vhx.Entity
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("decode entities: %v", err)
	}
	return out
}

func episode(id string, season, ep any, title, series string) string {
	return fmt.Sprintf(`{"entity_type":"video","entity_id":%q,"entity":{"title":%q,"metadata":{"season":{"number":%v,"episode_number":%v},"series":{"name":%q}}}}`,
		id, title, jsonValue(season), jsonValue(ep), series)
}

func jsonValue(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func seriesFixture(t *testing.T) *fakeAPI {
	return &fakeAPI{
		collections: map[string]vhx.Collection{"10": {ID: "10", Title: "Game Changer"}},
		items: map[string][]vhx.Entity{
			"10": entities(t, `[
				{"entity_type":"collection","entity_id":11},
				{"entity_type":"video","entity_id":99},
				{"entity_type":"playlist","entity_id":98},
				{"entity_type":"collection","entity_id":12}
			]`),
			"11": entities(t, "["+episode("101", 1, 1, "Pilot", "Game Changer")+","+
				`{"entity_type":"extra","entity_id":5},`+
				episode("102", 1, 2, "Sound/Off", "Game Changer")+"]"),
			"12": entities(t, "["+episode("201", 3, 7, "Ep/Title", "Game Changer")+"]"),
		},
	}
}

func TestSeriesJobsNamingAndOrder(t *testing.T) {
	api := seriesFixture(t)
	dest := t.TempDir()
	resolver := catalog.NewResolver(api, dest, nil)

	jobs, err := resolver.SeriesJobs(context.Background(), "10")
	if err != nil {
		t.Fatalf("SeriesJobs: %v", err)
	}
	dir := filepath.Join(dest, "Game Changer")
	want := []catalog.Job{
		{Kind: catalog.KindEpisode, VideoID: "101", Dir: dir, Root: "S01E01 - Pilot", Path: filepath.Join(dir, "S01E01 - Pilot.mkv"), Series: "Game Changer", Title: "Pilot", Season: 1, Episode: 1},
		{Kind: catalog.KindEpisode, VideoID: "102", Dir: dir, Root: "S01E02 - Sound_Off", Path: filepath.Join(dir, "S01E02 - Sound_Off.mkv"), Series: "Game Changer", Title: "Sound/Off", Season: 1, Episode: 2},
		{Kind: catalog.KindEpisode, VideoID: "201", Dir: dir, Root: "S03E07 - Ep_Title", Path: filepath.Join(dir, "S03E07 - Ep_Title.mkv"), Series: "Game Changer", Title: "Ep/Title", Season: 3, Episode: 7},
	}
	if diff := cmp.Diff(want, jobs); diff != "" {
		t.Fatalf("jobs mismatch (-want +got):\n%s", diff)
	}
	wantCalls := []string{"collection 10", "items 10", "items 11", "items 12"}
	if diff := cmp.Diff(wantCalls, api.calls); diff != "" {
		t.Fatalf("call order mismatch (-want +got):\n%s", diff)
	}
}

func TestSeriesTitleFallsBackToEpisodeSeriesName(t *testing.T) {
	api := &fakeAPI{
		collections: map[string]vhx.Collection{"20": {ID: "20"}},
		items: map[string][]vhx.Entity{
			"20": entities(t, `[{"entity_type":"collection","entity_id":21}]`),
			"21": entities(t, "["+episode("1", nil, nil, "Special", "Dimension 20/Live")+"]"),
		},
	}
	dest := t.TempDir()
	jobs, err := catalog.NewResolver(api, dest, nil).SeriesJobs(context.Background(), "20")
	if err != nil {
		t.Fatalf("SeriesJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(jobs))
	}
	want := filepath.Join(dest, "Dimension 20_Live", "S00E00 - Special.mkv")
	if jobs[0].Path != want {
		t.Fatalf("path = %q, want %q", jobs[0].Path, want)
	}
}

func TestEpisodeRoot(t *testing.T) {
	cases := []struct {
		season, episode int
		title, want     string
	}{
		{3, 7, "Ep/Title", "S03E07 - Ep_Title"},
		{0, 0, "Null Numbers", "S00E00 - Null Numbers"},
		{12, 104, `Back\Slash`, "S12E104 - Back_Slash"},
	}
	for _, tc := range cases {
		if got := catalog.EpisodeRoot(tc.season, tc.episode, tc.title); got != tc.want {
			t.Errorf("EpisodeRoot(%d, %d, %q) = %q, want %q", tc.season, tc.episode, tc.title, got, tc.want)
		}
	}
}

func TestResolveSeriesSlug(t *testing.T) {
	api := &fakeAPI{selfLinks: map[string]string{
		"game-changer": "https://api.vhx.com/v2/sites/1/collections/12345/items?page=1",
		"broken":       "https://api.vhx.com/v2/sites/1/videos/1",
	}}
	resolver := catalog.NewResolver(api, t.TempDir(), nil)

	id, err := resolver.ResolveSeriesSlug(context.Background(), "game-changer")
	if err != nil {
		t.Fatalf("ResolveSeriesSlug: %v", err)
	}
	if id != "12345" {
		t.Fatalf("id = %q, want 12345", id)
	}

	_, err = resolver.ResolveSeriesSlug(context.Background(), "broken")
	if !errors.Is(err, services.ErrResolution) {
		t.Fatalf("expected ErrResolution, got %v", err)
	}
}

func TestResolveVideoSlug(t *testing.T) {
	api := &fakeAPI{videos: map[string]vhx.Video{
		"trailer": {ID: "555", Title: "Trailer"},
		"no-id":   {Title: "Mystery"},
	}}
	resolver := catalog.NewResolver(api, t.TempDir(), nil)

	id, err := resolver.ResolveVideoSlug(context.Background(), "trailer")
	if err != nil || id != "555" {
		t.Fatalf("ResolveVideoSlug = %q, %v", id, err)
	}
	if _, err := resolver.ResolveVideoSlug(context.Background(), "no-id"); !errors.Is(err, services.ErrResolution) {
		t.Fatalf("expected ErrResolution, got %v", err)
	}
	if _, err := resolver.ResolveVideoSlug(context.Background(), "missing"); !errors.Is(err, services.ErrFetch) {
		t.Fatalf("expected ErrFetch for unknown slug, got %v", err)
	}
}

func TestResolveOrderAndDedup(t *testing.T) {
	api := seriesFixture(t)
	api.selfLinks = map[string]string{"game-changer": "/v2/sites/1/collections/10/items"}
	api.videos = map[string]vhx.Video{
		"900":     {ID: "900", Title: "Live/Show"},
		"trailer": {ID: "901", Title: "Trailer"},
		"901":     {ID: "901", Title: "Trailer"},
	}
	dest := t.TempDir()
	resolver := catalog.NewResolver(api, dest, nil)

	jobs, err := resolver.Resolve(context.Background(), catalog.Selectors{
		SeriesIDs:   []string{"10"},
		SeriesSlugs: []string{"game-changer"},
		VideoIDs:    []string{"900"},
		VideoSlugs:  []string{"trailer"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	var got []string
	for _, job := range jobs {
		got = append(got, job.VideoID)
	}
	want := []string{"101", "102", "201", "900", "901"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("job order mismatch (-want +got):\n%s", diff)
	}
	if jobs[3].Path != filepath.Join(dest, "Live_Show.mkv") {
		t.Fatalf("unexpected video path %q", jobs[3].Path)
	}
}

func TestResolveStopsOnUnresolvableSlug(t *testing.T) {
	api := seriesFixture(t)
	api.selfLinks = map[string]string{"nope": ""}
	resolver := catalog.NewResolver(api, t.TempDir(), nil)
	_, err := resolver.Resolve(context.Background(), catalog.Selectors{SeriesIDs: []string{"10"}, SeriesSlugs: []string{"nope"}})
	if !errors.Is(err, services.ErrResolution) {
		t.Fatalf("expected ErrResolution, got %v", err)
	}
	for _, call := range api.calls {
		if call == "items 10" {
			t.Fatal("series traversal must not start before slugs resolve")
		}
	}
}

func TestUnsafeTitlesFallBack(t *testing.T) {
	api := &fakeAPI{videos: map[string]vhx.Video{"7": {ID: "7", Title: ".."}}}
	dest := t.TempDir()
	job, err := catalog.NewResolver(api, dest, nil).VideoJob(context.Background(), "7")
	if err != nil {
		t.Fatalf("VideoJob: %v", err)
	}
	if job.Path != filepath.Join(dest, "video-7.mkv") {
		t.Fatalf("unexpected path %q", job.Path)
	}
}
