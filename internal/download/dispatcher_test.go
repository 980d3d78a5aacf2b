package download_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"vhxdl/internal/catalog"
	"vhxdl/internal/download"
	"vhxdl/internal/history"
	"vhxdl/internal/services"
	"vhxdl/internal/services/vhx"
)

type fakeSource struct {
	manifest vhx.DeliveryManifest
	err      error
	calls    atomic.Int32
}

func (f *fakeSource) Delivery(_ context.Context, _ string) (vhx.DeliveryManifest, error) {
	f.calls.Add(1)
	return f.manifest, f.err
}

// fakeAgent writes the merged file the way the real agent expands its output
// template.
type fakeAgent struct {
	mu       sync.Mutex
	requests []download.Request
	err      error
	noOutput bool
	delay    time.Duration
}

func (f *fakeAgent) Download(ctx context.Context, req download.Request) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.err != nil {
		return f.err
	}
	if f.noOutput {
		return nil
	}
	out := strings.ReplaceAll(strings.ReplaceAll(req.OutputTemplate, "%(ext)s", "mkv"), "%%", "%")
	return os.WriteFile(out, []byte("video"), 0o644)
}

func (f *fakeAgent) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (f *fakeRecorder) Record(_ context.Context, entry history.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func dashManifest() vhx.DeliveryManifest {
	return vhx.DeliveryManifest{Streams: []vhx.Stream{
		{Method: "hls", URL: "https://cdn/hls.m3u8"},
		{Method: "dash", URL: "https://cdn/first.mpd"},
		{Method: "dash", URL: "https://cdn/second.mpd"},
	}}
}

func newJob(dest, root string) catalog.Job {
	dir := filepath.Join(dest, "Show")
	return catalog.Job{
		Kind:    catalog.KindEpisode,
		VideoID: "42",
		Dir:     dir,
		Root:    root,
		Path:    filepath.Join(dir, root+catalog.FileExt),
		Series:  "Show",
		Title:   "Pilot",
		Season:  1,
		Episode: 1,
	}
}

func newDispatcher(t *testing.T, source download.Source, agent download.Agent, recorder download.Recorder) *download.Dispatcher {
	t.Helper()
	d, err := download.NewDispatcher(download.Options{
		Source:         source,
		Agent:          agent,
		LockDir:        filepath.Join(t.TempDir(), "locks"),
		Recorder:       recorder,
		LockRetryDelay: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return d
}

func stagingDirs(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, download.StagingPrefix+"*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	return matches
}

func TestDispatchSkipsExistingWithoutNetwork(t *testing.T) {
	dest := t.TempDir()
	job := newJob(dest, "S01E01 - Pilot")
	if err := os.MkdirAll(job.Dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(job.Path, []byte("done"), 0o644); err != nil {
		t.Fatal(err)
	}
	source := &fakeSource{manifest: dashManifest()}
	agent := &fakeAgent{}
	result, err := newDispatcher(t, source, agent, nil).Dispatch(context.Background(), job)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.Outcome != download.OutcomeSkipped {
		t.Fatalf("expected skip, got %s", result.Outcome)
	}
	if source.calls.Load() != 0 || agent.count() != 0 {
		t.Fatalf("expected no calls, got source=%d agent=%d", source.calls.Load(), agent.count())
	}
}

func TestDispatchDownloadsFirstDashStream(t *testing.T) {
	dest := t.TempDir()
	job := newJob(dest, "S01E01 - Pilot")
	source := &fakeSource{manifest: dashManifest()}
	agent := &fakeAgent{}
	recorder := &fakeRecorder{}
	ctx := services.WithRunID(context.Background(), "run-7")

	result, err := newDispatcher(t, source, agent, recorder).Dispatch(ctx, job)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.Outcome != download.OutcomeDownloaded || result.Bytes != int64(len("video")) {
		t.Fatalf("unexpected result: %+v", result)
	}
	if agent.requests[0].URL != "https://cdn/first.mpd" {
		t.Fatalf("expected first dash stream, got %q", agent.requests[0].URL)
	}
	if !strings.HasSuffix(agent.requests[0].OutputTemplate, "S01E01 - Pilot.%(ext)s") {
		t.Fatalf("unexpected template %q", agent.requests[0].OutputTemplate)
	}
	if data, err := os.ReadFile(job.Path); err != nil || string(data) != "video" {
		t.Fatalf("destination not written: %q, %v", data, err)
	}
	if left := stagingDirs(t, job.Dir); len(left) != 0 {
		t.Fatalf("staging not cleaned: %v", left)
	}
	want := []history.Entry{{
		Path: job.Path, VideoID: "42", Kind: catalog.KindEpisode, Series: "Show", Title: "Pilot",
		Season: 1, Episode: 1, RunID: "run-7", Bytes: 5,
	}}
	if diff := cmp.Diff(want, recorder.entries, cmpopts.IgnoreFields(history.Entry{}, "CompletedAt")); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchNoStream(t *testing.T) {
	dest := t.TempDir()
	job := newJob(dest, "S01E01 - Pilot")
	source := &fakeSource{manifest: vhx.DeliveryManifest{Streams: []vhx.Stream{{Method: "hls", URL: "h"}}}}
	agent := &fakeAgent{}
	_, err := newDispatcher(t, source, agent, nil).Dispatch(context.Background(), job)
	if !errors.Is(err, services.ErrNoStream) {
		t.Fatalf("expected ErrNoStream, got %v", err)
	}
	if agent.count() != 0 {
		t.Fatal("agent must not run without a stream")
	}
}

func TestDispatchFetchErrorPassesThrough(t *testing.T) {
	source := &fakeSource{err: services.Wrap(services.ErrFetch, "vhx", "delivery", "502", nil)}
	_, err := newDispatcher(t, source, &fakeAgent{}, nil).Dispatch(context.Background(), newJob(t.TempDir(), "x"))
	if !errors.Is(err, services.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}

func TestDispatchAgentFailures(t *testing.T) {
	cases := map[string]*fakeAgent{
		"agent_error": {err: errors.New("exit status 1")},
		"no_output":   {noOutput: true},
	}
	for name, agent := range cases {
		t.Run(name, func(t *testing.T) {
			dest := t.TempDir()
			job := newJob(dest, "S01E01 - Pilot")
			recorder := &fakeRecorder{}
			_, err := newDispatcher(t, &fakeSource{manifest: dashManifest()}, agent, recorder).Dispatch(context.Background(), job)
			if !errors.Is(err, services.ErrAgent) {
				t.Fatalf("expected ErrAgent, got %v", err)
			}
			if _, statErr := os.Stat(job.Path); !os.IsNotExist(statErr) {
				t.Fatalf("destination must not exist after failure: %v", statErr)
			}
			if left := stagingDirs(t, job.Dir); len(left) != 0 {
				t.Fatalf("staging not cleaned: %v", left)
			}
			if len(recorder.entries) != 0 {
				t.Fatal("failed download must not be recorded")
			}
		})
	}
}

func TestDispatchEscapesPercentInTemplate(t *testing.T) {
	dest := t.TempDir()
	job := newJob(dest, "S01E02 - 100% Real")
	agent := &fakeAgent{}
	if _, err := newDispatcher(t, &fakeSource{manifest: dashManifest()}, agent, nil).Dispatch(context.Background(), job); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !strings.Contains(agent.requests[0].OutputTemplate, "100%% Real.%(ext)s") {
		t.Fatalf("percent not escaped: %q", agent.requests[0].OutputTemplate)
	}
	if _, err := os.Stat(job.Path); err != nil {
		t.Fatalf("destination missing: %v", err)
	}
}

func TestConcurrentDispatchOfSamePathDownloadsOnce(t *testing.T) {
	dest := t.TempDir()
	job := newJob(dest, "S01E01 - Pilot")
	agent := &fakeAgent{delay: 50 * time.Millisecond}
	d := newDispatcher(t, &fakeSource{manifest: dashManifest()}, agent, nil)

	var wg sync.WaitGroup
	results := make([]download.Result, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = d.Dispatch(context.Background(), job)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}
	if agent.count() != 1 {
		t.Fatalf("expected one agent run, got %d", agent.count())
	}
	outcomes := []download.Outcome{results[0].Outcome, results[1].Outcome}
	if !(outcomes[0] == download.OutcomeDownloaded && outcomes[1] == download.OutcomeSkipped) &&
		!(outcomes[0] == download.OutcomeSkipped && outcomes[1] == download.OutcomeDownloaded) {
		t.Fatalf("expected one download and one skip, got %v", outcomes)
	}
}

func TestSelectStream(t *testing.T) {
	manifest := dashManifest()
	got, ok := download.SelectStream(manifest, "dash")
	if !ok || got.URL != "https://cdn/first.mpd" {
		t.Fatalf("SelectStream dash = %+v, %v", got, ok)
	}
	if _, ok := download.SelectStream(manifest, "smooth"); ok {
		t.Fatal("expected no match for absent method")
	}
	if _, ok := download.SelectStream(vhx.DeliveryManifest{}, "dash"); ok {
		t.Fatal("expected no match for empty manifest")
	}
}

func TestNewDispatcherRequiresDependencies(t *testing.T) {
	if _, err := download.NewDispatcher(download.Options{Agent: &fakeAgent{}, LockDir: t.TempDir()}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
