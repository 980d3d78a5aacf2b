package ytdlp_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	goytdlp "github.com/lrstanley/go-ytdlp"

	"vhxdl/internal/download"
	"vhxdl/internal/services/ytdlp"
)

type captureRunner struct {
	args [][]string
	err  error
}

func (r *captureRunner) Run(ctx context.Context, cmd *goytdlp.Command, url string) error {
	r.args = append(r.args, cmd.BuildCommand(ctx, url).Args)
	return r.err
}

func hasPair(args []string, flag, value string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

func TestDownloadBuildsCommand(t *testing.T) {
	runner := &captureRunner{}
	client, err := ytdlp.New(ytdlp.Config{
		Binary:         "/usr/local/bin/yt-dlp",
		FFmpegBinary:   "/usr/bin/ffmpeg",
		Format:         "bestvideo+bestaudio",
		MergeFormat:    "mkv",
		EmbedSubtitles: true,
	}, ytdlp.WithRunner(runner))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	req := download.Request{URL: "https://cdn/v.mpd", OutputTemplate: "/dest/.vhxdl-partial-1/S01E01 - Pilot.%(ext)s", Label: "Show S01E01"}
	if err := client.Download(context.Background(), req); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if len(runner.args) != 1 {
		t.Fatalf("expected one run, got %d", len(runner.args))
	}
	args := runner.args[0]
	if args[0] != "/usr/local/bin/yt-dlp" {
		t.Fatalf("unexpected executable %q", args[0])
	}
	checks := [][2]string{
		{"--format", "bestvideo+bestaudio"},
		{"--merge-output-format", "mkv"},
		{"--output", req.OutputTemplate},
		{"--ffmpeg-location", "/usr/bin/ffmpeg"},
	}
	for _, pair := range checks {
		if !hasPair(args, pair[0], pair[1]) {
			t.Errorf("expected %s %q in %v", pair[0], pair[1], args)
		}
	}
	for _, flag := range []string{"--write-subs", "--embed-subs"} {
		if !slices.Contains(args, flag) {
			t.Errorf("expected %s in %v", flag, args)
		}
	}
	if args[len(args)-1] != req.URL {
		t.Fatalf("expected url last, got %v", args)
	}
}

func TestDownloadWithoutSubtitles(t *testing.T) {
	runner := &captureRunner{}
	client, err := ytdlp.New(ytdlp.Config{Binary: "yt-dlp"}, ytdlp.WithRunner(runner))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.Download(context.Background(), download.Request{URL: "u", OutputTemplate: "o.%(ext)s"}); err != nil {
		t.Fatalf("Download: %v", err)
	}
	args := runner.args[0]
	if slices.Contains(args, "--embed-subs") {
		t.Fatalf("unexpected subtitle flags in %v", args)
	}
	if !hasPair(args, "--format", "bestvideo+bestaudio") || !hasPair(args, "--merge-output-format", "mkv") {
		t.Fatalf("expected default format and merge flags in %v", args)
	}
}

func TestAutoInstallResolvesOnce(t *testing.T) {
	runner := &captureRunner{}
	installs := 0
	client, err := ytdlp.New(ytdlp.Config{AutoInstall: true},
		ytdlp.WithRunner(runner),
		ytdlp.WithInstaller(func(context.Context) (string, error) {
			installs++
			return "/cache/yt-dlp", nil
		}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for range 2 {
		if err := client.Download(context.Background(), download.Request{URL: "u", OutputTemplate: "o.%(ext)s"}); err != nil {
			t.Fatalf("Download: %v", err)
		}
	}
	if installs != 1 {
		t.Fatalf("expected one install, got %d", installs)
	}
	if runner.args[1][0] != "/cache/yt-dlp" {
		t.Fatalf("expected managed executable, got %q", runner.args[1][0])
	}
}

func TestInstallFailureSurfaces(t *testing.T) {
	client, err := ytdlp.New(ytdlp.Config{AutoInstall: true},
		ytdlp.WithRunner(&captureRunner{}),
		ytdlp.WithInstaller(func(context.Context) (string, error) { return "", errors.New("offline") }),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.Download(context.Background(), download.Request{URL: "u"}); err == nil {
		t.Fatal("expected install error")
	}
}

func TestRunnerErrorReturned(t *testing.T) {
	boom := errors.New("exit status 1")
	client, err := ytdlp.New(ytdlp.Config{Binary: "yt-dlp"}, ytdlp.WithRunner(&captureRunner{err: boom}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.Download(context.Background(), download.Request{URL: "u"}); !errors.Is(err, boom) {
		t.Fatalf("expected runner error, got %v", err)
	}
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := ytdlp.New(ytdlp.Config{}); err == nil {
		t.Fatal("expected error without binary")
	}
}
