package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"vhxdl/internal/config"
	"vhxdl/internal/deps"
	"vhxdl/internal/services"
)

const authCheckTimeout = 30 * time.Second

// TokenSource is satisfied by the API token authority.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// CheckAuth performs one token exchange to confirm the credentials work.
func CheckAuth(ctx context.Context, source TokenSource) Result {
	const name = "API credentials"
	if source == nil {
		return Result{Name: name, Detail: "not configured"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, authCheckTimeout)
	defer cancel()
	if _, err := source.Token(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeAuthError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "token exchange ok"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries for the given config. A
// managed yt-dlp build makes the configured binary optional.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "yt-dlp",
			Command:     cfg.Downloader.Binary,
			Description: "Downloads and muxes adaptive streams",
			Optional:    cfg.Downloader.AutoInstall,
			VersionArgs: []string{"--version"},
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.Downloader.FFmpegBinary,
			Description: "Required by yt-dlp to merge video, audio and subtitles",
			VersionArgs: []string{"-version"},
		},
	}
	return deps.CheckBinaries(ctx, requirements)
}

func summarizeAuthError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "token exchange timed out"
	case errors.Is(err, services.ErrAuth):
		var netErr net.Error
		if errors.As(err, &netErr) {
			return fmt.Sprintf("token endpoint unreachable (%v)", netErr)
		}
		return err.Error()
	default:
		return err.Error()
	}
}
