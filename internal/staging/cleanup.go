package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vhxdl/internal/logging"
)

// CleanStaleResult contains the outcome of a stale directory cleanup operation.
type CleanStaleResult struct {
	Removed []string
	Bytes   int64
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes leftover download staging directories whose name starts
// with prefix and whose modification time is older than maxAge. Staging
// directories sit next to their final file, so root and its immediate
// subdirectories are searched. An active download keeps its directory's
// modification time fresh.
func CleanStale(ctx context.Context, root, prefix string, maxAge time.Duration, now time.Time, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}

	root = strings.TrimSpace(root)
	if root == "" || prefix == "" {
		return result
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: root, Error: err})
		}
		return result
	}

	cutoff := now.Add(-maxAge)
	parents := []string{root}
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), prefix) {
			parents = append(parents, filepath.Join(root, entry.Name()))
		}
	}

	for _, parent := range parents {
		if ctx.Err() != nil {
			return result
		}
		children, err := os.ReadDir(parent)
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: parent, Error: err})
			continue
		}
		for _, entry := range children {
			if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
				continue
			}
			dirPath := filepath.Join(parent, entry.Name())
			info, err := entry.Info()
			if err != nil {
				result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
				continue
			}
			if !info.ModTime().Before(cutoff) {
				continue
			}
			size, _ := dirSize(dirPath)
			if err := os.RemoveAll(dirPath); err != nil {
				result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
				logger.Warn("failed to remove stale staging directory",
					logging.String("path", dirPath),
					logging.Error(err),
					logging.String(logging.FieldEventType, "staging_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check permissions on the destination directory"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
				continue
			}
			result.Removed = append(result.Removed, dirPath)
			result.Bytes += size
			logger.Info("removed stale staging directory",
				logging.String("path", dirPath),
				logging.Duration("age", now.Sub(info.ModTime())),
				logging.Int64("bytes", size),
				logging.String(logging.FieldEventType, "staging_cleanup"),
			)
		}
	}
	return result
}

// dirSize calculates the total size of a directory recursively.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // best effort
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
