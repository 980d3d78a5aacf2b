package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const defaultLockRetryDelay = 250 * time.Millisecond

// lockPath maps a destination to its claim lock file.
func lockPath(dir, destination string) string {
	sum := sha256.Sum256([]byte(destination))
	return filepath.Join(dir, hex.EncodeToString(sum[:])+".lock")
}

// claim blocks until the destination's lock is held or ctx ends. The returned
// release func is safe to call once.
func claim(ctx context.Context, dir, destination string, retry time.Duration) (func() error, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(lockPath(dir, destination))
	ok, err := lock.TryLockContext(ctx, retry)
	if err != nil {
		return nil, fmt.Errorf("acquire lock for %s: %w", destination, err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire lock for %s: not acquired", destination)
	}
	return lock.Unlock, nil
}
