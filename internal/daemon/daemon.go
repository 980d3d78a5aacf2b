package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"vhxdl/internal/logging"
)

const component = "daemon"

// ErrAlreadyRunning reports that another process holds the daemon lock.
var ErrAlreadyRunning = errors.New("another vhxdl watch process is already running")

// Loop is the long-running work the daemon guards.
type Loop interface {
	Run(ctx context.Context) error
}

// Daemon enforces single-instance execution of a Loop.
type Daemon struct {
	loop     Loop
	logger   *slog.Logger
	lockPath string
	lock     *flock.Flock
	running  atomic.Bool
}

// New constructs a daemon guarding loop with the lock file at lockPath.
func New(lockPath string, loop Loop, logger *slog.Logger) (*Daemon, error) {
	if loop == nil {
		return nil, errors.New("daemon requires a loop")
	}
	if strings.TrimSpace(lockPath) == "" {
		return nil, errors.New("daemon requires a lock path")
	}
	return &Daemon{
		loop:     loop,
		logger:   logging.NewComponentLogger(logger, component),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// LockPath returns the lock file location.
func (d *Daemon) LockPath() string { return d.lockPath }

// Running reports whether Run is in progress.
func (d *Daemon) Running() bool { return d.running.Load() }

// Run acquires the lock and runs the loop until it returns.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, d.lockPath)
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	d.logger.Info("vhxdl watch started", logging.String("lock", d.lockPath))
	err = d.loop.Run(ctx)
	d.logger.Info("vhxdl watch stopped")
	return err
}
