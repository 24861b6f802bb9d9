package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"clipper/internal/api"
	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/workflow"
)

const shutdownTimeout = 15 * time.Second

// Daemon owns the instance lock, the API listener and the workflow manager.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	workflow *workflow.Manager
	uploader api.Uploader

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	LockFilePath string
	APIAddress   string
	Workflow     workflow.StatusSummary
}

// New constructs a daemon. A nil uploader disables the upload route.
func New(cfg *config.Config, logger *slog.Logger, wf *workflow.Manager, up api.Uploader) (*Daemon, error) {
	if cfg == nil || wf == nil {
		return nil, errors.New("daemon requires config and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		workflow: wf,
		uploader: up,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	return d, nil
}

// Start acquires the instance lock and begins serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another clipper daemon instance is already running")
	}

	srv := newAPIServer(d.cfg, d.workflow, d.uploader, d.logger)
	runCtx, cancel := context.WithCancel(ctx)
	if err := srv.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.api = srv
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("clipper daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", srv.addr()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop stops the API, cancels any running encode and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.workflow.Shutdown(ctx); err != nil {
		logging.WarnWithContext(d.logger, "workflow shutdown incomplete", "daemon_shutdown",
			logging.Error(err),
			logging.String(logging.FieldImpact, "a partial clip may remain in the output directory"),
		)
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("clipper daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Run starts the daemon and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	d.Stop()
	return nil
}

// Addr reports the API listen address, or "" when stopped.
func (d *Daemon) Addr() string {
	if !d.running.Load() || d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		APIAddress:   d.Addr(),
		Workflow:     d.workflow.Status(),
	}
}
