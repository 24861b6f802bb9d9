package supervisor

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"clipper/internal/logging"
	"clipper/internal/services"
)

// Defaults applied by New.
const (
	DefaultCancelGrace = 3 * time.Second
	DefaultReadTimeout = 250 * time.Millisecond
	defaultHistory     = 16
)

// ErrJobFinished is returned when cancelling a job that is already terminal.
var ErrJobFinished = errors.New("job already finished")

// Verifier inspects an output file after a zero exit.
type Verifier interface {
	Verify(ctx context.Context, path string) error
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, path string) error

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, path string) error { return f(ctx, path) }

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLauncher overrides process creation.
func WithLauncher(l Launcher) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.launcher = l
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logging.NewComponentLogger(logger, "supervisor")
		}
	}
}

// WithCancelGrace sets how long a terminated process may take before it is
// killed.
func WithCancelGrace(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithReadTimeout bounds how long the worker waits on stderr before checking
// for a cancel request.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

// WithJobTimeout sets a wall-clock limit per job. Zero disables it.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d >= 0 {
			s.jobTimeout = d
		}
	}
}

// WithVerifier adds an output check run after a zero exit.
func WithVerifier(v Verifier) Option {
	return func(s *Supervisor) { s.verifier = v }
}

// WithWarningRules replaces the default warning rules.
func WithWarningRules(rules []WarningRule) Option {
	return func(s *Supervisor) { s.rules = rules }
}

// Supervisor runs at most one encoder process at a time.
type Supervisor struct {
	launcher    Launcher
	logger      *slog.Logger
	grace       time.Duration
	readTimeout time.Duration
	jobTimeout  time.Duration
	verifier    Verifier
	rules       []WarningRule

	mu      sync.Mutex
	active  *Handle
	history []*Handle
}

// New constructs a Supervisor.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		launcher:    ExecLauncher{},
		logger:      logging.NewComponentLogger(nil, "supervisor"),
		grace:       DefaultCancelGrace,
		readTimeout: DefaultReadTimeout,
		rules:       DefaultWarningRules,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit launches req. It fails with *BusyError while another job is not yet
// terminal. A process that cannot be started still yields a handle whose job
// went from Pending directly to Failed without a Running event.
func (s *Supervisor) Submit(ctx context.Context, req Request) (*Handle, error) {
	if len(req.Argv) == 0 || strings.TrimSpace(req.Argv[0]) == "" {
		return nil, services.Wrap(services.ErrValidation, "supervisor", "submit", "empty command", nil)
	}

	s.mu.Lock()
	if s.active != nil {
		id := s.active.id
		s.mu.Unlock()
		return nil, &BusyError{JobID: id}
	}
	h := newHandle(s, uuid.NewString(), req)
	s.active = h
	s.remember(h)
	s.mu.Unlock()

	logger := h.logger
	proc, err := s.launcher.Launch(ctx, req.Argv)
	if err != nil {
		logging.ErrorWithContext(logger, "encoder launch failed", "job_launch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(services.ErrExternalTool)),
		)
		s.release(h)
		h.complete(TerminalState{
			State:        StateFailed,
			ExitCode:     -1,
			ProcessError: err.Error(),
			ToolMissing:  errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist),
		})
		return h, nil
	}

	h.markRunning()
	logger.Info("encoder started",
		logging.String(logging.FieldEventType, "job_started"),
		logging.String("output", req.OutputPath),
		logging.Duration("expected", req.Expected),
	)
	go h.run(context.WithoutCancel(services.WithJobID(ctx, h.id)), proc)
	return h, nil
}

// Cancel requests cancellation of job id.
func (s *Supervisor) Cancel(id string) error {
	h, ok := s.Lookup(id)
	if !ok {
		return services.Wrap(services.ErrNotFound, "supervisor", "cancel", "unknown job "+id, nil)
	}
	return h.Cancel()
}

// Active returns the non-terminal job, if any.
func (s *Supervisor) Active() (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.active != nil
}

// Latest returns the most recently submitted job.
func (s *Supervisor) Latest() (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return nil, false
	}
	return s.history[len(s.history)-1], true
}

// Lookup finds a recent job by id.
func (s *Supervisor) Lookup(id string) (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.history {
		if h.id == id {
			return h, true
		}
	}
	return nil, false
}

// Shutdown cancels the active job and waits for it to finish.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	h, ok := s.Active()
	if !ok {
		return nil
	}
	if err := h.Cancel(); err != nil && !errors.Is(err, ErrJobFinished) {
		return err
	}
	_, err := h.Wait(ctx)
	return err
}

func (s *Supervisor) remember(h *Handle) {
	s.history = append(s.history, h)
	if len(s.history) > defaultHistory {
		s.history = s.history[len(s.history)-defaultHistory:]
	}
}

func (s *Supervisor) release(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == h {
		s.active = nil
	}
}
