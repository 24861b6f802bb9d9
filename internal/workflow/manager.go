package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"clipper/internal/config"
	"clipper/internal/ffmpeg"
	"clipper/internal/logging"
	"clipper/internal/media/ffprobe"
	"clipper/internal/media/source"
	"clipper/internal/outcome"
	"clipper/internal/params"
	"clipper/internal/preflight"
	"clipper/internal/supervisor"
	"clipper/internal/verify"
)

const outcomeHistory = 32

// Manager coordinates clip jobs for one interactive session.
type Manager struct {
	cfg      *config.Config
	logger   *slog.Logger
	probe    ffprobe.ProbeFunc
	sup      *supervisor.Supervisor
	reporter *outcome.Reporter
	reserver *ffmpeg.PathReserver
	defaults params.EncodingParameters
	state    *params.State
	jobLog   *JobLogger

	resolveEncoder func(*config.Config) (string, error)
	resolveProbe   func(*config.Config) (string, error)
	ensureDir      func(string) error

	mu       sync.RWMutex
	source   *source.MediaSource
	outcomes map[string]outcome.Outcome
	order    []string
	wg       sync.WaitGroup
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithSupervisor replaces the supervisor built from config.
func WithSupervisor(sup *supervisor.Supervisor) ManagerOption {
	return func(m *Manager) {
		if sup != nil {
			m.sup = sup
		}
	}
}

// WithProbe replaces ffprobe inspection, e.g. with a cache wrapper.
func WithProbe(probe ffprobe.ProbeFunc) ManagerOption {
	return func(m *Manager) {
		if probe != nil {
			m.probe = probe
		}
	}
}

// WithReporter replaces the default outcome classification.
func WithReporter(r *outcome.Reporter) ManagerOption {
	return func(m *Manager) {
		if r != nil {
			m.reporter = r
		}
	}
}

// WithToolResolvers overrides how the ffmpeg and ffprobe binaries are found.
func WithToolResolvers(encoder, probe func(*config.Config) (string, error)) ManagerOption {
	return func(m *Manager) {
		if encoder != nil {
			m.resolveEncoder = encoder
		}
		if probe != nil {
			m.resolveProbe = probe
		}
	}
}

// NewManager constructs a manager from cfg. The initial parameters come from
// the [encoding] section, falling back to built-in defaults when they do not
// resolve.
func NewManager(cfg *config.Config, logger *slog.Logger, opts ...ManagerOption) *Manager {
	logger = logging.NewComponentLogger(logger, "workflow")
	m := &Manager{
		cfg:            cfg,
		logger:         logger,
		probe:          ffprobe.Inspect,
		reporter:       outcome.NewReporter(),
		reserver:       ffmpeg.NewPathReserver(),
		jobLog:         NewJobLogger(cfg),
		resolveEncoder: preflight.ResolveFFmpeg,
		resolveProbe:   preflight.ResolveFFprobe,
		ensureDir:      preflight.EnsureWritableDir,
		outcomes:       make(map[string]outcome.Outcome),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.sup == nil {
		m.sup = newSupervisor(cfg, logger)
	}
	m.defaults = initialParams(cfg, logger)
	m.state = params.NewState(m.defaults)
	return m
}

func newSupervisor(cfg *config.Config, logger *slog.Logger) *supervisor.Supervisor {
	opts := []supervisor.Option{supervisor.WithLogger(logger)}
	if cfg != nil {
		opts = append(opts,
			supervisor.WithCancelGrace(cfg.CancelGrace()),
			supervisor.WithReadTimeout(cfg.ReadTimeout()),
			supervisor.WithJobTimeout(cfg.JobTimeout()),
		)
		if cfg.Supervisor.VerifyOutput {
			opts = append(opts, supervisor.WithVerifier(verify.New()))
		}
	}
	return supervisor.New(opts...)
}

func initialParams(cfg *config.Config, logger *slog.Logger) params.EncodingParameters {
	if cfg == nil {
		return params.Defaults()
	}
	p, err := params.Resolve(params.RawOptions{
		Codec:        cfg.Encoding.Codec,
		CRF:          cfg.Encoding.CRF,
		FPS:          cfg.Encoding.FPS,
		AudioBitrate: cfg.Encoding.AudioBitrate,
		Container:    cfg.Encoding.Container,
		Resolution:   cfg.Encoding.Resolution,
		Speed:        cfg.Encoding.Speed,
		Preset:       cfg.Encoding.Preset,
	})
	if err != nil {
		logging.WarnWithContext(logger, "encoding defaults rejected; using built-in defaults", "config_encoding_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run clipper config validate"),
			logging.String(logging.FieldImpact, "clips use built-in encoding defaults"),
		)
		return params.Defaults()
	}
	return p
}

// Supervisor exposes the job supervisor for event streaming.
func (m *Manager) Supervisor() *supervisor.Supervisor { return m.sup }

// Params returns the last-known-good encoding parameters: the most recent
// accepted job or UpdateParams call, else the configured defaults.
func (m *Manager) Params() params.EncodingParameters { return m.state.Current() }

// UpdateParams resolves raw over the current parameters. On failure the
// current parameters are kept and returned alongside the error.
func (m *Manager) UpdateParams(raw params.RawOptions) (params.EncodingParameters, error) {
	return m.state.Apply(raw)
}

// Source returns the currently selected media source.
func (m *Manager) Source() (*source.MediaSource, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.source, m.source != nil
}

// Cancel requests cancellation of job id.
func (m *Manager) Cancel(id string) error {
	return m.sup.Cancel(id)
}

// Lookup returns the handle of a recent job.
func (m *Manager) Lookup(id string) (*supervisor.Handle, bool) {
	return m.sup.Lookup(id)
}

// Outcome returns the recorded outcome of a finished or rejected job.
func (m *Manager) Outcome(id string) (outcome.Outcome, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out, ok := m.outcomes[id]
	return out, ok
}

// Await blocks until sub is terminal and returns its outcome.
func (m *Manager) Await(ctx context.Context, sub *Submission) (outcome.Outcome, error) {
	if sub == nil {
		return outcome.Outcome{}, errors.New("workflow: nil submission")
	}
	if out, ok := sub.Early(); ok {
		return out, nil
	}
	ts, err := sub.handle.Wait(ctx)
	if err != nil {
		return outcome.Outcome{}, err
	}
	return m.reporter.Report(ts), nil
}

// Shutdown cancels the active job and waits for bookkeeping to finish.
func (m *Manager) Shutdown(ctx context.Context) error {
	err := m.sup.Shutdown(ctx)
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func (m *Manager) record(out outcome.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.outcomes[out.JobID]; !exists {
		m.order = append(m.order, out.JobID)
	}
	m.outcomes[out.JobID] = out
	for len(m.order) > outcomeHistory {
		delete(m.outcomes, m.order[0])
		m.order = m.order[1:]
	}
}

func (m *Manager) lastOutcome() (outcome.Outcome, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.order) == 0 {
		return outcome.Outcome{}, false
	}
	out, ok := m.outcomes[m.order[len(m.order)-1]]
	return out, ok
}
