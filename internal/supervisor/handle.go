package supervisor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"clipper/internal/fileutil"
	"clipper/internal/logging"
)

const (
	maxLogLines = 1000
	maxWarnings = 50
	verifyLimit = 2 * time.Minute
)

var errorLinePattern = regexp.MustCompile(`(?i)error|failed|invalid|not found|no such file|permission denied|unable to`)

// Handle tracks one submitted job.
type Handle struct {
	id     string
	req    Request
	sup    *Supervisor
	logger *slog.Logger

	wake chan struct{}
	done chan struct{}

	mu        sync.Mutex
	job       Job
	events    []Event
	notify    chan struct{}
	terminal  *TerminalState
	cancel    bool
	log       []string
	warnSeen  map[string]struct{}
	sampler   *logging.ProgressSampler
	lastError string
}

func newHandle(s *Supervisor, id string, req Request) *Handle {
	h := &Handle{
		id:       id,
		req:      req,
		sup:      s,
		logger:   s.logger.With(logging.String(logging.FieldJobID, id)),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		notify:   make(chan struct{}),
		warnSeen: make(map[string]struct{}),
		sampler:  logging.NewProgressSampler(10),
		job: Job{
			ID:         id,
			Source:     req.Source,
			Command:    slices.Clone(req.Argv),
			OutputPath: req.OutputPath,
			State:      StatePending,
			Expected:   req.Expected,
			CreatedAt:  time.Now(),
		},
	}
	h.appendLocked(Event{Type: EventState, State: StatePending})
	return h
}

// ID returns the job identifier.
func (h *Handle) ID() string { return h.id }

// Done is closed after the terminal event has been recorded.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Snapshot returns the current job view.
func (h *Handle) Snapshot() Job {
	h.mu.Lock()
	defer h.mu.Unlock()
	job := h.job
	job.Command = slices.Clone(job.Command)
	job.Warnings = slices.Clone(job.Warnings)
	return job
}

// Result returns the terminal state once the job has finished.
func (h *Handle) Result() (TerminalState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.terminal == nil {
		return TerminalState{}, false
	}
	return *h.terminal, true
}

// Wait blocks until the job is terminal or ctx ends.
func (h *Handle) Wait(ctx context.Context) (TerminalState, error) {
	select {
	case <-h.done:
		ts, _ := h.Result()
		return ts, nil
	case <-ctx.Done():
		return TerminalState{}, ctx.Err()
	}
}

// Cancel requests termination. Progress events stop immediately; the
// terminal event follows once the process has exited.
func (h *Handle) Cancel() error {
	h.mu.Lock()
	if h.terminal != nil {
		h.mu.Unlock()
		return ErrJobFinished
	}
	already := h.cancel
	h.cancel = true
	h.job.CancelPending = true
	h.mu.Unlock()

	if !already {
		h.logger.Info("cancel requested", logging.String(logging.FieldEventType, "job_cancel_requested"))
	}
	select {
	case h.wake <- struct{}{}:
	default:
	}
	return nil
}

// EventsSince returns recorded events with Seq greater than after without
// blocking.
func (h *Handle) EventsSince(after int) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	if after < 0 {
		after = 0
	}
	if after >= len(h.events) {
		return nil
	}
	return slices.Clone(h.events[after:])
}

// Events streams every event from the start. The channel closes after the
// terminal event.
func (h *Handle) Events() <-chan Event {
	return h.Subscribe(context.Background(), 0)
}

// Subscribe streams events with Seq greater than after until the terminal
// event has been sent or ctx ends.
func (h *Handle) Subscribe(ctx context.Context, after int) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		next := after
		for {
			h.mu.Lock()
			pending := h.eventsAfterLocked(next)
			notify := h.notify
			finished := h.terminal != nil
			h.mu.Unlock()

			for _, ev := range pending {
				select {
				case out <- ev:
					next = ev.Seq
				case <-ctx.Done():
					return
				}
			}
			if finished {
				return
			}
			select {
			case <-notify:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (h *Handle) eventsAfterLocked(after int) []Event {
	if after < 0 {
		after = 0
	}
	if after >= len(h.events) {
		return nil
	}
	return slices.Clone(h.events[after:])
}

func (h *Handle) appendLocked(ev Event) {
	if h.terminal != nil {
		return
	}
	ev.Seq = len(h.events) + 1
	ev.JobID = h.id
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	h.events = append(h.events, ev)
	close(h.notify)
	h.notify = make(chan struct{})
}

func (h *Handle) markRunning() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.job.State = StateRunning
	h.job.StartedAt = time.Now()
	h.appendLocked(Event{Type: EventState, State: StateRunning})
}

func (h *Handle) cancelRequested() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancel
}

type waitResult struct {
	code int
	err  error
}

func (h *Handle) run(ctx context.Context, proc Process) {
	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := newLineScanner(proc.Stderr())
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			h.logger.Debug("stderr scan stopped", logging.Error(err))
			_, _ = io.Copy(io.Discard, proc.Stderr())
		}
	}()

	var (
		parser    ProgressParser
		waitCh    chan waitResult
		killCh    <-chan time.Time
		timeoutCh <-chan time.Time
		stopped   string
		signalled bool
	)
	if h.sup.jobTimeout > 0 {
		timer := time.NewTimer(h.sup.jobTimeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}
	ticker := time.NewTicker(h.sup.readTimeout)
	defer ticker.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				waitCh = make(chan waitResult, 1)
				go func() {
					code, err := proc.Wait()
					waitCh <- waitResult{code: code, err: err}
				}()
				continue
			}
			h.handleLine(&parser, line)
		case res := <-waitCh:
			h.finish(ctx, res, stopped)
			return
		case <-timeoutCh:
			timeoutCh = nil
			if stopped == "" {
				stopped = "timeout"
				h.logger.Warn("job timed out",
					logging.String(logging.FieldEventType, "job_timeout"),
					logging.Duration("limit", h.sup.jobTimeout),
				)
			}
		case <-killCh:
			killCh = nil
			h.logger.Warn("encoder ignored terminate; killing",
				logging.String(logging.FieldEventType, "job_kill"),
				logging.Duration("grace", h.sup.grace),
			)
			if err := proc.Kill(); err != nil {
				h.logger.Debug("kill failed", logging.Error(err))
			}
		case <-h.wake:
		case <-ticker.C:
		}

		if stopped == "" && h.cancelRequested() {
			stopped = "cancel"
		}
		if stopped != "" && !signalled {
			signalled = true
			if err := proc.Terminate(); err != nil {
				h.logger.Debug("terminate failed", logging.Error(err))
			}
			killCh = time.After(h.sup.grace)
		}
	}
}

func (h *Handle) handleLine(parser *ProgressParser, line string) {
	sample, ready, isProgress := parser.Feed(line)
	if ready {
		h.progress(sample)
	}
	if isProgress {
		return
	}
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}

	h.mu.Lock()
	h.log = append(h.log, trimmed)
	if len(h.log) > maxLogLines {
		h.log = h.log[len(h.log)-maxLogLines:]
	}
	h.mu.Unlock()

	if w, ok := MatchWarning(h.sup.rules, trimmed); ok {
		h.warn(w)
		return
	}
	if errorLinePattern.MatchString(trimmed) {
		h.mu.Lock()
		h.lastError = trimmed
		h.job.LastErrorLine = trimmed
		h.mu.Unlock()
	}
}

func (h *Handle) progress(sample Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel || h.terminal != nil {
		return
	}
	fraction := Fraction(sample.Elapsed, h.req.Expected)
	if sample.Final {
		fraction = 1
	}
	if sample.Speed > 0 {
		h.job.Speed = sample.Speed
	}
	if sample.Elapsed > h.job.Elapsed {
		h.job.Elapsed = sample.Elapsed
	}
	h.job.ETA = ETA(h.job.Elapsed, h.req.Expected, h.job.Speed)
	if fraction <= h.job.Progress {
		return
	}
	h.job.Progress = fraction
	h.appendLocked(Event{
		Type:     EventProgress,
		Progress: fraction,
		Elapsed:  h.job.Elapsed,
		ETA:      h.job.ETA,
		Speed:    h.job.Speed,
	})
	if h.sampler.ShouldLog(fraction*100, "encoding") {
		h.logger.Info("encoding progress",
			logging.String(logging.FieldEventType, "job_progress"),
			logging.Float64("percent", fraction*100),
			logging.Duration("eta", h.job.ETA),
			logging.Float64("speed", h.job.Speed),
		)
	}
}

func (h *Handle) warn(w Warning) {
	key := w.Code + "\x00" + w.Line
	h.mu.Lock()
	if _, seen := h.warnSeen[key]; seen || len(h.job.Warnings) >= maxWarnings {
		h.mu.Unlock()
		return
	}
	h.warnSeen[key] = struct{}{}
	h.job.Warnings = append(h.job.Warnings, w)
	warning := w
	h.appendLocked(Event{Type: EventWarning, Warning: &warning})
	h.mu.Unlock()

	hint := w.Hint
	if hint == "" {
		hint = "inspect subtitle fonts"
	}
	logging.WarnWithContext(h.logger, "encoder warning", "encoder_warning",
		logging.String("code", w.Code),
		logging.String("line", w.Line),
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, "output is still produced"),
	)
}

func (h *Handle) finish(ctx context.Context, res waitResult, stopped string) {
	ts := TerminalState{ExitCode: res.code}
	switch {
	case stopped == "timeout":
		ts.State = StateFailed
		ts.TimedOut = true
	case stopped == "cancel":
		ts.State = StateCancelled
	case res.err != nil:
		ts.State = StateFailed
		ts.ProcessError = res.err.Error()
	case res.code != 0:
		ts.State = StateFailed
	default:
		if err := h.checkOutput(ctx); err != nil {
			ts.State = StateFailed
			ts.OutputError = err.Error()
		} else {
			ts.State = StateSucceeded
		}
	}

	if ts.State != StateSucceeded {
		if err := fileutil.RemoveIfExists(h.req.OutputPath); err != nil {
			logging.WarnWithContext(h.logger, "partial output not removed", "partial_output_cleanup",
				logging.String("path", h.req.OutputPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "delete the file manually"),
				logging.String(logging.FieldImpact, "a partial clip remains on disk"),
			)
		}
	}

	h.sup.release(h)
	h.complete(ts)
}

func (h *Handle) checkOutput(ctx context.Context) error {
	ok, err := fileutil.NonEmptyFile(h.req.OutputPath)
	if err != nil {
		return fmt.Errorf("output not readable: %w", err)
	}
	if !ok {
		return fmt.Errorf("output %s is missing or empty", h.req.OutputPath)
	}
	if h.sup.verifier == nil {
		return nil
	}
	vctx, cancel := context.WithTimeout(ctx, verifyLimit)
	defer cancel()
	if err := h.sup.verifier.Verify(vctx, h.req.OutputPath); err != nil {
		return fmt.Errorf("output failed verification: %w", err)
	}
	return nil
}

// complete fills the shared TerminalState fields, records the terminal event
// and closes Done.
func (h *Handle) complete(ts TerminalState) {
	h.mu.Lock()
	ts.JobID = h.id
	ts.Command = slices.Clone(h.req.Argv)
	ts.OutputPath = h.req.OutputPath
	ts.Log = slices.Clone(h.log)
	ts.Warnings = slices.Clone(h.job.Warnings)
	ts.StartedAt = h.job.StartedAt
	ts.FinishedAt = time.Now()
	ts.LastErrorLine = h.lastError
	if ts.LastErrorLine == "" && len(h.log) > 0 {
		ts.LastErrorLine = h.log[len(h.log)-1]
	}
	if ts.LastErrorLine == "" && ts.ProcessError != "" {
		ts.LastErrorLine = ts.ProcessError
	}

	h.job.State = ts.State
	h.job.FinishedAt = ts.FinishedAt
	h.job.LastErrorLine = ts.LastErrorLine
	h.job.CancelPending = false
	if ts.State == StateSucceeded {
		h.job.Progress = 1
		h.job.ETA = 0
	}
	h.appendLocked(Event{Type: EventTerminal, State: ts.State, Progress: h.job.Progress, Terminal: &ts})
	final := ts
	h.terminal = &final
	h.mu.Unlock()

	close(h.done)

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "job_finished"),
		logging.String("state", string(ts.State)),
		logging.Int("exit_code", ts.ExitCode),
	}
	if ts.State == StateFailed {
		attrs = append(attrs, logging.String("last_error_line", ts.LastErrorLine))
		logging.ErrorWithContext(h.logger, "job failed", "job_failed", attrs...)
		return
	}
	h.logger.Info("job finished", logging.Args(attrs...)...)
}
