package supervisor_test

import (
	"context"
	"io"
	"sync"

	"clipper/internal/supervisor"
)

// fakeProcess replays canned stderr and exits when the test says so, or when
// signalled.
type fakeProcess struct {
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	// ignoreTerm keeps the process alive after Terminate, forcing a Kill.
	ignoreTerm bool

	mu         sync.Mutex
	terminated bool
	killed     bool
	code       int
	once       sync.Once
	exited     chan struct{}
}

func newFakeProcess() *fakeProcess {
	r, w := io.Pipe()
	return &fakeProcess{stderrR: r, stderrW: w, exited: make(chan struct{})}
}

func (p *fakeProcess) Stderr() io.Reader { return p.stderrR }

func (p *fakeProcess) Terminate() error {
	p.mu.Lock()
	p.terminated = true
	ignore := p.ignoreTerm
	p.mu.Unlock()
	if !ignore {
		p.exit(255)
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.exit(-1)
	return nil
}

func (p *fakeProcess) Wait() (int, error) {
	<-p.exited
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code, nil
}

// write emits stderr lines; it blocks until the supervisor reads them.
func (p *fakeProcess) write(lines ...string) {
	for _, line := range lines {
		if _, err := io.WriteString(p.stderrW, line+"\n"); err != nil {
			return
		}
	}
}

func (p *fakeProcess) exit(code int) {
	p.once.Do(func() {
		p.mu.Lock()
		p.code = code
		p.mu.Unlock()
		_ = p.stderrW.Close()
		close(p.exited)
	})
}

func (p *fakeProcess) wasTerminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

func (p *fakeProcess) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// fakeLauncher hands out prepared processes in order.
type fakeLauncher struct {
	mu    sync.Mutex
	procs []*fakeProcess
	argv  [][]string
	err   error
}

func (l *fakeLauncher) Launch(_ context.Context, argv []string) (supervisor.Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.argv = append(l.argv, argv)
	if l.err != nil {
		return nil, l.err
	}
	if len(l.procs) == 0 {
		panic("fakeLauncher: no process prepared")
	}
	p := l.procs[0]
	l.procs = l.procs[1:]
	return p, nil
}
