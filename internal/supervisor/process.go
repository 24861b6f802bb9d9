package supervisor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Process is a running external command.
type Process interface {
	// Stderr streams the diagnostic output. It reaches EOF once the process
	// and every holder of the pipe have exited.
	Stderr() io.Reader
	// Terminate asks the process to stop.
	Terminate() error
	// Kill stops the process unconditionally.
	Kill() error
	// Wait blocks until the process exits. It must be called after Stderr
	// has been drained. The returned code is -1 when the process was
	// stopped by a signal.
	Wait() (exitCode int, err error)
}

// Launcher starts processes. Tests inject fakes that replay canned output.
type Launcher interface {
	Launch(ctx context.Context, argv []string) (Process, error)
}

// ExecLauncher runs commands with os/exec in their own process group so
// signals reach any helpers the encoder spawns.
type ExecLauncher struct{}

// Launch starts argv[0] with the remaining arguments.
func (ExecLauncher) Launch(ctx context.Context, argv []string) (Process, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = io.Discard
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd, stderr: stderr}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stderr io.Reader
}

func (p *execProcess) Stderr() io.Reader { return p.stderr }

func (p *execProcess) Terminate() error { return p.signal(unix.SIGTERM) }

func (p *execProcess) Kill() error { return p.signal(unix.SIGKILL) }

func (p *execProcess) signal(sig unix.Signal) error {
	pid := p.cmd.Process.Pid
	if err := unix.Kill(-pid, sig); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return os.ErrProcessDone
		}
		return p.cmd.Process.Signal(sig)
	}
	return nil
}

func (p *execProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	code := -1
	if p.cmd.ProcessState != nil {
		code = p.cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return code, nil
	}
	return code, err
}

// maxLineBytes bounds a single stderr line.
const maxLineBytes = 1 << 20

// newLineScanner splits on both "\n" and "\r"; ffmpeg rewrites its stats line
// in place with carriage returns.
func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	scanner.Split(scanLines)
	return scanner
}

func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
