package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"clipper/internal/logging"
	"clipper/internal/supervisor"
	"clipper/internal/timerange"
)

const barWidth = 30

// progressPrinter renders job events. Terminals get a redrawn bar; pipes and
// files get one line per 10% step.
type progressPrinter struct {
	out     io.Writer
	tty     bool
	sampler *logging.ProgressSampler
	drawn   bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{
		out:     w,
		tty:     isTerminal(w),
		sampler: logging.NewProgressSampler(10),
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (p *progressPrinter) handle(ev supervisor.Event) {
	switch ev.Type {
	case supervisor.EventProgress:
		p.progress(ev)
	case supervisor.EventWarning:
		if ev.Warning == nil {
			return
		}
		p.breakLine()
		fmt.Fprintf(p.out, "warning: %s\n", ev.Warning.Line)
		if ev.Warning.Hint != "" {
			fmt.Fprintf(p.out, "  hint: %s\n", ev.Warning.Hint)
		}
	case supervisor.EventTerminal:
		if p.tty && ev.State == supervisor.StateSucceeded {
			p.progress(supervisor.Event{Progress: 1, Speed: ev.Speed})
		}
		p.breakLine()
	}
}

func (p *progressPrinter) progress(ev supervisor.Event) {
	percent := ev.Progress * 100
	if !p.tty {
		if p.sampler.ShouldLog(percent, "encode") {
			fmt.Fprintf(p.out, "%s\n", progressLine(ev))
		}
		return
	}
	filled := min(int(ev.Progress*barWidth), barWidth)
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)
	fmt.Fprintf(p.out, "\r[%s] %s\x1b[K", bar, progressLine(ev))
	p.drawn = true
}

func (p *progressPrinter) breakLine() {
	if p.drawn {
		fmt.Fprintln(p.out)
		p.drawn = false
	}
}

func progressLine(ev supervisor.Event) string {
	parts := []string{fmt.Sprintf("%5.1f%%", ev.Progress*100)}
	if ev.ETA > 0 {
		parts = append(parts, "ETA "+timerange.Format(ev.ETA.Round(time.Second)))
	}
	if ev.Speed > 0 {
		parts = append(parts, fmt.Sprintf("%.2fx", ev.Speed))
	}
	return strings.Join(parts, "  ")
}
