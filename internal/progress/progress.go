// Package progress draws a single-line progress bar while endpoints are
// probed.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/PentesterFlow/routecheck/internal/probe"
)

const barWidth = 30

// Display renders probe progress to a terminal.
type Display struct {
	mu      sync.Mutex
	w       io.Writer
	label   string
	started bool
	stopped bool

	total       int
	done        int
	reachable   int
	unreachable int

	startTime time.Time
	lastLine  string
}

// New creates a display writing to w, usually os.Stderr.
func New(w io.Writer, label string) *Display {
	return &Display{w: w, label: label}
}

// Start begins the display for total endpoints.
func (d *Display) Start(total int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.started = true
	d.stopped = false
	d.total = total
	d.done, d.reachable, d.unreachable = 0, 0, 0
	d.startTime = time.Now()
	d.render()
}

// Observe records one probe outcome.
func (d *Display) Observe(o probe.Outcome) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started || d.stopped {
		return
	}
	d.done++
	if o.Reachability == probe.Reachable {
		d.reachable++
	} else {
		d.unreachable++
	}
	d.render()
}

// Finish ends the current line.
func (d *Display) Finish() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || !d.started {
		return
	}
	d.stopped = true
	fmt.Fprintln(d.w)
}

// Counts returns probed, reachable and unreachable counts.
func (d *Display) Counts() (done, reachable, unreachable int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done, d.reachable, d.unreachable
}

func (d *Display) render() {
	percent := 100
	if d.total > 0 {
		percent = d.done * 100 / d.total
	}
	filled := percent * barWidth / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	elapsed := time.Since(d.startTime)
	speed := float64(0)
	if elapsed.Seconds() > 0 {
		speed = float64(d.done) / elapsed.Seconds()
	}

	line := fmt.Sprintf("\r%s [%s] %3d%% | %d/%d | ok: %d | 404: %d | %.1f req/s | %s",
		d.label, bar, percent, d.done, d.total, d.reachable, d.unreachable, speed, formatDuration(elapsed))

	if len(line) < len(d.lastLine) {
		fmt.Fprint(d.w, "\r"+strings.Repeat(" ", len(d.lastLine)))
	}
	fmt.Fprint(d.w, line)
	d.lastLine = line
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
