package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/PentesterFlow/routecheck/internal/probe"
)

var _ probe.Observer = (*Display)(nil)

func TestDisplay(t *testing.T) {
	var buf bytes.Buffer
	d := New(&buf, "shop")

	d.Observe(probe.Outcome{Reachability: probe.Reachable})
	if done, _, _ := d.Counts(); done != 0 {
		t.Error("outcomes before Start() should be ignored")
	}

	d.Start(4)
	d.Observe(probe.Outcome{Reachability: probe.Reachable})
	d.Observe(probe.Outcome{Reachability: probe.Unreachable})
	d.Observe(probe.Outcome{Reachability: probe.Reachable})

	done, ok, failed := d.Counts()
	if done != 3 || ok != 2 || failed != 1 {
		t.Errorf("Counts() = %d, %d, %d, want 3, 2, 1", done, ok, failed)
	}

	out := buf.String()
	if !strings.Contains(out, "shop [") || !strings.Contains(out, " 75% | 3/4 | ok: 2 | 404: 1") {
		t.Errorf("unexpected progress output: %q", out)
	}

	d.Finish()
	d.Finish()
	if strings.Count(buf.String(), "\n") != 1 {
		t.Error("Finish() should end the line exactly once")
	}
}

func TestDisplay_Empty(t *testing.T) {
	var buf bytes.Buffer
	d := New(&buf, "empty")
	d.Start(0)
	d.Finish()

	if !strings.Contains(buf.String(), "100%") {
		t.Errorf("empty run should show 100%%: %q", buf.String())
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{45 * time.Second, "45s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 5*time.Minute + 7*time.Second, "2h05m07s"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %s, want %s", tt.d, got, tt.want)
		}
	}
}
