package shutdown

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
	if len(cfg.Signals) != 2 {
		t.Errorf("Signals length = %d, want 2", len(cfg.Signals))
	}
}

// =============================================================================
// Context Tests
// =============================================================================

func TestHandler_Cancel(t *testing.T) {
	h := New(context.Background(), DefaultConfig())
	defer h.Close()

	select {
	case <-h.Context().Done():
		t.Fatal("context should not be done initially")
	default:
	}

	h.Cancel()

	select {
	case <-h.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context should be done after Cancel()")
	}
}

func TestHandler_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	h := New(parent, DefaultConfig())
	defer h.Close()

	cancel()

	select {
	case <-h.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context should follow its parent")
	}
}

func TestHandler_Signal(t *testing.T) {
	h := New(context.Background(), Config{Signals: []os.Signal{syscall.SIGUSR1}})
	defer h.Close()

	if err := syscall.Kill(os.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("Kill() error = %v", err)
	}

	select {
	case <-h.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context should be cancelled by the signal")
	}
}

// =============================================================================
// Close Tests
// =============================================================================

func TestHandler_Close_LIFO(t *testing.T) {
	h := New(context.Background(), DefaultConfig())

	var order []string
	h.RegisterFunc("store", func() { order = append(order, "store") })
	h.RegisterFunc("client", func() { order = append(order, "client") })
	h.RegisterCloser("log", closerFunc(func() error {
		order = append(order, "log")
		return nil
	}))

	if err := h.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	want := []string{"log", "client", "store"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}

	select {
	case <-h.Context().Done():
	default:
		t.Error("Close() should cancel the context")
	}
}

func TestHandler_Close_Idempotent(t *testing.T) {
	h := New(context.Background(), DefaultConfig())

	calls := 0
	h.RegisterFunc("count", func() { calls++ })

	h.Close()
	h.Close()

	if calls != 1 {
		t.Errorf("callback called %d times, want 1", calls)
	}
}

func TestHandler_Close_Errors(t *testing.T) {
	h := New(context.Background(), DefaultConfig())

	errA := errors.New("a failed")
	errB := errors.New("b failed")
	h.Register("a", func(context.Context) error { return errA })
	h.Register("ok", func(context.Context) error { return nil })
	h.Register("b", func(context.Context) error { return errB })

	err := h.Close()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Close() = %v, want both errors joined", err)
	}
	if again := h.Close(); again != err {
		t.Errorf("second Close() = %v, want the first result", again)
	}
}

func TestHandler_Close_Timeout(t *testing.T) {
	h := New(context.Background(), Config{Timeout: 50 * time.Millisecond})

	release := make(chan struct{})
	defer close(release)
	h.Register("stuck", func(ctx context.Context) error {
		<-release
		return nil
	})

	err := h.Close()

	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("Close() = %v, want *TimeoutError", err)
	}
	if timeout.CallbackName != "stuck" {
		t.Errorf("CallbackName = %s, want stuck", timeout.CallbackName)
	}
	if timeout.Error() != "shutdown callback timed out: stuck" {
		t.Errorf("Error() = %s", timeout.Error())
	}
}
