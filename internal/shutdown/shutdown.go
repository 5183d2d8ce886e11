// Package shutdown cancels a run on SIGINT or SIGTERM and releases the
// resources it opened.
package shutdown

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/PentesterFlow/routecheck/internal/logger"
)

// Callback releases one resource.
type Callback func(ctx context.Context) error

// Config holds shutdown configuration.
type Config struct {
	// Timeout bounds the time all callbacks may take together.
	Timeout time.Duration
	Signals []os.Signal
	Logger  *logger.Logger
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

type entry struct {
	name string
	fn   Callback
}

// Handler owns the run context and the cleanup callbacks.
type Handler struct {
	mu      sync.Mutex
	entries []entry

	ctx     context.Context
	cancel  context.CancelFunc
	stop    context.CancelFunc
	timeout time.Duration
	logger  *logger.Logger

	once sync.Once
	err  error
}

// New creates a handler whose context is cancelled by any of the configured
// signals or by parent.
func New(parent context.Context, cfg Config) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if len(cfg.Signals) == 0 {
		cfg.Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	sigCtx, stop := signal.NotifyContext(parent, cfg.Signals...)
	ctx, cancel := context.WithCancel(sigCtx)

	return &Handler{
		ctx:     ctx,
		cancel:  cancel,
		stop:    stop,
		timeout: cfg.Timeout,
		logger:  cfg.Logger.WithComponent("shutdown"),
	}
}

// Context returns the run context.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Cancel cancels the run context without running callbacks.
func (h *Handler) Cancel() {
	h.cancel()
}

// Register adds a callback. Callbacks run in reverse registration order.
func (h *Handler) Register(name string, fn Callback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry{name: name, fn: fn})
}

// RegisterCloser registers c.Close.
func (h *Handler) RegisterCloser(name string, c io.Closer) {
	h.Register(name, func(context.Context) error {
		return c.Close()
	})
}

// RegisterFunc registers a cleanup that cannot fail.
func (h *Handler) RegisterFunc(name string, fn func()) {
	h.Register(name, func(context.Context) error {
		fn()
		return nil
	})
}

// Close cancels the run context and runs every callback once. It returns
// the joined callback errors; later calls return the same result.
func (h *Handler) Close() error {
	h.once.Do(func() {
		start := time.Now()
		h.cancel()
		defer h.stop()

		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()

		h.mu.Lock()
		entries := append([]entry(nil), h.entries...)
		h.mu.Unlock()

		var errs []error
		for i := len(entries) - 1; i >= 0; i-- {
			if err := run(ctx, entries[i]); err != nil {
				h.logger.WithError(err).WithField("resource", entries[i].name).Warn("Cleanup failed")
				errs = append(errs, err)
			}
		}
		h.err = stderrors.Join(errs...)
		h.logger.Debugf("Released %d resources in %v", len(entries), time.Since(start))
	})
	return h.err
}

func run(ctx context.Context, e entry) error {
	if err := ctx.Err(); err != nil {
		return &TimeoutError{CallbackName: e.name}
	}

	done := make(chan error, 1)
	go func() {
		done <- e.fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return &TimeoutError{CallbackName: e.name}
	}
}

// TimeoutError is returned when a callback does not finish in time.
type TimeoutError struct {
	CallbackName string
}

func (e *TimeoutError) Error() string {
	return "shutdown callback timed out: " + e.CallbackName
}
