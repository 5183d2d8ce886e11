package routecheck

import (
	"io"
	"time"

	"github.com/PentesterFlow/routecheck/internal/auth"
	"github.com/PentesterFlow/routecheck/internal/logger"
	"github.com/PentesterFlow/routecheck/internal/output"
	"github.com/PentesterFlow/routecheck/internal/state"
)

// Option is a functional option for configuring the Checker.
type Option func(*Checker) error

// WithConfig replaces the whole configuration. Later options still apply.
func WithConfig(cfg *Config) Option {
	return func(c *Checker) error {
		c.config = cfg.Clone()
		return nil
	}
}

// WithServer sets the base URL to probe.
func WithServer(url string) Option {
	return func(c *Checker) error {
		c.config.Server = url
		return nil
	}
}

// WithCredentials sets the "endpoint;name=value;..." credential string.
func WithCredentials(raw string) Option {
	return func(c *Checker) error {
		c.config.Auth.Credentials = raw
		return nil
	}
}

// WithReuseSession enables reusing a stored session younger than maxAge.
// A zero maxAge accepts any stored session.
func WithReuseSession(maxAge time.Duration) Option {
	return func(c *Checker) error {
		c.config.Auth.ReuseSession = true
		c.config.Auth.SessionMaxAge = maxAge
		return nil
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Checker) error {
		c.config.Probe.Timeout = timeout
		return nil
	}
}

// WithRateLimit sets the probe rate. A rate of zero disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Checker) error {
		c.config.Probe.RequestsPerSecond = rps
		c.config.Probe.Burst = burst
		return nil
	}
}

// WithFollowRedirects sets whether probes follow redirects.
func WithFollowRedirects(follow bool) Option {
	return func(c *Checker) error {
		c.config.Probe.FollowRedirects = follow
		return nil
	}
}

// WithUserAgent sets the user agent string.
func WithUserAgent(ua string) Option {
	return func(c *Checker) error {
		c.config.Probe.UserAgent = ua
		return nil
	}
}

// WithProxy sets the proxy URL and the hosts that bypass it.
func WithProxy(proxy, noProxy string) Option {
	return func(c *Checker) error {
		c.config.Probe.Proxy = proxy
		c.config.Probe.NoProxy = noProxy
		return nil
	}
}

// WithHeaders adds headers sent with every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Checker) error {
		if c.config.Probe.Headers == nil {
			c.config.Probe.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			c.config.Probe.Headers[k] = v
		}
		return nil
	}
}

// WithIncludePatterns adds path globs to probe.
func WithIncludePatterns(patterns ...string) Option {
	return func(c *Checker) error {
		c.config.Probe.Scope.IncludePatterns = append(c.config.Probe.Scope.IncludePatterns, patterns...)
		return nil
	}
}

// WithExcludePatterns adds path globs never probed.
func WithExcludePatterns(patterns ...string) Option {
	return func(c *Checker) error {
		c.config.Probe.Scope.ExcludePatterns = append(c.config.Probe.Scope.ExcludePatterns, patterns...)
		return nil
	}
}

// WithMethods limits probing to the given HTTP methods.
func WithMethods(methods ...string) Option {
	return func(c *Checker) error {
		c.config.Probe.Scope.Methods = append(c.config.Probe.Scope.Methods, methods...)
		return nil
	}
}

// WithCodec selects the round-trip codec by name.
func WithCodec(name string) Option {
	return func(c *Checker) error {
		c.config.Validation.Codec = name
		return nil
	}
}

// WithStatePath stores sessions and runs in the database at path.
func WithStatePath(path string) Option {
	return func(c *Checker) error {
		c.config.State.Enabled = true
		c.config.State.Path = path
		return nil
	}
}

// WithoutState disables persistence.
func WithoutState() Option {
	return func(c *Checker) error {
		c.config.State.Enabled = false
		return nil
	}
}

// WithStore uses store instead of opening one. The caller closes it.
func WithStore(store state.Store) Option {
	return func(c *Checker) error {
		c.store = store
		return nil
	}
}

// WithOutputFile writes the JSON report to path after the run.
func WithOutputFile(path string) Option {
	return func(c *Checker) error {
		c.config.Output.FilePath = path
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Checker) error {
		c.logger = l
		return nil
	}
}

// WithDoer sends requests through d instead of the built-in client.
func WithDoer(d auth.Doer) Option {
	return func(c *Checker) error {
		c.doer = d
		return nil
	}
}

// WithPrinter prints the listing, verdicts and summary to w.
func WithPrinter(w io.Writer, noColor bool) Option {
	return func(c *Checker) error {
		c.printer = output.NewPrinter(w, noColor)
		return nil
	}
}

// WithProgress draws a progress bar on w while probing.
func WithProgress(w io.Writer) Option {
	return func(c *Checker) error {
		c.progressOut = w
		return nil
	}
}
