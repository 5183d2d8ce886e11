// Package probe sends one request per endpoint and classifies whether the
// route exists on the target server.
package probe

import (
	"context"
	"net/http"
	"strings"

	"github.com/PentesterFlow/routecheck/internal/auth"
	"github.com/PentesterFlow/routecheck/internal/endpoint"
	"github.com/PentesterFlow/routecheck/internal/errors"
	rchttp "github.com/PentesterFlow/routecheck/internal/http"
)

// Reachability is the probe verdict for one endpoint.
type Reachability int

const (
	Unreachable Reachability = iota
	Reachable
)

func (r Reachability) String() string {
	if r == Reachable {
		return "reachable"
	}
	return "unreachable"
}

// Classify turns a probe result into a verdict. Any status but 404 means the
// route exists, including other 4xx and 5xx. A transport error counts as
// reachable only when it describes a non-404 HTTP response; failures that
// never produced a response are unreachable.
func Classify(status int, err error) Reachability {
	if err == nil {
		return reachableIf(status != http.StatusNotFound)
	}

	if errors.GetStatusCode(err) > 0 {
		return reachableIf(!errors.IsNotFound(err))
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "code: 404"):
		return Unreachable
	case strings.Contains(msg, "HTTP response code"):
		return Reachable
	default:
		return Unreachable
	}
}

func reachableIf(ok bool) Reachability {
	if ok {
		return Reachable
	}
	return Unreachable
}

// Tester probes a single endpoint.
type Tester interface {
	Test(ctx context.Context, e *endpoint.Endpoint, creds *auth.Credentials) (int, error)
}

// Prober probes endpoints on one server.
type Prober struct {
	baseURL         string
	client          auth.Doer
	followRedirects bool
}

// NewProber creates a prober for the server at baseURL. The redirect policy
// applies to every probe request.
func NewProber(baseURL string, client auth.Doer, followRedirects bool) *Prober {
	return &Prober{
		baseURL:         baseURL,
		client:          client,
		followRedirects: followRedirects,
	}
}

// Test requests e once, sending the session headers from creds if any, and
// returns the response status.
func (p *Prober) Test(ctx context.Context, e *endpoint.Endpoint, creds *auth.Credentials) (int, error) {
	resp, err := p.client.Do(ctx, &rchttp.Request{
		Method: e.HTTPMethod,
		URL:    rchttp.JoinURL(p.baseURL, e.URLPath),
		Header: creds.Headers(),
	}, rchttp.WithRedirects(p.followRedirects))
	if err != nil {
		return 0, err
	}
	return resp.StatusCode, nil
}
