package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PentesterFlow/routecheck/internal/endpoint"
	"github.com/PentesterFlow/routecheck/internal/errors"
	"github.com/PentesterFlow/routecheck/internal/http"
	"github.com/PentesterFlow/routecheck/internal/logger"
)

// StatusAuthFailed is returned when every login phase failed. It is outside
// the range of real HTTP status codes.
const StatusAuthFailed = 0xffff

const formContentType = "application/x-www-form-urlencoded; charset=UTF-8"

// ErrNoSession is returned by a phase whose response set no cookie.
var ErrNoSession = stderrors.New("response did not set a session cookie")

// Doer sends a single HTTP request.
type Doer interface {
	Do(ctx context.Context, req *http.Request, opts ...http.RequestOption) (*http.Response, error)
}

// Authenticator logs in against a target server.
type Authenticator struct {
	baseURL string
	client  Doer
	logger  *logger.Logger
}

// NewAuthenticator creates an authenticator for the server at baseURL.
func NewAuthenticator(baseURL string, client Doer, log *logger.Logger) *Authenticator {
	if log == nil {
		log = logger.Nop()
	}
	return &Authenticator{
		baseURL: baseURL,
		client:  client,
		logger:  log.WithComponent("auth"),
	}
}

// Authorize logs in with creds. When hint is set, a request shaped after the
// hint's declared parameters is tried first. A plain form post of every
// credential follows if that fails. On success the session cookie is stored
// in creds.AuthenticatedParameters and the response status is returned.
// If both phases fail the result is StatusAuthFailed with the joined errors.
func (a *Authenticator) Authorize(ctx context.Context, creds *Credentials, hint *endpoint.Endpoint) (int, error) {
	if creds == nil {
		return StatusAuthFailed, fmt.Errorf("no credentials")
	}

	var errs []error

	if hint != nil {
		status, err := a.bestMatch(ctx, creds, hint)
		if err == nil {
			return status, nil
		}
		a.logger.WithError(err).Warn("Unable to authorize using best-match parameters")
		errs = append(errs, fmt.Errorf("best-match: %w", err))
	}

	status, err := a.formFallback(ctx, creds)
	if err == nil {
		return status, nil
	}
	a.logger.WithError(err).Warn("Unable to authorize using all-forms parameters")
	errs = append(errs, fmt.Errorf("form: %w", err))

	return StatusAuthFailed, stderrors.Join(errs...)
}

func (a *Authenticator) bestMatch(ctx context.Context, creds *Credentials, hint *endpoint.Endpoint) (int, error) {
	query := url.Values{}
	form := url.Values{}

	for _, p := range a.encodable(creds.Parameters) {
		paramType := endpoint.FormData
		if declared, ok := hint.Parameters[p.Name]; ok && declared != nil {
			paramType = declared.ParamType
		}
		if paramType == endpoint.QueryString {
			query.Add(p.Name, p.Value)
		} else {
			form.Add(p.Name, p.Value)
		}
	}

	target := http.JoinURL(a.baseURL, creds.AuthenticationEndpoint)
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}

	req := &http.Request{Method: hint.HTTPMethod, URL: target}
	if len(form) > 0 {
		req.Body = []byte(form.Encode())
		req.ContentType = formContentType
	}
	return a.send(ctx, req, creds)
}

func (a *Authenticator) formFallback(ctx context.Context, creds *Credentials) (int, error) {
	form := url.Values{}
	for _, p := range a.encodable(creds.Parameters) {
		form.Add(p.Name, p.Value)
	}

	return a.send(ctx, &http.Request{
		Method:      "POST",
		URL:         http.JoinURL(a.baseURL, creds.AuthenticationEndpoint),
		Body:        []byte(form.Encode()),
		ContentType: formContentType,
	}, creds)
}

// encodable drops pairs that cannot be form-encoded as UTF-8.
func (a *Authenticator) encodable(params []Param) []Param {
	out := make([]Param, 0, len(params))
	for _, p := range params {
		if !utf8.ValidString(p.Name) || !utf8.ValidString(p.Value) {
			a.logger.WithField("parameter", p.Name).Warn("Skipping credential that is not valid UTF-8")
			continue
		}
		out = append(out, p)
	}
	return out
}

func (a *Authenticator) send(ctx context.Context, req *http.Request, creds *Credentials) (int, error) {
	resp, err := a.client.Do(ctx, req, http.WithoutRedirects())
	if err != nil {
		return 0, err
	}
	if statusErr := errors.CategorizeHTTPStatus(resp.StatusCode, req.URL); statusErr != nil {
		return resp.StatusCode, statusErr
	}

	cookie := sessionCookie(resp.Header.Values("Set-Cookie"))
	if cookie == "" {
		return resp.StatusCode, ErrNoSession
	}

	creds.AuthenticatedParameters = map[string]string{CookieHeader: cookie}
	a.logger.WithField("status", resp.StatusCode).Info("Successfully authenticated")
	return resp.StatusCode, nil
}

// sessionCookie joins the name=value part of every Set-Cookie header.
func sessionCookie(setCookies []string) string {
	pairs := make([]string, 0, len(setCookies))
	for _, c := range setCookies {
		if i := strings.IndexByte(c, ';'); i >= 0 {
			c = c[:i]
		}
		c = strings.TrimSpace(c)
		if c != "" {
			pairs = append(pairs, c)
		}
	}
	return strings.Join(pairs, "; ")
}

// FindHint returns the endpoint in the collection served at the
// authentication endpoint, preferring POST, or nil.
func FindHint(endpoints []*endpoint.Endpoint, creds *Credentials) *endpoint.Endpoint {
	if creds == nil {
		return nil
	}
	want := normalizePath(creds.AuthenticationEndpoint)

	var found *endpoint.Endpoint
	for _, e := range endpoint.Flatten(endpoints) {
		if normalizePath(e.URLPath) != want {
			continue
		}
		if strings.EqualFold(e.HTTPMethod, "POST") {
			return e
		}
		if found == nil {
			found = e
		}
	}
	return found
}

func normalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return "/" + strings.Trim(p, "/")
}
