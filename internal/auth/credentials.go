// Package auth logs in to a target application and keeps the resulting
// session headers for probing.
package auth

import (
	"fmt"
	"strings"

	"github.com/PentesterFlow/routecheck/internal/logger"
)

// CookieHeader is the key under which the session cookie is stored.
const CookieHeader = "Cookie"

// Param is one credential field sent to the login endpoint.
type Param struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Credentials describe how to log in and, after a successful login, the
// headers to send with every probe.
type Credentials struct {
	AuthenticationEndpoint string  `json:"authentication_endpoint" yaml:"authentication_endpoint"`
	Parameters             []Param `json:"parameters" yaml:"parameters"`
	// AuthenticatedParameters is nil until authorization succeeds.
	AuthenticatedParameters map[string]string `json:"-" yaml:"-"`
}

// ParseCredentials parses "endpoint;key=value;key=value". The first entry
// names the authentication endpoint; if it carries a "=", only the text
// before it is used. Malformed pairs are logged and skipped.
func ParseCredentials(raw string, log *logger.Logger) (*Credentials, error) {
	if log == nil {
		log = logger.Nop()
	}

	parts := strings.Split(raw, ";")
	first := strings.TrimSpace(parts[0])
	if first == "" {
		return nil, fmt.Errorf("credential string %q has no authentication endpoint", raw)
	}
	if name, _, ok := strings.Cut(first, "="); ok {
		first = name
	}

	creds := &Credentials{AuthenticationEndpoint: first}
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok || name == "" || value == "" {
			log.Warnf("Invalid authentication parameter format: %s", part)
			continue
		}
		creds.Parameters = append(creds.Parameters, Param{Name: name, Value: value})
	}
	return creds, nil
}

// Authenticated reports whether session headers are available.
func (c *Credentials) Authenticated() bool {
	return c != nil && c.AuthenticatedParameters != nil
}

// Headers returns a copy of the session headers, or nil.
func (c *Credentials) Headers() map[string]string {
	if !c.Authenticated() {
		return nil
	}
	headers := make(map[string]string, len(c.AuthenticatedParameters))
	for k, v := range c.AuthenticatedParameters {
		headers[k] = v
	}
	return headers
}

// Restore installs previously saved session headers.
func (c *Credentials) Restore(headers map[string]string) {
	if len(headers) == 0 {
		return
	}
	c.AuthenticatedParameters = make(map[string]string, len(headers))
	for k, v := range headers {
		c.AuthenticatedParameters[k] = v
	}
}

// Get returns the value of the named credential parameter.
func (c *Credentials) Get(name string) (string, bool) {
	for _, p := range c.Parameters {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}
