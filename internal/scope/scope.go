// Package scope decides which endpoints may be probed.
package scope

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/PentesterFlow/routecheck/internal/endpoint"
)

// DefaultExcludePatterns are paths that end or destroy the session.
var DefaultExcludePatterns = []string{
	"**/logout",
	"**/logout/**",
	"**/signout",
	"**/sign_out",
	"**/logoff",
	"**/delete-account",
	"**/unsubscribe",
}

// Rules defines probing scope. Patterns are doublestar globs matched
// against the URL path without its leading slash.
type Rules struct {
	IncludePatterns []string `json:"include" yaml:"include"`
	ExcludePatterns []string `json:"exclude" yaml:"exclude"`
	// Methods limits probing to these HTTP methods; empty allows all.
	Methods []string `json:"methods" yaml:"methods"`
}

// Checker validates endpoints against scope rules.
type Checker struct {
	mu      sync.RWMutex
	include []string
	exclude []string
	methods map[string]struct{}
}

// NewChecker creates a checker, rejecting malformed patterns.
func NewChecker(rules Rules) (*Checker, error) {
	c := &Checker{methods: make(map[string]struct{})}

	for _, p := range rules.IncludePatterns {
		if err := c.AddIncludePattern(p); err != nil {
			return nil, err
		}
	}
	for _, p := range rules.ExcludePatterns {
		if err := c.AddExcludePattern(p); err != nil {
			return nil, err
		}
	}
	for _, m := range rules.Methods {
		c.methods[strings.ToUpper(m)] = struct{}{}
	}
	return c, nil
}

func normalizePattern(pattern string) (string, error) {
	pattern = strings.TrimLeft(strings.TrimSpace(pattern), "/")
	if !doublestar.ValidatePattern(pattern) {
		return "", fmt.Errorf("invalid scope pattern %q", pattern)
	}
	return pattern, nil
}

// AddIncludePattern adds an include pattern.
func (c *Checker) AddIncludePattern(pattern string) error {
	p, err := normalizePattern(pattern)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.include = append(c.include, p)
	c.mu.Unlock()
	return nil
}

// AddExcludePattern adds an exclude pattern.
func (c *Checker) AddExcludePattern(pattern string) error {
	p, err := normalizePattern(pattern)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.exclude = append(c.exclude, p)
	c.mu.Unlock()
	return nil
}

// IsInScope checks a method and URL path. Excludes win over includes; with
// no includes every path is included.
func (c *Checker) IsInScope(method, urlPath string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.methods) > 0 {
		if _, ok := c.methods[strings.ToUpper(method)]; !ok {
			return false
		}
	}

	if i := strings.IndexAny(urlPath, "?#"); i >= 0 {
		urlPath = urlPath[:i]
	}
	name := strings.TrimLeft(urlPath, "/")

	for _, p := range c.exclude {
		if doublestar.MatchUnvalidated(p, name) {
			return false
		}
	}

	if len(c.include) == 0 {
		return true
	}
	for _, p := range c.include {
		if doublestar.MatchUnvalidated(p, name) {
			return true
		}
	}
	return false
}

// Contains reports whether e is in scope.
func (c *Checker) Contains(e *endpoint.Endpoint) bool {
	return c.IsInScope(e.HTTPMethod, e.URLPath)
}
