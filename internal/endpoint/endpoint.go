// Package endpoint defines the endpoint records produced by the analysis engine.
package endpoint

import (
	"fmt"
	"sort"
	"strings"
)

// LibraryMarker marks endpoints that originate from a library and have no
// file on disk.
const LibraryMarker = "(lib)"

// UnknownLine is the line number used when the engine could not locate a handler.
const UnknownLine = -1

// Kind identifies which framework produced an endpoint.
type Kind string

const (
	KindSpring         Kind = "spring"
	KindStruts         Kind = "struts"
	KindDotNetMVC      Kind = "dotnet_mvc"
	KindDotNetWebForms Kind = "dotnet_webforms"
	KindRails          Kind = "rails"
	KindDjango         Kind = "django"
	KindJSP            Kind = "jsp"
	KindGeneric        Kind = "generic"
)

var knownKinds = map[Kind]struct{}{
	KindSpring:         {},
	KindStruts:         {},
	KindDotNetMVC:      {},
	KindDotNetWebForms: {},
	KindRails:          {},
	KindDjango:         {},
	KindJSP:            {},
	KindGeneric:        {},
}

// Valid reports whether k is one of the known endpoint kinds.
func (k Kind) Valid() bool {
	_, ok := knownKinds[k]
	return ok
}

// ParamType classifies where a parameter is read from.
type ParamType string

const (
	QueryString ParamType = "QUERY_STRING"
	FormData    ParamType = "FORM_DATA"
	PathParam   ParamType = "PATH"
	Header      ParamType = "HEADER"
	Cookie      ParamType = "COOKIE"
	Session     ParamType = "SESSION"
	Files       ParamType = "FILES"
	JSONBody    ParamType = "JSON"
	Unknown     ParamType = "UNKNOWN"
)

// RouteParameter is one named input of an endpoint.
type RouteParameter struct {
	Name string
	// DataType is empty when the engine could not infer a type.
	DataType  string
	ParamType ParamType
	// AcceptedValues is nil when no value set is known. An empty, non-nil
	// slice means the set is known to be empty.
	AcceptedValues []string
	DataTypeSource string
}

// HasAcceptedValues reports whether an accepted value set is present.
func (p *RouteParameter) HasAcceptedValues() bool {
	return p.AcceptedValues != nil
}

func (p *RouteParameter) String() string {
	var b strings.Builder
	b.WriteString(p.Name)
	b.WriteString("[")
	b.WriteString(string(p.ParamType))
	if p.DataType != "" {
		b.WriteString(":")
		b.WriteString(p.DataType)
	}
	b.WriteString("]")
	if p.AcceptedValues != nil {
		fmt.Fprintf(&b, "{%s}", strings.Join(p.AcceptedValues, ","))
	}
	return b.String()
}

// Endpoint is one discovered route. Variants are owned by their parent and
// only ever traversed top-down.
type Endpoint struct {
	Kind         Kind
	HTTPMethod   string
	URLPath      string
	FilePath     string
	StartingLine int
	EndingLine   int
	// Handler is the kind-specific handler reference, e.g. a controller action
	// or a view template.
	Handler    string
	Parameters map[string]*RouteParameter
	Variants   []*Endpoint
	PathNodes  []PathNode
}

// New creates an endpoint with unknown line numbers and path nodes derived
// from urlPath.
func New(kind Kind, method, urlPath, filePath string) *Endpoint {
	return &Endpoint{
		Kind:         kind,
		HTTPMethod:   method,
		URLPath:      urlPath,
		FilePath:     filePath,
		StartingLine: UnknownLine,
		EndingLine:   UnknownLine,
		Parameters:   make(map[string]*RouteParameter),
		PathNodes:    ParsePathNodes(urlPath),
	}
}

// AddParameter adds or replaces a parameter keyed by its name.
func (e *Endpoint) AddParameter(p *RouteParameter) {
	if e.Parameters == nil {
		e.Parameters = make(map[string]*RouteParameter)
	}
	e.Parameters[p.Name] = p
}

// AddVariant attaches v as a variant of e.
func (e *Endpoint) AddVariant(v *Endpoint) {
	e.Variants = append(e.Variants, v)
}

// ParameterNames returns the parameter names in sorted order.
func (e *Endpoint) ParameterNames() []string {
	names := make([]string, 0, len(e.Parameters))
	for name := range e.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsLibrary reports whether the endpoint comes from a library rather than
// project source.
func (e *Endpoint) IsLibrary() bool {
	return strings.Contains(e.FilePath, LibraryMarker)
}

// HasWildcard reports whether any resolved path node is a wildcard.
func (e *Endpoint) HasWildcard() bool {
	for _, n := range e.PathNodes {
		if n.Type == WildcardNode {
			return true
		}
	}
	return false
}

// CheckLines verifies the line range invariant: both lines known with
// start <= end, or both unknown.
func (e *Endpoint) CheckLines() error {
	startKnown := e.StartingLine >= 0
	endKnown := e.EndingLine >= 0
	switch {
	case startKnown != endKnown:
		return fmt.Errorf("line range %d-%d mixes known and unknown lines", e.StartingLine, e.EndingLine)
	case startKnown && e.StartingLine > e.EndingLine:
		return fmt.Errorf("line range %d-%d starts after it ends", e.StartingLine, e.EndingLine)
	}
	return nil
}

// CheckParameters verifies that every parameter is keyed by its own name.
func (e *Endpoint) CheckParameters() error {
	for key, p := range e.Parameters {
		if p == nil {
			return fmt.Errorf("parameter %q is nil", key)
		}
		if p.Name != key {
			return fmt.Errorf("parameter keyed %q is named %q", key, p.Name)
		}
	}
	return nil
}

// String returns the endpoint identity used in diagnostics.
func (e *Endpoint) String() string {
	return fmt.Sprintf("%s %s (%s:%d-%d)", e.HTTPMethod, e.URLPath, e.FilePath, e.StartingLine, e.EndingLine)
}

// Flatten returns the roots and all their variants in depth-first pre-order.
// An endpoint reachable more than once is only emitted the first time.
func Flatten(roots []*Endpoint) []*Endpoint {
	seen := make(map[*Endpoint]struct{})
	out := make([]*Endpoint, 0, len(roots))

	var walk func(e *Endpoint)
	walk = func(e *Endpoint) {
		if e == nil {
			return
		}
		if _, ok := seen[e]; ok {
			return
		}
		seen[e] = struct{}{}
		out = append(out, e)
		for _, v := range e.Variants {
			walk(v)
		}
	}

	for _, root := range roots {
		walk(root)
	}
	return out
}
