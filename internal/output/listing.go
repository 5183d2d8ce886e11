package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/PentesterFlow/routecheck/internal/codec"
	"github.com/PentesterFlow/routecheck/internal/endpoint"
)

// ListingLines renders roots and their variants, one endpoint per line.
// Variants are indented by depth and numbered in pre-order.
func ListingLines(roots []*endpoint.Endpoint) []string {
	var lines []string
	n := 0

	var walk func(e *endpoint.Endpoint, depth int)
	walk = func(e *endpoint.Endpoint, depth int) {
		if e == nil {
			return
		}
		lines = append(lines, listingLine(n, depth, e))
		n++
		for _, v := range e.Variants {
			walk(v, depth+1)
		}
	}

	for _, root := range roots {
		walk(root, 0)
	}
	return lines
}

func listingLine(i, depth int, e *endpoint.Endpoint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] ", i)
	if depth > 0 {
		b.WriteString(strings.Repeat("--", depth))
		b.WriteByte(' ')
	}

	params := make([]string, 0, len(e.Parameters))
	for _, name := range e.ParameterNames() {
		params = append(params, e.Parameters[name].String())
	}

	fmt.Fprintf(&b, "%s: %s (%d variants): PARAMETERS=[%s]; FILE=%s (lines '%d'-'%d')",
		e.HTTPMethod, e.URLPath, len(e.Variants), strings.Join(params, ", "),
		e.FilePath, e.StartingLine, e.EndingLine)
	return b.String()
}

// ListingSummary returns the line printed after a listing.
func ListingSummary(roots []*endpoint.Endpoint) string {
	if len(roots) == 0 {
		return "No endpoints were found."
	}
	total := len(endpoint.Flatten(roots))
	return fmt.Sprintf("Generated %d distinct endpoints with %d variants for a total of %d endpoints",
		len(roots), total-len(roots), total)
}

// Info is the flattened form of an endpoint used by the simple export.
type Info struct {
	HTTPMethod   string `json:"httpMethod"`
	URLPath      string `json:"urlPath"`
	FilePath     string `json:"filePath"`
	StartingLine int    `json:"startingLineNumber"`
	EndingLine   int    `json:"endingLineNumber"`
	// Parameters maps each parameter name to its parameter type.
	Parameters map[string]endpoint.ParamType `json:"parameters"`
}

// Infos flattens roots into their simple form.
func Infos(roots []*endpoint.Endpoint) []Info {
	flat := endpoint.Flatten(roots)
	infos := make([]Info, 0, len(flat))
	for _, e := range flat {
		info := Info{
			HTTPMethod:   e.HTTPMethod,
			URLPath:      e.URLPath,
			FilePath:     e.FilePath,
			StartingLine: e.StartingLine,
			EndingLine:   e.EndingLine,
			Parameters:   make(map[string]endpoint.ParamType, len(e.Parameters)),
		}
		for name, p := range e.Parameters {
			if p != nil {
				info.Parameters[name] = p.ParamType
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// WriteSimpleJSON writes the flattened simple form of roots.
func WriteSimpleJSON(w io.Writer, roots []*endpoint.Endpoint) error {
	data, err := json.Marshal(Infos(roots))
	if err != nil {
		return fmt.Errorf("failed to encode endpoints: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// WriteFullJSON writes every root with its variants in the codec's format.
func WriteFullJSON(w io.Writer, c codec.Codec, roots []*endpoint.Endpoint) error {
	if c == nil {
		c = codec.JSON{}
	}
	data, err := c.MarshalAll(roots)
	if err != nil {
		return fmt.Errorf("failed to encode endpoints: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
