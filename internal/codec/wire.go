package codec

import (
	"fmt"

	"github.com/PentesterFlow/routecheck/internal/endpoint"
)

// wireEndpoint is the serialized form shared by the JSON and YAML codecs.
type wireEndpoint struct {
	Kind         string                   `json:"kind" yaml:"kind"`
	HTTPMethod   string                   `json:"http_method" yaml:"http_method"`
	URLPath      string                   `json:"url_path" yaml:"url_path"`
	FilePath     string                   `json:"file_path" yaml:"file_path"`
	StartingLine int                      `json:"starting_line" yaml:"starting_line"`
	EndingLine   int                      `json:"ending_line" yaml:"ending_line"`
	Handler      string                   `json:"handler,omitempty" yaml:"handler,omitempty"`
	Parameters   map[string]wireParameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	PathNodes    []wirePathNode           `json:"path_nodes,omitempty" yaml:"path_nodes,omitempty"`
	Variants     []*wireEndpoint          `json:"variants,omitempty" yaml:"variants,omitempty"`
}

type wireParameter struct {
	Name      string `json:"name" yaml:"name"`
	DataType  string `json:"data_type,omitempty" yaml:"data_type,omitempty"`
	ParamType string `json:"param_type" yaml:"param_type"`
	// A pointer keeps "no accepted values" distinct from an empty set.
	AcceptedValues *[]string `json:"accepted_values,omitempty" yaml:"accepted_values,omitempty"`
	DataTypeSource string    `json:"data_type_source,omitempty" yaml:"data_type_source,omitempty"`
}

type wirePathNode struct {
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value" yaml:"value"`
}

func toWire(e *endpoint.Endpoint) *wireEndpoint {
	w := &wireEndpoint{
		Kind:         string(e.Kind),
		HTTPMethod:   e.HTTPMethod,
		URLPath:      e.URLPath,
		FilePath:     e.FilePath,
		StartingLine: e.StartingLine,
		EndingLine:   e.EndingLine,
		Handler:      e.Handler,
	}

	if len(e.Parameters) > 0 {
		w.Parameters = make(map[string]wireParameter, len(e.Parameters))
		for key, p := range e.Parameters {
			wp := wireParameter{
				Name:           p.Name,
				DataType:       p.DataType,
				ParamType:      string(p.ParamType),
				DataTypeSource: p.DataTypeSource,
			}
			if p.AcceptedValues != nil {
				values := append([]string{}, p.AcceptedValues...)
				wp.AcceptedValues = &values
			}
			w.Parameters[key] = wp
		}
	}

	for _, n := range e.PathNodes {
		w.PathNodes = append(w.PathNodes, wirePathNode{Type: string(n.Type), Value: n.Value})
	}
	for _, v := range e.Variants {
		w.Variants = append(w.Variants, toWire(v))
	}
	return w
}

func fromWire(w *wireEndpoint) (*endpoint.Endpoint, error) {
	if w == nil {
		return nil, fmt.Errorf("null endpoint")
	}

	kind := endpoint.Kind(w.Kind)
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown endpoint kind %q", w.Kind)
	}

	e := &endpoint.Endpoint{
		Kind:         kind,
		HTTPMethod:   w.HTTPMethod,
		URLPath:      w.URLPath,
		FilePath:     w.FilePath,
		StartingLine: w.StartingLine,
		EndingLine:   w.EndingLine,
		Handler:      w.Handler,
		Parameters:   make(map[string]*endpoint.RouteParameter, len(w.Parameters)),
	}

	for key, wp := range w.Parameters {
		p := &endpoint.RouteParameter{
			Name:           wp.Name,
			DataType:       wp.DataType,
			ParamType:      endpoint.ParamType(wp.ParamType),
			DataTypeSource: wp.DataTypeSource,
		}
		if p.Name == "" {
			p.Name = key
		}
		if p.ParamType == "" {
			p.ParamType = endpoint.Unknown
		}
		if wp.AcceptedValues != nil {
			p.AcceptedValues = append([]string{}, (*wp.AcceptedValues)...)
		}
		e.Parameters[key] = p
	}

	if w.PathNodes != nil {
		e.PathNodes = make([]endpoint.PathNode, 0, len(w.PathNodes))
		for _, n := range w.PathNodes {
			e.PathNodes = append(e.PathNodes, endpoint.PathNode{Type: endpoint.NodeType(n.Type), Value: n.Value})
		}
	} else {
		e.PathNodes = endpoint.ParsePathNodes(e.URLPath)
	}

	for i, wv := range w.Variants {
		v, err := fromWire(wv)
		if err != nil {
			return nil, fmt.Errorf("variant %d of %s %s: %w", i, w.HTTPMethod, w.URLPath, err)
		}
		e.Variants = append(e.Variants, v)
	}
	return e, nil
}
