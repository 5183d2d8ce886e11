// Package codec serializes endpoint collections to and from the engine's
// output formats.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/PentesterFlow/routecheck/internal/endpoint"
)

// Codec converts endpoints to text and back.
type Codec interface {
	// Name returns the format name, e.g. "json".
	Name() string

	// Marshal serializes one endpoint including its variants.
	Marshal(e *endpoint.Endpoint) ([]byte, error)

	// Unmarshal deserializes one endpoint.
	Unmarshal(data []byte) (*endpoint.Endpoint, error)

	// MarshalAll serializes a collection as a list.
	MarshalAll(endpoints []*endpoint.Endpoint) ([]byte, error)

	// UnmarshalAll deserializes a list produced by MarshalAll.
	UnmarshalAll(data []byte) ([]*endpoint.Endpoint, error)
}

// JSON is the default engine output codec.
type JSON struct {
	Pretty bool
}

// Name returns "json".
func (JSON) Name() string { return "json" }

// Marshal serializes one endpoint.
func (c JSON) Marshal(e *endpoint.Endpoint) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("cannot marshal nil endpoint")
	}
	return c.encode(toWire(e))
}

// Unmarshal deserializes one endpoint.
func (JSON) Unmarshal(data []byte) (*endpoint.Endpoint, error) {
	var w *wireEndpoint
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode endpoint: %w", err)
	}
	return fromWire(w)
}

// MarshalAll serializes a collection.
func (c JSON) MarshalAll(endpoints []*endpoint.Endpoint) ([]byte, error) {
	wire, err := toWireList(endpoints)
	if err != nil {
		return nil, err
	}
	return c.encode(wire)
}

// UnmarshalAll deserializes a collection.
func (JSON) UnmarshalAll(data []byte) ([]*endpoint.Endpoint, error) {
	var wire []*wireEndpoint
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode endpoint collection: %w", err)
	}
	return fromWireList(wire)
}

func (c JSON) encode(v interface{}) ([]byte, error) {
	if c.Pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// YAML reads and writes endpoint collections as YAML documents.
type YAML struct{}

// Name returns "yaml".
func (YAML) Name() string { return "yaml" }

// Marshal serializes one endpoint.
func (YAML) Marshal(e *endpoint.Endpoint) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("cannot marshal nil endpoint")
	}
	return yaml.Marshal(toWire(e))
}

// Unmarshal deserializes one endpoint.
func (YAML) Unmarshal(data []byte) (*endpoint.Endpoint, error) {
	var w *wireEndpoint
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode endpoint: %w", err)
	}
	return fromWire(w)
}

// MarshalAll serializes a collection.
func (YAML) MarshalAll(endpoints []*endpoint.Endpoint) ([]byte, error) {
	wire, err := toWireList(endpoints)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(wire)
}

// UnmarshalAll deserializes a collection.
func (YAML) UnmarshalAll(data []byte) ([]*endpoint.Endpoint, error) {
	var wire []*wireEndpoint
	if err := yaml.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode endpoint collection: %w", err)
	}
	return fromWireList(wire)
}

func toWireList(endpoints []*endpoint.Endpoint) ([]*wireEndpoint, error) {
	wire := make([]*wireEndpoint, 0, len(endpoints))
	for i, e := range endpoints {
		if e == nil {
			return nil, fmt.Errorf("endpoint %d is nil", i)
		}
		wire = append(wire, toWire(e))
	}
	return wire, nil
}

func fromWireList(wire []*wireEndpoint) ([]*endpoint.Endpoint, error) {
	endpoints := make([]*endpoint.Endpoint, 0, len(wire))
	for i, w := range wire {
		e, err := fromWire(w)
		if err != nil {
			return nil, fmt.Errorf("endpoint %d: %w", i, err)
		}
		endpoints = append(endpoints, e)
	}
	return endpoints, nil
}

// ByName returns the codec registered under name.
func ByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return JSON{}, nil
	case "yaml", "yml":
		return YAML{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// ForPath picks a codec from a file extension, defaulting to JSON.
func ForPath(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML{}
	default:
		return JSON{}
	}
}

// ReadFile loads an engine output file containing a list of root endpoints.
func ReadFile(path string) ([]*endpoint.Endpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read endpoints file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	endpoints, err := ForPath(path).UnmarshalAll(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return endpoints, nil
}

// WriteFile writes a collection in the format implied by the path.
func WriteFile(path string, endpoints []*endpoint.Endpoint) error {
	c := ForPath(path)
	if j, ok := c.(JSON); ok {
		j.Pretty = true
		c = j
	}

	data, err := c.MarshalAll(endpoints)
	if err != nil {
		return fmt.Errorf("failed to encode endpoints: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}
