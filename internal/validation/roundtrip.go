// Package validation checks that an endpoint collection survives
// serialization and respects the structural rules of engine output.
package validation

import (
	"errors"
	"fmt"

	"github.com/PentesterFlow/routecheck/internal/codec"
	"github.com/PentesterFlow/routecheck/internal/endpoint"
)

// Failure reasons.
var (
	ErrCollectionCount = errors.New("collection serialization did not match the original input")
	ErrAbsolutePath    = errors.New("absolute file path where a relative path was expected")
	ErrMissingFile     = errors.New("source file does not exist")
	ErrSerialization   = errors.New("serialization failed")
)

// MismatchError reports a field that changed across a round trip.
type MismatchError struct {
	Field    string
	Endpoint string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("mismatched %s on %s", e.Field, e.Endpoint)
}

// CheckCollectionCount serializes the flattened collection as a whole and
// verifies that decoding it yields the same number of endpoints.
func CheckCollectionCount(c codec.Codec, flat []*endpoint.Endpoint) error {
	data, err := c.MarshalAll(flat)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	decoded, err := c.UnmarshalAll(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if len(decoded) != len(flat) {
		return fmt.Errorf("%w: %d endpoints became %d", ErrCollectionCount, len(flat), len(decoded))
	}
	return nil
}

// CheckRoundTrip serializes e, decodes it again and compares the fields
// that must survive.
func CheckRoundTrip(c codec.Codec, e *endpoint.Endpoint) error {
	data, err := c.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: serializing %s: %v", ErrSerialization, e, err)
	}
	decoded, err := c.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("%w: deserializing %s: %v", ErrSerialization, e, err)
	}
	if decoded == nil {
		return &MismatchError{Field: "endpoint (decoded to nil)", Endpoint: e.String()}
	}
	if field := compare(e, decoded); field != "" {
		return &MismatchError{Field: field, Endpoint: e.String()}
	}
	return nil
}

// compare returns the first field that differs, or "".
func compare(want, got *endpoint.Endpoint) string {
	switch {
	case want.Kind != got.Kind:
		return "endpoint kind"
	case want.URLPath != got.URLPath:
		return "url path"
	case want.FilePath != got.FilePath:
		return "file path"
	case len(want.Parameters) != len(got.Parameters):
		return "parameter count"
	case want.HTTPMethod != got.HTTPMethod:
		return "http method"
	}

	for name := range want.Parameters {
		if _, ok := got.Parameters[name]; !ok {
			return "parameter names"
		}
	}
	for name := range got.Parameters {
		if _, ok := want.Parameters[name]; !ok {
			return "parameter names"
		}
	}

	for name, wp := range want.Parameters {
		gp := got.Parameters[name]
		if wp == nil || gp == nil {
			if wp != gp {
				return "parameter " + name
			}
			continue
		}
		switch {
		case wp.ParamType != gp.ParamType:
			return "param type of " + name
		case wp.DataTypeSource != gp.DataTypeSource:
			return "data type source of " + name
		case wp.Name != gp.Name:
			return "param name of " + name
		case wp.HasAcceptedValues() != gp.HasAcceptedValues():
			return "accepted values of " + name
		case wp.HasAcceptedValues() && !sameSet(wp.AcceptedValues, gp.AcceptedValues):
			return "accepted values of " + name
		}
	}
	return ""
}

func sameSet(a, b []string) bool {
	as := make(map[string]struct{}, len(a))
	for _, v := range a {
		as[v] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, v := range b {
		bs[v] = struct{}{}
		if _, ok := as[v]; !ok {
			return false
		}
	}
	for v := range as {
		if _, ok := bs[v]; !ok {
			return false
		}
	}
	return true
}
