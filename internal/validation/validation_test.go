package validation

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PentesterFlow/routecheck/internal/codec"
	"github.com/PentesterFlow/routecheck/internal/endpoint"
	"github.com/PentesterFlow/routecheck/internal/logger"
)

// sourceTree creates a source root containing the given relative files.
func sourceTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		path := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("// source"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func userEndpoint(file string) *endpoint.Endpoint {
	e := endpoint.New(endpoint.KindSpring, "GET", "/users/{id}", file)
	e.StartingLine = 5
	e.EndingLine = 9
	e.AddParameter(&endpoint.RouteParameter{Name: "id", DataType: "Long", ParamType: endpoint.PathParam})
	e.AddParameter(&endpoint.RouteParameter{
		Name:           "view",
		ParamType:      endpoint.QueryString,
		AcceptedValues: []string{"full", "summary"},
		DataTypeSource: "View.java",
	})
	return e
}

func newBufferValidator(c codec.Codec) (*Validator, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewValidator(c, logger.New(logger.Config{Level: logger.WarnLevel, Output: &buf})), &buf
}

// lossyCodec drops data type sources on the way back in.
type lossyCodec struct {
	codec.JSON
}

func (l lossyCodec) Unmarshal(data []byte) (*endpoint.Endpoint, error) {
	e, err := l.JSON.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	for _, p := range e.Parameters {
		p.DataTypeSource = ""
	}
	return e, nil
}

// droppingCodec loses the last endpoint of every collection.
type droppingCodec struct {
	codec.JSON
}

func (d droppingCodec) UnmarshalAll(data []byte) ([]*endpoint.Endpoint, error) {
	all, err := d.JSON.UnmarshalAll(data)
	if err != nil || len(all) == 0 {
		return all, err
	}
	return all[:len(all)-1], nil
}

// valuesCodec reorders and then alters accepted values.
type valuesCodec struct {
	codec.JSON
	mutate func(p *endpoint.RouteParameter)
}

func (v valuesCodec) Unmarshal(data []byte) (*endpoint.Endpoint, error) {
	e, err := v.JSON.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	for _, p := range e.Parameters {
		v.mutate(p)
	}
	return e, nil
}

// =============================================================================
// Round Trip Tests
// =============================================================================

func TestCheckRoundTrip(t *testing.T) {
	empty := endpoint.New(endpoint.KindDjango, "GET", "/", "urls.py")
	tests := []struct {
		name string
		e    *endpoint.Endpoint
	}{
		{"no parameters", empty},
		{"parameters with accepted values", userEndpoint("src/UserController.java")},
	}

	for _, c := range []codec.Codec{codec.JSON{}, codec.YAML{}} {
		for _, tt := range tests {
			t.Run(c.Name()+"/"+tt.name, func(t *testing.T) {
				if err := CheckRoundTrip(c, tt.e); err != nil {
					t.Errorf("CheckRoundTrip() error = %v", err)
				}
			})
		}
	}
}

func TestCheckRoundTrip_Lossy(t *testing.T) {
	err := CheckRoundTrip(lossyCodec{}, userEndpoint("src/UserController.java"))

	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("CheckRoundTrip() error = %v, want *MismatchError", err)
	}
	if mismatch.Field != "data type source of view" {
		t.Errorf("Field = %q", mismatch.Field)
	}
	if !strings.Contains(mismatch.Endpoint, "/users/{id}") {
		t.Errorf("Endpoint = %q, should identify the endpoint", mismatch.Endpoint)
	}
}

func TestCheckRoundTrip_AcceptedValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *endpoint.RouteParameter)
		wantErr bool
	}{
		{"reordered", func(p *endpoint.RouteParameter) {
			if p.AcceptedValues != nil {
				p.AcceptedValues = []string{"summary", "full"}
			}
		}, false},
		{"dropped value", func(p *endpoint.RouteParameter) {
			if p.AcceptedValues != nil {
				p.AcceptedValues = []string{"full"}
			}
		}, true},
		{"became absent", func(p *endpoint.RouteParameter) {
			p.AcceptedValues = nil
		}, true},
		{"param type changed", func(p *endpoint.RouteParameter) {
			p.ParamType = endpoint.Unknown
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRoundTrip(valuesCodec{mutate: tt.mutate}, userEndpoint("a.java"))
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckRoundTrip() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckCollectionCount(t *testing.T) {
	root := userEndpoint("a.java")
	root.AddVariant(userEndpoint("b.java"))
	flat := endpoint.Flatten([]*endpoint.Endpoint{root})

	if err := CheckCollectionCount(codec.JSON{}, flat); err != nil {
		t.Errorf("CheckCollectionCount() error = %v", err)
	}
	if err := CheckCollectionCount(droppingCodec{}, flat); !errors.Is(err, ErrCollectionCount) {
		t.Errorf("CheckCollectionCount() error = %v, want ErrCollectionCount", err)
	}
}

// =============================================================================
// Validator Tests
// =============================================================================

func TestValidator_Valid(t *testing.T) {
	root := sourceTree(t, "src/UserController.java", "src/Admin.java")
	parent := userEndpoint("src/UserController.java")
	parent.AddVariant(userEndpoint("src/Admin.java"))

	v, _ := newBufferValidator(nil)
	result := v.Run(root, []*endpoint.Endpoint{parent})

	if !result.OK() {
		t.Fatalf("Run() error = %v", result.Err)
	}
	if result.Checked != 2 {
		t.Errorf("Checked = %d, want 2", result.Checked)
	}
	if !v.Validate(root, []*endpoint.Endpoint{parent}) {
		t.Error("Validate() = false, want true")
	}
}

func TestValidator_AbsolutePathRejected(t *testing.T) {
	root := sourceTree(t, "src/UserController.java")
	abs, err := filepath.Abs(root)
	if err != nil {
		t.Fatal(err)
	}
	e := userEndpoint(filepath.ToSlash(abs) + "/src/UserController.java")

	v, buf := newBufferValidator(nil)
	result := v.Run(root, []*endpoint.Endpoint{e})

	if !errors.Is(result.Err, ErrAbsolutePath) {
		t.Fatalf("Run() error = %v, want ErrAbsolutePath", result.Err)
	}
	if errors.Is(result.Err, ErrMissingFile) {
		t.Error("an absolute path must not be reported as a missing file")
	}
	if !strings.Contains(buf.String(), "absolute file path") {
		t.Errorf("log = %s, should explain the failure", buf.String())
	}
}

func TestValidator_MissingFile(t *testing.T) {
	root := sourceTree(t)

	v, _ := newBufferValidator(nil)
	result := v.Run(root, []*endpoint.Endpoint{userEndpoint("src/Gone.java")})

	if !errors.Is(result.Err, ErrMissingFile) {
		t.Errorf("Run() error = %v, want ErrMissingFile", result.Err)
	}
}

func TestValidator_EmptyPathWarnsOnly(t *testing.T) {
	v, buf := newBufferValidator(nil)
	result := v.Run(sourceTree(t), []*endpoint.Endpoint{userEndpoint("")})

	if !result.OK() {
		t.Fatalf("Run() error = %v, want success", result.Err)
	}
	if len(result.Warnings) != 1 || !strings.Contains(buf.String(), "empty file path") {
		t.Errorf("Warnings = %v, want one empty path warning", result.Warnings)
	}
}

func TestValidator_LibraryEndpointSkipsFileCheck(t *testing.T) {
	v, _ := newBufferValidator(nil)
	result := v.Run(sourceTree(t), []*endpoint.Endpoint{userEndpoint("spring-security.jar" + endpoint.LibraryMarker)})

	if !result.OK() {
		t.Errorf("Run() error = %v, want success", result.Err)
	}
}

func TestValidator_LossyCodecFails(t *testing.T) {
	root := sourceTree(t, "a.java")

	v, _ := newBufferValidator(lossyCodec{})
	if v.Validate(root, []*endpoint.Endpoint{userEndpoint("a.java")}) {
		t.Error("Validate() = true, want false for a lossy codec")
	}
}

func TestValidator_CountMismatchShortCircuits(t *testing.T) {
	v, _ := newBufferValidator(droppingCodec{})
	result := v.Run(sourceTree(t), []*endpoint.Endpoint{userEndpoint("missing.java")})

	if !errors.Is(result.Err, ErrCollectionCount) {
		t.Errorf("Run() error = %v, want ErrCollectionCount before any file check", result.Err)
	}
	if result.Checked != 0 {
		t.Errorf("Checked = %d, want 0", result.Checked)
	}
}

func TestValidator_LineRangeIsAdvisory(t *testing.T) {
	root := sourceTree(t, "a.java")
	e := userEndpoint("a.java")
	e.StartingLine = 12
	e.EndingLine = 3

	v, _ := newBufferValidator(nil)
	result := v.Run(root, []*endpoint.Endpoint{e})

	if !result.OK() {
		t.Fatalf("Run() error = %v, want success", result.Err)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "line range") {
		t.Errorf("Warnings = %v, want a line range warning", result.Warnings)
	}
}

func TestValidator_StructureFailureIsAdvisory(t *testing.T) {
	root := sourceTree(t, "a.java")
	e := userEndpoint("a.java")
	e.PathNodes = []endpoint.PathNode{{Type: "regex", Value: "x"}}

	v, _ := newBufferValidator(nil)
	result := v.Run(root, []*endpoint.Endpoint{e})

	if !result.OK() {
		t.Fatalf("Run() error = %v, want success", result.Err)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "structure") {
		t.Errorf("Warnings = %v, want a structure warning", result.Warnings)
	}
}

// =============================================================================
// Duplicate Tests
// =============================================================================

func TestValidator_ValidateDuplicates(t *testing.T) {
	a := userEndpoint("a.java")
	b := userEndpoint("a.java")
	c := userEndpoint("a.java")
	c.URLPath = "/accounts/{id}"

	v, buf := newBufferValidator(nil)
	ok, clusters := v.ValidateDuplicates([]*endpoint.Endpoint{a, b, c})

	if ok {
		t.Error("ValidateDuplicates() = true, want false")
	}
	if len(clusters) != 1 || len(clusters[0]) != 2 {
		t.Fatalf("clusters = %v, want one pair", clusters)
	}
	if !strings.Contains(buf.String(), "Found 1 duplicated endpoints:") {
		t.Errorf("log = %s", buf.String())
	}
	if !strings.Contains(buf.String(), "- 2: GET /users/{id}") {
		t.Errorf("log = %s, should list the cluster", buf.String())
	}

	ok, clusters = v.ValidateDuplicates([]*endpoint.Endpoint{a, c})
	if !ok || clusters != nil {
		t.Errorf("ValidateDuplicates() = %v, %v; want true, nil", ok, clusters)
	}
}
