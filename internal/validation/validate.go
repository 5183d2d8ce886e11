package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PentesterFlow/routecheck/internal/codec"
	"github.com/PentesterFlow/routecheck/internal/dedup"
	"github.com/PentesterFlow/routecheck/internal/endpoint"
	"github.com/PentesterFlow/routecheck/internal/logger"
)

// Result is the outcome of one validation pass.
type Result struct {
	// Err is the first fatal failure, nil when validation passed.
	Err error
	// Warnings are advisory findings that did not fail validation.
	Warnings []string
	// Checked is the number of flattened endpoints fully checked.
	Checked int
}

// OK reports whether validation passed.
func (r Result) OK() bool {
	return r.Err == nil
}

// Validator runs the serialization and structure checks.
type Validator struct {
	Codec  codec.Codec
	Logger *logger.Logger
}

// NewValidator creates a validator. A nil codec selects JSON.
func NewValidator(c codec.Codec, log *logger.Logger) *Validator {
	if c == nil {
		c = codec.JSON{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Validator{Codec: c, Logger: log.WithComponent("validation")}
}

// Validate reports whether endpoints pass every fatal check.
func (v *Validator) Validate(sourceRoot string, endpoints []*endpoint.Endpoint) bool {
	return v.Run(sourceRoot, endpoints).OK()
}

// Run validates endpoints found under sourceRoot. It stops at the first
// fatal failure. The route structure check and line range checks only add
// warnings.
func (v *Validator) Run(sourceRoot string, endpoints []*endpoint.Endpoint) Result {
	var result Result
	flat := endpoint.Flatten(endpoints)

	if err := CheckCollectionCount(v.Codec, flat); err != nil {
		v.Logger.WithError(err).Warn("Collection serialization did not match the original input")
		result.Err = err
		return result
	}

	absRoot := sourceRoot
	if abs, err := filepath.Abs(sourceRoot); err == nil {
		absRoot = abs
	}
	absRoot = strings.ReplaceAll(absRoot, "\\", "/")

	for _, e := range flat {
		if err := v.checkPath(sourceRoot, absRoot, e, &result); err != nil {
			result.Err = err
			return result
		}

		if err := e.CheckLines(); err != nil {
			result.warn(v.Logger, fmt.Sprintf("Invalid line range for %s: %v", e, err))
		}
		if err := e.CheckParameters(); err != nil {
			result.warn(v.Logger, fmt.Sprintf("Invalid parameters for %s: %v", e, err))
		}

		if err := CheckRoundTrip(v.Codec, e); err != nil {
			v.Logger.WithError(err).Warn("Failed to validate serialization")
			result.Err = err
			return result
		}
		result.Checked++
	}

	if err := endpoint.NewStructure().AcceptAll(endpoints); err != nil {
		result.warn(v.Logger, fmt.Sprintf("Failed to validate endpoint structure generation: %v", err))
	}

	return result
}

func (v *Validator) checkPath(sourceRoot, absRoot string, e *endpoint.Endpoint, result *Result) error {
	if absRoot != "" && strings.HasPrefix(e.FilePath, absRoot) {
		err := fmt.Errorf("%w: %s", ErrAbsolutePath, e)
		v.Logger.Warnf("Got an absolute file path when a relative path was expected instead, for: %s", e)
		return err
	}

	switch {
	case e.FilePath == "":
		result.warn(v.Logger, fmt.Sprintf("Got an empty file path for: %s", e))
	case !e.IsLibrary():
		full := filepath.Join(sourceRoot, e.FilePath)
		if _, err := os.Stat(full); err != nil {
			v.Logger.Warnf("The source code path '%s' does not exist for: %s", full, e)
			return fmt.Errorf("%w: %s for %s", ErrMissingFile, full, e)
		}
	}
	return nil
}

func (r *Result) warn(log *logger.Logger, msg string) {
	r.Warnings = append(r.Warnings, msg)
	log.Warn(msg)
}

// ValidateDuplicates reports whether the collection is free of duplicates
// and returns the clusters found. Duplicates are logged, never fatal.
func (v *Validator) ValidateDuplicates(endpoints []*endpoint.Endpoint) (bool, [][]*endpoint.Endpoint) {
	clusters := dedup.Cluster(endpoints)
	if len(clusters) == 0 {
		return true, nil
	}

	v.Logger.Warnf("Found %d duplicated endpoints:", len(clusters))
	for _, c := range clusters {
		v.Logger.Warnf("- %d: %s", len(c), c[0])
	}
	return false, clusters
}
