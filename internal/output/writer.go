// Package output renders run reports and endpoint collections.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Writer defines the interface for report writers.
type Writer interface {
	// WriteReport writes a complete run report.
	WriteReport(report *Report) error

	// Close closes the writer.
	Close() error
}

// Config holds output configuration.
type Config struct {
	Format   string `yaml:"format" json:"format"`
	Pretty   bool   `yaml:"pretty" json:"pretty"`
	FilePath string `yaml:"file" json:"file"`
	NoColor  bool   `yaml:"no_color" json:"no_color"`
}

// NewWriter creates a report writer.
func NewWriter(w io.Writer, config Config) Writer {
	switch config.Format {
	case "json":
		return NewJSONWriter(w, config.Pretty)
	default:
		return NewJSONWriter(w, config.Pretty)
	}
}

// JSONWriter writes reports as JSON documents, one per line unless pretty.
type JSONWriter struct {
	mu     sync.Mutex
	writer io.Writer
	pretty bool
	closed bool
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(w io.Writer, pretty bool) *JSONWriter {
	return &JSONWriter{writer: w, pretty: pretty}
}

// WriteReport writes report followed by a newline.
func (j *JSONWriter) WriteReport(report *Report) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return fmt.Errorf("writer is closed")
	}

	var data []byte
	var err error
	if j.pretty {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}
	if err != nil {
		return err
	}

	if _, err := j.writer.Write(data); err != nil {
		return err
	}
	_, err = j.writer.Write([]byte("\n"))
	return err
}

// Close closes the underlying writer if it is an io.Closer.
func (j *JSONWriter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	if closer, ok := j.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// WriteReportFile writes report to path, creating parent directories.
func WriteReportFile(path string, report *Report, config Config) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	w := NewWriter(f, config)
	if err := w.WriteReport(report); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
