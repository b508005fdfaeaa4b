// Package report renders scan results for humans (Markdown) and tools (JSON).
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/use-agent/tagscope/models"
)

// Writer writes one scan result to its destination.
type Writer interface {
	Write(result *models.ScanResult) (int, error)
}

// New returns the writer for format: "json" or "markdown".
func New(format string, output io.Writer) (Writer, error) {
	switch format {
	case "json", "":
		return NewJSONWriter(output), nil
	case "markdown", "md":
		return NewMarkdownWriter(output), nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// JSONWriter outputs indented JSON.
type JSONWriter struct {
	baseWriter
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer) *JSONWriter {
	return &JSONWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the result as indented JSON followed by a newline.
func (w *JSONWriter) Write(result *models.ScanResult) (int, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to marshal result: %w", err)
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
