// Package file appends collection cycle reports to a newline-delimited JSON file.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/vshulcz/prefect-exporter/internal/services/exporter"
)

// record is one line of the audit file.
type record struct {
	Start      time.Time `json:"ts"`
	Error      string    `json:"error,omitempty"`
	SinceMS    int64     `json:"since_ms"`
	DurationMS int64     `json:"duration_ms"`
	Failed     int       `json:"failed"`
}

// Writer is an exporter.Observer that appends every report to a file.
type Writer struct {
	path string
	mu   sync.Mutex
}

var _ exporter.Observer = (*Writer)(nil)

// New creates a Writer for path. The file is opened per write so it can be
// rotated externally.
func New(path string) *Writer {
	return &Writer{path: path}
}

// Notify appends r as a single JSON line.
func (w *Writer) Notify(_ context.Context, r exporter.Report) (retErr error) {
	if w == nil || w.path == "" {
		return nil
	}

	rec := record{
		Start:      r.Start.UTC(),
		SinceMS:    r.Since.Milliseconds(),
		DurationMS: r.Duration.Milliseconds(),
		Failed:     r.Failed,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal cycle report: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close audit file: %w", cerr)
		}
	}()

	if _, err := f.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write audit file: %w", err)
	}
	return nil
}
