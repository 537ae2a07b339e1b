// File: internal/report/writer.go
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// Writer renders a RunSummary to an output.
type Writer interface {
	// Write renders the summary.
	Write(s RunSummary) error
	// Close finalizes the output and releases any file handle.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a Writer for format ("markdown" or "text") writing to
// outputPath. An empty path or "stdout" writes to standard output.
func New(format, outputPath string) (Writer, error) {
	var wrap func(io.WriteCloser) Writer
	switch format {
	case "markdown", "md":
		wrap = func(out io.WriteCloser) Writer { return &markdownWriter{out: out} }
	case "text":
		wrap = func(out io.WriteCloser) Writer { return &textWriter{out: out} }
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	if outputPath == "" || outputPath == "stdout" {
		return wrap(&nopWriteCloser{os.Stdout}), nil
	}

	path, err := homedir.Expand(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to expand output path %s: %w", outputPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	return wrap(f), nil
}

type textWriter struct {
	out io.WriteCloser
}

func (w *textWriter) Write(s RunSummary) error {
	_, err := io.WriteString(w.out, Format(s)+"\n")
	return err
}

func (w *textWriter) Close() error { return w.out.Close() }

type markdownWriter struct {
	out io.WriteCloser
}

func (w *markdownWriter) Write(s RunSummary) error { return WriteMarkdown(w.out, s) }

func (w *markdownWriter) Close() error { return w.out.Close() }
