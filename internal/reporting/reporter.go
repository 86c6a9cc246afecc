package reporting

import (
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/annonymususer90/my99exch/api/schemas"
)

const (
	FormatXLSX = "xlsx"
	FormatJSON = "json"
)

// Reporter writes audited operations to an output.
type Reporter interface {
	// Write renders the entries. A reporter accepts a single Write.
	Write(entries []schemas.AuditEntry) error
	// Close releases the underlying output (file handles).
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for format writing to outputPath. An empty path or
// "stdout" writes to standard output.
func New(format, outputPath string) (Reporter, error) {
	switch format {
	case FormatXLSX, FormatJSON:
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	if outputPath == "" || outputPath == "stdout" {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	if format == FormatJSON {
		return &jsonReporter{out: writer}, nil
	}
	return &workbookReporter{out: writer}, nil
}

type workbookReporter struct {
	out io.WriteCloser
}

func (r *workbookReporter) Write(entries []schemas.AuditEntry) error {
	return WriteWorkbook(r.out, entries)
}

func (r *workbookReporter) Close() error {
	return r.out.Close()
}

type jsonReporter struct {
	out io.WriteCloser
}

func (r *jsonReporter) Write(entries []schemas.AuditEntry) error {
	if entries == nil {
		entries = []schemas.AuditEntry{}
	}
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("failed to encode audit entries: %w", err)
	}
	return nil
}

func (r *jsonReporter) Close() error {
	return r.out.Close()
}
