// Package input provides importers that read diagnostic reports produced
// elsewhere, such as a CI run or another machine's report log.
package input

import (
	"context"
	"os"

	"github.com/jmylchreest/uiv1/internal/model"
)

// Importer fetches reports from a source.
type Importer interface {
	// Name returns the importer identifier (e.g., "stdin", "file").
	Name() string

	// Import fetches reports from the source.
	Import(ctx context.Context) ([]model.Report, error)
}

// NewImporter creates an Importer for source: "-" or "stdin" reads
// standard input, anything else is a file path.
func NewImporter(source string) (Importer, error) {
	switch source {
	case "", "-", "stdin":
		return NewStdinImporter(), nil
	}
	if _, err := os.Stat(source); err != nil {
		return nil, &ImportError{
			Source:  source,
			Message: "report file unavailable",
			Err:     err,
		}
	}
	return NewFileImporter(source), nil
}

// ImportError represents an import failure.
type ImportError struct {
	Source  string
	Message string
	Err     error
}

func (e *ImportError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ImportError) Unwrap() error {
	return e.Err
}
