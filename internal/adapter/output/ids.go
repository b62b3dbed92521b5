package output

import (
	"fmt"
	"io"

	"github.com/jmylchreest/uiv1/internal/model"
)

// IDsFormatter outputs just the report IDs, one per line.
// Useful for piping to other commands (e.g., uiv1 leaks ack --stdin).
type IDsFormatter struct{}

// NewIDsFormatter creates a new IDs formatter.
func NewIDsFormatter() *IDsFormatter {
	return &IDsFormatter{}
}

// Format writes report IDs to the writer, one per line.
func (f *IDsFormatter) Format(w io.Writer, reports []model.Report) error {
	for _, r := range reports {
		if _, err := fmt.Fprintln(w, r.ID); err != nil {
			return err
		}
	}
	return nil
}
