// Package output provides output formatters for diagnostic reports.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/jmylchreest/uiv1/internal/model"
)

// Formatter formats reports for output.
type Formatter interface {
	// Format writes formatted reports to the writer.
	Format(w io.Writer, reports []model.Report) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatDmenu FormatType = "dmenu"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
	FormatPlain FormatType = "plain"
	FormatIDs   FormatType = "ids"
)

// Formats lists every supported format in display order.
var Formats = []FormatType{FormatDmenu, FormatJSON, FormatYAML, FormatPlain, FormatIDs}

// ParseFormatType parses a format name, case-insensitively.
func ParseFormatType(s string) (FormatType, error) {
	want := FormatType(strings.ToLower(strings.TrimSpace(s)))
	for _, f := range Formats {
		if f == want {
			return f, nil
		}
	}
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return "", fmt.Errorf("unknown format %q (use %s)", s, strings.Join(names, ", "))
}

// NewFormatter creates a formatter for the specified format type. Unknown
// types get the dmenu formatter.
func NewFormatter(format FormatType, opts FormatterOptions) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(opts)
	case FormatYAML:
		return NewYAMLFormatter()
	case FormatPlain:
		return NewPlainFormatter(opts)
	case FormatIDs:
		return NewIDsFormatter()
	case FormatDmenu:
		fallthrough
	default:
		return NewDmenuFormatter(opts)
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template       string // Custom template for dmenu/plain format
	ShowIndex      bool   // Show 1-based index prefix
	ShowTime       bool   // Show relative time
	ShowWindow     bool   // Show window name
	MessageMaxLen  int    // Maximum message length (0 = unlimited)
	Separator      string // Field separator for dmenu format
	IncludeNewline bool   // Include newlines in message (default: replace with space)
}

// DefaultFormatterOptions returns sensible defaults for dmenu output.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		ShowIndex:      true,
		ShowTime:       true,
		ShowWindow:     true,
		MessageMaxLen:  80,
		Separator:      " | ",
		IncludeNewline: false,
	}
}
