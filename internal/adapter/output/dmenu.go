package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/jmylchreest/uiv1/internal/model"
)

// DmenuFormatter formats reports for dmenu/rofi/fuzzel.
type DmenuFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewDmenuFormatter creates a new dmenu formatter.
func NewDmenuFormatter(opts FormatterOptions) *DmenuFormatter {
	f := &DmenuFormatter{opts: opts}

	if opts.Template != "" {
		tmpl, err := template.New("dmenu").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// Format writes reports in dmenu format (one per line).
func (f *DmenuFormatter) Format(w io.Writer, reports []model.Report) error {
	for i := range reports {
		line := f.formatLine(i+1, &reports[i])
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func (f *DmenuFormatter) formatLine(index int, r *model.Report) string {
	if f.template != nil {
		var buf strings.Builder
		data := templateData{
			Index:        index,
			Report:       r,
			RelativeTime: relativeTime(r.Timestamp),
		}
		if err := f.template.Execute(&buf, data); err == nil {
			return buf.String()
		}
	}

	// Default format: index | time | window | [kind] subject: message
	var parts []string
	sep := f.opts.Separator
	if sep == "" {
		sep = " | "
	}

	if f.opts.ShowIndex {
		parts = append(parts, fmt.Sprintf("%d", index))
	}

	if f.opts.ShowTime {
		parts = append(parts, relativeTime(r.Timestamp))
	}

	if f.opts.ShowWindow && r.Window != "" {
		parts = append(parts, r.Window)
	}

	content := "[" + r.Kind + "]"
	if subject := r.Subject(); subject != "" {
		content += " " + subject
	}
	if msg := sanitizeMessage(r.Message, f.opts.MessageMaxLen, f.opts.IncludeNewline); msg != "" {
		content += ": " + msg
	}
	parts = append(parts, content)

	return strings.Join(parts, sep)
}

// templateData provides data for custom templates.
type templateData struct {
	Index        int
	Report       *model.Report
	RelativeTime string
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"truncate": func(s string, maxLen int) string {
			if maxLen <= 0 || len(s) <= maxLen {
				return s
			}
			if maxLen <= 3 {
				return s[:maxLen]
			}
			return s[:maxLen-3] + "..."
		},
		"reltime": func(ts int64) string {
			return relativeTime(ts)
		},
		"severityIcon": func(severity int) string {
			switch severity {
			case model.SeverityInfo:
				return "i"
			case model.SeverityError:
				return "!"
			default:
				return "-"
			}
		},
	}
}

// relativeTime returns a compact relative time string.
func relativeTime(timestamp int64) string {
	if timestamp == 0 {
		return "unknown"
	}

	d := time.Since(time.Unix(timestamp, 0))

	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw", int(d.Hours()/24/7))
	}
}

// sanitizeMessage cleans up message text for single-line display.
func sanitizeMessage(msg string, maxLen int, includeNewline bool) string {
	if !includeNewline {
		msg = strings.ReplaceAll(msg, "\n", " ")
		msg = strings.ReplaceAll(msg, "\r", "")
	}

	for strings.Contains(msg, "  ") {
		msg = strings.ReplaceAll(msg, "  ", " ")
	}

	msg = strings.TrimSpace(msg)

	if maxLen > 0 && len(msg) > maxLen {
		if maxLen <= 3 {
			return msg[:maxLen]
		}
		return msg[:maxLen-3] + "..."
	}

	return msg
}
