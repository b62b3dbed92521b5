package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/uiv1/internal/model"
)

// PlainFormatter formats reports as plain text.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	f := &PlainFormatter{opts: opts}

	if opts.Template != "" {
		tmpl, err := template.New("plain").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// Format writes reports as plain text.
func (f *PlainFormatter) Format(w io.Writer, reports []model.Report) error {
	for i := range reports {
		if err := f.formatReport(w, i+1, &reports[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *PlainFormatter) formatReport(w io.Writer, index int, r *model.Report) error {
	if f.template != nil {
		data := templateData{
			Index:        index,
			Report:       r,
			RelativeTime: relativeTime(r.Timestamp),
		}
		return f.template.Execute(w, data)
	}

	var sb strings.Builder

	if f.opts.ShowIndex {
		sb.WriteString(fmt.Sprintf("[%d] ", index))
	}

	if f.opts.ShowWindow && r.Window != "" {
		sb.WriteString(fmt.Sprintf("<%s> ", r.Window))
	}

	sb.WriteString(r.Kind)
	if subject := r.Subject(); subject != "" {
		sb.WriteString(" " + subject)
	}
	if r.SeverityName != "" {
		sb.WriteString(" " + r.SeverityName)
	}

	if f.opts.ShowTime && r.Timestamp > 0 {
		sb.WriteString(fmt.Sprintf(" (%s)", humanize.Time(time.Unix(r.Timestamp, 0))))
	}
	if r.IsAcked() {
		sb.WriteString(" [acked]")
	}

	sb.WriteString("\n")

	if r.Message != "" {
		msg := r.Message
		if !f.opts.IncludeNewline {
			msg = strings.ReplaceAll(msg, "\n", " ")
		}
		if f.opts.MessageMaxLen > 3 && len(msg) > f.opts.MessageMaxLen {
			msg = msg[:f.opts.MessageMaxLen-3] + "..."
		}
		sb.WriteString("    " + msg + "\n")
	}

	_, err := w.Write([]byte(sb.String()))
	return err
}

// FormatField outputs a specific field from a report.
func FormatField(r *model.Report, field string) string {
	switch strings.ToLower(field) {
	case "id":
		return r.ID
	case "kind", "type":
		return r.Kind
	case "window", "win":
		return r.Window
	case "owner":
		return r.Owner
	case "widget":
		return r.Widget
	case "handle":
		return r.Handle
	case "op", "operation":
		return r.Op
	case "severity", "level":
		return r.SeverityName
	case "source", "src":
		return r.Source
	case "message", "msg":
		return r.Message
	case "suppress_key":
		return r.SuppressKey()
	case "all", "full":
		return fmt.Sprintf("%s %s\n%s", r.Kind, r.Subject(), r.Message)
	default:
		return r.Message
	}
}
