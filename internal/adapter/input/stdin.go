package input

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/uiv1/internal/model"
)

const maxInputSize = 10 * 1024 * 1024 // 10MB

// StdinImporter reads reports from standard input.
type StdinImporter struct {
	reader io.Reader
}

// NewStdinImporter creates a StdinImporter reading from os.Stdin.
func NewStdinImporter() *StdinImporter {
	return &StdinImporter{reader: os.Stdin}
}

// NewStdinImporterWithReader creates a StdinImporter with a custom reader.
func NewStdinImporterWithReader(r io.Reader) *StdinImporter {
	return &StdinImporter{reader: r}
}

// Name returns the importer identifier.
func (a *StdinImporter) Name() string {
	return "stdin"
}

// Import reads reports from standard input.
func (a *StdinImporter) Import(ctx context.Context) ([]model.Report, error) {
	return readReports(ctx, a.reader, "stdin")
}

// FileImporter reads reports from a file.
type FileImporter struct {
	path string
}

// NewFileImporter creates a FileImporter for path.
func NewFileImporter(path string) *FileImporter {
	return &FileImporter{path: path}
}

// Name returns the importer identifier.
func (a *FileImporter) Name() string {
	return "file"
}

// Import reads reports from the file.
func (a *FileImporter) Import(ctx context.Context) ([]model.Report, error) {
	f, err := os.Open(a.path)
	if err != nil {
		return nil, &ImportError{Source: a.path, Message: "failed to open report file", Err: err}
	}
	defer func() { _ = f.Close() }()
	return readReports(ctx, f, a.path)
}

// readReports accepts two formats:
// 1. JSON array of reports (uiv1 leaks list --format json)
// 2. JSONL, one report per line (the report log itself); lines starting
// with '#' are skipped
func readReports(ctx context.Context, r io.Reader, source string) ([]model.Report, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxInputSize+1))
	if err != nil {
		return nil, &ImportError{Source: source, Message: "failed to read input", Err: err}
	}
	if len(data) > maxInputSize {
		return nil, &ImportError{Source: source, Message: "input exceeds 10MB"}
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var entries []model.Report
	if data[0] == '[' {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, &ImportError{Source: source, Message: "failed to parse JSON input", Err: err}
		}
	} else {
		entries, err = parseJSONL(ctx, data, source)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now()
	reports := make([]model.Report, 0, len(entries))
	for i := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if normalize(&entries[i], now) != nil {
			continue
		}
		reports = append(reports, entries[i])
	}
	return reports, nil
}

func parseJSONL(ctx context.Context, data []byte, source string) ([]model.Report, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), maxInputSize)

	var out []model.Report
	line := 0
	for scanner.Scan() {
		line++
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}
		var r model.Report
		if err := json.Unmarshal(text, &r); err != nil {
			return nil, &ImportError{Source: source, Message: "failed to parse line " + strconv.Itoa(line), Err: err}
		}
		out = append(out, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, &ImportError{Source: source, Message: "failed to read input", Err: err}
	}
	return out, nil
}

// normalize fills fields an external producer may omit and validates the
// result.
func normalize(r *model.Report, now time.Time) error {
	if r.ID == "" {
		id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
		if err != nil {
			return err
		}
		r.ID = id.String()
	}
	if r.Source == "" {
		r.Source = "import"
	}
	if r.Timestamp == 0 {
		r.Timestamp = now.Unix()
	}
	r.Kind = strings.ToLower(strings.TrimSpace(r.Kind))
	r.Message = sanitizeString(r.Message)
	r.SetSeverity(r.Severity)
	r.ContentHash = ""
	r.EnsureContentHash()
	return r.Validate()
}

// sanitizeString strips control characters other than newline and tab.
func sanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
