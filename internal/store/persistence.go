package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmylchreest/uiv1/internal/model"
)

// SchemaVersion is the current persistence schema version.
const SchemaVersion = 1

// Persistence defines the interface for report storage.
type Persistence interface {
	// Load reads all reports from storage.
	Load() ([]model.Report, error)

	// Append adds a report to storage.
	Append(r model.Report) error

	// AppendBatch adds multiple reports efficiently.
	AppendBatch(rs []model.Report) error

	// Rewrite replaces the entire storage file (used after prune/ack).
	Rewrite(rs []model.Report) error

	// Clear removes all stored reports.
	Clear() error

	// Close releases file handles and resources.
	Close() error
}

// schemaHeader is the first line of the JSONL file.
type schemaHeader struct {
	SchemaVersion int   `json:"uiv1_schema_version"`
	CreatedAt     int64 `json:"created_at"`
}

// JSONLPersistence implements Persistence using JSONL files.
type JSONLPersistence struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	closed bool
}

// NewJSONLPersistence opens path for appending, creating it and its parent
// directory if needed.
func NewJSONLPersistence(path string) (*JSONLPersistence, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	p := &JSONLPersistence{
		path: path,
		file: file,
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.Size() == 0 {
		if err := p.writeHeader(); err != nil {
			file.Close()
			return nil, err
		}
	}

	return p, nil
}

// Path returns the file path.
func (p *JSONLPersistence) Path() string {
	return p.path
}

func (p *JSONLPersistence) writeHeader() error {
	data, err := json.Marshal(schemaHeader{
		SchemaVersion: SchemaVersion,
		CreatedAt:     time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	_, err = p.file.Write(append(data, '\n'))
	return err
}

// ErrPersistenceClosed is returned when operations are attempted on a closed persistence.
var ErrPersistenceClosed = errors.New("persistence is closed")

// Load reads all reports from storage. Malformed lines are skipped.
func (p *JSONLPersistence) Load() ([]model.Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.file == nil {
		return nil, ErrPersistenceClosed
	}

	if _, err := p.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", p.path, err)
	}

	reports, err := readReports(p.file, true)

	if _, serr := p.file.Seek(0, io.SeekEnd); serr != nil && err == nil {
		err = serr
	}
	return reports, err
}

// readReports scans JSONL content. With strict set, a header announcing a
// newer schema is an error.
func readReports(r io.Reader, strict bool) ([]model.Report, error) {
	var reports []model.Report
	scanner := bufio.NewScanner(r)

	const maxLineSize = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var header schemaHeader
		if json.Unmarshal(line, &header) == nil && header.SchemaVersion > 0 {
			if strict && header.SchemaVersion > SchemaVersion {
				return nil, fmt.Errorf("unsupported schema version %d (max: %d)",
					header.SchemaVersion, SchemaVersion)
			}
			continue
		}

		var rep model.Report
		if err := json.Unmarshal(line, &rep); err != nil {
			continue
		}
		if rep.ID != "" {
			reports = append(reports, rep)
		}
	}

	if err := scanner.Err(); err != nil {
		return reports, fmt.Errorf("error reading file: %w", err)
	}
	return reports, nil
}

// Append adds a report to storage.
func (p *JSONLPersistence) Append(r model.Report) error {
	return p.AppendBatch([]model.Report{r})
}

// AppendBatch adds multiple reports and syncs once.
func (p *JSONLPersistence) AppendBatch(rs []model.Report) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.file == nil {
		return ErrPersistenceClosed
	}

	if err := p.writeReports(rs); err != nil {
		return err
	}
	return p.file.Sync()
}

func (p *JSONLPersistence) writeReports(rs []model.Report) error {
	for _, r := range rs {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := p.file.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// Rewrite replaces the entire storage file. The previous file is kept as a
// .bak until the new one is written.
func (p *JSONLPersistence) Rewrite(rs []model.Report) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPersistenceClosed
	}
	return p.replace(rs)
}

// Clear removes all stored reports.
func (p *JSONLPersistence) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPersistenceClosed
	}
	return p.replace(nil)
}

func (p *JSONLPersistence) replace(rs []model.Report) error {
	if p.file != nil {
		if err := p.file.Close(); err != nil {
			return err
		}
		p.file = nil
	}

	backupPath := p.path + ".bak"
	if err := os.Rename(p.path, backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	file, err := os.OpenFile(p.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND, 0600)
	if err != nil {
		os.Rename(backupPath, p.path)
		return fmt.Errorf("failed to create new file: %w", err)
	}
	p.file = file

	if err := p.writeHeader(); err != nil {
		return err
	}
	if err := p.writeReports(rs); err != nil {
		return err
	}
	if err := p.file.Sync(); err != nil {
		return err
	}

	os.Remove(backupPath)
	return nil
}

// Close releases file handles and resources.
func (p *JSONLPersistence) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.file != nil {
		err := p.file.Close()
		p.file = nil
		return err
	}
	return nil
}

// ReadReports reads a report file without opening it for writing. A missing
// file yields no reports.
func ReadReports(path string) ([]model.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return readReports(f, true)
}

// RecoverFromCorruption moves a damaged file aside and rewrites only the
// reports that still parse.
func RecoverFromCorruption(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	valid, _ := readReports(file, false)
	file.Close()

	backupPath := path + ".corrupted." + time.Now().Format("20060102-150405")
	if err := os.Rename(path, backupPath); err != nil {
		return fmt.Errorf("failed to backup corrupted file: %w", err)
	}

	p, err := NewJSONLPersistence(path)
	if err != nil {
		return err
	}
	defer p.Close()

	return p.AppendBatch(valid)
}
