// Package store keeps the diagnostic report log and the saved UI state.
package store

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jmylchreest/uiv1/internal/cleanup"
	"github.com/jmylchreest/uiv1/internal/core"
	"github.com/jmylchreest/uiv1/internal/model"
	"github.com/jmylchreest/uiv1/internal/window"
)

// ChangeType indicates the type of log change.
type ChangeType int

const (
	// ChangeTypeAdd indicates reports were added.
	ChangeTypeAdd ChangeType = iota
	// ChangeTypeClear indicates all reports were cleared.
	ChangeTypeClear
	// ChangeTypePrune indicates old reports were pruned.
	ChangeTypePrune
	// ChangeTypeUpdate indicates a report was acknowledged or removed.
	ChangeTypeUpdate
)

// ChangeEvent signals log content changes.
type ChangeEvent struct {
	Type   ChangeType
	Count  int
	Source string
}

// ReportLog holds diagnostic reports in memory, mirrored to a Persistence.
// It satisfies cleanup.Reporter and is safe for concurrent use.
type ReportLog struct {
	mu          sync.RWMutex
	reports     []model.Report
	index       map[string]int // id -> slice index
	hashIndex   map[string]int // content hash -> slice index
	suppressed  map[string]bool
	persistence Persistence
	source      string
	logger      *slog.Logger

	subscribers []chan ChangeEvent
	closed      bool
}

var _ cleanup.Reporter = (*ReportLog)(nil)

// NewReportLog creates a ReportLog. Reports it creates are tagged with
// source. persistence may be nil.
func NewReportLog(persistence Persistence, source string, logger *slog.Logger) *ReportLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportLog{
		index:       make(map[string]int),
		hashIndex:   make(map[string]int),
		suppressed:  make(map[string]bool),
		persistence: persistence,
		source:      source,
		logger:      logger,
	}
}

// Add adds a single report. Duplicates and suppressed reports are dropped.
func (s *ReportLog) Add(r model.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if !s.admit(&r) {
		return nil
	}
	s.insert(r)

	if s.persistence != nil {
		if err := s.persistence.Append(r); err != nil {
			return err
		}
	}

	s.notifyChange(ChangeEvent{Type: ChangeTypeAdd, Count: 1, Source: r.Source})
	return nil
}

// AddBatch adds multiple reports with a single persistence write.
func (s *ReportLog) AddBatch(rs []model.Report) error {
	if len(rs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	toAdd := make([]model.Report, 0, len(rs))
	for i := range rs {
		if !s.admit(&rs[i]) {
			continue
		}
		s.insert(rs[i])
		toAdd = append(toAdd, rs[i])
	}
	if len(toAdd) == 0 {
		return nil
	}

	if s.persistence != nil {
		if err := s.persistence.AppendBatch(toAdd); err != nil {
			return err
		}
	}

	s.notifyChange(ChangeEvent{Type: ChangeTypeAdd, Count: len(toAdd), Source: toAdd[0].Source})
	return nil
}

func (s *ReportLog) admit(r *model.Report) bool {
	r.EnsureContentHash()
	if s.suppressed[r.SuppressKey()] {
		return false
	}
	if _, ok := s.hashIndex[r.ContentHash]; ok {
		return false
	}
	_, ok := s.index[r.ID]
	return !ok
}

func (s *ReportLog) insert(r model.Report) {
	idx := len(s.reports)
	s.reports = append(s.reports, r)
	s.index[r.ID] = idx
	s.hashIndex[r.ContentHash] = idx
}

func (s *ReportLog) reindex() {
	s.index = make(map[string]int, len(s.reports))
	s.hashIndex = make(map[string]int, len(s.reports))
	for i, r := range s.reports {
		s.index[r.ID] = i
		s.hashIndex[r.ContentHash] = i
	}
}

// ReportLeak records a leak found by a cleanup check.
func (s *ReportLog) ReportLeak(l cleanup.LeakDetected) {
	r, err := model.NewReport(model.KindLeak, s.source)
	if err != nil {
		s.logger.Warn("failed to create leak report", "error", err)
		return
	}
	r.AppTimeMS = l.DetectedAt.Milliseconds()
	r.Window = l.Window
	r.WindowID = l.WindowID
	r.Owner = l.Owner
	r.Widget = l.Kind
	if !l.Handle.IsZero() {
		r.Handle = l.Handle.String()
	}
	r.Message = l.Error()

	if err := s.Add(*r); err != nil {
		s.logger.Warn("failed to record leak report", "owner", l.Owner, "error", err)
	}
}

// ReportCosmetic records a failure the window manager downgraded to a
// warning.
func (s *ReportLog) ReportCosmetic(e *window.CosmeticError) {
	r, err := model.NewReport(model.KindCosmetic, s.source)
	if err != nil {
		s.logger.Warn("failed to create cosmetic report", "error", err)
		return
	}
	r.Window = e.Window
	r.Op = e.Op
	r.Message = e.Error()

	if err := s.Add(*r); err != nil {
		s.logger.Warn("failed to record cosmetic report", "op", e.Op, "error", err)
	}
}

// All returns every report, newest first.
func (s *ReportLog) All() []model.Report {
	s.mu.RLock()
	result := make([]model.Report, len(s.reports))
	copy(result, s.reports)
	s.mu.RUnlock()

	core.Sort(result, core.DefaultSortOptions())
	return result
}

// Filter returns the reports matching opts, sorted by sortOpts.
func (s *ReportLog) Filter(opts core.FilterOptions, sortOpts core.SortOptions) []model.Report {
	s.mu.RLock()
	all := make([]model.Report, len(s.reports))
	copy(all, s.reports)
	s.mu.RUnlock()

	// Sort before limiting so the limit keeps the right end.
	core.Sort(all, sortOpts)
	return core.Filter(all, opts)
}

// GetByID returns a report by its ULID.
func (s *ReportLog) GetByID(id string) *model.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx, ok := s.index[id]; ok {
		r := s.reports[idx]
		return &r
	}
	return nil
}

// Lookup finds a report by full ULID or by an unambiguous ULID prefix.
func (s *ReportLog) Lookup(input string) *model.Report {
	if r := s.GetByID(input); r != nil {
		return r
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if r := core.LookupByPrefix(s.reports, input); r != nil {
		found := *r
		return &found
	}
	return nil
}

// Count returns the total number of reports.
func (s *ReportLog) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

// Ack marks a report as acknowledged. Unknown ids are ignored.
func (s *ReportLog) Ack(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	idx, ok := s.index[id]
	if !ok || s.reports[idx].IsAcked() {
		return nil
	}
	s.reports[idx].MarkAcked()

	if s.persistence != nil {
		if err := s.persistence.Rewrite(s.reports); err != nil {
			return err
		}
	}

	s.notifyChange(ChangeEvent{Type: ChangeTypeUpdate, Count: 1})
	return nil
}

// Suppress removes a report and every stored report sharing its suppress
// key, and drops such reports in future. It returns the key, or "" if id
// is unknown.
func (s *ReportLog) Suppress(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrStoreClosed
	}

	idx, ok := s.index[id]
	if !ok {
		return "", nil
	}
	key := s.reports[idx].SuppressKey()
	s.suppressed[key] = true

	kept := s.reports[:0]
	removed := 0
	for _, r := range s.reports {
		if r.SuppressKey() == key {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.reports = kept
	s.reindex()

	if s.persistence != nil {
		if err := s.persistence.Rewrite(s.reports); err != nil {
			return key, err
		}
	}

	s.notifyChange(ChangeEvent{Type: ChangeTypeUpdate, Count: removed})
	return key, nil
}

// LoadSuppressions adds suppressed keys, e.g. from a SuppressFile.
func (s *ReportLog) LoadSuppressions(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.suppressed[k] = true
	}
}

// Suppressions returns the suppressed keys, sorted.
func (s *ReportLog) Suppressions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.suppressed))
	for k := range s.suppressed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Prune removes reports older than maxAge and returns how many were removed.
func (s *ReportLog) Prune(maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	cutoff := time.Now().Add(-maxAge)
	kept := s.reports[:0]
	for _, r := range s.reports {
		if r.TimestampTime().Before(cutoff) {
			continue
		}
		kept = append(kept, r)
	}
	removed := len(s.reports) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	s.reports = kept
	s.reindex()

	if s.persistence != nil {
		if err := s.persistence.Rewrite(s.reports); err != nil {
			return removed, err
		}
	}

	s.notifyChange(ChangeEvent{Type: ChangeTypePrune, Count: removed})
	return removed, nil
}

// Clear removes all reports.
func (s *ReportLog) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	count := len(s.reports)
	s.reports = nil
	s.reindex()

	if s.persistence != nil {
		if err := s.persistence.Clear(); err != nil {
			return err
		}
	}

	s.notifyChange(ChangeEvent{Type: ChangeTypeClear, Count: count})
	return nil
}

// Hydrate loads reports from persistence, skipping ones already held.
func (s *ReportLog) Hydrate() error {
	if s.persistence == nil {
		return nil
	}

	reports, err := s.persistence.Load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for i := range reports {
		if !s.admit(&reports[i]) {
			// An ack written by another process replaces our copy.
			if idx, ok := s.index[reports[i].ID]; ok && reports[i].IsAcked() && !s.reports[idx].IsAcked() {
				s.reports[idx].AckedAt = reports[i].AckedAt
			}
			continue
		}
		s.insert(reports[i])
		added++
	}

	if added > 0 {
		s.notifyChange(ChangeEvent{Type: ChangeTypeAdd, Count: added, Source: "persistence"})
	}
	return nil
}

// Subscribe returns a channel that receives change events.
func (s *ReportLog) Subscribe() <-chan ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan ChangeEvent, 10)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *ReportLog) Unsubscribe(ch <-chan ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close releases resources and closes all subscriber channels.
func (s *ReportLog) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil

	if s.persistence != nil {
		return s.persistence.Close()
	}
	return nil
}

// notifyChange sends an event to every subscriber without blocking.
func (s *ReportLog) notifyChange(event ChangeEvent) {
	for _, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Errors
var (
	ErrStoreClosed = storeError("report log is closed")
)

type storeError string

func (e storeError) Error() string {
	return string(e)
}
