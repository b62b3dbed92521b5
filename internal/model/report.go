// Package model defines the diagnostic records written by uiv1.
package model

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Report kinds.
const (
	KindLeak     = "leak"
	KindCosmetic = "cosmetic"
)

// Severity levels.
const (
	SeverityInfo    = 0
	SeverityWarning = 1
	SeverityError   = 2
)

// SeverityNames maps severity levels to human-readable names.
var SeverityNames = map[int]string{
	SeverityInfo:    "info",
	SeverityWarning: "warning",
	SeverityError:   "error",
}

// Report is a single diagnostic entry: a leaked widget or owner found by a
// cleanup check, or a cosmetic failure downgraded by the window manager.
type Report struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Timestamp   int64  `json:"timestamp"`
	AppTimeMS   int64  `json:"app_time_ms,omitempty"`
	AckedAt     int64  `json:"acked_at,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`

	Kind         string `json:"kind"`
	Severity     int    `json:"severity"`
	SeverityName string `json:"severity_name"`

	Window   string `json:"window,omitempty"`
	WindowID uint64 `json:"window_id,omitempty"`
	Owner    string `json:"owner,omitempty"`
	Widget   string `json:"widget,omitempty"` // widget kind, or "owner"
	Handle   string `json:"handle,omitempty"`
	Op       string `json:"op,omitempty"`
	Message  string `json:"message"`
}

// Validation errors.
var (
	ErrEmptyID          = errors.New("id cannot be empty")
	ErrEmptySource      = errors.New("source cannot be empty")
	ErrInvalidKind      = errors.New("kind must be leak or cosmetic")
	ErrEmptyMessage     = errors.New("message cannot be empty")
	ErrInvalidSeverity  = errors.New("severity must be 0, 1, or 2")
	ErrInvalidTimestamp = errors.New("timestamp must be greater than 0")
)

// NewReport creates a Report with a generated ULID and the current time.
func NewReport(kind, source string) (*Report, error) {
	now := time.Now()
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ULID: %w", err)
	}

	r := &Report{
		ID:        id.String(),
		Source:    source,
		Timestamp: now.Unix(),
		Kind:      kind,
	}
	if kind == KindLeak {
		r.SetSeverity(SeverityError)
	} else {
		r.SetSeverity(SeverityWarning)
	}
	return r, nil
}

// Validate checks that the report has all required fields.
func (r *Report) Validate() error {
	if r.ID == "" {
		return ErrEmptyID
	}
	if r.Source == "" {
		return ErrEmptySource
	}
	if r.Kind != KindLeak && r.Kind != KindCosmetic {
		return ErrInvalidKind
	}
	if r.Message == "" {
		return ErrEmptyMessage
	}
	if r.Severity < SeverityInfo || r.Severity > SeverityError {
		return ErrInvalidSeverity
	}
	if r.Timestamp <= 0 {
		return ErrInvalidTimestamp
	}
	return nil
}

// SetSeverity sets the severity level and its name.
func (r *Report) SetSeverity(level int) {
	if level < SeverityInfo || level > SeverityError {
		level = SeverityWarning
	}
	r.Severity = level
	r.SeverityName = SeverityNames[level]
}

// RelativeTime returns a human-readable relative time string.
// Examples: "just now", "5m ago", "2h ago", "1d ago".
func (r *Report) RelativeTime() string {
	diff := time.Now().Unix() - r.Timestamp

	switch {
	case diff < 0:
		return "in the future"
	case diff < 60:
		return "just now"
	case diff < 3600:
		return fmt.Sprintf("%dm ago", diff/60)
	case diff < 86400:
		return fmt.Sprintf("%dh ago", diff/3600)
	}
	return fmt.Sprintf("%dd ago", diff/86400)
}

// MessageTruncated returns the message cut to maxLen characters, with "..."
// appended when shortened.
func (r *Report) MessageTruncated(maxLen int) string {
	if maxLen <= 0 {
		return ""
	}

	msg := strings.Join(strings.Fields(r.Message), " ")
	if len(msg) <= maxLen {
		return msg
	}
	if maxLen <= 3 {
		return msg[:maxLen]
	}
	return msg[:maxLen-3] + "..."
}

// Subject returns the thing the report is about: the leaked handle, the
// owner, or the failed operation.
func (r *Report) Subject() string {
	switch {
	case r.Handle != "":
		return r.Widget + r.Handle
	case r.Owner != "":
		return r.Owner
	}
	return r.Op
}

// DedupeKey returns a string key for deduplication.
func (r *Report) DedupeKey() string {
	return fmt.Sprintf("%s:%s:%d:%s:%s:%s:%s:%d",
		r.Kind,
		r.Window,
		r.WindowID,
		r.Owner,
		r.Handle,
		r.Op,
		r.Message,
		r.Timestamp,
	)
}

// SuppressKey identifies every report of the same recurring problem,
// independent of when it happened or which owner instance caused it.
func (r *Report) SuppressKey() string {
	return fmt.Sprintf("%s:%s:%s:%s", r.Kind, r.Window, r.Widget, r.Op)
}

// ComputeContentHash returns a SHA256 hash of the report content.
func (r *Report) ComputeContentHash() string {
	hash := sha256.Sum256([]byte(r.DedupeKey()))
	return hex.EncodeToString(hash[:])
}

// EnsureContentHash sets ContentHash if not already set.
func (r *Report) EnsureContentHash() {
	if r.ContentHash == "" {
		r.ContentHash = r.ComputeContentHash()
	}
}

// TimestampTime returns the timestamp as a time.Time.
func (r *Report) TimestampTime() time.Time {
	return time.Unix(r.Timestamp, 0)
}

// IsAcked reports whether a developer acknowledged the report.
func (r *Report) IsAcked() bool {
	return r.AckedAt > 0
}

// MarkAcked acknowledges the report at the current time.
func (r *Report) MarkAcked() {
	if r.AckedAt == 0 {
		r.AckedAt = time.Now().Unix()
	}
}

// Unack clears the acknowledged state.
func (r *Report) Unack() {
	r.AckedAt = 0
}
