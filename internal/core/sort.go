package core

import (
	"sort"
	"strings"

	"github.com/jmylchreest/uiv1/internal/model"
)

// SortField represents a field to sort by.
type SortField string

const (
	SortByTimestamp SortField = "timestamp"
	SortByWindow    SortField = "window"
	SortBySeverity  SortField = "severity"
	SortByKind      SortField = "kind"
)

// SortOrder represents ascending or descending order.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortOptions specifies sorting criteria.
type SortOptions struct {
	Field SortField
	Order SortOrder
}

// DefaultSortOptions returns default sort options (newest first).
func DefaultSortOptions() SortOptions {
	return SortOptions{
		Field: SortByTimestamp,
		Order: SortDesc,
	}
}

// Sort sorts reports in place. Reports that compare equal keep their order.
func Sort(reports []model.Report, opts SortOptions) {
	if len(reports) == 0 {
		return
	}

	sort.SliceStable(reports, func(i, j int) bool {
		a, b := reports[i], reports[j]
		var less, equal bool

		switch opts.Field {
		case SortByWindow:
			wa, wb := strings.ToLower(a.Window), strings.ToLower(b.Window)
			less, equal = wa < wb, wa == wb
		case SortBySeverity:
			less, equal = a.Severity < b.Severity, a.Severity == b.Severity
		case SortByKind:
			less, equal = a.Kind < b.Kind, a.Kind == b.Kind
		default:
			less, equal = a.Timestamp < b.Timestamp, a.Timestamp == b.Timestamp
		}

		if opts.Order == SortDesc {
			return !less && !equal
		}
		return less
	})
}

// ParseSortField parses a sort field string.
func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "window", "win", "w":
		return SortByWindow, nil
	case "severity", "level", "s":
		return SortBySeverity, nil
	case "kind", "k":
		return SortByKind, nil
	}
	return SortByTimestamp, nil
}

// ParseSortOrder parses a sort order string.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending", "a":
		return SortAsc, nil
	}
	return SortDesc, nil
}
