package core

import (
	"slices"
	"strings"

	"github.com/jmylchreest/uiv1/internal/model"
)

// LookupByID finds a report by its ULID. Returns nil if not found.
func LookupByID(reports []model.Report, id string) *model.Report {
	for i := range reports {
		if reports[i].ID == id {
			return &reports[i]
		}
	}
	return nil
}

// LookupByIndex finds a report by its 1-based index.
// Returns nil if index is out of bounds.
func LookupByIndex(reports []model.Report, index int) *model.Report {
	idx := index - 1
	if idx < 0 || idx >= len(reports) {
		return nil
	}
	return &reports[idx]
}

// LookupByPrefix finds the single report whose ULID starts with prefix
// (case-insensitive). Returns nil when nothing or more than one matches.
func LookupByPrefix(reports []model.Report, prefix string) *model.Report {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil
	}

	var found *model.Report
	for i := range reports {
		if strings.HasPrefix(reports[i].ID, prefix) {
			if found != nil {
				return nil
			}
			found = &reports[i]
		}
	}
	return found
}

// Search finds reports whose message, owner or window contains term.
// Case-insensitive substring match.
func Search(reports []model.Report, term string) []model.Report {
	if term == "" {
		return reports
	}

	term = strings.ToLower(term)
	var result []model.Report
	for _, r := range reports {
		if strings.Contains(strings.ToLower(r.Message), term) ||
			strings.Contains(strings.ToLower(r.Owner), term) ||
			strings.Contains(strings.ToLower(r.Window), term) {
			result = append(result, r)
		}
	}
	return result
}

// UniqueWindows returns the sorted set of window names in reports.
func UniqueWindows(reports []model.Report) []string {
	seen := make(map[string]bool)
	var windows []string

	for _, r := range reports {
		if r.Window != "" && !seen[r.Window] {
			seen[r.Window] = true
			windows = append(windows, r.Window)
		}
	}

	slices.SortFunc(windows, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return windows
}
