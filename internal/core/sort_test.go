package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/uiv1/internal/model"
)

func ids(reports []model.Report) []string {
	out := make([]string, len(reports))
	for i, r := range reports {
		out[i] = r.ID
	}
	return out
}

func TestSort(t *testing.T) {
	base := []model.Report{
		{ID: "1", Timestamp: 100, Window: "Settings", Severity: model.SeverityWarning, Kind: model.KindLeak},
		{ID: "2", Timestamp: 300, Window: "inbox", Severity: model.SeverityError, Kind: model.KindCosmetic},
		{ID: "3", Timestamp: 200, Window: "confirm", Severity: model.SeverityError, Kind: model.KindLeak},
	}

	tests := []struct {
		name string
		opts SortOptions
		want []string
	}{
		{"default", DefaultSortOptions(), []string{"2", "3", "1"}},
		{"timestamp asc", SortOptions{Field: SortByTimestamp, Order: SortAsc}, []string{"1", "3", "2"}},
		{"window asc ignores case", SortOptions{Field: SortByWindow, Order: SortAsc}, []string{"3", "2", "1"}},
		{"window desc", SortOptions{Field: SortByWindow, Order: SortDesc}, []string{"1", "2", "3"}},
		{"severity desc is stable", SortOptions{Field: SortBySeverity, Order: SortDesc}, []string{"2", "3", "1"}},
		{"kind asc", SortOptions{Field: SortByKind, Order: SortAsc}, []string{"2", "1", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reports := append([]model.Report(nil), base...)
			Sort(reports, tt.opts)
			assert.Equal(t, tt.want, ids(reports))
		})
	}
}

func TestSort_Empty(t *testing.T) {
	var reports []model.Report
	Sort(reports, DefaultSortOptions())
	assert.Len(t, reports, 0)
}

func TestParseSortField(t *testing.T) {
	tests := map[string]SortField{
		"window":    SortByWindow,
		"W":         SortByWindow,
		"severity":  SortBySeverity,
		"kind":      SortByKind,
		"timestamp": SortByTimestamp,
		"bogus":     SortByTimestamp,
	}
	for input, want := range tests {
		got, err := ParseSortField(input)
		assert.NoError(t, err)
		assert.Equal(t, want, got, input)
	}
}

func TestParseSortOrder(t *testing.T) {
	got, _ := ParseSortOrder("ASC")
	assert.Equal(t, SortAsc, got)
	got, _ = ParseSortOrder("whatever")
	assert.Equal(t, SortDesc, got)
}
