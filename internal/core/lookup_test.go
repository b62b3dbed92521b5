package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/uiv1/internal/model"
)

var lookupReports = []model.Report{
	{ID: "01HZX0AAAA", Window: "settings", Owner: "*menu.Screen#1", Message: "holds live button"},
	{ID: "01HZX0BBBB", Window: "inbox", Message: "slide-in asset missing"},
	{ID: "01HZY0CCCC", Window: "Confirm", Message: "still reachable"},
}

func TestLookupByID(t *testing.T) {
	r := LookupByID(lookupReports, "01HZX0BBBB")
	if assert.NotNil(t, r) {
		assert.Equal(t, "inbox", r.Window)
	}
	assert.Nil(t, LookupByID(lookupReports, "nope"))
	assert.Nil(t, LookupByID(nil, "01HZX0BBBB"))
}

func TestLookupByIndex(t *testing.T) {
	tests := []struct {
		name   string
		index  int
		window string
	}{
		{"first", 1, "settings"},
		{"last", 3, "Confirm"},
		{"zero", 0, ""},
		{"negative", -1, ""},
		{"too high", 10, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := LookupByIndex(lookupReports, tt.index)
			if tt.window == "" {
				assert.Nil(t, r)
				return
			}
			if assert.NotNil(t, r) {
				assert.Equal(t, tt.window, r.Window)
			}
		})
	}
}

func TestLookupByPrefix(t *testing.T) {
	r := LookupByPrefix(lookupReports, "01hzy")
	if assert.NotNil(t, r) {
		assert.Equal(t, "Confirm", r.Window)
	}
	assert.Nil(t, LookupByPrefix(lookupReports, "01HZX"), "ambiguous")
	assert.Nil(t, LookupByPrefix(lookupReports, "ZZ"))
	assert.Nil(t, LookupByPrefix(lookupReports, " "))
}

func TestSearch(t *testing.T) {
	assert.Len(t, Search(lookupReports, ""), 3)
	assert.Len(t, Search(lookupReports, "MENU"), 1)
	assert.Len(t, Search(lookupReports, "confirm"), 1)
	assert.Len(t, Search(lookupReports, "i"), 3)
	assert.Empty(t, Search(lookupReports, "nothing"))
}

func TestUniqueWindows(t *testing.T) {
	reports := append([]model.Report{{ID: "x", Window: "inbox"}, {ID: "y"}}, lookupReports...)
	assert.Equal(t, []string{"Confirm", "inbox", "settings"}, UniqueWindows(reports))
}
