package tui

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/uiv1/internal/model"
	"github.com/jmylchreest/uiv1/internal/store"
)

func newReport(t *testing.T, window, msg string, ts int64) model.Report {
	t.Helper()
	r, err := model.NewReport(model.KindLeak, "test")
	require.NoError(t, err)
	r.Window = window
	r.Widget = "button"
	r.Handle = "#1.0"
	r.Message = msg
	r.Timestamp = ts
	r.SetSeverity(model.SeverityError)
	return *r
}

func setup(t *testing.T, snapshot SnapshotFunc, check CheckFunc) (Model, *store.ReportLog) {
	t.Helper()
	log := store.NewReportLog(nil, "test", nil)
	t.Cleanup(func() { _ = log.Close() })
	require.NoError(t, log.AddBatch([]model.Report{
		newReport(t, "settings", "button still alive", 1000),
		newReport(t, "inbox", "text still alive", 2000),
	}))

	m := New(nil, log, snapshot, check)
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = update(t, m, loadReportsMsg{})
	return m, log
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func windows(m Model) []string {
	var out []string
	for _, r := range m.visibleReports() {
		out = append(out, r.Window)
	}
	return out
}

func TestModel_ListNewestFirst(t *testing.T) {
	m, _ := setup(t, nil, nil)
	assert.Equal(t, []string{"inbox", "settings"}, windows(m))
	assert.Contains(t, m.View(), "UI Reports")
}

func TestModel_DetailAndBack(t *testing.T) {
	m, _ := setup(t, nil, nil)

	m = update(t, m, keyMsg("enter"))
	assert.Equal(t, ModeDetail, m.mode)
	require.NotNil(t, m.selected)
	assert.Equal(t, "inbox", m.selected.Window)

	detail := m.renderDetail(*m.selected)
	assert.Contains(t, detail, "button#1.0")
	assert.Contains(t, detail, "text still alive")
	assert.Contains(t, detail, "error")

	m = update(t, m, keyMsg("esc"))
	assert.Equal(t, ModeList, m.mode)
	assert.Nil(t, m.selected)
}

func TestModel_AckHidesReport(t *testing.T) {
	m, log := setup(t, nil, nil)

	m = update(t, m, keyMsg("a"))
	assert.Equal(t, []string{"settings"}, windows(m))
	assert.True(t, log.All()[0].IsAcked())

	m = update(t, m, keyMsg("A"))
	assert.Equal(t, []string{"inbox", "settings"}, windows(m))
}

func TestModel_SuppressPersists(t *testing.T) {
	m, log := setup(t, nil, nil)
	f := store.NewSuppressFile(filepath.Join(t.TempDir(), "suppress.json"))
	m = m.WithSuppressFile(f)

	m = update(t, m, keyMsg("x"))
	assert.Equal(t, []string{"settings"}, windows(m))
	assert.Equal(t, 1, log.Count())

	keys, err := f.Load()
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestModel_Search(t *testing.T) {
	m, _ := setup(t, nil, nil)

	m = update(t, m, keyMsg("/"))
	assert.Equal(t, ModeSearch, m.mode)
	for _, r := range "window=settings" {
		m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	assert.Equal(t, []string{"settings"}, windows(m))

	m = update(t, m, keyMsg("esc"))
	assert.Equal(t, ModeList, m.mode)
	assert.Equal(t, []string{"inbox", "settings"}, windows(m))
}

func TestModel_StackView(t *testing.T) {
	snap := func(context.Context) (string, error) { return "mode: menu\n", nil }
	m, _ := setup(t, snap, nil)

	next, cmd := m.Update(keyMsg("w"))
	m = next.(Model)
	assert.Equal(t, ModeStack, m.mode)
	require.NotNil(t, cmd)

	m = update(t, m, cmd())
	assert.Contains(t, m.viewport.View(), "mode: menu")

	m = update(t, m, keyMsg("esc"))
	assert.Equal(t, ModeList, m.mode)
}

func TestModel_Check(t *testing.T) {
	tests := []struct {
		name    string
		check   CheckFunc
		wantMsg string
		wantErr bool
	}{
		{"no_daemon", nil, "daemon not running", true},
		{"clean", func(context.Context) (int, error) { return 0, nil }, "found 0 leak", false},
		{"leaks", func(context.Context) (int, error) { return 2, nil }, "found 2 leak", true},
		{"error", func(context.Context) (int, error) { return 0, errors.New("timeout") }, "timeout", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := setup(t, nil, tt.check)
			_, cmd := m.Update(keyMsg("K"))
			require.NotNil(t, cmd)

			msg := cmd()
			if cm, ok := msg.(checkMsg); ok {
				_, cmd = m.Update(cm)
				msg = cmd()
			}
			st, ok := msg.(statusMsg)
			require.True(t, ok)
			assert.Contains(t, st.text, tt.wantMsg)
			assert.Equal(t, tt.wantErr, st.isErr)
		})
	}
}

func TestBuildKeybindBar_FitsWidth(t *testing.T) {
	m := New(nil, nil, nil, nil)
	full := m.buildKeybindBar(0, "list")
	narrow := m.buildKeybindBar(20, "list")

	assert.Contains(t, full, "refresh")
	assert.Contains(t, narrow, "quit")
	assert.NotContains(t, narrow, "refresh")
}
