// Package tui provides the BubbleTea-based report inspector.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/uiv1/internal/config"
	"github.com/jmylchreest/uiv1/internal/model"
	"github.com/jmylchreest/uiv1/internal/store"
)

// Mode represents the current UI mode.
type Mode int

const (
	ModeList Mode = iota
	ModeDetail
	ModeSearch
	ModeStack
	ModeHelp
)

const remoteTimeout = 3 * time.Second

// SnapshotFunc fetches the running daemon's UI snapshot as text.
type SnapshotFunc func(ctx context.Context) (string, error)

// CheckFunc runs a cleanup check in the running daemon and returns the
// number of leaks found.
type CheckFunc func(ctx context.Context) (int, error)

// Model is the main TUI model.
type Model struct {
	// Configuration
	cfg          *config.Config
	log          *store.ReportLog
	suppressions *store.SuppressFile
	snapshot     SnapshotFunc
	check        CheckFunc

	// Current mode
	mode Mode

	// Components
	list        list.Model
	viewport    viewport.Model
	searchInput textinput.Model
	help        help.Model

	// State
	reports     []model.Report
	selected    *model.Report
	searchQuery string
	showAcked   bool
	width       int
	height      int
	ready       bool

	// Key bindings
	keys KeyMap

	// Status message
	statusMsg string
	statusErr bool

	refreshCh <-chan store.ChangeEvent
}

// reportItem wraps a report for the list component.
type reportItem struct {
	report model.Report
}

func (i reportItem) Title() string {
	return i.report.Subject()
}

func (i reportItem) Description() string {
	return fmt.Sprintf("[%s/%s] %s %s - %s",
		i.report.Kind,
		i.report.SeverityName,
		i.report.Window,
		i.report.RelativeTime(),
		i.report.MessageTruncated(50))
}

func (i reportItem) FilterValue() string {
	return i.report.Subject() + " " + i.report.Message + " " + i.report.Window
}

// reportDelegate dims acknowledged reports.
type reportDelegate struct {
	list.DefaultDelegate
}

func newReportDelegate() reportDelegate {
	return reportDelegate{DefaultDelegate: list.NewDefaultDelegate()}
}

// Render renders a list item, dimming acknowledged reports and colouring
// errors.
func (d reportDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ri, ok := item.(reportItem)
	if !ok {
		d.DefaultDelegate.Render(w, m, index, item)
		return
	}

	isSelected := index == m.Index()
	itemWidth := m.Width() - d.Styles.NormalTitle.GetHorizontalPadding()

	titleStyle, descStyle := d.Styles.NormalTitle, d.Styles.NormalDesc
	if isSelected {
		titleStyle, descStyle = d.Styles.SelectedTitle, d.Styles.SelectedDesc
	}
	switch {
	case ri.report.IsAcked():
		titleStyle = titleStyle.Foreground(lipgloss.Color("8"))
		descStyle = descStyle.Foreground(lipgloss.Color("8"))
	case ri.report.Severity == model.SeverityError:
		titleStyle = titleStyle.Foreground(lipgloss.Color("9"))
	}

	title := ri.Title()
	if ri.report.IsAcked() {
		title = "[a] " + title
	}
	if itemWidth > 0 && len(title) > itemWidth {
		title = title[:itemWidth-1] + "…"
	}
	desc := ri.Description()
	if itemWidth > 0 && len(desc) > itemWidth {
		desc = desc[:itemWidth-1] + "…"
	}

	fmt.Fprint(w, titleStyle.Render(title))
	fmt.Fprint(w, "\n")
	fmt.Fprint(w, descStyle.Render(desc))
}

// New creates a new TUI model over log. snapshot and check may be nil when
// no daemon is reachable.
func New(cfg *config.Config, log *store.ReportLog, snapshot SnapshotFunc, check CheckFunc) Model {
	l := list.New(nil, newReportDelegate(), 0, 0)
	l.Title = "UI Reports"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	l.DisableQuitKeybindings()

	searchInput := textinput.New()
	searchInput.Placeholder = "Search or kind=leak,window=settings"
	searchInput.CharLimit = 100

	m := Model{
		cfg:         cfg,
		log:         log,
		snapshot:    snapshot,
		check:       check,
		mode:        ModeList,
		list:        l,
		searchInput: searchInput,
		help:        help.New(),
		keys:        DefaultKeyMap(),
	}
	if log != nil {
		m.refreshCh = log.Subscribe()
	}
	return m
}

// WithSuppressFile makes suppressions persist to f.
func (m Model) WithSuppressFile(f *store.SuppressFile) Model {
	m.suppressions = f
	return m
}

// Init initializes the TUI.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadReports,
		m.watchForChanges,
	)
}

func (m Model) loadReports() tea.Msg {
	return loadReportsMsg{}
}

type loadReportsMsg struct{}

// watchForChanges waits for the next log change.
func (m Model) watchForChanges() tea.Msg {
	if m.refreshCh == nil {
		return nil
	}
	if _, ok := <-m.refreshCh; !ok {
		return nil
	}
	return refreshMsg{}
}

type refreshMsg struct{}

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

type copyResultMsg struct {
	err error
}

type snapshotMsg struct {
	text string
	err  error
}

type checkMsg struct {
	leaks int
	err   error
}

func status(text string, isErr bool) tea.Cmd {
	return func() tea.Msg { return statusMsg{text: text, isErr: isErr} }
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.list.SetSize(msg.Width, msg.Height-2)
		m.viewport = viewport.New(msg.Width, msg.Height-4)
		m.viewport.YPosition = 2
		return m, nil

	case loadReportsMsg:
		m.reports = m.fetchReports()
		m.list.SetItems(m.buildListItems())
		return m, nil

	case refreshMsg:
		m.reports = m.fetchReports()
		m.list.SetItems(m.buildListItems())
		return m, m.watchForChanges

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil

	case copyResultMsg:
		if msg.err != nil {
			return m, status("Copy failed: "+msg.err.Error(), true)
		}
		return m, status("Copied to clipboard", false)

	case snapshotMsg:
		if msg.err != nil {
			m.viewport.SetContent("Snapshot unavailable: " + msg.err.Error())
		} else {
			m.viewport.SetContent(msg.text)
		}
		m.viewport.GotoTop()
		return m, nil

	case checkMsg:
		if msg.err != nil {
			return m, status("Check failed: "+msg.err.Error(), true)
		}
		return m, status(fmt.Sprintf("Check found %d leak(s)", msg.leaks), msg.leaks > 0)
	}

	var cmd tea.Cmd
	switch m.mode {
	case ModeList:
		m.list, cmd = m.list.Update(msg)
	case ModeDetail, ModeStack:
		m.viewport, cmd = m.viewport.Update(msg)
	case ModeSearch:
		m.searchInput, cmd = m.searchInput.Update(msg)
	}
	return m, cmd
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode != ModeSearch {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			if m.mode == ModeHelp {
				m.mode = ModeList
			} else {
				m.mode = ModeHelp
			}
			return m, nil
		}
	}

	switch m.mode {
	case ModeList:
		return m.handleListKey(msg)
	case ModeDetail:
		return m.handleDetailKey(msg)
	case ModeSearch:
		return m.handleSearchKey(msg)
	case ModeStack:
		return m.handleStackKey(msg)
	case ModeHelp:
		if key.Matches(msg, m.keys.Back) {
			m.mode = ModeList
		}
		return m, nil
	}
	return m, nil
}

func (m Model) selectedReport() (model.Report, bool) {
	item, ok := m.list.SelectedItem().(reportItem)
	if !ok {
		return model.Report{}, false
	}
	return item.report, true
}

func (m Model) visibleReports() []model.Report {
	items := m.list.Items()
	reports := make([]model.Report, 0, len(items))
	for _, item := range items {
		if ri, ok := item.(reportItem); ok {
			reports = append(reports, ri.report)
		}
	}
	return reports
}

// handleListKey handles keys in list mode.
func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Enter):
		if r, ok := m.selectedReport(); ok {
			m.openDetail(r)
		}
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		if r, ok := m.selectedReport(); ok {
			return m, m.copyToClipboard(r.Message)
		}
		return m, nil

	case key.Matches(msg, m.keys.CopyID):
		if r, ok := m.selectedReport(); ok {
			return m, m.copyToClipboard(r.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.CopyAllJSON):
		data, err := json.MarshalIndent(m.visibleReports(), "", "  ")
		if err != nil {
			return m, status("Failed to marshal JSON: "+err.Error(), true)
		}
		return m, m.copyToClipboard(string(data))

	case key.Matches(msg, m.keys.CopyAllYAML):
		data, err := yaml.Marshal(m.visibleReports())
		if err != nil {
			return m, status("Failed to marshal YAML: "+err.Error(), true)
		}
		return m, m.copyToClipboard(string(data))

	case key.Matches(msg, m.keys.Ack):
		r, ok := m.selectedReport()
		if !ok || m.log == nil {
			return m, nil
		}
		if err := m.log.Ack(r.ID); err != nil {
			return m, status("Acknowledge failed: "+err.Error(), true)
		}
		m.reports = m.fetchReports()
		m.list.SetItems(m.buildListItems())
		return m, status("Report acknowledged", false)

	case key.Matches(msg, m.keys.Suppress):
		r, ok := m.selectedReport()
		if !ok || m.log == nil {
			return m, nil
		}
		return m.suppress(r)

	case key.Matches(msg, m.keys.ToggleAcked):
		m.showAcked = !m.showAcked
		m.list.SetItems(m.buildListItems())
		if m.showAcked {
			return m, status("Showing all reports", false)
		}
		return m, status("Hiding acknowledged reports", false)

	case key.Matches(msg, m.keys.Search):
		return m.enterSearch()

	case key.Matches(msg, m.keys.Refresh):
		return m, m.loadReports

	case key.Matches(msg, m.keys.Stack):
		m.mode = ModeStack
		m.viewport.SetContent("Loading...")
		return m, m.fetchSnapshot()

	case key.Matches(msg, m.keys.Check):
		return m, m.runCheck()
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) suppress(r model.Report) (tea.Model, tea.Cmd) {
	k, err := m.log.Suppress(r.ID)
	if err != nil {
		return m, status("Suppress failed: "+err.Error(), true)
	}
	if k != "" && m.suppressions != nil {
		if err := m.suppressions.Append(k); err != nil {
			return m, status("Suppression not saved: "+err.Error(), true)
		}
	}
	m.reports = m.fetchReports()
	m.list.SetItems(m.buildListItems())
	return m, status("Suppressed "+k, false)
}

func (m *Model) openDetail(r model.Report) {
	m.selected = &r
	m.mode = ModeDetail
	m.viewport.SetContent(m.renderDetail(r))
	m.viewport.GotoTop()
}

func (m Model) enterSearch() (tea.Model, tea.Cmd) {
	m.selected = nil
	m.searchInput.SetValue("")
	m.searchQuery = ""
	m.list.SetItems(m.buildListItems())
	m.mode = ModeSearch
	m.searchInput.Focus()
	return m, textinput.Blink
}

// handleDetailKey handles keys in detail mode.
func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.mode = ModeList
		m.selected = nil
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		if m.selected != nil {
			return m, m.copyToClipboard(m.selected.Message)
		}
		return m, nil

	case key.Matches(msg, m.keys.CopyID):
		if m.selected != nil {
			return m, m.copyToClipboard(m.selected.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Search):
		return m.enterSearch()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// handleStackKey handles keys in the window stack view.
func (m Model) handleStackKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.mode = ModeList
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		return m, m.fetchSnapshot()
	case key.Matches(msg, m.keys.Check):
		return m, m.runCheck()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// handleSearchKey handles keys in search mode.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = ModeList
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		m.searchQuery = ""
		m.list.SetItems(m.buildListItems())
		return m, nil

	case tea.KeyEnter:
		if r, ok := m.selectedReport(); ok {
			m.searchInput.Blur()
			m.openDetail(r)
		}
		return m, nil

	case tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)

	m.searchQuery = m.searchInput.Value()
	m.list.SetItems(m.buildListItems())
	return m, cmd
}

func (m Model) fetchReports() []model.Report {
	if m.log != nil {
		return m.log.All()
	}
	return nil
}

func (m Model) fetchSnapshot() tea.Cmd {
	if m.snapshot == nil {
		return func() tea.Msg {
			return snapshotMsg{err: fmt.Errorf("daemon not running")}
		}
	}
	fetch := m.snapshot
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
		defer cancel()
		text, err := fetch(ctx)
		return snapshotMsg{text: text, err: err}
	}
}

func (m Model) runCheck() tea.Cmd {
	if m.check == nil {
		return status("Check failed: daemon not running", true)
	}
	check := m.check
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
		defer cancel()
		n, err := check(ctx)
		return checkMsg{leaks: n, err: err}
	}
}

// buildListItems creates list items from the current reports.
func (m Model) buildListItems() []list.Item {
	reports := m.reports

	if !m.showAcked {
		var visible []model.Report
		for _, r := range reports {
			if !r.IsAcked() {
				visible = append(visible, r)
			}
		}
		reports = visible
	}

	reports = applySearch(reports, m.searchQuery)

	items := make([]list.Item, len(reports))
	for i, r := range reports {
		items[i] = reportItem{report: r}
	}
	return items
}

// renderDetail renders the detail view for a report.
func (m Model) renderDetail(r model.Report) string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12"))
	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8"))

	var b strings.Builder
	b.WriteString(headerStyle.Render(r.Subject()) + "\n\n")

	field := func(label, value string) {
		if value != "" {
			b.WriteString(labelStyle.Render(label+": ") + value + "\n")
		}
	}
	field("ID", r.ID)
	field("Kind", r.Kind)
	field("Severity", r.SeverityName)
	field("Time", humanize.Time(r.TimestampTime()))
	if r.AppTimeMS > 0 {
		field("App time", (time.Duration(r.AppTimeMS) * time.Millisecond).String())
	}
	if r.WindowID > 0 {
		field("Window", fmt.Sprintf("%s (#%d)", r.Window, r.WindowID))
	} else {
		field("Window", r.Window)
	}
	field("Owner", r.Owner)
	field("Widget", r.Widget)
	field("Handle", r.Handle)
	field("Operation", r.Op)
	field("Source", r.Source)
	if r.IsAcked() {
		field("Acknowledged", humanize.Time(time.Unix(r.AckedAt, 0)))
	}

	b.WriteString("\n" + labelStyle.Render("Message:") + "\n")
	b.WriteString(r.Message + "\n")
	return b.String()
}

// copyToClipboard copies text to the system clipboard.
func (m Model) copyToClipboard(text string) tea.Cmd {
	cfg := m.cfg
	return func() tea.Msg {
		return copyResultMsg{err: copyText(text, cfg)}
	}
}

// View renders the TUI.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	switch m.mode {
	case ModeList:
		return m.viewList()
	case ModeDetail:
		return m.viewPane("Report Detail", "detail")
	case ModeStack:
		return m.viewPane("Window Stack", "stack")
	case ModeSearch:
		return m.viewSearch()
	case ModeHelp:
		return m.viewHelp()
	default:
		return ""
	}
}

func (m Model) viewList() string {
	s := m.list.View()
	if m.statusMsg != "" {
		statusStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))
		if m.statusErr {
			statusStyle = statusStyle.Foreground(lipgloss.Color("9"))
		}
		s += "\n" + statusStyle.Render(m.statusMsg)
	} else {
		s += "\n" + m.buildKeybindBar(m.width, "list")
	}
	return s
}

func (m Model) viewPane(title, mode string) string {
	header := lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1).
		Render(title)
	footer := m.buildKeybindBar(m.width, mode)
	if m.statusMsg != "" {
		footer = m.statusMsg
	}
	return header + "\n" + m.viewport.View() + "\n" + footer
}

func (m Model) viewSearch() string {
	countStr := fmt.Sprintf("(%d matches)", len(m.list.Items()))
	searchBar := "Search: " + m.searchInput.View() + " " +
		lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(countStr)

	return searchBar + "\n" + m.list.View() + "\n" + m.buildKeybindBar(m.width, "search")
}

func (m Model) viewHelp() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginBottom(1)

	s := titleStyle.Render("Keyboard Shortcuts") + "\n\n"
	m.help.ShowAll = true
	s += m.help.View(m.keys)
	s += "\n\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(
		"Filter expressions: kind=leak, window~set, severity>=warning, timestamp<1h\n"+
			"Press ? or esc to return")
	return s
}

// keybind represents a single keybind with priority for the status bar.
type keybind struct {
	key  string
	desc string
}

// buildKeybindBar builds a keybind bar that fits within width. Binds are
// listed most important first.
func (m Model) buildKeybindBar(width int, mode string) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	var binds []keybind
	switch mode {
	case "list":
		binds = []keybind{
			{"q", "quit"},
			{"enter", "view"},
			{"?", "help"},
			{"/", "search"},
			{"a", "ack"},
			{"x", "suppress"},
			{"w", "stack"},
			{"K", "check"},
			{"A", "all"},
			{"c", "copy"},
			{"r", "refresh"},
		}
	case "detail":
		binds = []keybind{
			{"q", "quit"},
			{"esc", "back"},
			{"/", "search"},
			{"c", "copy message"},
			{"i", "copy id"},
			{"j/k", "scroll"},
		}
	case "stack":
		binds = []keybind{
			{"q", "quit"},
			{"esc", "back"},
			{"r", "refresh"},
			{"K", "check"},
			{"j/k", "scroll"},
		}
	case "search":
		binds = []keybind{
			{"enter", "view"},
			{"esc", "close"},
			{"↑/↓", "navigate"},
		}
	}

	const separator = "  "
	result := ""
	plainLen := 0
	for _, b := range binds {
		plain := b.key + " " + b.desc
		testLen := plainLen + len(plain)
		if result != "" {
			testLen += len(separator)
		}
		if width > 0 && testLen > width {
			break
		}
		if result != "" {
			result += separator
		}
		result += keyStyle.Render(b.key) + " " + b.desc
		plainLen = testLen
	}

	return style.Render(result)
}

// RunOptions configures the TUI.
type RunOptions struct {
	Config       *config.Config
	Log          *store.ReportLog
	Suppressions *store.SuppressFile
	Snapshot     SnapshotFunc
	Check        CheckFunc
	PersistPath  string // report file to watch for changes (empty = no watching)
	Logger       *slog.Logger
}

// Run starts the TUI with the given options.
func Run(opts RunOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	log := opts.Log
	if log == nil {
		log = store.NewReportLog(nil, "tui", logger)
	}

	var watcher *store.FileWatcher
	if opts.PersistPath != "" {
		var err error
		watcher, err = store.NewFileWatcher(log, opts.PersistPath, logger)
		if err != nil {
			logger.Warn("failed to create file watcher", "error", err)
		} else if err := watcher.Start(); err != nil {
			logger.Warn("failed to start file watcher", "error", err)
		}
	}

	m := New(opts.Config, log, opts.Snapshot, opts.Check).WithSuppressFile(opts.Suppressions)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()

	if watcher != nil {
		if stopErr := watcher.Stop(); stopErr != nil {
			logger.Warn("failed to stop file watcher", "error", stopErr)
		}
	}
	return err
}
