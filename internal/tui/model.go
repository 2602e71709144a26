package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"pkgd/internal/authority"
	"pkgd/internal/engine"
	"pkgd/internal/history"
	"pkgd/internal/transaction"
	"pkgd/pkg/backend"
	"pkgd/pkg/enum"
)

// View identifies one screen of the console.
type View int

const (
	ViewTransactions View = iota
	ViewPackages
	ViewUpdates
	ViewHistory
	ViewBackend
	ViewDetails
	ViewHelp
)

// Tab is an entry in the tab bar.
type Tab struct {
	Name string
	View View
}

// DefaultTabs returns the tab bar, in key order.
func DefaultTabs() []Tab {
	return []Tab{
		{"Transactions", ViewTransactions},
		{"Packages", ViewPackages},
		{"Updates", ViewUpdates},
		{"History", ViewHistory},
		{"Backend", ViewBackend},
	}
}

// Row is a point-in-time copy of one transaction for display.
type Row struct {
	TID        string
	Role       string
	State      transaction.State
	Status     string
	Percentage uint
	UID        uint32
	Exclusive  bool
	Background bool
	Finished   bool
	Exit       enum.Exit
	Runtime    time.Duration
}

// Snapshot copies the engine's transaction list.
func Snapshot(e *engine.Engine) []Row {
	txs := e.Transactions()
	rows := make([]Row, 0, len(txs))
	for _, tx := range txs {
		row := Row{
			TID:        tx.TID(),
			Role:       tx.Role().String(),
			State:      tx.State(),
			Status:     tx.Status().String(),
			Percentage: tx.Percentage(),
			UID:        tx.UID(),
			Exclusive:  tx.Exclusive(),
			Background: tx.Background(),
			Runtime:    tx.Runtime(),
		}
		if tx.IsFinished() {
			row.Finished = true
			row.Exit = tx.Exit()
		}
		rows = append(rows, row)
	}
	return rows
}

// listState is the cursor and first visible line of one list.
type listState struct {
	cursor int
	offset int
}

// clamp keeps the cursor on one of n items and inside a window of height lines.
func (l *listState) clamp(n, height int) {
	l.cursor = min(l.cursor, n-1)
	l.cursor = max(l.cursor, 0)
	if l.offset > l.cursor {
		l.offset = l.cursor
	}
	if l.cursor >= l.offset+height {
		l.offset = l.cursor - height + 1
	}
	l.offset = max(l.offset, 0)
}

// notice is the status line in the header.
type notice struct {
	busy   bool
	text   string
	failed bool
}

// inputState is an open text prompt.
type inputState struct {
	label  string
	submit func(string) tea.Cmd
}

// dialogState is an open yes/no question. no may be nil.
type dialogState struct {
	title string
	yes   func() tea.Cmd
	no    func() tea.Cmd
}

// Model is the console state, independent of bubbletea components.
type Model struct {
	engine  *engine.Engine
	subject authority.Subject

	width, height int
	ready         bool
	quitting      bool

	tabs []Tab
	tab  int
	view View
	back View

	transactions []Row
	packages     []backend.PackageEvent
	updates      []backend.PackageEvent
	history      []history.Entry
	details      *backend.DetailsEvent

	searchQuery string
	filterText  string

	lists  map[View]*listState
	notice notice
	input  *inputState
	dialog *dialogState

	styles *Styles
	keys   KeyMap
}

// NewModel returns a model showing the transaction list.
func NewModel(e *engine.Engine, subject authority.Subject) *Model {
	return &Model{
		engine:  e,
		subject: subject,
		tabs:    DefaultTabs(),
		view:    ViewTransactions,
		lists:   make(map[View]*listState),
		styles:  DefaultStyles(),
		keys:    DefaultKeyMap(),
	}
}

// SetSize records the terminal size.
func (m *Model) SetSize(width, height int) {
	m.width, m.height = width, height
}

func (m *Model) list() *listState {
	l, ok := m.lists[m.view]
	if !ok {
		l = &listState{}
		m.lists[m.view] = l
	}
	return l
}

// Cursor returns the selected line of the current list.
func (m *Model) Cursor() int {
	return m.list().cursor
}

// VisibleHeight is the number of list lines that fit between the header,
// tab bar and footer.
func (m *Model) VisibleHeight() int {
	return max(m.height-7, 1)
}

// ListLen returns the number of selectable lines in the current view.
func (m *Model) ListLen() int {
	switch m.view {
	case ViewTransactions:
		return len(m.transactions)
	case ViewHistory:
		return len(m.history)
	default:
		return len(m.visiblePackages())
	}
}

// visiblePackages is the filtered package list of the current view.
func (m *Model) visiblePackages() []backend.PackageEvent {
	switch m.view {
	case ViewPackages:
		return m.filterPackages(m.packages)
	case ViewUpdates:
		return m.filterPackages(m.updates)
	}
	return nil
}

func (m *Model) filterPackages(pkgs []backend.PackageEvent) []backend.PackageEvent {
	if m.filterText == "" {
		return pkgs
	}
	needle := strings.ToLower(m.filterText)
	var out []backend.PackageEvent
	for _, p := range pkgs {
		if strings.Contains(strings.ToLower(p.PackageID), needle) ||
			strings.Contains(strings.ToLower(p.Summary), needle) {
			out = append(out, p)
		}
	}
	return out
}

// SelectedPackage returns the package under the cursor, or nil.
func (m *Model) SelectedPackage() *backend.PackageEvent {
	pkgs := m.visiblePackages()
	if c := m.Cursor(); c < len(pkgs) {
		return &pkgs[c]
	}
	return nil
}

// SelectedTransaction returns the transaction under the cursor, or nil.
func (m *Model) SelectedTransaction() *Row {
	if m.view != ViewTransactions {
		return nil
	}
	if c := m.Cursor(); c < len(m.transactions) {
		return &m.transactions[c]
	}
	return nil
}

// SetTransactions replaces the transaction list.
func (m *Model) SetTransactions(rows []Row) {
	m.transactions = rows
	l, ok := m.lists[ViewTransactions]
	if ok {
		l.clamp(len(rows), m.VisibleHeight())
	}
}

// resetList moves a view's cursor back to the first line.
func (m *Model) resetList(v View) {
	delete(m.lists, v)
}

// MoveCursor moves the cursor by delta lines, stopping at either end.
func (m *Model) MoveCursor(delta int) {
	n := m.ListLen()
	if n == 0 {
		return
	}
	l := m.list()
	l.cursor += delta
	l.clamp(n, m.VisibleHeight())
}

// GoToTop selects the first line.
func (m *Model) GoToTop() {
	*m.list() = listState{}
}

// GoToBottom selects the last line.
func (m *Model) GoToBottom() {
	m.MoveCursor(m.ListLen())
}

// SetTab switches to tab i; out of range indexes are ignored.
func (m *Model) SetTab(i int) {
	if i < 0 || i >= len(m.tabs) {
		return
	}
	m.tab = i
	m.view = m.tabs[i].View
}

// NextTab and PrevTab cycle through the tab bar.
func (m *Model) NextTab() { m.SetTab((m.tab + 1) % len(m.tabs)) }

func (m *Model) PrevTab() { m.SetTab((m.tab + len(m.tabs) - 1) % len(m.tabs)) }

// overlay opens a view on top of the current tab.
func (m *Model) overlay(v View) {
	if m.view != ViewDetails && m.view != ViewHelp {
		m.back = m.view
	}
	m.view = v
}

// ShowDetails opens the details view for d.
func (m *Model) ShowDetails(d backend.DetailsEvent) {
	m.details = &d
	m.overlay(ViewDetails)
}

// GoBack closes the details or help view.
func (m *Model) GoBack() {
	if m.view == ViewDetails || m.view == ViewHelp {
		m.view = m.back
	}
}

// Busy shows text next to a spinner until the next notice.
func (m *Model) Busy(text string) {
	m.notice = notice{busy: true, text: text}
}

// Fail shows an error in the header.
func (m *Model) Fail(text string) {
	m.notice = notice{text: text, failed: true}
}

// Succeed shows a confirmation in the header.
func (m *Model) Succeed(text string) {
	m.notice = notice{text: text}
}

// Idle clears the header notice.
func (m *Model) Idle() {
	m.notice = notice{}
}

// StartInput opens a text prompt; submit receives the entered text.
func (m *Model) StartInput(label string, submit func(string) tea.Cmd) {
	m.input = &inputState{label: label, submit: submit}
}

// SubmitInput closes the prompt and passes value to its handler.
func (m *Model) SubmitInput(value string) tea.Cmd {
	in := m.input
	m.input = nil
	if in == nil || in.submit == nil {
		return nil
	}
	return in.submit(value)
}

// CancelInput closes the prompt without submitting.
func (m *Model) CancelInput() {
	m.input = nil
}

// Ask opens a yes/no dialog. no may be nil.
func (m *Model) Ask(title string, yes, no func() tea.Cmd) {
	m.dialog = &dialogState{title: title, yes: yes, no: no}
}

// Answer closes the dialog and runs the chosen action.
func (m *Model) Answer(ok bool) tea.Cmd {
	d := m.dialog
	m.dialog = nil
	if d == nil {
		return nil
	}
	fn := d.no
	if ok {
		fn = d.yes
	}
	if fn == nil {
		return nil
	}
	return fn()
}
