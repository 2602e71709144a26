package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"pkgd/internal/authority"
	"pkgd/internal/engine"
	"pkgd/internal/history"
	"pkgd/internal/transaction"
	"pkgd/pkg/backend"
	"pkgd/pkg/enum"
	"pkgd/pkg/packageid"
)

const (
	refreshInterval = 250 * time.Millisecond
	historyDepth    = 50

	searchLabel = "Search: "
	filterLabel = "Filter: "
)

type (
	tickMsg time.Time

	authRequestMsg struct {
		req *authority.Request
	}

	packagesLoadedMsg struct {
		view     View
		packages []backend.PackageEvent
		err      error
	}

	historyLoadedMsg struct {
		entries []history.Entry
		err     error
	}

	detailsLoadedMsg struct {
		details []backend.DetailsEvent
		err     error
	}

	// doneMsg ends a change the user asked for. then runs on success.
	doneMsg struct {
		text string
		err  error
		then tea.Cmd
	}
)

// App is the bubbletea program for the transaction console.
type App struct {
	*Model
	agent   *authority.QueueAgent
	spinner spinner.Model
	field   textinput.Model
}

// NewApp creates a console for e. Authorization challenges raised by agent
// are asked as yes/no dialogs; agent may be nil.
func NewApp(e *engine.Engine, subject authority.Subject, agent *authority.QueueAgent) *App {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = fg(ColorPrimary)

	field := textinput.New()
	field.Placeholder = "package name"
	field.CharLimit = 100
	field.Width = 40

	return &App{
		Model:   NewModel(e, subject),
		agent:   agent,
		spinner: sp,
		field:   field,
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, tick(), a.waitForAuth(), a.loadHistory())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// waitForAuth delivers the next authorization challenge.
func (a *App) waitForAuth() tea.Cmd {
	if a.agent == nil {
		return nil
	}
	return func() tea.Msg {
		return authRequestMsg{req: <-a.agent.Requests()}
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetSize(msg.Width, msg.Height)
		a.ready = true

	case tea.KeyMsg:
		switch {
		case a.dialog != nil:
			return a, a.answerKey(msg)
		case a.input != nil:
			return a, a.inputKey(msg)
		}
		return a, a.handleKey(msg)

	case tickMsg:
		a.SetTransactions(Snapshot(a.engine))
		return a, tick()

	case authRequestMsg:
		req := msg.req
		answer := func(ok bool) func() tea.Cmd {
			return func() tea.Cmd {
				req.Answer(ok)
				return a.waitForAuth()
			}
		}
		a.Ask(authority.Prompt(req.Action, req.Details)+"?", answer(true), answer(false))

	case packagesLoadedMsg:
		a.Idle()
		if msg.err != nil {
			a.Fail(msg.err.Error())
			break
		}
		a.resetList(msg.view)
		if msg.view == ViewUpdates {
			a.updates = msg.packages
			a.Succeed(fmt.Sprintf("%d update(s) available", len(msg.packages)))
			break
		}
		a.packages = msg.packages
		if len(msg.packages) == 0 {
			a.Fail("No packages found")
		}

	case historyLoadedMsg:
		if msg.err == nil {
			a.history = msg.entries
		}

	case detailsLoadedMsg:
		a.Idle()
		switch {
		case msg.err != nil:
			a.Fail(msg.err.Error())
		case len(msg.details) > 0:
			a.ShowDetails(msg.details[0])
		}

	case doneMsg:
		if msg.err != nil {
			a.Fail(msg.err.Error())
			break
		}
		a.Succeed(msg.text)
		return a, tea.Batch(msg.then, a.loadHistory())

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}
	return a, nil
}

// answerKey handles keys while a dialog is open; other keys are ignored.
func (a *App) answerKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y", "Y", "enter":
		return a.Answer(true)
	case "n", "N", "esc", "q":
		return a.Answer(false)
	}
	return nil
}

// inputKey handles keys while a prompt is open.
func (a *App) inputKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		value := a.field.Value()
		a.field.Blur()
		return a.SubmitInput(value)
	case tea.KeyEsc:
		a.field.Blur()
		a.CancelInput()
		return nil
	}
	var cmd tea.Cmd
	a.field, cmd = a.field.Update(msg)
	return cmd
}

// handleKey handles a key press outside dialogs and prompts.
func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	for i, b := range a.keys.Tabs {
		if key.Matches(msg, b) {
			return a.openTab(i)
		}
	}

	k := a.keys
	switch {
	case key.Matches(msg, k.Quit):
		a.quitting = true
		return tea.Quit
	case key.Matches(msg, k.Help):
		if a.view == ViewHelp {
			a.GoBack()
		} else {
			a.overlay(ViewHelp)
		}
	case key.Matches(msg, k.PrevTab):
		a.PrevTab()
	case key.Matches(msg, k.NextTab):
		a.NextTab()
	case key.Matches(msg, k.Back):
		a.GoBack()
		a.Idle()

	case key.Matches(msg, k.Up):
		a.MoveCursor(-1)
	case key.Matches(msg, k.Down):
		a.MoveCursor(1)
	case key.Matches(msg, k.PageUp):
		a.MoveCursor(-a.VisibleHeight())
	case key.Matches(msg, k.PageDown):
		a.MoveCursor(a.VisibleHeight())
	case key.Matches(msg, k.Top):
		a.GoToTop()
	case key.Matches(msg, k.Bottom):
		a.GoToBottom()

	case key.Matches(msg, k.Info):
		if pkg := a.SelectedPackage(); pkg != nil {
			a.Busy("Getting details...")
			return a.loadDetails(pkg.PackageID)
		}
	case key.Matches(msg, k.Search):
		a.SetTab(1)
		return a.startSearch()
	case key.Matches(msg, k.Filter):
		return a.startFilter()

	case key.Matches(msg, k.Install):
		if id, installed := a.target(); id != "" && !installed {
			a.Ask(fmt.Sprintf("Install %s?", packageid.Name(id)), func() tea.Cmd { return a.install(id) }, nil)
		}
	case key.Matches(msg, k.Uninstall):
		if id, installed := a.target(); id != "" && installed {
			a.Ask(fmt.Sprintf("Remove %s?", packageid.Name(id)), func() tea.Cmd { return a.remove(id) }, nil)
		}
	case key.Matches(msg, k.Refresh):
		a.Ask("Refresh package metadata?", a.refresh, nil)
	case key.Matches(msg, k.UpdateAll):
		if len(a.updates) > 0 {
			a.Ask(fmt.Sprintf("Install %d update(s)?", len(a.updates)), a.updateAll, nil)
		}

	case key.Matches(msg, k.Abort):
		if row := a.SelectedTransaction(); row != nil && !row.State.Terminal() {
			return a.cancel(row.TID)
		}
	case key.Matches(msg, k.Reload):
		a.SetTransactions(Snapshot(a.engine))
		return a.loadHistory()
	}
	return nil
}

// target is the package an install or remove key acts on, and whether it
// is installed: the open details page, else the list selection.
func (a *App) target() (string, bool) {
	if a.view == ViewDetails && a.details != nil {
		id, err := packageid.Parse(a.details.PackageID)
		return a.details.PackageID, err == nil && id.Installed()
	}
	if pkg := a.SelectedPackage(); pkg != nil {
		return pkg.PackageID, pkg.Info == enum.InfoInstalled
	}
	return "", false
}

// openTab switches tabs and loads whatever the tab shows on first visit.
func (a *App) openTab(i int) tea.Cmd {
	a.SetTab(i)
	switch a.view {
	case ViewPackages:
		if a.searchQuery == "" {
			return a.startSearch()
		}
	case ViewUpdates:
		if a.updates == nil {
			a.Busy("Checking for updates...")
			return a.loadUpdates()
		}
	case ViewHistory:
		return a.loadHistory()
	}
	return nil
}

func (a *App) prompt(label, value string, submit func(string) tea.Cmd) tea.Cmd {
	a.field.SetValue(value)
	a.field.CursorEnd()
	a.StartInput(label, submit)
	return a.field.Focus()
}

func (a *App) startSearch() tea.Cmd {
	return a.prompt(searchLabel, "", func(query string) tea.Cmd {
		query = strings.TrimSpace(query)
		if query == "" {
			return nil
		}
		a.searchQuery = query
		a.Busy("Searching...")
		return a.search(strings.Fields(query))
	})
}

func (a *App) startFilter() tea.Cmd {
	return a.prompt(filterLabel, a.filterText, func(filter string) tea.Cmd {
		a.filterText = strings.TrimSpace(filter)
		a.resetList(a.view)
		return nil
	})
}

// run submits req and blocks until it finishes. Only commands call it, and
// bubbletea runs those on their own goroutines.
func (a *App) run(req transaction.Request) (transaction.Results, error) {
	finished := make(chan transaction.FinishedEvent, 1)
	tx, err := a.engine.Submit(a.subject, []string{"interactive=true"}, req, func(ev backend.Event) {
		if f, ok := ev.(transaction.FinishedEvent); ok {
			select {
			case finished <- f:
			default:
			}
		}
	})
	if err != nil {
		return transaction.Results{}, err
	}

	fin := <-finished
	res := tx.Results()
	if fin.Exit == enum.ExitSuccess {
		return res, nil
	}
	if len(res.Errors) > 0 {
		return res, fmt.Errorf("%s %s: %s", req.Role(), fin.Exit, res.Errors[0].Details)
	}
	return res, fmt.Errorf("%s %s", req.Role(), fin.Exit)
}

func (a *App) search(terms []string) tea.Cmd {
	return func() tea.Msg {
		res, err := a.run(&transaction.SearchRequest{Kind: enum.RoleSearchName, Filters: enum.FilterNone, Values: terms})
		return packagesLoadedMsg{view: ViewPackages, packages: res.Packages, err: err}
	}
}

func (a *App) loadUpdates() tea.Cmd {
	return func() tea.Msg {
		res, err := a.run(&transaction.ListRequest{Kind: enum.RoleGetUpdates, Filters: enum.FilterNone})
		return packagesLoadedMsg{view: ViewUpdates, packages: res.Packages, err: err}
	}
}

func (a *App) loadHistory() tea.Cmd {
	return func() tea.Msg {
		entries, err := a.engine.GetOldTransactions(historyDepth)
		return historyLoadedMsg{entries: entries, err: err}
	}
}

func (a *App) loadDetails(id string) tea.Cmd {
	return func() tea.Msg {
		res, err := a.run(&transaction.DetailsRequest{Kind: enum.RoleGetDetails, PackageIDs: []string{id}})
		return detailsLoadedMsg{details: res.Details, err: err}
	}
}

// change runs req in the background and reports text when it succeeds.
func (a *App) change(busy, text string, req transaction.Request, then func() tea.Cmd) tea.Cmd {
	a.Busy(busy)
	return func() tea.Msg {
		if _, err := a.run(req); err != nil {
			return doneMsg{err: err}
		}
		return doneMsg{text: text, then: then()}
	}
}

func (a *App) install(id string) tea.Cmd {
	name := packageid.Name(id)
	return a.change("Installing "+name+"...", "Installed "+name,
		&transaction.InstallRequest{Flags: enum.FlagOnlyTrusted, PackageIDs: []string{id}}, a.rerunSearch)
}

func (a *App) remove(id string) tea.Cmd {
	name := packageid.Name(id)
	return a.change("Removing "+name+"...", "Removed "+name,
		&transaction.RemoveRequest{PackageIDs: []string{id}}, a.rerunSearch)
}

func (a *App) refresh() tea.Cmd {
	return a.change("Refreshing package metadata...", "Package metadata refreshed",
		&transaction.RefreshRequest{}, a.loadUpdates)
}

// updateAll installs every pending update that is not held back.
func (a *App) updateAll() tea.Cmd {
	ids := make([]string, 0, len(a.updates))
	for _, p := range a.updates {
		if p.Info != enum.InfoBlocked {
			ids = append(ids, p.PackageID)
		}
	}
	return a.change(fmt.Sprintf("Installing %d update(s)...", len(ids)), "System updated",
		&transaction.UpdateRequest{Flags: enum.FlagOnlyTrusted, PackageIDs: ids}, a.loadUpdates)
}

// cancel runs as a command because cancelling another user's transaction
// may raise an authorization challenge that this UI has to answer.
func (a *App) cancel(tid string) tea.Cmd {
	return func() tea.Msg {
		if err := a.engine.Cancel(context.Background(), tid, a.subject.UID); err != nil {
			return doneMsg{err: err}
		}
		return doneMsg{text: "Cancelled " + tid}
	}
}

// rerunSearch repeats the last search so installed states are current.
func (a *App) rerunSearch() tea.Cmd {
	if a.searchQuery == "" {
		return nil
	}
	return a.search(strings.Fields(a.searchQuery))
}

// Run starts the console for e on the alternate screen.
func Run(e *engine.Engine, subject authority.Subject, agent *authority.QueueAgent) error {
	_, err := tea.NewProgram(NewApp(e, subject, agent), tea.WithAltScreen()).Run()
	return err
}

var _ tea.Model = (*App)(nil)
