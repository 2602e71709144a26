package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
)

// KeyMap holds the console key bindings.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Bottom   key.Binding
	PrevTab  key.Binding
	NextTab  key.Binding

	// Tabs[i] jumps to DefaultTabs()[i].
	Tabs []key.Binding

	Info      key.Binding
	Search    key.Binding
	Filter    key.Binding
	Install   key.Binding
	Uninstall key.Binding
	Refresh   key.Binding
	UpdateAll key.Binding

	Abort  key.Binding
	Reload key.Binding

	Help key.Binding
	Back key.Binding
	Quit key.Binding
}

// HelpSection is one titled block of the help view.
type HelpSection struct {
	Title    string
	Bindings []key.Binding
}

func bind(help, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(help, desc))
}

// hint is shown in the help view but never matched.
func hint(help, desc string) key.Binding {
	return key.NewBinding(key.WithHelp(help, desc))
}

// DefaultKeyMap returns the default bindings. Arrow keys and vi keys both
// move the cursor.
func DefaultKeyMap() KeyMap {
	k := KeyMap{
		Up:       bind("k/up", "move up", "up", "k"),
		Down:     bind("j/down", "move down", "down", "j"),
		PageUp:   bind("pgup", "page up", "pgup", "ctrl+u"),
		PageDown: bind("pgdn", "page down", "pgdown", "ctrl+d"),
		Top:      bind("g/home", "go to top", "home", "g"),
		Bottom:   bind("G/end", "go to bottom", "end", "G"),
		PrevTab:  bind("left", "previous tab", "left"),
		NextTab:  bind("right", "next tab", "right"),

		Info:      bind("enter/o", "package details", "enter", "o"),
		Search:    bind("/", "search packages", "/"),
		Filter:    bind("f", "filter list", "f"),
		Install:   bind("i", "install package", "i"),
		Uninstall: bind("r", "remove package", "r", "d"),
		Refresh:   bind("u", "refresh metadata", "u"),
		UpdateAll: bind("U", "install all updates", "U"),

		Abort:  bind("c", "cancel selected transaction", "c", "x"),
		Reload: bind("R", "reload", "R", "ctrl+r"),

		Help: bind("?", "toggle help", "?"),
		Back: bind("esc/b", "go back", "esc", "backspace", "b"),
		Quit: bind("q", "quit", "q", "ctrl+c"),
	}
	for i, tab := range DefaultTabs() {
		n := strconv.Itoa(i + 1)
		k.Tabs = append(k.Tabs, bind(n, tab.Name, n))
	}
	return k
}

// Sections groups the bindings for the help view.
func (k KeyMap) Sections() []HelpSection {
	return []HelpSection{
		{"Navigation", []key.Binding{
			k.Up, k.Down, k.PageUp, k.PageDown, k.Top, k.Bottom,
			hint(fmt.Sprintf("1-%d", len(k.Tabs)), "switch tabs"),
			k.PrevTab, k.NextTab,
		}},
		{"Packages", []key.Binding{
			k.Info, k.Search, k.Filter, k.Install, k.Uninstall, k.Refresh, k.UpdateAll,
		}},
		{"Transactions", []key.Binding{
			k.Abort, k.Reload,
			hint("y/n", "answer an authorization request"),
		}},
		{"General", []key.Binding{k.Help, k.Back, k.Quit}},
	}
}
