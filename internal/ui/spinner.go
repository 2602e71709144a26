package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"

	"pkgd/pkg/backend"
	"pkgd/pkg/enum"
)

// Spinner shows the live status and percentage of one transaction.
type Spinner struct {
	mu         sync.Mutex
	s          *spinner.Spinner
	title      string
	status     enum.Status
	percentage uint
	note       string
}

// NewSpinner returns a stopped spinner labelled with title.
func NewSpinner(title string) *Spinner {
	frames, color := spinner.CharSets[0], ""
	if UseUnicode {
		frames = spinner.CharSets[14]
	}
	if UseColors {
		color = "cyan"
	}

	s := spinner.New(frames, 100*time.Millisecond)
	if color != "" {
		_ = s.Color(color)
	}
	sp := &Spinner{s: s, title: title, status: enum.StatusWait, percentage: backend.PercentageUnknown}
	sp.s.Suffix = sp.suffix()
	return sp
}

// Start shows the spinner. Starting a running spinner is a no-op.
func (sp *Spinner) Start() { sp.s.Start() }

// Stop hides the spinner; it can be started again.
func (sp *Spinner) Stop() { sp.s.Stop() }

// SetStatus records a status change from the backend.
func (sp *Spinner) SetStatus(status enum.Status) {
	sp.update(func() { sp.status, sp.note = status, "" })
}

// SetPercentage records a progress change from the backend.
func (sp *Spinner) SetPercentage(percentage uint) {
	sp.update(func() { sp.percentage = percentage })
}

// Note replaces the status text until the next status change.
func (sp *Spinner) Note(note string) {
	sp.update(func() { sp.note = note })
}

// Text returns the current suffix without the leading space.
func (sp *Spinner) Text() string {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return strings.TrimPrefix(sp.suffix(), " ")
}

func (sp *Spinner) update(fn func()) {
	sp.mu.Lock()
	fn()
	suffix := sp.suffix()
	sp.mu.Unlock()

	sp.s.Lock()
	sp.s.Suffix = suffix
	sp.s.Unlock()
}

func (sp *Spinner) suffix() string {
	if sp.note != "" {
		return " " + sp.title + ": " + sp.note
	}
	return " " + sp.title + ": " + Progress(sp.status, sp.percentage)
}

// Progress formats a status and percentage, omitting an unknown percentage.
func Progress(status enum.Status, percentage uint) string {
	text := strings.ReplaceAll(status.String(), "-", " ")
	if percentage >= backend.PercentageUnknown {
		return text
	}
	return fmt.Sprintf("%s (%d%%)", text, percentage)
}
