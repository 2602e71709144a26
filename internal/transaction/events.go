package transaction

import (
	"time"

	"pkgd/pkg/backend"
	"pkgd/pkg/enum"
)

// FinishedEvent is the last event a subscriber receives. Runtime is measured
// from the first time the transaction ran, across lock retries.
type FinishedEvent struct {
	Exit    enum.Exit
	Runtime time.Duration
}

// StateEvent reports a lifecycle transition.
type StateEvent struct {
	State State
}

// EventName implements backend.Event.
func (FinishedEvent) EventName() string { return "finished" }

// EventName implements backend.Event.
func (StateEvent) EventName() string { return "state-changed" }

// Results holds everything a run produced that a caller may want after it
// finished.
type Results struct {
	Packages       []backend.PackageEvent
	Details        []backend.DetailsEvent
	Files          []backend.FilesEvent
	UpdateDetails  []backend.UpdateDetailEvent
	Repos          []backend.RepoDetailEvent
	Categories     []backend.CategoryEvent
	DistroUpgrades []backend.DistroUpgradeEvent
	Transactions   []OldTransactionEvent
	Errors         []backend.ErrorEvent
	Restart        enum.Restart

	// Questions the caller has to answer before retrying.
	Signatures []backend.RepoSignatureRequiredEvent
	Eulas      []backend.EulaRequiredEvent
	Media      []backend.MediaChangeRequiredEvent
}

func (r *Results) add(ev backend.Event) {
	switch e := ev.(type) {
	case backend.PackageEvent:
		r.Packages = append(r.Packages, e)
	case backend.DetailsEvent:
		r.Details = append(r.Details, e)
	case backend.FilesEvent:
		r.Files = append(r.Files, e)
	case backend.UpdateDetailEvent:
		r.UpdateDetails = append(r.UpdateDetails, e)
	case backend.RepoDetailEvent:
		r.Repos = append(r.Repos, e)
	case backend.CategoryEvent:
		r.Categories = append(r.Categories, e)
	case backend.DistroUpgradeEvent:
		r.DistroUpgrades = append(r.DistroUpgrades, e)
	case OldTransactionEvent:
		r.Transactions = append(r.Transactions, e)
	case backend.ErrorEvent:
		r.Errors = append(r.Errors, e)
	case backend.RepoSignatureRequiredEvent:
		r.Signatures = append(r.Signatures, e)
	case backend.EulaRequiredEvent:
		r.Eulas = append(r.Eulas, e)
	case backend.MediaChangeRequiredEvent:
		r.Media = append(r.Media, e)
	case backend.RequireRestartEvent:
		if e.Restart > r.Restart {
			r.Restart = e.Restart
		}
	}
}
