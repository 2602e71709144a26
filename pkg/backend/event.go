package backend

import "pkgd/pkg/enum"

// PercentageUnknown is reported when progress cannot be estimated.
const PercentageUnknown uint = 101

// Event is a single callback emitted through a Job and forwarded by the
// owning transaction to its listeners.
type Event interface {
	EventName() string
}

// PackageEvent reports a package found or acted upon.
type PackageEvent struct {
	Info      enum.Info
	PackageID string
	Summary   string
}

// DetailsEvent carries the long description of a package.
type DetailsEvent struct {
	PackageID   string
	Summary     string
	License     string
	Group       enum.Group
	Description string
	URL         string
	Size        uint64
}

// FilesEvent lists the files owned by a package.
type FilesEvent struct {
	PackageID string
	Files     []string
}

// UpdateDetailEvent describes an available update.
type UpdateDetailEvent struct {
	PackageID  string
	Updates    []string
	Obsoletes  []string
	VendorURLs []string
	BugURLs    []string
	CVEURLs    []string
	Restart    enum.Restart
	UpdateText string
	Changelog  string
	State      enum.UpdateState
	Issued     string
	Updated    string
}

// RepoDetailEvent describes a configured repository.
type RepoDetailEvent struct {
	RepoID      string
	Description string
	Enabled     bool
}

// CategoryEvent describes a package category.
type CategoryEvent struct {
	ParentID string
	CatID    string
	Name     string
	Summary  string
	Icon     string
}

// DistroUpgradeEvent describes an available distribution upgrade.
type DistroUpgradeEvent struct {
	State   enum.UpdateState
	Name    string
	Summary string
}

// ErrorEvent reports an error. A transaction may finish successfully only
// if no error event was forwarded.
type ErrorEvent struct {
	Code    enum.ErrorCode
	Details string
}

// StatusEvent reports the current activity.
type StatusEvent struct {
	Status enum.Status
}

// PercentageEvent reports overall progress.
type PercentageEvent struct {
	Percentage uint
}

// ItemProgressEvent reports progress for a single package.
type ItemProgressEvent struct {
	PackageID  string
	Status     enum.Status
	Percentage uint
}

// AllowCancelEvent reports whether the running verb can be interrupted.
type AllowCancelEvent struct {
	AllowCancel bool
}

// LockedEvent reports whether the backend holds its package database lock.
type LockedEvent struct {
	Locked bool
}

// RequireRestartEvent reports that a package change needs a restart.
type RequireRestartEvent struct {
	Restart   enum.Restart
	PackageID string
}

// RepoSignatureRequiredEvent asks the caller to trust a repository key.
type RepoSignatureRequiredEvent struct {
	PackageID      string
	RepoName       string
	KeyURL         string
	KeyUserID      string
	KeyID          string
	KeyFingerprint string
	KeyTimestamp   string
	Type           enum.SigType
}

// EulaRequiredEvent asks the caller to accept a licence agreement.
type EulaRequiredEvent struct {
	EulaID           string
	PackageID        string
	VendorName       string
	LicenseAgreement string
}

// MediaChangeRequiredEvent asks the caller to insert installation media.
type MediaChangeRequiredEvent struct {
	MediaType string
	MediaID   string
	MediaText string
}

// FinishedEvent is the terminal backend callback.
type FinishedEvent struct {
	Exit enum.Exit
}

func (PackageEvent) EventName() string               { return "package" }
func (DetailsEvent) EventName() string               { return "details" }
func (FilesEvent) EventName() string                 { return "files" }
func (UpdateDetailEvent) EventName() string          { return "update-detail" }
func (RepoDetailEvent) EventName() string            { return "repo-detail" }
func (CategoryEvent) EventName() string              { return "category" }
func (DistroUpgradeEvent) EventName() string         { return "distro-upgrade" }
func (ErrorEvent) EventName() string                 { return "error-code" }
func (StatusEvent) EventName() string                { return "status" }
func (PercentageEvent) EventName() string            { return "percentage" }
func (ItemProgressEvent) EventName() string          { return "item-progress" }
func (AllowCancelEvent) EventName() string           { return "allow-cancel" }
func (LockedEvent) EventName() string                { return "locked" }
func (RequireRestartEvent) EventName() string        { return "require-restart" }
func (RepoSignatureRequiredEvent) EventName() string { return "repo-signature-required" }
func (EulaRequiredEvent) EventName() string          { return "eula-required" }
func (MediaChangeRequiredEvent) EventName() string   { return "media-change-required" }
func (FinishedEvent) EventName() string              { return "finished" }
