// Package backend defines the capability interface implemented by package
// manager backends and the execution context a backend runs a verb in.
package backend

import (
	"pkgd/pkg/enum"
)

// Backend is a package manager implementation. Every verb method is called
// on its own goroutine, may emit any number of events through job and must
// call job.Finished exactly once before returning.
type Backend interface {
	// Name returns the short identifier (e.g., "pacman", "dummy").
	Name() string

	// Description returns a human-readable name.
	Description() string

	// Author returns who maintains the backend.
	Author() string

	// IsAvailable returns true if the backend can run on this system.
	IsAvailable() bool

	// Roles returns the verbs the backend implements.
	Roles() enum.Roles

	// Filters returns the result filters the backend honours.
	Filters() enum.Filter

	// Groups returns the groups search-group accepts.
	Groups() []enum.Group

	// MimeTypes returns the file types install-files accepts.
	MimeTypes() []string

	// SupportsParallelization reports whether two jobs may run at once.
	SupportsParallelization() bool

	// Cancel asks the backend to interrupt job. The job context is
	// cancelled before Cancel is called.
	Cancel(job *Job)

	SearchNames(job *Job, filters enum.Filter, values []string)
	SearchDetails(job *Job, filters enum.Filter, values []string)
	SearchFiles(job *Job, filters enum.Filter, values []string)
	SearchGroups(job *Job, filters enum.Filter, values []string)
	WhatProvides(job *Job, filters enum.Filter, values []string)
	Resolve(job *Job, filters enum.Filter, packages []string)
	GetPackages(job *Job, filters enum.Filter)
	GetUpdates(job *Job, filters enum.Filter)
	GetDetails(job *Job, packageIDs []string)
	GetFiles(job *Job, packageIDs []string)
	GetUpdateDetail(job *Job, packageIDs []string)
	DependsOn(job *Job, filters enum.Filter, packageIDs []string, recursive bool)
	RequiredBy(job *Job, filters enum.Filter, packageIDs []string, recursive bool)
	DownloadPackages(job *Job, packageIDs []string, directory string)
	RefreshCache(job *Job, force bool)
	InstallPackages(job *Job, flags enum.TransactionFlag, packageIDs []string)
	InstallFiles(job *Job, flags enum.TransactionFlag, files []string)
	RemovePackages(job *Job, flags enum.TransactionFlag, packageIDs []string, allowDeps, autoremove bool)
	UpdatePackages(job *Job, flags enum.TransactionFlag, packageIDs []string)
	UpgradeSystem(job *Job, flags enum.TransactionFlag, distroID string, kind enum.UpgradeKind)
	RepairSystem(job *Job, flags enum.TransactionFlag)
	GetRepoList(job *Job, filters enum.Filter)
	RepoEnable(job *Job, repoID string, enabled bool)
	RepoSetData(job *Job, repoID, parameter, value string)
	RepoRemove(job *Job, flags enum.TransactionFlag, repoID string, autoremove bool)
	InstallSignature(job *Job, sigType enum.SigType, keyID, packageID string)
	AcceptEula(job *Job, eulaID string)
	GetDistroUpgrades(job *Job)
	GetCategories(job *Job)
}

// Unsupported implements every verb by reporting not-supported. Backends
// embed it and override the verbs they provide.
type Unsupported struct{}

func notSupported(job *Job) {
	job.ErrorCode(enum.ErrorNotSupported, "%s is not supported by this backend", job.Role())
	job.Finished()
}

func (Unsupported) Author() string                                    { return "" }
func (Unsupported) Groups() []enum.Group                              { return nil }
func (Unsupported) MimeTypes() []string                               { return nil }
func (Unsupported) SupportsParallelization() bool                     { return false }
func (Unsupported) Cancel(*Job)                                       {}
func (Unsupported) SearchNames(job *Job, _ enum.Filter, _ []string)   { notSupported(job) }
func (Unsupported) SearchDetails(job *Job, _ enum.Filter, _ []string) { notSupported(job) }
func (Unsupported) SearchFiles(job *Job, _ enum.Filter, _ []string)   { notSupported(job) }
func (Unsupported) SearchGroups(job *Job, _ enum.Filter, _ []string)  { notSupported(job) }
func (Unsupported) WhatProvides(job *Job, _ enum.Filter, _ []string)  { notSupported(job) }
func (Unsupported) Resolve(job *Job, _ enum.Filter, _ []string)       { notSupported(job) }
func (Unsupported) GetPackages(job *Job, _ enum.Filter)               { notSupported(job) }
func (Unsupported) GetUpdates(job *Job, _ enum.Filter)                { notSupported(job) }
func (Unsupported) GetDetails(job *Job, _ []string)                   { notSupported(job) }
func (Unsupported) GetFiles(job *Job, _ []string)                     { notSupported(job) }
func (Unsupported) GetUpdateDetail(job *Job, _ []string)              { notSupported(job) }
func (Unsupported) DependsOn(job *Job, _ enum.Filter, _ []string, _ bool) {
	notSupported(job)
}
func (Unsupported) RequiredBy(job *Job, _ enum.Filter, _ []string, _ bool) {
	notSupported(job)
}
func (Unsupported) DownloadPackages(job *Job, _ []string, _ string) { notSupported(job) }
func (Unsupported) RefreshCache(job *Job, _ bool)                   { notSupported(job) }
func (Unsupported) InstallPackages(job *Job, _ enum.TransactionFlag, _ []string) {
	notSupported(job)
}
func (Unsupported) InstallFiles(job *Job, _ enum.TransactionFlag, _ []string) { notSupported(job) }
func (Unsupported) RemovePackages(job *Job, _ enum.TransactionFlag, _ []string, _, _ bool) {
	notSupported(job)
}
func (Unsupported) UpdatePackages(job *Job, _ enum.TransactionFlag, _ []string) {
	notSupported(job)
}
func (Unsupported) UpgradeSystem(job *Job, _ enum.TransactionFlag, _ string, _ enum.UpgradeKind) {
	notSupported(job)
}
func (Unsupported) RepairSystem(job *Job, _ enum.TransactionFlag) { notSupported(job) }
func (Unsupported) GetRepoList(job *Job, _ enum.Filter)           { notSupported(job) }
func (Unsupported) RepoEnable(job *Job, _ string, _ bool)         { notSupported(job) }
func (Unsupported) RepoSetData(job *Job, _, _, _ string)          { notSupported(job) }
func (Unsupported) RepoRemove(job *Job, _ enum.TransactionFlag, _ string, _ bool) {
	notSupported(job)
}
func (Unsupported) InstallSignature(job *Job, _ enum.SigType, _, _ string) { notSupported(job) }
func (Unsupported) AcceptEula(job *Job, _ string)                          { notSupported(job) }
func (Unsupported) GetDistroUpgrades(job *Job)                             { notSupported(job) }
func (Unsupported) GetCategories(job *Job)                                 { notSupported(job) }
