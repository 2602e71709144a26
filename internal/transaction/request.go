package transaction

import (
	"fmt"

	"pkgd/internal/history"
	"pkgd/pkg/backend"
	"pkgd/pkg/enum"
)

// Request is the verb a transaction runs together with the parameters
// captured when the caller asked for it. The parameters are replayed
// unchanged every time the transaction is run, including lock retries.
type Request interface {
	// Role returns the verb.
	Role() enum.Role

	validate(l limits) error
	run(env *runEnv)
}

// runEnv is what a request needs to execute.
type runEnv struct {
	backend backend.Backend
	job     *backend.Job
	history History
}

// filtered requests restrict their results.
type filtered interface {
	filter() enum.Filter
}

// flagged requests carry transaction flags.
type flagged interface {
	transactionFlags() enum.TransactionFlag
}

// targeted requests act on explicit packages, files or repositories.
type targeted interface {
	targets() []string
}

func filtersOf(r Request) enum.Filter {
	if f, ok := r.(filtered); ok {
		return f.filter()
	}
	return enum.FilterNone
}

func flagsOf(r Request) enum.TransactionFlag {
	if f, ok := r.(flagged); ok {
		return f.transactionFlags()
	}
	return enum.FlagNone
}

func targetsOf(r Request) []string {
	if t, ok := r.(targeted); ok {
		return t.targets()
	}
	return nil
}

// SearchRequest runs one of the search verbs.
type SearchRequest struct {
	// Kind is RoleSearchName, RoleSearchDetails, RoleSearchFile,
	// RoleSearchGroup or RoleWhatProvides.
	Kind    enum.Role
	Filters enum.Filter
	Values  []string
}

func (r *SearchRequest) Role() enum.Role     { return r.Kind }
func (r *SearchRequest) filter() enum.Filter { return r.Filters }
func (r *SearchRequest) targets() []string   { return r.Values }

func (r *SearchRequest) validate(l limits) error {
	switch r.Kind {
	case enum.RoleSearchName, enum.RoleSearchDetails, enum.RoleSearchFile, enum.RoleWhatProvides:
	case enum.RoleSearchGroup:
		for _, v := range r.Values {
			if enum.ParseGroup(v) == enum.GroupUnknown {
				return fmt.Errorf("%w: unknown group %q", ErrSearchInvalid, v)
			}
		}
	default:
		return fmt.Errorf("%w: %s is not a search", ErrInvalidState, r.Kind)
	}
	if err := checkFilter(r.Filters); err != nil {
		return err
	}
	return l.checkSearch(r.Values)
}

func (r *SearchRequest) run(env *runEnv) {
	switch r.Kind {
	case enum.RoleSearchName:
		env.backend.SearchNames(env.job, r.Filters, r.Values)
	case enum.RoleSearchDetails:
		env.backend.SearchDetails(env.job, r.Filters, r.Values)
	case enum.RoleSearchFile:
		env.backend.SearchFiles(env.job, r.Filters, r.Values)
	case enum.RoleSearchGroup:
		env.backend.SearchGroups(env.job, r.Filters, r.Values)
	case enum.RoleWhatProvides:
		env.backend.WhatProvides(env.job, r.Filters, r.Values)
	}
}

// ResolveRequest turns package names into package ids.
type ResolveRequest struct {
	Filters  enum.Filter
	Packages []string
}

func (r *ResolveRequest) Role() enum.Role     { return enum.RoleResolve }
func (r *ResolveRequest) filter() enum.Filter { return r.Filters }
func (r *ResolveRequest) targets() []string   { return r.Packages }

func (r *ResolveRequest) validate(l limits) error {
	if err := checkFilter(r.Filters); err != nil {
		return err
	}
	return l.checkNames(r.Packages)
}

func (r *ResolveRequest) run(env *runEnv) {
	env.backend.Resolve(env.job, r.Filters, r.Packages)
}

// ListRequest runs get-packages, get-updates or get-repo-list.
type ListRequest struct {
	Kind    enum.Role
	Filters enum.Filter
}

func (r *ListRequest) Role() enum.Role     { return r.Kind }
func (r *ListRequest) filter() enum.Filter { return r.Filters }

func (r *ListRequest) validate(limits) error {
	switch r.Kind {
	case enum.RoleGetPackages, enum.RoleGetUpdates, enum.RoleGetRepoList:
	default:
		return fmt.Errorf("%w: %s is not a listing", ErrInvalidState, r.Kind)
	}
	return checkFilter(r.Filters)
}

func (r *ListRequest) run(env *runEnv) {
	switch r.Kind {
	case enum.RoleGetPackages:
		env.backend.GetPackages(env.job, r.Filters)
	case enum.RoleGetUpdates:
		env.backend.GetUpdates(env.job, r.Filters)
	case enum.RoleGetRepoList:
		env.backend.GetRepoList(env.job, r.Filters)
	}
}

// DetailsRequest runs get-details, get-files or get-update-detail.
type DetailsRequest struct {
	Kind       enum.Role
	PackageIDs []string
}

func (r *DetailsRequest) Role() enum.Role   { return r.Kind }
func (r *DetailsRequest) targets() []string { return r.PackageIDs }

func (r *DetailsRequest) validate(l limits) error {
	switch r.Kind {
	case enum.RoleGetDetails, enum.RoleGetFiles, enum.RoleGetUpdateDetail:
	default:
		return fmt.Errorf("%w: %s is not a details query", ErrInvalidState, r.Kind)
	}
	return l.checkPackageIDs(r.PackageIDs)
}

func (r *DetailsRequest) run(env *runEnv) {
	switch r.Kind {
	case enum.RoleGetDetails:
		env.backend.GetDetails(env.job, r.PackageIDs)
	case enum.RoleGetFiles:
		env.backend.GetFiles(env.job, r.PackageIDs)
	case enum.RoleGetUpdateDetail:
		env.backend.GetUpdateDetail(env.job, r.PackageIDs)
	}
}

// DependsRequest runs depends-on or required-by.
type DependsRequest struct {
	Kind       enum.Role
	Filters    enum.Filter
	PackageIDs []string
	Recursive  bool
}

func (r *DependsRequest) Role() enum.Role     { return r.Kind }
func (r *DependsRequest) filter() enum.Filter { return r.Filters }
func (r *DependsRequest) targets() []string   { return r.PackageIDs }

func (r *DependsRequest) validate(l limits) error {
	if r.Kind != enum.RoleDependsOn && r.Kind != enum.RoleRequiredBy {
		return fmt.Errorf("%w: %s is not a dependency query", ErrInvalidState, r.Kind)
	}
	if err := checkFilter(r.Filters); err != nil {
		return err
	}
	return l.checkPackageIDs(r.PackageIDs)
}

func (r *DependsRequest) run(env *runEnv) {
	if r.Kind == enum.RoleDependsOn {
		env.backend.DependsOn(env.job, r.Filters, r.PackageIDs, r.Recursive)
		return
	}
	env.backend.RequiredBy(env.job, r.Filters, r.PackageIDs, r.Recursive)
}

// DownloadRequest fetches packages into a directory.
type DownloadRequest struct {
	PackageIDs []string
	Directory  string
}

func (r *DownloadRequest) Role() enum.Role   { return enum.RoleDownloadPackages }
func (r *DownloadRequest) targets() []string { return r.PackageIDs }

func (r *DownloadRequest) validate(l limits) error {
	if err := checkText("directory", r.Directory, true); err != nil {
		return err
	}
	return l.checkPackageIDs(r.PackageIDs)
}

func (r *DownloadRequest) run(env *runEnv) {
	env.backend.DownloadPackages(env.job, r.PackageIDs, r.Directory)
}

// RefreshRequest refreshes the package metadata.
type RefreshRequest struct {
	Force bool
}

func (r *RefreshRequest) Role() enum.Role       { return enum.RoleRefreshCache }
func (r *RefreshRequest) validate(limits) error { return nil }
func (r *RefreshRequest) run(env *runEnv)       { env.backend.RefreshCache(env.job, r.Force) }

// InstallRequest installs packages from repositories.
type InstallRequest struct {
	Flags      enum.TransactionFlag
	PackageIDs []string
}

func (r *InstallRequest) Role() enum.Role                        { return enum.RoleInstallPackages }
func (r *InstallRequest) transactionFlags() enum.TransactionFlag { return r.Flags }
func (r *InstallRequest) targets() []string                      { return r.PackageIDs }
func (r *InstallRequest) validate(l limits) error                { return l.checkPackageIDs(r.PackageIDs) }

func (r *InstallRequest) run(env *runEnv) {
	env.backend.InstallPackages(env.job, r.Flags, r.PackageIDs)
}

// InstallFilesRequest installs local package files.
type InstallFilesRequest struct {
	Flags enum.TransactionFlag
	Files []string
}

func (r *InstallFilesRequest) Role() enum.Role                        { return enum.RoleInstallFiles }
func (r *InstallFilesRequest) transactionFlags() enum.TransactionFlag { return r.Flags }
func (r *InstallFilesRequest) targets() []string                      { return r.Files }
func (r *InstallFilesRequest) validate(limits) error                  { return checkFiles(r.Files) }

func (r *InstallFilesRequest) run(env *runEnv) {
	env.backend.InstallFiles(env.job, r.Flags, r.Files)
}

// RemoveRequest removes installed packages.
type RemoveRequest struct {
	Flags      enum.TransactionFlag
	PackageIDs []string
	AllowDeps  bool
	Autoremove bool
}

func (r *RemoveRequest) Role() enum.Role                        { return enum.RoleRemovePackages }
func (r *RemoveRequest) transactionFlags() enum.TransactionFlag { return r.Flags }
func (r *RemoveRequest) targets() []string                      { return r.PackageIDs }
func (r *RemoveRequest) validate(l limits) error                { return l.checkPackageIDs(r.PackageIDs) }

func (r *RemoveRequest) run(env *runEnv) {
	env.backend.RemovePackages(env.job, r.Flags, r.PackageIDs, r.AllowDeps, r.Autoremove)
}

// UpdateRequest updates packages to the versions given by their ids.
type UpdateRequest struct {
	Flags      enum.TransactionFlag
	PackageIDs []string
}

func (r *UpdateRequest) Role() enum.Role                        { return enum.RoleUpdatePackages }
func (r *UpdateRequest) transactionFlags() enum.TransactionFlag { return r.Flags }
func (r *UpdateRequest) targets() []string                      { return r.PackageIDs }
func (r *UpdateRequest) validate(l limits) error                { return l.checkPackageIDs(r.PackageIDs) }

func (r *UpdateRequest) run(env *runEnv) {
	env.backend.UpdatePackages(env.job, r.Flags, r.PackageIDs)
}

// UpgradeRequest upgrades the whole system, optionally to a new distribution release.
type UpgradeRequest struct {
	Flags    enum.TransactionFlag
	DistroID string
	Kind     enum.UpgradeKind
}

func (r *UpgradeRequest) Role() enum.Role                        { return enum.RoleUpgradeSystem }
func (r *UpgradeRequest) transactionFlags() enum.TransactionFlag { return r.Flags }

func (r *UpgradeRequest) validate(limits) error {
	return checkText("distribution id", r.DistroID, false)
}

func (r *UpgradeRequest) run(env *runEnv) {
	env.backend.UpgradeSystem(env.job, r.Flags, r.DistroID, r.Kind)
}

// RepairRequest repairs a broken package database.
type RepairRequest struct {
	Flags enum.TransactionFlag
}

func (r *RepairRequest) Role() enum.Role                        { return enum.RoleRepairSystem }
func (r *RepairRequest) transactionFlags() enum.TransactionFlag { return r.Flags }
func (r *RepairRequest) validate(limits) error                  { return nil }
func (r *RepairRequest) run(env *runEnv)                        { env.backend.RepairSystem(env.job, r.Flags) }

// RepoEnableRequest enables or disables a repository.
type RepoEnableRequest struct {
	RepoID  string
	Enabled bool
}

func (r *RepoEnableRequest) Role() enum.Role   { return enum.RoleRepoEnable }
func (r *RepoEnableRequest) targets() []string { return []string{r.RepoID} }

func (r *RepoEnableRequest) validate(limits) error {
	return checkText("repository id", r.RepoID, true)
}

func (r *RepoEnableRequest) run(env *runEnv) {
	env.backend.RepoEnable(env.job, r.RepoID, r.Enabled)
}

// RepoSetDataRequest changes one parameter of a repository.
type RepoSetDataRequest struct {
	RepoID    string
	Parameter string
	Value     string
}

func (r *RepoSetDataRequest) Role() enum.Role   { return enum.RoleRepoSetData }
func (r *RepoSetDataRequest) targets() []string { return []string{r.RepoID} }

func (r *RepoSetDataRequest) validate(limits) error {
	if err := checkText("repository id", r.RepoID, true); err != nil {
		return err
	}
	if err := checkText("parameter", r.Parameter, true); err != nil {
		return err
	}
	return checkText("value", r.Value, false)
}

func (r *RepoSetDataRequest) run(env *runEnv) {
	env.backend.RepoSetData(env.job, r.RepoID, r.Parameter, r.Value)
}

// RepoRemoveRequest removes a repository.
type RepoRemoveRequest struct {
	Flags      enum.TransactionFlag
	RepoID     string
	Autoremove bool
}

func (r *RepoRemoveRequest) Role() enum.Role                        { return enum.RoleRepoRemove }
func (r *RepoRemoveRequest) transactionFlags() enum.TransactionFlag { return r.Flags }
func (r *RepoRemoveRequest) targets() []string                      { return []string{r.RepoID} }

func (r *RepoRemoveRequest) validate(limits) error {
	return checkText("repository id", r.RepoID, true)
}

func (r *RepoRemoveRequest) run(env *runEnv) {
	env.backend.RepoRemove(env.job, r.Flags, r.RepoID, r.Autoremove)
}

// InstallSignatureRequest imports a repository signing key.
type InstallSignatureRequest struct {
	Type      enum.SigType
	KeyID     string
	PackageID string
}

func (r *InstallSignatureRequest) Role() enum.Role   { return enum.RoleInstallSignature }
func (r *InstallSignatureRequest) targets() []string { return []string{r.KeyID} }

func (r *InstallSignatureRequest) validate(l limits) error {
	if err := checkText("key id", r.KeyID, true); err != nil {
		return err
	}
	return l.checkPackageIDs([]string{r.PackageID})
}

func (r *InstallSignatureRequest) run(env *runEnv) {
	env.backend.InstallSignature(env.job, r.Type, r.KeyID, r.PackageID)
}

// AcceptEulaRequest records that the user agreed to a licence.
type AcceptEulaRequest struct {
	EulaID string
}

func (r *AcceptEulaRequest) Role() enum.Role   { return enum.RoleAcceptEula }
func (r *AcceptEulaRequest) targets() []string { return []string{r.EulaID} }

func (r *AcceptEulaRequest) validate(limits) error {
	return checkText("eula id", r.EulaID, true)
}

func (r *AcceptEulaRequest) run(env *runEnv) { env.backend.AcceptEula(env.job, r.EulaID) }

// DistroUpgradesRequest lists available distribution upgrades.
type DistroUpgradesRequest struct{}

func (r *DistroUpgradesRequest) Role() enum.Role       { return enum.RoleGetDistroUpgrades }
func (r *DistroUpgradesRequest) validate(limits) error { return nil }
func (r *DistroUpgradesRequest) run(env *runEnv)       { env.backend.GetDistroUpgrades(env.job) }

// CategoriesRequest lists package categories.
type CategoriesRequest struct{}

func (r *CategoriesRequest) Role() enum.Role       { return enum.RoleGetCategories }
func (r *CategoriesRequest) validate(limits) error { return nil }
func (r *CategoriesRequest) run(env *runEnv)       { env.backend.GetCategories(env.job) }

// OldTransactionsRequest lists past transactions from the history
// database. It is answered by the daemon without calling the backend.
type OldTransactionsRequest struct {
	// Number limits the result, 0 meaning all.
	Number int
}

func (r *OldTransactionsRequest) Role() enum.Role { return enum.RoleGetOldTransactions }

func (r *OldTransactionsRequest) validate(limits) error {
	if r.Number < 0 {
		return fmt.Errorf("%w: negative number of transactions", ErrInputInvalid)
	}
	return nil
}

func (r *OldTransactionsRequest) run(env *runEnv) {
	if env.history == nil {
		env.job.ErrorCode(enum.ErrorNotSupported, "no transaction database is configured")
		env.job.Finished()
		return
	}
	env.job.Status(enum.StatusQuery)
	entries, err := env.history.List(r.Number)
	if err != nil {
		env.job.ErrorCode(enum.ErrorInternalError, "failed to read transaction database: %v", err)
		env.job.Finished()
		return
	}
	for _, e := range entries {
		env.job.Emit(OldTransactionEvent{Entry: e})
	}
	env.job.Finished()
}

// OldTransactionEvent carries one history entry of get-old-transactions.
type OldTransactionEvent struct {
	Entry history.Entry
}

// EventName implements backend.Event.
func (OldTransactionEvent) EventName() string { return "transaction" }
