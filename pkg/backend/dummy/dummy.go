// Package dummy provides an in-memory backend used for self-test mode,
// demonstrations and tests. It never touches the system.
package dummy

import (
	"sort"
	"strings"
	"sync"
	"time"

	"pkgd/pkg/backend"
	"pkgd/pkg/enum"
	"pkgd/pkg/packageid"
)

const (
	// SignedPackage needs the repository key KeyID before it installs.
	SignedPackage = "vips-doc"

	// EulaPackage needs the licence EulaID accepted before it installs.
	EulaPackage = "nvidia-utils"

	// MediaPackage asks for installation media to be inserted.
	MediaPackage = "offline-docs"

	// KeyID is the repository key SignedPackage is signed with.
	KeyID = "BB7576AC"

	// EulaID is the licence EulaPackage ships under.
	EulaID = "nvidia-eula"
)

// Package is one entry of the simulated package database.
type Package struct {
	Name        string
	Version     string
	Arch        string
	Repo        string
	Summary     string
	Description string
	License     string
	URL         string
	Group       enum.Group
	Size        uint64
	Installed   bool
	Files       []string
	Depends     []string
	Update      string // newer version available, if any
}

// ID returns the package id for the package's current state.
func (p Package) ID() string {
	data := p.Repo
	if p.Installed {
		data = packageid.DataInstalled
	}
	return packageid.Build(p.Name, p.Version, p.Arch, data)
}

// Options tune the simulated behaviour.
type Options struct {
	// Delay is how long each progress step takes.
	Delay time.Duration

	// Steps is the number of progress steps of a system-changing verb.
	Steps int

	// LockContention is how many system-changing runs report lock-required
	// before one succeeds. A negative value never succeeds.
	LockContention int

	// QueryLockContention is LockContention for the query verbs, which
	// report lock-required after their first step.
	QueryLockContention int

	// Parallel lets the scheduler run jobs concurrently.
	Parallel bool
}

// Dummy is the simulated backend.
type Dummy struct {
	backend.Unsupported

	opts Options

	mu           sync.Mutex
	packages     map[string]*Package
	repos        map[string]bool
	trustedKeys  map[string]bool
	acceptedEula map[string]bool
	contention   int
	queryLock    int
	calls        map[enum.Role]int
	running      int
	maxRunning   int
}

// New creates a dummy backend seeded with a small package database.
func New(opts Options) *Dummy {
	if opts.Steps <= 0 {
		opts.Steps = 10
	}
	d := &Dummy{
		opts:         opts,
		packages:     make(map[string]*Package),
		repos:        map[string]bool{"core": true, "extra": true, "testing": false},
		trustedKeys:  make(map[string]bool),
		acceptedEula: make(map[string]bool),
		contention:   opts.LockContention,
		queryLock:    opts.QueryLockContention,
		calls:        make(map[enum.Role]int),
	}
	for _, p := range seed() {
		p := p
		d.packages[p.Name] = &p
	}
	return d
}

func seed() []Package {
	return []Package{
		{Name: "glib2", Version: "2.80.0-1", Arch: "x86_64", Repo: "core", Summary: "The GLib library", Group: enum.GroupSystem, Installed: true,
			Files: []string{"/usr/lib/libglib-2.0.so"}},
		{Name: "gtk3", Version: "3.24.41-1", Arch: "x86_64", Repo: "extra", Summary: "GTK+ Libraries", Group: enum.GroupDesktopGnome, Installed: true,
			Depends: []string{"glib2"}, Files: []string{"/usr/lib/libgtk-3.so"}},
		{Name: "evince", Version: "46.0-1", Arch: "x86_64", Repo: "extra", Summary: "PDF Document viewer", Group: enum.GroupOffice, Installed: true,
			Depends: []string{"gtk3"}, Files: []string{"/usr/bin/evince"}},
		{Name: "powertop", Version: "2.15-1", Arch: "x86_64", Repo: "extra", Summary: "Power consumption monitor", Group: enum.GroupAdminTools,
			Files: []string{"/usr/bin/powertop"}},
		{Name: "gnome-power-manager", Version: "43.0-1", Arch: "x86_64", Repo: "extra", Summary: "Power management tool", Group: enum.GroupDesktopGnome,
			Depends: []string{"gtk3"}, Files: []string{"/usr/bin/gnome-power-statistics"}},
		{Name: "kernel", Version: "6.8.1-1", Arch: "x86_64", Repo: "core", Summary: "The Linux kernel", Group: enum.GroupSystem, Installed: true,
			Update: "6.8.2-1", Files: []string{"/boot/vmlinuz-linux"}},
		{Name: "scribus", Version: "1.6.1-1", Arch: "x86_64", Repo: "extra", Summary: "Desktop publishing program", Group: enum.GroupPublishing,
			Depends: []string{"gtk3"}},
		{Name: SignedPackage, Version: "8.15.2-1", Arch: "any", Repo: "testing", Summary: "The vips documentation package", Group: enum.GroupDocumentation},
		{Name: EulaPackage, Version: "550.67-1", Arch: "x86_64", Repo: "extra", Summary: "NVIDIA driver utilities", Group: enum.GroupSystem, License: "custom"},
		{Name: MediaPackage, Version: "1.0-1", Arch: "any", Repo: "extra", Summary: "Documentation from DVD", Group: enum.GroupDocumentation},
	}
}

// SetLockContention sets how many system-changing runs report lock-required.
func (d *Dummy) SetLockContention(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contention = n
}

// Calls returns how many times role was invoked.
func (d *Dummy) Calls(role enum.Role) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[role]
}

// MaxConcurrent returns the highest number of jobs seen running at once.
func (d *Dummy) MaxConcurrent() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxRunning
}

// Name returns the short identifier for this backend.
func (d *Dummy) Name() string { return "dummy" }

// Description returns the human-readable name.
func (d *Dummy) Description() string { return "Dummy backend" }

// Author returns who maintains the backend.
func (d *Dummy) Author() string { return "pkgd developers" }

// IsAvailable always returns true.
func (d *Dummy) IsAvailable() bool { return true }

// SupportsParallelization is configured through Options.
func (d *Dummy) SupportsParallelization() bool { return d.opts.Parallel }

// Roles returns the verbs the dummy backend implements.
func (d *Dummy) Roles() enum.Roles {
	return enum.NewRoles(
		enum.RoleSearchName, enum.RoleSearchDetails, enum.RoleSearchFile, enum.RoleSearchGroup,
		enum.RoleWhatProvides, enum.RoleResolve, enum.RoleGetPackages, enum.RoleGetUpdates,
		enum.RoleGetDetails, enum.RoleGetFiles, enum.RoleGetUpdateDetail, enum.RoleDependsOn,
		enum.RoleRequiredBy, enum.RoleDownloadPackages, enum.RoleRefreshCache,
		enum.RoleInstallPackages, enum.RoleInstallFiles, enum.RoleRemovePackages,
		enum.RoleUpdatePackages, enum.RoleUpgradeSystem, enum.RoleRepairSystem,
		enum.RoleGetRepoList, enum.RoleRepoEnable, enum.RoleRepoSetData, enum.RoleRepoRemove,
		enum.RoleInstallSignature, enum.RoleAcceptEula, enum.RoleGetDistroUpgrades,
		enum.RoleGetCategories,
	)
}

// Filters returns the filters honoured by the dummy backend.
func (d *Dummy) Filters() enum.Filter {
	return enum.FilterInstalled | enum.FilterNotInstalled | enum.FilterGUI | enum.FilterNotGUI
}

// Groups returns the groups present in the simulated database.
func (d *Dummy) Groups() []enum.Group {
	return []enum.Group{enum.GroupSystem, enum.GroupDesktopGnome, enum.GroupOffice, enum.GroupAdminTools,
		enum.GroupPublishing, enum.GroupDocumentation}
}

// MimeTypes returns the file types install-files accepts.
func (d *Dummy) MimeTypes() []string {
	return []string{"application/x-dummy-package"}
}

// Cancel is handled through the job context.
func (d *Dummy) Cancel(job *backend.Job) {
	job.Logger().Debug("dummy backend cancel requested")
}

// enter records a call and tracks concurrency; the returned func must be deferred.
func (d *Dummy) enter(job *backend.Job) func() {
	d.mu.Lock()
	d.calls[job.Role()]++
	d.running++
	if d.running > d.maxRunning {
		d.maxRunning = d.running
	}
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		d.running--
		d.mu.Unlock()
	}
}

// lockContended reports whether this run must fail with lock-required.
// left is the matching contention counter.
func (d *Dummy) lockContended(left *int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if *left < 0 {
		return true
	}
	if *left > 0 {
		*left--
		return true
	}
	return false
}

// sleep waits one step, returning false if the job was cancelled.
func (d *Dummy) sleep(job *backend.Job) bool {
	if d.opts.Delay <= 0 {
		return !job.IsCancelled()
	}
	select {
	case <-job.Context().Done():
		return false
	case <-time.After(d.opts.Delay):
		return true
	}
}

func (d *Dummy) cancelled(job *backend.Job) {
	job.ErrorCode(enum.ErrorTransactionCancelled, "the task was stopped successfully")
	job.Finished()
}

// snapshot returns the packages sorted by name.
func (d *Dummy) snapshot() []Package {
	d.mu.Lock()
	defer d.mu.Unlock()
	pkgs := make([]Package, 0, len(d.packages))
	for _, p := range d.packages {
		pkgs = append(pkgs, *p)
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })
	return pkgs
}

func matchesFilter(p Package, filters enum.Filter) bool {
	if filters.Has(enum.FilterInstalled) && !p.Installed {
		return false
	}
	if filters.Has(enum.FilterNotInstalled) && p.Installed {
		return false
	}
	gui := p.Group == enum.GroupDesktopGnome || p.Group == enum.GroupOffice || p.Group == enum.GroupPublishing
	if filters.Has(enum.FilterGUI) && !gui {
		return false
	}
	if filters.Has(enum.FilterNotGUI) && gui {
		return false
	}
	return true
}

func emitPackage(job *backend.Job, p Package) {
	info := enum.InfoAvailable
	if p.Installed {
		info = enum.InfoInstalled
	}
	job.Package(info, p.ID(), p.Summary)
}

// query runs a read-only verb emitting every package accepted by match.
func (d *Dummy) query(job *backend.Job, filters enum.Filter, match func(Package) bool) {
	defer d.enter(job)()
	job.Status(enum.StatusQuery)
	job.Percentage(backend.PercentageUnknown)

	if !d.sleep(job) {
		d.cancelled(job)
		return
	}
	if d.lockContended(&d.queryLock) {
		job.ErrorCode(enum.ErrorLockRequired, "the package cache is being rebuilt by another process")
		d.sleep(job)
		job.Finished()
		return
	}
	for _, p := range d.snapshot() {
		if matchesFilter(p, filters) && match(p) {
			emitPackage(job, p)
		}
	}
	job.Percentage(100)
	job.Finished()
}

func containsAll(s string, values []string) bool {
	s = strings.ToLower(s)
	for _, v := range values {
		if !strings.Contains(s, strings.ToLower(v)) {
			return false
		}
	}
	return true
}

// SearchNames searches package names.
func (d *Dummy) SearchNames(job *backend.Job, filters enum.Filter, values []string) {
	d.query(job, filters, func(p Package) bool { return containsAll(p.Name, values) })
}

// SearchDetails searches names and summaries.
func (d *Dummy) SearchDetails(job *backend.Job, filters enum.Filter, values []string) {
	d.query(job, filters, func(p Package) bool {
		return containsAll(p.Name+" "+p.Summary+" "+p.Description, values)
	})
}

// SearchFiles finds the packages owning files.
func (d *Dummy) SearchFiles(job *backend.Job, filters enum.Filter, values []string) {
	d.query(job, filters, func(p Package) bool {
		for _, f := range p.Files {
			for _, v := range values {
				if f == v || strings.HasSuffix(f, "/"+strings.TrimPrefix(v, "/")) {
					return true
				}
			}
		}
		return false
	})
}

// SearchGroups lists packages in groups.
func (d *Dummy) SearchGroups(job *backend.Job, filters enum.Filter, values []string) {
	d.query(job, filters, func(p Package) bool {
		for _, v := range values {
			if enum.ParseGroup(v) == p.Group {
				return true
			}
		}
		return false
	})
}

// WhatProvides matches provided names exactly.
func (d *Dummy) WhatProvides(job *backend.Job, filters enum.Filter, values []string) {
	d.Resolve(job, filters, values)
}

// Resolve turns names into package ids.
func (d *Dummy) Resolve(job *backend.Job, filters enum.Filter, packages []string) {
	d.query(job, filters, func(p Package) bool {
		for _, name := range packages {
			if p.Name == name {
				return true
			}
		}
		return false
	})
}

// GetPackages lists every package.
func (d *Dummy) GetPackages(job *backend.Job, filters enum.Filter) {
	d.query(job, filters, func(Package) bool { return true })
}

// GetUpdates lists installed packages with newer versions.
func (d *Dummy) GetUpdates(job *backend.Job, _ enum.Filter) {
	defer d.enter(job)()
	job.Status(enum.StatusQuery)
	for _, p := range d.snapshot() {
		if p.Installed && p.Update != "" {
			job.Package(enum.InfoSecurity, packageid.Build(p.Name, p.Update, p.Arch, p.Repo), p.Summary)
		}
	}
	job.Finished()
}

// lookup returns the package named by a package id.
func (d *Dummy) lookup(job *backend.Job, pid string) (Package, bool) {
	name := packageid.Name(pid)
	d.mu.Lock()
	p, ok := d.packages[name]
	d.mu.Unlock()
	if !ok {
		job.ErrorCode(enum.ErrorPackageNotFound, "package %s not found", name)
		return Package{}, false
	}
	return *p, true
}

// perPackage runs fn for every id, finishing the job on the first miss.
func (d *Dummy) perPackage(job *backend.Job, status enum.Status, packageIDs []string, fn func(Package)) {
	defer d.enter(job)()
	job.Status(status)
	for _, pid := range packageIDs {
		p, ok := d.lookup(job, pid)
		if !ok {
			job.Finished()
			return
		}
		fn(p)
	}
	job.Finished()
}

// GetDetails reports package descriptions.
func (d *Dummy) GetDetails(job *backend.Job, packageIDs []string) {
	d.perPackage(job, enum.StatusInfo, packageIDs, func(p Package) {
		job.Details(backend.DetailsEvent{
			PackageID:   p.ID(),
			Summary:     p.Summary,
			License:     p.License,
			Group:       p.Group,
			Description: p.Description,
			URL:         p.URL,
			Size:        p.Size,
		})
	})
}

// GetFiles lists files of packages.
func (d *Dummy) GetFiles(job *backend.Job, packageIDs []string) {
	d.perPackage(job, enum.StatusInfo, packageIDs, func(p Package) {
		job.Files(p.ID(), p.Files)
	})
}

// GetUpdateDetail describes updates.
func (d *Dummy) GetUpdateDetail(job *backend.Job, packageIDs []string) {
	d.perPackage(job, enum.StatusInfo, packageIDs, func(p Package) {
		restart := enum.RestartNone
		if p.Name == "kernel" {
			restart = enum.RestartSystem
		}
		job.UpdateDetail(backend.UpdateDetailEvent{
			PackageID:  packageid.Build(p.Name, p.Update, p.Arch, p.Repo),
			Updates:    []string{p.ID()},
			Restart:    restart,
			UpdateText: "Fixes a few things",
			State:      enum.UpdateStateStable,
		})
	})
}

// DependsOn lists direct dependencies.
func (d *Dummy) DependsOn(job *backend.Job, filters enum.Filter, packageIDs []string, _ bool) {
	d.perPackage(job, enum.StatusDepResolve, packageIDs, func(p Package) {
		for _, dep := range p.Depends {
			if q, ok := d.lookup(job, dep); ok && matchesFilter(q, filters) {
				emitPackage(job, q)
			}
		}
	})
}

// RequiredBy lists packages depending on the given ones.
func (d *Dummy) RequiredBy(job *backend.Job, filters enum.Filter, packageIDs []string, _ bool) {
	d.perPackage(job, enum.StatusDepResolve, packageIDs, func(p Package) {
		for _, q := range d.snapshot() {
			for _, dep := range q.Depends {
				if dep == p.Name && matchesFilter(q, filters) {
					emitPackage(job, q)
				}
			}
		}
	})
}

// GetRepoList lists repositories.
func (d *Dummy) GetRepoList(job *backend.Job, _ enum.Filter) {
	defer d.enter(job)()
	d.mu.Lock()
	names := make([]string, 0, len(d.repos))
	for name := range d.repos {
		names = append(names, name)
	}
	enabled := make(map[string]bool, len(d.repos))
	for k, v := range d.repos {
		enabled[k] = v
	}
	d.mu.Unlock()

	sort.Strings(names)
	for _, name := range names {
		job.RepoDetail(name, "Dummy "+name+" repository", enabled[name])
	}
	job.Finished()
}

func (d *Dummy) repo(job *backend.Job, repoID string, fn func()) {
	defer d.enter(job)()
	d.mu.Lock()
	_, ok := d.repos[repoID]
	if ok {
		fn()
	}
	d.mu.Unlock()
	if !ok {
		job.ErrorCode(enum.ErrorRepoNotFound, "repository %s not found", repoID)
	}
	job.Finished()
}

// RepoEnable enables or disables a repository.
func (d *Dummy) RepoEnable(job *backend.Job, repoID string, enabled bool) {
	d.repo(job, repoID, func() { d.repos[repoID] = enabled })
}

// RepoSetData accepts any parameter for a known repository.
func (d *Dummy) RepoSetData(job *backend.Job, repoID, _, _ string) {
	d.repo(job, repoID, func() {})
}

// RepoRemove deletes a repository.
func (d *Dummy) RepoRemove(job *backend.Job, _ enum.TransactionFlag, repoID string, _ bool) {
	d.repo(job, repoID, func() { delete(d.repos, repoID) })
}

// InstallSignature trusts a repository key.
func (d *Dummy) InstallSignature(job *backend.Job, sigType enum.SigType, keyID, _ string) {
	defer d.enter(job)()
	if sigType != enum.SigTypeGPG {
		job.ErrorCode(enum.ErrorNotSupported, "signature type %s is not supported", sigType)
		job.Finished()
		return
	}
	d.mu.Lock()
	d.trustedKeys[keyID] = true
	d.mu.Unlock()
	job.Finished()
}

// AcceptEula records a licence as accepted.
func (d *Dummy) AcceptEula(job *backend.Job, eulaID string) {
	defer d.enter(job)()
	d.mu.Lock()
	d.acceptedEula[eulaID] = true
	d.mu.Unlock()
	job.Finished()
}

// GetDistroUpgrades reports a single upgrade.
func (d *Dummy) GetDistroUpgrades(job *backend.Job) {
	defer d.enter(job)()
	job.DistroUpgrade(backend.DistroUpgradeEvent{State: enum.UpdateStateStable, Name: "dummy-2", Summary: "Dummy Linux 2"})
	job.Finished()
}

// GetCategories reports the package categories.
func (d *Dummy) GetCategories(job *backend.Job) {
	defer d.enter(job)()
	for _, g := range d.Groups() {
		job.Category(backend.CategoryEvent{CatID: g.String(), Name: g.String(), Summary: "Packages in " + g.String()})
	}
	job.Finished()
}
