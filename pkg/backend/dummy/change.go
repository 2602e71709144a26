package dummy

import (
	"path/filepath"
	"strings"

	"pkgd/pkg/backend"
	"pkgd/pkg/enum"
	"pkgd/pkg/packageid"
)

// change simulates a system-changing transaction over targets. apply is
// called for every target once all progress steps completed.
func (d *Dummy) change(job *backend.Job, flags enum.TransactionFlag, status enum.Status, info enum.Info, targets []Package, apply func(*Package) enum.Info) {
	defer d.enter(job)()

	if d.lockContended(&d.contention) {
		job.ErrorCode(enum.ErrorLockRequired, "the package database is locked by another process")
		job.Finished()
		return
	}

	if !d.checkAttention(job, flags, targets) {
		job.Finished()
		return
	}

	if flags.Has(enum.FlagSimulate) {
		for _, t := range targets {
			job.Package(info, t.ID(), t.Summary)
		}
		job.Finished()
		return
	}

	job.Status(status)
	job.SetLocked(true)
	job.SetAllowCancel(true)

	for step := 1; step <= d.opts.Steps; step++ {
		if !d.sleep(job) {
			job.SetLocked(false)
			d.cancelled(job)
			return
		}
		if step == d.opts.Steps/2+1 {
			job.Status(enum.StatusCommit)
			job.SetAllowCancel(false)
		}
		job.Percentage(uint(step * 100 / (d.opts.Steps + 1)))
		for _, t := range targets {
			job.ItemProgress(t.ID(), status, uint(step*100/d.opts.Steps))
		}
	}

	for _, t := range targets {
		if flags.Has(enum.FlagOnlyDownload) {
			job.Package(enum.InfoDownloading, t.ID(), t.Summary)
			continue
		}
		d.mu.Lock()
		p, ok := d.packages[t.Name]
		if !ok {
			p = &Package{}
			*p = t
			d.packages[t.Name] = p
		}
		done := apply(p)
		result := *p
		d.mu.Unlock()

		job.Package(done, result.ID(), result.Summary)
		if result.Name == "kernel" {
			job.RequireRestart(enum.RestartSystem, result.ID())
		}
	}

	job.Percentage(100)
	job.SetLocked(false)
	job.Finished()
}

// checkAttention emits the questions some packages need answered first.
func (d *Dummy) checkAttention(job *backend.Job, flags enum.TransactionFlag, targets []Package) bool {
	d.mu.Lock()
	trusted := d.trustedKeys[KeyID]
	accepted := d.acceptedEula[EulaID]
	d.mu.Unlock()

	for _, t := range targets {
		switch {
		case t.Name == SignedPackage && !trusted && flags.Has(enum.FlagOnlyTrusted):
			job.RepoSignatureRequired(backend.RepoSignatureRequiredEvent{
				PackageID:      t.ID(),
				RepoName:       t.Repo,
				KeyURL:         "https://example.org/dummy.gpg",
				KeyUserID:      "Dummy Maintainer <maintainer@example.org>",
				KeyID:          KeyID,
				KeyFingerprint: "7E67 0DFE 9A1E 4E14 BB75 76AC",
				KeyTimestamp:   "2024-01-01",
				Type:           enum.SigTypeGPG,
			})
			job.ErrorCode(enum.ErrorGpgFailure, "GPG signature of %s is not trusted", t.Name)
			return false
		case t.Name == EulaPackage && !accepted:
			job.EulaRequired(backend.EulaRequiredEvent{
				EulaID:           EulaID,
				PackageID:        t.ID(),
				VendorName:       "NVIDIA",
				LicenseAgreement: "You must agree to the licence before installing.",
			})
			job.ErrorCode(enum.ErrorNoLicenseAgreement, "licence %s was not accepted", EulaID)
			return false
		case t.Name == MediaPackage:
			job.MediaChangeRequired(backend.MediaChangeRequiredEvent{
				MediaType: "dvd",
				MediaID:   "dummy-dvd-1",
				MediaText: "Dummy Linux DVD 1",
			})
			job.ErrorCode(enum.ErrorMediaChangeRequired, "insert the Dummy Linux DVD 1")
			return false
		}
	}
	return true
}

// targets looks up every id, emitting an error and returning false on a miss.
func (d *Dummy) targets(job *backend.Job, packageIDs []string) ([]Package, bool) {
	pkgs := make([]Package, 0, len(packageIDs))
	for _, pid := range packageIDs {
		p, ok := d.lookup(job, pid)
		if !ok {
			return nil, false
		}
		pkgs = append(pkgs, p)
	}
	return pkgs, true
}

// InstallPackages installs packages.
func (d *Dummy) InstallPackages(job *backend.Job, flags enum.TransactionFlag, packageIDs []string) {
	targets, ok := d.targets(job, packageIDs)
	if !ok {
		job.Finished()
		return
	}
	if !flags.Has(enum.FlagAllowReinstall) && !flags.Has(enum.FlagJustReinstall) {
		for _, t := range targets {
			if t.Installed {
				job.ErrorCode(enum.ErrorPackageAlreadyInstalled, "%s is already installed", t.Name)
				job.Finished()
				return
			}
		}
	}
	d.change(job, flags, enum.StatusInstall, enum.InfoInstalling, targets, func(p *Package) enum.Info {
		p.Installed = true
		return enum.InfoFinished
	})
}

// InstallFiles installs local files named "name-version.pkg".
func (d *Dummy) InstallFiles(job *backend.Job, flags enum.TransactionFlag, files []string) {
	targets := make([]Package, 0, len(files))
	for _, f := range files {
		base := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		name, version := base, "1.0-1"
		if i := strings.LastIndex(base, "-"); i > 0 {
			name, version = base[:i], base[i+1:]
		}
		targets = append(targets, Package{Name: name, Version: version, Arch: "any", Repo: "local", Summary: "Local package " + name})
	}
	d.change(job, flags, enum.StatusInstall, enum.InfoInstalling, targets, func(p *Package) enum.Info {
		p.Installed = true
		return enum.InfoFinished
	})
}

// RemovePackages removes installed packages.
func (d *Dummy) RemovePackages(job *backend.Job, flags enum.TransactionFlag, packageIDs []string, _, _ bool) {
	targets, ok := d.targets(job, packageIDs)
	if !ok {
		job.Finished()
		return
	}
	for _, t := range targets {
		if !t.Installed {
			job.ErrorCode(enum.ErrorPackageNotInstalled, "%s is not installed", t.Name)
			job.Finished()
			return
		}
	}
	d.change(job, flags, enum.StatusRemove, enum.InfoRemoving, targets, func(p *Package) enum.Info {
		p.Installed = false
		return enum.InfoFinished
	})
}

func applyUpdate(p *Package) enum.Info {
	if p.Update != "" {
		p.Version = p.Update
		p.Update = ""
	}
	p.Installed = true
	return enum.InfoFinished
}

// UpdatePackages updates packages.
func (d *Dummy) UpdatePackages(job *backend.Job, flags enum.TransactionFlag, packageIDs []string) {
	targets, ok := d.targets(job, packageIDs)
	if !ok {
		job.Finished()
		return
	}
	d.change(job, flags, enum.StatusUpdate, enum.InfoUpdating, targets, applyUpdate)
}

// UpgradeSystem updates every installed package with an update.
func (d *Dummy) UpgradeSystem(job *backend.Job, flags enum.TransactionFlag, _ string, _ enum.UpgradeKind) {
	var targets []Package
	for _, p := range d.snapshot() {
		if p.Installed && p.Update != "" {
			targets = append(targets, p)
		}
	}
	d.change(job, flags, enum.StatusUpdate, enum.InfoUpdating, targets, applyUpdate)
}

// RepairSystem pretends to check the database.
func (d *Dummy) RepairSystem(job *backend.Job, flags enum.TransactionFlag) {
	d.change(job, flags, enum.StatusCleanup, enum.InfoCleanup, nil, nil)
}

// RefreshCache pretends to download fresh metadata.
func (d *Dummy) RefreshCache(job *backend.Job, _ bool) {
	d.change(job, enum.FlagNone, enum.StatusRefreshCache, enum.InfoUnknown, nil, nil)
}

// DownloadPackages reports the files it would have downloaded.
func (d *Dummy) DownloadPackages(job *backend.Job, packageIDs []string, directory string) {
	defer d.enter(job)()
	job.Status(enum.StatusDownload)
	for _, pid := range packageIDs {
		p, ok := d.lookup(job, pid)
		if !ok {
			job.Finished()
			return
		}
		if !d.sleep(job) {
			d.cancelled(job)
			return
		}
		job.Package(enum.InfoDownloading, p.ID(), p.Summary)
		job.Files(packageid.Build(p.Name, p.Version, p.Arch, p.Repo),
			[]string{filepath.Join(directory, p.Name+"-"+p.Version+"-"+p.Arch+".pkg")})
	}
	job.Finished()
}
