package native

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"pkgd/internal/executor"
	"pkgd/pkg/backend"
	"pkgd/pkg/backend/detector"
	"pkgd/pkg/enum"
	"pkgd/pkg/packageid"
)

// Pacman implements the Backend interface for Arch Linux's pacman.
type Pacman struct {
	baseBackend
	arch string
}

// NewPacman creates a new Pacman backend. A nil executor uses the default one.
func NewPacman(exec *executor.Executor) *Pacman {
	return &Pacman{
		baseBackend: newBaseBackend("pacman", "Pacman (Arch Linux)", "pacman", exec, classifyPacman),
		arch:        detector.PackageArch(runtime.GOARCH),
	}
}

// Author returns who maintains the backend.
func (p *Pacman) Author() string {
	return "pkgd developers"
}

// Roles returns the verbs pacman implements.
func (p *Pacman) Roles() enum.Roles {
	return enum.NewRoles(
		enum.RoleSearchName, enum.RoleSearchDetails, enum.RoleSearchFile, enum.RoleSearchGroup,
		enum.RoleWhatProvides, enum.RoleResolve, enum.RoleGetPackages, enum.RoleGetUpdates,
		enum.RoleGetDetails, enum.RoleGetFiles, enum.RoleGetUpdateDetail, enum.RoleDependsOn,
		enum.RoleRequiredBy, enum.RoleDownloadPackages, enum.RoleRefreshCache,
		enum.RoleInstallPackages, enum.RoleInstallFiles, enum.RoleRemovePackages,
		enum.RoleUpdatePackages, enum.RoleUpgradeSystem, enum.RoleRepairSystem,
		enum.RoleGetRepoList, enum.RoleInstallSignature,
	)
}

// Filters returns the filters pacman honours.
func (p *Pacman) Filters() enum.Filter {
	return enum.FilterInstalled | enum.FilterNotInstalled
}

// MimeTypes returns the package file types install-files accepts.
func (p *Pacman) MimeTypes() []string {
	return []string{"application/x-alpm-package", "application/zstd", "application/x-xz"}
}

// id builds a package id; installed packages carry the installed data marker.
func (p *Pacman) id(pkg pacmanPackage) string {
	arch := pkg.Arch
	if arch == "" {
		arch = p.arch
	}
	data := pkg.Repo
	if pkg.Installed || data == "local" {
		data = packageid.DataInstalled
	}
	return packageid.Build(pkg.Name, pkg.Version, arch, data)
}

func (p *Pacman) emit(job *backend.Job, info enum.Info, pkgs []pacmanPackage) {
	for _, pkg := range pkgs {
		if info == enum.InfoUnknown {
			if pkg.Installed {
				job.Package(enum.InfoInstalled, p.id(pkg), pkg.Description)
			} else {
				job.Package(enum.InfoAvailable, p.id(pkg), pkg.Description)
			}
			continue
		}
		job.Package(info, p.id(pkg), pkg.Description)
	}
}

// noMatch reports whether err is pacman's silent "nothing found" exit.
func noMatch(err error) bool {
	var cmdErr *executor.CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	var exitErr *exec.ExitError
	return errors.As(cmdErr.Err, &exitErr) && exitErr.ExitCode() == 1 && strings.TrimSpace(cmdErr.Stderr) == ""
}

// query runs an unprivileged pacman command, treating "no match" as empty output.
func (p *Pacman) query(ctx context.Context, job *backend.Job, args ...string) (string, error) {
	out, err := p.executorFor(job).Output(ctx, p.Binary(), args...)
	if err != nil && !noMatch(err) {
		return out, err
	}
	return out, nil
}

// search runs a local and/or sync search, keeping results accepted by match.
func (p *Pacman) search(ctx context.Context, job *backend.Job, filters enum.Filter, values []string, match func(pacmanPackage) bool) error {
	var results []pacmanPackage
	localSearched := false

	if !filters.Has(enum.FilterNotInstalled) {
		out, err := p.query(ctx, job, append([]string{"-Qs", "--"}, values...)...)
		if err != nil {
			return err
		}
		results = append(results, parseSearchOutput(out)...)
		localSearched = true
	}

	if !filters.Has(enum.FilterInstalled) {
		out, err := p.query(ctx, job, append([]string{"-Ss", "--"}, values...)...)
		if err != nil {
			return err
		}
		for _, pkg := range parseSearchOutput(out) {
			if pkg.Installed && (localSearched || filters.Has(enum.FilterNotInstalled)) {
				continue
			}
			pkg.Installed = false
			results = append(results, pkg)
		}
	}

	for _, pkg := range results {
		if match == nil || match(pkg) {
			p.emit(job, enum.InfoUnknown, []pacmanPackage{pkg})
		}
	}
	return nil
}

// SearchNames searches package names.
func (p *Pacman) SearchNames(job *backend.Job, filters enum.Filter, values []string) {
	p.run(job, enum.StatusQuery, func(ctx context.Context) error {
		return p.search(ctx, job, filters, values, func(pkg pacmanPackage) bool {
			name := strings.ToLower(pkg.Name)
			for _, v := range values {
				if !strings.Contains(name, strings.ToLower(v)) {
					return false
				}
			}
			return true
		})
	})
}

// SearchDetails searches names and descriptions.
func (p *Pacman) SearchDetails(job *backend.Job, filters enum.Filter, values []string) {
	p.run(job, enum.StatusQuery, func(ctx context.Context) error {
		return p.search(ctx, job, filters, values, nil)
	})
}

// SearchFiles finds the packages owning files.
func (p *Pacman) SearchFiles(job *backend.Job, filters enum.Filter, values []string) {
	p.run(job, enum.StatusQuery, func(ctx context.Context) error {
		for _, value := range values {
			if strings.HasPrefix(value, "/") && !filters.Has(enum.FilterNotInstalled) {
				out, err := p.query(ctx, job, "-Qo", "--", value)
				if err != nil {
					continue
				}
				p.emit(job, enum.InfoInstalled, parseOwner(out))
			}
			if !filters.Has(enum.FilterInstalled) {
				out, err := p.query(ctx, job, "-F", "--", strings.TrimPrefix(value, "/"))
				if err != nil {
					return err
				}
				for _, pkg := range parseSearchOutput(out) {
					if pkg.Installed && !filters.Has(enum.FilterNotInstalled) && strings.HasPrefix(value, "/") {
						continue
					}
					p.emit(job, enum.InfoUnknown, []pacmanPackage{pkg})
				}
			}
		}
		return nil
	})
}

// SearchGroups lists the packages in groups.
func (p *Pacman) SearchGroups(job *backend.Job, filters enum.Filter, values []string) {
	p.run(job, enum.StatusQuery, func(ctx context.Context) error {
		flag := "-Sg"
		if filters.Has(enum.FilterInstalled) {
			flag = "-Qg"
		}
		out, err := p.query(ctx, job, append([]string{flag, "--"}, values...)...)
		if err != nil {
			return err
		}
		return p.resolve(ctx, job, filters, parseGroupOutput(out))
	})
}

// WhatProvides finds the packages providing a capability.
func (p *Pacman) WhatProvides(job *backend.Job, filters enum.Filter, values []string) {
	p.run(job, enum.StatusQuery, func(ctx context.Context) error {
		return p.resolve(ctx, job, filters, values)
	})
}

// Resolve turns package names into package ids.
func (p *Pacman) Resolve(job *backend.Job, filters enum.Filter, packages []string) {
	p.run(job, enum.StatusQuery, func(ctx context.Context) error {
		return p.resolve(ctx, job, filters, packages)
	})
}

func (p *Pacman) resolve(ctx context.Context, job *backend.Job, filters enum.Filter, names []string) error {
	if len(names) == 0 {
		return nil
	}

	installed := make(map[string]bool)
	if !filters.Has(enum.FilterNotInstalled) {
		// -Q prints the packages it found even when others are missing.
		out, _ := p.executorFor(job).Output(ctx, p.Binary(), append([]string{"-Q", "--"}, names...)...)
		for _, pkg := range parseQueryOutput(out) {
			installed[pkg.Name] = true
			p.emit(job, enum.InfoInstalled, []pacmanPackage{pkg})
		}
	}

	if filters.Has(enum.FilterInstalled) {
		return nil
	}
	for _, name := range names {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		out, err := p.query(ctx, job, "-Sddp", "--print-format", printFormat, "--", name)
		if err != nil {
			continue
		}
		for _, pkg := range parsePrintFormat(out) {
			if installed[pkg.Name] && !filters.Has(enum.FilterNotInstalled) {
				continue
			}
			p.emit(job, enum.InfoAvailable, []pacmanPackage{pkg})
		}
	}
	return nil
}

// GetPackages lists all packages.
func (p *Pacman) GetPackages(job *backend.Job, filters enum.Filter) {
	p.run(job, enum.StatusQuery, func(ctx context.Context) error {
		if !filters.Has(enum.FilterNotInstalled) {
			out, err := p.query(ctx, job, "-Q")
			if err != nil {
				return err
			}
			p.emit(job, enum.InfoInstalled, parseQueryOutput(out))
		}
		if !filters.Has(enum.FilterInstalled) {
			out, err := p.query(ctx, job, "-Sl")
			if err != nil {
				return err
			}
			for _, pkg := range parseSyncList(out) {
				if pkg.Installed {
					continue
				}
				p.emit(job, enum.InfoAvailable, []pacmanPackage{pkg})
			}
		}
		return nil
	})
}

// GetUpdates lists the packages with newer versions in the sync databases.
func (p *Pacman) GetUpdates(job *backend.Job, _ enum.Filter) {
	p.run(job, enum.StatusQuery, func(ctx context.Context) error {
		out, err := p.query(ctx, job, "-Supdd", "--print-format", printFormat)
		if err != nil {
			return err
		}
		p.emit(job, enum.InfoNormal, parsePrintFormat(out))
		return nil
	})
}

// info runs -Qi for installed ids and -Si otherwise.
func (p *Pacman) info(ctx context.Context, job *backend.Job, packageID string) (*pacmanInfo, packageid.ID, error) {
	id, err := packageid.Parse(packageID)
	if err != nil {
		return nil, id, newError(enum.ErrorPackageIDInvalid, err.Error())
	}

	var out string
	if id.Installed() {
		out, err = p.executorFor(job).Output(ctx, p.Binary(), "-Qi", "--", id.Name)
	} else {
		target := id.Name
		if id.Data != "" {
			target = id.Data + "/" + id.Name
		}
		out, err = p.executorFor(job).Output(ctx, p.Binary(), "-Si", "--", target)
	}
	if err != nil {
		if noMatch(err) {
			return nil, id, newError(enum.ErrorPackageNotFound, fmt.Sprintf("package %s not found", id.Name))
		}
		return nil, id, err
	}
	return parsePackageInfo(out), id, nil
}

// GetDetails reports package descriptions.
func (p *Pacman) GetDetails(job *backend.Job, packageIDs []string) {
	p.run(job, enum.StatusInfo, func(ctx context.Context) error {
		for _, pid := range packageIDs {
			info, _, err := p.info(ctx, job, pid)
			if err != nil {
				return err
			}
			job.Details(backend.DetailsEvent{
				PackageID:   pid,
				Summary:     info.Description,
				License:     info.License,
				Group:       groupFor(info.Groups),
				Description: info.Description,
				URL:         info.URL,
				Size:        info.Size,
			})
		}
		return nil
	})
}

// GetFiles lists the files of packages.
func (p *Pacman) GetFiles(job *backend.Job, packageIDs []string) {
	p.run(job, enum.StatusInfo, func(ctx context.Context) error {
		for _, pid := range packageIDs {
			id, err := packageid.Parse(pid)
			if err != nil {
				return newError(enum.ErrorPackageIDInvalid, err.Error())
			}
			var out string
			if id.Installed() {
				out, err = p.executorFor(job).Output(ctx, p.Binary(), "-Ql", "--", id.Name)
			} else {
				out, err = p.executorFor(job).Output(ctx, p.Binary(), "-Fl", "--", id.Name)
			}
			if err != nil {
				return newError(enum.ErrorCannotGetFilelist, fmt.Sprintf("cannot get file list for %s", id.Name))
			}
			job.Files(pid, parseFileList(out))
		}
		return nil
	})
}

// GetUpdateDetail describes updates.
func (p *Pacman) GetUpdateDetail(job *backend.Job, packageIDs []string) {
	p.run(job, enum.StatusInfo, func(ctx context.Context) error {
		for _, pid := range packageIDs {
			info, id, err := p.info(ctx, job, pid)
			if err != nil {
				return err
			}

			detail := backend.UpdateDetailEvent{
				PackageID:  pid,
				UpdateText: info.Description,
				Restart:    restartFor(id.Name),
				State:      enum.UpdateStateStable,
			}
			if info.URL != "" {
				detail.VendorURLs = []string{info.URL}
			}
			out, _ := p.query(ctx, job, "-Q", "--", id.Name)
			for _, cur := range parseQueryOutput(out) {
				detail.Updates = append(detail.Updates, p.id(cur))
			}
			job.UpdateDetail(detail)
		}
		return nil
	})
}

// DependsOn lists the dependencies of packages.
func (p *Pacman) DependsOn(job *backend.Job, filters enum.Filter, packageIDs []string, recursive bool) {
	p.run(job, enum.StatusDepResolve, func(ctx context.Context) error {
		return p.walk(ctx, job, filters, packageIDs, recursive, func(info *pacmanInfo) []string { return info.DependsOn })
	})
}

// RequiredBy lists the packages depending on packages.
func (p *Pacman) RequiredBy(job *backend.Job, filters enum.Filter, packageIDs []string, recursive bool) {
	p.run(job, enum.StatusDepResolve, func(ctx context.Context) error {
		return p.walk(ctx, job, filters, packageIDs, recursive, func(info *pacmanInfo) []string { return info.RequiredBy })
	})
}

func (p *Pacman) walk(ctx context.Context, job *backend.Job, filters enum.Filter, packageIDs []string, recursive bool, next func(*pacmanInfo) []string) error {
	seen := make(map[string]bool)
	var names []string
	queue := packageIDs
	requested := len(packageIDs)

	for i := 0; len(queue) > 0; i++ {
		pid := queue[0]
		queue = queue[1:]

		info, _, err := p.info(ctx, job, pid)
		if err != nil {
			// Only the requested packages must exist; transitive ones may not be installed.
			if i < requested {
				return err
			}
			continue
		}
		for _, dep := range next(info) {
			name := stripConstraint(dep)
			if seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
			if recursive {
				queue = append(queue, packageid.Build(name, "", "", packageid.DataInstalled))
			}
		}
	}
	return p.resolve(ctx, job, filters, names)
}

// DownloadPackages fetches package files into directory.
func (p *Pacman) DownloadPackages(job *backend.Job, packageIDs []string, directory string) {
	p.run(job, enum.StatusDownload, func(ctx context.Context) error {
		args := []string{"-Sw", "--noconfirm", "--cachedir", directory, "--"}
		return p.transact(ctx, job, enum.InfoDownloading, append(args, packageid.Names(packageIDs)...))
	})
}

// RefreshCache downloads fresh sync databases.
func (p *Pacman) RefreshCache(job *backend.Job, force bool) {
	p.run(job, enum.StatusRefreshCache, func(ctx context.Context) error {
		flag := "-Sy"
		if force {
			flag = "-Syy"
		}
		return p.transact(ctx, job, enum.InfoUnknown, []string{flag})
	})
}

// simulate prints what a transaction would do without changing anything.
func (p *Pacman) simulate(ctx context.Context, job *backend.Job, info enum.Info, args []string) error {
	out, err := p.executorFor(job).Output(ctx, p.Binary(), append(args, "--print-format", printFormat)...)
	if err != nil {
		return err
	}
	p.emit(job, info, parsePrintFormat(out))
	return nil
}

// transact runs a privileged pacman transaction, translating its progress
// output into package and percentage events.
func (p *Pacman) transact(ctx context.Context, job *backend.Job, info enum.Info, args []string) error {
	job.SetLocked(true)
	defer job.SetLocked(false)

	onLine := func(line string) {
		prog, ok := parseProgressLine(line)
		if !ok {
			return
		}
		percent := prog.Current * 100 / prog.Total
		if percent >= 100 {
			percent = 99
		}
		job.Percentage(uint(percent))

		pkgInfo := info
		switch prog.Action {
		case "installing":
			pkgInfo = enum.InfoInstalling
		case "upgrading":
			pkgInfo = enum.InfoUpdating
		case "reinstalling":
			pkgInfo = enum.InfoReinstalling
		case "downgrading":
			pkgInfo = enum.InfoDowngrading
		case "removing":
			pkgInfo = enum.InfoRemoving
		}
		if pkgInfo == enum.InfoUnknown {
			return
		}
		id := packageid.Build(prog.Name, "", p.arch, "")
		job.ItemProgress(id, statusFor(pkgInfo), uint(prog.Current*100/prog.Total))
		job.Package(pkgInfo, id, "")
	}

	return p.executorFor(job).Stream(ctx, onLine, p.Binary(), args...)
}

func (p *Pacman) change(job *backend.Job, flags enum.TransactionFlag, status enum.Status, info enum.Info, args []string) {
	p.run(job, status, func(ctx context.Context) error {
		if flags.Has(enum.FlagSimulate) {
			sim := make([]string, 0, len(args))
			for _, a := range args {
				if a != "--noconfirm" {
					sim = append(sim, a)
				}
			}
			sim[0] += "p"
			return p.simulate(ctx, job, info, sim)
		}
		if flags.Has(enum.FlagOnlyDownload) && strings.HasPrefix(args[0], "-S") {
			args[0] += "w"
		}
		job.SetAllowCancel(false)
		return p.transact(ctx, job, info, args)
	})
}

// InstallPackages installs packages from the sync databases.
func (p *Pacman) InstallPackages(job *backend.Job, flags enum.TransactionFlag, packageIDs []string) {
	args := []string{"-S", "--noconfirm"}
	if !flags.Has(enum.FlagAllowReinstall) && !flags.Has(enum.FlagJustReinstall) {
		args = append(args, "--needed")
	}
	p.change(job, flags, enum.StatusInstall, enum.InfoInstalling, append(append(args, "--"), repoTargets(packageIDs)...))
}

// InstallFiles installs local package files.
func (p *Pacman) InstallFiles(job *backend.Job, flags enum.TransactionFlag, files []string) {
	args := []string{"-U", "--noconfirm", "--"}
	p.change(job, flags, enum.StatusInstall, enum.InfoInstalling, append(args, files...))
}

// RemovePackages removes installed packages.
func (p *Pacman) RemovePackages(job *backend.Job, flags enum.TransactionFlag, packageIDs []string, allowDeps, autoremove bool) {
	flag := "-R"
	if allowDeps {
		flag += "c"
	}
	if autoremove {
		flag += "s"
	}
	args := []string{flag, "--noconfirm", "--"}
	p.change(job, flags, enum.StatusRemove, enum.InfoRemoving, append(args, packageid.Names(packageIDs)...))
}

// UpdatePackages updates packages to the given versions.
func (p *Pacman) UpdatePackages(job *backend.Job, flags enum.TransactionFlag, packageIDs []string) {
	args := []string{"-S", "--noconfirm", "--"}
	p.change(job, flags, enum.StatusUpdate, enum.InfoUpdating, append(args, repoTargets(packageIDs)...))
}

// UpgradeSystem performs a full system upgrade.
func (p *Pacman) UpgradeSystem(job *backend.Job, flags enum.TransactionFlag, _ string, _ enum.UpgradeKind) {
	p.change(job, flags, enum.StatusUpdate, enum.InfoUpdating, []string{"-Su", "--noconfirm"})
}

// RepairSystem checks the local database for consistency.
func (p *Pacman) RepairSystem(job *backend.Job, _ enum.TransactionFlag) {
	p.run(job, enum.StatusSetup, func(ctx context.Context) error {
		if _, err := p.executorFor(job).Output(ctx, p.Binary(), "-Dk"); err != nil {
			var cmdErr *executor.CommandError
			if errors.As(err, &cmdErr) {
				return newError(enum.ErrorPackageDatabaseChanged, strings.TrimSpace(cmdErr.Stderr))
			}
			return err
		}
		return nil
	})
}

// GetRepoList lists configured repositories.
func (p *Pacman) GetRepoList(job *backend.Job, _ enum.Filter) {
	p.run(job, enum.StatusQuery, func(ctx context.Context) error {
		out, err := p.executorFor(job).Output(ctx, "pacman-conf", "--repo-list")
		if err != nil {
			return newError(enum.ErrorRepoConfigurationError, "cannot read pacman.conf")
		}
		for _, repo := range strings.Fields(out) {
			job.RepoDetail(repo, repo, true)
		}
		return nil
	})
}

// InstallSignature imports and locally signs a repository key.
func (p *Pacman) InstallSignature(job *backend.Job, sigType enum.SigType, keyID, _ string) {
	p.run(job, enum.StatusSigCheck, func(ctx context.Context) error {
		if sigType != enum.SigTypeGPG {
			return newError(enum.ErrorNotSupported, fmt.Sprintf("signature type %s is not supported", sigType))
		}
		ex := p.executorFor(job)
		if _, err := ex.OutputPrivileged(ctx, "pacman-key", "--recv-keys", keyID); err != nil {
			return newError(enum.ErrorGpgFailure, err.Error())
		}
		if _, err := ex.OutputPrivileged(ctx, "pacman-key", "--lsign-key", keyID); err != nil {
			return newError(enum.ErrorGpgFailure, err.Error())
		}
		return nil
	})
}

// repoTargets turns package ids into "repo/name" targets where the repo is known.
func repoTargets(packageIDs []string) []string {
	targets := make([]string, 0, len(packageIDs))
	for _, pid := range packageIDs {
		id, err := packageid.Parse(pid)
		if err != nil || id.Data == "" || id.Installed() {
			targets = append(targets, packageid.Name(pid))
			continue
		}
		targets = append(targets, id.Data+"/"+id.Name)
	}
	return targets
}

func statusFor(info enum.Info) enum.Status {
	switch info {
	case enum.InfoRemoving:
		return enum.StatusRemove
	case enum.InfoUpdating:
		return enum.StatusUpdate
	case enum.InfoDownloading:
		return enum.StatusDownload
	default:
		return enum.StatusInstall
	}
}

// groupFor maps pacman groups to the closest package group.
func groupFor(groups []string) enum.Group {
	for _, g := range groups {
		switch {
		case strings.HasPrefix(g, "gnome"):
			return enum.GroupDesktopGnome
		case strings.HasPrefix(g, "kde") || strings.HasPrefix(g, "plasma"):
			return enum.GroupDesktopKDE
		case strings.HasPrefix(g, "xfce"):
			return enum.GroupDesktopXfce
		case strings.Contains(g, "font"):
			return enum.GroupFonts
		case g == "base" || g == "base-devel":
			return enum.GroupSystem
		}
	}
	return enum.GroupUnknown
}

// restartFor reports the restart needed after updating a package.
func restartFor(name string) enum.Restart {
	switch {
	case name == "linux" || strings.HasPrefix(name, "linux-") || name == "systemd" || name == "glibc":
		return enum.RestartSystem
	case strings.HasPrefix(name, "xorg-server") || strings.HasPrefix(name, "wayland"):
		return enum.RestartSession
	default:
		return enum.RestartNone
	}
}
