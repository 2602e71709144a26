package authority

import "pkgd/pkg/enum"

// Prefix is shared by every action id.
const Prefix = "io.pkgd."

// Action ids.
const (
	ActionPackageInstall          = Prefix + "package-install"
	ActionPackageInstallUntrusted = Prefix + "package-install-untrusted"
	ActionPackageReinstall        = Prefix + "package-reinstall"
	ActionPackageDowngrade        = Prefix + "package-downgrade"
	ActionPackageRemove           = Prefix + "package-remove"
	ActionSystemUpdate            = Prefix + "system-update"
	ActionSystemSourcesRefresh    = Prefix + "system-sources-refresh"
	ActionSystemSourcesConfigure  = Prefix + "system-sources-configure"
	ActionSystemTrustSigningKey   = Prefix + "system-trust-signing-key"
	ActionPackageEulaAccept       = Prefix + "package-eula-accept"
	ActionUpgradeSystem           = Prefix + "upgrade-system"
	ActionRepairSystem            = Prefix + "repair-system"
	ActionCancelForeign           = Prefix + "cancel-foreign"
	ActionSystemNetworkProxy      = Prefix + "system-network-proxy-configure"
)

// Actions returns the actions a transaction of role with flags must be
// granted, in the order they have to be checked. Nil means no
// authorization is needed.
func Actions(role enum.Role, flags enum.TransactionFlag) []string {
	if flags.Has(enum.FlagSimulate) || flags.Has(enum.FlagOnlyDownload) {
		return nil
	}

	trusted := flags.Has(enum.FlagOnlyTrusted)

	switch role {
	case enum.RoleInstallPackages, enum.RoleInstallFiles:
		if !trusted {
			return []string{ActionPackageInstallUntrusted}
		}
		actions := []string{ActionPackageInstall}
		if flags.Has(enum.FlagAllowReinstall) || flags.Has(enum.FlagJustReinstall) {
			actions = append(actions, ActionPackageReinstall)
		}
		if flags.Has(enum.FlagAllowDowngrade) {
			actions = append(actions, ActionPackageDowngrade)
		}
		return actions
	case enum.RoleUpdatePackages:
		if !trusted {
			return []string{ActionPackageInstallUntrusted}
		}
		return []string{ActionSystemUpdate}
	case enum.RoleRemovePackages:
		return []string{ActionPackageRemove}
	case enum.RoleRefreshCache:
		return []string{ActionSystemSourcesRefresh}
	case enum.RoleRepoEnable, enum.RoleRepoSetData, enum.RoleRepoRemove:
		return []string{ActionSystemSourcesConfigure}
	case enum.RoleInstallSignature:
		return []string{ActionSystemTrustSigningKey}
	case enum.RoleAcceptEula:
		return []string{ActionPackageEulaAccept}
	case enum.RoleUpgradeSystem:
		return []string{ActionUpgradeSystem}
	case enum.RoleRepairSystem:
		return []string{ActionRepairSystem}
	}
	return nil
}

// Description returns a short human readable text for an action id.
func Description(action string) string {
	switch action {
	case ActionPackageInstall:
		return "Install signed package"
	case ActionPackageInstallUntrusted:
		return "Install untrusted local file"
	case ActionPackageReinstall:
		return "Reinstall package"
	case ActionPackageDowngrade:
		return "Downgrade package"
	case ActionPackageRemove:
		return "Remove package"
	case ActionSystemUpdate:
		return "Update software"
	case ActionSystemSourcesRefresh:
		return "Refresh system sources"
	case ActionSystemSourcesConfigure:
		return "Change software repository parameters"
	case ActionSystemTrustSigningKey:
		return "Trust a key used for signing software"
	case ActionPackageEulaAccept:
		return "Accept EULA"
	case ActionUpgradeSystem:
		return "Upgrade the system"
	case ActionRepairSystem:
		return "Repair the system"
	case ActionCancelForeign:
		return "Cancel foreign task"
	case ActionSystemNetworkProxy:
		return "Set network proxy"
	}
	return action
}
