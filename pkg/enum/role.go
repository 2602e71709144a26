package enum

import "strings"

// Role is the verb a transaction performs.
type Role int

const (
	RoleUnknown Role = iota
	RoleDependsOn
	RoleGetDetails
	RoleGetFiles
	RoleGetPackages
	RoleGetRepoList
	RoleRequiredBy
	RoleGetUpdateDetail
	RoleGetUpdates
	RoleInstallFiles
	RoleInstallPackages
	RoleInstallSignature
	RoleRefreshCache
	RoleRemovePackages
	RoleRepoEnable
	RoleRepoSetData
	RoleRepoRemove
	RoleResolve
	RoleSearchDetails
	RoleSearchFile
	RoleSearchGroup
	RoleSearchName
	RoleUpdatePackages
	RoleWhatProvides
	RoleAcceptEula
	RoleDownloadPackages
	RoleGetDistroUpgrades
	RoleGetCategories
	RoleGetOldTransactions
	RoleUpgradeSystem
	RoleRepairSystem
)

var roleNames = []string{
	"unknown",
	"depends-on",
	"get-details",
	"get-files",
	"get-packages",
	"get-repo-list",
	"required-by",
	"get-update-detail",
	"get-updates",
	"install-files",
	"install-packages",
	"install-signature",
	"refresh-cache",
	"remove-packages",
	"repo-enable",
	"repo-set-data",
	"repo-remove",
	"resolve",
	"search-details",
	"search-file",
	"search-group",
	"search-name",
	"update-packages",
	"what-provides",
	"accept-eula",
	"download-packages",
	"get-distro-upgrades",
	"get-categories",
	"get-old-transactions",
	"upgrade-system",
	"repair-system",
}

// String returns the text form of the role.
func (r Role) String() string {
	return name(roleNames, int(r))
}

// ParseRole converts a text form into a Role, returning RoleUnknown when the
// text is not recognised.
func ParseRole(s string) Role {
	return Role(lookup(roleNames, s))
}

// Exclusive reports whether the role always needs an uncontested backend lock.
func (r Role) Exclusive() bool {
	switch r {
	case RoleInstallFiles, RoleInstallPackages, RoleRemovePackages,
		RoleUpdatePackages, RoleUpgradeSystem, RoleRepairSystem:
		return true
	}
	return false
}

// ChangesSystem reports whether the role installs, removes or replaces packages.
func (r Role) ChangesSystem() bool {
	switch r {
	case RoleInstallFiles, RoleInstallPackages, RoleRemovePackages,
		RoleUpdatePackages, RoleUpgradeSystem, RoleRepairSystem:
		return true
	}
	return false
}

// Recorded reports whether transactions of this role belong in the history database.
func (r Role) Recorded() bool {
	if r.ChangesSystem() {
		return true
	}
	switch r {
	case RoleRefreshCache, RoleRepoEnable, RoleRepoSetData, RoleRepoRemove,
		RoleInstallSignature, RoleAcceptEula:
		return true
	}
	return false
}

// AllRoles returns every known role except RoleUnknown.
func AllRoles() []Role {
	roles := make([]Role, 0, len(roleNames)-1)
	for i := 1; i < len(roleNames); i++ {
		roles = append(roles, Role(i))
	}
	return roles
}

// Roles is a set of roles, typically the verbs a backend supports.
type Roles uint64

// NewRoles builds a set from the given roles.
func NewRoles(roles ...Role) Roles {
	var set Roles
	for _, r := range roles {
		set = set.Add(r)
	}
	return set
}

// Add returns the set with r included.
func (s Roles) Add(r Role) Roles {
	return s | 1<<uint(r)
}

// Has reports whether r is in the set.
func (s Roles) Has(r Role) bool {
	return r != RoleUnknown && s&(1<<uint(r)) != 0
}

// List returns the members of the set in declaration order.
func (s Roles) List() []Role {
	var roles []Role
	for _, r := range AllRoles() {
		if s.Has(r) {
			roles = append(roles, r)
		}
	}
	return roles
}

// String returns the ';' separated text form of the set.
func (s Roles) String() string {
	roles := s.List()
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = r.String()
	}
	return strings.Join(parts, ";")
}
