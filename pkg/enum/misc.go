package enum

// Restart is the kind of restart a package change requires.
type Restart int

const (
	RestartUnknown Restart = iota
	RestartNone
	RestartApplication
	RestartSession
	RestartSystem
	RestartSecuritySession
	RestartSecuritySystem
)

var restartNames = []string{"unknown", "none", "application", "session", "system", "security-session", "security-system"}

// String returns the text form of the restart kind.
func (r Restart) String() string { return name(restartNames, int(r)) }

// Group is a package category used by search-group.
type Group int

const (
	GroupUnknown Group = iota
	GroupAccessibility
	GroupAccessories
	GroupAdminTools
	GroupCommunication
	GroupDesktopGnome
	GroupDesktopKDE
	GroupDesktopOther
	GroupDesktopXfce
	GroupEducation
	GroupFonts
	GroupGames
	GroupGraphics
	GroupInternet
	GroupLegacy
	GroupLocalization
	GroupMaps
	GroupMultimedia
	GroupNetwork
	GroupOffice
	GroupOther
	GroupPowerManagement
	GroupProgramming
	GroupPublishing
	GroupRepos
	GroupSecurity
	GroupServers
	GroupSystem
	GroupVirtualization
	GroupScience
	GroupDocumentation
	GroupElectronics
	GroupCollections
	GroupVendor
	GroupNewest
)

var groupNames = []string{
	"unknown", "accessibility", "accessories", "admin-tools", "communication",
	"desktop-gnome", "desktop-kde", "desktop-other", "desktop-xfce", "education",
	"fonts", "games", "graphics", "internet", "legacy", "localization", "maps",
	"multimedia", "network", "office", "other", "power-management", "programming",
	"publishing", "repos", "security", "servers", "system", "virtualization",
	"science", "documentation", "electronics", "collections", "vendor", "newest",
}

// String returns the text form of the group.
func (g Group) String() string { return name(groupNames, int(g)) }

// ParseGroup converts a text form into a Group.
func ParseGroup(s string) Group { return Group(lookup(groupNames, s)) }

// SigType is the kind of signature a repository key uses.
type SigType int

const (
	SigTypeUnknown SigType = iota
	SigTypeGPG
)

var sigTypeNames = []string{"unknown", "gpg"}

// String returns the text form of the signature type.
func (s SigType) String() string { return name(sigTypeNames, int(s)) }

// ParseSigType converts a text form into a SigType.
func ParseSigType(s string) SigType { return SigType(lookup(sigTypeNames, s)) }

// UpgradeKind selects how aggressive a distribution upgrade is.
type UpgradeKind int

const (
	UpgradeKindUnknown UpgradeKind = iota
	UpgradeKindMinimal
	UpgradeKindDefault
	UpgradeKindComplete
)

var upgradeKindNames = []string{"unknown", "minimal", "default", "complete"}

// String returns the text form of the upgrade kind.
func (u UpgradeKind) String() string { return name(upgradeKindNames, int(u)) }

// ParseUpgradeKind converts a text form into an UpgradeKind.
func ParseUpgradeKind(s string) UpgradeKind { return UpgradeKind(lookup(upgradeKindNames, s)) }

// UpdateState describes the maturity of an update.
type UpdateState int

const (
	UpdateStateUnknown UpdateState = iota
	UpdateStateStable
	UpdateStateUnstable
	UpdateStateTesting
)

var updateStateNames = []string{"unknown", "stable", "unstable", "testing"}

// String returns the text form of the update state.
func (u UpdateState) String() string { return name(updateStateNames, int(u)) }
