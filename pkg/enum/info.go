package enum

// Info qualifies a package emitted by a backend.
type Info int

const (
	InfoUnknown Info = iota
	InfoInstalled
	InfoAvailable
	InfoLow
	InfoEnhancement
	InfoNormal
	InfoBugfix
	InfoImportant
	InfoSecurity
	InfoBlocked
	InfoDownloading
	InfoUpdating
	InfoInstalling
	InfoRemoving
	InfoCleanup
	InfoObsoleting
	InfoCollectionInstalled
	InfoCollectionAvailable
	InfoFinished
	InfoReinstalling
	InfoDowngrading
	InfoPreparing
	InfoDecompressing
	InfoUntrusted
	InfoTrusted
	InfoUnavailable
	InfoCritical
)

var infoNames = []string{
	"unknown",
	"installed",
	"available",
	"low",
	"enhancement",
	"normal",
	"bugfix",
	"important",
	"security",
	"blocked",
	"downloading",
	"updating",
	"installing",
	"removing",
	"cleanup",
	"obsoleting",
	"collection-installed",
	"collection-available",
	"finished",
	"reinstalling",
	"downgrading",
	"preparing",
	"decompressing",
	"untrusted",
	"trusted",
	"unavailable",
	"critical",
}

// String returns the text form of the info value.
func (i Info) String() string {
	return name(infoNames, int(i))
}

// ParseInfo converts a text form into an Info.
func ParseInfo(s string) Info {
	return Info(lookup(infoNames, s))
}
