package enum

// Status is the coarse activity a running transaction reports.
type Status int

const (
	StatusUnknown Status = iota
	StatusWait
	StatusSetup
	StatusRunning
	StatusQuery
	StatusInfo
	StatusRemove
	StatusRefreshCache
	StatusDownload
	StatusInstall
	StatusUpdate
	StatusCleanup
	StatusObsolete
	StatusDepResolve
	StatusSigCheck
	StatusTestCommit
	StatusCommit
	StatusRequest
	StatusFinished
	StatusCancel
	StatusDownloadRepository
	StatusDownloadPackagelist
	StatusDownloadFilelist
	StatusDownloadChangelog
	StatusDownloadGroup
	StatusDownloadUpdateinfo
	StatusRepackaging
	StatusLoadingCache
	StatusScanApplications
	StatusGeneratePackageList
	StatusWaitingForLock
	StatusWaitingForAuth
	StatusScanProcessList
	StatusCheckExecutableFiles
	StatusCheckLibraries
	StatusCopyFiles
)

var statusNames = []string{
	"unknown",
	"wait",
	"setup",
	"running",
	"query",
	"info",
	"remove",
	"refresh-cache",
	"download",
	"install",
	"update",
	"cleanup",
	"obsolete",
	"dep-resolve",
	"sig-check",
	"test-commit",
	"commit",
	"request",
	"finished",
	"cancel",
	"download-repository",
	"download-packagelist",
	"download-filelist",
	"download-changelog",
	"download-group",
	"download-updateinfo",
	"repackaging",
	"loading-cache",
	"scan-applications",
	"generate-package-list",
	"waiting-for-lock",
	"waiting-for-auth",
	"scan-process-list",
	"check-executable-files",
	"check-libraries",
	"copy-files",
}

// String returns the text form of the status.
func (s Status) String() string {
	return name(statusNames, int(s))
}

// ParseStatus converts a text form into a Status.
func ParseStatus(s string) Status {
	return Status(lookup(statusNames, s))
}
