package enum

// ErrorCode classifies an error reported by a backend or by the daemon.
type ErrorCode int

const (
	ErrorUnknown ErrorCode = iota
	ErrorOOM
	ErrorNoNetwork
	ErrorNotSupported
	ErrorInternalError
	ErrorGpgFailure
	ErrorPackageIDInvalid
	ErrorPackageNotInstalled
	ErrorPackageNotFound
	ErrorPackageAlreadyInstalled
	ErrorPackageDownloadFailed
	ErrorGroupNotFound
	ErrorGroupListInvalid
	ErrorDepResolutionFailed
	ErrorFilterInvalid
	ErrorCreateThreadFailed
	ErrorTransactionError
	ErrorTransactionCancelled
	ErrorNoCache
	ErrorRepoNotFound
	ErrorCannotRemoveSystemPackage
	ErrorProcessKill
	ErrorFailedInitialization
	ErrorFailedFinalise
	ErrorFailedConfigParsing
	ErrorCannotCancel
	ErrorCannotGetLock
	ErrorNoPackagesToUpdate
	ErrorCannotWriteRepoConfig
	ErrorLocalInstallFailed
	ErrorBadGpgSignature
	ErrorMissingGpgSignature
	ErrorCannotInstallSourcePackage
	ErrorRepoConfigurationError
	ErrorNoLicenseAgreement
	ErrorFileConflicts
	ErrorPackageConflicts
	ErrorRepoNotAvailable
	ErrorInvalidPackageFile
	ErrorPackageInstallBlocked
	ErrorPackageCorrupt
	ErrorAllPackagesAlreadyInstalled
	ErrorFileNotFound
	ErrorNoMoreMirrorsToTry
	ErrorNoDistroUpgradeData
	ErrorIncompatibleArchitecture
	ErrorNoSpaceOnDevice
	ErrorMediaChangeRequired
	ErrorNotAuthorized
	ErrorUpdateNotFound
	ErrorCannotInstallRepoUnsigned
	ErrorCannotUpdateRepoUnsigned
	ErrorCannotGetFilelist
	ErrorCannotGetRequires
	ErrorCannotDisableRepository
	ErrorRestrictedDownload
	ErrorPackageFailedToConfigure
	ErrorPackageFailedToBuild
	ErrorPackageFailedToInstall
	ErrorPackageFailedToRemove
	ErrorUpdateFailedDueToRunningProcess
	ErrorPackageDatabaseChanged
	ErrorProvideTypeNotSupported
	ErrorInstallRootInvalid
	ErrorCannotFetchSources
	ErrorCancelledPriority
	ErrorUnfinishedTransaction
	ErrorLockRequired
	ErrorRepoAlreadySet
)

var errorNames = []string{
	"unknown",
	"out-of-memory",
	"no-network",
	"not-supported",
	"internal-error",
	"gpg-failure",
	"package-id-invalid",
	"package-not-installed",
	"package-not-found",
	"package-already-installed",
	"package-download-failed",
	"group-not-found",
	"group-list-invalid",
	"dep-resolution-failed",
	"filter-invalid",
	"create-thread-failed",
	"transaction-error",
	"transaction-cancelled",
	"no-cache",
	"repo-not-found",
	"cannot-remove-system-package",
	"process-kill",
	"failed-initialization",
	"failed-finalise",
	"failed-config-parsing",
	"cannot-cancel",
	"cannot-get-lock",
	"no-packages-to-update",
	"cannot-write-repo-config",
	"local-install-failed",
	"bad-gpg-signature",
	"missing-gpg-signature",
	"cannot-install-source-package",
	"repo-configuration-error",
	"no-license-agreement",
	"file-conflicts",
	"package-conflicts",
	"repo-not-available",
	"invalid-package-file",
	"package-install-blocked",
	"package-corrupt",
	"all-packages-already-installed",
	"file-not-found",
	"no-more-mirrors-to-try",
	"no-distro-upgrade-data",
	"incompatible-architecture",
	"no-space-on-device",
	"media-change-required",
	"not-authorized",
	"update-not-found",
	"cannot-install-repo-unsigned",
	"cannot-update-repo-unsigned",
	"cannot-get-filelist",
	"cannot-get-requires",
	"cannot-disable-repository",
	"restricted-download",
	"package-failed-to-configure",
	"package-failed-to-build",
	"package-failed-to-install",
	"package-failed-to-remove",
	"failed-due-to-running-process",
	"package-database-changed",
	"provide-type-not-supported",
	"install-root-invalid",
	"cannot-fetch-sources",
	"cancelled-priority",
	"unfinished-transaction",
	"lock-required",
	"repo-already-set",
}

// String returns the text form of the error code.
func (e ErrorCode) String() string {
	return name(errorNames, int(e))
}

// ParseErrorCode converts a text form into an ErrorCode.
func ParseErrorCode(s string) ErrorCode {
	return ErrorCode(lookup(errorNames, s))
}
