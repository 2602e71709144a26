package native

import (
	"regexp"
	"strings"

	"pkgd/pkg/enum"
)

// PacmanError represents a structured error from pacman.
type PacmanError struct {
	Code       enum.ErrorCode
	RawOutput  string
	Packages   []string // Affected packages
	Suggestion string
}

// Error implements the error interface.
func (e *PacmanError) Error() string {
	return strings.TrimSpace(e.RawOutput)
}

// IsDependencyConflict returns true if this is a dependency conflict error.
func (e *PacmanError) IsDependencyConflict() bool {
	return e.Code == enum.ErrorDepResolutionFailed || e.Code == enum.ErrorPackageConflicts
}

// Message returns the error text sent to clients.
func (e *PacmanError) Message() string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	if len(e.Packages) > 0 {
		sb.WriteString("\nAffected packages: ")
		sb.WriteString(strings.Join(e.Packages, ", "))
	}
	if e.Suggestion != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Suggestion)
	}
	return sb.String()
}

// Regular expressions for parsing pacman errors
var (
	// Matches: "error: failed to prepare transaction (could not satisfy dependencies)"
	dependencyFailurePattern = regexp.MustCompile(`failed to prepare transaction.*could not satisfy dependencies`)

	// Matches: ":: installing pkg (1.2.3-4) breaks dependency 'pkg=1.2.3-1' required by other-pkg"
	breaksDepPattern = regexp.MustCompile(`:: installing (\S+) .* breaks dependency .* required by (\S+)`)

	// Matches: ":: unable to satisfy dependency 'libfoo.so=1-64' required by bar"
	unsatisfiedPattern = regexp.MustCompile(`:: unable to satisfy dependency '([^']+)' required by (\S+)`)

	// Matches: ":: pkg and other-pkg are in conflict"
	conflictPattern = regexp.MustCompile(`:: (\S+) and (\S+) are in conflict`)

	// Matches: "error: target not found: pkg"
	notFoundPattern = regexp.MustCompile(`error: target not found: (\S+)`)

	// Matches: "error: package 'pkg' was not found"
	notInstalledPattern = regexp.MustCompile(`error: package '([^']+)' was not found`)

	// Matches: "error: failed to init transaction (unable to lock database)"
	dbLockedPattern = regexp.MustCompile(`unable to lock database`)

	// Matches: "pkg: /usr/bin/foo exists in filesystem"
	fileConflictPattern = regexp.MustCompile(`(\S+): (\S+) exists in filesystem`)

	// Matches: "error: failed retrieving file 'core.db' from mirror : Could not resolve host"
	networkPattern = regexp.MustCompile(`Could not resolve host|failed retrieving file|Connection timed out|Failed to connect`)

	// Matches: "error: Partition / too full: 1234 blocks needed, 12 blocks free"
	diskSpacePattern = regexp.MustCompile(`too full|not enough free disk space`)

	// Matches: "error: foo: signature from "X" is unknown trust"
	signaturePattern = regexp.MustCompile(`signature from .* is (unknown trust|invalid|marginal trust)|invalid or corrupted package \(PGP signature\)`)

	// Matches: "error: foo: key "ABCD" is unknown"
	missingKeyPattern = regexp.MustCompile(`key "[^"]+" is unknown|required key missing from keyring`)

	// Matches: "error: 'foo.pkg.tar.zst': could not find or read package"
	badFilePattern = regexp.MustCompile(`could not find or read package|invalid or corrupted package`)

	// Matches: "error: target not found: ..." when removing a required package
	systemPackagePattern = regexp.MustCompile(`removing (\S+) breaks dependency`)
)

// ParsePacmanError parses pacman stderr output and returns a structured error.
// If the error is not a known pacman error type, it returns nil.
func ParsePacmanError(stderr string) *PacmanError {
	if strings.TrimSpace(stderr) == "" {
		return nil
	}

	pacErr := &PacmanError{
		Code:      enum.ErrorUnknown,
		RawOutput: stderr,
	}

	switch {
	case dbLockedPattern.MatchString(stderr):
		pacErr.Code = enum.ErrorLockRequired
		pacErr.Suggestion = "Another package manager may be running. Wait for it to finish or remove /var/lib/pacman/db.lck"

	case systemPackagePattern.MatchString(stderr):
		pacErr.Code = enum.ErrorDepResolutionFailed
		for _, m := range systemPackagePattern.FindAllStringSubmatch(stderr, -1) {
			pacErr.Packages = appendUnique(pacErr.Packages, m[1])
		}
		pacErr.Suggestion = "Allow removing dependent packages or remove them first"

	case dependencyFailurePattern.MatchString(stderr):
		pacErr.Code = enum.ErrorDepResolutionFailed
		pacErr.Packages = extractAffectedPackages(stderr)
		pacErr.Suggestion = "Update the system first"

	case conflictPattern.MatchString(stderr):
		pacErr.Code = enum.ErrorPackageConflicts
		pacErr.Packages = extractAffectedPackages(stderr)
		pacErr.Suggestion = "Update the system first"

	case fileConflictPattern.MatchString(stderr):
		pacErr.Code = enum.ErrorFileConflicts
		for _, m := range fileConflictPattern.FindAllStringSubmatch(stderr, -1) {
			pacErr.Packages = appendUnique(pacErr.Packages, m[1])
		}

	case notFoundPattern.MatchString(stderr):
		pacErr.Code = enum.ErrorPackageNotFound
		for _, m := range notFoundPattern.FindAllStringSubmatch(stderr, -1) {
			pacErr.Packages = appendUnique(pacErr.Packages, m[1])
		}

	case notInstalledPattern.MatchString(stderr):
		pacErr.Code = enum.ErrorPackageNotInstalled
		for _, m := range notInstalledPattern.FindAllStringSubmatch(stderr, -1) {
			pacErr.Packages = appendUnique(pacErr.Packages, m[1])
		}

	case missingKeyPattern.MatchString(stderr):
		pacErr.Code = enum.ErrorMissingGpgSignature

	case signaturePattern.MatchString(stderr):
		pacErr.Code = enum.ErrorBadGpgSignature

	case badFilePattern.MatchString(stderr):
		pacErr.Code = enum.ErrorInvalidPackageFile

	case diskSpacePattern.MatchString(stderr):
		pacErr.Code = enum.ErrorNoSpaceOnDevice

	case networkPattern.MatchString(stderr):
		pacErr.Code = enum.ErrorNoNetwork

	default:
		return nil
	}

	return pacErr
}

// classifyPacman adapts ParsePacmanError to the backend error classifier.
func classifyPacman(stderr string) (enum.ErrorCode, string, bool) {
	pacErr := ParsePacmanError(stderr)
	if pacErr == nil {
		return enum.ErrorUnknown, "", false
	}
	return pacErr.Code, pacErr.Message(), true
}

// extractAffectedPackages extracts package names from dependency conflict messages.
func extractAffectedPackages(stderr string) []string {
	var packages []string
	for _, pattern := range []*regexp.Regexp{breaksDepPattern, unsatisfiedPattern, conflictPattern} {
		for _, m := range pattern.FindAllStringSubmatch(stderr, -1) {
			for _, name := range m[1:] {
				packages = appendUnique(packages, name)
			}
		}
	}
	return packages
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
