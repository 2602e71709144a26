package cli

import "errors"

var (
	// ErrNoPackages is returned when no packages are specified.
	ErrNoPackages = errors.New("no packages specified")

	// ErrPackageNotFound is returned when a package name resolves to nothing.
	ErrPackageNotFound = errors.New("package not found")

	// ErrTransactionFailed is returned when a transaction finishes with an
	// exit other than success.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrUnknownSearch is returned for a search kind other than name,
	// details, file or group.
	ErrUnknownSearch = errors.New("unknown search kind; use name, details, file or group")

	// ErrAborted is returned when the user aborts an operation.
	ErrAborted = errors.New("operation aborted by user")
)
