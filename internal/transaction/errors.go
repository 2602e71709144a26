package transaction

import "errors"

var (
	// ErrInvalidState is returned when a request arrives in the wrong state.
	ErrInvalidState = errors.New("transaction is in an invalid state")

	// ErrNotSupported is returned for roles the active backend does not implement.
	ErrNotSupported = errors.New("role is not supported by the backend")

	// ErrPackageIDInvalid is returned for malformed package identifiers.
	ErrPackageIDInvalid = errors.New("package id is invalid")

	// ErrSearchInvalid is returned for unusable search terms.
	ErrSearchInvalid = errors.New("search term is invalid")

	// ErrFilterInvalid is returned for unknown or empty filters.
	ErrFilterInvalid = errors.New("filter is invalid")

	// ErrInputInvalid is returned for bad strings and other parameters.
	ErrInputInvalid = errors.New("input is invalid")

	// ErrNumberOfPackagesInvalid is returned for empty or oversized batches.
	ErrNumberOfPackagesInvalid = errors.New("number of packages is invalid")

	// ErrNoSuchFile is returned when a local file does not exist.
	ErrNoSuchFile = errors.New("no such file")

	// ErrNotAuthorized is returned when the caller may not perform the action.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrCannotCancel is returned when the backend cannot be interrupted now.
	ErrCannotCancel = errors.New("transaction cannot be cancelled")

	// ErrNotRunning is returned when cancelling a transaction that already ended.
	ErrNotRunning = errors.New("transaction is not running")

	// ErrNoSuchTransaction is returned for unknown transaction ids.
	ErrNoSuchTransaction = errors.New("no such transaction")

	// ErrAlreadyHasRole is returned when a second request is made on one transaction.
	ErrAlreadyHasRole = errors.New("transaction already has a role")

	// ErrCommitFailed is returned when the scheduler refuses a transaction.
	ErrCommitFailed = errors.New("could not commit transaction")
)
