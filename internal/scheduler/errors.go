package scheduler

import "errors"

var (
	// ErrTransactionExists is returned when a transaction id is reused.
	ErrTransactionExists = errors.New("transaction already exists")

	// ErrTooManyTransactions is returned when a caller has too many
	// outstanding transactions.
	ErrTooManyTransactions = errors.New("too many transactions for caller")

	// ErrNotFound is returned for an unknown transaction id.
	ErrNotFound = errors.New("transaction not found")

	// ErrClosed is returned once the scheduler loop has stopped.
	ErrClosed = errors.New("scheduler is closed")
)
