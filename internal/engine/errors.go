package engine

import "errors"

var (
	// ErrNoHistory is returned by history queries when the engine runs
	// without a transaction database.
	ErrNoHistory = errors.New("transaction database not available")

	// ErrNoProxyStore is returned by SetProxy when the engine runs without
	// a proxy database.
	ErrNoProxyStore = errors.New("proxy database not available")
)
