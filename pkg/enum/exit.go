package enum

// Exit is the terminal result of a transaction.
type Exit int

const (
	ExitUnknown Exit = iota
	ExitSuccess
	ExitFailed
	ExitCancelled
	ExitKeyRequired
	ExitEulaRequired
	ExitKilled
	ExitMediaChangeRequired
	ExitNeedUntrusted
	ExitCancelledPriority
	ExitSkipTransaction
	ExitRepairRequired
)

var exitNames = []string{
	"unknown",
	"success",
	"failed",
	"cancelled",
	"key-required",
	"eula-required",
	"killed",
	"media-change-required",
	"need-untrusted",
	"cancelled-priority",
	"skip-transaction",
	"repair-required",
}

// String returns the text form of the exit code.
func (e Exit) String() string {
	return name(exitNames, int(e))
}

// ParseExit converts a text form into an Exit.
func ParseExit(s string) Exit {
	return Exit(lookup(exitNames, s))
}

// Cancelled reports whether the exit is one of the cancellation variants.
func (e Exit) Cancelled() bool {
	return e == ExitCancelled || e == ExitCancelledPriority
}
