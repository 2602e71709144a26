// Package authority decides whether a caller may perform a privileged action.
//
// A Gate is queried with an action id, the identity of the caller and some
// context about the request. Checks may block while an Agent asks the user
// to confirm, so callers run them off their event loop.
package authority

import "context"

// Result is the outcome of an authorization check.
type Result int

const (
	// Allowed means the action may proceed.
	Allowed Result = iota
	// Denied is final and never retried.
	Denied
	// Challenge means the user could confirm interactively but nobody answered.
	Challenge
)

func (r Result) String() string {
	switch r {
	case Allowed:
		return "allowed"
	case Denied:
		return "denied"
	case Challenge:
		return "challenge"
	}
	return "unknown"
}

// Subject identifies who is asking.
type Subject struct {
	UID     uint32
	Session string
	Cmdline string
}

// Gate checks one action for one subject.
type Gate interface {
	CheckAuthorization(ctx context.Context, action string, subject Subject, details map[string]string) (Result, error)
}

// GateFunc adapts a function to the Gate interface.
type GateFunc func(ctx context.Context, action string, subject Subject, details map[string]string) (Result, error)

// CheckAuthorization calls f.
func (f GateFunc) CheckAuthorization(ctx context.Context, action string, subject Subject, details map[string]string) (Result, error) {
	return f(ctx, action, subject, details)
}

// Static returns a gate that always answers r.
func Static(r Result) Gate {
	return GateFunc(func(context.Context, string, Subject, map[string]string) (Result, error) {
		return r, nil
	})
}
